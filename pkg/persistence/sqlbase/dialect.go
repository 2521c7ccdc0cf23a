package sqlbase

import (
	"strconv"
	"strings"
	"time"
)

// Dialect captures the differences between the SQL engines the store runs on.
// Queries are written with ? placeholders and rebound per dialect.
type Dialect struct {
	Name string

	// NumberedPlaceholders rewrites ? to $1, $2, ...
	NumberedPlaceholders bool

	// LockClause is appended to a SELECT to lock the selected rows, if supported.
	LockClause string

	// MigrationsTable creates the schema_migrations bookkeeping table.
	MigrationsTable string

	// TimeValue converts a timestamp to the driver value stored for it.
	TimeValue func(t time.Time) any
}

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.NumberedPlaceholders {
		return query
	}

	var b strings.Builder

	b.Grow(len(query) + 8)

	n := 0

	for _, r := range query {
		if r == '?' {
			n++

			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// SplitStatements splits a migration script on semicolons. Scripts must not
// contain semicolons inside literals.
func (d Dialect) SplitStatements(script string) []string {
	parts := strings.Split(script, ";")
	statements := make([]string, 0, len(parts))

	for _, part := range parts {
		if stmt := strings.TrimSpace(part); stmt != "" && !onlyComments(stmt) {
			statements = append(statements, stmt)
		}
	}

	return statements
}

func onlyComments(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}

	return true
}

func (d Dialect) time(t time.Time) any {
	if d.TimeValue == nil {
		return t.UTC()
	}

	return d.TimeValue(t.UTC())
}
