// Package sqlite provides SQLite persistence for workflows, for single-node
// deployments and tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dukex/taskflow/pkg/persistence/sqlbase"
)

// Dialect is the SQLite flavor of the shared SQL store. Timestamps are stored as
// unix nanoseconds.
var Dialect = sqlbase.Dialect{
	Name: "sqlite",
	MigrationsTable: `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	TimeValue: func(t time.Time) any {
		return t.UnixNano()
	},
}

// Persistence implements the persistence layer for SQLite.
type Persistence struct {
	*sqlbase.Persistence
}

// NewPersistence opens (creating if needed) the database at databaseURL, which is a
// path optionally prefixed with sqlite://. ":memory:" opens a private in-memory database.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	path := strings.TrimPrefix(databaseURL, "sqlite://")

	dsn := path

	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}

		dsn = "file:" + path + "?_pragma=busy_timeout(5000)"
	}

	database, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// One connection serializes transactions and keeps :memory: databases alive.
	database.SetMaxOpenConns(1)

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	_, err = database.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, Dialect, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		Persistence: sqlbase.NewPersistence(logger, database, Dialect),
	}, nil
}
