package sqlbase

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type scanner interface {
	Scan(dest ...any) error
}

// timestamp scans the time representations of the supported drivers: native
// time.Time, unix nanoseconds, or text.
type timestamp struct {
	time.Time
}

func (ts *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		ts.Time = v.UTC()
	case int64:
		ts.Time = time.Unix(0, v).UTC()
	case []byte:
		return ts.parse(string(v))
	case string:
		return ts.parse(v)
	case nil:
		ts.Time = time.Time{}
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}

	return nil
}

func (ts *timestamp) parse(s string) error {
	if nanos, err := strconv.ParseInt(s, 10, 64); err == nil {
		ts.Time = time.Unix(0, nanos).UTC()

		return nil
	}

	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}

	ts.Time = parsed.UTC()

	return nil
}

// payload is the driver value of an opaque JSON document. Payloads travel as text
// so every driver stores them verbatim.
func payload(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}

	return string(raw)
}

func rawOf(s sql.NullString) json.RawMessage {
	if !s.Valid {
		return nil
	}

	return json.RawMessage(s.String)
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}

	return *s
}

func stringOf(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}

	v := s.String

	return &v
}
