// Package postgresql provides PostgreSQL persistence for workflows.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/dukex/taskflow/pkg/persistence/sqlbase"
)

// Dialect is the PostgreSQL flavor of the shared SQL store.
var Dialect = sqlbase.Dialect{
	Name:                 "postgres",
	NumberedPlaceholders: true,
	LockClause:           " FOR UPDATE",
	MigrationsTable: `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
}

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	*sqlbase.Persistence
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
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
