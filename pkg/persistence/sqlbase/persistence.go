package sqlbase

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/taskflow/pkg/persistence"
)

// Persistence is the persistence.Persistence implementation shared by the SQL
// backends. Backends open the database, run their migrations and embed it.
type Persistence struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewPersistence wraps an open, migrated database.
func NewPersistence(logger *slog.Logger, db *sql.DB, dialect Dialect) *Persistence {
	return &Persistence{db: db, dialect: dialect, logger: logger}
}

// DB returns the underlying database handle.
func (p *Persistence) DB() *sql.DB {
	return p.db
}

// WithTx runs fn inside a database transaction, committing when fn returns nil.
func (p *Persistence) WithTx(ctx context.Context, fn func(tx persistence.Tx) error) error {
	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = fn(&Tx{tx: sqlTx, dialect: p.dialect, logger: p.logger})
	if err != nil {
		rollbackErr := sqlTx.Rollback()
		if rollbackErr != nil {
			p.logger.ErrorContext(ctx, "failed to rollback transaction", "error", rollbackErr)
		}

		return err
	}

	err = sqlTx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
