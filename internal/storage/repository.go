// Package storage is the ownership-checked entity store over SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"duit/internal/core"

	_ "modernc.org/sqlite"
)

// Repository owns the database handle. All mutating engine operations run
// through InTx so the audit record and the mutation commit as one unit.
type Repository struct {
	db      *sql.DB
	queries *Queries
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// SQLite reliability tuning; a single writer keeps row-level units
	// serialized, busy_timeout bounds how long a conflicting writer waits.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Queries returns the non-transactional query set for read paths.
func (r *Repository) Queries() *Queries {
	return r.queries
}

// InTx runs fn against a transaction-scoped query set. Any error rolls the
// whole unit back; commit failures caused by writer contention surface as
// ErrConcurrencyConflict so the caller can retry the operation.
func (r *Repository) InTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return mapBusy(fmt.Errorf("begin transaction: %w", err))
	}

	if err := fn(New(tx)); err != nil {
		tx.Rollback()
		return mapBusy(err)
	}

	if err := tx.Commit(); err != nil {
		return mapBusy(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// mapBusy translates SQLite writer-contention failures into the engine's
// retryable conflict error.
func mapBusy(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_LOCKED") {
		return fmt.Errorf("%w: %v", core.ErrConcurrencyConflict, err)
	}
	return err
}
