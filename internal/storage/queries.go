package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"duit/internal/core"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so the same query set serves
// read paths and transactional units.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// notFound maps the ErrNoRows of ownership-scoped lookups onto the engine
// taxonomy: a row owned by someone else is indistinguishable from a missing
// one.
func notFound(err error) error {
	if err == sql.ErrNoRows {
		return core.ErrNotFound
	}
	return err
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func decodeTags(raw string) ([]string, error) {
	tags := []string{}
	if raw == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return tags, nil
}

// setDeleted flips the soft-delete marker on an ownership-scoped row. The
// table name is always a compile-time constant from this package.
func (q *Queries) setDeleted(ctx context.Context, table, userID, id string, deletedAt *time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET deleted_at = ? WHERE id = ? AND user_id = ?`, table)
	res, err := q.db.ExecContext(ctx, query, nullTime(deletedAt), id, userID)
	if err != nil {
		return fmt.Errorf("set %s deleted_at: %w", table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
