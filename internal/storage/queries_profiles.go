package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"duit/internal/core"
)

func (q *Queries) CreateProfile(ctx context.Context, p core.Profile) error {
	const query = `INSERT INTO profiles (id, full_name, photo_url, locale, currency, timezone, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := q.db.ExecContext(ctx, query,
		p.ID, nullString(p.FullName), nullString(p.PhotoURL), p.Locale, p.Currency, p.Timezone, p.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: profile already exists", core.ErrValidation)
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (q *Queries) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	const query = `SELECT id, full_name, photo_url, locale, currency, timezone, created_at
		FROM profiles WHERE id = ?`
	var (
		p        core.Profile
		fullName sql.NullString
		photoURL sql.NullString
	)
	err := q.db.QueryRowContext(ctx, query, userID).
		Scan(&p.ID, &fullName, &photoURL, &p.Locale, &p.Currency, &p.Timezone, &p.CreatedAt)
	if err != nil {
		return core.Profile{}, notFound(err)
	}
	p.FullName = stringPtr(fullName)
	p.PhotoURL = stringPtr(photoURL)
	return p, nil
}

func (q *Queries) UpdateProfile(ctx context.Context, p core.Profile) error {
	const query = `UPDATE profiles SET full_name = ?, photo_url = ?, locale = ?, currency = ?, timezone = ?
		WHERE id = ?`
	res, err := q.db.ExecContext(ctx, query,
		nullString(p.FullName), nullString(p.PhotoURL), p.Locale, p.Currency, p.Timezone, p.ID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}
