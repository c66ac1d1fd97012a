package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"duit/internal/core"
)

const categoryColumns = `id, user_id, name, type, color, is_system, created_at, deleted_at`

func (q *Queries) scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var (
		c       core.Category
		deleted sql.NullTime
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.Color, &c.IsSystem, &c.CreatedAt, &deleted)
	if err != nil {
		return core.Category{}, err
	}
	c.DeletedAt = timePtr(deleted)
	return c, nil
}

func (q *Queries) CreateCategory(ctx context.Context, c core.Category) error {
	const query = `INSERT INTO categories (id, user_id, name, type, color, is_system, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := q.db.ExecContext(ctx, query, c.ID, c.UserID, c.Name, c.Type, c.Color, c.IsSystem, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (q *Queries) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	const query = `SELECT ` + categoryColumns + ` FROM categories WHERE id = ? AND user_id = ?`
	c, err := q.scanCategory(q.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		return core.Category{}, notFound(err)
	}
	return c, nil
}

// GetSystemCategory returns the user's reserved transfer category if present.
func (q *Queries) GetSystemCategory(ctx context.Context, userID string) (core.Category, error) {
	const query = `SELECT ` + categoryColumns + ` FROM categories WHERE user_id = ? AND is_system = 1`
	c, err := q.scanCategory(q.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return core.Category{}, notFound(err)
	}
	return c, nil
}

// CategoryExists reports whether a category id exists for any user.
func (q *Queries) CategoryExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check category existence: %w", err)
	}
	return true, nil
}

func (q *Queries) UpdateCategoryFields(ctx context.Context, c core.Category) error {
	const query = `UPDATE categories SET name = ?, type = ?, color = ? WHERE id = ? AND user_id = ? AND is_system = 0`
	res, err := q.db.ExecContext(ctx, query, c.Name, c.Type, c.Color, c.ID, c.UserID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (q *Queries) SetCategoryDeleted(ctx context.Context, userID, id string, deletedAt *time.Time) error {
	return q.setDeleted(ctx, "categories", userID, id, deletedAt)
}

// ListCategories returns the user's active categories; the reserved transfer
// category never appears in listings.
func (q *Queries) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	const query = `SELECT ` + categoryColumns + ` FROM categories
		WHERE user_id = ? AND deleted_at IS NULL AND is_system = 0 ORDER BY name, id`
	rows, err := q.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		c, err := q.scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
