package storage

import (
	"context"
	"fmt"
	"strings"

	"duit/internal/core"
)

const budgetColumns = `id, user_id, category_id, month, amount_cents, rollover, created_at`

func (q *Queries) scanBudget(row interface{ Scan(...any) error }) (core.Budget, error) {
	var (
		b     core.Budget
		cents int64
		month string
	)
	err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &month, &cents, &b.Rollover, &b.CreatedAt)
	if err != nil {
		return core.Budget{}, err
	}
	b.Amount = core.FromCents(cents)
	if b.Month, err = core.ParseDate(month); err != nil {
		return core.Budget{}, fmt.Errorf("parse budget month %q: %w", month, err)
	}
	return b, nil
}

// CreateBudget inserts a budget row; the unique index on
// (user_id, category_id, month) turns duplicates into ErrDuplicateBudget.
func (q *Queries) CreateBudget(ctx context.Context, b core.Budget) error {
	const query = `INSERT INTO budgets (id, user_id, category_id, month, amount_cents, rollover, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := q.db.ExecContext(ctx, query,
		b.ID, b.UserID, b.CategoryID, b.Month.String(), core.Cents(b.Amount), b.Rollover, b.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.ErrDuplicateBudget
		}
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (q *Queries) GetBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	const query = `SELECT ` + budgetColumns + ` FROM budgets WHERE id = ? AND user_id = ?`
	b, err := q.scanBudget(q.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		return core.Budget{}, notFound(err)
	}
	return b, nil
}

// GetBudgetByCategoryMonth resolves the unique budget row for a category and
// month, if any.
func (q *Queries) GetBudgetByCategoryMonth(ctx context.Context, userID, categoryID string, month core.Date) (core.Budget, error) {
	const query = `SELECT ` + budgetColumns + ` FROM budgets
		WHERE user_id = ? AND category_id = ? AND month = ?`
	b, err := q.scanBudget(q.db.QueryRowContext(ctx, query, userID, categoryID, month.String()))
	if err != nil {
		return core.Budget{}, notFound(err)
	}
	return b, nil
}

func (q *Queries) UpdateBudget(ctx context.Context, b core.Budget) error {
	const query = `UPDATE budgets SET amount_cents = ?, rollover = ? WHERE id = ? AND user_id = ?`
	res, err := q.db.ExecContext(ctx, query, core.Cents(b.Amount), b.Rollover, b.ID, b.UserID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeleteBudget removes the row permanently; budgets carry no balance
// dependency, so there is nothing to soft-delete.
func (q *Queries) DeleteBudget(ctx context.Context, userID, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (q *Queries) ListBudgetsByMonth(ctx context.Context, userID string, month core.Date) ([]core.Budget, error) {
	const query = `SELECT ` + budgetColumns + ` FROM budgets
		WHERE user_id = ? AND month = ? ORDER BY created_at, id`
	rows, err := q.db.QueryContext(ctx, query, userID, month.String())
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		b, err := q.scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}
