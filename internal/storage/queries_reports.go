package storage

import (
	"context"
	"fmt"

	"duit/internal/core"
)

// Read-side aggregate queries. All of them exclude soft-deleted transactions
// and transfer legs; transfers move money between the user's own accounts and
// never count as income or expense.

// TotalActiveBalance sums the cached balances of the user's active accounts.
func (q *Queries) TotalActiveBalance(ctx context.Context, userID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(balance_cents), 0) FROM accounts
		WHERE user_id = ? AND deleted_at IS NULL`
	var cents int64
	if err := q.db.QueryRowContext(ctx, query, userID).Scan(&cents); err != nil {
		return 0, fmt.Errorf("sum active balances: %w", err)
	}
	return cents, nil
}

// IncomeExpenseTotals sums income and expense inside [from, to).
func (q *Queries) IncomeExpenseTotals(ctx context.Context, userID string, from, to core.Date) (income, expense int64, err error) {
	const query = `SELECT
			COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END), 0)
		FROM transactions
		WHERE user_id = ? AND occurred_at >= ? AND occurred_at < ? AND deleted_at IS NULL`
	err = q.db.QueryRowContext(ctx, query, userID, from.String(), to.String()).Scan(&income, &expense)
	if err != nil {
		return 0, 0, fmt.Errorf("sum income and expense: %w", err)
	}
	return income, expense, nil
}

// CategoryExpenseRow is one expense category's aggregate for a range.
type CategoryExpenseRow struct {
	CategoryID   string
	CategoryName string
	Color        string
	Cents        int64
}

// CategoryExpenseTotals ranks expense totals per category inside [from, to),
// highest first with name-ascending tie-break. System categories never
// appear because transfer legs are excluded by type.
func (q *Queries) CategoryExpenseTotals(ctx context.Context, userID string, from, to core.Date) ([]CategoryExpenseRow, error) {
	const query = `SELECT c.id, c.name, c.color, SUM(t.amount_cents) AS total
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? AND t.type = 'expense'
		  AND t.occurred_at >= ? AND t.occurred_at < ? AND t.deleted_at IS NULL
		GROUP BY c.id, c.name, c.color
		ORDER BY total DESC, c.name ASC`
	rows, err := q.db.QueryContext(ctx, query, userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("category expense totals: %w", err)
	}
	defer rows.Close()

	var out []CategoryExpenseRow
	for rows.Next() {
		var r CategoryExpenseRow
		if err := rows.Scan(&r.CategoryID, &r.CategoryName, &r.Color, &r.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CashflowRow is one day's income and expense.
type CashflowRow struct {
	Day     string // YYYY-MM-DD
	Income  int64
	Expense int64
}

// CashflowByDay buckets income and expense per occurrence day inside
// [from, to], ascending.
func (q *Queries) CashflowByDay(ctx context.Context, userID string, from, to core.Date) ([]CashflowRow, error) {
	const query = `SELECT occurred_at,
			COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END), 0)
		FROM transactions
		WHERE user_id = ? AND occurred_at >= ? AND occurred_at <= ? AND deleted_at IS NULL
		  AND type IN ('income', 'expense')
		GROUP BY occurred_at
		ORDER BY occurred_at ASC`
	rows, err := q.db.QueryContext(ctx, query, userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("cashflow by day: %w", err)
	}
	defer rows.Close()

	var out []CashflowRow
	for rows.Next() {
		var r CashflowRow
		if err := rows.Scan(&r.Day, &r.Income, &r.Expense); err != nil {
			return nil, fmt.Errorf("scan cashflow row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TrendRow is one month's income and expense.
type TrendRow struct {
	Month   string // YYYY-MM
	Income  int64
	Expense int64
}

// MonthlyTrend buckets income and expense per month inside [from, to],
// ascending.
func (q *Queries) MonthlyTrend(ctx context.Context, userID string, from, to core.Date) ([]TrendRow, error) {
	const query = `SELECT substr(occurred_at, 1, 7) AS month,
			COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END), 0)
		FROM transactions
		WHERE user_id = ? AND occurred_at >= ? AND occurred_at <= ? AND deleted_at IS NULL
		  AND type IN ('income', 'expense')
		GROUP BY month
		ORDER BY month ASC`
	rows, err := q.db.QueryContext(ctx, query, userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("monthly trend: %w", err)
	}
	defer rows.Close()

	var out []TrendRow
	for rows.Next() {
		var r TrendRow
		if err := rows.Scan(&r.Month, &r.Income, &r.Expense); err != nil {
			return nil, fmt.Errorf("scan trend row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
