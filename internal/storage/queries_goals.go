package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"duit/internal/core"
)

const goalColumns = `id, user_id, name, target_cents, current_cents, deadline, created_at, deleted_at`

func (q *Queries) scanGoal(row interface{ Scan(...any) error }) (core.Goal, error) {
	var (
		g        core.Goal
		target   int64
		current  int64
		deadline string
		deleted  sql.NullTime
	)
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &target, &current, &deadline, &g.CreatedAt, &deleted)
	if err != nil {
		return core.Goal{}, err
	}
	g.TargetAmount = core.FromCents(target)
	g.CurrentAmount = core.FromCents(current)
	if g.Deadline, err = core.ParseDate(deadline); err != nil {
		return core.Goal{}, fmt.Errorf("parse goal deadline %q: %w", deadline, err)
	}
	g.DeletedAt = timePtr(deleted)
	return g, nil
}

func (q *Queries) CreateGoal(ctx context.Context, g core.Goal) error {
	const query = `INSERT INTO goals (id, user_id, name, target_cents, current_cents, deadline, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := q.db.ExecContext(ctx, query,
		g.ID, g.UserID, g.Name, core.Cents(g.TargetAmount), core.Cents(g.CurrentAmount),
		g.Deadline.String(), g.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

func (q *Queries) GetGoal(ctx context.Context, userID, id string) (core.Goal, error) {
	const query = `SELECT ` + goalColumns + ` FROM goals WHERE id = ? AND user_id = ?`
	g, err := q.scanGoal(q.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		return core.Goal{}, notFound(err)
	}
	return g, nil
}

func (q *Queries) UpdateGoalRow(ctx context.Context, g core.Goal) error {
	const query = `UPDATE goals SET name = ?, target_cents = ?, current_cents = ?, deadline = ?
		WHERE id = ? AND user_id = ?`
	res, err := q.db.ExecContext(ctx, query,
		g.Name, core.Cents(g.TargetAmount), core.Cents(g.CurrentAmount), g.Deadline.String(),
		g.ID, g.UserID)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (q *Queries) SetGoalDeleted(ctx context.Context, userID, id string, deletedAt *time.Time) error {
	return q.setDeleted(ctx, "goals", userID, id, deletedAt)
}

func (q *Queries) ListGoals(ctx context.Context, userID string, includeDeleted bool) ([]core.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals
		WHERE user_id = ? ORDER BY deadline, id`
	if !includeDeleted {
		query = `SELECT ` + goalColumns + ` FROM goals
		WHERE user_id = ? AND deleted_at IS NULL ORDER BY deadline, id`
	}
	rows, err := q.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []core.Goal
	for rows.Next() {
		g, err := q.scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}
