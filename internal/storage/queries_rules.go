package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"duit/internal/core"
)

const ruleColumns = `id, user_id, template, schedule, next_run, active, created_at`

func (q *Queries) scanRule(row interface{ Scan(...any) error }) (core.RecurringRule, error) {
	var (
		r        core.RecurringRule
		template string
		nextRun  string
	)
	err := row.Scan(&r.ID, &r.UserID, &template, &r.Schedule, &nextRun, &r.Active, &r.CreatedAt)
	if err != nil {
		return core.RecurringRule{}, err
	}
	if err := json.Unmarshal([]byte(template), &r.Template); err != nil {
		return core.RecurringRule{}, fmt.Errorf("decode rule template: %w", err)
	}
	if r.NextRun, err = core.ParseDate(nextRun); err != nil {
		return core.RecurringRule{}, fmt.Errorf("parse next_run %q: %w", nextRun, err)
	}
	return r, nil
}

func (q *Queries) CreateRule(ctx context.Context, r core.RecurringRule) error {
	template, err := json.Marshal(r.Template)
	if err != nil {
		return fmt.Errorf("encode rule template: %w", err)
	}
	const query = `INSERT INTO recurring_rules (id, user_id, template, schedule, next_run, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = q.db.ExecContext(ctx, query,
		r.ID, r.UserID, string(template), r.Schedule, r.NextRun.String(), r.Active, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert recurring rule: %w", err)
	}
	return nil
}

func (q *Queries) GetRule(ctx context.Context, userID, id string) (core.RecurringRule, error) {
	const query = `SELECT ` + ruleColumns + ` FROM recurring_rules WHERE id = ? AND user_id = ?`
	r, err := q.scanRule(q.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		return core.RecurringRule{}, notFound(err)
	}
	return r, nil
}

func (q *Queries) UpdateRule(ctx context.Context, r core.RecurringRule) error {
	template, err := json.Marshal(r.Template)
	if err != nil {
		return fmt.Errorf("encode rule template: %w", err)
	}
	const query = `UPDATE recurring_rules SET template = ?, schedule = ?, next_run = ?, active = ?
		WHERE id = ? AND user_id = ?`
	res, err := q.db.ExecContext(ctx, query,
		string(template), r.Schedule, r.NextRun.String(), r.Active, r.ID, r.UserID)
	if err != nil {
		return fmt.Errorf("update recurring rule: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// AdvanceRuleNextRun moves next_run forward only if the stored value still
// matches the one the caller materialized from; a concurrent sweep that
// already advanced the rule makes this a no-op.
func (q *Queries) AdvanceRuleNextRun(ctx context.Context, userID, id string, from, to core.Date) (bool, error) {
	const query = `UPDATE recurring_rules SET next_run = ? WHERE id = ? AND user_id = ? AND next_run = ?`
	res, err := q.db.ExecContext(ctx, query, to.String(), id, userID, from.String())
	if err != nil {
		return false, fmt.Errorf("advance next_run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (q *Queries) DeleteRule(ctx context.Context, userID, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM recurring_rules WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete recurring rule: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (q *Queries) ListRules(ctx context.Context, userID string, activeOnly bool) ([]core.RecurringRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurring_rules WHERE user_id = ? ORDER BY created_at, id`
	if activeOnly {
		query = `SELECT ` + ruleColumns + ` FROM recurring_rules
		WHERE user_id = ? AND active = 1 ORDER BY created_at, id`
	}
	return q.collectRules(ctx, query, userID)
}

// ListDueRules returns every active rule across users whose next_run is on or
// before the given date; the sweep executes them one by one.
func (q *Queries) ListDueRules(ctx context.Context, due core.Date) ([]core.RecurringRule, error) {
	const query = `SELECT ` + ruleColumns + ` FROM recurring_rules
		WHERE active = 1 AND next_run <= ? ORDER BY next_run, id`
	return q.collectRules(ctx, query, due.String())
}

func (q *Queries) collectRules(ctx context.Context, query string, args ...any) ([]core.RecurringRule, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}
	defer rows.Close()

	var rules []core.RecurringRule
	for rows.Next() {
		r, err := q.scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}
