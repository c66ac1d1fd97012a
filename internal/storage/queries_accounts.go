package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"duit/internal/core"
)

const accountColumns = `id, user_id, name, type, balance_cents, currency, created_at, deleted_at`

func (q *Queries) scanAccount(row interface{ Scan(...any) error }) (core.Account, error) {
	var (
		a       core.Account
		cents   int64
		deleted sql.NullTime
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &cents, &a.Currency, &a.CreatedAt, &deleted)
	if err != nil {
		return core.Account{}, err
	}
	a.Balance = core.FromCents(cents)
	a.DeletedAt = timePtr(deleted)
	return a, nil
}

func (q *Queries) CreateAccount(ctx context.Context, a core.Account) error {
	const query = `INSERT INTO accounts (id, user_id, name, type, balance_cents, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := q.db.ExecContext(ctx, query,
		a.ID, a.UserID, a.Name, a.Type, core.Cents(a.Balance), a.Currency, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetAccount returns the account regardless of its soft-delete state; callers
// decide whether a deleted account is usable.
func (q *Queries) GetAccount(ctx context.Context, userID, id string) (core.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = ? AND user_id = ?`
	a, err := q.scanAccount(q.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		return core.Account{}, notFound(err)
	}
	return a, nil
}

// AddAccountBalance applies a signed delta to the cached balance. This is the
// only statement in the repository that writes balance_cents.
func (q *Queries) AddAccountBalance(ctx context.Context, userID, id string, deltaCents int64) error {
	const query = `UPDATE accounts SET balance_cents = balance_cents + ? WHERE id = ? AND user_id = ?`
	res, err := q.db.ExecContext(ctx, query, deltaCents, id, userID)
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// SetAccountBalance overwrites the cached balance; reserved for the
// reconciliation repair path.
func (q *Queries) SetAccountBalance(ctx context.Context, userID, id string, cents int64) error {
	const query = `UPDATE accounts SET balance_cents = ? WHERE id = ? AND user_id = ?`
	res, err := q.db.ExecContext(ctx, query, cents, id, userID)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (q *Queries) UpdateAccountFields(ctx context.Context, a core.Account) error {
	const query = `UPDATE accounts SET name = ?, type = ?, currency = ? WHERE id = ? AND user_id = ?`
	res, err := q.db.ExecContext(ctx, query, a.Name, a.Type, a.Currency, a.ID, a.UserID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (q *Queries) SetAccountDeleted(ctx context.Context, userID, id string, deletedAt *time.Time) error {
	return q.setDeleted(ctx, "accounts", userID, id, deletedAt)
}

func (q *Queries) ListAccounts(ctx context.Context, userID string, includeDeleted bool) ([]core.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE user_id = ? ORDER BY created_at, id`
	if !includeDeleted {
		query = `SELECT ` + accountColumns + ` FROM accounts
		WHERE user_id = ? AND deleted_at IS NULL ORDER BY created_at, id`
	}
	rows, err := q.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := q.scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// AccountExists reports whether an account id exists for any user. Used to
// distinguish a cross-user reference from a dangling one when a payload
// names an account.
func (q *Queries) AccountExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check account existence: %w", err)
	}
	return true, nil
}

// ListAccountIDs returns every account id in the store, including
// soft-deleted ones; used by reconciliation.
func (q *Queries) ListAccountIDs(ctx context.Context) (map[string]string, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, user_id FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list account ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]string)
	for rows.Next() {
		var id, userID string
		if err := rows.Scan(&id, &userID); err != nil {
			return nil, err
		}
		ids[id] = userID
	}
	return ids, rows.Err()
}
