package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"duit/internal/core"
)

const transactionColumns = `id, user_id, account_id, category_id, type, amount_cents, currency,
	occurred_at, note, tags, receipt_url, transfer_group_id, created_at, deleted_at`

func (q *Queries) scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t          core.Transaction
		cents      int64
		occurredAt string
		note       sql.NullString
		tagsRaw    string
		receiptURL sql.NullString
		groupID    sql.NullString
		deleted    sql.NullTime
	)
	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.CategoryID, &t.Type, &cents, &t.Currency,
		&occurredAt, &note, &tagsRaw, &receiptURL, &groupID, &t.CreatedAt, &deleted)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Amount = core.FromCents(cents)
	if t.OccurredAt, err = core.ParseDate(occurredAt); err != nil {
		return core.Transaction{}, fmt.Errorf("parse occurred_at %q: %w", occurredAt, err)
	}
	if t.Tags, err = decodeTags(tagsRaw); err != nil {
		return core.Transaction{}, err
	}
	t.Note = stringPtr(note)
	t.ReceiptURL = stringPtr(receiptURL)
	t.TransferGroupID = stringPtr(groupID)
	t.DeletedAt = timePtr(deleted)
	return t, nil
}

func (q *Queries) CreateTransaction(ctx context.Context, t core.Transaction) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	const query = `INSERT INTO transactions
		(id, user_id, account_id, category_id, type, amount_cents, currency,
		 occurred_at, note, tags, receipt_url, transfer_group_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = q.db.ExecContext(ctx, query,
		t.ID, t.UserID, t.AccountID, t.CategoryID, t.Type, core.Cents(t.Amount), t.Currency,
		t.OccurredAt.String(), nullString(t.Note), tags, nullString(t.ReceiptURL),
		nullString(t.TransferGroupID), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (q *Queries) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	const query = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ? AND user_id = ?`
	t, err := q.scanTransaction(q.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		return core.Transaction{}, notFound(err)
	}
	return t, nil
}

// UpdateTransactionRow rewrites every mutable column; the engine computes the
// balance consequences before calling it.
func (q *Queries) UpdateTransactionRow(ctx context.Context, t core.Transaction) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	const query = `UPDATE transactions SET
		account_id = ?, category_id = ?, type = ?, amount_cents = ?, currency = ?,
		occurred_at = ?, note = ?, tags = ?, receipt_url = ?
		WHERE id = ? AND user_id = ?`
	res, err := q.db.ExecContext(ctx, query,
		t.AccountID, t.CategoryID, t.Type, core.Cents(t.Amount), t.Currency,
		t.OccurredAt.String(), nullString(t.Note), tags, nullString(t.ReceiptURL),
		t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (q *Queries) SetTransactionDeleted(ctx context.Context, userID, id string, deletedAt *time.Time) error {
	return q.setDeleted(ctx, "transactions", userID, id, deletedAt)
}

// GetTransferPair returns both legs of a transfer group, out leg first.
func (q *Queries) GetTransferPair(ctx context.Context, userID, groupID string) (core.Transfer, error) {
	const query = `SELECT ` + transactionColumns + ` FROM transactions
		WHERE transfer_group_id = ? AND user_id = ? ORDER BY type DESC` // transfer_out > transfer_in
	rows, err := q.db.QueryContext(ctx, query, groupID, userID)
	if err != nil {
		return core.Transfer{}, fmt.Errorf("load transfer pair: %w", err)
	}
	defer rows.Close()

	var legs []core.Transaction
	for rows.Next() {
		t, err := q.scanTransaction(rows)
		if err != nil {
			return core.Transfer{}, fmt.Errorf("scan transfer leg: %w", err)
		}
		legs = append(legs, t)
	}
	if err := rows.Err(); err != nil {
		return core.Transfer{}, err
	}
	switch len(legs) {
	case 0:
		return core.Transfer{}, core.ErrNotFound
	case 2:
		if legs[0].Type == core.TransactionTransferOut && legs[1].Type == core.TransactionTransferIn {
			return core.Transfer{Out: legs[0], In: legs[1]}, nil
		}
	}
	return core.Transfer{}, fmt.Errorf("%w: transfer group %s has a broken pair", core.ErrTransferIntegrity, groupID)
}

// SumAccountSigned recomputes an account's balance from all of its
// non-deleted transactions. The reconciliation path; never used for regular
// balance maintenance.
func (q *Queries) SumAccountSigned(ctx context.Context, accountID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(
			CASE WHEN type IN ('income', 'transfer_in') THEN amount_cents ELSE -amount_cents END
		), 0)
		FROM transactions WHERE account_id = ? AND deleted_at IS NULL`
	var cents int64
	if err := q.db.QueryRowContext(ctx, query, accountID).Scan(&cents); err != nil {
		return 0, fmt.Errorf("sum account transactions: %w", err)
	}
	return cents, nil
}

// SumCategoryExpense totals expense transactions for a category inside
// [from, to), excluding soft-deleted rows and transfer legs.
func (q *Queries) SumCategoryExpense(ctx context.Context, userID, categoryID string, from, to core.Date) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		WHERE user_id = ? AND category_id = ? AND type = 'expense'
		  AND occurred_at >= ? AND occurred_at < ? AND deleted_at IS NULL`
	var cents int64
	err := q.db.QueryRowContext(ctx, query, userID, categoryID, from.String(), to.String()).Scan(&cents)
	if err != nil {
		return 0, fmt.Errorf("sum category expense: %w", err)
	}
	return cents, nil
}

// ListTransactions applies the filter and returns one page plus the total
// match count.
func (q *Queries) ListTransactions(ctx context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, int, error) {
	where := []string{"user_id = ?", "deleted_at IS NULL"}
	args := []any{userID}

	if f.DateFrom != nil {
		where = append(where, "occurred_at >= ?")
		args = append(args, f.DateFrom.String())
	}
	if f.DateTo != nil {
		where = append(where, "occurred_at <= ?")
		args = append(args, f.DateTo.String())
	}
	if f.AccountID != nil {
		where = append(where, "account_id = ?")
		args = append(args, *f.AccountID)
	}
	if f.CategoryID != nil {
		where = append(where, "category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.Type != nil {
		where = append(where, "type = ?")
		args = append(args, string(*f.Type))
	}
	if len(f.Tags) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.Tags)), ",")
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM json_each(transactions.tags) WHERE json_each.value IN (%s))", placeholders))
		for _, tag := range f.Tags {
			args = append(args, tag)
		}
	}

	cond := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM transactions WHERE " + cond
	if err := q.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	listQuery := "SELECT " + transactionColumns + " FROM transactions WHERE " + cond +
		" ORDER BY occurred_at DESC, created_at DESC, id LIMIT ? OFFSET ?"
	rows, err := q.db.QueryContext(ctx, listQuery, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		t, err := q.scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, total, rows.Err()
}
