package ledger

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"duit/internal/core"
	"duit/internal/storage"
)

// Drift is one account whose cached balance disagrees with the signed sum of
// its non-deleted transactions.
type Drift struct {
	AccountID string          `json:"account_id"`
	UserID    string          `json:"user_id"`
	Cached    decimal.Decimal `json:"cached"`
	Computed  decimal.Decimal `json:"computed"`
}

// RecomputeBalance derives an account's balance from scratch, ignoring the
// cached column.
func (e *Engine) RecomputeBalance(ctx context.Context, userID, accountID string) (decimal.Decimal, error) {
	if _, err := e.repo.Queries().GetAccount(ctx, userID, accountID); err != nil {
		return decimal.Zero, err
	}
	cents, err := e.repo.Queries().SumAccountSigned(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return core.FromCents(cents), nil
}

// Reconcile walks every account and reports those whose cached balance no
// longer matches the recomputed one. It reads only; repairs are explicit.
func (e *Engine) Reconcile(ctx context.Context) ([]Drift, error) {
	owners, err := e.repo.Queries().ListAccountIDs(ctx)
	if err != nil {
		return nil, err
	}

	drifts := []Drift{}
	for accountID, userID := range owners {
		account, err := e.repo.Queries().GetAccount(ctx, userID, accountID)
		if err != nil {
			return nil, err
		}
		cents, err := e.repo.Queries().SumAccountSigned(ctx, accountID)
		if err != nil {
			return nil, err
		}
		computed := core.FromCents(cents)
		if !account.Balance.Equal(computed) {
			drifts = append(drifts, Drift{
				AccountID: accountID,
				UserID:    userID,
				Cached:    account.Balance,
				Computed:  computed,
			})
		}
	}
	if len(drifts) > 0 {
		slog.WarnContext(ctx, "Balance drift detected", "accounts", len(drifts))
	}
	return drifts, nil
}

// RepairBalance overwrites an account's cached balance with the recomputed
// value, under the account lock so no concurrent write slips between the sum
// and the set.
func (e *Engine) RepairBalance(ctx context.Context, userID, accountID string) (decimal.Decimal, error) {
	unlock := e.lockAccounts(accountID)
	defer unlock()

	var computed decimal.Decimal
	err := e.repo.InTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetAccount(ctx, userID, accountID); err != nil {
			return err
		}
		cents, err := q.SumAccountSigned(ctx, accountID)
		if err != nil {
			return err
		}
		computed = core.FromCents(cents)
		return q.SetAccountBalance(ctx, userID, accountID, cents)
	})
	if err != nil {
		return decimal.Zero, err
	}

	slog.InfoContext(ctx, "Balance repaired", "account_id", accountID, "balance", computed)
	return computed, nil
}
