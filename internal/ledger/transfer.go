package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"duit/internal/audit"
	"duit/internal/core"
	"duit/internal/storage"
)

const systemCategoryName = "Transfer"

// ensureSystemCategory returns the user's reserved transfer category,
// creating it on first use. The lazy create is not audited; the category is
// bookkeeping, not user data.
func ensureSystemCategory(ctx context.Context, q *storage.Queries, userID string) (core.Category, error) {
	c, err := q.GetSystemCategory(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.Category{}, err
	}
	c = core.Category{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      systemCategoryName,
		Type:      core.CategoryExpense,
		Color:     "#9E9E9E",
		IsSystem:  true,
		CreatedAt: time.Now(),
	}
	if err := q.CreateCategory(ctx, c); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

// CreateTransfer writes both legs of an account-to-account transfer and both
// balance deltas as one unit. The legs share a group id; a single leg is
// never observable.
func (e *Engine) CreateTransfer(ctx context.Context, userID string, in core.CreateTransferInput) (core.Transfer, error) {
	if err := in.Validate(); err != nil {
		return core.Transfer{}, err
	}

	unlock := e.lockAccounts(in.FromAccountID, in.ToAccountID)
	defer unlock()

	groupID := uuid.New().String()
	amount := in.Amount.Round(2)
	now := time.Now()

	var pair core.Transfer
	err := e.repo.InTx(ctx, func(q *storage.Queries) error {
		if _, err := resolveActiveAccount(ctx, q, userID, in.FromAccountID); err != nil {
			return err
		}
		if _, err := resolveActiveAccount(ctx, q, userID, in.ToAccountID); err != nil {
			return err
		}
		category, err := ensureSystemCategory(ctx, q, userID)
		if err != nil {
			return err
		}

		out := core.Transaction{
			ID:              uuid.New().String(),
			UserID:          userID,
			AccountID:       in.FromAccountID,
			CategoryID:      category.ID,
			Type:            core.TransactionTransferOut,
			Amount:          amount,
			Currency:        in.Currency,
			OccurredAt:      in.OccurredAt,
			Note:            in.Note,
			Tags:            []string{},
			TransferGroupID: &groupID,
			CreatedAt:       now,
		}
		inLeg := out
		inLeg.ID = uuid.New().String()
		inLeg.AccountID = in.ToAccountID
		inLeg.Type = core.TransactionTransferIn

		if err := q.CreateTransaction(ctx, out); err != nil {
			return err
		}
		if err := q.CreateTransaction(ctx, inLeg); err != nil {
			return err
		}
		cents := core.Cents(amount)
		if err := q.AddAccountBalance(ctx, userID, in.FromAccountID, -cents); err != nil {
			return err
		}
		if err := q.AddAccountBalance(ctx, userID, in.ToAccountID, cents); err != nil {
			return err
		}

		pair = core.Transfer{Out: out, In: inLeg}
		return audit.Record(ctx, q, userID, core.ActionCreate, "transactions", groupID, audit.Snapshot(pair))
	})
	if err != nil {
		return core.Transfer{}, err
	}

	e.emit(ctx, "transactions", core.ActionCreate, groupID, userID)
	slog.InfoContext(ctx, "Transfer created",
		"transfer_group_id", groupID,
		"from_account_id", in.FromAccountID,
		"to_account_id", in.ToAccountID,
		"amount", amount)
	return pair, nil
}

// GetTransfer returns both legs of a transfer by group id.
func (e *Engine) GetTransfer(ctx context.Context, userID, groupID string) (core.Transfer, error) {
	return e.repo.Queries().GetTransferPair(ctx, userID, groupID)
}

// UpdateTransfer edits both legs together. An amount change adjusts both
// account balances by the cents difference.
func (e *Engine) UpdateTransfer(ctx context.Context, userID string, in core.UpdateTransferInput) (core.Transfer, error) {
	if err := in.Validate(); err != nil {
		return core.Transfer{}, err
	}

	current, err := e.repo.Queries().GetTransferPair(ctx, userID, in.TransferGroupID)
	if err != nil {
		return core.Transfer{}, err
	}
	unlock := e.lockAccounts(current.Out.AccountID, current.In.AccountID)
	defer unlock()

	var updated core.Transfer
	err = e.repo.InTx(ctx, func(q *storage.Queries) error {
		pair, err := q.GetTransferPair(ctx, userID, in.TransferGroupID)
		if err != nil {
			return err
		}
		if pair.Out.IsDeleted() || pair.In.IsDeleted() {
			return fmt.Errorf("%w: cannot update a soft-deleted transfer", core.ErrValidation)
		}

		updated = pair
		if in.Amount != nil {
			// An amount change moves money, so both accounts must still
			// be active; a soft-deleted account's balance is frozen.
			if _, err := resolveActiveAccount(ctx, q, userID, pair.Out.AccountID); err != nil {
				return err
			}
			if _, err := resolveActiveAccount(ctx, q, userID, pair.In.AccountID); err != nil {
				return err
			}
			amount := in.Amount.Round(2)
			diff := core.Cents(amount) - core.Cents(pair.Out.Amount)
			if diff != 0 {
				if err := q.AddAccountBalance(ctx, userID, pair.Out.AccountID, -diff); err != nil {
					return err
				}
				if err := q.AddAccountBalance(ctx, userID, pair.In.AccountID, diff); err != nil {
					return err
				}
			}
			updated.Out.Amount = amount
			updated.In.Amount = amount
		}
		if in.OccurredAt != nil {
			updated.Out.OccurredAt = *in.OccurredAt
			updated.In.OccurredAt = *in.OccurredAt
		}
		if in.Note != nil {
			updated.Out.Note = in.Note
			updated.In.Note = in.Note
		}

		if err := q.UpdateTransactionRow(ctx, updated.Out); err != nil {
			return err
		}
		if err := q.UpdateTransactionRow(ctx, updated.In); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionUpdate, "transactions", in.TransferGroupID, audit.Diff(pair, updated))
	})
	if err != nil {
		return core.Transfer{}, err
	}

	e.emit(ctx, "transactions", core.ActionUpdate, in.TransferGroupID, userID)
	return updated, nil
}

// SoftDeleteTransfer reverses both balance deltas and marks both legs
// deleted, as one unit.
func (e *Engine) SoftDeleteTransfer(ctx context.Context, userID, groupID string) error {
	current, err := e.repo.Queries().GetTransferPair(ctx, userID, groupID)
	if err != nil {
		return err
	}
	unlock := e.lockAccounts(current.Out.AccountID, current.In.AccountID)
	defer unlock()

	err = e.repo.InTx(ctx, func(q *storage.Queries) error {
		pair, err := q.GetTransferPair(ctx, userID, groupID)
		if err != nil {
			return err
		}
		if pair.Out.IsDeleted() {
			return fmt.Errorf("transfer %s: %w", groupID, core.ErrNotFound)
		}

		now := time.Now()
		if err := q.SetTransactionDeleted(ctx, userID, pair.Out.ID, &now); err != nil {
			return err
		}
		if err := q.SetTransactionDeleted(ctx, userID, pair.In.ID, &now); err != nil {
			return err
		}
		cents := core.Cents(pair.Out.Amount)
		if err := q.AddAccountBalance(ctx, userID, pair.Out.AccountID, cents); err != nil {
			return err
		}
		if err := q.AddAccountBalance(ctx, userID, pair.In.AccountID, -cents); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionSoftDelete, "transactions", groupID, audit.Snapshot(pair))
	})
	if err != nil {
		return err
	}

	e.emit(ctx, "transactions", core.ActionSoftDelete, groupID, userID)
	return nil
}

// RestoreTransfer re-applies both legs. Both accounts must still be active;
// otherwise neither leg is restored.
func (e *Engine) RestoreTransfer(ctx context.Context, userID, groupID string) (core.Transfer, error) {
	current, err := e.repo.Queries().GetTransferPair(ctx, userID, groupID)
	if err != nil {
		return core.Transfer{}, err
	}
	unlock := e.lockAccounts(current.Out.AccountID, current.In.AccountID)
	defer unlock()

	var restored core.Transfer
	err = e.repo.InTx(ctx, func(q *storage.Queries) error {
		pair, err := q.GetTransferPair(ctx, userID, groupID)
		if err != nil {
			return err
		}
		if !pair.Out.IsDeleted() {
			return fmt.Errorf("%w: transfer %s is not deleted", core.ErrValidation, groupID)
		}
		if _, err := resolveActiveAccount(ctx, q, userID, pair.Out.AccountID); err != nil {
			return err
		}
		if _, err := resolveActiveAccount(ctx, q, userID, pair.In.AccountID); err != nil {
			return err
		}

		if err := q.SetTransactionDeleted(ctx, userID, pair.Out.ID, nil); err != nil {
			return err
		}
		if err := q.SetTransactionDeleted(ctx, userID, pair.In.ID, nil); err != nil {
			return err
		}
		cents := core.Cents(pair.Out.Amount)
		if err := q.AddAccountBalance(ctx, userID, pair.Out.AccountID, -cents); err != nil {
			return err
		}
		if err := q.AddAccountBalance(ctx, userID, pair.In.AccountID, cents); err != nil {
			return err
		}

		restored = pair
		restored.Out.DeletedAt = nil
		restored.In.DeletedAt = nil
		return audit.Record(ctx, q, userID, core.ActionRestore, "transactions", groupID, audit.Snapshot(restored))
	})
	if err != nil {
		return core.Transfer{}, err
	}

	e.emit(ctx, "transactions", core.ActionRestore, groupID, userID)
	return restored, nil
}
