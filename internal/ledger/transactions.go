package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"duit/internal/audit"
	"duit/internal/core"
	"duit/internal/storage"
)

// CreateTransaction records a single income or expense movement and applies
// its signed delta to the account balance in the same unit.
func (e *Engine) CreateTransaction(ctx context.Context, userID string, in core.CreateTransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	unlock := e.lockAccounts(in.AccountID)
	defer unlock()

	t := core.Transaction{
		ID:         uuid.New().String(),
		UserID:     userID,
		AccountID:  in.AccountID,
		CategoryID: in.CategoryID,
		Type:       in.Type,
		Amount:     in.Amount.Round(2),
		Currency:   in.Currency,
		OccurredAt: in.OccurredAt,
		Note:       in.Note,
		Tags:       in.Tags,
		ReceiptURL: in.ReceiptURL,
		CreatedAt:  time.Now(),
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}

	err := e.repo.InTx(ctx, func(q *storage.Queries) error {
		if _, err := resolveActiveAccount(ctx, q, userID, in.AccountID); err != nil {
			return err
		}
		category, err := resolveCategory(ctx, q, userID, in.CategoryID)
		if err != nil {
			return err
		}
		if err := checkCategoryCompat(in.Type, category); err != nil {
			return err
		}

		if err := q.CreateTransaction(ctx, t); err != nil {
			return err
		}
		if err := q.AddAccountBalance(ctx, userID, in.AccountID, core.SignedCents(t.Type, core.Cents(t.Amount))); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionCreate, "transactions", t.ID, audit.Snapshot(t))
	})
	if err != nil {
		return core.Transaction{}, err
	}

	e.emit(ctx, "transactions", core.ActionCreate, t.ID, userID)
	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", t.ID,
		"account_id", t.AccountID,
		"type", t.Type,
		"amount", t.Amount)
	return t, nil
}

// UpdateTransaction edits a transaction. Balance-affecting changes undo the
// old signed delta and apply the new one as one unit; a transfer leg only
// accepts display-only edits here.
func (e *Engine) UpdateTransaction(ctx context.Context, userID string, in core.UpdateTransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	// Peek at the current row to determine the lock set; ownership and
	// state are re-verified inside the transaction.
	current, err := e.repo.Queries().GetTransaction(ctx, userID, in.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	lockIDs := []string{current.AccountID}
	if in.AccountID != nil {
		lockIDs = append(lockIDs, *in.AccountID)
	}
	unlock := e.lockAccounts(lockIDs...)
	defer unlock()

	var updated core.Transaction
	err = e.repo.InTx(ctx, func(q *storage.Queries) error {
		before, err := q.GetTransaction(ctx, userID, in.ID)
		if err != nil {
			return err
		}
		if before.IsDeleted() {
			return fmt.Errorf("%w: cannot update a soft-deleted transaction", core.ErrValidation)
		}
		if before.TransferGroupID != nil && in.TouchesBalance() {
			return fmt.Errorf("%w: edit the transfer by its group id", core.ErrTransferIntegrity)
		}

		updated = before
		if in.AccountID != nil {
			updated.AccountID = *in.AccountID
		}
		if in.CategoryID != nil {
			updated.CategoryID = *in.CategoryID
		}
		if in.Type != nil {
			updated.Type = *in.Type
		}
		if in.Amount != nil {
			updated.Amount = in.Amount.Round(2)
		}
		if in.Currency != nil {
			updated.Currency = *in.Currency
		}
		if in.OccurredAt != nil {
			updated.OccurredAt = *in.OccurredAt
		}
		if in.Note != nil {
			updated.Note = in.Note
		}
		if in.Tags != nil {
			updated.Tags = in.Tags
		}
		if in.ReceiptURL != nil {
			updated.ReceiptURL = in.ReceiptURL
		}

		if in.TouchesBalance() {
			if _, err := resolveActiveAccount(ctx, q, userID, updated.AccountID); err != nil {
				return err
			}
			category, err := resolveCategory(ctx, q, userID, updated.CategoryID)
			if err != nil {
				return err
			}
			if err := checkCategoryCompat(updated.Type, category); err != nil {
				return err
			}

			// Undo the old signed delta, apply the new one. Both run inside
			// this unit; a half-applied update can never commit.
			oldDelta := core.SignedCents(before.Type, core.Cents(before.Amount))
			newDelta := core.SignedCents(updated.Type, core.Cents(updated.Amount))
			if before.AccountID == updated.AccountID {
				if err := q.AddAccountBalance(ctx, userID, before.AccountID, newDelta-oldDelta); err != nil {
					return err
				}
			} else {
				if err := q.AddAccountBalance(ctx, userID, before.AccountID, -oldDelta); err != nil {
					return err
				}
				if err := q.AddAccountBalance(ctx, userID, updated.AccountID, newDelta); err != nil {
					return err
				}
			}
		}

		if err := q.UpdateTransactionRow(ctx, updated); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionUpdate, "transactions", in.ID, audit.Diff(before, updated))
	})
	if err != nil {
		return core.Transaction{}, err
	}

	e.emit(ctx, "transactions", core.ActionUpdate, in.ID, userID)
	return updated, nil
}

// SoftDeleteTransaction reverses the signed delta and marks the row deleted.
// The row stays behind for history and can be restored.
func (e *Engine) SoftDeleteTransaction(ctx context.Context, userID, id string) error {
	current, err := e.repo.Queries().GetTransaction(ctx, userID, id)
	if err != nil {
		return err
	}
	if current.TransferGroupID != nil {
		return fmt.Errorf("%w: delete the transfer by its group id", core.ErrTransferIntegrity)
	}

	unlock := e.lockAccounts(current.AccountID)
	defer unlock()

	err = e.repo.InTx(ctx, func(q *storage.Queries) error {
		t, err := q.GetTransaction(ctx, userID, id)
		if err != nil {
			return err
		}
		if t.IsDeleted() {
			return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
		}

		now := time.Now()
		if err := q.SetTransactionDeleted(ctx, userID, id, &now); err != nil {
			return err
		}
		if err := q.AddAccountBalance(ctx, userID, t.AccountID, -core.SignedCents(t.Type, core.Cents(t.Amount))); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionSoftDelete, "transactions", id, audit.Snapshot(t))
	})
	if err != nil {
		return err
	}

	e.emit(ctx, "transactions", core.ActionSoftDelete, id, userID)
	return nil
}

// RestoreTransaction re-applies the signed delta of a soft-deleted
// transaction. It fails with AccountUnavailable when the account itself was
// soft-deleted in the interim.
func (e *Engine) RestoreTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	current, err := e.repo.Queries().GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if current.TransferGroupID != nil {
		return core.Transaction{}, fmt.Errorf("%w: restore the transfer by its group id", core.ErrTransferIntegrity)
	}

	unlock := e.lockAccounts(current.AccountID)
	defer unlock()

	var restored core.Transaction
	err = e.repo.InTx(ctx, func(q *storage.Queries) error {
		t, err := q.GetTransaction(ctx, userID, id)
		if err != nil {
			return err
		}
		if !t.IsDeleted() {
			return fmt.Errorf("%w: transaction %s is not deleted", core.ErrValidation, id)
		}
		if _, err := resolveActiveAccount(ctx, q, userID, t.AccountID); err != nil {
			return err
		}

		if err := q.SetTransactionDeleted(ctx, userID, id, nil); err != nil {
			return err
		}
		if err := q.AddAccountBalance(ctx, userID, t.AccountID, core.SignedCents(t.Type, core.Cents(t.Amount))); err != nil {
			return err
		}
		restored = t
		restored.DeletedAt = nil
		return audit.Record(ctx, q, userID, core.ActionRestore, "transactions", id, audit.Snapshot(restored))
	})
	if err != nil {
		return core.Transaction{}, err
	}

	e.emit(ctx, "transactions", core.ActionRestore, id, userID)
	return restored, nil
}

// GetTransactions lists the user's non-deleted transactions, filtered and
// paginated.
func (e *Engine) GetTransactions(ctx context.Context, userID string, f core.TransactionFilter) (core.Page[core.Transaction], error) {
	if err := f.Validate(); err != nil {
		return core.Page[core.Transaction]{}, err
	}
	transactions, total, err := e.repo.Queries().ListTransactions(ctx, userID, f)
	if err != nil {
		return core.Page[core.Transaction]{}, err
	}
	if transactions == nil {
		transactions = []core.Transaction{}
	}
	return core.Page[core.Transaction]{Data: transactions, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}
