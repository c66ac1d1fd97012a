// Package ledger is the consistency engine behind account balances.
//
// Every path that touches accounts.balance lives here: transaction create/
// update/soft-delete/restore, the transfer coordinator, and account CRUD.
// Balances are maintained incrementally with O(1) signed deltas; a full
// recompute exists for reconciliation only. Operations on the same account
// serialize on a per-account lock, and every mutation commits together with
// its audit record in one storage transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"duit/internal/audit"
	"duit/internal/core"
	"duit/internal/events"
	"duit/internal/storage"
)

type Engine struct {
	repo *storage.Repository
	pub  events.Publisher // nil when no broker is configured

	muMap map[string]*sync.Mutex // per-account locks
	mapMu sync.Mutex             // protects muMap itself
}

func NewEngine(repo *storage.Repository, pub events.Publisher) *Engine {
	return &Engine{
		repo:  repo,
		pub:   pub,
		muMap: make(map[string]*sync.Mutex),
	}
}

func (e *Engine) accountLock(accountID string) *sync.Mutex {
	e.mapMu.Lock()
	defer e.mapMu.Unlock()

	if _, exists := e.muMap[accountID]; !exists {
		e.muMap[accountID] = &sync.Mutex{}
	}
	return e.muMap[accountID]
}

// lockAccounts acquires the locks for a set of accounts in sorted id order so
// two concurrent transfers sharing an account pair in opposite directions can
// never deadlock. The returned func releases them in reverse order.
func (e *Engine) lockAccounts(ids ...string) func() {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Strings(unique)

	locks := make([]*sync.Mutex, len(unique))
	for i, id := range unique {
		locks[i] = e.accountLock(id)
		locks[i].Lock()
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

func (e *Engine) emit(ctx context.Context, table string, action core.AuditAction, recordID, userID string) {
	events.Emit(ctx, e.pub, events.NewEvent(table, action, recordID, userID))
}

// resolveActiveAccount loads an account the caller wants to move money on.
// A cross-user reference surfaces as ErrOwnership, a dangling one as
// ErrNotFound, a soft-deleted account as ErrAccountUnavailable.
func resolveActiveAccount(ctx context.Context, q *storage.Queries, userID, id string) (core.Account, error) {
	a, err := q.GetAccount(ctx, userID, id)
	if errors.Is(err, core.ErrNotFound) {
		exists, exErr := q.AccountExists(ctx, id)
		if exErr == nil && exists {
			return core.Account{}, fmt.Errorf("%w: account %s belongs to another user", core.ErrOwnership, id)
		}
		return core.Account{}, fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Account{}, err
	}
	if a.IsDeleted() {
		return core.Account{}, fmt.Errorf("account %s: %w", id, core.ErrAccountUnavailable)
	}
	return a, nil
}

// resolveCategory is the category counterpart; soft-deleted categories cannot
// be referenced by new or edited transactions.
func resolveCategory(ctx context.Context, q *storage.Queries, userID, id string) (core.Category, error) {
	c, err := q.GetCategory(ctx, userID, id)
	if errors.Is(err, core.ErrNotFound) {
		exists, exErr := q.CategoryExists(ctx, id)
		if exErr == nil && exists {
			return core.Category{}, fmt.Errorf("%w: category %s belongs to another user", core.ErrOwnership, id)
		}
		return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, err
	}
	if c.DeletedAt != nil {
		return core.Category{}, fmt.Errorf("%w: category %s is deleted", core.ErrValidation, id)
	}
	return c, nil
}

// checkCategoryCompat enforces transaction/category type compatibility:
// income transactions require income categories, expenses expense
// categories. Transfer legs reference the reserved system category and skip
// the check.
func checkCategoryCompat(txType core.TransactionType, c core.Category) error {
	switch txType {
	case core.TransactionIncome:
		if c.Type != core.CategoryIncome {
			return fmt.Errorf("%w: income transactions require an income category", core.ErrValidation)
		}
	case core.TransactionExpense:
		if c.Type != core.CategoryExpense {
			return fmt.Errorf("%w: expense transactions require an expense category", core.ErrValidation)
		}
	}
	return nil
}

// --- account operations -------------------------------------------------

func (e *Engine) CreateAccount(ctx context.Context, userID string, in core.CreateAccountInput) (core.Account, error) {
	if err := in.Validate(); err != nil {
		return core.Account{}, err
	}

	a := core.Account{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      in.Name,
		Type:      in.Type,
		Currency:  in.Currency,
		CreatedAt: time.Now(),
	}

	err := e.repo.InTx(ctx, func(q *storage.Queries) error {
		if err := q.CreateAccount(ctx, a); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionCreate, "accounts", a.ID, audit.Snapshot(a))
	})
	if err != nil {
		return core.Account{}, err
	}

	e.emit(ctx, "accounts", core.ActionCreate, a.ID, userID)
	slog.InfoContext(ctx, "Account created", "account_id", a.ID, "type", a.Type)
	return a, nil
}

func (e *Engine) UpdateAccount(ctx context.Context, userID string, in core.UpdateAccountInput) (core.Account, error) {
	if err := in.Validate(); err != nil {
		return core.Account{}, err
	}

	unlock := e.lockAccounts(in.ID)
	defer unlock()

	var updated core.Account
	err := e.repo.InTx(ctx, func(q *storage.Queries) error {
		before, err := q.GetAccount(ctx, userID, in.ID)
		if err != nil {
			return err
		}
		if before.IsDeleted() {
			return fmt.Errorf("account %s: %w", in.ID, core.ErrAccountUnavailable)
		}

		updated = before
		if in.Name != nil {
			updated.Name = *in.Name
		}
		if in.Type != nil {
			updated.Type = *in.Type
		}
		if in.Currency != nil {
			updated.Currency = *in.Currency
		}

		if err := q.UpdateAccountFields(ctx, updated); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionUpdate, "accounts", in.ID, audit.Diff(before, updated))
	})
	if err != nil {
		return core.Account{}, err
	}

	e.emit(ctx, "accounts", core.ActionUpdate, in.ID, userID)
	return updated, nil
}

// SoftDeleteAccount marks the account deleted. Its transactions stay in
// place for history; the cached balance is frozen with them.
func (e *Engine) SoftDeleteAccount(ctx context.Context, userID, id string) error {
	unlock := e.lockAccounts(id)
	defer unlock()

	err := e.repo.InTx(ctx, func(q *storage.Queries) error {
		a, err := q.GetAccount(ctx, userID, id)
		if err != nil {
			return err
		}
		if a.IsDeleted() {
			return fmt.Errorf("account %s: %w", id, core.ErrNotFound)
		}
		now := time.Now()
		if err := q.SetAccountDeleted(ctx, userID, id, &now); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionSoftDelete, "accounts", id, audit.Snapshot(a))
	})
	if err != nil {
		return err
	}

	e.emit(ctx, "accounts", core.ActionSoftDelete, id, userID)
	return nil
}

func (e *Engine) RestoreAccount(ctx context.Context, userID, id string) (core.Account, error) {
	unlock := e.lockAccounts(id)
	defer unlock()

	var restored core.Account
	err := e.repo.InTx(ctx, func(q *storage.Queries) error {
		a, err := q.GetAccount(ctx, userID, id)
		if err != nil {
			return err
		}
		if !a.IsDeleted() {
			return fmt.Errorf("%w: account %s is not deleted", core.ErrValidation, id)
		}
		if err := q.SetAccountDeleted(ctx, userID, id, nil); err != nil {
			return err
		}
		restored = a
		restored.DeletedAt = nil
		return audit.Record(ctx, q, userID, core.ActionRestore, "accounts", id, audit.Snapshot(restored))
	})
	if err != nil {
		return core.Account{}, err
	}

	e.emit(ctx, "accounts", core.ActionRestore, id, userID)
	return restored, nil
}

// GetAccounts lists the user's accounts; includeDeleted also surfaces
// soft-deleted ones so callers can offer a restore.
func (e *Engine) GetAccounts(ctx context.Context, userID string, includeDeleted bool) ([]core.Account, error) {
	accounts, err := e.repo.Queries().ListAccounts(ctx, userID, includeDeleted)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []core.Account{}
	}
	return accounts, nil
}
