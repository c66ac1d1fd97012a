package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"duit/internal/core"
	"duit/internal/storage"
)

func newTestEngine(t *testing.T) (*Engine, *storage.Repository) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewEngine(repo, nil), repo
}

func mustAccount(t *testing.T, e *Engine, userID, name string) core.Account {
	t.Helper()
	a, err := e.CreateAccount(context.Background(), userID, core.CreateAccountInput{
		Name:     name,
		Type:     core.AccountBank,
		Currency: "IDR",
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}

func mustCategory(t *testing.T, repo *storage.Repository, userID string, typ core.CategoryType) core.Category {
	t.Helper()
	c := core.Category{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      "Cat " + uuid.New().String()[:8],
		Type:      typ,
		Color:     "#112233",
		CreatedAt: time.Now(),
	}
	if err := repo.Queries().CreateCategory(context.Background(), c); err != nil {
		t.Fatalf("create category: %v", err)
	}
	return c
}

func balanceOf(t *testing.T, repo *storage.Repository, userID, accountID string) decimal.Decimal {
	t.Helper()
	a, err := repo.Queries().GetAccount(context.Background(), userID, accountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return a.Balance
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestTransactionBalanceMaintenance(t *testing.T) {
	e, repo := newTestEngine(t)
	ctx := context.Background()

	a := mustAccount(t, e, "u1", "Main")
	income := mustCategory(t, repo, "u1", core.CategoryIncome)
	expense := mustCategory(t, repo, "u1", core.CategoryExpense)
	day := core.NewDate(2025, 6, 1)

	if _, err := e.CreateTransaction(ctx, "u1", core.CreateTransactionInput{
		AccountID: a.ID, CategoryID: income.ID, Type: core.TransactionIncome,
		Amount: amt("1000.50"), Currency: "IDR", OccurredAt: day,
	}); err != nil {
		t.Fatalf("income: %v", err)
	}
	tx, err := e.CreateTransaction(ctx, "u1", core.CreateTransactionInput{
		AccountID: a.ID, CategoryID: expense.ID, Type: core.TransactionExpense,
		Amount: amt("300.25"), Currency: "IDR", OccurredAt: day,
	})
	if err != nil {
		t.Fatalf("expense: %v", err)
	}

	if got := balanceOf(t, repo, "u1", a.ID); !got.Equal(amt("700.25")) {
		t.Fatalf("balance = %s, want 700.25", got)
	}

	// Amount edit undoes the old delta and applies the new one.
	if _, err := e.UpdateTransaction(ctx, "u1", core.UpdateTransactionInput{
		ID: tx.ID, Amount: decimalPtr(amt("100.25")),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := balanceOf(t, repo, "u1", a.ID); !got.Equal(amt("900.25")) {
		t.Fatalf("balance after edit = %s, want 900.25", got)
	}

	// Soft delete reverses, restore re-applies.
	if err := e.SoftDeleteTransaction(ctx, "u1", tx.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if got := balanceOf(t, repo, "u1", a.ID); !got.Equal(amt("1000.50")) {
		t.Fatalf("balance after delete = %s, want 1000.50", got)
	}
	if _, err := e.RestoreTransaction(ctx, "u1", tx.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := balanceOf(t, repo, "u1", a.ID); !got.Equal(amt("900.25")) {
		t.Fatalf("balance after restore = %s, want 900.25", got)
	}
}

func TestTransactionMovesAccounts(t *testing.T) {
	e, repo := newTestEngine(t)
	ctx := context.Background()

	a := mustAccount(t, e, "u1", "A")
	b := mustAccount(t, e, "u1", "B")
	expense := mustCategory(t, repo, "u1", core.CategoryExpense)
	day := core.NewDate(2025, 6, 2)

	tx, err := e.CreateTransaction(ctx, "u1", core.CreateTransactionInput{
		AccountID: a.ID, CategoryID: expense.ID, Type: core.TransactionExpense,
		Amount: amt("40"), Currency: "IDR", OccurredAt: day,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := e.UpdateTransaction(ctx, "u1", core.UpdateTransactionInput{
		ID: tx.ID, AccountID: &b.ID,
	}); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := balanceOf(t, repo, "u1", a.ID); !got.IsZero() {
		t.Fatalf("source balance = %s, want 0", got)
	}
	if got := balanceOf(t, repo, "u1", b.ID); !got.Equal(amt("-40")) {
		t.Fatalf("target balance = %s, want -40", got)
	}
}

func TestOwnershipAndAvailability(t *testing.T) {
	e, repo := newTestEngine(t)
	ctx := context.Background()

	theirs := mustAccount(t, e, "owner", "Theirs")
	expense := mustCategory(t, repo, "intruder", core.CategoryExpense)
	day := core.NewDate(2025, 6, 3)

	// Referencing another user's account in a payload is an ownership
	// violation, not a not-found.
	_, err := e.CreateTransaction(ctx, "intruder", core.CreateTransactionInput{
		AccountID: theirs.ID, CategoryID: expense.ID, Type: core.TransactionExpense,
		Amount: amt("5"), Currency: "IDR", OccurredAt: day,
	})
	if !errors.Is(err, core.ErrOwnership) {
		t.Fatalf("cross-user reference: %v", err)
	}

	// A dangling reference stays a not-found.
	_, err = e.CreateTransaction(ctx, "intruder", core.CreateTransactionInput{
		AccountID: uuid.New().String(), CategoryID: expense.ID, Type: core.TransactionExpense,
		Amount: amt("5"), Currency: "IDR", OccurredAt: day,
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("dangling reference: %v", err)
	}

	// A soft-deleted account is unavailable for new movements.
	mine := mustAccount(t, e, "intruder", "Mine")
	if err := e.SoftDeleteAccount(ctx, "intruder", mine.ID); err != nil {
		t.Fatalf("soft delete account: %v", err)
	}
	_, err = e.CreateTransaction(ctx, "intruder", core.CreateTransactionInput{
		AccountID: mine.ID, CategoryID: expense.ID, Type: core.TransactionExpense,
		Amount: amt("5"), Currency: "IDR", OccurredAt: day,
	})
	if !errors.Is(err, core.ErrAccountUnavailable) {
		t.Fatalf("deleted account: %v", err)
	}
}

func TestCategoryCompatibility(t *testing.T) {
	e, repo := newTestEngine(t)
	ctx := context.Background()

	a := mustAccount(t, e, "u1", "Main")
	income := mustCategory(t, repo, "u1", core.CategoryIncome)

	_, err := e.CreateTransaction(ctx, "u1", core.CreateTransactionInput{
		AccountID: a.ID, CategoryID: income.ID, Type: core.TransactionExpense,
		Amount: amt("5"), Currency: "IDR", OccurredAt: core.NewDate(2025, 6, 4),
	})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("type mismatch: %v", err)
	}
}

func TestTransferAtomicPair(t *testing.T) {
	e, repo := newTestEngine(t)
	ctx := context.Background()

	from := mustAccount(t, e, "u1", "From")
	to := mustAccount(t, e, "u1", "To")
	income := mustCategory(t, repo, "u1", core.CategoryIncome)
	day := core.NewDate(2025, 7, 1)

	if _, err := e.CreateTransaction(ctx, "u1", core.CreateTransactionInput{
		AccountID: from.ID, CategoryID: income.ID, Type: core.TransactionIncome,
		Amount: amt("500"), Currency: "IDR", OccurredAt: day,
	}); err != nil {
		t.Fatalf("fund: %v", err)
	}

	pair, err := e.CreateTransfer(ctx, "u1", core.CreateTransferInput{
		FromAccountID: from.ID, ToAccountID: to.ID,
		Amount: amt("120"), Currency: "IDR", OccurredAt: day,
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if pair.Out.TransferGroupID == nil || pair.In.TransferGroupID == nil ||
		*pair.Out.TransferGroupID != *pair.In.TransferGroupID {
		t.Fatalf("legs not linked: %+v", pair)
	}
	if got := balanceOf(t, repo, "u1", from.ID); !got.Equal(amt("380")) {
		t.Fatalf("from balance = %s", got)
	}
	if got := balanceOf(t, repo, "u1", to.ID); !got.Equal(amt("120")) {
		t.Fatalf("to balance = %s", got)
	}

	// One audit record for the whole transfer, keyed by the group id.
	groupID := *pair.Out.TransferGroupID
	logs, total, err := repo.Queries().ListAuditLogs(ctx, "u1", core.AuditFilter{
		Limit: 10, RecordID: &groupID,
	})
	if err != nil || total != 1 || len(logs) != 1 {
		t.Fatalf("audit for transfer: n=%d total=%d err=%v", len(logs), total, err)
	}

	// An amount edit adjusts both balances by the difference.
	if _, err := e.UpdateTransfer(ctx, "u1", core.UpdateTransferInput{
		TransferGroupID: groupID, Amount: decimalPtr(amt("200")),
	}); err != nil {
		t.Fatalf("update transfer: %v", err)
	}
	if got := balanceOf(t, repo, "u1", from.ID); !got.Equal(amt("300")) {
		t.Fatalf("from after edit = %s", got)
	}
	if got := balanceOf(t, repo, "u1", to.ID); !got.Equal(amt("200")) {
		t.Fatalf("to after edit = %s", got)
	}

	// Soft delete reverses both legs; restore brings both back.
	if err := e.SoftDeleteTransfer(ctx, "u1", groupID); err != nil {
		t.Fatalf("soft delete transfer: %v", err)
	}
	if got := balanceOf(t, repo, "u1", from.ID); !got.Equal(amt("500")) {
		t.Fatalf("from after delete = %s", got)
	}
	if got := balanceOf(t, repo, "u1", to.ID); !got.IsZero() {
		t.Fatalf("to after delete = %s", got)
	}
	if _, err := e.RestoreTransfer(ctx, "u1", groupID); err != nil {
		t.Fatalf("restore transfer: %v", err)
	}
	if got := balanceOf(t, repo, "u1", from.ID); !got.Equal(amt("300")) {
		t.Fatalf("from after restore = %s", got)
	}
}

func TestTransferLegEditRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	from := mustAccount(t, e, "u1", "From")
	to := mustAccount(t, e, "u1", "To")

	pair, err := e.CreateTransfer(ctx, "u1", core.CreateTransferInput{
		FromAccountID: from.ID, ToAccountID: to.ID,
		Amount: amt("10"), Currency: "IDR", OccurredAt: core.NewDate(2025, 7, 2),
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	// Balance-affecting edits must go through the coordinator.
	_, err = e.UpdateTransaction(ctx, "u1", core.UpdateTransactionInput{
		ID: pair.Out.ID, Amount: decimalPtr(amt("99")),
	})
	if !errors.Is(err, core.ErrTransferIntegrity) {
		t.Fatalf("leg amount edit: %v", err)
	}
	if err := e.SoftDeleteTransaction(ctx, "u1", pair.In.ID); !errors.Is(err, core.ErrTransferIntegrity) {
		t.Fatalf("leg delete: %v", err)
	}

	// Display-only edits on a leg are fine.
	note := "monthly top-up"
	updated, err := e.UpdateTransaction(ctx, "u1", core.UpdateTransactionInput{
		ID: pair.Out.ID, Note: &note,
	})
	if err != nil {
		t.Fatalf("leg note edit: %v", err)
	}
	if updated.Note == nil || *updated.Note != note {
		t.Fatalf("note not applied: %+v", updated.Note)
	}
}

func TestRestoreTransferNeedsBothAccounts(t *testing.T) {
	e, repo := newTestEngine(t)
	ctx := context.Background()

	from := mustAccount(t, e, "u1", "From")
	to := mustAccount(t, e, "u1", "To")
	pair, err := e.CreateTransfer(ctx, "u1", core.CreateTransferInput{
		FromAccountID: from.ID, ToAccountID: to.ID,
		Amount: amt("10"), Currency: "IDR", OccurredAt: core.NewDate(2025, 7, 3),
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	groupID := *pair.Out.TransferGroupID

	if err := e.SoftDeleteTransfer(ctx, "u1", groupID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if err := e.SoftDeleteAccount(ctx, "u1", to.ID); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	if _, err := e.RestoreTransfer(ctx, "u1", groupID); !errors.Is(err, core.ErrAccountUnavailable) {
		t.Fatalf("restore with deleted account: %v", err)
	}
	// Neither leg came back.
	got, err := repo.Queries().GetTransferPair(ctx, "u1", groupID)
	if err != nil {
		t.Fatalf("get pair: %v", err)
	}
	if !got.Out.IsDeleted() || !got.In.IsDeleted() {
		t.Fatalf("partial restore: %+v", got)
	}
}

func TestTransferAmountEditNeedsActiveAccounts(t *testing.T) {
	e, repo := newTestEngine(t)
	ctx := context.Background()

	from := mustAccount(t, e, "u1", "From")
	to := mustAccount(t, e, "u1", "To")
	pair, err := e.CreateTransfer(ctx, "u1", core.CreateTransferInput{
		FromAccountID: from.ID, ToAccountID: to.ID,
		Amount: amt("10"), Currency: "IDR", OccurredAt: core.NewDate(2025, 7, 5),
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	groupID := *pair.Out.TransferGroupID

	if err := e.SoftDeleteAccount(ctx, "u1", to.ID); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	// A deleted account's balance is frozen; the amount edit must not move it.
	_, err = e.UpdateTransfer(ctx, "u1", core.UpdateTransferInput{
		TransferGroupID: groupID, Amount: decimalPtr(amt("50")),
	})
	if !errors.Is(err, core.ErrAccountUnavailable) {
		t.Fatalf("amount edit against deleted account: %v", err)
	}
	if got := balanceOf(t, repo, "u1", from.ID); !got.Equal(amt("-10")) {
		t.Fatalf("from balance = %s, want -10", got)
	}
	if got := balanceOf(t, repo, "u1", to.ID); !got.Equal(amt("10")) {
		t.Fatalf("to balance = %s, want 10", got)
	}

	// Display-only edits stay allowed.
	note := "monthly top-up"
	if _, err := e.UpdateTransfer(ctx, "u1", core.UpdateTransferInput{
		TransferGroupID: groupID, Note: &note,
	}); err != nil {
		t.Fatalf("note edit: %v", err)
	}
}

func TestSystemCategoryReserved(t *testing.T) {
	e, repo := newTestEngine(t)
	ctx := context.Background()

	from := mustAccount(t, e, "u1", "From")
	to := mustAccount(t, e, "u1", "To")
	day := core.NewDate(2025, 7, 4)

	// Two transfers share the one lazily created system category.
	first, err := e.CreateTransfer(ctx, "u1", core.CreateTransferInput{
		FromAccountID: from.ID, ToAccountID: to.ID,
		Amount: amt("1"), Currency: "IDR", OccurredAt: day,
	})
	if err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	second, err := e.CreateTransfer(ctx, "u1", core.CreateTransferInput{
		FromAccountID: from.ID, ToAccountID: to.ID,
		Amount: amt("2"), Currency: "IDR", OccurredAt: day,
	})
	if err != nil {
		t.Fatalf("second transfer: %v", err)
	}
	if first.Out.CategoryID != second.Out.CategoryID {
		t.Fatalf("system category recreated: %s vs %s", first.Out.CategoryID, second.Out.CategoryID)
	}

	// It never shows up in listings.
	cats, err := repo.Queries().ListCategories(ctx, "u1")
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	for _, c := range cats {
		if c.IsSystem {
			t.Fatalf("system category listed: %+v", c)
		}
	}
}

func TestReconcileDetectsAndRepairsDrift(t *testing.T) {
	e, repo := newTestEngine(t)
	ctx := context.Background()

	a := mustAccount(t, e, "u1", "Main")
	income := mustCategory(t, repo, "u1", core.CategoryIncome)
	if _, err := e.CreateTransaction(ctx, "u1", core.CreateTransactionInput{
		AccountID: a.ID, CategoryID: income.ID, Type: core.TransactionIncome,
		Amount: amt("250"), Currency: "IDR", OccurredAt: core.NewDate(2025, 8, 1),
	}); err != nil {
		t.Fatalf("income: %v", err)
	}

	drifts, err := e.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(drifts) != 0 {
		t.Fatalf("unexpected drift: %+v", drifts)
	}

	// Corrupt the cached balance behind the engine's back.
	if err := repo.Queries().SetAccountBalance(ctx, "u1", a.ID, 99999); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	drifts, err = e.Reconcile(ctx)
	if err != nil || len(drifts) != 1 {
		t.Fatalf("drift detection: %+v err=%v", drifts, err)
	}
	if !drifts[0].Computed.Equal(amt("250")) {
		t.Fatalf("computed = %s, want 250", drifts[0].Computed)
	}

	repaired, err := e.RepairBalance(ctx, "u1", a.ID)
	if err != nil || !repaired.Equal(amt("250")) {
		t.Fatalf("repair: %s err=%v", repaired, err)
	}
	if got := balanceOf(t, repo, "u1", a.ID); !got.Equal(amt("250")) {
		t.Fatalf("post-repair balance = %s", got)
	}
}

func TestAuditTrailPerMutation(t *testing.T) {
	e, repo := newTestEngine(t)
	ctx := context.Background()

	a := mustAccount(t, e, "u1", "Main")
	expense := mustCategory(t, repo, "u1", core.CategoryExpense)
	tx, err := e.CreateTransaction(ctx, "u1", core.CreateTransactionInput{
		AccountID: a.ID, CategoryID: expense.ID, Type: core.TransactionExpense,
		Amount: amt("30"), Currency: "IDR", OccurredAt: core.NewDate(2025, 8, 2),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := e.SoftDeleteTransaction(ctx, "u1", tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := e.RestoreTransaction(ctx, "u1", tx.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}

	table := "transactions"
	logs, total, err := repo.Queries().ListAuditLogs(ctx, "u1", core.AuditFilter{
		Limit: 10, TableName: &table, RecordID: &tx.ID,
	})
	if err != nil || total != 3 {
		t.Fatalf("audit trail: total=%d err=%v", total, err)
	}
	// Newest first.
	wantActions := []core.AuditAction{core.ActionRestore, core.ActionSoftDelete, core.ActionCreate}
	for i, l := range logs {
		if l.Action != wantActions[i] {
			t.Fatalf("audit[%d] = %s, want %s", i, l.Action, wantActions[i])
		}
	}
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal { return &d }

func TestGetAccountsIncludeDeleted(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	keep := mustAccount(t, e, "u1", "Keep")
	gone := mustAccount(t, e, "u1", "Gone")
	if err := e.SoftDeleteAccount(ctx, "u1", gone.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	visible, err := e.GetAccounts(ctx, "u1", false)
	if err != nil || len(visible) != 1 || visible[0].ID != keep.ID {
		t.Fatalf("visible accounts: %+v err=%v", visible, err)
	}
	all, err := e.GetAccounts(ctx, "u1", true)
	if err != nil || len(all) != 2 {
		t.Fatalf("all accounts: %+v err=%v", all, err)
	}
	for _, a := range all {
		if a.ID == gone.ID && a.DeletedAt == nil {
			t.Fatalf("deleted account missing its deleted_at: %+v", a)
		}
	}
}
