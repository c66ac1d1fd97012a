package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"duit/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedAccount(t *testing.T, q *Queries, userID string) core.Account {
	t.Helper()
	a := core.Account{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      "Checking",
		Type:      core.AccountBank,
		Balance:   decimal.Zero,
		Currency:  "IDR",
		CreatedAt: time.Now(),
	}
	if err := q.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return a
}

func seedCategory(t *testing.T, q *Queries, userID string, typ core.CategoryType) core.Category {
	t.Helper()
	c := core.Category{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      "Groceries",
		Type:      typ,
		Color:     "#FF8800",
		CreatedAt: time.Now(),
	}
	if err := q.CreateCategory(context.Background(), c); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return c
}

func seedTransaction(t *testing.T, q *Queries, userID, accountID, categoryID string, typ core.TransactionType, amount string, day core.Date) core.Transaction {
	t.Helper()
	tx := core.Transaction{
		ID:         uuid.New().String(),
		UserID:     userID,
		AccountID:  accountID,
		CategoryID: categoryID,
		Type:       typ,
		Amount:     decimal.RequireFromString(amount),
		Currency:   "IDR",
		OccurredAt: day,
		Tags:       []string{},
		CreatedAt:  time.Now(),
	}
	if err := q.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return tx
}

func TestAccountLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()

	a := seedAccount(t, q, "user-1")

	got, err := q.GetAccount(ctx, "user-1", a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Checking" || !got.Balance.IsZero() {
		t.Fatalf("unexpected account %+v", got)
	}

	// Scoped lookup by another user does not see the row.
	if _, err := q.GetAccount(ctx, "user-2", a.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("cross-user get: %v", err)
	}
	// Unscoped existence check does.
	exists, err := q.AccountExists(ctx, a.ID)
	if err != nil || !exists {
		t.Fatalf("exists = %v, err = %v", exists, err)
	}

	if err := q.AddAccountBalance(ctx, "user-1", a.ID, 12345); err != nil {
		t.Fatalf("add balance: %v", err)
	}
	if err := q.AddAccountBalance(ctx, "user-1", a.ID, -345); err != nil {
		t.Fatalf("subtract balance: %v", err)
	}
	got, _ = q.GetAccount(ctx, "user-1", a.ID)
	if !got.Balance.Equal(decimal.RequireFromString("120")) {
		t.Fatalf("balance = %s, want 120", got.Balance)
	}

	now := time.Now()
	if err := q.SetAccountDeleted(ctx, "user-1", a.ID, &now); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	active, err := q.ListAccounts(ctx, "user-1", false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("deleted account still listed: %+v", active)
	}
	all, err := q.ListAccounts(ctx, "user-1", true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 || all[0].DeletedAt == nil {
		t.Fatalf("deleted account not listed with includeDeleted: %+v", all)
	}
	// Still fetchable individually for restore.
	got, err = q.GetAccount(ctx, "user-1", a.ID)
	if err != nil || got.DeletedAt == nil {
		t.Fatalf("deleted account fetch: %+v, %v", got, err)
	}
}

func TestDuplicateBudget(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()

	c := seedCategory(t, q, "user-1", core.CategoryExpense)
	month := core.NewDate(2025, 3, 1)
	b := core.Budget{
		ID:         uuid.New().String(),
		UserID:     "user-1",
		CategoryID: c.ID,
		Month:      month,
		Amount:     decimal.RequireFromString("100"),
		CreatedAt:  time.Now(),
	}
	if err := q.CreateBudget(ctx, b); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := b
	dup.ID = uuid.New().String()
	if err := q.CreateBudget(ctx, dup); !errors.Is(err, core.ErrDuplicateBudget) {
		t.Fatalf("duplicate create: %v", err)
	}

	// Same category, different month is fine.
	other := b
	other.ID = uuid.New().String()
	other.Month = month.AddMonths(1)
	if err := q.CreateBudget(ctx, other); err != nil {
		t.Fatalf("next month create: %v", err)
	}
}

func TestGetTransferPair(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()

	from := seedAccount(t, q, "user-1")
	to := seedAccount(t, q, "user-1")
	c := seedCategory(t, q, "user-1", core.CategoryExpense)
	groupID := uuid.New().String()
	day := core.NewDate(2025, 4, 10)

	out := seedTransactionLeg(t, q, "user-1", from.ID, c.ID, core.TransactionTransferOut, groupID, day)
	in := seedTransactionLeg(t, q, "user-1", to.ID, c.ID, core.TransactionTransferIn, groupID, day)

	pair, err := q.GetTransferPair(ctx, "user-1", groupID)
	if err != nil {
		t.Fatalf("get pair: %v", err)
	}
	if pair.Out.ID != out.ID || pair.In.ID != in.ID {
		t.Fatalf("legs misassigned: out=%s in=%s", pair.Out.ID, pair.In.ID)
	}

	if _, err := q.GetTransferPair(ctx, "user-1", uuid.New().String()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing pair: %v", err)
	}

	// A lone leg is a broken pair, not a missing one.
	loneGroup := uuid.New().String()
	seedTransactionLeg(t, q, "user-1", from.ID, c.ID, core.TransactionTransferOut, loneGroup, day)
	if _, err := q.GetTransferPair(ctx, "user-1", loneGroup); !errors.Is(err, core.ErrTransferIntegrity) {
		t.Fatalf("single leg: %v", err)
	}
}

func seedTransactionLeg(t *testing.T, q *Queries, userID, accountID, categoryID string, typ core.TransactionType, groupID string, day core.Date) core.Transaction {
	t.Helper()
	tx := core.Transaction{
		ID:              uuid.New().String(),
		UserID:          userID,
		AccountID:       accountID,
		CategoryID:      categoryID,
		Type:            typ,
		Amount:          decimal.RequireFromString("50"),
		Currency:        "IDR",
		OccurredAt:      day,
		Tags:            []string{},
		TransferGroupID: &groupID,
		CreatedAt:       time.Now(),
	}
	if err := q.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatalf("seed transfer leg: %v", err)
	}
	return tx
}

func TestListTransactionsFilter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()

	a := seedAccount(t, q, "user-1")
	c := seedCategory(t, q, "user-1", core.CategoryExpense)

	jan := core.NewDate(2025, 1, 10)
	feb := core.NewDate(2025, 2, 10)

	first := seedTransaction(t, q, "user-1", a.ID, c.ID, core.TransactionExpense, "10", jan)
	tagged := core.Transaction{
		ID:         uuid.New().String(),
		UserID:     "user-1",
		AccountID:  a.ID,
		CategoryID: c.ID,
		Type:       core.TransactionExpense,
		Amount:     decimal.RequireFromString("20"),
		Currency:   "IDR",
		OccurredAt: feb,
		Tags:       []string{"food", "work"},
		CreatedAt:  time.Now(),
	}
	if err := q.CreateTransaction(ctx, tagged); err != nil {
		t.Fatalf("create tagged: %v", err)
	}

	all, total, err := q.ListTransactions(ctx, "user-1", core.TransactionFilter{Limit: 10})
	if err != nil || total != 2 || len(all) != 2 {
		t.Fatalf("list all: n=%d total=%d err=%v", len(all), total, err)
	}
	// Newest occurrence first.
	if all[0].ID != tagged.ID {
		t.Fatalf("order: got %s first", all[0].ID)
	}

	from := core.NewDate(2025, 2, 1)
	ranged, total, err := q.ListTransactions(ctx, "user-1", core.TransactionFilter{Limit: 10, DateFrom: &from})
	if err != nil || total != 1 || ranged[0].ID != tagged.ID {
		t.Fatalf("date filter: %+v total=%d err=%v", ranged, total, err)
	}

	byTag, total, err := q.ListTransactions(ctx, "user-1", core.TransactionFilter{Limit: 10, Tags: []string{"food"}})
	if err != nil || total != 1 || byTag[0].ID != tagged.ID {
		t.Fatalf("tag filter: %+v total=%d err=%v", byTag, total, err)
	}
	if len(byTag[0].Tags) != 2 || byTag[0].Tags[0] != "food" {
		t.Fatalf("tags round trip: %+v", byTag[0].Tags)
	}

	// Soft-deleted rows drop out of both the page and the total.
	now := time.Now()
	if err := q.SetTransactionDeleted(ctx, "user-1", first.ID, &now); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	left, total, err := q.ListTransactions(ctx, "user-1", core.TransactionFilter{Limit: 10})
	if err != nil || total != 1 || len(left) != 1 {
		t.Fatalf("post delete list: n=%d total=%d err=%v", len(left), total, err)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.InTx(ctx, func(q *Queries) error {
		seedAccount(t, q, "user-1")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx error: %v", err)
	}

	accounts, err := repo.Queries().ListAccounts(ctx, "user-1", true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != 0 {
		t.Fatalf("rolled-back insert is visible: %+v", accounts)
	}
}

func TestAdvanceRuleNextRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()

	rule := core.RecurringRule{
		ID:     uuid.New().String(),
		UserID: "user-1",
		Template: core.TransactionTemplate{
			Type:       core.TransactionExpense,
			AccountID:  "acc",
			CategoryID: "cat",
			Amount:     decimal.RequireFromString("9.99"),
			Currency:   "IDR",
		},
		Schedule:  "FREQ=MONTHLY;BYMONTHDAY=1",
		NextRun:   core.NewDate(2025, 5, 1),
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := q.CreateRule(ctx, rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	moved, err := q.AdvanceRuleNextRun(ctx, "user-1", rule.ID, core.NewDate(2025, 5, 1), core.NewDate(2025, 6, 1))
	if err != nil || !moved {
		t.Fatalf("first advance: moved=%v err=%v", moved, err)
	}
	// Second advance against the stale previous value is a no-op.
	moved, err = q.AdvanceRuleNextRun(ctx, "user-1", rule.ID, core.NewDate(2025, 5, 1), core.NewDate(2025, 7, 1))
	if err != nil || moved {
		t.Fatalf("stale advance: moved=%v err=%v", moved, err)
	}

	got, err := q.GetRule(ctx, "user-1", rule.ID)
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}
	if !got.NextRun.Equal(core.NewDate(2025, 6, 1)) {
		t.Fatalf("next_run = %s", got.NextRun)
	}
	if got.Template.Amount.String() != "9.99" {
		t.Fatalf("template round trip: %+v", got.Template)
	}
}
