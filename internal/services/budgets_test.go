package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"duit/internal/core"
	"duit/internal/ledger"
	"duit/internal/storage"
)

func newTestDeps(t *testing.T) (*storage.Repository, *ledger.Engine) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo, ledger.NewEngine(repo, nil)
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustExpenseCategory(t *testing.T, repo *storage.Repository, userID string) core.Category {
	t.Helper()
	cats := NewCategoryService(repo, nil)
	c, err := cats.CreateCategory(context.Background(), userID, core.CreateCategoryInput{
		Name: "Groceries", Type: core.CategoryExpense, Color: "#22AA44",
	})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	return c
}

func mustBankAccount(t *testing.T, e *ledger.Engine, userID string) core.Account {
	t.Helper()
	a, err := e.CreateAccount(context.Background(), userID, core.CreateAccountInput{
		Name: "Main", Type: core.AccountBank, Currency: "IDR",
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}

func spend(t *testing.T, e *ledger.Engine, userID, accountID, categoryID, amount string, day core.Date) {
	t.Helper()
	_, err := e.CreateTransaction(context.Background(), userID, core.CreateTransactionInput{
		AccountID: accountID, CategoryID: categoryID, Type: core.TransactionExpense,
		Amount: amt(amount), Currency: "IDR", OccurredAt: day,
	})
	if err != nil {
		t.Fatalf("spend: %v", err)
	}
}

func TestBudgetDuplicateRejected(t *testing.T) {
	repo, _ := newTestDeps(t)
	ctx := context.Background()
	budgets := NewBudgetService(repo, nil)
	c := mustExpenseCategory(t, repo, "u1")
	month := core.NewDate(2025, 3, 1)

	if _, err := budgets.CreateBudget(ctx, "u1", core.CreateBudgetInput{
		CategoryID: c.ID, Month: month, Amount: amt("100"),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := budgets.CreateBudget(ctx, "u1", core.CreateBudgetInput{
		CategoryID: c.ID, Month: month, Amount: amt("200"),
	})
	if !errors.Is(err, core.ErrDuplicateBudget) {
		t.Fatalf("duplicate: %v", err)
	}

	// Mid-month date is rejected before touching storage.
	_, err = budgets.CreateBudget(ctx, "u1", core.CreateBudgetInput{
		CategoryID: c.ID, Month: core.NewDate(2025, 4, 15), Amount: amt("100"),
	})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("mid-month: %v", err)
	}
}

func TestBudgetRollover(t *testing.T) {
	repo, engine := newTestDeps(t)
	ctx := context.Background()
	budgets := NewBudgetService(repo, nil)

	c := mustExpenseCategory(t, repo, "u1")
	a := mustBankAccount(t, engine, "u1")

	jan := core.NewDate(2025, 1, 1)
	feb := jan.AddMonths(1)
	mar := feb.AddMonths(1)

	// January: 100 budgeted with rollover, 40 spent -> 60 carries.
	if _, err := budgets.CreateBudget(ctx, "u1", core.CreateBudgetInput{
		CategoryID: c.ID, Month: jan, Amount: amt("100"), Rollover: true,
	}); err != nil {
		t.Fatalf("jan budget: %v", err)
	}
	spend(t, engine, "u1", a.ID, c.ID, "40", core.NewDate(2025, 1, 20))

	// February: 100 budgeted with rollover -> 160 available; 150 spent.
	if _, err := budgets.CreateBudget(ctx, "u1", core.CreateBudgetInput{
		CategoryID: c.ID, Month: feb, Amount: amt("100"), Rollover: true,
	}); err != nil {
		t.Fatalf("feb budget: %v", err)
	}
	spend(t, engine, "u1", a.ID, c.ID, "150", core.NewDate(2025, 2, 10))

	febProgress, err := budgets.GetBudgets(ctx, "u1", feb)
	if err != nil || len(febProgress) != 1 {
		t.Fatalf("feb progress: %+v err=%v", febProgress, err)
	}
	p := febProgress[0]
	if !p.Budgeted.Equal(amt("160")) {
		t.Fatalf("feb budgeted = %s, want 160", p.Budgeted)
	}
	if !p.Spent.Equal(amt("150")) || !p.Remaining.Equal(amt("10")) {
		t.Fatalf("feb spent/remaining = %s/%s", p.Spent, p.Remaining)
	}

	// March: 50 budgeted; Feb left 10 unspent -> 60 available. An
	// overspent month would carry zero, never a deficit.
	if _, err := budgets.CreateBudget(ctx, "u1", core.CreateBudgetInput{
		CategoryID: c.ID, Month: mar, Amount: amt("50"), Rollover: true,
	}); err != nil {
		t.Fatalf("mar budget: %v", err)
	}
	spend(t, engine, "u1", a.ID, c.ID, "60", core.NewDate(2025, 3, 5))

	marProgress, err := budgets.GetBudgets(ctx, "u1", mar)
	if err != nil || len(marProgress) != 1 {
		t.Fatalf("mar progress: %+v err=%v", marProgress, err)
	}
	p = marProgress[0]
	if !p.Budgeted.Equal(amt("60")) {
		t.Fatalf("mar budgeted = %s, want 60", p.Budgeted)
	}
	if !p.FullyConsumed {
		t.Fatalf("mar should be fully consumed: %+v", p)
	}
}

func TestBudgetRolloverSkipsGap(t *testing.T) {
	repo, engine := newTestDeps(t)
	ctx := context.Background()
	budgets := NewBudgetService(repo, nil)

	c := mustExpenseCategory(t, repo, "u1")
	_ = mustBankAccount(t, engine, "u1")

	// A rollover budget with no prior-month row starts from its own amount.
	may := core.NewDate(2025, 5, 1)
	if _, err := budgets.CreateBudget(ctx, "u1", core.CreateBudgetInput{
		CategoryID: c.ID, Month: may, Amount: amt("80"), Rollover: true,
	}); err != nil {
		t.Fatalf("may budget: %v", err)
	}
	progress, err := budgets.GetBudgets(ctx, "u1", may)
	if err != nil || len(progress) != 1 {
		t.Fatalf("progress: %+v err=%v", progress, err)
	}
	if !progress[0].Budgeted.Equal(amt("80")) {
		t.Fatalf("budgeted = %s, want 80", progress[0].Budgeted)
	}
}

func TestBudgetZeroAvailable(t *testing.T) {
	repo, engine := newTestDeps(t)
	ctx := context.Background()
	budgets := NewBudgetService(repo, nil)

	c := mustExpenseCategory(t, repo, "u1")
	a := mustBankAccount(t, engine, "u1")

	jun := core.NewDate(2025, 6, 1)
	if _, err := budgets.CreateBudget(ctx, "u1", core.CreateBudgetInput{
		CategoryID: c.ID, Month: jun, Amount: amt("0"),
	}); err != nil {
		t.Fatalf("budget: %v", err)
	}
	spend(t, engine, "u1", a.ID, c.ID, "5", core.NewDate(2025, 6, 2))

	progress, err := budgets.GetBudgets(ctx, "u1", jun)
	if err != nil || len(progress) != 1 {
		t.Fatalf("progress: %+v err=%v", progress, err)
	}
	p := progress[0]
	if !p.FullyConsumed || !p.Percentage.IsZero() {
		t.Fatalf("zero budget progress: %+v", p)
	}
}
