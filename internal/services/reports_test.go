package services

import (
	"context"
	"testing"
	"time"

	"duit/internal/core"
)

func TestDashboardSummary(t *testing.T) {
	repo, engine := newTestDeps(t)
	ctx := context.Background()

	budgets := NewBudgetService(repo, nil)
	goals := NewGoalService(repo, nil)
	reports := NewReportService(repo, budgets, goals, 10, time.Minute)

	a := mustBankAccount(t, engine, "u1")
	expense := mustExpenseCategory(t, repo, "u1")
	income, err := NewCategoryService(repo, nil).CreateCategory(ctx, "u1", core.CreateCategoryInput{
		Name: "Salary", Type: core.CategoryIncome, Color: "#00AA00",
	})
	if err != nil {
		t.Fatalf("income category: %v", err)
	}

	today := core.Today()
	if _, err := engine.CreateTransaction(ctx, "u1", core.CreateTransactionInput{
		AccountID: a.ID, CategoryID: income.ID, Type: core.TransactionIncome,
		Amount: amt("1000"), Currency: "IDR", OccurredAt: today,
	}); err != nil {
		t.Fatalf("income: %v", err)
	}
	spend(t, engine, "u1", a.ID, expense.ID, "250", today)

	if _, err := goals.CreateGoal(ctx, "u1", core.CreateGoalInput{
		Name: "Emergency fund", TargetAmount: amt("2000"), CurrentAmount: amt("500"),
		Deadline: today.AddMonths(6),
	}); err != nil {
		t.Fatalf("goal: %v", err)
	}

	summary, err := reports.GetDashboardSummary(ctx, "u1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !summary.TotalBalance.Equal(amt("750")) {
		t.Fatalf("total balance = %s, want 750", summary.TotalBalance)
	}
	if !summary.MonthlyIncome.Equal(amt("1000")) || !summary.MonthlyExpense.Equal(amt("250")) {
		t.Fatalf("monthly income/expense = %s/%s", summary.MonthlyIncome, summary.MonthlyExpense)
	}
	if !summary.NetCashflow.Equal(amt("750")) {
		t.Fatalf("net cashflow = %s", summary.NetCashflow)
	}
	if len(summary.TopCategories) != 1 || summary.TopCategories[0].CategoryName != "Groceries" {
		t.Fatalf("top categories: %+v", summary.TopCategories)
	}
	if !summary.TopCategories[0].Percentage.Equal(amt("100")) {
		t.Fatalf("category share = %s", summary.TopCategories[0].Percentage)
	}
	if len(summary.GoalsProgress) != 1 || !summary.GoalsProgress[0].Percentage.Equal(amt("25")) {
		t.Fatalf("goals progress: %+v", summary.GoalsProgress)
	}

	// Cached: a new expense is not visible until the TTL lapses.
	spend(t, engine, "u1", a.ID, expense.ID, "100", today)
	again, err := reports.GetDashboardSummary(ctx, "u1")
	if err != nil {
		t.Fatalf("cached summary: %v", err)
	}
	if !again.MonthlyExpense.Equal(amt("250")) {
		t.Fatalf("cached expense = %s, want 250", again.MonthlyExpense)
	}
}

func TestGetReports(t *testing.T) {
	repo, engine := newTestDeps(t)
	ctx := context.Background()

	budgets := NewBudgetService(repo, nil)
	goals := NewGoalService(repo, nil)
	reports := NewReportService(repo, budgets, goals, 10, time.Minute)

	a := mustBankAccount(t, engine, "u1")
	expense := mustExpenseCategory(t, repo, "u1")
	income, err := NewCategoryService(repo, nil).CreateCategory(ctx, "u1", core.CreateCategoryInput{
		Name: "Salary", Type: core.CategoryIncome, Color: "#00AA00",
	})
	if err != nil {
		t.Fatalf("income category: %v", err)
	}

	if _, err := engine.CreateTransaction(ctx, "u1", core.CreateTransactionInput{
		AccountID: a.ID, CategoryID: income.ID, Type: core.TransactionIncome,
		Amount: amt("300"), Currency: "IDR", OccurredAt: core.NewDate(2025, 1, 10),
	}); err != nil {
		t.Fatalf("income: %v", err)
	}
	spend(t, engine, "u1", a.ID, expense.ID, "120", core.NewDate(2025, 1, 10))
	spend(t, engine, "u1", a.ID, expense.ID, "80", core.NewDate(2025, 2, 5))

	from := core.NewDate(2025, 1, 1)
	to := core.NewDate(2025, 2, 28)

	report, err := reports.GetReports(ctx, "u1", from, to, nil)
	if err != nil {
		t.Fatalf("reports: %v", err)
	}

	if len(report.Cashflow) != 2 {
		t.Fatalf("cashflow points: %+v", report.Cashflow)
	}
	first := report.Cashflow[0]
	if !first.Date.Equal(core.NewDate(2025, 1, 10)) || !first.Net.Equal(amt("180")) {
		t.Fatalf("first cashflow point: %+v", first)
	}

	if len(report.CategoryDistribution) != 1 {
		t.Fatalf("distribution: %+v", report.CategoryDistribution)
	}
	slice := report.CategoryDistribution[0]
	if !slice.Amount.Equal(amt("200")) || !slice.Percentage.Equal(amt("100")) {
		t.Fatalf("distribution slice: %+v", slice)
	}

	if len(report.MonthlyTrend) != 2 {
		t.Fatalf("trend: %+v", report.MonthlyTrend)
	}
	if report.MonthlyTrend[0].Month != "2025-01" || !report.MonthlyTrend[0].Net.Equal(amt("180")) {
		t.Fatalf("january trend: %+v", report.MonthlyTrend[0])
	}
	if report.MonthlyTrend[1].Month != "2025-02" || !report.MonthlyTrend[1].Expense.Equal(amt("80")) {
		t.Fatalf("february trend: %+v", report.MonthlyTrend[1])
	}

	// Transfers never show up in reports.
	other, err := engine.CreateAccount(ctx, "u1", core.CreateAccountInput{
		Name: "Savings", Type: core.AccountBank, Currency: "IDR",
	})
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if _, err := engine.CreateTransfer(ctx, "u1", core.CreateTransferInput{
		FromAccountID: a.ID, ToAccountID: other.ID,
		Amount: amt("50"), Currency: "IDR", OccurredAt: core.NewDate(2025, 2, 6),
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	report, err = reports.GetReports(ctx, "u1", from, to, []core.ReportKind{core.ReportMonthlyTrend})
	if err != nil {
		t.Fatalf("reports after transfer: %v", err)
	}
	if !report.MonthlyTrend[1].Expense.Equal(amt("80")) {
		t.Fatalf("transfer leaked into trend: %+v", report.MonthlyTrend[1])
	}

	// Bad ranges are rejected.
	if _, err := reports.GetReports(ctx, "u1", to, from, nil); err == nil {
		t.Fatal("inverted range accepted")
	}
}
