package core

import "github.com/shopspring/decimal"

// Read-side aggregate shapes. All of them exclude soft-deleted rows and are
// computed at read time; none carry invariants of their own.

// CategoryAmount is an amount aggregated by category name with its share of
// the aggregate total.
type CategoryAmount struct {
	CategoryName string          `json:"category_name"`
	Amount       decimal.Decimal `json:"amount"`
	Percentage   decimal.Decimal `json:"percentage"`
}

// BudgetProgress is one category's budget consumption for a month.
// FullyConsumed is set instead of dividing by a zero available amount.
type BudgetProgress struct {
	CategoryName  string          `json:"category_name"`
	Budgeted      decimal.Decimal `json:"budgeted"`
	Spent         decimal.Decimal `json:"spent"`
	Remaining     decimal.Decimal `json:"remaining"`
	Percentage    decimal.Decimal `json:"percentage"`
	FullyConsumed bool            `json:"fully_consumed"`
}

// GoalProgress reports a goal's user-adjusted progress counter against its
// target.
type GoalProgress struct {
	GoalName      string          `json:"goal_name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	Percentage    decimal.Decimal `json:"percentage"`
	Deadline      Date            `json:"deadline"`
}

// DashboardSummary is the one-call overview for the current month.
type DashboardSummary struct {
	TotalBalance   decimal.Decimal  `json:"total_balance"`
	MonthlyIncome  decimal.Decimal  `json:"monthly_income"`
	MonthlyExpense decimal.Decimal  `json:"monthly_expense"`
	NetCashflow    decimal.Decimal  `json:"net_cashflow"`
	TopCategories  []CategoryAmount `json:"top_categories"`
	BudgetProgress []BudgetProgress `json:"budget_progress"`
	GoalsProgress  []GoalProgress   `json:"goals_progress"`
}

// CashflowPoint is one day's income/expense/net inside a report range.
type CashflowPoint struct {
	Date    Date            `json:"date"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// CategorySlice is one category's share of total expense, with its display
// color for chart rendering.
type CategorySlice struct {
	CategoryName string          `json:"category_name"`
	Amount       decimal.Decimal `json:"amount"`
	Percentage   decimal.Decimal `json:"percentage"`
	Color        string          `json:"color"`
}

// TrendPoint is one month's income/expense/net inside a report range.
type TrendPoint struct {
	Month   string          `json:"month"` // YYYY-MM
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// ReportKind selects which report sections GetReports computes.
type ReportKind string

const (
	ReportCashflow             ReportKind = "cashflow"
	ReportCategoryDistribution ReportKind = "category_distribution"
	ReportMonthlyTrend         ReportKind = "monthly_trend"
)

func (k ReportKind) Valid() bool {
	switch k {
	case ReportCashflow, ReportCategoryDistribution, ReportMonthlyTrend:
		return true
	}
	return false
}

// Report holds the requested sections; unselected ones stay nil.
type Report struct {
	Cashflow             []CashflowPoint `json:"cashflow,omitempty"`
	CategoryDistribution []CategorySlice `json:"category_distribution,omitempty"`
	MonthlyTrend         []TrendPoint    `json:"monthly_trend,omitempty"`
}
