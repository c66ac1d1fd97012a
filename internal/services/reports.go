package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"duit/internal/cache"
	"duit/internal/core"
	"duit/internal/storage"
)

const topCategoryCount = 5

// ReportService builds the read-side aggregates: the dashboard summary and
// the range reports. Everything is computed from non-deleted rows at read
// time; the dashboard is cached per user with a short TTL since it backs the
// most frequent call.
type ReportService struct {
	repo    *storage.Repository
	budgets *BudgetService
	goals   *GoalService
	summary cache.Cache[core.DashboardSummary]
}

func NewReportService(repo *storage.Repository, budgets *BudgetService, goals *GoalService, cacheSize int, cacheTTL time.Duration) *ReportService {
	return &ReportService{
		repo:    repo,
		budgets: budgets,
		goals:   goals,
		summary: cache.NewLRUCache[core.DashboardSummary](cacheSize, cacheTTL),
	}
}

// GetDashboardSummary is the one-call overview for the current month.
func (s *ReportService) GetDashboardSummary(ctx context.Context, userID string) (core.DashboardSummary, error) {
	if cached, ok := s.summary.Get(userID); ok {
		return cached, nil
	}

	q := s.repo.Queries()
	monthStart := core.Today().FirstOfMonth()
	monthEnd := monthStart.AddMonths(1)

	balanceCents, err := q.TotalActiveBalance(ctx, userID)
	if err != nil {
		return core.DashboardSummary{}, err
	}
	incomeCents, expenseCents, err := q.IncomeExpenseTotals(ctx, userID, monthStart, monthEnd)
	if err != nil {
		return core.DashboardSummary{}, err
	}

	categoryRows, err := q.CategoryExpenseTotals(ctx, userID, monthStart, monthEnd)
	if err != nil {
		return core.DashboardSummary{}, err
	}
	if len(categoryRows) > topCategoryCount {
		categoryRows = categoryRows[:topCategoryCount]
	}
	topCategories := make([]core.CategoryAmount, 0, len(categoryRows))
	for _, row := range categoryRows {
		topCategories = append(topCategories, core.CategoryAmount{
			CategoryName: row.CategoryName,
			Amount:       core.FromCents(row.Cents),
			Percentage:   percentage(row.Cents, expenseCents),
		})
	}

	budgetProgress, err := s.budgets.GetBudgets(ctx, userID, monthStart)
	if err != nil {
		return core.DashboardSummary{}, err
	}

	goals, err := s.goals.GetGoals(ctx, userID, false)
	if err != nil {
		return core.DashboardSummary{}, err
	}
	goalsProgress := make([]core.GoalProgress, 0, len(goals))
	for _, g := range goals {
		p := core.GoalProgress{
			GoalName:      g.Name,
			TargetAmount:  g.TargetAmount,
			CurrentAmount: g.CurrentAmount,
			Deadline:      g.Deadline,
		}
		if g.TargetAmount.Sign() > 0 {
			p.Percentage = g.CurrentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100)).Round(2)
		}
		goalsProgress = append(goalsProgress, p)
	}

	income := core.FromCents(incomeCents)
	expense := core.FromCents(expenseCents)
	out := core.DashboardSummary{
		TotalBalance:   core.FromCents(balanceCents),
		MonthlyIncome:  income,
		MonthlyExpense: expense,
		NetCashflow:    income.Sub(expense),
		TopCategories:  topCategories,
		BudgetProgress: budgetProgress,
		GoalsProgress:  goalsProgress,
	}
	s.summary.Set(userID, out)
	return out, nil
}

// GetReports computes the requested report sections over [from, to],
// inclusive on both ends.
func (s *ReportService) GetReports(ctx context.Context, userID string, from, to core.Date, kinds []core.ReportKind) (core.Report, error) {
	if from.IsZero() || to.IsZero() {
		return core.Report{}, fmt.Errorf("%w: report range is required", core.ErrValidation)
	}
	if to.Before(from.Time) {
		return core.Report{}, fmt.Errorf("%w: report range end precedes start", core.ErrValidation)
	}
	if len(kinds) == 0 {
		kinds = []core.ReportKind{core.ReportCashflow, core.ReportCategoryDistribution, core.ReportMonthlyTrend}
	}

	q := s.repo.Queries()
	var out core.Report
	for _, kind := range kinds {
		switch kind {
		case core.ReportCashflow:
			rows, err := q.CashflowByDay(ctx, userID, from, to)
			if err != nil {
				return core.Report{}, err
			}
			points := make([]core.CashflowPoint, 0, len(rows))
			for _, row := range rows {
				day, err := core.ParseDate(row.Day)
				if err != nil {
					return core.Report{}, err
				}
				income := core.FromCents(row.Income)
				expense := core.FromCents(row.Expense)
				points = append(points, core.CashflowPoint{
					Date:    day,
					Income:  income,
					Expense: expense,
					Net:     income.Sub(expense),
				})
			}
			out.Cashflow = points

		case core.ReportCategoryDistribution:
			rows, err := q.CategoryExpenseTotals(ctx, userID, from, to.AddDays(1))
			if err != nil {
				return core.Report{}, err
			}
			var total int64
			for _, row := range rows {
				total += row.Cents
			}
			slices := make([]core.CategorySlice, 0, len(rows))
			for _, row := range rows {
				slices = append(slices, core.CategorySlice{
					CategoryName: row.CategoryName,
					Amount:       core.FromCents(row.Cents),
					Percentage:   percentage(row.Cents, total),
					Color:        row.Color,
				})
			}
			out.CategoryDistribution = slices

		case core.ReportMonthlyTrend:
			rows, err := q.MonthlyTrend(ctx, userID, from, to)
			if err != nil {
				return core.Report{}, err
			}
			points := make([]core.TrendPoint, 0, len(rows))
			for _, row := range rows {
				income := core.FromCents(row.Income)
				expense := core.FromCents(row.Expense)
				points = append(points, core.TrendPoint{
					Month:   row.Month,
					Income:  income,
					Expense: expense,
					Net:     income.Sub(expense),
				})
			}
			out.MonthlyTrend = points

		default:
			return core.Report{}, fmt.Errorf("%w: unknown report kind %q", core.ErrValidation, kind)
		}
	}
	return out, nil
}

// percentage is part/whole as a two-decimal percent, zero when the whole is
// zero.
func percentage(part, whole int64) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	return decimal.New(part, 0).Div(decimal.New(whole, 0)).Mul(decimal.NewFromInt(100)).Round(2)
}
