package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"duit/internal/audit"
	"duit/internal/core"
	"duit/internal/events"
	"duit/internal/storage"
)

// BudgetService manages per-category monthly budgets and computes budget
// progress, including the rollover chain: a rollover budget carries its
// unspent remainder into the next month's available amount, never a deficit.
type BudgetService struct {
	repo *storage.Repository
	pub  events.Publisher
}

func NewBudgetService(repo *storage.Repository, pub events.Publisher) *BudgetService {
	return &BudgetService{repo: repo, pub: pub}
}

// resolveOwnedCategory distinguishes a cross-user category reference from a
// dangling one, same as the ledger engine does for transactions.
func resolveOwnedCategory(ctx context.Context, q *storage.Queries, userID, id string) (core.Category, error) {
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

func (s *BudgetService) CreateBudget(ctx context.Context, userID string, in core.CreateBudgetInput) (core.Budget, error) {
	if err := in.Validate(); err != nil {
		return core.Budget{}, err
	}

	b := core.Budget{
		ID:         uuid.New().String(),
		UserID:     userID,
		CategoryID: in.CategoryID,
		Month:      in.Month,
		Amount:     in.Amount.Round(2),
		Rollover:   in.Rollover,
		CreatedAt:  time.Now(),
	}
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		if _, err := resolveOwnedCategory(ctx, q, userID, in.CategoryID); err != nil {
			return err
		}
		if err := q.CreateBudget(ctx, b); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionCreate, "budgets", b.ID, audit.Snapshot(b))
	})
	if err != nil {
		return core.Budget{}, err
	}

	emit(ctx, s.pub, "budgets", core.ActionCreate, b.ID, userID)
	return b, nil
}

func (s *BudgetService) UpdateBudget(ctx context.Context, userID string, in core.UpdateBudgetInput) (core.Budget, error) {
	if err := in.Validate(); err != nil {
		return core.Budget{}, err
	}

	var updated core.Budget
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		before, err := q.GetBudget(ctx, userID, in.ID)
		if err != nil {
			return err
		}

		updated = before
		if in.Amount != nil {
			updated.Amount = in.Amount.Round(2)
		}
		if in.Rollover != nil {
			updated.Rollover = *in.Rollover
		}
		if err := q.UpdateBudget(ctx, updated); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionUpdate, "budgets", in.ID, audit.Diff(before, updated))
	})
	if err != nil {
		return core.Budget{}, err
	}

	emit(ctx, s.pub, "budgets", core.ActionUpdate, in.ID, userID)
	return updated, nil
}

// DeleteBudget removes the budget row outright. Budgets hold no history of
// their own, so this is a hard delete.
func (s *BudgetService) DeleteBudget(ctx context.Context, userID, id string) error {
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		b, err := q.GetBudget(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := q.DeleteBudget(ctx, userID, id); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionDelete, "budgets", id, audit.Snapshot(b))
	})
	if err != nil {
		return err
	}

	emit(ctx, s.pub, "budgets", core.ActionDelete, id, userID)
	return nil
}

// availableCents is the budget's effective amount for its month: the base
// amount plus, for rollover budgets, whatever the previous month's budget
// left unspent. The chain walks back while consecutive monthly rows exist;
// overspending carries nothing forward.
func (s *BudgetService) availableCents(ctx context.Context, q *storage.Queries, b core.Budget) (int64, error) {
	base := core.Cents(b.Amount)
	if !b.Rollover {
		return base, nil
	}
	prev, err := q.GetBudgetByCategoryMonth(ctx, b.UserID, b.CategoryID, b.Month.AddMonths(-1))
	if errors.Is(err, core.ErrNotFound) {
		return base, nil
	}
	if err != nil {
		return 0, err
	}
	prevAvailable, err := s.availableCents(ctx, q, prev)
	if err != nil {
		return 0, err
	}
	prevSpent, err := q.SumCategoryExpense(ctx, b.UserID, b.CategoryID, prev.Month, prev.Month.AddMonths(1))
	if err != nil {
		return 0, err
	}
	carried := prevAvailable - prevSpent
	if carried < 0 {
		carried = 0
	}
	return base + carried, nil
}

// GetBudgets reports budget consumption for one month. Budgeted is the
// effective available amount including any rolled-over remainder.
func (s *BudgetService) GetBudgets(ctx context.Context, userID string, month core.Date) ([]core.BudgetProgress, error) {
	q := s.repo.Queries()
	budgets, err := q.ListBudgetsByMonth(ctx, userID, month.FirstOfMonth())
	if err != nil {
		return nil, err
	}

	progress := make([]core.BudgetProgress, 0, len(budgets))
	for _, b := range budgets {
		category, err := q.GetCategory(ctx, userID, b.CategoryID)
		if err != nil {
			return nil, err
		}
		availableCents, err := s.availableCents(ctx, q, b)
		if err != nil {
			return nil, err
		}
		spentCents, err := q.SumCategoryExpense(ctx, userID, b.CategoryID, b.Month, b.Month.AddMonths(1))
		if err != nil {
			return nil, err
		}

		available := core.FromCents(availableCents)
		spent := core.FromCents(spentCents)
		p := core.BudgetProgress{
			CategoryName: category.Name,
			Budgeted:     available,
			Spent:        spent,
			Remaining:    available.Sub(spent),
		}
		if available.IsZero() {
			// Nothing to divide by; any spending means the budget is gone.
			p.FullyConsumed = spent.Sign() > 0
			p.Percentage = decimal.Zero
		} else {
			p.Percentage = spent.Div(available).Mul(decimal.NewFromInt(100)).Round(2)
			p.FullyConsumed = spent.GreaterThanOrEqual(available)
		}
		progress = append(progress, p)
	}
	return progress, nil
}
