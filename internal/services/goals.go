package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"duit/internal/audit"
	"duit/internal/core"
	"duit/internal/events"
	"duit/internal/storage"
)

// GoalService manages savings goals. Goal progress is a user-adjusted
// counter; it is never derived from transactions.
type GoalService struct {
	repo *storage.Repository
	pub  events.Publisher
}

func NewGoalService(repo *storage.Repository, pub events.Publisher) *GoalService {
	return &GoalService{repo: repo, pub: pub}
}

func (s *GoalService) CreateGoal(ctx context.Context, userID string, in core.CreateGoalInput) (core.Goal, error) {
	if err := in.Validate(); err != nil {
		return core.Goal{}, err
	}

	g := core.Goal{
		ID:            uuid.New().String(),
		UserID:        userID,
		Name:          in.Name,
		TargetAmount:  in.TargetAmount.Round(2),
		CurrentAmount: in.CurrentAmount.Round(2),
		Deadline:      in.Deadline,
		CreatedAt:     time.Now(),
	}
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		if err := q.CreateGoal(ctx, g); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionCreate, "goals", g.ID, audit.Snapshot(g))
	})
	if err != nil {
		return core.Goal{}, err
	}

	emit(ctx, s.pub, "goals", core.ActionCreate, g.ID, userID)
	return g, nil
}

func (s *GoalService) UpdateGoal(ctx context.Context, userID string, in core.UpdateGoalInput) (core.Goal, error) {
	if err := in.Validate(); err != nil {
		return core.Goal{}, err
	}

	var updated core.Goal
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		before, err := q.GetGoal(ctx, userID, in.ID)
		if err != nil {
			return err
		}
		if before.DeletedAt != nil {
			return fmt.Errorf("%w: cannot update a soft-deleted goal", core.ErrValidation)
		}

		updated = before
		if in.Name != nil {
			updated.Name = *in.Name
		}
		if in.TargetAmount != nil {
			updated.TargetAmount = in.TargetAmount.Round(2)
		}
		if in.CurrentAmount != nil {
			updated.CurrentAmount = in.CurrentAmount.Round(2)
		}
		if in.Deadline != nil {
			updated.Deadline = *in.Deadline
		}
		if err := q.UpdateGoalRow(ctx, updated); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionUpdate, "goals", in.ID, audit.Diff(before, updated))
	})
	if err != nil {
		return core.Goal{}, err
	}

	emit(ctx, s.pub, "goals", core.ActionUpdate, in.ID, userID)
	return updated, nil
}

func (s *GoalService) SoftDeleteGoal(ctx context.Context, userID, id string) error {
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		g, err := q.GetGoal(ctx, userID, id)
		if err != nil {
			return err
		}
		if g.DeletedAt != nil {
			return fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
		}

		now := time.Now()
		if err := q.SetGoalDeleted(ctx, userID, id, &now); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionSoftDelete, "goals", id, audit.Snapshot(g))
	})
	if err != nil {
		return err
	}

	emit(ctx, s.pub, "goals", core.ActionSoftDelete, id, userID)
	return nil
}

func (s *GoalService) RestoreGoal(ctx context.Context, userID, id string) (core.Goal, error) {
	var restored core.Goal
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		g, err := q.GetGoal(ctx, userID, id)
		if err != nil {
			return err
		}
		if g.DeletedAt == nil {
			return fmt.Errorf("%w: goal %s is not deleted", core.ErrValidation, id)
		}

		if err := q.SetGoalDeleted(ctx, userID, id, nil); err != nil {
			return err
		}
		restored = g
		restored.DeletedAt = nil
		return audit.Record(ctx, q, userID, core.ActionRestore, "goals", id, audit.Snapshot(restored))
	})
	if err != nil {
		return core.Goal{}, err
	}

	emit(ctx, s.pub, "goals", core.ActionRestore, id, userID)
	return restored, nil
}

// GetGoals lists the user's goals; includeDeleted also surfaces soft-deleted
// ones so callers can offer a restore.
func (s *GoalService) GetGoals(ctx context.Context, userID string, includeDeleted bool) ([]core.Goal, error) {
	return s.repo.Queries().ListGoals(ctx, userID, includeDeleted)
}
