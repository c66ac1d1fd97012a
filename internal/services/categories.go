// Package services holds the business logic that sits beside the ledger
// engine: category, budget, goal and profile management, recurring rule
// scheduling, and the read-side report builders. Everything that moves money
// lives in the ledger package; services only orchestrate it.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"duit/internal/audit"
	"duit/internal/core"
	"duit/internal/events"
	"duit/internal/storage"
)

func emit(ctx context.Context, pub events.Publisher, table string, action core.AuditAction, recordID, userID string) {
	events.Emit(ctx, pub, events.NewEvent(table, action, recordID, userID))
}

// CategoryService manages user-defined transaction categories. The reserved
// system category used by transfers is invisible here: it is never listed and
// never editable.
type CategoryService struct {
	repo *storage.Repository
	pub  events.Publisher
}

func NewCategoryService(repo *storage.Repository, pub events.Publisher) *CategoryService {
	return &CategoryService{repo: repo, pub: pub}
}

func (s *CategoryService) CreateCategory(ctx context.Context, userID string, in core.CreateCategoryInput) (core.Category, error) {
	if err := in.Validate(); err != nil {
		return core.Category{}, err
	}

	c := core.Category{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      in.Name,
		Type:      in.Type,
		Color:     in.Color,
		CreatedAt: time.Now(),
	}
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		if err := q.CreateCategory(ctx, c); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionCreate, "categories", c.ID, audit.Snapshot(c))
	})
	if err != nil {
		return core.Category{}, err
	}

	emit(ctx, s.pub, "categories", core.ActionCreate, c.ID, userID)
	slog.InfoContext(ctx, "Category created", "category_id", c.ID, "name", c.Name)
	return c, nil
}

func (s *CategoryService) UpdateCategory(ctx context.Context, userID string, in core.UpdateCategoryInput) (core.Category, error) {
	if err := in.Validate(); err != nil {
		return core.Category{}, err
	}

	var updated core.Category
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		before, err := q.GetCategory(ctx, userID, in.ID)
		if err != nil {
			return err
		}
		if before.IsSystem {
			return fmt.Errorf("%w: system categories cannot be edited", core.ErrValidation)
		}
		if before.DeletedAt != nil {
			return fmt.Errorf("%w: cannot update a soft-deleted category", core.ErrValidation)
		}

		updated = before
		if in.Name != nil {
			updated.Name = *in.Name
		}
		if in.Type != nil {
			updated.Type = *in.Type
		}
		if in.Color != nil {
			updated.Color = *in.Color
		}
		if err := q.UpdateCategoryFields(ctx, updated); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionUpdate, "categories", in.ID, audit.Diff(before, updated))
	})
	if err != nil {
		return core.Category{}, err
	}

	emit(ctx, s.pub, "categories", core.ActionUpdate, in.ID, userID)
	return updated, nil
}

// SoftDeleteCategory hides the category from listings and blocks new
// references. Historical transactions keep pointing at it; aggregates still
// resolve its name.
func (s *CategoryService) SoftDeleteCategory(ctx context.Context, userID, id string) error {
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		c, err := q.GetCategory(ctx, userID, id)
		if err != nil {
			return err
		}
		if c.IsSystem {
			return fmt.Errorf("%w: system categories cannot be deleted", core.ErrValidation)
		}
		if c.DeletedAt != nil {
			return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
		}

		now := time.Now()
		if err := q.SetCategoryDeleted(ctx, userID, id, &now); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionSoftDelete, "categories", id, audit.Snapshot(c))
	})
	if err != nil {
		return err
	}

	emit(ctx, s.pub, "categories", core.ActionSoftDelete, id, userID)
	return nil
}

func (s *CategoryService) RestoreCategory(ctx context.Context, userID, id string) (core.Category, error) {
	var restored core.Category
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		c, err := q.GetCategory(ctx, userID, id)
		if err != nil {
			return err
		}
		if c.DeletedAt == nil {
			return fmt.Errorf("%w: category %s is not deleted", core.ErrValidation, id)
		}

		if err := q.SetCategoryDeleted(ctx, userID, id, nil); err != nil {
			return err
		}
		restored = c
		restored.DeletedAt = nil
		return audit.Record(ctx, q, userID, core.ActionRestore, "categories", id, audit.Snapshot(restored))
	})
	if err != nil {
		return core.Category{}, err
	}

	emit(ctx, s.pub, "categories", core.ActionRestore, id, userID)
	return restored, nil
}

// GetCategories lists the user's active categories, system category excluded.
func (s *CategoryService) GetCategories(ctx context.Context, userID string) ([]core.Category, error) {
	return s.repo.Queries().ListCategories(ctx, userID)
}
