package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"duit/internal/audit"
	"duit/internal/core"
	"duit/internal/events"
	"duit/internal/ledger"
	"duit/internal/schedule"
	"duit/internal/storage"
)

// RecurringService manages recurring rules and materializes them into real
// transactions through the ledger engine. A rule's next_run only advances
// after its occurrence has been committed, so a failed materialization is
// retried on the next sweep. Executions of the same rule serialize on a
// per-rule lock; without it a manual execute racing a sweep could
// materialize the same occurrence twice.
type RecurringService struct {
	repo   *storage.Repository
	engine *ledger.Engine
	pub    events.Publisher

	muMap map[string]*sync.Mutex // per-rule locks
	mapMu sync.Mutex             // protects muMap itself
}

func NewRecurringService(repo *storage.Repository, engine *ledger.Engine, pub events.Publisher) *RecurringService {
	return &RecurringService{
		repo:   repo,
		engine: engine,
		pub:    pub,
		muMap:  make(map[string]*sync.Mutex),
	}
}

func (s *RecurringService) ruleLock(id string) *sync.Mutex {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()

	if _, exists := s.muMap[id]; !exists {
		s.muMap[id] = &sync.Mutex{}
	}
	return s.muMap[id]
}

func (s *RecurringService) CreateRecurringRule(ctx context.Context, userID string, in core.CreateRecurringRuleInput) (core.RecurringRule, error) {
	if err := in.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	sched, err := schedule.Parse(in.Schedule)
	if err != nil {
		return core.RecurringRule{}, err
	}

	r := core.RecurringRule{
		ID:        uuid.New().String(),
		UserID:    userID,
		Template:  in.Template,
		Schedule:  sched.Anchored(in.NextRun).String(),
		NextRun:   in.NextRun,
		Active:    in.Active,
		CreatedAt: time.Now(),
	}
	err = s.repo.InTx(ctx, func(q *storage.Queries) error {
		if err := q.CreateRule(ctx, r); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionCreate, "recurring_rules", r.ID, audit.Snapshot(r))
	})
	if err != nil {
		return core.RecurringRule{}, err
	}

	emit(ctx, s.pub, "recurring_rules", core.ActionCreate, r.ID, userID)
	return r, nil
}

func (s *RecurringService) UpdateRecurringRule(ctx context.Context, userID string, in core.UpdateRecurringRuleInput) (core.RecurringRule, error) {
	if err := in.Validate(); err != nil {
		return core.RecurringRule{}, err
	}

	var updated core.RecurringRule
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		before, err := q.GetRule(ctx, userID, in.ID)
		if err != nil {
			return err
		}

		updated = before
		if in.Template != nil {
			updated.Template = *in.Template
		}
		if in.NextRun != nil {
			updated.NextRun = *in.NextRun
		}
		if in.Schedule != nil {
			sched, err := schedule.Parse(*in.Schedule)
			if err != nil {
				return err
			}
			updated.Schedule = sched.Anchored(updated.NextRun).String()
		}
		if in.Active != nil {
			updated.Active = *in.Active
		}
		if err := q.UpdateRule(ctx, updated); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionUpdate, "recurring_rules", in.ID, audit.Diff(before, updated))
	})
	if err != nil {
		return core.RecurringRule{}, err
	}

	emit(ctx, s.pub, "recurring_rules", core.ActionUpdate, in.ID, userID)
	return updated, nil
}

func (s *RecurringService) DeleteRecurringRule(ctx context.Context, userID, id string) error {
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		r, err := q.GetRule(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := q.DeleteRule(ctx, userID, id); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionDelete, "recurring_rules", id, audit.Snapshot(r))
	})
	if err != nil {
		return err
	}

	emit(ctx, s.pub, "recurring_rules", core.ActionDelete, id, userID)
	return nil
}

// GetRecurringRules lists the user's rules; activeOnly hides deactivated
// ones.
func (s *RecurringService) GetRecurringRules(ctx context.Context, userID string, activeOnly bool) ([]core.RecurringRule, error) {
	return s.repo.Queries().ListRules(ctx, userID, activeOnly)
}

// ExecuteRecurringRule materializes the rule's next occurrence, dated at
// next_run, then advances next_run to the following occurrence. The whole
// read-materialize-advance sequence holds the rule's lock, so a manual
// execute and a sweep never materialize the same occurrence twice. The
// advance is still a compare-and-swap against the value read under the lock,
// which covers a second process sharing the database. A schedule that has
// run out deactivates the rule instead.
func (s *RecurringService) ExecuteRecurringRule(ctx context.Context, userID, id string) (core.RecurringRule, error) {
	mu := s.ruleLock(id)
	mu.Lock()
	defer mu.Unlock()

	rule, err := s.repo.Queries().GetRule(ctx, userID, id)
	if err != nil {
		return core.RecurringRule{}, err
	}
	if !rule.Active {
		return core.RecurringRule{}, fmt.Errorf("rule %s: %w", id, core.ErrRuleInactive)
	}
	sched, err := schedule.Parse(rule.Schedule)
	if err != nil {
		return core.RecurringRule{}, err
	}

	if err := s.materialize(ctx, rule); err != nil {
		return core.RecurringRule{}, fmt.Errorf("materialize rule %s: %w", id, err)
	}

	next, ok := sched.Next(rule.NextRun)
	if !ok {
		// Past the schedule's UNTIL bound; this was the last occurrence.
		deactivated, err := s.UpdateRecurringRule(ctx, userID, core.UpdateRecurringRuleInput{
			ID:     id,
			Active: boolPtr(false),
		})
		if err != nil {
			return core.RecurringRule{}, err
		}
		slog.InfoContext(ctx, "Recurring rule exhausted", "rule_id", id)
		return deactivated, nil
	}

	err = s.repo.InTx(ctx, func(q *storage.Queries) error {
		moved, err := q.AdvanceRuleNextRun(ctx, userID, id, rule.NextRun, next)
		if err != nil {
			return err
		}
		if !moved {
			slog.WarnContext(ctx, "Rule already advanced by a concurrent worker",
				"rule_id", id, "next_run", rule.NextRun)
			return nil
		}
		meta := audit.Snapshot(map[string]any{
			"next_run": map[string]any{"from": rule.NextRun, "to": next},
		})
		return audit.Record(ctx, q, userID, core.ActionUpdate, "recurring_rules", id, meta)
	})
	if err != nil {
		return core.RecurringRule{}, err
	}

	emit(ctx, s.pub, "recurring_rules", core.ActionUpdate, id, userID)
	rule.NextRun = next
	return rule, nil
}

// materialize turns the rule template into a real transaction or transfer,
// dated at the rule's current next_run.
func (s *RecurringService) materialize(ctx context.Context, rule core.RecurringRule) error {
	t := rule.Template
	if t.Type.IsTransfer() {
		_, err := s.engine.CreateTransfer(ctx, rule.UserID, core.CreateTransferInput{
			FromAccountID: t.AccountID,
			ToAccountID:   t.ToAccountID,
			Amount:        t.Amount,
			Currency:      t.Currency,
			OccurredAt:    rule.NextRun,
			Note:          t.Note,
		})
		return err
	}
	_, err := s.engine.CreateTransaction(ctx, rule.UserID, core.CreateTransactionInput{
		AccountID:  t.AccountID,
		CategoryID: t.CategoryID,
		Type:       t.Type,
		Amount:     t.Amount,
		Currency:   t.Currency,
		OccurredAt: rule.NextRun,
		Note:       t.Note,
		Tags:       t.Tags,
	})
	return err
}

// SweepDue executes every active rule whose next_run is today or earlier,
// catching up rules that fell behind by looping until they are no longer
// due. Rules run concurrently up to the given limit; one rule failing never
// stops the others. Returns how many occurrences were materialized and how
// many rules failed.
func (s *RecurringService) SweepDue(ctx context.Context, concurrency int) (processed, failed int, err error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	today := core.Today()
	due, err := s.repo.Queries().ListDueRules(ctx, today)
	if err != nil {
		return 0, 0, fmt.Errorf("list due rules: %w", err)
	}
	if len(due) == 0 {
		return 0, 0, nil
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, rule := range due {
		g.Go(func() error {
			var ran int
			var runErr error
			r := rule
			for r.Active && !r.NextRun.After(today.Time) {
				r, runErr = s.ExecuteRecurringRule(ctx, r.UserID, r.ID)
				if runErr != nil {
					break
				}
				ran++
			}
			if runErr != nil {
				slog.ErrorContext(ctx, "Recurring rule failed; next_run left in place",
					"rule_id", rule.ID, "error", runErr)
			}
			mu.Lock()
			processed += ran
			if runErr != nil {
				failed++
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	slog.InfoContext(ctx, "Recurring sweep finished",
		"due", len(due), "processed", processed, "failed", failed)
	return processed, failed, nil
}

func boolPtr(b bool) *bool { return &b }
