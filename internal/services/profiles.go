package services

import (
	"context"
	"time"

	"duit/internal/audit"
	"duit/internal/core"
	"duit/internal/events"
	"duit/internal/storage"
)

// ProfileService manages the per-user settings row. The profile id is the
// user id; there is exactly one row per user and it is never deleted.
type ProfileService struct {
	repo *storage.Repository
	pub  events.Publisher
}

func NewProfileService(repo *storage.Repository, pub events.Publisher) *ProfileService {
	return &ProfileService{repo: repo, pub: pub}
}

func (s *ProfileService) CreateProfile(ctx context.Context, in core.CreateProfileInput) (core.Profile, error) {
	if err := in.Validate(); err != nil {
		return core.Profile{}, err
	}

	p := core.Profile{
		ID:        in.ID,
		FullName:  in.FullName,
		PhotoURL:  in.PhotoURL,
		Locale:    in.Locale,
		Currency:  in.Currency,
		Timezone:  in.Timezone,
		CreatedAt: time.Now(),
	}
	if p.Locale == "" {
		p.Locale = "en-US"
	}
	if p.Currency == "" {
		p.Currency = "IDR"
	}
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}

	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		if err := q.CreateProfile(ctx, p); err != nil {
			return err
		}
		return audit.Record(ctx, q, p.ID, core.ActionCreate, "profiles", p.ID, audit.Snapshot(p))
	})
	if err != nil {
		return core.Profile{}, err
	}

	emit(ctx, s.pub, "profiles", core.ActionCreate, p.ID, p.ID)
	return p, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	return s.repo.Queries().GetProfile(ctx, userID)
}

func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, in core.UpdateProfileInput) (core.Profile, error) {
	var updated core.Profile
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		before, err := q.GetProfile(ctx, userID)
		if err != nil {
			return err
		}

		updated = before
		if in.FullName != nil {
			updated.FullName = in.FullName
		}
		if in.PhotoURL != nil {
			updated.PhotoURL = in.PhotoURL
		}
		if in.Locale != nil {
			updated.Locale = *in.Locale
		}
		if in.Currency != nil {
			updated.Currency = *in.Currency
		}
		if in.Timezone != nil {
			updated.Timezone = *in.Timezone
		}
		if err := q.UpdateProfile(ctx, updated); err != nil {
			return err
		}
		return audit.Record(ctx, q, userID, core.ActionUpdate, "profiles", userID, audit.Diff(before, updated))
	})
	if err != nil {
		return core.Profile{}, err
	}

	emit(ctx, s.pub, "profiles", core.ActionUpdate, userID, userID)
	return updated, nil
}
