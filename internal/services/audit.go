package services

import (
	"context"

	"duit/internal/audit"
	"duit/internal/core"
	"duit/internal/storage"
)

// AuditService exposes the read side of the audit trail. Writes happen
// inside the mutation transactions; there is no public write path.
type AuditService struct {
	repo *storage.Repository
}

func NewAuditService(repo *storage.Repository) *AuditService {
	return &AuditService{repo: repo}
}

func (s *AuditService) GetAuditLogs(ctx context.Context, userID string, f core.AuditFilter) (core.Page[core.AuditLog], error) {
	return audit.List(ctx, s.repo.Queries(), userID, f)
}
