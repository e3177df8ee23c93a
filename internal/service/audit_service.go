package service

import (
	"context"

	"github.com/shiksha-labs/shiksha-api/internal/models"
	appErrors "github.com/shiksha-labs/shiksha-api/pkg/errors"
)

type auditLister interface {
	ListByTarget(ctx context.Context, targetID string) ([]models.AuditLog, error)
}

// AuditService answers audit trail reads.
type AuditService struct {
	audits auditLister
}

// NewAuditService wires the audit store.
func NewAuditService(audits auditLister) *AuditService {
	return &AuditService{audits: audits}
}

// ListByTarget returns the audit trail for an entity, newest first.
func (s *AuditService) ListByTarget(ctx context.Context, targetID string) ([]models.AuditLog, error) {
	if targetID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target id is required")
	}
	logs, err := s.audits.ListByTarget(ctx, targetID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	return logs, nil
}
