package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/notebook-tracker-api/internal/dto"
	"github.com/noah-isme/notebook-tracker-api/internal/models"
	appErrors "github.com/noah-isme/notebook-tracker-api/pkg/errors"
)

type auditReader interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error)
}

// AuditService exposes the audit trail written by the other services.
type AuditService struct {
	repo   auditReader
	logger *zap.Logger
}

// NewAuditService constructs an AuditService.
func NewAuditService(repo auditReader, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// List returns the newest audit entries, at most models.MaxAuditPageSize.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]dto.AuditEntry, error) {
	if filter.Limit < 0 || filter.Limit > models.MaxAuditPageSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, "limit must be between 1 and 200")
	}
	if filter.ResourceID != "" && filter.Resource == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "resource is required with resource_id")
	}
	logs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}
	entries := make([]dto.AuditEntry, 0, len(logs))
	for _, log := range logs {
		entries = append(entries, dto.AuditEntry{
			ID:         log.ID,
			UserID:     log.UserID,
			Action:     log.Action,
			Resource:   log.Resource,
			ResourceID: log.ResourceID,
			OldValues:  rawJSON(log.OldValues),
			NewValues:  rawJSON(log.NewValues),
			IPAddress:  log.IPAddress,
			CreatedAt:  log.CreatedAt,
		})
	}
	return entries, nil
}

// rawJSON drops payloads that are not valid JSON so the response stays encodable.
func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return nil
	}
	return json.RawMessage(b)
}
