package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/notebook-tracker-api/internal/models"
)

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// recordAudit writes an audit row. Failures are logged and never returned.
func recordAudit(ctx context.Context, repo auditRecorder, logger *zap.Logger, actorID, action, resource, resourceID string, oldValues, newValues interface{}) {
	if repo == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:    optionalString(actorID),
		Action:    action,
		Resource:  resource,
		OldValues: auditJSON(oldValues),
		NewValues: auditJSON(newValues),
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if err := repo.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}

func auditJSON(v interface{}) []byte {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
