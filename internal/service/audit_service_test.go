package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/notebook-tracker-api/internal/models"
	appErrors "github.com/noah-isme/notebook-tracker-api/pkg/errors"
)

type auditReaderStub struct {
	logs   []models.AuditLog
	err    error
	filter models.AuditFilter
}

func (s *auditReaderStub) List(_ context.Context, filter models.AuditFilter) ([]models.AuditLog, error) {
	s.filter = filter
	return s.logs, s.err
}

func TestAuditServiceList(t *testing.T) {
	id := "r1"
	repo := &auditReaderStub{logs: []models.AuditLog{
		{ID: "a1", Action: models.AuditActionSubmissionStatus, Resource: "submission", ResourceID: &id, NewValues: []byte(`{"status":"submitted"}`)},
		{ID: "a2", Action: models.AuditActionNotificationSent, Resource: "submission", ResourceID: &id, NewValues: []byte("not json")},
	}}
	svc := NewAuditService(repo, nil)

	entries, err := svc.List(context.Background(), models.AuditFilter{Resource: "submission", ResourceID: "r1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.JSONEq(t, `{"status":"submitted"}`, string(entries[0].NewValues))
	assert.Nil(t, entries[1].NewValues)
	assert.Equal(t, "r1", repo.filter.ResourceID)
}

func TestAuditServiceListValidation(t *testing.T) {
	svc := NewAuditService(&auditReaderStub{}, nil)

	_, err := svc.List(context.Background(), models.AuditFilter{Limit: 500})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.List(context.Background(), models.AuditFilter{ResourceID: "r1"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	svc = NewAuditService(&auditReaderStub{err: errBoom}, nil)
	_, err = svc.List(context.Background(), models.AuditFilter{})
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
