package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/notebook-tracker-api/internal/models"
)

func TestAuditRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditLog{Action: models.AuditActionSubmissionStatus, Resource: "submission"}
	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "action", "resource", "resource_id", "old_values", "new_values", "ip_address", "user_agent", "created_at"}).
		AddRow("a1", "u1", models.AuditActionSubmissionStatus, "submission", "r1", nil, []byte(`{}`), "", "", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs WHERE 1=1 AND resource = $1 AND resource_id = $2 ORDER BY created_at DESC, id DESC LIMIT $3")).
		WithArgs("submission", "r1", models.MaxAuditPageSize).
		WillReturnRows(rows)

	logs, err := repo.List(context.Background(), models.AuditFilter{Resource: "submission", ResourceID: "r1"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "r1", *logs[0].ResourceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListLimit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND action = $1 ORDER BY created_at DESC, id DESC LIMIT $2")).
		WithArgs(models.AuditActionLogin, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.List(context.Background(), models.AuditFilter{Action: models.AuditActionLogin, Limit: 5})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
