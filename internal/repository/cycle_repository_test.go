package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/notebook-tracker-api/internal/models"
)

func TestCycleRepositoryStartMaterializesSubmissions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCycleRepository(db)

	started := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE collection_cycles SET active = FALSE").
		WithArgs("class-7b", "math", started).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO collection_cycles").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT s.id FROM students s").WithArgs("class-7b").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("st-1").AddRow("st-2"))
	mock.ExpectExec("INSERT INTO submissions").WillReturnResult(sqlmock.NewResult(2, 2))
	mock.ExpectCommit()

	cycle := &models.CollectionCycle{ClassID: "class-7b", SubjectID: "math", StartedAt: started}
	created, err := repo.Start(context.Background(), cycle)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.NotEmpty(t, cycle.ID)
	assert.True(t, cycle.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCycleRepositoryStartEmptyClass(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCycleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE collection_cycles SET active = FALSE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO collection_cycles").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT s.id FROM students s").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	created, err := repo.Start(context.Background(), &models.CollectionCycle{ClassID: "class-empty", SubjectID: "math"})
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCycleRepositoryStartRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCycleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE collection_cycles SET active = FALSE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO collection_cycles").WillReturnError(errors.New("duplicate key value violates unique constraint"))
	mock.ExpectRollback()

	_, err := repo.Start(context.Background(), &models.CollectionCycle{ClassID: "class-7b", SubjectID: "math"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCycleRepositoryFindActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCycleRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "class_id", "subject_id", "started_at", "due_at", "active", "ended_at", "created_by", "created_at", "class_name", "subject_name"}).
		AddRow("cy-1", "class-7b", "math", now, now.Add(48*time.Hour), true, nil, "teacher-1", now, "7-B", "Math")
	mock.ExpectQuery("WHERE cc.class_id = \\$1 AND cc.subject_id = \\$2 AND cc.active = TRUE").
		WithArgs("class-7b", "math").
		WillReturnRows(rows)

	cycle, err := repo.FindActive(context.Background(), "class-7b", "math")
	require.NoError(t, err)
	assert.Equal(t, "cy-1", cycle.ID)
	assert.Equal(t, "Math", cycle.SubjectName)
	require.NotNil(t, cycle.DueAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCycleRepositoryFindActiveNone(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCycleRepository(db)

	mock.ExpectQuery("FROM collection_cycles cc").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActive(context.Background(), "class-7b", "art")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
