package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/notebook-tracker-api/internal/models"
)

var studentCols = []string{"id", "scholar_no", "roll_no", "full_name", "guardian_name", "guardian_phone", "guardian_email", "active", "created_at", "updated_at"}

func TestStudentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	cols := append(append([]string{}, studentCols...), "current_class_id", "current_class_name", "joined_at")
	rows := sqlmock.NewRows(cols).
		AddRow("st-1", "SCH-01", "12", "Kavya Iyer", "Mr. Iyer", "+91 90000 00001", nil, true, now, now, "class-7b", "7-B", now)
	mock.ExpectQuery("FROM students s\\s+LEFT JOIN LATERAL").WithArgs("st-1").WillReturnRows(rows)

	student, err := repo.FindByID(context.Background(), "st-1")
	require.NoError(t, err)
	assert.Equal(t, "Kavya Iyer", student.FullName)
	require.NotNil(t, student.CurrentClassID)
	assert.Equal(t, "class-7b", *student.CurrentClassID)
	require.NotNil(t, student.GuardianPhone)
	assert.Nil(t, student.GuardianEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("FROM students s").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStudentRepositoryListByClass(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(studentCols).
		AddRow("st-1", "SCH-01", "1", "Asha", "Mrs. Rao", nil, "rao@example.org", true, now, now).
		AddRow("st-2", "SCH-02", "2", "Dev", "Mr. Das", "+91 90000 00002", nil, true, now, now)
	mock.ExpectQuery("FROM students s\\s+JOIN LATERAL").WithArgs("class-7b").WillReturnRows(rows)

	students, err := repo.ListByClass(context.Background(), "class-7b")
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Asha", students[0].FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryAppendClassHistory(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO student_class_history").WillReturnResult(sqlmock.NewResult(1, 1))

	by := "admin-1"
	entry := &models.ClassHistoryEntry{StudentID: "st-1", ClassID: "class-8a", ChangedBy: &by}
	require.NoError(t, repo.AppendClassHistory(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.StartedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryClassHistory(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	first := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "class_name", "started_at", "changed_by"}).
		AddRow("h1", "st-1", "class-7b", "7-B", first, nil).
		AddRow("h2", "st-1", "class-8a", "8-A", first.AddDate(1, 0, 0), "admin-1")
	mock.ExpectQuery("FROM student_class_history h").WithArgs("st-1").WillReturnRows(rows)

	entries, err := repo.ClassHistory(context.Background(), "st-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "8-A", entries[1].ClassName)
	assert.Nil(t, entries[0].ChangedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassAndSubjectRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("FROM classes WHERE id").WithArgs("class-7b").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "grade", "created_at", "updated_at"}).AddRow("class-7b", "7-B", "7", now, now))
	mock.ExpectQuery("FROM subjects WHERE id").WithArgs("math").
		WillReturnError(sql.ErrNoRows)

	class, err := NewClassRepository(db).FindByID(context.Background(), "class-7b")
	require.NoError(t, err)
	assert.Equal(t, "7-B", class.Name)

	_, err = NewSubjectRepository(db).FindByID(context.Background(), "math")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
