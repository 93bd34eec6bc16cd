package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/notebook-tracker-api/internal/models"
)

// latestClass selects the most recent class-history row for the outer student alias s.
const latestClass = `SELECT class_id, started_at FROM student_class_history WHERE student_id = s.id ORDER BY started_at DESC, id DESC LIMIT 1`

const studentColumns = `s.id, s.scholar_no, s.roll_no, s.full_name, s.guardian_name, s.guardian_phone, s.guardian_email, s.active, s.created_at, s.updated_at`

// StudentRepository manages persistence for student records and their class history.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID fetches a student with the class from their latest history entry.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := `SELECT ` + studentColumns + `,
        h.class_id AS current_class_id, c.name AS current_class_name, h.started_at AS joined_at
        FROM students s
        LEFT JOIN LATERAL (` + latestClass + `) h ON TRUE
        LEFT JOIN classes c ON c.id = h.class_id
        WHERE s.id = $1`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &detail, nil
}

// ListByClass returns active students whose current class is classID, ordered by roll number.
func (r *StudentRepository) ListByClass(ctx context.Context, classID string) ([]models.Student, error) {
	query := `SELECT ` + studentColumns + `
        FROM students s
        JOIN LATERAL (` + latestClass + `) h ON TRUE
        WHERE h.class_id = $1 AND s.active = TRUE
        ORDER BY s.roll_no ASC, s.full_name ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, classID); err != nil {
		return nil, fmt.Errorf("list students by class: %w", err)
	}
	return students, nil
}

// AppendClassHistory records a class change. Existing entries are never updated.
func (r *StudentRepository) AppendClassHistory(ctx context.Context, entry *models.ClassHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now().UTC()
	}
	const query = `INSERT INTO student_class_history (id, student_id, class_id, started_at, changed_by)
        VALUES (:id, :student_id, :class_id, :started_at, :changed_by)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append class history: %w", err)
	}
	return nil
}

// ClassHistory lists a student's class membership log, oldest first.
func (r *StudentRepository) ClassHistory(ctx context.Context, studentID string) ([]models.ClassHistoryEntry, error) {
	const query = `SELECT h.id, h.student_id, h.class_id, c.name AS class_name, h.started_at, h.changed_by
        FROM student_class_history h
        JOIN classes c ON c.id = h.class_id
        WHERE h.student_id = $1
        ORDER BY h.started_at ASC, h.id ASC`
	var entries []models.ClassHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, studentID); err != nil {
		return nil, fmt.Errorf("list class history: %w", err)
	}
	return entries, nil
}
