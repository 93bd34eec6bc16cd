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
	"github.com/noah-isme/notebook-tracker-api/pkg/database"
)

const cycleDetailSelect = `SELECT cc.id, cc.class_id, cc.subject_id, cc.started_at, cc.due_at, cc.active, cc.ended_at, cc.created_by, cc.created_at,
        cl.name AS class_name, sb.name AS subject_name
        FROM collection_cycles cc
        JOIN classes cl ON cl.id = cc.class_id
        JOIN subjects sb ON sb.id = cc.subject_id`

// CycleRepository persists collection cycles.
type CycleRepository struct {
	db *sqlx.DB
}

// NewCycleRepository constructs a CycleRepository.
func NewCycleRepository(db *sqlx.DB) *CycleRepository {
	return &CycleRepository{db: db}
}

// FindByID returns a cycle with class and subject names.
func (r *CycleRepository) FindByID(ctx context.Context, id string) (*models.CycleDetail, error) {
	query := cycleDetailSelect + ` WHERE cc.id = $1`
	var cycle models.CycleDetail
	if err := r.db.GetContext(ctx, &cycle, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find cycle: %w", err)
	}
	return &cycle, nil
}

// FindActive returns the active cycle for a class and subject.
func (r *CycleRepository) FindActive(ctx context.Context, classID, subjectID string) (*models.CycleDetail, error) {
	query := cycleDetailSelect + ` WHERE cc.class_id = $1 AND cc.subject_id = $2 AND cc.active = TRUE LIMIT 1`
	var cycle models.CycleDetail
	if err := r.db.GetContext(ctx, &cycle, query, classID, subjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find active cycle: %w", err)
	}
	return &cycle, nil
}

// Start ends any active cycle for the pair, inserts cycle as the new active one, and
// creates a missing submission for every student currently in the class. All of it
// happens in one transaction. It returns the number of submissions created.
func (r *CycleRepository) Start(ctx context.Context, cycle *models.CollectionCycle) (int, error) {
	if cycle.ID == "" {
		cycle.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if cycle.StartedAt.IsZero() {
		cycle.StartedAt = now
	}
	if cycle.CreatedAt.IsZero() {
		cycle.CreatedAt = now
	}
	cycle.Active = true
	cycle.EndedAt = nil

	created := 0
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const endPrevious = `UPDATE collection_cycles SET active = FALSE, ended_at = $3
            WHERE class_id = $1 AND subject_id = $2 AND active = TRUE`
		if _, err := tx.ExecContext(ctx, endPrevious, cycle.ClassID, cycle.SubjectID, cycle.StartedAt); err != nil {
			return fmt.Errorf("end previous cycle: %w", err)
		}

		const insertCycle = `INSERT INTO collection_cycles (id, class_id, subject_id, started_at, due_at, active, ended_at, created_by, created_at)
            VALUES (:id, :class_id, :subject_id, :started_at, :due_at, :active, :ended_at, :created_by, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insertCycle, cycle); err != nil {
			return fmt.Errorf("insert cycle: %w", err)
		}

		members := `SELECT s.id FROM students s
            JOIN LATERAL (` + latestClass + `) h ON TRUE
            WHERE h.class_id = $1 AND s.active = TRUE
            ORDER BY s.roll_no ASC`
		var studentIDs []string
		if err := tx.SelectContext(ctx, &studentIDs, members, cycle.ClassID); err != nil {
			return fmt.Errorf("list class members: %w", err)
		}
		if len(studentIDs) == 0 {
			return nil
		}

		rows := make([]models.Submission, len(studentIDs))
		for i, studentID := range studentIDs {
			rows[i] = models.Submission{
				ID:        uuid.NewString(),
				StudentID: studentID,
				CycleID:   cycle.ID,
				Status:    models.SubmissionStatusMissing,
				CreatedAt: cycle.StartedAt,
				UpdatedAt: cycle.StartedAt,
			}
		}
		if _, err := tx.NamedExecContext(ctx, insertSubmission, rows); err != nil {
			return fmt.Errorf("materialize submissions: %w", err)
		}
		created = len(rows)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
