package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/notebook-tracker-api/internal/models"
	"github.com/noah-isme/notebook-tracker-api/pkg/database"
)

// ErrStaleStatus is returned by CompareAndSetStatus when the row exists but its
// status no longer matches the expected value.
var ErrStaleStatus = errors.New("submission status changed")

const insertSubmission = `INSERT INTO submissions (id, student_id, cycle_id, status, submitted_at, returned_at, late_days, notification_sent, notification_sent_at, created_at, updated_at)
        VALUES (:id, :student_id, :cycle_id, :status, :submitted_at, :returned_at, :late_days, :notification_sent, :notification_sent_at, :created_at, :updated_at)`

const submissionColumns = `s.id, s.student_id, s.cycle_id, s.status, s.submitted_at, s.returned_at, s.late_days, s.notification_sent, s.notification_sent_at, s.created_at, s.updated_at`

const selectStudentCycle = `SELECT id, student_id, cycle_id, status, submitted_at, returned_at, late_days, notification_sent, notification_sent_at, created_at, updated_at
        FROM submissions WHERE student_id = $1 AND cycle_id = $2 ORDER BY created_at ASC, id ASC`

const recordSelect = `SELECT ` + submissionColumns + `,
        cc.class_id, cc.subject_id, sb.name AS subject_name, cc.started_at AS cycle_started_at, cc.due_at AS cycle_due_at
        FROM submissions s
        JOIN collection_cycles cc ON cc.id = s.cycle_id
        JOIN subjects sb ON sb.id = cc.subject_id`

// SubmissionRepository persists notebook submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs a SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// GetByID returns a submission joined with its cycle and subject.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.SubmissionRecord, error) {
	query := recordSelect + ` WHERE s.id = $1`
	var record models.SubmissionRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &record, nil
}

// ListForStudentCycle returns every row for one student in one cycle, oldest first.
// More than one row is a data anomaly resolved by the caller.
func (r *SubmissionRepository) ListForStudentCycle(ctx context.Context, studentID, cycleID string) ([]models.Submission, error) {
	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, selectStudentCycle, studentID, cycleID); err != nil {
		return nil, fmt.Errorf("list student cycle submissions: %w", err)
	}
	return subs, nil
}

// ListForCycle returns every row in a cycle ordered by student then creation time.
func (r *SubmissionRepository) ListForCycle(ctx context.Context, cycleID string) ([]models.Submission, error) {
	const query = `SELECT id, student_id, cycle_id, status, submitted_at, returned_at, late_days, notification_sent, notification_sent_at, created_at, updated_at
        FROM submissions WHERE cycle_id = $1 ORDER BY student_id ASC, created_at ASC, id ASC`
	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, query, cycleID); err != nil {
		return nil, fmt.Errorf("list cycle submissions: %w", err)
	}
	return subs, nil
}

// HistoryByStudent returns a student's submission rows ordered by cycle start then
// creation time. Duplicate rows for one cycle are returned as stored. An empty
// subjectID spans every subject.
func (r *SubmissionRepository) HistoryByStudent(ctx context.Context, studentID, subjectID string) ([]models.SubmissionRecord, error) {
	query := recordSelect + ` WHERE s.student_id = $1`
	args := []interface{}{studentID}
	if subjectID != "" {
		query += ` AND cc.subject_id = $2`
		args = append(args, subjectID)
	}
	query += ` ORDER BY cc.started_at ASC, s.created_at ASC, s.id ASC`

	var history []models.SubmissionRecord
	if err := r.db.SelectContext(ctx, &history, query, args...); err != nil {
		return nil, fmt.Errorf("student history: %w", err)
	}
	return history, nil
}

// HistoryByStudents loads the histories of several students in one query, grouped by
// student id. Each group keeps the HistoryByStudent ordering.
func (r *SubmissionRepository) HistoryByStudents(ctx context.Context, studentIDs []string, subjectID string) (map[string][]models.SubmissionRecord, error) {
	grouped := make(map[string][]models.SubmissionRecord, len(studentIDs))
	if len(studentIDs) == 0 {
		return grouped, nil
	}

	query := recordSelect + ` WHERE s.student_id = ANY($1)`
	args := []interface{}{pq.Array(studentIDs)}
	if subjectID != "" {
		query += ` AND cc.subject_id = $2`
		args = append(args, subjectID)
	}
	query += ` ORDER BY s.student_id ASC, cc.started_at ASC, s.created_at ASC, s.id ASC`

	var rows []models.SubmissionRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("class history: %w", err)
	}
	for _, row := range rows {
		grouped[row.StudentID] = append(grouped[row.StudentID], row)
	}
	return grouped, nil
}

// EnsureMissing returns the rows of a student in a cycle, inserting the lazy missing
// default first when there are none. The cycle row is locked for the transaction, so
// concurrent callers for the same cycle see one another's insert and share one row.
// The boolean reports whether a row was inserted. A missing cycle yields sql.ErrNoRows.
func (r *SubmissionRepository) EnsureMissing(ctx context.Context, studentID, cycleID string, at time.Time) ([]models.Submission, bool, error) {
	var (
		subs    []models.Submission
		created bool
	)
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var locked string
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM collection_cycles WHERE id = $1 FOR UPDATE`, cycleID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock cycle: %w", err)
		}
		if err := tx.SelectContext(ctx, &subs, selectStudentCycle, studentID, cycleID); err != nil {
			return fmt.Errorf("list student cycle submissions: %w", err)
		}
		if len(subs) > 0 {
			return nil
		}

		sub := models.Submission{
			ID:        uuid.NewString(),
			StudentID: studentID,
			CycleID:   cycleID,
			Status:    models.SubmissionStatusMissing,
			CreatedAt: at,
			UpdatedAt: at,
		}
		if _, err := tx.NamedExecContext(ctx, insertSubmission, sub); err != nil {
			return fmt.Errorf("create submission: %w", err)
		}
		subs, created = []models.Submission{sub}, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return subs, created, nil
}

// CompareAndSetStatus writes next only if the stored status still equals expected.
// It returns ErrStaleStatus when the status moved on and sql.ErrNoRows when the row is gone.
func (r *SubmissionRepository) CompareAndSetStatus(ctx context.Context, next *models.Submission, expected models.SubmissionStatus) error {
	const query = `UPDATE submissions SET status = $3, submitted_at = $4, returned_at = $5, late_days = $6, updated_at = $7
        WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, next.ID, expected, next.Status, next.SubmittedAt, next.ReturnedAt, next.LateDays, next.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update submission status rows: %w", err)
	}
	if affected > 0 {
		return nil
	}
	return r.missingOrStale(ctx, next.ID)
}

// ClaimNotification flips notification_sent from false to true for a missing submission.
// It reports false when another caller already claimed it or the status moved on.
func (r *SubmissionRepository) ClaimNotification(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE submissions SET notification_sent = TRUE, notification_sent_at = $2, updated_at = $2
        WHERE id = $1 AND status = $3 AND notification_sent = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, at, models.SubmissionStatusMissing)
	if err != nil {
		return false, fmt.Errorf("claim notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim notification rows: %w", err)
	}
	return affected == 1, nil
}

// ReleaseNotification undoes a claim made at claimedAt after a failed dispatch.
func (r *SubmissionRepository) ReleaseNotification(ctx context.Context, id string, claimedAt time.Time) error {
	const query = `UPDATE submissions SET notification_sent = FALSE, notification_sent_at = NULL, updated_at = $3
        WHERE id = $1 AND notification_sent = TRUE AND notification_sent_at = $2`
	if _, err := r.db.ExecContext(ctx, query, id, claimedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("release notification: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) missingOrStale(ctx context.Context, id string) error {
	var exists int
	if err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM submissions WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("check submission: %w", err)
	}
	return ErrStaleStatus
}
