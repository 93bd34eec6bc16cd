package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/notebook-tracker-api/internal/dto"
	"github.com/noah-isme/notebook-tracker-api/internal/models"
	"github.com/noah-isme/notebook-tracker-api/internal/repository"
	"github.com/noah-isme/notebook-tracker-api/internal/tracker"
	appErrors "github.com/noah-isme/notebook-tracker-api/pkg/errors"
)

type cycleStore interface {
	FindByID(ctx context.Context, id string) (*models.CycleDetail, error)
	FindActive(ctx context.Context, classID, subjectID string) (*models.CycleDetail, error)
	Start(ctx context.Context, cycle *models.CollectionCycle) (int, error)
}

type submissionStore interface {
	ListForStudentCycle(ctx context.Context, studentID, cycleID string) ([]models.Submission, error)
	ListForCycle(ctx context.Context, cycleID string) ([]models.Submission, error)
	EnsureMissing(ctx context.Context, studentID, cycleID string, at time.Time) ([]models.Submission, bool, error)
	CompareAndSetStatus(ctx context.Context, next *models.Submission, expected models.SubmissionStatus) error
}

type subjectFinder interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type classRoster interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ListByClass(ctx context.Context, classID string) ([]models.Student, error)
}

// SubmissionServiceParams groups the collaborators of SubmissionService.
type SubmissionServiceParams struct {
	Cycles      cycleStore
	Submissions submissionStore
	Classes     classFinder
	Subjects    subjectFinder
	Students    classRoster
	Audit       auditRecorder
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// SubmissionService manages collection cycles and the notebook status lifecycle.
type SubmissionService struct {
	cycles      cycleStore
	submissions submissionStore
	classes     classFinder
	subjects    subjectFinder
	students    classRoster
	audit       auditRecorder
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewSubmissionService constructs SubmissionService.
func NewSubmissionService(params SubmissionServiceParams) *SubmissionService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &SubmissionService{
		cycles:      params.Cycles,
		submissions: params.Submissions,
		classes:     params.Classes,
		subjects:    params.Subjects,
		students:    params.Students,
		audit:       params.Audit,
		cache:       params.Cache,
		metrics:     params.Metrics,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// StartCycle opens a new collection cycle, ending the previous one for the same pair.
func (s *SubmissionService) StartCycle(ctx context.Context, req dto.StartCycleRequest, actorID string) (*dto.StartCycleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cycle payload")
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	startedAt := s.now()
	var dueAt *time.Time
	if req.DueAt != nil {
		due := req.DueAt.UTC()
		if !due.After(startedAt) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "dueAt must be after the cycle start")
		}
		dueAt = &due
	}

	cycle := &models.CollectionCycle{
		ClassID:   class.ID,
		SubjectID: subject.ID,
		StartedAt: startedAt,
		DueAt:     dueAt,
		CreatedBy: optionalString(actorID),
	}
	created, err := s.cycles.Start(ctx, cycle)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start cycle")
	}

	recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionCycleStart, "collection_cycle", cycle.ID, nil,
		map[string]interface{}{"classId": class.ID, "subjectId": subject.ID, "submissionsCreated": created})
	s.cache.InvalidateDefaulters(ctx, class.ID)
	s.logger.Info("collection cycle started",
		zap.String("cycle_id", cycle.ID),
		zap.String("class_id", class.ID),
		zap.String("subject_id", subject.ID),
		zap.Int("submissions_created", created),
	)

	return &dto.StartCycleResponse{
		Cycle:              models.CycleDetail{CollectionCycle: *cycle, ClassName: class.Name, SubjectName: subject.Name},
		SubmissionsCreated: created,
	}, nil
}

// ActiveCycle returns the active cycle for a class and subject.
func (s *SubmissionService) ActiveCycle(ctx context.Context, classID, subjectID string) (*models.CycleDetail, error) {
	if classID == "" || subjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class_id and subject_id are required")
	}
	cycle, err := s.cycles.FindActive(ctx, classID, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active cycle for class and subject")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active cycle")
	}
	return cycle, nil
}

// StatusBoard resolves the current status of every student in the class for the active cycle.
// Students without a submission row are reported as missing.
func (s *SubmissionService) StatusBoard(ctx context.Context, classID, subjectID string) (*dto.StatusBoard, error) {
	cycle, err := s.ActiveCycle(ctx, classID, subjectID)
	if err != nil {
		return nil, err
	}

	students, err := s.students.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class students")
	}
	subs, err := s.submissions.ListForCycle(ctx, cycle.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	byStudent := groupByStudent(subs)

	board := &dto.StatusBoard{Cycle: *cycle, Students: make([]models.StudentStatus, 0, len(students))}
	for _, student := range students {
		resolved := tracker.ResolveStatus(byStudent[student.ID])
		reportAnomaly(s.logger, s.metrics, student.ID, cycle.ID, resolved)
		board.Students = append(board.Students, models.StudentStatus{
			StudentID:   student.ID,
			StudentName: student.FullName,
			RollNo:      student.RollNo,
			Status:      resolved,
		})
	}
	return board, nil
}

// UpdateStatus advances a student's submission in a cycle from req.ExpectedStatus to req.Status.
//
// The write is a compare-and-set on the stored status. A concurrent change surfaces as a
// conflict, never as a silent overwrite.
func (s *SubmissionService) UpdateStatus(ctx context.Context, cycleID, studentID string, req dto.UpdateStatusRequest, actorID string) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !req.ExpectedStatus.CanTransition(req.Status) {
		return nil, appErrors.Clonef(appErrors.ErrInvalidTransition, "cannot move a submission from %s to %s", req.ExpectedStatus, req.Status)
	}

	cycle, err := s.cycles.FindByID(ctx, cycleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "cycle not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cycle")
	}

	current, err := s.currentSubmission(ctx, cycle, studentID, req.ExpectedStatus)
	if err != nil {
		return nil, err
	}
	if current.Status != req.ExpectedStatus {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission status changed")
	}

	next, err := tracker.ApplyTransition(*current, req.Status, s.now(), cycle.DueAt)
	if err != nil {
		if errors.Is(err, tracker.ErrInvalidTransition) {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, "invalid status transition")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored submission is inconsistent")
	}

	if err := s.submissions.CompareAndSetStatus(ctx, &next, req.ExpectedStatus); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleStatus):
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "submission status changed")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update submission")
		}
	}

	s.metrics.RecordTransition(req.ExpectedStatus, next.Status)
	recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionSubmissionStatus, "submission", next.ID,
		map[string]interface{}{"status": req.ExpectedStatus},
		map[string]interface{}{"status": next.Status, "lateDays": next.LateDays})
	s.cache.InvalidateDefaulters(ctx, cycle.ClassID)

	return &next, nil
}

// currentSubmission returns the winning submission of a student in a cycle. When no row
// exists yet and the caller expects missing, the lazy default is persisted first under
// the cycle lock, so concurrent callers end up on the same row.
func (s *SubmissionService) currentSubmission(ctx context.Context, cycle *models.CycleDetail, studentID string, expected models.SubmissionStatus) (*models.Submission, error) {
	rows, err := s.submissions.ListForStudentCycle(ctx, studentID, cycle.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	resolved := tracker.ResolveStatus(rows)
	reportAnomaly(s.logger, s.metrics, studentID, cycle.ID, resolved)
	if resolved.Materialized {
		return winningSubmission(rows, resolved), nil
	}

	if expected != models.SubmissionStatusMissing {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission status changed")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.CurrentClassID == nil || *student.CurrentClassID != cycle.ClassID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not in the cycle's class")
	}

	rows, _, err = s.submissions.EnsureMissing(ctx, studentID, cycle.ID, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "cycle not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}
	// a concurrent caller may have created or already advanced the row
	resolved = tracker.ResolveStatus(rows)
	reportAnomaly(s.logger, s.metrics, studentID, cycle.ID, resolved)
	return winningSubmission(rows, resolved), nil
}

func groupByStudent(subs []models.Submission) map[string][]models.Submission {
	grouped := make(map[string][]models.Submission)
	for _, sub := range subs {
		grouped[sub.StudentID] = append(grouped[sub.StudentID], sub)
	}
	return grouped
}

// winningSubmission returns the row the resolver picked.
func winningSubmission(rows []models.Submission, resolved models.StatusResult) *models.Submission {
	if resolved.SubmissionID == nil {
		return nil
	}
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].ID == *resolved.SubmissionID {
			sub := rows[i]
			return &sub
		}
	}
	return nil
}

func reportAnomaly(logger *zap.Logger, metrics *MetricsService, studentID, cycleID string, resolved models.StatusResult) {
	if resolved.Duplicates == 0 {
		return
	}
	var winner string
	if resolved.SubmissionID != nil {
		winner = *resolved.SubmissionID
	}
	logger.Warn("duplicate submissions for student in cycle",
		zap.String("student_id", studentID),
		zap.String("cycle_id", cycleID),
		zap.String("kept_submission_id", winner),
		zap.Int("discarded", resolved.Duplicates),
	)
	metrics.RecordAnomaly(resolved.Duplicates)
}
