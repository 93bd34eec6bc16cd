package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/notebook-tracker-api/internal/dto"
	"github.com/noah-isme/notebook-tracker-api/internal/models"
	"github.com/noah-isme/notebook-tracker-api/internal/tracker"
	"github.com/noah-isme/notebook-tracker-api/pkg/config"
	appErrors "github.com/noah-isme/notebook-tracker-api/pkg/errors"
	"github.com/noah-isme/notebook-tracker-api/pkg/jobs"
	"github.com/noah-isme/notebook-tracker-api/pkg/middleware/requestid"
	"github.com/noah-isme/notebook-tracker-api/pkg/notify"
)

// JobTypeBatchNotification identifies queued class notification runs.
const JobTypeBatchNotification = "notification.batch"

const nextDateLayout = "02 Jan 2006"

type notificationStore interface {
	GetByID(ctx context.Context, id string) (*models.SubmissionRecord, error)
	ListForCycle(ctx context.Context, cycleID string) ([]models.Submission, error)
	EnsureMissing(ctx context.Context, studentID, cycleID string, at time.Time) ([]models.Submission, bool, error)
	ClaimNotification(ctx context.Context, id string, at time.Time) (bool, error)
	ReleaseNotification(ctx context.Context, id string, claimedAt time.Time) error
}

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) (jobs.Job, error)
}

// NotificationServiceParams groups the collaborators of NotificationService.
type NotificationServiceParams struct {
	Submissions notificationStore
	Students    classRoster
	Cycles      activeCycleFinder
	Dispatcher  notify.Dispatcher
	Audit       auditRecorder
	Cache       *CacheService
	Metrics     *MetricsService
	Logger      *zap.Logger
	Template    string
}

// NotificationService renders and dispatches guardian notifications for missing notebooks.
type NotificationService struct {
	submissions notificationStore
	students    classRoster
	cycles      activeCycleFinder
	dispatcher  notify.Dispatcher
	audit       auditRecorder
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	template    string
	queue       jobEnqueuer
	now         func() time.Time
}

// NewNotificationService constructs NotificationService.
func NewNotificationService(params NotificationServiceParams) *NotificationService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := params.Dispatcher
	if dispatcher == nil {
		dispatcher = notify.NewLogDispatcher(logger)
	}
	template := params.Template
	if template == "" {
		template = config.DefaultNotifyTemplate
	}
	return &NotificationService{
		submissions: params.Submissions,
		students:    params.Students,
		cycles:      params.Cycles,
		dispatcher:  dispatcher,
		audit:       params.Audit,
		cache:       params.Cache,
		metrics:     params.Metrics,
		logger:      logger,
		template:    template,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// UseQueue enables asynchronous batch runs through EnqueueBatch.
func (s *NotificationService) UseQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Preview renders a template without side effects.
func (s *NotificationService) Preview(req dto.PreviewNotificationRequest) dto.PreviewNotificationResponse {
	template := s.templateOr(req.Template)
	return dto.PreviewNotificationResponse{
		Template: template,
		Message:  tracker.RenderNotification(template, req.Fields),
	}
}

// Send notifies the guardian of one missing submission. Repeating the call after a
// successful send reports already_sent without dispatching again.
func (s *NotificationService) Send(ctx context.Context, submissionID string, opts dto.SendNotificationRequest, actorID string) (*models.NotificationOutcome, error) {
	record, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	student, err := s.students.FindByID(ctx, record.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	outcome := s.deliver(ctx, record.Submission, student.Student, record.SubjectName, record.CycleDueAt, opts, actorID)
	switch outcome.Status {
	case models.NotificationOutcomeSent, models.NotificationOutcomeAlreadySent:
		return &outcome, nil
	case models.NotificationOutcomeNotEligible:
		return nil, appErrors.Clone(appErrors.ErrConflict, "notebook is no longer missing")
	case models.NotificationOutcomeMissingContact:
		return nil, appErrors.Clonef(appErrors.ErrPreconditionFailed, "guardian has no contact for the %s channel", s.dispatcher.Channel())
	case models.NotificationOutcomeFailed:
		return nil, appErrors.Clone(appErrors.ErrInternal, "notification dispatch failed: "+outcome.Error)
	default:
		return nil, appErrors.Clone(appErrors.ErrInternal, "unknown notification outcome")
	}
}

// SendBatch notifies the guardians of every student in the class whose notebook is
// missing in the active cycle. Each student is handled independently.
func (s *NotificationService) SendBatch(ctx context.Context, classID, subjectID string, opts dto.SendNotificationRequest, actorID string) (*models.NotificationBatchResult, error) {
	cycle, err := s.activeCycle(ctx, classID, subjectID)
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

	result := &models.NotificationBatchResult{
		ClassID:   classID,
		SubjectID: subjectID,
		CycleID:   cycle.ID,
		Items:     make([]models.NotificationOutcome, 0, len(students)),
	}
	materialized := false
	for _, student := range students {
		outcome, created := s.notifyStudent(ctx, cycle, student, byStudent[student.ID], opts, actorID)
		materialized = materialized || created
		switch outcome.Status {
		case models.NotificationOutcomeSent:
			result.Sent++
		case models.NotificationOutcomeFailed:
			result.Failed++
		default:
			result.Skipped++
		}
		result.Items = append(result.Items, outcome)
	}
	result.Processed = len(result.Items)
	if materialized {
		s.cache.InvalidateDefaulters(ctx, classID)
	}

	s.logger.Info("batch notification finished",
		zap.String("class_id", classID),
		zap.String("subject_id", subjectID),
		zap.String("cycle_id", cycle.ID),
		zap.Int("sent", result.Sent),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// EnqueueBatch queues a SendBatch run and returns immediately.
func (s *NotificationService) EnqueueBatch(ctx context.Context, classID, subjectID string, opts dto.SendNotificationRequest, actorID string) (*dto.BatchNotificationAccepted, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "asynchronous notifications are disabled")
	}
	if _, err := s.activeCycle(ctx, classID, subjectID); err != nil {
		return nil, err
	}

	job, err := s.queue.TryEnqueue(jobs.Job{
		Type: JobTypeBatchNotification,
		Payload: dto.BatchNotificationJob{
			ClassID:   classID,
			SubjectID: subjectID,
			Options:   opts,
			ActorID:   actorID,
			RequestID: requestid.FromContext(ctx),
		},
	})
	if err != nil {
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Clone(appErrors.ErrUnavailable, "notification queue is full, retry later")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to queue notifications")
	}

	return &dto.BatchNotificationAccepted{JobID: job.ID, ClassID: classID, SubjectID: subjectID, Status: "queued"}, nil
}

// HandleJob runs a queued batch. It satisfies jobs.Handler.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(dto.BatchNotificationJob)
	if !ok {
		s.logger.Error("dropping notification job with unexpected payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	if payload.RequestID != "" {
		ctx = requestid.WithValue(ctx, payload.RequestID)
	}
	result, err := s.SendBatch(ctx, payload.ClassID, payload.SubjectID, payload.Options, payload.ActorID)
	if err != nil {
		if !retryableJobError(err) {
			s.logger.Warn("dropping notification job",
				zap.String("job_id", job.ID),
				zap.String("request_id", payload.RequestID),
				zap.String("class_id", payload.ClassID),
				zap.String("subject_id", payload.SubjectID),
				zap.Error(err),
			)
			return nil
		}
		return err
	}
	s.logger.Info("notification batch finished",
		zap.String("job_id", job.ID),
		zap.String("request_id", payload.RequestID),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	if result.Failed > 0 {
		// claims were released for failures, so a retry only re-sends those
		return fmt.Errorf("%d of %d notifications failed", result.Failed, result.Processed)
	}
	return nil
}

// retryableJobError reports whether a failed batch run may succeed on a later attempt.
// Missing cycles and invalid payloads stay that way, so they are not retried.
func retryableJobError(err error) bool {
	switch appErrors.FromError(err).Code {
	case appErrors.ErrNotFound.Code, appErrors.ErrValidation.Code, appErrors.ErrConflict.Code, appErrors.ErrPreconditionFailed.Code:
		return false
	default:
		return true
	}
}

func (s *NotificationService) activeCycle(ctx context.Context, classID, subjectID string) (*models.CycleDetail, error) {
	if classID == "" || subjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class and subject are required")
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

// notifyStudent resolves the student's submission in the cycle, persisting the lazy
// missing default when needed, and delivers the notification. The boolean reports
// whether a submission row was created.
func (s *NotificationService) notifyStudent(ctx context.Context, cycle *models.CycleDetail, student models.Student, rows []models.Submission, opts dto.SendNotificationRequest, actorID string) (models.NotificationOutcome, bool) {
	if err := ctx.Err(); err != nil {
		return s.finish(models.NotificationOutcome{StudentID: student.ID, Status: models.NotificationOutcomeFailed, Error: err.Error()}), false
	}

	created := false
	if len(rows) == 0 {
		var err error
		rows, created, err = s.submissions.EnsureMissing(ctx, student.ID, cycle.ID, s.now())
		if err != nil {
			s.logger.Warn("failed to materialize submission", zap.String("student_id", student.ID), zap.String("cycle_id", cycle.ID), zap.Error(err))
			return s.finish(models.NotificationOutcome{StudentID: student.ID, Status: models.NotificationOutcomeFailed, Error: "could not create submission"}), false
		}
	}

	resolved := tracker.ResolveStatus(rows)
	reportAnomaly(s.logger, s.metrics, student.ID, cycle.ID, resolved)
	sub := winningSubmission(rows, resolved)
	return s.deliver(ctx, *sub, student, cycle.SubjectName, cycle.DueAt, opts, actorID), created
}

// deliver applies the notification gate, claims the submission, and dispatches.
func (s *NotificationService) deliver(ctx context.Context, sub models.Submission, student models.Student, subjectName string, dueAt *time.Time, opts dto.SendNotificationRequest, actorID string) models.NotificationOutcome {
	outcome := models.NotificationOutcome{StudentID: student.ID, SubmissionID: optionalString(sub.ID)}

	if !tracker.CanNotify(sub) {
		outcome.Status = models.NotificationOutcomeNotEligible
		if sub.Status == models.SubmissionStatusMissing && sub.NotificationSent {
			outcome.Status = models.NotificationOutcomeAlreadySent
			outcome.SentAt = sub.NotificationSentAt
		}
		return s.finish(outcome)
	}

	recipient := notify.Recipient{Name: student.GuardianName}
	if student.GuardianPhone != nil {
		recipient.Phone = *student.GuardianPhone
	}
	if student.GuardianEmail != nil {
		recipient.Email = *student.GuardianEmail
	}
	address, ok := s.dispatcher.Address(recipient)
	if !ok {
		outcome.Status = models.NotificationOutcomeMissingContact
		return s.finish(outcome)
	}
	outcome.Recipient = address

	body := tracker.RenderNotification(s.templateOr(opts.Template), models.NotificationFields{
		ParentName:  student.GuardianName,
		StudentName: student.FullName,
		Subject:     subjectName,
		NextDate:    s.nextDate(opts.NextDate, dueAt),
	})
	outcome.Message = body

	claimedAt := s.now()
	claimed, err := s.submissions.ClaimNotification(ctx, sub.ID, claimedAt)
	if err != nil {
		outcome.Status = models.NotificationOutcomeFailed
		outcome.Error = "could not claim submission"
		s.logger.Warn("failed to claim notification", zap.String("submission_id", sub.ID), zap.Error(err))
		return s.finish(outcome)
	}
	if !claimed {
		outcome.Status = models.NotificationOutcomeAlreadySent
		return s.finish(outcome)
	}

	msg := notify.Message{
		To:        recipient,
		Subject:   fmt.Sprintf("%s notebook not submitted", subjectName),
		Body:      body,
		Reference: sub.ID,
	}
	if err := s.dispatcher.Send(ctx, msg); err != nil {
		if releaseErr := s.submissions.ReleaseNotification(ctx, sub.ID, claimedAt); releaseErr != nil {
			s.logger.Error("failed to release notification claim", zap.String("submission_id", sub.ID), zap.Error(releaseErr))
		}
		outcome.Status = models.NotificationOutcomeFailed
		outcome.Error = err.Error()
		s.logger.Warn("guardian notification failed",
			zap.String("submission_id", sub.ID),
			zap.String("channel", s.dispatcher.Channel()),
			zap.Error(err),
		)
		return s.finish(outcome)
	}

	outcome.Status = models.NotificationOutcomeSent
	outcome.SentAt = &claimedAt
	recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionNotificationSent, "submission", sub.ID, nil,
		map[string]interface{}{"channel": s.dispatcher.Channel(), "recipient": address})
	return s.finish(outcome)
}

func (s *NotificationService) finish(outcome models.NotificationOutcome) models.NotificationOutcome {
	s.metrics.RecordNotification(s.dispatcher.Channel(), outcome.Status)
	return outcome
}

func (s *NotificationService) templateOr(template string) string {
	if template != "" {
		return template
	}
	return s.template
}

// nextDate prefers an explicit date, then a future due date. Otherwise the
// placeholder is left for the reader.
func (s *NotificationService) nextDate(explicit string, dueAt *time.Time) string {
	if explicit != "" {
		return explicit
	}
	if dueAt != nil && dueAt.After(s.now()) {
		return dueAt.Format(nextDateLayout)
	}
	return ""
}
