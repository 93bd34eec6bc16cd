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
	appErrors "github.com/noah-isme/notebook-tracker-api/pkg/errors"
)

type studentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	AppendClassHistory(ctx context.Context, entry *models.ClassHistoryEntry) error
	ClassHistory(ctx context.Context, studentID string) ([]models.ClassHistoryEntry, error)
}

type classFinder interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// StudentService exposes student lookups and class moves.
type StudentService struct {
	repo      studentRepository
	classes   classFinder
	audit     auditRecorder
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, classes classFinder, audit auditRecorder, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{repo: repo, classes: classes, audit: audit, cache: cache, validator: validate, logger: logger}
}

// Get returns a student with their current class.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// ChangeClass appends a class-history entry moving the student into req.ClassID.
// Earlier submissions stay attributed to the cycles they were recorded in.
func (s *StudentService) ChangeClass(ctx context.Context, studentID string, req dto.ChangeClassRequest, actorID string) (*models.ClassHistoryEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class change payload")
	}

	student, err := s.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	previous := ""
	if student.CurrentClassID != nil {
		previous = *student.CurrentClassID
	}
	if previous == class.ID {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already belongs to this class")
	}

	entry := &models.ClassHistoryEntry{
		StudentID: student.ID,
		ClassID:   class.ID,
		ClassName: class.Name,
		StartedAt: time.Now().UTC(),
		ChangedBy: optionalString(actorID),
	}
	if err := s.repo.AppendClassHistory(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record class change")
	}

	recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionStudentClassMoved, "student", student.ID,
		map[string]string{"classId": previous},
		map[string]string{"classId": class.ID})

	s.cache.InvalidateDefaulters(ctx, previous, class.ID)
	s.logger.Info("student class changed",
		zap.String("student_id", student.ID),
		zap.String("from_class", previous),
		zap.String("to_class", class.ID),
	)
	return entry, nil
}

// ClassHistory lists the class membership log of a student, oldest first.
func (s *StudentService) ClassHistory(ctx context.Context, studentID string) ([]models.ClassHistoryEntry, error) {
	if _, err := s.Get(ctx, studentID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ClassHistory(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class history")
	}
	if entries == nil {
		entries = []models.ClassHistoryEntry{}
	}
	return entries, nil
}
