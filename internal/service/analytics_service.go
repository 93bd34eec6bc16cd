package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/notebook-tracker-api/internal/dto"
	"github.com/noah-isme/notebook-tracker-api/internal/models"
	"github.com/noah-isme/notebook-tracker-api/internal/tracker"
	appErrors "github.com/noah-isme/notebook-tracker-api/pkg/errors"
)

// HistoryRepository describes the submission reads required by AnalyticsService.
type HistoryRepository interface {
	HistoryByStudent(ctx context.Context, studentID, subjectID string) ([]models.SubmissionRecord, error)
	HistoryByStudents(ctx context.Context, studentIDs []string, subjectID string) (map[string][]models.SubmissionRecord, error)
	ListForStudentCycle(ctx context.Context, studentID, cycleID string) ([]models.Submission, error)
	ListForCycle(ctx context.Context, cycleID string) ([]models.Submission, error)
}

type activeCycleFinder interface {
	FindActive(ctx context.Context, classID, subjectID string) (*models.CycleDetail, error)
}

// AnalyticsConfig tunes defaulter scoring.
type AnalyticsConfig struct {
	DefaultThreshold int
	Concurrency      int
	CacheTTL         time.Duration
}

// AnalyticsService derives submission patterns and defaulter risk, caching class reports.
type AnalyticsService struct {
	history  HistoryRepository
	students classRoster
	classes  classFinder
	cycles   activeCycleFinder
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      AnalyticsConfig
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(history HistoryRepository, students classRoster, classes classFinder, cycles activeCycleFinder, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg AnalyticsConfig) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultThreshold < 1 {
		cfg.DefaultThreshold = tracker.DefaultMissingThreshold
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &AnalyticsService{history: history, students: students, classes: classes, cycles: cycles, cache: cache, metrics: metrics, logger: logger, cfg: cfg}
}

// History summarises a student's submission history, optionally for one subject.
func (s *AnalyticsService) History(ctx context.Context, studentID, subjectID string) (*dto.StudentHistoryResponse, error) {
	if _, err := s.loadStudent(ctx, studentID); err != nil {
		return nil, err
	}
	records, err := s.loadHistory(ctx, studentID, subjectID)
	if err != nil {
		return nil, err
	}
	return &dto.StudentHistoryResponse{
		StudentID: studentID,
		SubjectID: subjectID,
		Summary:   tracker.AggregateHistory(records),
		Records:   records,
	}, nil
}

// Risk scores a single student. A zero threshold selects the configured default.
func (s *AnalyticsService) Risk(ctx context.Context, studentID, subjectID string, threshold int) (*dto.StudentRiskResponse, error) {
	threshold, err := s.resolveThreshold(threshold)
	if err != nil {
		return nil, err
	}
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	records, err := s.loadHistory(ctx, studentID, subjectID)
	if err != nil {
		return nil, err
	}

	summary := tracker.AggregateHistory(records)
	current, err := s.currentStatus(ctx, student, subjectID, records)
	if err != nil {
		return nil, err
	}

	return &dto.StudentRiskResponse{
		StudentID:     studentID,
		CurrentStatus: current,
		Threshold:     threshold,
		Summary:       summary,
		Risk:          tracker.ScoreDefaulterRisk(current, summary, threshold),
	}, nil
}

// Defaulters ranks the students of a class by default probability. The boolean reports
// whether the report came from cache.
func (s *AnalyticsService) Defaulters(ctx context.Context, query models.DefaulterQuery) (*models.DefaulterReport, bool, error) {
	threshold, err := s.resolveThreshold(query.Threshold)
	if err != nil {
		return nil, false, err
	}
	filter := query.Filter
	if filter == "" {
		filter = models.RiskFilterAll
	}
	if !filter.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "filter must be one of: all, high")
	}

	key := DefaulterKey(query.ClassID, query.SubjectID, threshold, filter)
	var cached models.DefaulterReport
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	if _, err := s.classes.FindByID(ctx, query.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	start := time.Now()
	students, err := s.students.ListByClass(ctx, query.ClassID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class students")
	}
	ids := make([]string, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}
	histories, err := s.history.HistoryByStudents(ctx, ids, query.SubjectID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class history")
	}
	s.metrics.ObserveDBQuery("defaulter_history", time.Since(start))

	active, err := s.activeStatuses(ctx, query.ClassID, query.SubjectID)
	if err != nil {
		return nil, false, err
	}

	candidates := make([]models.RiskCandidate, len(students))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i := range students {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			student := students[i]
			records := tracker.LatestPerCycle(histories[student.ID])
			current := lastStatus(records)
			if active != nil {
				// no row in the active cycle means the lazy missing default
				current = models.SubmissionStatusMissing
				if resolved, ok := active[student.ID]; ok {
					current = resolved.Status
				}
			}
			candidates[i] = models.RiskCandidate{
				StudentID:     student.ID,
				StudentName:   student.FullName,
				CurrentStatus: current,
				History:       tracker.AggregateHistory(records),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "defaulter scoring aborted")
	}

	report := &models.DefaulterReport{
		ClassID:     query.ClassID,
		SubjectID:   query.SubjectID,
		Threshold:   threshold,
		Filter:      filter,
		Students:    tracker.ScorePopulation(candidates, threshold, filter),
		GeneratedAt: time.Now().UTC(),
	}
	s.metrics.ObserveScoring(time.Since(start))

	if err := s.cache.Set(ctx, key, report, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("cache defaulter report", zap.String("key", key), zap.Error(err))
	}
	return report, false, nil
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.AnalyticsSystemMetrics {
	return s.metrics.Snapshot()
}

func (s *AnalyticsService) resolveThreshold(threshold int) (int, error) {
	if threshold < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "threshold must not be negative")
	}
	if threshold == 0 {
		threshold = s.cfg.DefaultThreshold
	}
	return tracker.NormalizeThreshold(threshold), nil
}

func (s *AnalyticsService) loadStudent(ctx context.Context, studentID string) (*models.StudentDetail, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// loadHistory returns one record per cycle, so a duplicated row never counts as an extra cycle.
func (s *AnalyticsService) loadHistory(ctx context.Context, studentID, subjectID string) ([]models.SubmissionRecord, error) {
	start := time.Now()
	records, err := s.history.HistoryByStudent(ctx, studentID, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission history")
	}
	s.metrics.ObserveDBQuery("student_history", time.Since(start))
	return tracker.LatestPerCycle(records), nil
}

// currentStatus uses the active cycle of the subject when one is given and exists,
// otherwise the status of the latest history entry.
func (s *AnalyticsService) currentStatus(ctx context.Context, student *models.StudentDetail, subjectID string, records []models.SubmissionRecord) (models.SubmissionStatus, error) {
	if subjectID == "" || student.CurrentClassID == nil {
		return lastStatus(records), nil
	}
	cycle, err := s.cycles.FindActive(ctx, *student.CurrentClassID, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lastStatus(records), nil
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active cycle")
	}
	rows, err := s.history.ListForStudentCycle(ctx, student.ID, cycle.ID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current submission")
	}
	resolved := tracker.ResolveStatus(rows)
	reportAnomaly(s.logger, s.metrics, student.ID, cycle.ID, resolved)
	return resolved.Status, nil
}

// activeStatuses resolves every student's status in the class's active cycle for the
// subject. It returns nil when no subject is given or no cycle is active. Students
// without a row are absent from the map.
func (s *AnalyticsService) activeStatuses(ctx context.Context, classID, subjectID string) (map[string]models.StatusResult, error) {
	if subjectID == "" {
		return nil, nil
	}
	cycle, err := s.cycles.FindActive(ctx, classID, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active cycle")
	}
	subs, err := s.history.ListForCycle(ctx, cycle.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cycle submissions")
	}
	statuses := make(map[string]models.StatusResult)
	for studentID, rows := range groupByStudent(subs) {
		resolved := tracker.ResolveStatus(rows)
		reportAnomaly(s.logger, s.metrics, studentID, cycle.ID, resolved)
		statuses[studentID] = resolved
	}
	return statuses, nil
}

func lastStatus(records []models.SubmissionRecord) models.SubmissionStatus {
	if len(records) == 0 {
		return models.SubmissionStatusMissing
	}
	return records[len(records)-1].Status
}

