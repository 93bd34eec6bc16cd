package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/notebook-tracker-api/internal/dto"
	"github.com/noah-isme/notebook-tracker-api/internal/models"
	appErrors "github.com/noah-isme/notebook-tracker-api/pkg/errors"
	"github.com/noah-isme/notebook-tracker-api/pkg/jobs"
	"github.com/noah-isme/notebook-tracker-api/pkg/middleware/requestid"
)

type notificationFixture struct {
	svc        *NotificationService
	subs       *fakeSubmissions
	cycles     *fakeCycles
	dispatcher *fakeDispatcher
	audit      *fakeAudit
	cache      *memoryCacheRepo
	metrics    *MetricsService
}

func newNotificationFixture(rows ...models.Submission) notificationFixture {
	f := notificationFixture{
		subs:       newFakeSubmissions(rows...),
		cycles:     newFakeCycles(activeCycle()),
		dispatcher: &fakeDispatcher{channel: "sms", failFor: map[string]bool{"+914": true}},
		audit:      &fakeAudit{},
		cache:      newMemoryCacheRepo(),
		metrics:    NewMetricsService(),
	}
	f.svc = NewNotificationService(NotificationServiceParams{
		Submissions: f.subs,
		Students: newFakeRoster(
			student("st1", "Asha", "01", "c1", "+911"),
			student("st2", "Bilal", "02", "c1", ""),
			student("st4", "Dev", "03", "c1", "+914"),
		),
		Cycles:     f.cycles,
		Dispatcher: f.dispatcher,
		Audit:      f.audit,
		Cache:      NewCacheService(f.cache, f.metrics, time.Minute, zap.NewNop(), true),
		Metrics:    f.metrics,
		Logger:     zap.NewNop(),
	})
	f.svc.now = func() time.Time { return testNow }
	return f
}

func TestNotificationServicePreview(t *testing.T) {
	f := newNotificationFixture()

	res := f.svc.Preview(dto.PreviewNotificationRequest{Fields: models.NotificationFields{ParentName: "Mrs. Rao", StudentName: "Asha", Subject: "Science"}})
	assert.Equal(t, "Dear Mrs. Rao, Asha has not submitted the Science notebook. Please ensure it is submitted by [next date].", res.Message)

	res = f.svc.Preview(dto.PreviewNotificationRequest{Template: "[Subject] for [Student Name]", Fields: models.NotificationFields{StudentName: "[Subject]", Subject: "Maths"}})
	assert.Equal(t, "[Subject] for [Student Name]", res.Template)
	assert.Equal(t, "Maths for [Subject]", res.Message)
	assert.Empty(t, f.dispatcher.sent)
}

func TestNotificationServiceSendIsIdempotent(t *testing.T) {
	f := newNotificationFixture(missingRow("r1", "st1", testNow.Add(-72*time.Hour)))

	outcome, err := f.svc.Send(context.Background(), "r1", dto.SendNotificationRequest{NextDate: "Friday"}, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, models.NotificationOutcomeSent, outcome.Status)
	assert.Equal(t, "+911", outcome.Recipient)
	require.NotNil(t, outcome.SentAt)
	assert.Equal(t, testNow, *outcome.SentAt)
	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, "Dear Guardian of Asha, Asha has not submitted the Science notebook. Please ensure it is submitted by Friday.", f.dispatcher.sent[0].Body)
	assert.Equal(t, "r1", f.dispatcher.sent[0].Reference)
	assert.True(t, f.subs.status("r1").NotificationSent)
	assert.Equal(t, []string{models.AuditActionNotificationSent}, f.audit.actions())

	outcome, err = f.svc.Send(context.Background(), "r1", dto.SendNotificationRequest{}, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, models.NotificationOutcomeAlreadySent, outcome.Status)
	assert.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().NotificationsSent)
}

func TestNotificationServiceSendErrors(t *testing.T) {
	submitted := missingRow("r1", "st1", testNow.Add(-72*time.Hour))
	submitted.Status = models.SubmissionStatusSubmitted
	at := testNow.Add(-time.Hour)
	submitted.SubmittedAt = &at
	f := newNotificationFixture(
		submitted,
		missingRow("r2", "st2", testNow.Add(-72*time.Hour)),
		missingRow("r4", "st4", testNow.Add(-72*time.Hour)),
	)

	_, err := f.svc.Send(context.Background(), "r1", dto.SendNotificationRequest{}, "")
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Send(context.Background(), "r2", dto.SendNotificationRequest{}, "")
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Send(context.Background(), "r4", dto.SendNotificationRequest{}, "")
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.Equal(t, []string{"r4"}, f.subs.released)
	assert.False(t, f.subs.status("r4").NotificationSent)

	_, err = f.svc.Send(context.Background(), "r9", dto.SendNotificationRequest{}, "")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	assert.Empty(t, f.dispatcher.sent)
	assert.Empty(t, f.audit.logs)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().NotificationsFailed)
}

func TestNotificationServiceSendBatch(t *testing.T) {
	f := newNotificationFixture(
		missingRow("r1", "st1", testNow.Add(-72*time.Hour)),
		missingRow("r4", "st4", testNow.Add(-72*time.Hour)),
	)

	result, err := f.svc.SendBatch(context.Background(), "c1", "s1", dto.SendNotificationRequest{}, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, "cy1", result.CycleID)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Items, 3)
	assert.Equal(t, models.NotificationOutcomeSent, result.Items[0].Status)
	assert.Equal(t, models.NotificationOutcomeMissingContact, result.Items[1].Status)
	assert.Equal(t, models.NotificationOutcomeFailed, result.Items[2].Status)
	assert.Equal(t, "gateway timeout", result.Items[2].Error)

	// the missing default for st2 was persisted
	require.NotNil(t, result.Items[1].SubmissionID)
	assert.Equal(t, "created-1", *result.Items[1].SubmissionID)

	require.Len(t, f.dispatcher.sent, 1)
	assert.Contains(t, f.dispatcher.sent[0].Body, "by [next date].")

	again, err := f.svc.SendBatch(context.Background(), "c1", "s1", dto.SendNotificationRequest{}, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Sent)
	assert.Equal(t, models.NotificationOutcomeAlreadySent, again.Items[0].Status)
	assert.Len(t, f.dispatcher.sent, 1)
	assert.Len(t, f.subs.rows, 3)

	// only the first run persisted a row, so only it dropped the cached reports
	assert.Equal(t, []string{"notebook:defaulters:c1:*"}, f.cache.deleted)
}

func TestNotificationServiceSendBatchSkipsSubmitted(t *testing.T) {
	row := missingRow("r1", "st1", testNow.Add(-72*time.Hour))
	row.Status = models.SubmissionStatusReturned
	sub, ret := testNow.Add(-60*time.Hour), testNow.Add(-50*time.Hour)
	row.SubmittedAt, row.ReturnedAt = &sub, &ret
	f := newNotificationFixture(row)

	result, err := f.svc.SendBatch(context.Background(), "c1", "s1", dto.SendNotificationRequest{}, "")
	require.NoError(t, err)
	assert.Equal(t, models.NotificationOutcomeNotEligible, result.Items[0].Status)
}

func TestNotificationServiceSendBatchWithoutActiveCycle(t *testing.T) {
	f := newNotificationFixture()

	_, err := f.svc.SendBatch(context.Background(), "c2", "s1", dto.SendNotificationRequest{}, "")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = f.svc.SendBatch(context.Background(), "", "s1", dto.SendNotificationRequest{}, "")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestNotificationServiceNextDateFromFutureDueDate(t *testing.T) {
	f := newNotificationFixture()
	due := time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, "13 Mar 2026", f.svc.nextDate("", &due))
	assert.Equal(t, "Monday", f.svc.nextDate("Monday", &due))
	past := testNow.Add(-time.Hour)
	assert.Equal(t, "", f.svc.nextDate("", &past))
	assert.Equal(t, "", f.svc.nextDate("", nil))
}

func TestNotificationServiceEnqueueBatch(t *testing.T) {
	f := newNotificationFixture()

	_, err := f.svc.EnqueueBatch(context.Background(), "c1", "s1", dto.SendNotificationRequest{}, "")
	assert.Equal(t, appErrors.ErrUnavailable.Code, appErrors.FromError(err).Code)

	queue := &fakeQueue{}
	f.svc.UseQueue(queue)

	accepted, err := f.svc.EnqueueBatch(requestid.WithValue(context.Background(), "req-9"), "c1", "s1", dto.SendNotificationRequest{NextDate: "Friday"}, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", accepted.JobID)
	assert.Equal(t, "queued", accepted.Status)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeBatchNotification, queue.jobs[0].Type)
	payload, ok := queue.jobs[0].Payload.(dto.BatchNotificationJob)
	require.True(t, ok)
	assert.Equal(t, "Friday", payload.Options.NextDate)
	assert.Equal(t, "teacher-1", payload.ActorID)
	assert.Equal(t, "req-9", payload.RequestID)

	_, err = f.svc.EnqueueBatch(context.Background(), "c2", "s1", dto.SendNotificationRequest{}, "")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	queue.err = jobs.ErrQueueFull
	_, err = f.svc.EnqueueBatch(context.Background(), "c1", "s1", dto.SendNotificationRequest{}, "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnavailable.Code, appErr.Code)
	assert.Equal(t, 503, appErr.Status)
}

func TestNotificationServiceHandleJob(t *testing.T) {
	f := newNotificationFixture(missingRow("r1", "st1", testNow.Add(-72*time.Hour)))
	delete(f.dispatcher.failFor, "+914")

	err := f.svc.HandleJob(context.Background(), jobs.Job{ID: "job-1", Type: JobTypeBatchNotification, Payload: dto.BatchNotificationJob{ClassID: "c1", SubjectID: "s1"}})
	require.NoError(t, err)
	assert.Len(t, f.dispatcher.sent, 2)

	assert.NoError(t, f.svc.HandleJob(context.Background(), jobs.Job{ID: "job-2", Payload: "garbage"}))
}

func TestNotificationServiceHandleJobReportsFailures(t *testing.T) {
	f := newNotificationFixture()

	err := f.svc.HandleJob(context.Background(), jobs.Job{ID: "job-1", Type: JobTypeBatchNotification, Payload: dto.BatchNotificationJob{ClassID: "c1", SubjectID: "s1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 notifications failed")
}

func TestNotificationServiceConcurrentBatchesNotifyOnce(t *testing.T) {
	f := newNotificationFixture()
	delete(f.dispatcher.failFor, "+914")
	f.subs.beforeRead = rendezvous(2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SendBatch(context.Background(), "c1", "s1", dto.SendNotificationRequest{}, "teacher-1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	toGuardian := 0
	for _, msg := range f.dispatcher.sent {
		if msg.To.Phone == "+911" {
			toGuardian++
		}
	}
	assert.Equal(t, 1, toGuardian)
	assert.Len(t, f.dispatcher.sent, 2)
	assert.Equal(t, 1, f.subs.count("st1"))
	assert.Equal(t, 1, f.subs.count("st4"))
}

func TestNotificationServiceHandleJobDropsPermanentFailures(t *testing.T) {
	f := newNotificationFixture()

	err := f.svc.HandleJob(context.Background(), jobs.Job{ID: "job-3", Type: JobTypeBatchNotification, Payload: dto.BatchNotificationJob{ClassID: "c2", SubjectID: "s1"}})
	assert.NoError(t, err, "a class without an active cycle will not gain one by retrying")
	assert.Empty(t, f.dispatcher.sent)

	assert.False(t, retryableJobError(appErrors.Clone(appErrors.ErrNotFound, "no active cycle")))
	assert.False(t, retryableJobError(appErrors.ErrValidation))
	assert.True(t, retryableJobError(appErrors.ErrInternal))
	assert.True(t, retryableJobError(errBoom))
}
