package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/notebook-tracker-api/internal/models"
	"github.com/noah-isme/notebook-tracker-api/internal/repository"
	appErrors "github.com/noah-isme/notebook-tracker-api/pkg/errors"
	"github.com/noah-isme/notebook-tracker-api/pkg/jobs"
	"github.com/noah-isme/notebook-tracker-api/pkg/notify"
)

var errBoom = errors.New("boom")

type fakeClasses map[string]*models.Class

func (f fakeClasses) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if class, ok := f[id]; ok {
		return class, nil
	}
	return nil, sql.ErrNoRows
}

type fakeSubjects map[string]*models.Subject

func (f fakeSubjects) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if subject, ok := f[id]; ok {
		return subject, nil
	}
	return nil, sql.ErrNoRows
}

type fakeRoster struct {
	students map[string]*models.StudentDetail
	err      error
}

func newFakeRoster(students ...*models.StudentDetail) *fakeRoster {
	r := &fakeRoster{students: map[string]*models.StudentDetail{}}
	for _, st := range students {
		r.students[st.ID] = st
	}
	return r
}

func (f *fakeRoster) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	if st, ok := f.students[id]; ok {
		return st, nil
	}
	return nil, sql.ErrNoRows
}

// ListByClass returns members ordered by roll number, like the repository.
func (f *fakeRoster) ListByClass(ctx context.Context, classID string) ([]models.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Student
	for _, st := range f.students {
		if st.CurrentClassID != nil && *st.CurrentClassID == classID {
			out = append(out, st.Student)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].RollNo < out[j-1].RollNo; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (f *fakeRoster) AppendClassHistory(ctx context.Context, entry *models.ClassHistoryEntry) error {
	if f.err != nil {
		return f.err
	}
	entry.ID = "history-new"
	if st, ok := f.students[entry.StudentID]; ok {
		classID, className := entry.ClassID, entry.ClassName
		st.CurrentClassID, st.CurrentClassName = &classID, &className
	}
	return nil
}

func (f *fakeRoster) ClassHistory(ctx context.Context, studentID string) ([]models.ClassHistoryEntry, error) {
	return nil, f.err
}

type fakeAudit struct {
	mu   sync.Mutex
	logs []*models.AuditLog
	err  error
}

func (f *fakeAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, log)
	return f.err
}

func (f *fakeAudit) actions() []string {
	out := make([]string, len(f.logs))
	for i, l := range f.logs {
		out[i] = l.Action
	}
	return out
}

type fakeCycles struct {
	byID     map[string]*models.CycleDetail
	started  []*models.CollectionCycle
	created  int
	startErr error
}

func newFakeCycles(cycles ...*models.CycleDetail) *fakeCycles {
	f := &fakeCycles{byID: map[string]*models.CycleDetail{}}
	for _, c := range cycles {
		f.byID[c.ID] = c
	}
	return f
}

func (f *fakeCycles) FindByID(ctx context.Context, id string) (*models.CycleDetail, error) {
	if c, ok := f.byID[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCycles) FindActive(ctx context.Context, classID, subjectID string) (*models.CycleDetail, error) {
	for _, c := range f.byID {
		if c.Active && c.ClassID == classID && c.SubjectID == subjectID {
			return c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCycles) Start(ctx context.Context, cycle *models.CollectionCycle) (int, error) {
	if f.startErr != nil {
		return 0, f.startErr
	}
	cycle.ID = "cycle-new"
	cycle.Active = true
	f.started = append(f.started, cycle)
	return f.created, nil
}

// fakeSubmissions keeps rows in memory and mimics the repository's guarded writes.
// beforeRead, when set, runs ahead of every list call outside the lock.
type fakeSubmissions struct {
	mu         sync.Mutex
	rows       []models.Submission
	records    map[string][]models.SubmissionRecord
	seq        int
	ensureErr  error
	casErr     error
	claimErr   error
	released   []string
	beforeRead func()
}

func newFakeSubmissions(rows ...models.Submission) *fakeSubmissions {
	return &fakeSubmissions{rows: rows, records: map[string][]models.SubmissionRecord{}}
}

func (f *fakeSubmissions) find(id string) int {
	for i := range f.rows {
		if f.rows[i].ID == id {
			return i
		}
	}
	return -1
}

func (f *fakeSubmissions) GetByID(ctx context.Context, id string) (*models.SubmissionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(id)
	if i < 0 {
		return nil, sql.ErrNoRows
	}
	return &models.SubmissionRecord{Submission: f.rows[i], SubjectName: "Science"}, nil
}

func (f *fakeSubmissions) ListForStudentCycle(ctx context.Context, studentID, cycleID string) ([]models.Submission, error) {
	if f.beforeRead != nil {
		f.beforeRead()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forStudentCycle(studentID, cycleID), nil
}

func (f *fakeSubmissions) forStudentCycle(studentID, cycleID string) []models.Submission {
	var out []models.Submission
	for _, row := range f.rows {
		if row.StudentID == studentID && row.CycleID == cycleID {
			out = append(out, row)
		}
	}
	return out
}

func (f *fakeSubmissions) ListForCycle(ctx context.Context, cycleID string) ([]models.Submission, error) {
	if f.beforeRead != nil {
		f.beforeRead()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Submission
	for _, row := range f.rows {
		if row.CycleID == cycleID {
			out = append(out, row)
		}
	}
	return out, nil
}

// EnsureMissing checks and inserts under one lock, like the repository's cycle lock.
func (f *fakeSubmissions) EnsureMissing(ctx context.Context, studentID, cycleID string, at time.Time) ([]models.Submission, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ensureErr != nil {
		return nil, false, f.ensureErr
	}
	if existing := f.forStudentCycle(studentID, cycleID); len(existing) > 0 {
		return existing, false, nil
	}
	f.seq++
	sub := models.Submission{
		ID:        "created-" + strconv.Itoa(f.seq),
		StudentID: studentID,
		CycleID:   cycleID,
		Status:    models.SubmissionStatusMissing,
		CreatedAt: at,
		UpdatedAt: at,
	}
	f.rows = append(f.rows, sub)
	return []models.Submission{sub}, true, nil
}

func (f *fakeSubmissions) count(studentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, row := range f.rows {
		if row.StudentID == studentID {
			n++
		}
	}
	return n
}

func (f *fakeSubmissions) CompareAndSetStatus(ctx context.Context, next *models.Submission, expected models.SubmissionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.casErr != nil {
		return f.casErr
	}
	i := f.find(next.ID)
	if i < 0 {
		return sql.ErrNoRows
	}
	if f.rows[i].Status != expected {
		return repository.ErrStaleStatus
	}
	f.rows[i] = *next
	return nil
}

func (f *fakeSubmissions) ClaimNotification(ctx context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return false, f.claimErr
	}
	i := f.find(id)
	if i < 0 || f.rows[i].Status != models.SubmissionStatusMissing || f.rows[i].NotificationSent {
		return false, nil
	}
	f.rows[i].NotificationSent = true
	f.rows[i].NotificationSentAt = &at
	return true, nil
}

func (f *fakeSubmissions) ReleaseNotification(ctx context.Context, id string, claimedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, id)
	if i := f.find(id); i >= 0 {
		f.rows[i].NotificationSent = false
		f.rows[i].NotificationSentAt = nil
	}
	return nil
}

func (f *fakeSubmissions) HistoryByStudent(ctx context.Context, studentID, subjectID string) ([]models.SubmissionRecord, error) {
	return filterBySubject(f.records[studentID], subjectID), nil
}

func (f *fakeSubmissions) HistoryByStudents(ctx context.Context, studentIDs []string, subjectID string) (map[string][]models.SubmissionRecord, error) {
	out := make(map[string][]models.SubmissionRecord, len(studentIDs))
	for _, id := range studentIDs {
		if records := filterBySubject(f.records[id], subjectID); len(records) > 0 {
			out[id] = records
		}
	}
	return out, nil
}

func (f *fakeSubmissions) status(id string) models.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[f.find(id)]
}

func filterBySubject(records []models.SubmissionRecord, subjectID string) []models.SubmissionRecord {
	if subjectID == "" {
		return records
	}
	var out []models.SubmissionRecord
	for _, r := range records {
		if r.SubjectID == subjectID {
			out = append(out, r)
		}
	}
	return out
}

// memoryCacheRepo is an in-process CacheRepository storing JSON payloads.
type memoryCacheRepo struct {
	mu       sync.Mutex
	items    map[string][]byte
	deleted  []string
	getCalls int
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
		}
	}
	return nil
}

type fakeDispatcher struct {
	mu      sync.Mutex
	channel string
	sent    []notify.Message
	failFor map[string]bool
}

func (d *fakeDispatcher) Channel() string { return d.channel }

func (d *fakeDispatcher) Address(r notify.Recipient) (string, bool) {
	return r.Phone, r.Phone != ""
}

func (d *fakeDispatcher) Send(ctx context.Context, msg notify.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failFor[msg.To.Phone] {
		return errors.New("gateway timeout")
	}
	d.sent = append(d.sent, msg)
	return nil
}

type fakeQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *fakeQueue) TryEnqueue(job jobs.Job) (jobs.Job, error) {
	if q.err != nil {
		return jobs.Job{}, q.err
	}
	job.ID = "job-1"
	q.jobs = append(q.jobs, job)
	return job, nil
}

func strPtr(v string) *string { return &v }

func student(id, name, roll, classID, phone string) *models.StudentDetail {
	st := &models.StudentDetail{Student: models.Student{ID: id, FullName: name, RollNo: roll, GuardianName: "Guardian of " + name, Active: true}}
	if classID != "" {
		st.CurrentClassID = strPtr(classID)
	}
	if phone != "" {
		st.GuardianPhone = strPtr(phone)
	}
	return st
}

// rendezvous blocks each of n callers until all n have arrived, then lets them go together.
func rendezvous(n int) func() {
	var (
		mu      sync.Mutex
		arrived int
		release = make(chan struct{})
	)
	return func() {
		mu.Lock()
		arrived++
		if arrived == n {
			close(release)
		}
		mu.Unlock()
		<-release
	}
}
