package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"releaseplane/internal/provider"
	"releaseplane/internal/store"

	"github.com/google/uuid"
)

// MockTaskStore implements store.TaskStore backed by an in-memory slice so
// that list-create-update sequences behave like the real store.
type MockTaskStore struct {
	mu    sync.Mutex
	Tasks []store.ReleaseTask

	// Track method calls
	StatusCalls []TaskStatusCall

	CreateErr error
	StatusErr error
}

type TaskStatusCall struct {
	TaskID uuid.UUID
	Status store.TaskStatus
	ErrMsg *string
}

func (m *MockTaskStore) CreateTask(ctx context.Context, tx store.DBTransaction, task *store.ReleaseTask) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tasks = append(m.Tasks, *task)
	return nil
}

func (m *MockTaskStore) ListTasks(ctx context.Context, releaseID uuid.UUID, stage store.Stage, cycleID *uuid.UUID) ([]store.ReleaseTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.ReleaseTask
	for _, t := range m.Tasks {
		if t.ReleaseID != releaseID || t.Stage != stage {
			continue
		}
		if cycleID == nil && t.CycleID != nil {
			continue
		}
		if cycleID != nil && (t.CycleID == nil || *t.CycleID != *cycleID) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *MockTaskStore) SetTaskStatus(ctx context.Context, tx store.DBTransaction, taskID uuid.UUID, status store.TaskStatus, errMsg *string) error {
	if m.StatusErr != nil {
		return m.StatusErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusCalls = append(m.StatusCalls, TaskStatusCall{TaskID: taskID, Status: status, ErrMsg: errMsg})
	for i := range m.Tasks {
		if m.Tasks[i].ID == taskID {
			m.Tasks[i].Status = status
			m.Tasks[i].ErrorMessage = errMsg
		}
	}
	return nil
}

func (m *MockTaskStore) SetTaskExternalData(ctx context.Context, tx store.DBTransaction, taskID uuid.UUID, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Tasks {
		if m.Tasks[i].ID == taskID {
			m.Tasks[i].ExternalData = data
		}
	}
	return nil
}

// taskByType returns the stored task of the given type, or nil.
func (m *MockTaskStore) taskByType(taskType store.TaskType) *store.ReleaseTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Tasks {
		if m.Tasks[i].Type == taskType {
			return &m.Tasks[i]
		}
	}
	return nil
}

// MockReleaseStore implements store.ReleaseStore for testing.
type MockReleaseStore struct {
	mu       sync.Mutex
	Releases map[uuid.UUID]*store.Release

	StatusCalls []ReleaseStatusCall
	GetCalls    int
}

type ReleaseStatusCall struct {
	ReleaseID uuid.UUID
	Status    store.ReleaseStatus
}

func (m *MockReleaseStore) CreateRelease(ctx context.Context, tx store.DBTransaction, release *store.Release) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Releases == nil {
		m.Releases = make(map[uuid.UUID]*store.Release)
	}
	m.Releases[release.ID] = release
	return nil
}

func (m *MockReleaseStore) GetReleaseByID(ctx context.Context, id uuid.UUID) (*store.Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	r, ok := m.Releases[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockReleaseStore) ListActiveReleases(ctx context.Context) ([]store.Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Release
	for _, r := range m.Releases {
		if r.Status == store.ReleaseStatusInProgress {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *MockReleaseStore) SetReleaseStatus(ctx context.Context, tx store.DBTransaction, id uuid.UUID, status store.ReleaseStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusCalls = append(m.StatusCalls, ReleaseStatusCall{ReleaseID: id, Status: status})
	if r, ok := m.Releases[id]; ok {
		r.Status = status
	}
	return nil
}

func (m *MockReleaseStore) CountActiveReleases(ctx context.Context) (int64, error) {
	releases, _ := m.ListActiveReleases(ctx)
	return int64(len(releases)), nil
}

// MockCronJobStore implements store.CronJobStore around a single job record.
type MockCronJobStore struct {
	mu  sync.Mutex
	Job *store.CronJob

	StageCalls []StageStatusCall
	CronCalls  []store.CronStatus
	SlotCalls  int
}

type StageStatusCall struct {
	Stage  store.Stage
	Status store.StageStatus
}

func (m *MockCronJobStore) CreateCronJob(ctx context.Context, tx store.DBTransaction, job *store.CronJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Job = job
	return nil
}

func (m *MockCronJobStore) GetCronJobByRelease(ctx context.Context, releaseID uuid.UUID) (*store.CronJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Job == nil {
		return nil, store.ErrNotFound
	}
	cp := *m.Job
	return &cp, nil
}

func (m *MockCronJobStore) SetStageStatus(ctx context.Context, tx store.DBTransaction, releaseID uuid.UUID, stage store.Stage, status store.StageStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StageCalls = append(m.StageCalls, StageStatusCall{Stage: stage, Status: status})
	if m.Job != nil {
		switch stage {
		case store.StageKickoff:
			m.Job.Stage1Status = status
		case store.StageRegression:
			m.Job.Stage2Status = status
		case store.StagePostRegression:
			m.Job.Stage3Status = status
		}
	}
	return nil
}

func (m *MockCronJobStore) SetCronStatus(ctx context.Context, tx store.DBTransaction, releaseID uuid.UUID, status store.CronStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CronCalls = append(m.CronCalls, status)
	if m.Job != nil {
		m.Job.Status = status
	}
	return nil
}

func (m *MockCronJobStore) SetSlots(ctx context.Context, tx store.DBTransaction, releaseID uuid.UUID, slots []store.RegressionSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SlotCalls++
	if m.Job != nil {
		m.Job.Slots = slots
	}
	return nil
}

// MockCycleStore implements store.CycleStore for testing.
type MockCycleStore struct {
	mu     sync.Mutex
	Cycles []store.RegressionCycle
}

func (m *MockCycleStore) CreateCycle(ctx context.Context, tx store.DBTransaction, cycle *store.RegressionCycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cycles = append(m.Cycles, *cycle)
	return nil
}

func (m *MockCycleStore) LatestCycle(ctx context.Context, releaseID uuid.UUID) (*store.RegressionCycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *store.RegressionCycle
	for i := range m.Cycles {
		c := &m.Cycles[i]
		if c.ReleaseID != releaseID {
			continue
		}
		if latest == nil || c.Number > latest.Number {
			latest = c
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *MockCycleStore) SetCycleStatus(ctx context.Context, tx store.DBTransaction, cycleID uuid.UUID, status store.CycleStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Cycles {
		if m.Cycles[i].ID == cycleID {
			m.Cycles[i].Status = status
		}
	}
	return nil
}

// MockTargetStore implements store.TargetStore for testing.
type MockTargetStore struct {
	Targets []store.PlatformTarget
}

func (m *MockTargetStore) ListTargets(ctx context.Context, releaseID uuid.UUID) ([]store.PlatformTarget, error) {
	return m.Targets, nil
}

func (m *MockTargetStore) CreateTarget(ctx context.Context, tx store.DBTransaction, target *store.PlatformTarget) error {
	m.Targets = append(m.Targets, *target)
	return nil
}

// MockUploadStore implements store.UploadStore for testing.
type MockUploadStore struct {
	mu      sync.Mutex
	Entries []store.UploadLedgerEntry

	MarkUsedCalls []uuid.UUID
	MarkUsedErr   error
}

func (m *MockUploadStore) UpsertEntry(ctx context.Context, tx store.DBTransaction, entry *store.UploadLedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, *entry)
	return nil
}

func (m *MockUploadStore) ListUnusedEntries(ctx context.Context, releaseID uuid.UUID, stage store.Stage, cycleID *uuid.UUID) ([]store.UploadLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.UploadLedgerEntry
	for _, e := range m.Entries {
		if e.ReleaseID != releaseID || e.Stage != stage || e.IsUsed {
			continue
		}
		if cycleID == nil && e.CycleID != nil {
			continue
		}
		if cycleID != nil && (e.CycleID == nil || *e.CycleID != *cycleID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *MockUploadStore) MarkUsed(ctx context.Context, tx store.DBTransaction, entryID uuid.UUID, taskID uuid.UUID, cycleID *uuid.UUID) error {
	if m.MarkUsedErr != nil {
		return m.MarkUsedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkUsedCalls = append(m.MarkUsedCalls, entryID)
	for i := range m.Entries {
		if m.Entries[i].ID == entryID {
			m.Entries[i].IsUsed = true
			m.Entries[i].ConsumerTaskID = &taskID
			m.Entries[i].ConsumerCycleID = cycleID
		}
	}
	return nil
}

// MockBuildStore implements store.BuildStore for testing.
type MockBuildStore struct {
	mu     sync.Mutex
	Builds []store.Build
}

func (m *MockBuildStore) CreateBuild(ctx context.Context, tx store.DBTransaction, build *store.Build) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Builds = append(m.Builds, *build)
	return nil
}

// MockTx implements store.Tx for testing.
type MockTx struct {
	Commits   int
	Rollbacks int
	CommitErr error
}

func (m *MockTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}

func (m *MockTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}

func (m *MockTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (m *MockTx) Commit() error {
	if m.CommitErr != nil {
		return m.CommitErr
	}
	m.Commits++
	return nil
}

func (m *MockTx) Rollback() error {
	m.Rollbacks++
	return nil
}

// MockTxBeginner implements TxBeginner, handing out a shared MockTx.
type MockTxBeginner struct {
	Tx       *MockTx
	BeginErr error
}

func (m *MockTxBeginner) BeginTx(ctx context.Context) (store.Tx, error) {
	if m.BeginErr != nil {
		return nil, m.BeginErr
	}
	if m.Tx == nil {
		m.Tx = &MockTx{}
	}
	return m.Tx, nil
}

// MockScheduler implements TickScheduler for testing.
type MockScheduler struct {
	mu         sync.Mutex
	StartCalls []uuid.UUID
	StopCalls  []uuid.UUID
}

func (m *MockScheduler) Start(releaseID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalls = append(m.StartCalls, releaseID)
}

func (m *MockScheduler) Stop(releaseID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopCalls = append(m.StopCalls, releaseID)
}

// ctxCheckingCronStore wraps MockCronJobStore and rejects writes on a
// cancelled context, the way database/sql does. Entered/Resume, when set,
// let a test pause the first GetCronJobByRelease mid-tick.
type ctxCheckingCronStore struct {
	*MockCronJobStore

	Entered chan struct{}
	Resume  chan struct{}

	CtxErrs int

	once sync.Once
}

func (s *ctxCheckingCronStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		s.mu.Lock()
		s.CtxErrs++
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *ctxCheckingCronStore) CreateCronJob(ctx context.Context, tx store.DBTransaction, job *store.CronJob) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.MockCronJobStore.CreateCronJob(ctx, tx, job)
}

func (s *ctxCheckingCronStore) GetCronJobByRelease(ctx context.Context, releaseID uuid.UUID) (*store.CronJob, error) {
	if s.Entered != nil {
		s.once.Do(func() {
			close(s.Entered)
			<-s.Resume
		})
	}
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.MockCronJobStore.GetCronJobByRelease(ctx, releaseID)
}

func (s *ctxCheckingCronStore) SetStageStatus(ctx context.Context, tx store.DBTransaction, releaseID uuid.UUID, stage store.Stage, status store.StageStatus) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.MockCronJobStore.SetStageStatus(ctx, tx, releaseID, stage, status)
}

func (s *ctxCheckingCronStore) SetCronStatus(ctx context.Context, tx store.DBTransaction, releaseID uuid.UUID, status store.CronStatus) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.MockCronJobStore.SetCronStatus(ctx, tx, releaseID, status)
}

func (s *ctxCheckingCronStore) SetSlots(ctx context.Context, tx store.DBTransaction, releaseID uuid.UUID, slots []store.RegressionSlot) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.MockCronJobStore.SetSlots(ctx, tx, releaseID, slots)
}

// cancellingScheduler cancels a context on Stop, standing in for a scheduler
// that tears down the loop a tick is running under.
type cancellingScheduler struct {
	inner  *MockScheduler
	cancel context.CancelFunc
}

func (s *cancellingScheduler) Start(releaseID uuid.UUID) { s.inner.Start(releaseID) }

func (s *cancellingScheduler) Stop(releaseID uuid.UUID) {
	s.cancel()
	s.inner.Stop(releaseID)
}

// MockProvider implements provider.Provider for testing.
type MockProvider struct {
	mu sync.Mutex

	// ExecuteFunc allows customizing behavior per test.
	ExecuteFunc func(ctx context.Context, platform store.Platform, taskType store.TaskType, params provider.Params) (*provider.Result, error)

	Calls []ProviderCall
}

type ProviderCall struct {
	Platform store.Platform
	TaskType store.TaskType
}

func (m *MockProvider) Execute(ctx context.Context, platform store.Platform, taskType store.TaskType, params provider.Params) (*provider.Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, ProviderCall{Platform: platform, TaskType: taskType})
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, platform, taskType, params)
	}
	return &provider.Result{Identifier: "ok-" + string(platform)}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// okProvider returns a provider that succeeds on every platform.
func okProvider() *MockProvider {
	return &MockProvider{}
}

// failingProvider fails for the given platforms with the given message.
func failingProvider(msg string, platforms ...store.Platform) *MockProvider {
	bad := make(map[store.Platform]bool, len(platforms))
	for _, p := range platforms {
		bad[p] = true
	}
	return &MockProvider{
		ExecuteFunc: func(ctx context.Context, platform store.Platform, taskType store.TaskType, params provider.Params) (*provider.Result, error) {
			if bad[platform] {
				return nil, errors.New(msg)
			}
			return &provider.Result{Identifier: "ok-" + string(platform)}, nil
		},
	}
}

// fixture wires a full engine dependency graph onto in-memory mocks.
type fixture struct {
	release   *store.Release
	tasks     *MockTaskStore
	releases  *MockReleaseStore
	crons     *MockCronJobStore
	cycles    *MockCycleStore
	targets   *MockTargetStore
	uploads   *MockUploadStore
	builds    *MockBuildStore
	scheduler *MockScheduler
	txer      *MockTxBeginner
	providers *provider.Registry
	deps      *Deps

	now time.Time
}

func newFixture(targets []store.PlatformTarget) *fixture {
	release := &store.Release{
		ID:         uuid.New(),
		TenantID:   uuid.New(),
		Name:       "v1.2.0",
		Status:     store.ReleaseStatusInProgress,
		Branch:     "release/v1.2.0",
		BaseBranch: "main",
	}

	f := &fixture{
		release:   release,
		tasks:     &MockTaskStore{},
		releases:  &MockReleaseStore{Releases: map[uuid.UUID]*store.Release{release.ID: release}},
		crons:     &MockCronJobStore{},
		cycles:    &MockCycleStore{},
		targets:   &MockTargetStore{Targets: targets},
		uploads:   &MockUploadStore{},
		builds:    &MockBuildStore{},
		scheduler: &MockScheduler{},
		txer:      &MockTxBeginner{},
		providers: provider.NewRegistry(),
		now:       time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	log := testLogger()
	f.deps = &Deps{
		Releases:  f.releases,
		CronJobs:  f.crons,
		Tasks:     f.tasks,
		Cycles:    f.cycles,
		Targets:   f.targets,
		Providers: f.providers,
		Scheduler: f.scheduler,
		Log:       log,
		Now:       func() time.Time { return f.now },
	}
	f.deps.Executor = NewExecutor(f.providers, f.tasks, f.releases, nil, log)
	f.deps.Gate = NewGate(f.uploads, f.builds, f.tasks, f.txer, log)

	return f
}

// withCron attaches a cron job record and returns it for mutation.
func (f *fixture) withCron() *store.CronJob {
	job := &store.CronJob{
		ID:           uuid.New(),
		ReleaseID:    f.release.ID,
		Stage1Status: store.StageStatusInProgress,
		Stage2Status: store.StageStatusPending,
		Stage3Status: store.StageStatusPending,
		Status:       store.CronStatusRunning,
	}
	f.crons.Job = job
	return job
}

// registerAll binds one provider to every task type in the registry.
func (f *fixture) registerAll(p provider.Provider) {
	for _, spec := range taskSpecs {
		f.providers.Register(spec.Type, p)
	}
}

func defaultTargets() []store.PlatformTarget {
	return []store.PlatformTarget{
		{ID: uuid.New(), Platform: store.PlatformIOS, Target: "app-store", Version: "1.2.0"},
		{ID: uuid.New(), Platform: store.PlatformAndroid, Target: "play-store", Version: "1.2.0"},
	}
}
