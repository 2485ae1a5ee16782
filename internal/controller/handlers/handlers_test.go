package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	"releaseplane/internal/store"

	"github.com/google/uuid"
)

// Mock transaction
type mockTx struct {
	commitErr error
	commits   int
	rollbacks int
}

func (m *mockTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (m *mockTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (m *mockTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (m *mockTx) Commit() error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.commits++
	return nil
}

func (m *mockTx) Rollback() error {
	m.rollbacks++
	return nil
}

// Mock Store
type mockStore struct {
	// Hooks
	beginTxErr       error
	pingErr          error
	createReleaseErr error
	createCronErr    error
	createTargetErr  error
	getReleaseResp   *store.Release
	getReleaseErr    error
	getCronResp      *store.CronJob
	getCronErr       error
	setReleaseErr    error
	setStageErr      error
	setCronErr       error
	latestCycleResp  *store.RegressionCycle
	latestCycleErr   error
	listTasksResp    []store.ReleaseTask
	upsertEntryErr   error
	createTenantErr  error

	// Spies (to verify arguments passed by handlers)
	tx                    *mockTx
	capturedRelease       *store.Release
	capturedCron          *store.CronJob
	capturedTargets       []store.PlatformTarget
	capturedEntry         *store.UploadLedgerEntry
	capturedReleaseStatus store.ReleaseStatus
	capturedStage         store.Stage
	capturedStageStatus   store.StageStatus
	capturedCronStatus    store.CronStatus
	capturedTenant        *store.Tenant
	capturedHashedKey     string
}

func (m *mockStore) BeginTx(ctx context.Context) (store.Tx, error) {
	if m.beginTxErr != nil {
		return nil, m.beginTxErr
	}
	if m.tx == nil {
		m.tx = &mockTx{}
	}
	return m.tx, nil
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *mockStore) CreateTenant(ctx context.Context, tenant *store.Tenant, hashedKey string) error {
	m.capturedTenant = tenant
	m.capturedHashedKey = hashedKey
	return m.createTenantErr
}

func (m *mockStore) GetTenantByID(ctx context.Context, id uuid.UUID) (*store.Tenant, error) {
	return nil, nil // Handled by Auth Middleware, not Handlers
}

func (m *mockStore) GetTenantByAPIKeyHash(ctx context.Context, hash string) (*store.Tenant, error) {
	return nil, nil // Handled by Auth Middleware, not Handlers
}

func (m *mockStore) CreateRelease(ctx context.Context, tx store.DBTransaction, release *store.Release) error {
	m.capturedRelease = release
	return m.createReleaseErr
}

func (m *mockStore) GetReleaseByID(ctx context.Context, id uuid.UUID) (*store.Release, error) {
	return m.getReleaseResp, m.getReleaseErr
}

func (m *mockStore) ListActiveReleases(ctx context.Context) ([]store.Release, error) {
	return nil, nil
}

func (m *mockStore) SetReleaseStatus(ctx context.Context, tx store.DBTransaction, id uuid.UUID, status store.ReleaseStatus) error {
	m.capturedReleaseStatus = status
	return m.setReleaseErr
}

func (m *mockStore) CountActiveReleases(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *mockStore) CreateCronJob(ctx context.Context, tx store.DBTransaction, job *store.CronJob) error {
	m.capturedCron = job
	return m.createCronErr
}

func (m *mockStore) GetCronJobByRelease(ctx context.Context, releaseID uuid.UUID) (*store.CronJob, error) {
	return m.getCronResp, m.getCronErr
}

func (m *mockStore) SetStageStatus(ctx context.Context, tx store.DBTransaction, releaseID uuid.UUID, stage store.Stage, status store.StageStatus) error {
	m.capturedStage = stage
	m.capturedStageStatus = status
	return m.setStageErr
}

func (m *mockStore) SetCronStatus(ctx context.Context, tx store.DBTransaction, releaseID uuid.UUID, status store.CronStatus) error {
	m.capturedCronStatus = status
	return m.setCronErr
}

func (m *mockStore) SetSlots(ctx context.Context, tx store.DBTransaction, releaseID uuid.UUID, slots []store.RegressionSlot) error {
	return nil
}

func (m *mockStore) CreateTask(ctx context.Context, tx store.DBTransaction, task *store.ReleaseTask) error {
	return nil
}

func (m *mockStore) ListTasks(ctx context.Context, releaseID uuid.UUID, stage store.Stage, cycleID *uuid.UUID) ([]store.ReleaseTask, error) {
	var out []store.ReleaseTask
	for _, t := range m.listTasksResp {
		if t.Stage == stage {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockStore) SetTaskStatus(ctx context.Context, tx store.DBTransaction, taskID uuid.UUID, status store.TaskStatus, errMsg *string) error {
	return nil
}

func (m *mockStore) SetTaskExternalData(ctx context.Context, tx store.DBTransaction, taskID uuid.UUID, data json.RawMessage) error {
	return nil
}

func (m *mockStore) CreateCycle(ctx context.Context, tx store.DBTransaction, cycle *store.RegressionCycle) error {
	return nil
}

func (m *mockStore) LatestCycle(ctx context.Context, releaseID uuid.UUID) (*store.RegressionCycle, error) {
	if m.latestCycleErr != nil {
		return nil, m.latestCycleErr
	}
	if m.latestCycleResp == nil {
		return nil, store.ErrNotFound
	}
	return m.latestCycleResp, nil
}

func (m *mockStore) SetCycleStatus(ctx context.Context, tx store.DBTransaction, cycleID uuid.UUID, status store.CycleStatus) error {
	return nil
}

func (m *mockStore) ListTargets(ctx context.Context, releaseID uuid.UUID) ([]store.PlatformTarget, error) {
	return m.capturedTargets, nil
}

func (m *mockStore) CreateTarget(ctx context.Context, tx store.DBTransaction, target *store.PlatformTarget) error {
	m.capturedTargets = append(m.capturedTargets, *target)
	return m.createTargetErr
}

func (m *mockStore) UpsertEntry(ctx context.Context, tx store.DBTransaction, entry *store.UploadLedgerEntry) error {
	m.capturedEntry = entry
	return m.upsertEntryErr
}

func (m *mockStore) ListUnusedEntries(ctx context.Context, releaseID uuid.UUID, stage store.Stage, cycleID *uuid.UUID) ([]store.UploadLedgerEntry, error) {
	return nil, nil
}

func (m *mockStore) MarkUsed(ctx context.Context, tx store.DBTransaction, entryID uuid.UUID, taskID uuid.UUID, cycleID *uuid.UUID) error {
	return nil
}

// mockScheduler records start/stop requests from handlers.
type mockScheduler struct {
	mu         sync.Mutex
	startCalls []uuid.UUID
	stopCalls  []uuid.UUID
}

func (m *mockScheduler) Start(releaseID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls = append(m.startCalls, releaseID)
}

func (m *mockScheduler) Stop(releaseID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls = append(m.stopCalls, releaseID)
}
