package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx
// This allows us to pass either a connection pool or an active transaction to the repository methods.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// TenantStore handles retrieving tenant information for authentication.
type TenantStore interface {
	// CreateTenant inserts a new tenant to the database
	CreateTenant(ctx context.Context, tenant *Tenant, hashedKey string) error

	// GetTenantByID returns a tenant by its ID.
	GetTenantByID(ctx context.Context, id uuid.UUID) (*Tenant, error)

	// GetTenantByAPIKeyHash returns a tenant by its API key hash.
	GetTenantByAPIKeyHash(ctx context.Context, hash string) (*Tenant, error)
}

// ReleaseStore handles persistence of releases.
type ReleaseStore interface {
	// CreateRelease inserts a new release.
	CreateRelease(ctx context.Context, tx DBTransaction, release *Release) error

	// GetReleaseByID returns a release by its ID.
	GetReleaseByID(ctx context.Context, id uuid.UUID) (*Release, error)

	// ListActiveReleases returns all releases with status IN_PROGRESS.
	ListActiveReleases(ctx context.Context) ([]Release, error)

	// SetReleaseStatus flips a release's status.
	SetReleaseStatus(ctx context.Context, tx DBTransaction, id uuid.UUID, status ReleaseStatus) error

	// CountActiveReleases returns the number of IN_PROGRESS releases.
	CountActiveReleases(ctx context.Context) (int64, error)
}

// CronJobStore handles the 1:1 cron job record that drives a release's
// stage state machine.
type CronJobStore interface {
	// CreateCronJob inserts the cron job for a release.
	CreateCronJob(ctx context.Context, tx DBTransaction, job *CronJob) error

	// GetCronJobByRelease returns the cron job for a release.
	// Returns ErrNotFound if the release has none.
	GetCronJobByRelease(ctx context.Context, releaseID uuid.UUID) (*CronJob, error)

	// SetStageStatus updates the status of one stage.
	SetStageStatus(ctx context.Context, tx DBTransaction, releaseID uuid.UUID, stage Stage, status StageStatus) error

	// SetCronStatus updates the overall cron status.
	SetCronStatus(ctx context.Context, tx DBTransaction, releaseID uuid.UUID, status CronStatus) error

	// SetSlots replaces the upcoming regression slots.
	SetSlots(ctx context.Context, tx DBTransaction, releaseID uuid.UUID, slots []RegressionSlot) error
}

// TaskStore handles persistence of release tasks.
type TaskStore interface {
	// CreateTask inserts a new task row.
	CreateTask(ctx context.Context, tx DBTransaction, task *ReleaseTask) error

	// ListTasks returns tasks for a release and stage. When cycleID is
	// non-nil only tasks belonging to that cycle are returned; when nil,
	// only tasks without a cycle.
	ListTasks(ctx context.Context, releaseID uuid.UUID, stage Stage, cycleID *uuid.UUID) ([]ReleaseTask, error)

	// SetTaskStatus updates a task's status and, optionally, its error message.
	SetTaskStatus(ctx context.Context, tx DBTransaction, taskID uuid.UUID, status TaskStatus, errMsg *string) error

	// SetTaskExternalData replaces the opaque external data blob on a task.
	SetTaskExternalData(ctx context.Context, tx DBTransaction, taskID uuid.UUID, data json.RawMessage) error
}

// CycleStore handles persistence of regression cycles.
type CycleStore interface {
	// CreateCycle inserts a new regression cycle.
	CreateCycle(ctx context.Context, tx DBTransaction, cycle *RegressionCycle) error

	// LatestCycle returns the highest-numbered cycle for a release.
	// Returns ErrNotFound when the release has no cycles yet.
	LatestCycle(ctx context.Context, releaseID uuid.UUID) (*RegressionCycle, error)

	// SetCycleStatus updates a cycle's status.
	SetCycleStatus(ctx context.Context, tx DBTransaction, cycleID uuid.UUID, status CycleStatus) error
}

// TargetStore exposes the read-only platform/target/version mappings.
type TargetStore interface {
	// ListTargets returns all platform targets for a release.
	ListTargets(ctx context.Context, releaseID uuid.UUID) ([]PlatformTarget, error)

	// CreateTarget inserts a platform target mapping.
	CreateTarget(ctx context.Context, tx DBTransaction, target *PlatformTarget) error
}

// UploadStore handles the manual-build-upload ledger.
type UploadStore interface {
	// UpsertEntry inserts an entry or, when an unused entry already exists
	// for the same (release, platform, stage, cycle), replaces its artifact.
	// Consumed entries are never touched.
	UpsertEntry(ctx context.Context, tx DBTransaction, entry *UploadLedgerEntry) error

	// ListUnusedEntries returns unused entries for (release, stage, cycle).
	ListUnusedEntries(ctx context.Context, releaseID uuid.UUID, stage Stage, cycleID *uuid.UUID) ([]UploadLedgerEntry, error)

	// MarkUsed consumes an entry, recording the consuming task and cycle.
	MarkUsed(ctx context.Context, tx DBTransaction, entryID uuid.UUID, taskID uuid.UUID, cycleID *uuid.UUID) error
}

// BuildStore handles build records.
type BuildStore interface {
	// CreateBuild inserts a build record.
	CreateBuild(ctx context.Context, tx DBTransaction, build *Build) error
}
