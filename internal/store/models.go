// Package store contains the database layer for releaseplane.
package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Tenant represents a tenant in the multi-tenant system.
// All operations must be scoped by TenantID.
type Tenant struct {
	ID        uuid.UUID
	Name      string
	RateLimit int // requests per second, 0 = unlimited
	CreatedAt time.Time
}

// Platform identifies a mobile distribution platform a release targets.
type Platform string

const (
	PlatformIOS        Platform = "IOS"
	PlatformAndroid    Platform = "ANDROID"
	PlatformAndroidWeb Platform = "ANDROID_WEB"
)

// Stage is one of the three sequential phases of a release.
type Stage string

const (
	StageKickoff        Stage = "KICKOFF"
	StageRegression     Stage = "REGRESSION"
	StagePostRegression Stage = "POST_REGRESSION"
)

// ReleaseStatus represents the state of a release.
type ReleaseStatus string

const (
	ReleaseStatusInProgress ReleaseStatus = "IN_PROGRESS"
	ReleaseStatusPaused     ReleaseStatus = "PAUSED"
	ReleaseStatusCompleted  ReleaseStatus = "COMPLETED"
)

// Release is the tenant-scoped aggregate root. The engine only ever flips
// Status between IN_PROGRESS and PAUSED; creation and deletion happen
// elsewhere.
type Release struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	Name              string
	Status            ReleaseStatus
	Branch            string
	BaseBranch        string
	ManualBuildUpload bool
	CreatedAt         time.Time
}

// StageStatus tracks progress of one stage inside the cron job.
// Transitions are monotonic: PENDING -> IN_PROGRESS -> COMPLETED.
type StageStatus string

const (
	StageStatusPending    StageStatus = "PENDING"
	StageStatusInProgress StageStatus = "IN_PROGRESS"
	StageStatusCompleted  StageStatus = "COMPLETED"
)

// CronStatus is the overall scheduling state of a release's cron job.
type CronStatus string

const (
	CronStatusRunning   CronStatus = "RUNNING"
	CronStatusPaused    CronStatus = "PAUSED"
	CronStatusCompleted CronStatus = "COMPLETED"
)

// RegressionSlot is one scheduled regression window. Slots are stored as a
// JSON array on the cron job and removed as they are consumed by cycles.
type RegressionSlot struct {
	At     time.Time       `json:"at"`
	Config json.RawMessage `json:"config,omitempty"`
}

// CronJob drives the stage state machine for a release. Exactly one exists
// per release.
type CronJob struct {
	ID           uuid.UUID
	ReleaseID    uuid.UUID
	Stage1Status StageStatus
	Stage2Status StageStatus
	Stage3Status StageStatus
	Status       CronStatus
	// AutoTransitionStage2 controls the Stage 1 -> Stage 2 boundary,
	// AutoTransitionStage3 the Stage 2 -> Stage 3 boundary. When false the
	// boundary needs an external approval.
	AutoTransitionStage2 bool
	AutoTransitionStage3 bool
	Slots                []RegressionSlot
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// StageStatusFor returns the status of the given stage.
func (c *CronJob) StageStatusFor(stage Stage) StageStatus {
	switch stage {
	case StageKickoff:
		return c.Stage1Status
	case StageRegression:
		return c.Stage2Status
	case StagePostRegression:
		return c.Stage3Status
	}
	return StageStatusPending
}

// TaskType identifies a kind of release task. The set of types per stage and
// their ordering live in the engine's task registry.
type TaskType string

const (
	TaskForkBranches          TaskType = "fork_branches"
	TaskCreateTrackingTicket  TaskType = "create_tracking_ticket"
	TaskCreateTestRuns        TaskType = "create_test_runs"
	TaskTriggerKickoffBuilds  TaskType = "trigger_kickoff_builds"
	TaskNotifyKickoff         TaskType = "notify_kickoff"
	TaskTriggerRegressionBlds TaskType = "trigger_regression_builds"
	TaskCreateRegressionRuns  TaskType = "create_regression_runs"
	TaskNotifyRegression      TaskType = "notify_regression"
	TaskCreateReleaseTags     TaskType = "create_release_tags"
	TaskTriggerReleaseBuilds  TaskType = "trigger_release_builds"
	TaskFileReleaseTicket     TaskType = "file_release_ticket"
	TaskNotifyReleaseReady    TaskType = "notify_release_ready"
)

// TaskStatus represents the state of a release task.
// Terminal states: COMPLETED, FAILED, SKIPPED.
type TaskStatus string

const (
	TaskStatusPending          TaskStatus = "PENDING"
	TaskStatusInProgress       TaskStatus = "IN_PROGRESS"
	TaskStatusAwaitingCallback TaskStatus = "AWAITING_CALLBACK"
	TaskStatusCompleted        TaskStatus = "COMPLETED"
	TaskStatusFailed           TaskStatus = "FAILED"
	TaskStatusSkipped          TaskStatus = "SKIPPED"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusSkipped
}

// ReleaseTask is one unit of work: one row per (release, stage, type) and,
// for regression, per cycle.
type ReleaseTask struct {
	ID           uuid.UUID
	ReleaseID    uuid.UUID
	Stage        Stage
	Type         TaskType
	Status       TaskStatus
	CycleID      *uuid.UUID
	ExternalData json.RawMessage // per-platform artifact identifiers etc.
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CycleStatus represents the state of a regression cycle.
type CycleStatus string

const (
	CycleStatusInProgress CycleStatus = "IN_PROGRESS"
	CycleStatusDone       CycleStatus = "DONE"
)

// RegressionCycle is one scheduled pass of regression testing. Numbers are
// monotonically increasing per release.
type RegressionCycle struct {
	ID        uuid.UUID
	ReleaseID uuid.UUID
	Number    int
	Status    CycleStatus
	SlotAt    time.Time
	CreatedAt time.Time
}

// PlatformTarget is one (platform, target, version) combination a release
// must satisfy. Read-only input to the executor and scheduler.
type PlatformTarget struct {
	ID        uuid.UUID
	ReleaseID uuid.UUID
	Platform  Platform
	Target    string
	Version   string
}

// UploadLedgerEntry records an externally uploaded build artifact. Unused
// entries may be replaced (upsert by release/platform/stage/cycle); consumed
// entries are immutable history.
type UploadLedgerEntry struct {
	ID              uuid.UUID
	ReleaseID       uuid.UUID
	Platform        Platform
	Stage           Stage
	CycleID         *uuid.UUID
	ArtifactRef     string
	IsUsed          bool
	ConsumerTaskID  *uuid.UUID
	ConsumerCycleID *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BuildSource tells where a build record came from.
type BuildSource string

const (
	BuildSourceUpload BuildSource = "UPLOAD"
	BuildSourceCI     BuildSource = "CI"
)

// Build is a per-platform build record created when a build task completes,
// either from a consumed upload or a CI trigger.
type Build struct {
	ID          uuid.UUID
	ReleaseID   uuid.UUID
	Platform    Platform
	Stage       Stage
	CycleID     *uuid.UUID
	ArtifactRef string
	Source      BuildSource
	CreatedAt   time.Time
}
