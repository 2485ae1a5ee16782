package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"releaseplane/internal/observability"
	"releaseplane/internal/provider"
	"releaseplane/internal/store"

	"github.com/google/uuid"
)

// defaultSlotWindow is how far from a regression slot's timestamp the slot
// still counts as due. Sized to tick frequency, not wall-clock precision.
const defaultSlotWindow = 60 * time.Second

// TickScheduler starts and stops per-release tick scheduling. Supplied by
// the host process; the engine never owns timers directly.
type TickScheduler interface {
	Start(releaseID uuid.UUID)
	Stop(releaseID uuid.UUID)
}

// Deps bundles the repositories and collaborators a machine needs. Every
// tick gets them injected explicitly; the engine holds no ambient state.
type Deps struct {
	Releases  store.ReleaseStore
	CronJobs  store.CronJobStore
	Tasks     store.TaskStore
	Cycles    store.CycleStore
	Targets   store.TargetStore
	Executor  *Executor
	Gate      *Gate
	Providers *provider.Registry
	Scheduler TickScheduler
	Metrics   *observability.EngineMetrics
	Log       *slog.Logger

	// Now and SlotWindow exist so tests control the clock; zero values
	// mean wall clock and the 60s default.
	Now        func() time.Time
	SlotWindow time.Duration
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) slotWindow() time.Duration {
	if d.SlotWindow > 0 {
		return d.SlotWindow
	}
	return defaultSlotWindow
}

// Machine holds the current stage state for one release and drives one tick
// at a time through it. A machine is built fresh per tick from persisted
// state; it is not shared between goroutines.
type Machine struct {
	release *store.Release
	cron    *store.CronJob
	deps    *Deps
	state   StageState
	log     *slog.Logger
}

// NewMachine creates a machine for a release. Call Initialize before Execute.
func NewMachine(release *store.Release, deps *Deps) *Machine {
	return &Machine{
		release: release,
		deps:    deps,
		log:     deps.Log.With("release_id", release.ID.String()),
	}
}

// Initialize loads the cron job and resumes at the first non-completed
// stage: Kickoff, then Regression, then Post-Regression.
func (m *Machine) Initialize(ctx context.Context) error {
	cron, err := m.deps.CronJobs.GetCronJobByRelease(ctx, m.release.ID)
	if err != nil {
		return fmt.Errorf("cron job for release %s: %w", m.release.ID, err)
	}
	m.cron = cron

	switch {
	case cron.Stage1Status != store.StageStatusCompleted:
		m.state = &KickoffState{m: m}
	case cron.Stage2Status != store.StageStatusCompleted:
		m.state = &RegressionState{m: m}
	case cron.Stage3Status != store.StageStatusCompleted:
		m.state = &PostRegressionState{m: m}
	default:
		m.state = nil // workflow complete
	}

	return nil
}

// Execute runs one tick: the current state ensures its tasks exist, executes
// the eligible ones, and the machine transitions when the stage's completion
// predicate holds. Re-invoking on a completed workflow is a no-op.
func (m *Machine) Execute(ctx context.Context) error {
	if m.cron == nil {
		return fmt.Errorf("machine for release %s not initialized", m.release.ID)
	}
	if m.state == nil || m.IsWorkflowComplete() {
		return nil
	}

	if err := m.state.Execute(ctx); err != nil {
		return fmt.Errorf("stage %s execute: %w", m.state.Stage(), err)
	}

	done, err := m.state.IsComplete(ctx)
	if err != nil {
		return fmt.Errorf("stage %s completion check: %w", m.state.Stage(), err)
	}
	if done {
		if err := m.state.TransitionToNext(ctx); err != nil {
			return fmt.Errorf("stage %s transition: %w", m.state.Stage(), err)
		}
	}

	return nil
}

// SetState swaps the current stage state. Used by states after a successful
// transition.
func (m *Machine) SetState(s StageState) {
	m.state = s
}

// IsWorkflowComplete reports whether all three stages are completed.
func (m *Machine) IsWorkflowComplete() bool {
	if m.cron == nil {
		return false
	}
	return m.cron.Stage1Status == store.StageStatusCompleted &&
		m.cron.Stage2Status == store.StageStatusCompleted &&
		m.cron.Stage3Status == store.StageStatusCompleted
}

// Release returns the release this machine drives.
func (m *Machine) Release() *store.Release {
	return m.release
}

// CronJob returns the loaded cron job.
func (m *Machine) CronJob() *store.CronJob {
	return m.cron
}

// Releases exposes the release repository to stage states.
func (m *Machine) Releases() store.ReleaseStore { return m.deps.Releases }

// CronJobs exposes the cron job repository to stage states.
func (m *Machine) CronJobs() store.CronJobStore { return m.deps.CronJobs }

// Tasks exposes the task repository to stage states.
func (m *Machine) Tasks() store.TaskStore { return m.deps.Tasks }

// Cycles exposes the regression cycle repository to stage states.
func (m *Machine) Cycles() store.CycleStore { return m.deps.Cycles }

// Executor exposes the task executor to stage states.
func (m *Machine) Executor() *Executor { return m.deps.Executor }
