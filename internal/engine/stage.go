package engine

import (
	"context"
	"fmt"

	"releaseplane/internal/store"

	"github.com/google/uuid"
)

// StageState is the contract each of the three stages implements. Execute
// never returns an error for an individual task failure; failures are
// recorded on the task and release, and the tick continues.
type StageState interface {
	// Stage returns the stage identifier.
	Stage() store.Stage

	// Execute ensures required tasks exist and runs the eligible ones.
	Execute(ctx context.Context) error

	// IsComplete evaluates the stage's completion predicate.
	IsComplete(ctx context.Context) (bool, error)

	// TransitionToNext idempotently completes the stage and either swaps
	// to the next state (auto-transition) or pauses for approval.
	TransitionToNext(ctx context.Context) error
}

// ensureStageInProgress bumps a PENDING stage to IN_PROGRESS. Stage statuses
// are monotonic, so repeating this is harmless.
func (m *Machine) ensureStageInProgress(ctx context.Context, stage store.Stage) error {
	if m.cron.StageStatusFor(stage) != store.StageStatusPending {
		return nil
	}
	if err := m.deps.CronJobs.SetStageStatus(ctx, nil, m.release.ID, stage, store.StageStatusInProgress); err != nil {
		return fmt.Errorf("failed to start stage %s: %w", stage, err)
	}
	m.setLocalStageStatus(stage, store.StageStatusInProgress)
	return nil
}

func (m *Machine) setLocalStageStatus(stage store.Stage, status store.StageStatus) {
	switch stage {
	case store.StageKickoff:
		m.cron.Stage1Status = status
	case store.StageRegression:
		m.cron.Stage2Status = status
	case store.StagePostRegression:
		m.cron.Stage3Status = status
	}
}

// ensureTasks creates any missing task rows for the stage (scoped to cycle
// when non-nil) and returns the full task list. Existing rows are never
// recreated, so stage entry is idempotent.
func (m *Machine) ensureTasks(ctx context.Context, stage store.Stage, cycle *store.RegressionCycle) ([]store.ReleaseTask, error) {
	var cycleID *uuid.UUID
	if cycle != nil {
		cycleID = &cycle.ID
	}

	tasks, err := m.deps.Tasks.ListTasks(ctx, m.release.ID, stage, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s tasks: %w", stage, err)
	}

	existing := make(map[store.TaskType]bool, len(tasks))
	for _, t := range tasks {
		existing[t.Type] = true
	}

	for _, spec := range SpecsForStage(stage) {
		if existing[spec.Type] {
			continue
		}
		task := store.ReleaseTask{
			ID:        uuid.New(),
			ReleaseID: m.release.ID,
			Stage:     stage,
			Type:      spec.Type,
			Status:    store.TaskStatusPending,
			CycleID:   cycleID,
		}
		if err := m.deps.Tasks.CreateTask(ctx, nil, &task); err != nil {
			return nil, fmt.Errorf("failed to create %s task: %w", spec.Type, err)
		}
		tasks = append(tasks, task)
	}

	return tasks, nil
}

// prereqsSatisfied reports whether every prerequisite task is COMPLETED or
// SKIPPED. A skipped task satisfies dependents as if it completed.
func prereqsSatisfied(spec TaskSpec, byType map[store.TaskType]store.TaskStatus) bool {
	for _, p := range spec.Prereqs {
		status, ok := byType[p]
		if !ok {
			return false
		}
		if status != store.TaskStatusCompleted && status != store.TaskStatusSkipped {
			return false
		}
	}
	return true
}

// runEligibleTasks executes every task whose status is PENDING or
// AWAITING_CALLBACK and whose prerequisites are satisfied. Terminal tasks
// are never re-run. Task failures are recorded, not propagated.
func (m *Machine) runEligibleTasks(ctx context.Context, tasks []store.ReleaseTask, cycle *store.RegressionCycle) error {
	targets, err := m.deps.Targets.ListTargets(ctx, m.release.ID)
	if err != nil {
		return fmt.Errorf("failed to list platform targets: %w", err)
	}

	byType := make(map[store.TaskType]store.TaskStatus, len(tasks))
	for _, t := range tasks {
		byType[t.Type] = t.Status
	}

	for i := range tasks {
		task := &tasks[i]
		if task.Status.Terminal() || task.Status == store.TaskStatusInProgress {
			continue
		}

		spec, ok := SpecFor(task.Type)
		if !ok {
			m.log.Warn("task with unregistered type", "task_type", string(task.Type))
			continue
		}

		// A task gated on an unconfigured optional integration is skipped
		// so dependents and the completion predicate can move past it.
		if spec.Integration != "" && !m.deps.Providers.HasIntegration(spec.Integration) {
			if task.Status == store.TaskStatusPending {
				if err := m.deps.Tasks.SetTaskStatus(ctx, nil, task.ID, store.TaskStatusSkipped, nil); err != nil {
					return fmt.Errorf("failed to skip %s task: %w", task.Type, err)
				}
				task.Status = store.TaskStatusSkipped
				byType[task.Type] = task.Status
			}
			continue
		}

		if !prereqsSatisfied(spec, byType) {
			continue
		}

		if spec.BuildGated && m.release.ManualBuildUpload {
			m.runGatedTask(ctx, task, targets)
			byType[task.Type] = task.Status
			continue
		}

		res := m.deps.Executor.ExecuteTask(ctx, ExecutionContext{
			Release: m.release,
			Task:    task,
			Targets: targets,
			Cycle:   cycle,
		})
		if res.Success {
			task.Status = store.TaskStatusCompleted
		} else {
			task.Status = store.TaskStatusFailed
		}
		byType[task.Type] = task.Status
	}

	return nil
}

// runGatedTask drives a build task through the upload ledger gate. The task
// waits in AWAITING_CALLBACK; re-checking readiness each tick has no side
// effects, so nothing is duplicated while waiting.
func (m *Machine) runGatedTask(ctx context.Context, task *store.ReleaseTask, targets []store.PlatformTarget) {
	required := distinctPlatforms(targets)

	if task.Status == store.TaskStatusPending {
		if err := m.deps.Tasks.SetTaskStatus(ctx, nil, task.ID, store.TaskStatusAwaitingCallback, nil); err != nil {
			m.log.Error("failed to mark task awaiting callback", "task_type", string(task.Type), "error", err)
			return
		}
		task.Status = store.TaskStatusAwaitingCallback
		m.log.Info("task awaiting build uploads", "task_type", string(task.Type), "platforms", len(required))
	}

	ready, err := m.deps.Gate.Check(ctx, m.release.ID, task.Stage, task.CycleID, required)
	if err != nil {
		m.log.Error("upload gate check failed", "task_type", string(task.Type), "error", err)
		return
	}
	if !ready.AllReady {
		return
	}

	if err := m.deps.Gate.Consume(ctx, task, required); err != nil {
		m.log.Error("upload gate consume failed", "task_type", string(task.Type), "error", err)
		return
	}
	task.Status = store.TaskStatusCompleted
}

// requiredComplete is the shared stage completion predicate: every required
// task is COMPLETED, except tasks whose optional integration is unavailable.
func (m *Machine) requiredComplete(stage store.Stage, tasks []store.ReleaseTask) bool {
	byType := make(map[store.TaskType]store.TaskStatus, len(tasks))
	for _, t := range tasks {
		byType[t.Type] = t.Status
	}

	for _, spec := range SpecsForStage(stage) {
		if !spec.Required {
			continue
		}
		if spec.Integration != "" && !m.deps.Providers.HasIntegration(spec.Integration) {
			continue
		}
		if byType[spec.Type] != store.TaskStatusCompleted {
			return false
		}
	}
	return true
}

// transitionTo idempotently completes the current stage. With next == nil
// the whole workflow is done: cron status flips to COMPLETED and ticking
// stops permanently. Otherwise the auto flag decides between swapping to the
// next state (restarting ticks) and pausing for an external approval.
func (m *Machine) transitionTo(ctx context.Context, current store.Stage, next StageState, auto bool) error {
	if m.cron.StageStatusFor(current) == store.StageStatusCompleted {
		return nil
	}

	if err := m.deps.CronJobs.SetStageStatus(ctx, nil, m.release.ID, current, store.StageStatusCompleted); err != nil {
		return fmt.Errorf("failed to complete stage %s: %w", current, err)
	}
	m.setLocalStageStatus(current, store.StageStatusCompleted)
	m.deps.Metrics.RecordStageTransition(ctx, string(current))

	// Scheduler stop/start must come after every store write: the machine
	// executes inside a tick the scheduler owns, and stopping it first could
	// tear down the context the remaining writes run under.
	if next == nil {
		if err := m.deps.CronJobs.SetCronStatus(ctx, nil, m.release.ID, store.CronStatusCompleted); err != nil {
			return fmt.Errorf("failed to complete cron job: %w", err)
		}
		m.cron.Status = store.CronStatusCompleted
		m.state = nil
		if m.deps.Scheduler != nil {
			m.deps.Scheduler.Stop(m.release.ID)
		}
		m.log.Info("workflow complete")
		return nil
	}

	if auto {
		if err := m.deps.CronJobs.SetStageStatus(ctx, nil, m.release.ID, next.Stage(), store.StageStatusInProgress); err != nil {
			return fmt.Errorf("failed to start stage %s: %w", next.Stage(), err)
		}
		m.setLocalStageStatus(next.Stage(), store.StageStatusInProgress)
		m.SetState(next)
		if m.deps.Scheduler != nil {
			m.deps.Scheduler.Stop(m.release.ID)
			m.deps.Scheduler.Start(m.release.ID)
		}
		m.log.Info("stage transitioned", "from", string(current), "to", string(next.Stage()))
		return nil
	}

	// Manual boundary: stay put until an external approval restarts the cron.
	if err := m.deps.CronJobs.SetCronStatus(ctx, nil, m.release.ID, store.CronStatusPaused); err != nil {
		return fmt.Errorf("failed to pause cron job: %w", err)
	}
	m.cron.Status = store.CronStatusPaused
	if m.deps.Scheduler != nil {
		m.deps.Scheduler.Stop(m.release.ID)
	}
	m.log.Info("stage complete, awaiting approval", "stage", string(current))
	return nil
}

// distinctPlatforms returns the unique platforms of the target set,
// preserving first-seen order.
func distinctPlatforms(targets []store.PlatformTarget) []store.Platform {
	seen := make(map[store.Platform]bool, len(targets))
	var platforms []store.Platform
	for _, t := range targets {
		if !seen[t.Platform] {
			seen[t.Platform] = true
			platforms = append(platforms, t.Platform)
		}
	}
	return platforms
}
