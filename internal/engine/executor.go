package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"releaseplane/internal/observability"
	"releaseplane/internal/provider"
	"releaseplane/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// releaseScope is the platform label used for tasks that execute once per
// release rather than once per platform.
const releaseScope = store.Platform("ALL")

// ExecutionContext carries everything needed to execute one task.
type ExecutionContext struct {
	Release *store.Release
	Task    *store.ReleaseTask
	Targets []store.PlatformTarget
	Cycle   *store.RegressionCycle
}

// Result is the aggregated verdict of a task execution.
type Result struct {
	Success bool
	Error   string
}

// Executor runs one task across its applicable platforms and aggregates the
// per-platform outcomes into a single verdict.
type Executor struct {
	providers *provider.Registry
	tasks     store.TaskStore
	releases  store.ReleaseStore
	metrics   *observability.EngineMetrics
	log       *slog.Logger
}

// NewExecutor creates a task executor.
func NewExecutor(providers *provider.Registry, tasks store.TaskStore, releases store.ReleaseStore, metrics *observability.EngineMetrics, log *slog.Logger) *Executor {
	return &Executor{
		providers: providers,
		tasks:     tasks,
		releases:  releases,
		metrics:   metrics,
		log:       log,
	}
}

// platformOutcome is the result of one platform-scoped sub-execution.
type platformOutcome struct {
	platform   store.Platform
	target     string
	identifier string
	data       json.RawMessage
	err        error
}

// ExecuteTask dispatches the task to its provider, fanning out one
// sub-execution per applicable platform target. All sub-executions run to
// completion before the verdict is decided; one platform failing never
// blocks another's attempt. Handler errors are converted into the failure
// path, never propagated.
func (e *Executor) ExecuteTask(ctx context.Context, ec ExecutionContext) Result {
	task := ec.Task
	log := e.log.With("release_id", ec.Release.ID.String(), "task_type", string(task.Type))

	tracer := otel.Tracer("releaseplane-engine")
	ctx, span := tracer.Start(ctx, "execute_task",
		trace.WithAttributes(
			attribute.String("release.id", ec.Release.ID.String()),
			attribute.String("task.type", string(task.Type)),
		),
	)
	defer span.End()

	spec, ok := SpecFor(task.Type)
	if !ok {
		return e.failTask(ctx, ec, fmt.Sprintf("unknown task type %q", task.Type))
	}

	handler, ok := e.providers.Provider(task.Type)
	if !ok {
		return e.failTask(ctx, ec, fmt.Sprintf("no provider registered for task type %q", task.Type))
	}

	if spec.PerPlatform && len(ec.Targets) == 0 {
		return e.failTask(ctx, ec, "no platform targets configured")
	}

	if err := e.tasks.SetTaskStatus(ctx, nil, task.ID, store.TaskStatusInProgress, nil); err != nil {
		log.Error("failed to mark task in progress", "error", err)
		return Result{Success: false, Error: err.Error()}
	}

	outcomes := e.fanOut(ctx, handler, spec, ec)

	// Persist successful artifacts regardless of the overall verdict, so
	// partial progress is never lost.
	e.persistArtifacts(ctx, task, outcomes)

	// Counts are over distinct platforms, not sub-executions: a platform
	// with several targets is still one platform in the verdict.
	var failures []string
	platforms := make(map[store.Platform]bool)
	failed := make(map[store.Platform]bool)
	for _, o := range outcomes {
		platforms[o.platform] = true
		if o.err != nil {
			failed[o.platform] = true
			failures = append(failures, fmt.Sprintf("%s: %s", o.platform, o.err.Error()))
		}
	}

	if len(failures) > 0 {
		msg := fmt.Sprintf("%d/%d platforms failed: %s", len(failed), len(platforms), strings.Join(failures, "; "))
		return e.failTask(ctx, ec, msg)
	}

	if err := e.tasks.SetTaskStatus(ctx, nil, task.ID, store.TaskStatusCompleted, nil); err != nil {
		log.Error("failed to mark task completed", "error", err)
		return Result{Success: false, Error: err.Error()}
	}

	log.Info("task completed", "platforms", len(outcomes))
	return Result{Success: true}
}

// fanOut launches one handler call per applicable platform target and
// collects every outcome before returning. The outcome order is
// deterministic (sorted by platform then target) so aggregated error
// messages are stable.
func (e *Executor) fanOut(ctx context.Context, handler provider.Provider, spec TaskSpec, ec ExecutionContext) []platformOutcome {
	type unit struct {
		platform store.Platform
		target   *store.PlatformTarget
	}

	var units []unit
	if spec.PerPlatform {
		for i := range ec.Targets {
			t := &ec.Targets[i]
			units = append(units, unit{platform: t.Platform, target: t})
		}
	} else {
		units = append(units, unit{platform: releaseScope})
	}

	outcomes := make([]platformOutcome, len(units))
	var wg sync.WaitGroup
	for i, u := range units {
		wg.Add(1)
		go func(i int, u unit) {
			defer wg.Done()
			outcomes[i] = e.runOne(ctx, handler, u.platform, u.target, ec)
		}(i, u)
	}
	wg.Wait()

	sort.Slice(outcomes, func(i, j int) bool {
		if outcomes[i].platform != outcomes[j].platform {
			return outcomes[i].platform < outcomes[j].platform
		}
		return outcomes[i].target < outcomes[j].target
	})

	return outcomes
}

// runOne performs a single platform-scoped sub-execution. Handler panics are
// recovered into the error path so the stage loop keeps running.
func (e *Executor) runOne(ctx context.Context, handler provider.Provider, platform store.Platform, target *store.PlatformTarget, ec ExecutionContext) (out platformOutcome) {
	out.platform = platform
	if target != nil {
		out.target = target.Target
	}

	defer func() {
		if r := recover(); r != nil {
			out.err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	res, err := handler.Execute(ctx, platform, ec.Task.Type, provider.Params{
		Release: ec.Release,
		Target:  target,
		Cycle:   ec.Cycle,
		Task:    ec.Task,
	})
	if err != nil {
		out.err = err
		return out
	}

	// A nominally successful result without a concrete identifier is a
	// failure, not something to ignore.
	if res == nil || res.Identifier == "" {
		out.err = fmt.Errorf("no identifier returned")
		return out
	}

	out.identifier = res.Identifier
	out.data = res.Data
	return out
}

// persistArtifacts merges successful per-platform identifiers into the
// task's external data blob.
func (e *Executor) persistArtifacts(ctx context.Context, task *store.ReleaseTask, outcomes []platformOutcome) {
	artifacts := make(map[string]string)
	if len(task.ExternalData) > 0 {
		// Best effort, a fresh blob is written below either way.
		_ = json.Unmarshal(task.ExternalData, &artifacts)
	}

	changed := false
	for _, o := range outcomes {
		if o.err != nil || o.identifier == "" {
			continue
		}
		key := string(o.platform)
		if o.target != "" {
			key = key + ":" + o.target
		}
		artifacts[key] = o.identifier
		changed = true
	}
	if !changed {
		return
	}

	data, err := json.Marshal(artifacts)
	if err != nil {
		e.log.Error("failed to marshal task artifacts", "task_id", task.ID.String(), "error", err)
		return
	}
	task.ExternalData = data

	if err := e.tasks.SetTaskExternalData(ctx, nil, task.ID, data); err != nil {
		e.log.Error("failed to persist task artifacts", "task_id", task.ID.String(), "error", err)
	}
}

// failTask records a task failure and pauses the release for manual retry.
func (e *Executor) failTask(ctx context.Context, ec ExecutionContext, msg string) Result {
	log := e.log.With("release_id", ec.Release.ID.String(), "task_type", string(ec.Task.Type))
	log.Warn("task failed", "error", msg)

	if err := e.tasks.SetTaskStatus(ctx, nil, ec.Task.ID, store.TaskStatusFailed, &msg); err != nil {
		log.Error("failed to mark task failed", "error", err)
	}
	if err := e.releases.SetReleaseStatus(ctx, nil, ec.Release.ID, store.ReleaseStatusPaused); err != nil {
		log.Error("failed to pause release", "error", err)
	}
	e.metrics.RecordTaskFailure(ctx, string(ec.Task.Type))

	return Result{Success: false, Error: msg}
}
