package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"releaseplane/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Runner is the host-side tick scheduler. It keeps one ticker loop per
// active release and guarantees at most one in-flight tick per release: a
// tick that fires while the previous one is still running is skipped, not
// queued. A skipped tick loses nothing because every tick is a pure function
// of persisted state plus the clock.
type Runner struct {
	deps     *Deps
	interval time.Duration
	log      *slog.Logger

	mu    sync.Mutex
	loops map[uuid.UUID]context.CancelFunc

	// tickLocks outlive individual loops so a stop/start across a stage
	// boundary can never overlap ticks for the same release.
	tickLocks sync.Map // uuid.UUID -> *sync.Mutex

	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewRunner creates a runner and registers itself as the Deps' scheduler so
// stage transitions can stop and restart ticking.
func NewRunner(deps *Deps, interval time.Duration) *Runner {
	r := &Runner{
		deps:     deps,
		interval: interval,
		log:      deps.Log,
		loops:    make(map[uuid.UUID]context.CancelFunc),
	}
	deps.Scheduler = r
	return r
}

// Run starts ticking every active release and blocks until the context is
// cancelled, then drains in-flight ticks.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	r.baseCtx = ctx
	r.mu.Unlock()

	releases, err := r.deps.Releases.ListActiveReleases(ctx)
	if err != nil {
		return err
	}
	for _, rel := range releases {
		r.Start(rel.ID)
	}
	r.log.Info("runner started", "releases", len(releases), "interval", r.interval.String())

	<-ctx.Done()
	r.StopAll()
	r.wg.Wait()
	return ctx.Err()
}

// Start begins the tick loop for a release. Starting an already running
// release is a no-op.
func (r *Runner) Start(releaseID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, running := r.loops[releaseID]; running {
		return
	}

	base := r.baseCtx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	r.loops[releaseID] = cancel

	r.wg.Add(1)
	go r.loop(ctx, releaseID)
}

// Stop cancels the tick loop for a release. The current tick, if any, runs
// to completion.
func (r *Runner) Stop(releaseID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel, ok := r.loops[releaseID]; ok {
		cancel()
		delete(r.loops, releaseID)
	}
}

// StopAll cancels every tick loop.
func (r *Runner) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, cancel := range r.loops {
		cancel()
		delete(r.loops, id)
	}
}

func (r *Runner) loop(ctx context.Context, releaseID uuid.UUID) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Stop cancels the loop, never an in-flight tick: a stage transition
	// calls Stop from inside the tick it runs in, and the writes that follow
	// (next-stage start, cron status) must not observe that cancellation.
	tickCtx := context.WithoutCancel(ctx)

	// First tick fires immediately so a freshly started release makes
	// progress without waiting a full interval.
	r.tick(tickCtx, releaseID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(tickCtx, releaseID)
		}
	}
}

// tick runs one orchestration pass for one release.
func (r *Runner) tick(ctx context.Context, releaseID uuid.UUID) {
	lockAny, _ := r.tickLocks.LoadOrStore(releaseID, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	if !lock.TryLock() {
		r.log.Warn("previous tick still running, skipping", "release_id", releaseID.String())
		return
	}
	defer lock.Unlock()

	tracer := otel.Tracer("releaseplane-engine")
	ctx, span := tracer.Start(ctx, "release_tick",
		trace.WithAttributes(attribute.String("release.id", releaseID.String())),
	)
	defer span.End()

	r.deps.Metrics.RecordTick(ctx)

	release, err := r.deps.Releases.GetReleaseByID(ctx, releaseID)
	if err != nil {
		r.log.Error("failed to load release", "release_id", releaseID.String(), "error", err)
		return
	}
	if release.Status != store.ReleaseStatusInProgress {
		// Paused or finished outside this loop; stop ticking it.
		r.Stop(releaseID)
		return
	}

	machine := NewMachine(release, r.deps)
	if err := machine.Initialize(ctx); err != nil {
		span.RecordError(err)
		r.log.Error("tick aborted", "release_id", releaseID.String(), "error", err)
		return
	}
	if machine.IsWorkflowComplete() {
		r.Stop(releaseID)
		return
	}
	if machine.CronJob().Status == store.CronStatusPaused {
		// Parked at a manual stage boundary; only an approval restarts
		// ticking. Without this check a daemon restart would re-tick the
		// release and start the next stage unapproved.
		r.Stop(releaseID)
		return
	}

	if err := machine.Execute(ctx); err != nil {
		span.RecordError(err)
		r.log.Error("tick failed", "release_id", releaseID.String(), "error", err)
		return
	}

	// A task failure pauses the release mid-tick; stop scheduling until an
	// operator resumes it.
	current, err := r.deps.Releases.GetReleaseByID(ctx, releaseID)
	if err == nil && current.Status == store.ReleaseStatusPaused {
		r.Stop(releaseID)
	}
}
