package engine

import (
	"context"
	"fmt"
	"log/slog"

	"releaseplane/internal/store"

	"github.com/google/uuid"
)

// TxBeginner starts store transactions; satisfied by the postgres store.
type TxBeginner interface {
	BeginTx(ctx context.Context) (store.Tx, error)
}

// Readiness is the outcome of an upload gate check.
type Readiness struct {
	AllReady         bool
	MissingPlatforms []store.Platform
}

// Gate implements the manual-build-upload wait. A build task stays
// AWAITING_CALLBACK until an unused ledger entry exists for every required
// platform at the task's stage (and cycle, for regression); consuming the
// entries is atomic.
type Gate struct {
	uploads store.UploadStore
	builds  store.BuildStore
	tasks   store.TaskStore
	txer    TxBeginner
	log     *slog.Logger
}

// NewGate creates an upload ledger gate.
func NewGate(uploads store.UploadStore, builds store.BuildStore, tasks store.TaskStore, txer TxBeginner, log *slog.Logger) *Gate {
	return &Gate{
		uploads: uploads,
		builds:  builds,
		tasks:   tasks,
		txer:    txer,
		log:     log,
	}
}

// Check reports whether an unused ledger entry exists for every required
// platform. It has no side effects, so repeating it across ticks is safe.
func (g *Gate) Check(ctx context.Context, releaseID uuid.UUID, stage store.Stage, cycleID *uuid.UUID, required []store.Platform) (*Readiness, error) {
	entries, err := g.uploads.ListUnusedEntries(ctx, releaseID, stage, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query upload ledger: %w", err)
	}

	have := make(map[store.Platform]bool, len(entries))
	for _, e := range entries {
		have[e.Platform] = true
	}

	var missing []store.Platform
	for _, p := range required {
		if !have[p] {
			missing = append(missing, p)
		}
	}

	return &Readiness{
		AllReady:         len(missing) == 0,
		MissingPlatforms: missing,
	}, nil
}

// Consume atomically marks the matching ledger entries used, records the
// consuming task and cycle, creates a build record per platform and
// completes the task. Once consumed, entries are immutable history.
func (g *Gate) Consume(ctx context.Context, task *store.ReleaseTask, required []store.Platform) error {
	entries, err := g.uploads.ListUnusedEntries(ctx, task.ReleaseID, task.Stage, task.CycleID)
	if err != nil {
		return fmt.Errorf("failed to query upload ledger: %w", err)
	}

	byPlatform := make(map[store.Platform]store.UploadLedgerEntry, len(entries))
	for _, e := range entries {
		byPlatform[e.Platform] = e
	}
	for _, p := range required {
		if _, ok := byPlatform[p]; !ok {
			return fmt.Errorf("platform %s has no unused upload entry", p)
		}
	}

	tx, err := g.txer.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range required {
		entry := byPlatform[p]
		if err := g.uploads.MarkUsed(ctx, tx, entry.ID, task.ID, task.CycleID); err != nil {
			return fmt.Errorf("failed to consume upload entry for %s: %w", p, err)
		}
		build := &store.Build{
			ID:          uuid.New(),
			ReleaseID:   task.ReleaseID,
			Platform:    p,
			Stage:       task.Stage,
			CycleID:     task.CycleID,
			ArtifactRef: entry.ArtifactRef,
			Source:      store.BuildSourceUpload,
		}
		if err := g.builds.CreateBuild(ctx, tx, build); err != nil {
			return fmt.Errorf("failed to create build record for %s: %w", p, err)
		}
	}

	if err := g.tasks.SetTaskStatus(ctx, tx, task.ID, store.TaskStatusCompleted, nil); err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upload consumption: %w", err)
	}

	g.log.Info("upload gate consumed",
		"release_id", task.ReleaseID.String(),
		"task_type", string(task.Type),
		"platforms", len(required))
	return nil
}
