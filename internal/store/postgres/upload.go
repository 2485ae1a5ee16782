package postgres

import (
	"context"
	"fmt"

	"releaseplane/internal/store"

	"github.com/google/uuid"
)

// UpsertEntry inserts a ledger entry or replaces the artifact of an existing
// unused entry for the same (release, platform, stage, cycle). Consumed
// entries are immutable history and never touched.
func (s *Store) UpsertEntry(ctx context.Context, tx store.DBTransaction, entry *store.UploadLedgerEntry) error {
	executor := s.getExecutor(tx)

	// The partial unique index on unused entries turns the replace case
	// into a conflict update.
	_, err := executor.ExecContext(ctx, `
		INSERT INTO upload_ledger (id, release_id, platform, stage, cycle_id, artifact_ref, is_used)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		ON CONFLICT (release_id, platform, stage, COALESCE(cycle_id, '00000000-0000-0000-0000-000000000000'::uuid))
			WHERE is_used = FALSE
		DO UPDATE SET artifact_ref = EXCLUDED.artifact_ref, updated_at = NOW()
	`, entry.ID, entry.ReleaseID, entry.Platform, entry.Stage, entry.CycleID, entry.ArtifactRef)
	if err != nil {
		return fmt.Errorf("failed to upsert upload entry for %s/%s: %w", entry.ReleaseID, entry.Platform, err)
	}

	return nil
}

// ListUnusedEntries returns unused entries for (release, stage, cycle).
func (s *Store) ListUnusedEntries(ctx context.Context, releaseID uuid.UUID, stage store.Stage, cycleID *uuid.UUID) ([]store.UploadLedgerEntry, error) {
	query := `
		SELECT id, release_id, platform, stage, cycle_id, artifact_ref, is_used,
			consumer_task_id, consumer_cycle_id, created_at, updated_at
		FROM upload_ledger
		WHERE release_id = $1 AND stage = $2 AND is_used = FALSE AND cycle_id IS NULL
	`
	args := []interface{}{releaseID, stage}

	if cycleID != nil {
		query = `
			SELECT id, release_id, platform, stage, cycle_id, artifact_ref, is_used,
				consumer_task_id, consumer_cycle_id, created_at, updated_at
			FROM upload_ledger
			WHERE release_id = $1 AND stage = $2 AND is_used = FALSE AND cycle_id = $3
		`
		args = append(args, *cycleID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unused upload entries for release %s: %w", releaseID, err)
	}
	defer rows.Close()

	var entries []store.UploadLedgerEntry
	for rows.Next() {
		var e store.UploadLedgerEntry
		if err := rows.Scan(&e.ID, &e.ReleaseID, &e.Platform, &e.Stage, &e.CycleID, &e.ArtifactRef,
			&e.IsUsed, &e.ConsumerTaskID, &e.ConsumerCycleID, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan upload entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// MarkUsed consumes an entry, recording the consuming task and cycle.
func (s *Store) MarkUsed(ctx context.Context, tx store.DBTransaction, entryID uuid.UUID, taskID uuid.UUID, cycleID *uuid.UUID) error {
	executor := s.getExecutor(tx)

	res, err := executor.ExecContext(ctx, `
		UPDATE upload_ledger
		SET is_used = TRUE, consumer_task_id = $1, consumer_cycle_id = $2, updated_at = NOW()
		WHERE id = $3 AND is_used = FALSE
	`, taskID, cycleID, entryID)
	if err != nil {
		return fmt.Errorf("failed to mark upload entry %s used: %w", entryID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for entry %s: %w", entryID, err)
	}
	if affected == 0 {
		return fmt.Errorf("upload entry %s already consumed: %w", entryID, store.ErrNotFound)
	}

	return nil
}

// CreateBuild inserts a build record.
func (s *Store) CreateBuild(ctx context.Context, tx store.DBTransaction, build *store.Build) error {
	executor := s.getExecutor(tx)

	_, err := executor.ExecContext(ctx, `
		INSERT INTO builds (id, release_id, platform, stage, cycle_id, artifact_ref, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, build.ID, build.ReleaseID, build.Platform, build.Stage, build.CycleID, build.ArtifactRef, build.Source)
	if err != nil {
		return fmt.Errorf("failed to insert build for %s/%s: %w", build.ReleaseID, build.Platform, err)
	}

	return nil
}
