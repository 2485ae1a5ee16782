package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"releaseplane/internal/store"

	"github.com/google/uuid"
)

// CreateCronJob inserts the cron job for a release.
func (s *Store) CreateCronJob(ctx context.Context, tx store.DBTransaction, job *store.CronJob) error {
	executor := s.getExecutor(tx)

	slots, err := json.Marshal(job.Slots)
	if err != nil {
		return fmt.Errorf("failed to marshal slots: %w", err)
	}

	_, err = executor.ExecContext(ctx, `
		INSERT INTO cron_jobs (id, release_id, stage1_status, stage2_status, stage3_status, status,
			auto_transition_stage2, auto_transition_stage3, slots)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, job.ID, job.ReleaseID, job.Stage1Status, job.Stage2Status, job.Stage3Status, job.Status,
		job.AutoTransitionStage2, job.AutoTransitionStage3, slots)
	if err != nil {
		return fmt.Errorf("failed to insert cron job for release %s: %w", job.ReleaseID, err)
	}

	return nil
}

// GetCronJobByRelease returns the cron job for a release.
func (s *Store) GetCronJobByRelease(ctx context.Context, releaseID uuid.UUID) (*store.CronJob, error) {
	var job store.CronJob
	var slots []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT id, release_id, stage1_status, stage2_status, stage3_status, status,
			auto_transition_stage2, auto_transition_stage3, slots, created_at, updated_at
		FROM cron_jobs
		WHERE release_id = $1
	`, releaseID).Scan(&job.ID, &job.ReleaseID, &job.Stage1Status, &job.Stage2Status, &job.Stage3Status,
		&job.Status, &job.AutoTransitionStage2, &job.AutoTransitionStage3, &slots, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cron job for release %s: %w", releaseID, err)
	}

	if len(slots) > 0 {
		if err := json.Unmarshal(slots, &job.Slots); err != nil {
			return nil, fmt.Errorf("failed to unmarshal slots for release %s: %w", releaseID, err)
		}
	}

	return &job, nil
}

// SetStageStatus updates the status of one stage. Stage statuses are
// monotonic; the WHERE clause refuses to write a regression.
func (s *Store) SetStageStatus(ctx context.Context, tx store.DBTransaction, releaseID uuid.UUID, stage store.Stage, status store.StageStatus) error {
	executor := s.getExecutor(tx)

	var column string
	switch stage {
	case store.StageKickoff:
		column = "stage1_status"
	case store.StageRegression:
		column = "stage2_status"
	case store.StagePostRegression:
		column = "stage3_status"
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}

	rank := map[store.StageStatus]int{
		store.StageStatusPending:    0,
		store.StageStatusInProgress: 1,
		store.StageStatusCompleted:  2,
	}

	query := fmt.Sprintf(`
		UPDATE cron_jobs
		SET %s = $1, updated_at = NOW()
		WHERE release_id = $2
		  AND CASE %s WHEN 'PENDING' THEN 0 WHEN 'IN_PROGRESS' THEN 1 ELSE 2 END <= $3
	`, column, column)

	_, err := executor.ExecContext(ctx, query, status, releaseID, rank[status])
	if err != nil {
		return fmt.Errorf("failed to set %s for release %s: %w", column, releaseID, err)
	}

	return nil
}

// SetCronStatus updates the overall cron status.
func (s *Store) SetCronStatus(ctx context.Context, tx store.DBTransaction, releaseID uuid.UUID, status store.CronStatus) error {
	executor := s.getExecutor(tx)

	_, err := executor.ExecContext(ctx, `
		UPDATE cron_jobs SET status = $1, updated_at = NOW() WHERE release_id = $2
	`, status, releaseID)
	if err != nil {
		return fmt.Errorf("failed to set cron status for release %s: %w", releaseID, err)
	}

	return nil
}

// SetSlots replaces the upcoming regression slots.
func (s *Store) SetSlots(ctx context.Context, tx store.DBTransaction, releaseID uuid.UUID, slots []store.RegressionSlot) error {
	executor := s.getExecutor(tx)

	if slots == nil {
		slots = []store.RegressionSlot{}
	}
	payload, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("failed to marshal slots: %w", err)
	}

	_, err = executor.ExecContext(ctx, `
		UPDATE cron_jobs SET slots = $1, updated_at = NOW() WHERE release_id = $2
	`, payload, releaseID)
	if err != nil {
		return fmt.Errorf("failed to set slots for release %s: %w", releaseID, err)
	}

	return nil
}
