package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"releaseplane/internal/store"

	"github.com/google/uuid"
)

// CreateCycle inserts a new regression cycle.
func (s *Store) CreateCycle(ctx context.Context, tx store.DBTransaction, cycle *store.RegressionCycle) error {
	executor := s.getExecutor(tx)

	_, err := executor.ExecContext(ctx, `
		INSERT INTO regression_cycles (id, release_id, number, status, slot_at)
		VALUES ($1, $2, $3, $4, $5)
	`, cycle.ID, cycle.ReleaseID, cycle.Number, cycle.Status, cycle.SlotAt)
	if err != nil {
		return fmt.Errorf("failed to insert cycle %d for release %s: %w", cycle.Number, cycle.ReleaseID, err)
	}

	return nil
}

// LatestCycle returns the highest-numbered cycle for a release.
func (s *Store) LatestCycle(ctx context.Context, releaseID uuid.UUID) (*store.RegressionCycle, error) {
	var c store.RegressionCycle
	err := s.db.QueryRowContext(ctx, `
		SELECT id, release_id, number, status, slot_at, created_at
		FROM regression_cycles
		WHERE release_id = $1
		ORDER BY number DESC
		LIMIT 1
	`, releaseID).Scan(&c.ID, &c.ReleaseID, &c.Number, &c.Status, &c.SlotAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest cycle for release %s: %w", releaseID, err)
	}

	return &c, nil
}

// SetCycleStatus updates a cycle's status.
func (s *Store) SetCycleStatus(ctx context.Context, tx store.DBTransaction, cycleID uuid.UUID, status store.CycleStatus) error {
	executor := s.getExecutor(tx)

	_, err := executor.ExecContext(ctx, `
		UPDATE regression_cycles SET status = $1 WHERE id = $2
	`, status, cycleID)
	if err != nil {
		return fmt.Errorf("failed to set cycle %s status: %w", cycleID, err)
	}

	return nil
}
