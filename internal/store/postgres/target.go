package postgres

import (
	"context"
	"fmt"

	"releaseplane/internal/store"

	"github.com/google/uuid"
)

// CreateTarget inserts a platform target mapping.
func (s *Store) CreateTarget(ctx context.Context, tx store.DBTransaction, target *store.PlatformTarget) error {
	executor := s.getExecutor(tx)

	_, err := executor.ExecContext(ctx, `
		INSERT INTO platform_targets (id, release_id, platform, target, version)
		VALUES ($1, $2, $3, $4, $5)
	`, target.ID, target.ReleaseID, target.Platform, target.Target, target.Version)
	if err != nil {
		return fmt.Errorf("failed to insert target %s/%s: %w", target.ReleaseID, target.Platform, err)
	}

	return nil
}

// ListTargets returns all platform targets for a release.
func (s *Store) ListTargets(ctx context.Context, releaseID uuid.UUID) ([]store.PlatformTarget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, release_id, platform, target, version
		FROM platform_targets
		WHERE release_id = $1
		ORDER BY platform ASC, target ASC
	`, releaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets for release %s: %w", releaseID, err)
	}
	defer rows.Close()

	var targets []store.PlatformTarget
	for rows.Next() {
		var t store.PlatformTarget
		if err := rows.Scan(&t.ID, &t.ReleaseID, &t.Platform, &t.Target, &t.Version); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, t)
	}

	return targets, rows.Err()
}
