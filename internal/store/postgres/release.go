package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"releaseplane/internal/store"

	"github.com/google/uuid"
)

// CreateRelease inserts a new release.
func (s *Store) CreateRelease(ctx context.Context, tx store.DBTransaction, release *store.Release) error {
	executor := s.getExecutor(tx)

	_, err := executor.ExecContext(ctx, `
		INSERT INTO releases (id, tenant_id, name, status, branch, base_branch, manual_build_upload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, release.ID, release.TenantID, release.Name, release.Status, release.Branch, release.BaseBranch, release.ManualBuildUpload)
	if err != nil {
		return fmt.Errorf("failed to insert release %s: %w", release.ID, err)
	}

	return nil
}

// GetReleaseByID returns a release by its ID.
func (s *Store) GetReleaseByID(ctx context.Context, id uuid.UUID) (*store.Release, error) {
	var r store.Release
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, status, branch, base_branch, manual_build_upload, created_at
		FROM releases
		WHERE id = $1
	`, id).Scan(&r.ID, &r.TenantID, &r.Name, &r.Status, &r.Branch, &r.BaseBranch, &r.ManualBuildUpload, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get release %s: %w", id, err)
	}

	return &r, nil
}

// ListActiveReleases returns all releases with status IN_PROGRESS.
func (s *Store) ListActiveReleases(ctx context.Context) ([]store.Release, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, status, branch, base_branch, manual_build_upload, created_at
		FROM releases
		WHERE status = $1
		ORDER BY created_at ASC
	`, store.ReleaseStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to list active releases: %w", err)
	}
	defer rows.Close()

	var releases []store.Release
	for rows.Next() {
		var r store.Release
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Name, &r.Status, &r.Branch, &r.BaseBranch, &r.ManualBuildUpload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan release: %w", err)
		}
		releases = append(releases, r)
	}

	return releases, rows.Err()
}

// SetReleaseStatus flips a release's status.
func (s *Store) SetReleaseStatus(ctx context.Context, tx store.DBTransaction, id uuid.UUID, status store.ReleaseStatus) error {
	executor := s.getExecutor(tx)

	_, err := executor.ExecContext(ctx, `
		UPDATE releases SET status = $1 WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set release %s status: %w", id, err)
	}

	return nil
}

// CountActiveReleases returns the number of IN_PROGRESS releases.
func (s *Store) CountActiveReleases(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM releases WHERE status = $1
	`, store.ReleaseStatusInProgress).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active releases: %w", err)
	}

	return count, nil
}
