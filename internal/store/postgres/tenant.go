package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"releaseplane/internal/store"

	"github.com/google/uuid"
)

// CreateTenant inserts a new tenant with its hashed API key.
func (s *Store) CreateTenant(ctx context.Context, tenant *store.Tenant, hashedKey string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, api_key_hash, rate_limit)
		VALUES ($1, $2, $3, $4)
	`, tenant.ID, tenant.Name, hashedKey, tenant.RateLimit)
	if err != nil {
		return fmt.Errorf("failed to insert tenant %s: %w", tenant.Name, err)
	}

	return nil
}

// GetTenantByID returns a tenant by its ID.
func (s *Store) GetTenantByID(ctx context.Context, id uuid.UUID) (*store.Tenant, error) {
	var t store.Tenant
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, rate_limit, created_at FROM tenants WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.RateLimit, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tenant %s: %w", id, err)
	}

	return &t, nil
}

// GetTenantByAPIKeyHash returns a tenant by its API key hash.
func (s *Store) GetTenantByAPIKeyHash(ctx context.Context, hash string) (*store.Tenant, error) {
	var t store.Tenant
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, rate_limit, created_at FROM tenants WHERE api_key_hash = $1
	`, hash).Scan(&t.ID, &t.Name, &t.RateLimit, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tenant by key hash: %w", err)
	}

	return &t, nil
}
