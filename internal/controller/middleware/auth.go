// Package middleware contains HTTP middleware for the orchestrator API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"releaseplane/internal/auth"
	"releaseplane/internal/store"

	"github.com/google/uuid"
)

// tenantKey is the context key for the authenticated tenant.
type tenantKey struct{}

// AuthMiddleware extracts and validates the tenant from the request's API
// key. Every release operation must be scoped by tenant.
func AuthMiddleware(tenants store.TenantStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			rawKey, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || rawKey == "" {
				http.Error(w, "missing API key", http.StatusUnauthorized)
				return
			}

			tenant, err := tenants.GetTenantByAPIKeyHash(r.Context(), auth.HashKey(rawKey))
			if err != nil {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}

			ctx := NewContextWithTenant(r.Context(), tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewContextWithTenant returns a context carrying the authenticated tenant.
func NewContextWithTenant(ctx context.Context, tenant *store.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

// TenantFromContext extracts the authenticated tenant from the context.
func TenantFromContext(ctx context.Context) (*store.Tenant, bool) {
	if v := ctx.Value(tenantKey{}); v != nil {
		return v.(*store.Tenant), true
	}
	return nil, false
}

// TenantIDFromContext extracts the authenticated tenant's ID from the context.
func TenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if t, ok := TenantFromContext(ctx); ok {
		return t.ID, true
	}
	return uuid.Nil, false
}
