package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"releaseplane/internal/store"

	"github.com/google/uuid"
)

func TestRateLimitMiddleware_NoTenantInContext(t *testing.T) {
	middleware := RateLimitMiddleware()

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called when no tenant in context")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRateLimitMiddleware_AllowsRequestUnderLimit(t *testing.T) {
	middleware := RateLimitMiddleware()

	handlerCalled := false
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	tenant := &store.Tenant{
		ID:        uuid.New(),
		Name:      "Test Tenant",
		RateLimit: 100,
	}
	ctx := NewContextWithTenant(context.Background(), tenant)

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusOK)
	}
	if !handlerCalled {
		t.Error("expected handler to be called")
	}
}

func TestRateLimitMiddleware_RejectsRequestOverLimit(t *testing.T) {
	middleware := RateLimitMiddleware()

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tenant := &store.Tenant{
		ID:        uuid.New(),
		Name:      "Test Tenant",
		RateLimit: 1, // burst of 1
	}
	ctx := NewContextWithTenant(context.Background(), tenant)

	// First request uses the burst
	req1 := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, req1)

	if rr1.Code != http.StatusOK {
		t.Errorf("first request: got status %d, want %d", rr1.Code, http.StatusOK)
	}

	// Second request exceeds it
	req2 := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req2)

	if rr2.Code != http.StatusTooManyRequests {
		t.Errorf("second request: got status %d, want %d", rr2.Code, http.StatusTooManyRequests)
	}
	if got := rr2.Header().Get("Retry-After"); got != "1" {
		t.Errorf("got Retry-After %q, want %q", got, "1")
	}
}

func TestRateLimitMiddleware_ZeroLimitIsUnlimited(t *testing.T) {
	middleware := RateLimitMiddleware()

	calls := 0
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	tenant := &store.Tenant{
		ID:   uuid.New(),
		Name: "Test Tenant",
	}
	ctx := NewContextWithTenant(context.Background(), tenant)

	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: got status %d, want %d", i, rr.Code, http.StatusOK)
		}
	}
	if calls != 50 {
		t.Errorf("got %d handler calls, want 50", calls)
	}
}

func TestRateLimitMiddleware_LimitersArePerTenant(t *testing.T) {
	middleware := RateLimitMiddleware()

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(tenant *store.Tenant) int {
		ctx := NewContextWithTenant(context.Background(), tenant)
		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	tenantA := &store.Tenant{ID: uuid.New(), Name: "A", RateLimit: 1}
	tenantB := &store.Tenant{ID: uuid.New(), Name: "B", RateLimit: 1}

	if code := send(tenantA); code != http.StatusOK {
		t.Fatalf("tenant A first request: got status %d, want %d", code, http.StatusOK)
	}
	if code := send(tenantA); code != http.StatusTooManyRequests {
		t.Errorf("tenant A second request: got status %d, want %d", code, http.StatusTooManyRequests)
	}
	// Tenant A exhausting its budget must not affect tenant B.
	if code := send(tenantB); code != http.StatusOK {
		t.Errorf("tenant B first request: got status %d, want %d", code, http.StatusOK)
	}
}
