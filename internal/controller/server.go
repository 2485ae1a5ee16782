// Package controller contains the HTTP API surface of the orchestrator.
package controller

import (
	"context"
	"net/http"
	"time"

	"releaseplane/internal/controller/handlers"
	"releaseplane/internal/controller/middleware"
	"releaseplane/internal/engine"
)

// Server is the HTTP server for the orchestrator API.
type Server struct {
	httpServer *http.Server
}

// New creates a new API server.
func New(addr string, store handlers.StoreFactory, scheduler engine.TickScheduler, metricsHandler http.Handler) *Server {
	h := handlers.New(store, scheduler)
	authMW := middleware.AuthMiddleware(store)
	rateMW := middleware.RateLimitMiddleware()
	protect := func(fn http.HandlerFunc) http.Handler {
		return authMW(rateMW(fn))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /tenants", h.CreateTenant)

	// Tenant-authenticated release surface
	mux.Handle("POST /releases", protect(h.CreateRelease))
	mux.Handle("GET /releases/{id}", protect(h.GetRelease))
	mux.Handle("POST /releases/{id}/pause", protect(h.PauseRelease))
	mux.Handle("POST /releases/{id}/resume", protect(h.ResumeRelease))
	mux.Handle("POST /releases/{id}/approve", protect(h.ApproveTransition))
	mux.Handle("POST /releases/{id}/uploads", protect(h.UploadBuild))

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
