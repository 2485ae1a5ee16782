// Package handlers contains HTTP handlers for the orchestrator API.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"releaseplane/internal/engine"
	"releaseplane/internal/store"
	"releaseplane/pkg/api"
)

// StoreFactory combines the interfaces needed for the API to function.
type StoreFactory interface {
	BeginTx(ctx context.Context) (store.Tx, error)
	Ping(ctx context.Context) error
	store.TenantStore
	store.ReleaseStore
	store.CronJobStore
	store.TaskStore
	store.CycleStore
	store.TargetStore
	store.UploadStore
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	store     StoreFactory
	scheduler engine.TickScheduler
}

// New creates a new Handlers instance with the given dependencies.
func New(s StoreFactory, scheduler engine.TickScheduler) *Handlers {
	return &Handlers{store: s, scheduler: scheduler}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}
