package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"releaseplane/internal/store"
	"releaseplane/pkg/api"

	"github.com/google/uuid"
)

// UploadBuild handles POST /releases/{id}/uploads.
// It writes an upload ledger entry for a (platform, stage) slot so the
// engine's gate can complete the matching AWAITING_CALLBACK task. For
// regression-stage uploads the entry is scoped to the current cycle.
// Re-uploading before the entry is consumed replaces the artifact; consumed
// entries are immutable.
func (h *Handlers) UploadBuild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	release, _, ok := h.loadTenantRelease(w, r)
	if !ok {
		return
	}

	var req api.UploadBuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Platform == "" || req.ArtifactRef == "" {
		h.httpError(w, "platform and artifact_ref are required", http.StatusBadRequest)
		return
	}

	stage := store.Stage(req.Stage)
	switch stage {
	case store.StageKickoff, store.StageRegression, store.StagePostRegression:
	default:
		h.httpError(w, "Invalid stage", http.StatusBadRequest)
		return
	}

	if !release.ManualBuildUpload {
		h.httpError(w, "Release does not use manual build upload", http.StatusConflict)
		return
	}

	var cycleID *uuid.UUID
	if stage == store.StageRegression {
		cycle, err := h.store.LatestCycle(ctx, release.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				h.httpError(w, "No regression cycle in progress", http.StatusConflict)
				return
			}
			h.httpError(w, "Failed to load regression cycle", http.StatusInternalServerError)
			return
		}
		cycleID = &cycle.ID
	}

	entry := &store.UploadLedgerEntry{
		ID:          uuid.New(),
		ReleaseID:   release.ID,
		Platform:    store.Platform(req.Platform),
		Stage:       stage,
		CycleID:     cycleID,
		ArtifactRef: req.ArtifactRef,
	}
	if err := h.store.UpsertEntry(ctx, nil, entry); err != nil {
		h.httpError(w, "Failed to record upload", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusCreated, api.UploadBuildResponse{EntryID: entry.ID.String()})
}
