package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"releaseplane/internal/controller/middleware"
	"releaseplane/internal/store"
	"releaseplane/pkg/api"

	"github.com/google/uuid"
)

// CreateRelease handles POST /releases.
// It creates the release aggregate, its 1:1 cron job and the platform
// target mappings in one transaction, then starts tick scheduling.
func (h *Handlers) CreateRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := middleware.TenantIDFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.CreateReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Branch == "" || req.BaseBranch == "" || len(req.Targets) == 0 {
		h.httpError(w, "name, branch, base_branch and targets are required", http.StatusBadRequest)
		return
	}

	release := &store.Release{
		ID:                uuid.New(),
		TenantID:          tenantID,
		Name:              req.Name,
		Status:            store.ReleaseStatusInProgress,
		Branch:            req.Branch,
		BaseBranch:        req.BaseBranch,
		ManualBuildUpload: req.ManualBuildUpload,
	}

	var slots []store.RegressionSlot
	for _, at := range req.RegressionSlots {
		slots = append(slots, store.RegressionSlot{At: at})
	}

	// Stage 1 -> 2 auto-transitions unless explicitly disabled; Stage 2 -> 3
	// always waits for an approval.
	autoStage2 := true
	if req.AutoRegression != nil {
		autoStage2 = *req.AutoRegression
	}
	cron := &store.CronJob{
		ID:                   uuid.New(),
		ReleaseID:            release.ID,
		Stage1Status:         store.StageStatusInProgress,
		Stage2Status:         store.StageStatusPending,
		Stage3Status:         store.StageStatusPending,
		Status:               store.CronStatusRunning,
		AutoTransitionStage2: autoStage2,
		AutoTransitionStage3: false,
		Slots:                slots,
	}

	tx, err := h.store.BeginTx(ctx)
	if err != nil {
		h.httpError(w, "Failed to start transaction", http.StatusInternalServerError)
		return
	}
	defer tx.Rollback()

	if err := h.store.CreateRelease(ctx, tx, release); err != nil {
		h.httpError(w, "Failed to create release", http.StatusInternalServerError)
		return
	}
	if err := h.store.CreateCronJob(ctx, tx, cron); err != nil {
		h.httpError(w, "Failed to create cron job", http.StatusInternalServerError)
		return
	}
	for _, t := range req.Targets {
		target := &store.PlatformTarget{
			ID:        uuid.New(),
			ReleaseID: release.ID,
			Platform:  store.Platform(t.Platform),
			Target:    t.Target,
			Version:   t.Version,
		}
		if err := h.store.CreateTarget(ctx, tx, target); err != nil {
			h.httpError(w, "Failed to create platform target", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		h.httpError(w, "Failed to commit release", http.StatusInternalServerError)
		return
	}

	h.scheduler.Start(release.ID)

	h.respondJson(w, http.StatusCreated, api.CreateReleaseResponse{ReleaseID: release.ID.String()})
}

// GetRelease handles GET /releases/{id}.
func (h *Handlers) GetRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	release, cron, ok := h.loadTenantRelease(w, r)
	if !ok {
		return
	}

	resp := api.ReleaseStatusResponse{
		ID:           release.ID.String(),
		Name:         release.Name,
		Status:       string(release.Status),
		Branch:       release.Branch,
		Stage1Status: string(cron.Stage1Status),
		Stage2Status: string(cron.Stage2Status),
		Stage3Status: string(cron.Stage3Status),
		CronStatus:   string(cron.Status),
		CreatedAt:    release.CreatedAt,
	}

	for _, stage := range []store.Stage{store.StageKickoff, store.StagePostRegression} {
		tasks, err := h.store.ListTasks(ctx, release.ID, stage, nil)
		if err != nil {
			continue
		}
		resp.Tasks = append(resp.Tasks, toTaskResponses(tasks, nil)...)
	}
	if cycle, err := h.store.LatestCycle(ctx, release.ID); err == nil {
		if tasks, err := h.store.ListTasks(ctx, release.ID, store.StageRegression, &cycle.ID); err == nil {
			resp.Tasks = append(resp.Tasks, toTaskResponses(tasks, &cycle.Number)...)
		}
	}

	h.respondJson(w, http.StatusOK, resp)
}

// PauseRelease handles POST /releases/{id}/pause.
// Pausing stops future ticks; in-flight work finishes on its own.
func (h *Handlers) PauseRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	release, _, ok := h.loadTenantRelease(w, r)
	if !ok {
		return
	}

	if err := h.store.SetReleaseStatus(ctx, nil, release.ID, store.ReleaseStatusPaused); err != nil {
		h.httpError(w, "Failed to pause release", http.StatusInternalServerError)
		return
	}
	h.scheduler.Stop(release.ID)

	w.WriteHeader(http.StatusNoContent)
}

// ResumeRelease handles POST /releases/{id}/resume.
// Resuming restarts ticking from persisted state; completed work is never
// replayed.
func (h *Handlers) ResumeRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	release, cron, ok := h.loadTenantRelease(w, r)
	if !ok {
		return
	}
	if release.Status == store.ReleaseStatusCompleted || cron.Status == store.CronStatusCompleted {
		h.httpError(w, "Release already completed", http.StatusConflict)
		return
	}

	if err := h.store.SetReleaseStatus(ctx, nil, release.ID, store.ReleaseStatusInProgress); err != nil {
		h.httpError(w, "Failed to resume release", http.StatusInternalServerError)
		return
	}
	// A PAUSED cron means the release is parked at a manual stage boundary;
	// resuming the release must not stand in for the approval.
	h.scheduler.Start(release.ID)

	w.WriteHeader(http.StatusNoContent)
}

// ApproveTransition handles POST /releases/{id}/approve.
// It is the external manual trigger for a stage boundary whose
// auto-transition flag is off: the next pending stage starts and tick
// scheduling resumes.
func (h *Handlers) ApproveTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	release, cron, ok := h.loadTenantRelease(w, r)
	if !ok {
		return
	}

	var next store.Stage
	switch {
	case cron.Stage1Status == store.StageStatusCompleted && cron.Stage2Status == store.StageStatusPending:
		next = store.StageRegression
	case cron.Stage2Status == store.StageStatusCompleted && cron.Stage3Status == store.StageStatusPending:
		next = store.StagePostRegression
	default:
		h.httpError(w, "No stage awaiting approval", http.StatusConflict)
		return
	}

	if err := h.store.SetStageStatus(ctx, nil, release.ID, next, store.StageStatusInProgress); err != nil {
		h.httpError(w, "Failed to start stage", http.StatusInternalServerError)
		return
	}
	if err := h.store.SetCronStatus(ctx, nil, release.ID, store.CronStatusRunning); err != nil {
		h.httpError(w, "Failed to resume cron job", http.StatusInternalServerError)
		return
	}
	h.scheduler.Start(release.ID)

	h.respondJson(w, http.StatusOK, api.ApproveResponse{Stage: string(next)})
}

// loadTenantRelease parses the path ID, loads the release and its cron job
// and enforces tenant scoping.
func (h *Handlers) loadTenantRelease(w http.ResponseWriter, r *http.Request) (*store.Release, *store.CronJob, bool) {
	ctx := r.Context()

	releaseID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid release id", http.StatusBadRequest)
		return nil, nil, false
	}

	tenantID, ok := middleware.TenantIDFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return nil, nil, false
	}

	release, err := h.store.GetReleaseByID(ctx, releaseID)
	if err != nil || release.TenantID != tenantID {
		h.httpError(w, "Release not found", http.StatusNotFound)
		return nil, nil, false
	}

	cron, err := h.store.GetCronJobByRelease(ctx, releaseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.httpError(w, "Release has no cron job", http.StatusConflict)
		} else {
			h.httpError(w, "Failed to load cron job", http.StatusInternalServerError)
		}
		return nil, nil, false
	}

	return release, cron, true
}

func toTaskResponses(tasks []store.ReleaseTask, cycle *int) []api.TaskResponse {
	out := make([]api.TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, api.TaskResponse{
			ID:     t.ID.String(),
			Type:   string(t.Type),
			Stage:  string(t.Stage),
			Status: string(t.Status),
			Cycle:  cycle,
			Error:  t.ErrorMessage,
		})
	}
	return out
}
