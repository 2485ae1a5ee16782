// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and the orchestrator.
package api

import "time"

// CreateTenantRequest is the request body for creating a new tenant.
type CreateTenantRequest struct {
	Name string `json:"name"`
}

// CreateTenantResponse is the response body after creating a tenant.
type CreateTenantResponse struct {
	ID     string `json:"tenant_id"`
	Name   string `json:"name"`
	ApiKey string `json:"api_key"`
}

// PlatformTargetSpec is one (platform, target, version) tuple of a release.
type PlatformTargetSpec struct {
	Platform string `json:"platform"`
	Target   string `json:"target"`
	Version  string `json:"version"`
}

// CreateReleaseRequest is the request body for kicking off a release.
type CreateReleaseRequest struct {
	Name              string               `json:"name"`
	Branch            string               `json:"branch"`
	BaseBranch        string               `json:"base_branch"`
	ManualBuildUpload bool                 `json:"manual_build_upload,omitempty"`
	AutoRegression    *bool                `json:"auto_regression,omitempty"`
	Targets           []PlatformTargetSpec `json:"targets"`
	RegressionSlots   []time.Time          `json:"regression_slots,omitempty"`
}

// CreateReleaseResponse is the response body after creating a release.
type CreateReleaseResponse struct {
	ReleaseID string `json:"release_id"`
}

// TaskResponse represents a release task in API responses.
type TaskResponse struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	Stage  string  `json:"stage"`
	Status string  `json:"status"`
	Cycle  *int    `json:"cycle,omitempty"`
	Error  *string `json:"error,omitempty"`
}

// ReleaseStatusResponse is the response body for release status queries.
type ReleaseStatusResponse struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Status       string         `json:"status"`
	Branch       string         `json:"branch"`
	Stage1Status string         `json:"stage1_status"`
	Stage2Status string         `json:"stage2_status"`
	Stage3Status string         `json:"stage3_status"`
	CronStatus   string         `json:"cron_status"`
	Tasks        []TaskResponse `json:"tasks,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// UploadBuildRequest submits an externally built artifact to the upload
// ledger for a (platform, stage) slot of a release.
type UploadBuildRequest struct {
	Platform    string `json:"platform"`
	Stage       string `json:"stage"`
	ArtifactRef string `json:"artifact_ref"`
}

// UploadBuildResponse is the response body after an upload submission.
type UploadBuildResponse struct {
	EntryID string `json:"entry_id"`
}

// ApproveResponse reports which stage an approval started.
type ApproveResponse struct {
	Stage string `json:"stage"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
