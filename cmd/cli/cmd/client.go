package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"releaseplane/pkg/api"
)

// ReleaseClient handles API calls to the releaseplane orchestrator.
type ReleaseClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewReleaseClient creates a new client with the given base URL and token.
func NewReleaseClient(baseURL, token string) *ReleaseClient {
	return &ReleaseClient{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func (c *ReleaseClient) do(method, path string, reqBody, out any) error {
	var body io.Reader
	if reqBody != nil {
		bodyBytes, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

// CreateTenant sends POST /tenants to register a new tenant.
func (c *ReleaseClient) CreateTenant(req api.CreateTenantRequest) (*api.CreateTenantResponse, error) {
	var result api.CreateTenantResponse
	if err := c.do(http.MethodPost, "/tenants", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateRelease sends POST /releases to start a new release train.
func (c *ReleaseClient) CreateRelease(req api.CreateReleaseRequest) (*api.CreateReleaseResponse, error) {
	var result api.CreateReleaseResponse
	if err := c.do(http.MethodPost, "/releases", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRelease sends GET /releases/{id} to retrieve release status.
func (c *ReleaseClient) GetRelease(releaseID string) (*api.ReleaseStatusResponse, error) {
	var result api.ReleaseStatusResponse
	if err := c.do(http.MethodGet, fmt.Sprintf("/releases/%s", releaseID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PauseRelease sends POST /releases/{id}/pause.
func (c *ReleaseClient) PauseRelease(releaseID string) error {
	return c.do(http.MethodPost, fmt.Sprintf("/releases/%s/pause", releaseID), nil, nil)
}

// ResumeRelease sends POST /releases/{id}/resume.
func (c *ReleaseClient) ResumeRelease(releaseID string) error {
	return c.do(http.MethodPost, fmt.Sprintf("/releases/%s/resume", releaseID), nil, nil)
}

// ApproveTransition sends POST /releases/{id}/approve to start the next stage.
func (c *ReleaseClient) ApproveTransition(releaseID string) (*api.ApproveResponse, error) {
	var result api.ApproveResponse
	if err := c.do(http.MethodPost, fmt.Sprintf("/releases/%s/approve", releaseID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadBuild sends POST /releases/{id}/uploads to register a build artifact.
func (c *ReleaseClient) UploadBuild(releaseID string, req api.UploadBuildRequest) (*api.UploadBuildResponse, error) {
	var result api.UploadBuildResponse
	if err := c.do(http.MethodPost, fmt.Sprintf("/releases/%s/uploads", releaseID), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
