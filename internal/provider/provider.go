// Package provider defines the collaborator interface the engine calls to
// perform the external side effect of a release task (branch forks, tickets,
// test runs, builds, tags, notifications). Implementations wrap SCM,
// ticketing, test-management, CI and chat systems; the engine never speaks
// their wire protocols.
package provider

import (
	"context"
	"encoding/json"

	"releaseplane/internal/store"
)

// Params carries everything a handler may need to perform a task.
// Target is nil for release-scoped tasks; Cycle is nil outside Stage 2.
type Params struct {
	Release *store.Release
	Target  *store.PlatformTarget
	Cycle   *store.RegressionCycle
	Task    *store.ReleaseTask
}

// Result is what a handler returns on success. Identifier is the concrete
// identifying value of the created artifact (run ID, ticket key, build
// number). An empty Identifier is treated by the executor as a failure even
// when err is nil.
type Result struct {
	Identifier string
	Data       json.RawMessage
}

// Provider executes one task kind for one platform.
type Provider interface {
	Execute(ctx context.Context, platform store.Platform, taskType store.TaskType, params Params) (*Result, error)
}

// Integration names an optional third-party integration a task kind may
// depend on. Tasks whose integration is not configured are skipped and
// excluded from stage completion.
type Integration string

const (
	IntegrationTicketing Integration = "ticketing"
	IntegrationChat      Integration = "chat"
)

// Registry maps task types to their providers and records which optional
// integrations the host has configured.
type Registry struct {
	providers    map[store.TaskType]Provider
	integrations map[Integration]bool
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers:    make(map[store.TaskType]Provider),
		integrations: make(map[Integration]bool),
	}
}

// Register binds a provider to a task type.
func (r *Registry) Register(taskType store.TaskType, p Provider) {
	r.providers[taskType] = p
}

// EnableIntegration marks an optional integration as configured.
func (r *Registry) EnableIntegration(i Integration) {
	r.integrations[i] = true
}

// Provider returns the provider for a task type.
func (r *Registry) Provider(taskType store.TaskType) (Provider, bool) {
	p, ok := r.providers[taskType]
	return p, ok
}

// HasIntegration reports whether an optional integration is configured.
func (r *Registry) HasIntegration(i Integration) bool {
	return r.integrations[i]
}
