// Package engine implements the release orchestration core: the stage state
// machine, the task executor, the regression cycle scheduler and the manual
// build upload gate. It reaches persistence and external systems only
// through the store and provider interfaces.
package engine

import (
	"releaseplane/internal/provider"
	"releaseplane/internal/store"
)

// TaskSpec describes one task kind: which stage it belongs to, whether it
// fans out per platform, whether stage completion requires it, which
// optional integration gates it, and its prerequisite ordering.
type TaskSpec struct {
	Type        store.TaskType
	Stage       store.Stage
	PerPlatform bool
	Required    bool
	// Integration, when set, makes the task conditional: without the
	// integration configured the task is skipped and excluded from the
	// stage completion predicate.
	Integration provider.Integration
	// BuildGated tasks wait on the upload ledger when the release uses
	// manual build upload instead of CI triggers.
	BuildGated bool
	Prereqs    []store.TaskType
}

// taskSpecs is the static task type registry. Order within a stage is the
// creation order; execution order is driven by Prereqs.
var taskSpecs = []TaskSpec{
	// Stage 1: Kickoff
	{Type: store.TaskForkBranches, Stage: store.StageKickoff, PerPlatform: true, Required: true},
	{Type: store.TaskCreateTrackingTicket, Stage: store.StageKickoff, Required: true, Integration: provider.IntegrationTicketing},
	{Type: store.TaskCreateTestRuns, Stage: store.StageKickoff, PerPlatform: true, Required: true,
		Prereqs: []store.TaskType{store.TaskForkBranches}},
	{Type: store.TaskTriggerKickoffBuilds, Stage: store.StageKickoff, PerPlatform: true, Required: true, BuildGated: true,
		Prereqs: []store.TaskType{store.TaskForkBranches}},
	{Type: store.TaskNotifyKickoff, Stage: store.StageKickoff, Required: true, Integration: provider.IntegrationChat,
		Prereqs: []store.TaskType{store.TaskTriggerKickoffBuilds}},

	// Stage 2: Regression (instantiated once per cycle)
	{Type: store.TaskTriggerRegressionBlds, Stage: store.StageRegression, PerPlatform: true, Required: true, BuildGated: true},
	{Type: store.TaskCreateRegressionRuns, Stage: store.StageRegression, PerPlatform: true, Required: true,
		Prereqs: []store.TaskType{store.TaskTriggerRegressionBlds}},
	{Type: store.TaskNotifyRegression, Stage: store.StageRegression, Required: true, Integration: provider.IntegrationChat,
		Prereqs: []store.TaskType{store.TaskCreateRegressionRuns}},

	// Stage 3: Post-Regression
	{Type: store.TaskCreateReleaseTags, Stage: store.StagePostRegression, PerPlatform: true, Required: true},
	{Type: store.TaskTriggerReleaseBuilds, Stage: store.StagePostRegression, PerPlatform: true, Required: true, BuildGated: true,
		Prereqs: []store.TaskType{store.TaskCreateReleaseTags}},
	{Type: store.TaskFileReleaseTicket, Stage: store.StagePostRegression, Required: true, Integration: provider.IntegrationTicketing},
	{Type: store.TaskNotifyReleaseReady, Stage: store.StagePostRegression, Required: true, Integration: provider.IntegrationChat,
		Prereqs: []store.TaskType{store.TaskTriggerReleaseBuilds}},
}

var specsByType = func() map[store.TaskType]TaskSpec {
	m := make(map[store.TaskType]TaskSpec, len(taskSpecs))
	for _, s := range taskSpecs {
		m[s.Type] = s
	}
	return m
}()

// SpecFor returns the registry entry for a task type.
func SpecFor(t store.TaskType) (TaskSpec, bool) {
	s, ok := specsByType[t]
	return s, ok
}

// SpecsForStage returns the registry entries for a stage in creation order.
func SpecsForStage(stage store.Stage) []TaskSpec {
	var specs []TaskSpec
	for _, s := range taskSpecs {
		if s.Stage == stage {
			specs = append(specs, s)
		}
	}
	return specs
}
