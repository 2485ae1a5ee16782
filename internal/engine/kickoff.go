package engine

import (
	"context"

	"releaseplane/internal/store"
)

// KickoffState is Stage 1. It creates the fixed kickoff task set on first
// entry and runs tasks as their prerequisites complete. Stage 1 -> Stage 2
// is the only boundary that may auto-transition without an approval gate.
type KickoffState struct {
	m *Machine
}

func (s *KickoffState) Stage() store.Stage {
	return store.StageKickoff
}

func (s *KickoffState) Execute(ctx context.Context) error {
	if err := s.m.ensureStageInProgress(ctx, store.StageKickoff); err != nil {
		return err
	}

	tasks, err := s.m.ensureTasks(ctx, store.StageKickoff, nil)
	if err != nil {
		return err
	}

	return s.m.runEligibleTasks(ctx, tasks, nil)
}

func (s *KickoffState) IsComplete(ctx context.Context) (bool, error) {
	tasks, err := s.m.deps.Tasks.ListTasks(ctx, s.m.release.ID, store.StageKickoff, nil)
	if err != nil {
		return false, err
	}
	return s.m.requiredComplete(store.StageKickoff, tasks), nil
}

func (s *KickoffState) TransitionToNext(ctx context.Context) error {
	return s.m.transitionTo(ctx, store.StageKickoff, &RegressionState{m: s.m}, s.m.cron.AutoTransitionStage2)
}
