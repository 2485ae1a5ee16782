package engine

import (
	"context"

	"releaseplane/internal/store"
)

// PostRegressionState is Stage 3, the final stage. Entry is idempotent: the
// task set is created once and never recreated. There is no Stage 4;
// completing this stage completes the whole workflow.
type PostRegressionState struct {
	m *Machine
}

func (s *PostRegressionState) Stage() store.Stage {
	return store.StagePostRegression
}

func (s *PostRegressionState) Execute(ctx context.Context) error {
	if err := s.m.ensureStageInProgress(ctx, store.StagePostRegression); err != nil {
		return err
	}

	tasks, err := s.m.ensureTasks(ctx, store.StagePostRegression, nil)
	if err != nil {
		return err
	}

	return s.m.runEligibleTasks(ctx, tasks, nil)
}

func (s *PostRegressionState) IsComplete(ctx context.Context) (bool, error) {
	tasks, err := s.m.deps.Tasks.ListTasks(ctx, s.m.release.ID, store.StagePostRegression, nil)
	if err != nil {
		return false, err
	}
	return s.m.requiredComplete(store.StagePostRegression, tasks), nil
}

func (s *PostRegressionState) TransitionToNext(ctx context.Context) error {
	return s.m.transitionTo(ctx, store.StagePostRegression, nil, false)
}
