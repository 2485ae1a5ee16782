package engine

import (
	"context"
	"errors"
	"fmt"

	"releaseplane/internal/store"

	"github.com/google/uuid"
)

// RegressionState is Stage 2: a loop over scheduled regression slots rather
// than a single pass. Each due slot spawns a cycle with its own task set;
// cycles run strictly one at a time per release.
type RegressionState struct {
	m *Machine
}

func (s *RegressionState) Stage() store.Stage {
	return store.StageRegression
}

func (s *RegressionState) Execute(ctx context.Context) error {
	// Stale or duplicate ticks must never touch Stage 2 once Stage 3 has
	// started.
	if st := s.m.cron.Stage3Status; st == store.StageStatusInProgress || st == store.StageStatusCompleted {
		s.m.log.Warn("regression tick after stage 3 started, ignoring")
		return nil
	}

	if err := s.m.ensureStageInProgress(ctx, store.StageRegression); err != nil {
		return err
	}

	latest, err := s.latestCycle(ctx)
	if err != nil {
		return err
	}

	// A new cycle starts only when no cycle is in flight.
	if latest == nil || latest.Status == store.CycleStatusDone {
		if slot, ok := s.dueSlot(); ok {
			latest, err = s.startCycle(ctx, latest, slot)
			if err != nil {
				return err
			}
		}
	}

	if latest == nil || latest.Status != store.CycleStatusInProgress {
		return nil
	}

	tasks, err := s.m.ensureTasks(ctx, store.StageRegression, latest)
	if err != nil {
		return err
	}
	if err := s.m.runEligibleTasks(ctx, tasks, latest); err != nil {
		return err
	}

	if cycleFinished(tasks) {
		if err := s.m.deps.Cycles.SetCycleStatus(ctx, nil, latest.ID, store.CycleStatusDone); err != nil {
			return fmt.Errorf("failed to finish cycle %d: %w", latest.Number, err)
		}
		s.m.log.Info("regression cycle done", "cycle", latest.Number)
	}

	return nil
}

// IsComplete holds when the latest cycle is DONE (or none was ever needed)
// and no upcoming slots remain. While slots remain the state loops across
// ticks indefinitely.
func (s *RegressionState) IsComplete(ctx context.Context) (bool, error) {
	latest, err := s.latestCycle(ctx)
	if err != nil {
		return false, err
	}
	if latest != nil && latest.Status != store.CycleStatusDone {
		return false, nil
	}
	return len(s.upcomingSlots()) == 0, nil
}

// TransitionToNext crosses the Stage 2 -> Stage 3 boundary, which defaults
// to a manual approval gate.
func (s *RegressionState) TransitionToNext(ctx context.Context) error {
	return s.m.transitionTo(ctx, store.StageRegression, &PostRegressionState{m: s.m}, s.m.cron.AutoTransitionStage3)
}

func (s *RegressionState) latestCycle(ctx context.Context) (*store.RegressionCycle, error) {
	latest, err := s.m.deps.Cycles.LatestCycle(ctx, s.m.release.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest cycle: %w", err)
	}
	return latest, nil
}

// dueSlot returns the earliest slot within the due window. Slots that fall
// in the window together are not merged; the later ones wait for their own
// windows.
func (s *RegressionState) dueSlot() (store.RegressionSlot, bool) {
	now := s.m.deps.now()
	window := s.m.deps.slotWindow()

	var best *store.RegressionSlot
	for i := range s.m.cron.Slots {
		slot := &s.m.cron.Slots[i]
		d := now.Sub(slot.At)
		if d < 0 {
			d = -d
		}
		if d >= window {
			continue
		}
		if best == nil || slot.At.Before(best.At) {
			best = slot
		}
	}
	if best == nil {
		return store.RegressionSlot{}, false
	}
	return *best, true
}

// upcomingSlots returns the slots whose window has not yet passed. A slot
// that was never consumed and is older than the window no longer counts.
func (s *RegressionState) upcomingSlots() []store.RegressionSlot {
	cutoff := s.m.deps.now().Add(-s.m.deps.slotWindow())
	var upcoming []store.RegressionSlot
	for _, slot := range s.m.cron.Slots {
		if slot.At.After(cutoff) {
			upcoming = append(upcoming, slot)
		}
	}
	return upcoming
}

// startCycle allocates the next cycle number, persists the cycle and removes
// the consumed slot from the upcoming list.
func (s *RegressionState) startCycle(ctx context.Context, latest *store.RegressionCycle, slot store.RegressionSlot) (*store.RegressionCycle, error) {
	number := 1
	if latest != nil {
		number = latest.Number + 1
	}

	cycle := &store.RegressionCycle{
		ID:        uuid.New(),
		ReleaseID: s.m.release.ID,
		Number:    number,
		Status:    store.CycleStatusInProgress,
		SlotAt:    slot.At,
	}
	if err := s.m.deps.Cycles.CreateCycle(ctx, nil, cycle); err != nil {
		return nil, fmt.Errorf("failed to create cycle %d: %w", number, err)
	}

	remaining := make([]store.RegressionSlot, 0, len(s.m.cron.Slots))
	for _, existing := range s.m.cron.Slots {
		if !existing.At.Equal(slot.At) {
			remaining = append(remaining, existing)
		}
	}
	if err := s.m.deps.CronJobs.SetSlots(ctx, nil, s.m.release.ID, remaining); err != nil {
		return nil, fmt.Errorf("failed to consume slot: %w", err)
	}
	s.m.cron.Slots = remaining

	s.m.log.Info("regression cycle started", "cycle", number, "slot_at", slot.At)
	return cycle, nil
}

// cycleFinished reports whether every task of the cycle reached a completed
// or skipped state. A FAILED task keeps the cycle open for manual retry.
func cycleFinished(tasks []store.ReleaseTask) bool {
	if len(tasks) == 0 {
		return false
	}
	for _, t := range tasks {
		if t.Status != store.TaskStatusCompleted && t.Status != store.TaskStatusSkipped {
			return false
		}
	}
	return true
}
