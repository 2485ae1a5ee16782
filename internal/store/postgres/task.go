package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"releaseplane/internal/store"

	"github.com/google/uuid"
)

// CreateTask inserts a new task row.
func (s *Store) CreateTask(ctx context.Context, tx store.DBTransaction, task *store.ReleaseTask) error {
	executor := s.getExecutor(tx)

	_, err := executor.ExecContext(ctx, `
		INSERT INTO release_tasks (id, release_id, stage, type, status, cycle_id, external_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, task.ID, task.ReleaseID, task.Stage, task.Type, task.Status, task.CycleID, nullableJSON(task.ExternalData))
	if err != nil {
		return fmt.Errorf("failed to insert task %s/%s: %w", task.ReleaseID, task.Type, err)
	}

	return nil
}

// ListTasks returns tasks for a release and stage, scoped to a cycle when
// cycleID is non-nil and to cycle-less tasks when nil.
func (s *Store) ListTasks(ctx context.Context, releaseID uuid.UUID, stage store.Stage, cycleID *uuid.UUID) ([]store.ReleaseTask, error) {
	query := `
		SELECT id, release_id, stage, type, status, cycle_id, external_data, error_message, created_at, updated_at
		FROM release_tasks
		WHERE release_id = $1 AND stage = $2 AND cycle_id IS NULL
		ORDER BY created_at ASC
	`
	args := []interface{}{releaseID, stage}

	if cycleID != nil {
		query = `
			SELECT id, release_id, stage, type, status, cycle_id, external_data, error_message, created_at, updated_at
			FROM release_tasks
			WHERE release_id = $1 AND stage = $2 AND cycle_id = $3
			ORDER BY created_at ASC
		`
		args = append(args, *cycleID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks for release %s: %w", releaseID, err)
	}
	defer rows.Close()

	var tasks []store.ReleaseTask
	for rows.Next() {
		var t store.ReleaseTask
		var data []byte
		if err := rows.Scan(&t.ID, &t.ReleaseID, &t.Stage, &t.Type, &t.Status, &t.CycleID, &data, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.ExternalData = data
		tasks = append(tasks, t)
	}

	return tasks, rows.Err()
}

// SetTaskStatus updates a task's status and, optionally, its error message.
func (s *Store) SetTaskStatus(ctx context.Context, tx store.DBTransaction, taskID uuid.UUID, status store.TaskStatus, errMsg *string) error {
	executor := s.getExecutor(tx)

	_, err := executor.ExecContext(ctx, `
		UPDATE release_tasks
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3
	`, status, errMsg, taskID)
	if err != nil {
		return fmt.Errorf("failed to set task %s status: %w", taskID, err)
	}

	return nil
}

// SetTaskExternalData replaces the opaque external data blob on a task.
func (s *Store) SetTaskExternalData(ctx context.Context, tx store.DBTransaction, taskID uuid.UUID, data json.RawMessage) error {
	executor := s.getExecutor(tx)

	_, err := executor.ExecContext(ctx, `
		UPDATE release_tasks SET external_data = $1, updated_at = NOW() WHERE id = $2
	`, nullableJSON(data), taskID)
	if err != nil {
		return fmt.Errorf("failed to set task %s external data: %w", taskID, err)
	}

	return nil
}

// nullableJSON maps an empty blob to SQL NULL.
func nullableJSON(data json.RawMessage) interface{} {
	if len(data) == 0 {
		return nil
	}
	return []byte(data)
}
