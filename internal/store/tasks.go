package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"labelflow/internal/workflow"
)

const taskColumns = "id, status, priority, asset_id, project_id, workflow_id, stage_id, assignee_id, last_actor_id, version, due_at, completed_at, archived_at, suspended_at, deferred_at, vetoed_at, changes_required_at, created_at, updated_at"

// CreateTask inserts a new task and returns it with its assigned id.
func (s *Store) CreateTask(ctx context.Context, task *workflow.Task) (*workflow.Task, error) {
	if task == nil {
		return nil, errors.New("task is nil")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tasks (
            status, priority, asset_id, project_id, workflow_id, stage_id,
            assignee_id, last_actor_id, version, due_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.Status,
		task.Priority,
		task.AssetID,
		task.ProjectID,
		task.WorkflowID,
		task.StageID,
		nullableString(task.AssigneeID),
		nullableString(task.LastActorID),
		1,
		nullableTime(task.DueAt),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetTask(ctx, id)
}

// GetTask fetches a task by identifier. Missing tasks return nil, nil.
func (s *Store) GetTask(ctx context.Context, id int64) (*workflow.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// TaskForAssetInStage returns the task binding an asset to a stage, or nil.
// When several exist the most recent wins.
func (s *Store) TaskForAssetInStage(ctx context.Context, assetID, stageID int64) (*workflow.Task, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE asset_id = ? AND stage_id = ? ORDER BY id DESC LIMIT 1`,
		assetID,
		stageID,
	)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("task for asset in stage: %w", err)
	}
	return task, nil
}

// ActiveTasksForAsset returns every non-archived, non-completed task for an
// asset, ordered by creation.
func (s *Store) ActiveTasksForAsset(ctx context.Context, assetID int64) ([]*workflow.Task, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE asset_id = ? AND status NOT IN (?, ?) ORDER BY id`,
		assetID,
		workflow.StatusArchived,
		workflow.StatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("active tasks for asset: %w", err)
	}
	defer rows.Close()

	var tasks []*workflow.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// ListTasks returns tasks filtered by status set (or all tasks when no
// status is provided), ordered by creation.
func (s *Store) ListTasks(ctx context.Context, statuses ...workflow.TaskStatus) ([]*workflow.Task, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + taskColumns + ` FROM tasks`
	orderClause := ` ORDER BY id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*workflow.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// ListTasksInStage returns tasks belonging to a stage, optionally narrowed to
// a status set, ordered by creation.
func (s *Store) ListTasksInStage(ctx context.Context, stageID int64, statuses ...workflow.TaskStatus) ([]*workflow.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE stage_id = ?`
	args := []any{stageID}
	if len(statuses) > 0 {
		query += ` AND status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks in stage: %w", err)
	}
	defer rows.Close()

	var tasks []*workflow.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateTask persists every mutable field of a task. It does not touch the
// version column; status changes racing other writers must go through
// UpdateTaskStatusVersioned.
func (s *Store) UpdateTask(ctx context.Context, task *workflow.Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	task.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks
         SET status = ?, priority = ?, stage_id = ?, assignee_id = ?, last_actor_id = ?,
             due_at = ?, completed_at = ?, archived_at = ?, suspended_at = ?,
             deferred_at = ?, vetoed_at = ?, changes_required_at = ?, updated_at = ?
         WHERE id = ?`,
		task.Status,
		task.Priority,
		task.StageID,
		nullableString(task.AssigneeID),
		nullableString(task.LastActorID),
		nullableTime(task.DueAt),
		nullableTime(task.CompletedAt),
		nullableTime(task.ArchivedAt),
		nullableTime(task.SuspendedAt),
		nullableTime(task.DeferredAt),
		nullableTime(task.VetoedAt),
		nullableTime(task.ChangesRequiredAt),
		task.UpdatedAt.Format(time.RFC3339Nano),
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// UpdateTaskStatusVersioned persists a status transition guarded by the
// task's version: the write only lands when the stored version still matches
// the one the caller loaded. A lost race returns ErrVersionConflict with the
// row untouched; on success the task's version is advanced in memory to
// match the row.
func (s *Store) UpdateTaskStatusVersioned(ctx context.Context, task *workflow.Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	task.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks
         SET status = ?, last_actor_id = ?, version = version + 1,
             completed_at = ?, archived_at = ?, suspended_at = ?,
             deferred_at = ?, vetoed_at = ?, changes_required_at = ?, updated_at = ?
         WHERE id = ? AND version = ?`,
		task.Status,
		nullableString(task.LastActorID),
		nullableTime(task.CompletedAt),
		nullableTime(task.ArchivedAt),
		nullableTime(task.SuspendedAt),
		nullableTime(task.DeferredAt),
		nullableTime(task.VetoedAt),
		nullableTime(task.ChangesRequiredAt),
		task.UpdatedAt.Format(time.RFC3339Nano),
		task.ID,
		task.Version,
	)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: task %d version %d", ErrVersionConflict, task.ID, task.Version)
	}
	task.Version++
	return nil
}

// TaskStats returns a count of tasks grouped by status.
func (s *Store) TaskStats(ctx context.Context) (map[workflow.TaskStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[workflow.TaskStatus]int)
	for rows.Next() {
		var status workflow.TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func scanTask(scanner interface{ Scan(dest ...any) error }) (*workflow.Task, error) {
	var (
		id              int64
		statusStr       string
		priority        int
		assetID         int64
		projectID       int64
		workflowID      int64
		stageID         int64
		assigneeID      sql.NullString
		lastActorID     sql.NullString
		version         int64
		dueRaw          sql.NullString
		completedRaw    sql.NullString
		archivedRaw     sql.NullString
		suspendedRaw    sql.NullString
		deferredRaw     sql.NullString
		vetoedRaw       sql.NullString
		changesReqRaw   sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&statusStr,
		&priority,
		&assetID,
		&projectID,
		&workflowID,
		&stageID,
		&assigneeID,
		&lastActorID,
		&version,
		&dueRaw,
		&completedRaw,
		&archivedRaw,
		&suspendedRaw,
		&deferredRaw,
		&vetoedRaw,
		&changesReqRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	task := &workflow.Task{
		ID:                id,
		Status:            workflow.TaskStatus(statusStr),
		Priority:          priority,
		AssetID:           assetID,
		ProjectID:         projectID,
		WorkflowID:        workflowID,
		StageID:           stageID,
		AssigneeID:        assigneeID.String,
		LastActorID:       lastActorID.String,
		Version:           version,
		DueAt:             timePtrFromNull(dueRaw),
		CompletedAt:       timePtrFromNull(completedRaw),
		ArchivedAt:        timePtrFromNull(archivedRaw),
		SuspendedAt:       timePtrFromNull(suspendedRaw),
		DeferredAt:        timePtrFromNull(deferredRaw),
		VetoedAt:          timePtrFromNull(vetoedRaw),
		ChangesRequiredAt: timePtrFromNull(changesReqRaw),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		task.UpdatedAt = updated
	}
	return task, nil
}
