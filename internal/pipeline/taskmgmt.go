package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"labelflow/internal/logging"
	"labelflow/internal/store"
	"labelflow/internal/workflow"
)

const (
	stepTaskManagement = "task-management"
	stepTaskChanges    = "task-changes"
)

// taskManagementStep creates or updates the task record in the destination
// stage on the forward path. Re-running a pipeline that already created the
// destination task reuses it instead of duplicating it.
type taskManagementStep struct {
	store  *store.Store
	graph  *workflow.Graph
	logger *slog.Logger
}

// NewTaskManagementStep builds the forward task management step.
func NewTaskManagementStep(st *store.Store, graph *workflow.Graph, logger *slog.Logger) Step {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &taskManagementStep{
		store:  st,
		graph:  graph,
		logger: logger.With(logging.String(logging.FieldComponent, stepTaskManagement)),
	}
}

func (s *taskManagementStep) Name() string { return stepTaskManagement }

func (s *taskManagementStep) Execute(ctx context.Context, run Context) (Context, error) {
	target := run.TargetStage()
	if target == nil {
		return run, Wrap(ErrConfiguration, stepTaskManagement, "resolve destination", "no target stage resolved", nil)
	}

	current := run.CurrentStage()
	if current != nil && !s.graph.ConnectionExists(current.ID, target.ID) {
		return run, Wrap(ErrConfiguration, stepTaskManagement, "verify connection",
			fmt.Sprintf("no connection from stage %d to stage %d", current.ID, target.ID), nil)
	}

	source := run.Task()
	existing, err := s.store.TaskForAssetInStage(ctx, source.AssetID, target.ID)
	if err != nil {
		return run, Wrap(ErrTransient, stepTaskManagement, "look up destination task", "", err)
	}

	entryStatus := workflow.EntryStatusForStage(target.Type)

	var created *workflow.Task
	var rollback TaskRollback
	if existing != nil && existing.IsActive() {
		prior := existing.Clone()
		existing.Status = entryStatus
		existing.Priority = source.Priority
		existing.LastActorID = run.UserID()
		if err := s.store.UpdateTask(ctx, existing); err != nil {
			return run, Wrap(ErrTransient, stepTaskManagement, "update destination task", "", err)
		}
		created = existing
		rollback = TaskRollback{PriorTask: prior}
		s.logger.InfoContext(ctx, "destination task reused",
			logging.Int64(logging.FieldTaskID, existing.ID),
			logging.String(logging.FieldStage, target.Name))
	} else {
		created, err = s.store.CreateTask(ctx, &workflow.Task{
			Status:      entryStatus,
			Priority:    source.Priority,
			AssetID:     source.AssetID,
			ProjectID:   source.ProjectID,
			WorkflowID:  source.WorkflowID,
			StageID:     target.ID,
			LastActorID: run.UserID(),
		})
		if err != nil {
			return run, Wrap(ErrTransient, stepTaskManagement, "create destination task", "", err)
		}
		rollback = TaskRollback{CreatedTaskID: created.ID}
		s.logger.InfoContext(ctx, "destination task created",
			logging.Int64(logging.FieldTaskID, created.ID),
			logging.String(logging.FieldStage, target.Name))
	}

	run = run.WithTaskRollback(rollback)
	if err := s.validateIntegrity(ctx, run, created); err != nil {
		return run, err
	}
	return run, nil
}

// validateIntegrity rejects a state where the asset has an active task in a
// third stage, which indicates a concurrent run double-progressed the asset.
// The run's own task and the destination task are expected.
func (s *taskManagementStep) validateIntegrity(ctx context.Context, run Context, targetTask *workflow.Task) error {
	active, err := s.store.ActiveTasksForAsset(ctx, run.Task().AssetID)
	if err != nil {
		return Wrap(ErrTransient, stepTaskManagement, "integrity check", "", err)
	}
	targetStageID := run.TargetStage().ID
	for _, task := range active {
		if task.ID == run.Task().ID || (targetTask != nil && task.ID == targetTask.ID) {
			continue
		}
		if task.StageID != targetStageID {
			return Wrap(ErrIntegrity, stepTaskManagement, "integrity check",
				fmt.Sprintf("asset %d has a conflicting active task %d in stage %d",
					run.Task().AssetID, task.ID, task.StageID), nil)
		}
	}
	return nil
}

// Rollback undoes the destination-task write: a created task is archived, a
// reused task is restored to its prior snapshot.
func (s *taskManagementStep) Rollback(ctx context.Context, run Context) bool {
	data := run.TaskRollback()
	if data == nil {
		return true
	}

	if data.CreatedTaskID != 0 {
		task, err := s.store.GetTask(ctx, data.CreatedTaskID)
		if err != nil || task == nil {
			s.logger.ErrorContext(ctx, "rollback cannot load created task",
				logging.Int64(logging.FieldTaskID, data.CreatedTaskID),
				logging.Error(err))
			return false
		}
		workflow.ApplyStatus(task, workflow.StatusArchived, run.UserID(), time.Now().UTC())
		if err := s.store.UpdateTask(ctx, task); err != nil {
			s.logger.ErrorContext(ctx, "rollback archive failed",
				logging.Int64(logging.FieldTaskID, task.ID),
				logging.Error(err))
			return false
		}
		return true
	}

	if data.PriorTask != nil {
		restored := data.PriorTask.Clone()
		if err := s.store.UpdateTask(ctx, restored); err != nil {
			s.logger.ErrorContext(ctx, "rollback restore failed",
				logging.Int64(logging.FieldTaskID, restored.ID),
				logging.Error(err))
			return false
		}
	}
	return true
}

// taskChangesStep is the veto-path counterpart: the existing annotation-stage
// task is flipped to changes_required so annotation history stays on one
// record instead of spawning a fresh task.
type taskChangesStep struct {
	store  *store.Store
	logger *slog.Logger
}

// NewTaskChangesStep builds the veto-path task update step.
func NewTaskChangesStep(st *store.Store, logger *slog.Logger) Step {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &taskChangesStep{
		store:  st,
		logger: logger.With(logging.String(logging.FieldComponent, stepTaskChanges)),
	}
}

func (s *taskChangesStep) Name() string { return stepTaskChanges }

func (s *taskChangesStep) Execute(ctx context.Context, run Context) (Context, error) {
	target := run.TargetStage()
	if target == nil {
		return run, Wrap(ErrConfiguration, stepTaskChanges, "resolve destination", "no annotation stage resolved", nil)
	}

	task, err := s.store.TaskForAssetInStage(ctx, run.Task().AssetID, target.ID)
	if err != nil {
		return run, Wrap(ErrTransient, stepTaskChanges, "look up annotation task", "", err)
	}
	if task == nil {
		return run, Wrap(ErrNotFound, stepTaskChanges, "look up annotation task",
			fmt.Sprintf("asset %d has no task in annotation stage %d", run.Task().AssetID, target.ID), nil)
	}

	if !workflow.IsLegalTransition(task.Status, workflow.StatusChangesRequired) {
		return run, Wrap(ErrValidation, stepTaskChanges, "mark changes required",
			fmt.Sprintf("illegal transition %s -> %s for task %d", task.Status, workflow.StatusChangesRequired, task.ID), nil)
	}

	prior := task.Clone()
	workflow.ApplyStatus(task, workflow.StatusChangesRequired, run.UserID(), time.Now().UTC())
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return run, Wrap(ErrTransient, stepTaskChanges, "mark changes required", "", err)
	}

	s.logger.InfoContext(ctx, "annotation task marked for changes",
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.String("reason", run.Reason()))

	return run.WithTaskRollback(TaskRollback{PriorTask: prior}), nil
}

func (s *taskChangesStep) Rollback(ctx context.Context, run Context) bool {
	data := run.TaskRollback()
	if data == nil || data.PriorTask == nil {
		return true
	}
	restored := data.PriorTask.Clone()
	if err := s.store.UpdateTask(ctx, restored); err != nil {
		s.logger.ErrorContext(ctx, "rollback restore failed",
			logging.Int64(logging.FieldTaskID, restored.ID),
			logging.Error(err))
		return false
	}
	return true
}
