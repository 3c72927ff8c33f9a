package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"labelflow/internal/alerts"
	"labelflow/internal/authz"
	"labelflow/internal/config"
	"labelflow/internal/logging"
	"labelflow/internal/notifications"
	"labelflow/internal/objectstore"
	"labelflow/internal/store"
	"labelflow/internal/workflow"
)

// Runner executes completion and veto pipelines. Both share one engine: a
// validated status transition persisted under optimistic concurrency, then
// an ordered list of reversible steps, then strict reverse rollback on
// failure with alert escalation when rollback itself fails.
type Runner struct {
	store    *store.Store
	mover    objectstore.Mover
	auth     authz.Authorizer
	alerts   *alerts.Service
	notifier notifications.Service
	cfg      *config.Config
	logger   *slog.Logger
}

// NewRunner builds a pipeline runner. Nil authorizer defaults to allow-all;
// nil logger disables logging.
func NewRunner(st *store.Store, mover objectstore.Mover, auth authz.Authorizer, alertSvc *alerts.Service, notifier notifications.Service, cfg *config.Config, logger *slog.Logger) *Runner {
	if auth == nil {
		auth = authz.AllowAll()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		store:    st,
		mover:    mover,
		auth:     auth,
		alerts:   alertSvc,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "pipeline")),
	}
}

// CanComplete reports whether a completion run would pass its preconditions.
// Read-only; no state changes.
func (r *Runner) CanComplete(ctx context.Context, taskID int64, userID string) (bool, error) {
	return r.canExecute(ctx, taskID, userID, workflow.StatusCompleted, authz.ActionComplete)
}

// CanVeto reports whether a veto run would pass its preconditions.
// Read-only; no state changes.
func (r *Runner) CanVeto(ctx context.Context, taskID int64, userID string) (bool, error) {
	return r.canExecute(ctx, taskID, userID, workflow.StatusVetoed, authz.ActionVeto)
}

func (r *Runner) canExecute(ctx context.Context, taskID int64, userID string, target workflow.TaskStatus, action authz.Action) (bool, error) {
	task, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}
	if !workflow.IsLegalTransition(task.Status, target) {
		return false, nil
	}
	allowed, err := r.auth.CanUserActOnTask(ctx, userID, taskID, action)
	if err != nil {
		return false, err
	}
	return allowed, nil
}

// CompleteTask moves a task's asset forward to the next stage. A task in a
// final stage completes in place with no transfer and no created task.
func (r *Runner) CompleteTask(ctx context.Context, taskID int64, userID string) Result {
	return r.run(ctx, runSpec{
		taskID:       taskID,
		userID:       userID,
		targetStatus: workflow.StatusCompleted,
		action:       authz.ActionComplete,
		operation:    "complete",
	})
}

// VetoTask sends a task's asset back to the first annotation stage for
// rework. The existing annotation task is marked changes_required.
func (r *Runner) VetoTask(ctx context.Context, taskID int64, userID, reason string) Result {
	return r.run(ctx, runSpec{
		taskID:       taskID,
		userID:       userID,
		reason:       reason,
		targetStatus: workflow.StatusVetoed,
		action:       authz.ActionVeto,
		operation:    "veto",
	})
}

type runSpec struct {
	taskID       int64
	userID       string
	reason       string
	targetStatus workflow.TaskStatus
	action       authz.Action
	operation    string
}

func (r *Runner) run(ctx context.Context, spec runSpec) Result {
	runLogger := r.logger.With(
		logging.String(logging.FieldRunID, uuid.NewString()),
		logging.Int64(logging.FieldTaskID, spec.taskID),
		logging.String(logging.FieldUserID, spec.userID),
		logging.String("operation", spec.operation),
	)

	// Load and precondition checks. Nothing is mutated until these pass.
	task, err := r.store.GetTask(ctx, spec.taskID)
	if err != nil {
		return Fail("load task", Wrap(ErrTransient, spec.operation, "load task", "", err))
	}
	if task == nil {
		return Fail(fmt.Sprintf("task %d not found", spec.taskID),
			Wrap(ErrNotFound, spec.operation, "load task", fmt.Sprintf("task %d", spec.taskID), nil))
	}
	if !workflow.IsLegalTransition(task.Status, spec.targetStatus) {
		return Fail(fmt.Sprintf("cannot %s task in status %s", spec.operation, task.Status),
			Wrap(ErrValidation, spec.operation, "validate transition",
				fmt.Sprintf("%s -> %s", task.Status, spec.targetStatus), nil))
	}
	allowed, err := r.auth.CanUserActOnTask(ctx, spec.userID, spec.taskID, spec.action)
	if err != nil {
		return Fail("authorization check failed", Wrap(ErrTransient, spec.operation, "authorize", "", err))
	}
	if !allowed {
		return Fail(fmt.Sprintf("user %s may not %s task %d", spec.userID, spec.operation, spec.taskID),
			Wrap(ErrValidation, spec.operation, "authorize", "denied", nil))
	}

	asset, err := r.store.GetAsset(ctx, task.AssetID)
	if err != nil {
		return Fail("load asset", Wrap(ErrTransient, spec.operation, "load asset", "", err))
	}
	if asset == nil {
		return Fail(fmt.Sprintf("asset %d not found", task.AssetID),
			Wrap(ErrNotFound, spec.operation, "load asset", fmt.Sprintf("asset %d", task.AssetID), nil))
	}

	graph, err := r.store.GraphForWorkflow(ctx, task.WorkflowID)
	if err != nil {
		return Fail("load workflow", Wrap(ErrTransient, spec.operation, "load workflow", "", err))
	}
	currentStage := graph.Stage(task.StageID)
	if currentStage == nil {
		return Fail(fmt.Sprintf("stage %d not found in workflow %d", task.StageID, task.WorkflowID),
			Wrap(ErrConfiguration, spec.operation, "load stage",
				fmt.Sprintf("stage %d", task.StageID), nil))
	}

	// Status transition, guarded by the task's version. A racing second run
	// loses here instead of double-progressing the asset.
	priorTask := task.Clone()
	workflow.ApplyStatus(task, spec.targetStatus, spec.userID, time.Now().UTC())
	if err := r.store.UpdateTaskStatusVersioned(ctx, task); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return Fail("task was modified by another run",
				Wrap(ErrConflict, spec.operation, "persist transition", "", err))
		}
		return Fail("persist status transition", Wrap(ErrTransient, spec.operation, "persist transition", "", err))
	}
	runLogger.InfoContext(ctx, "status transition persisted",
		logging.String("from", string(priorTask.Status)),
		logging.String("to", string(task.Status)))

	// Destination resolution.
	var target *workflow.WorkflowStage
	var steps []Step
	switch spec.targetStatus {
	case workflow.StatusCompleted:
		if r.cfg != nil && r.cfg.Pipeline.WarnOnBranching && graph.OutgoingCount(currentStage.ID) > 1 {
			runLogger.WarnContext(ctx, "stage has multiple outgoing connections, using first",
				logging.String(logging.FieldStage, currentStage.Name),
				logging.Int("outgoing", graph.OutgoingCount(currentStage.ID)))
		}
		target = graph.NextStage(currentStage.ID)
		if target == nil {
			// Terminal stage: the task completes in place.
			runLogger.InfoContext(ctx, "task completed at terminal stage")
			r.notifyCompleted(ctx, runLogger, task, "")
			return Succeed(task, nil)
		}
		steps = []Step{
			NewAssetTransferStep(r.store, r.mover, runLogger),
			NewTaskManagementStep(r.store, graph, runLogger),
		}
	default:
		target, err = graph.FirstAnnotationStage()
		if err != nil {
			r.rollbackTransition(ctx, runLogger, priorTask)
			return Fail("workflow has no annotation stage",
				Wrap(ErrConfiguration, spec.operation, "resolve annotation stage", "", err))
		}
		steps = []Step{
			NewAssetTransferToAnnotationStep(r.store, r.mover, runLogger),
			NewTaskChangesStep(r.store, runLogger),
		}
	}

	run := NewContext(task, asset, currentStage, spec.userID, spec.reason).WithTargetStage(target)

	for _, step := range steps {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = Wrap(ErrTransient, spec.operation, "canceled", context.Cause(ctx).Error(), ctxErr)
			break
		}
		run, err = step.Execute(ctx, run)
		if err != nil {
			break
		}
	}

	if err != nil {
		runLogger.ErrorContext(ctx, "pipeline step failed", logging.Error(err))
		return r.compensate(ctx, runLogger, run, priorTask, steps, err)
	}

	updated, loadErr := r.store.GetTask(ctx, task.ID)
	if loadErr != nil || updated == nil {
		updated = task
	}
	var created *workflow.Task
	if data := run.TaskRollback(); data != nil && data.CreatedTaskID != 0 {
		if created, loadErr = r.store.GetTask(ctx, data.CreatedTaskID); loadErr != nil {
			created = nil
		}
	} else if spec.targetStatus == workflow.StatusCompleted {
		if found, lookupErr := r.store.TaskForAssetInStage(ctx, task.AssetID, target.ID); lookupErr == nil {
			created = found
		}
	}

	runLogger.InfoContext(ctx, "pipeline run succeeded",
		logging.String(logging.FieldStage, target.Name))
	if spec.targetStatus == workflow.StatusCompleted {
		r.notifyCompleted(ctx, runLogger, updated, target.Name)
	} else {
		r.notifyVetoed(ctx, runLogger, updated)
	}
	return Succeed(updated, created)
}

// compensate rolls back steps in reverse order, then restores the status
// transition. Each step's rollback record in the context decides whether it
// actually ran, so steps that never got their effect in are skipped. The
// first rollback that reports failure stops the chain and raises a
// management alert; the data is indeterminate past that point.
func (r *Runner) compensate(ctx context.Context, runLogger *slog.Logger, run Context, priorTask *workflow.Task, steps []Step, cause error) Result {
	if Classify(cause) == FailureCompensation {
		// The failing step already tried and failed to reverse itself.
		alertID := r.raiseAlert(ctx, runLogger, run, workflow.AlertAssetTransferFailed, cause, cause)
		result := Fail("pipeline failed and could not fully roll back, manual intervention pending", cause)
		result.AlertID = alertID
		return result
	}

	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if step.Rollback(ctx, run) {
			continue
		}
		runLogger.ErrorContext(ctx, "rollback failed, escalating",
			logging.String("step", step.Name()))
		alertID := r.raiseAlert(ctx, runLogger, run, alertTypeForStep(step.Name()), cause,
			fmt.Errorf("rollback of %s failed", step.Name()))
		result := Fail("pipeline failed and could not fully roll back, manual intervention pending",
			Wrap(ErrCompensation, step.Name(), "rollback", "", cause))
		result.AlertID = alertID
		return result
	}

	r.rollbackTransition(ctx, runLogger, priorTask)
	return Fail("pipeline failed, all changes rolled back", cause)
}

// rollbackTransition restores the task to its pre-run snapshot.
func (r *Runner) rollbackTransition(ctx context.Context, runLogger *slog.Logger, priorTask *workflow.Task) {
	restored := priorTask.Clone()
	if err := r.store.UpdateTask(ctx, restored); err != nil {
		runLogger.ErrorContext(ctx, "failed to restore task status",
			logging.Int64(logging.FieldTaskID, restored.ID),
			logging.Error(err))
	}
}

func (r *Runner) raiseAlert(ctx context.Context, runLogger *slog.Logger, run Context, alertType workflow.AlertType, originalErr, rollbackErr error) int64 {
	if r.alerts == nil {
		return 0
	}
	task := run.Task()
	asset := run.Asset()
	alert := &workflow.ManagementAlert{
		Type:          alertType,
		UserID:        run.UserID(),
		FailureReason: "pipeline rollback failed, asset and task state may be inconsistent",
	}
	if task != nil {
		alert.TaskID = &task.ID
	}
	if asset != nil {
		alert.AssetID = &asset.ID
	}
	if originalErr != nil {
		alert.OriginalError = originalErr.Error()
	}
	if rollbackErr != nil {
		alert.RollbackError = rollbackErr.Error()
	}
	created, err := r.alerts.Raise(ctx, alert)
	if err != nil {
		runLogger.ErrorContext(ctx, "failed to raise management alert", logging.Error(err))
		return 0
	}
	return created.ID
}

func alertTypeForStep(stepName string) workflow.AlertType {
	switch stepName {
	case stepAssetTransfer, stepAssetTransferToAnnotation:
		return workflow.AlertAssetTransferFailed
	case stepTaskManagement, stepTaskChanges:
		return workflow.AlertTaskManagementFailed
	default:
		return workflow.AlertRollbackFailed
	}
}

func (r *Runner) notifyCompleted(ctx context.Context, runLogger *slog.Logger, task *workflow.Task, nextStageName string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.NotifyTaskCompleted(ctx, task, nextStageName); err != nil {
		runLogger.WarnContext(ctx, "completion notification failed", logging.Error(err))
	}
}

func (r *Runner) notifyVetoed(ctx context.Context, runLogger *slog.Logger, task *workflow.Task) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.NotifyTaskVetoed(ctx, task); err != nil {
		runLogger.WarnContext(ctx, "veto notification failed", logging.Error(err))
	}
}
