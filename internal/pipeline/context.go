package pipeline

import "labelflow/internal/workflow"

// TransferRollback records what the asset transfer step needs to reverse
// itself: where the asset lived before the move.
type TransferRollback struct {
	PriorDataSourceID int64
	PriorBucket       string
}

// TaskRollback records what the task management step needs to reverse
// itself. A created task is archived; a reused task is restored to its prior
// status snapshot.
type TaskRollback struct {
	CreatedTaskID int64
	PriorTask     *workflow.Task
}

// Context is an immutable snapshot of one pipeline run's in-flight state.
// Every wither returns a new value, so earlier snapshots stay valid and
// rollback always has an unambiguous view of the state before each step.
type Context struct {
	task         *workflow.Task
	asset        *workflow.Asset
	currentStage *workflow.WorkflowStage
	targetStage  *workflow.WorkflowStage
	userID       string
	reason       string

	transferRollback *TransferRollback
	taskRollback     *TaskRollback
}

// NewContext builds the initial context for a run.
func NewContext(task *workflow.Task, asset *workflow.Asset, currentStage *workflow.WorkflowStage, userID, reason string) Context {
	return Context{
		task:         task.Clone(),
		asset:        asset.Clone(),
		currentStage: currentStage,
		userID:       userID,
		reason:       reason,
	}
}

func (c Context) Task() *workflow.Task { return c.task }

func (c Context) Asset() *workflow.Asset { return c.asset }

func (c Context) CurrentStage() *workflow.WorkflowStage { return c.currentStage }

func (c Context) TargetStage() *workflow.WorkflowStage { return c.targetStage }

func (c Context) UserID() string { return c.userID }

func (c Context) Reason() string { return c.reason }

// TransferRollback returns the asset transfer step's rollback record, or nil
// when that step has not run.
func (c Context) TransferRollback() *TransferRollback { return c.transferRollback }

// TaskRollback returns the task management step's rollback record, or nil
// when that step has not run.
func (c Context) TaskRollback() *TaskRollback { return c.taskRollback }

// WithTargetStage returns a copy of the context with the destination stage
// resolved.
func (c Context) WithTargetStage(stage *workflow.WorkflowStage) Context {
	c.targetStage = stage
	return c
}

// WithTask returns a copy of the context carrying an updated task snapshot.
func (c Context) WithTask(task *workflow.Task) Context {
	c.task = task.Clone()
	return c
}

// WithAsset returns a copy of the context carrying an updated asset snapshot.
func (c Context) WithAsset(asset *workflow.Asset) Context {
	c.asset = asset.Clone()
	return c
}

// WithTransferRollback returns a copy of the context recording that the asset
// transfer step ran and how to reverse it.
func (c Context) WithTransferRollback(data TransferRollback) Context {
	c.transferRollback = &data
	return c
}

// WithTaskRollback returns a copy of the context recording that the task
// management step ran and how to reverse it.
func (c Context) WithTaskRollback(data TaskRollback) Context {
	cp := data
	cp.PriorTask = data.PriorTask.Clone()
	c.taskRollback = &cp
	return c
}
