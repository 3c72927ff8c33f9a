package pipeline

import "labelflow/internal/workflow"

// Result is the tagged outcome of one pipeline run.
type Result struct {
	ok bool

	// UpdatedTask is the task the run acted on, in its final state.
	UpdatedTask *workflow.Task
	// CreatedTask is the task created (or reused) in the destination stage.
	// Nil on the veto path and when completion terminated at a final stage.
	CreatedTask *workflow.Task

	// Reason is a human-readable failure summary. Empty on success.
	Reason string
	// Cause is the underlying error, when one exists.
	Cause error
	// Class tells the caller how to react to a failure.
	Class FailureClass
	// AlertID is set when the run raised a management alert.
	AlertID int64
}

// Succeed builds a success result.
func Succeed(updated, created *workflow.Task) Result {
	return Result{ok: true, UpdatedTask: updated, CreatedTask: created}
}

// Fail builds a failure result classified from its cause.
func Fail(reason string, cause error) Result {
	return Result{ok: false, Reason: reason, Cause: cause, Class: Classify(cause)}
}

// OK reports whether the run succeeded.
func (r Result) OK() bool {
	return r.ok
}
