// Package authz decides whether a user may run a pipeline action on a task.
// The decision itself lives behind an interface; the pipelines only require
// a yes or no before any state changes.
package authz

import "context"

// Action names a pipeline operation subject to authorization.
type Action string

const (
	ActionComplete Action = "complete"
	ActionVeto     Action = "veto"
)

// Authorizer answers whether a user may perform an action on a task.
type Authorizer interface {
	CanUserActOnTask(ctx context.Context, userID string, taskID int64, action Action) (bool, error)
}

// Func adapts a plain function into an Authorizer.
type Func func(ctx context.Context, userID string, taskID int64, action Action) (bool, error)

// CanUserActOnTask implements Authorizer.
func (f Func) CanUserActOnTask(ctx context.Context, userID string, taskID int64, action Action) (bool, error) {
	return f(ctx, userID, taskID, action)
}

// AllowAll authorizes every request. Single-operator deployments use it as
// the default.
func AllowAll() Authorizer {
	return Func(func(context.Context, string, int64, Action) (bool, error) {
		return true, nil
	})
}
