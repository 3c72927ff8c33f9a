package pipeline

import "context"

// Step is one reversible unit of a pipeline run. Execute returns the context
// carrying the step's effect and rollback record; Rollback reverses the
// effect and reports false when reversal failed, which tells the engine to
// stop compensating and escalate instead.
type Step interface {
	Name() string
	Execute(ctx context.Context, run Context) (Context, error)
	Rollback(ctx context.Context, run Context) bool
}
