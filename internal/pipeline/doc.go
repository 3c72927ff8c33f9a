// Package pipeline moves tasks forward (completion) or backward (veto)
// through a workflow's stage graph while keeping three resources consistent:
// the task's status, the asset's physical location in object storage, and
// the task record in the destination stage. A run persists each step's
// effect as it goes; on failure, applied steps are compensated in reverse
// order, and a failed compensation raises a durable management alert instead
// of retrying forever.
package pipeline
