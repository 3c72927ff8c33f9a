package workflow

import "time"

// ApplyStatus mutates the task in memory for a transition into target: status,
// UpdatedAt, LastActorID, and exactly the timestamp fields tied to the target
// status. Archival implies completion, so archiving stamps both archived_at
// and completed_at. Legality is the caller's job (IsLegalTransition) and so
// is persistence.
func ApplyStatus(task *Task, target TaskStatus, actorID string, now time.Time) {
	now = now.UTC()
	task.Status = target
	task.LastActorID = actorID
	task.UpdatedAt = now

	switch target {
	case StatusCompleted:
		task.CompletedAt = &now
	case StatusArchived:
		task.ArchivedAt = &now
		if task.CompletedAt == nil {
			task.CompletedAt = &now
		}
	case StatusSuspended:
		task.SuspendedAt = &now
	case StatusDeferred:
		task.DeferredAt = &now
	case StatusVetoed:
		task.VetoedAt = &now
	case StatusChangesRequired:
		task.ChangesRequiredAt = &now
	}
}
