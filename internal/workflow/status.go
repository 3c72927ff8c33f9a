package workflow

import "strings"

// TaskStatus represents the lifecycle of a labeling task.
type TaskStatus string

const (
	StatusNotStarted         TaskStatus = "not_started"
	StatusReadyForAnnotation TaskStatus = "ready_for_annotation"
	StatusReadyForReview     TaskStatus = "ready_for_review"
	StatusReadyForCompletion TaskStatus = "ready_for_completion"
	StatusInProgress         TaskStatus = "in_progress"
	StatusSuspended          TaskStatus = "suspended"
	StatusDeferred           TaskStatus = "deferred"
	StatusCompleted          TaskStatus = "completed"
	StatusChangesRequired    TaskStatus = "changes_required"
	StatusVetoed             TaskStatus = "vetoed"
	StatusArchived           TaskStatus = "archived"
)

var allStatuses = []TaskStatus{
	StatusNotStarted,
	StatusReadyForAnnotation,
	StatusReadyForReview,
	StatusReadyForCompletion,
	StatusInProgress,
	StatusSuspended,
	StatusDeferred,
	StatusCompleted,
	StatusChangesRequired,
	StatusVetoed,
	StatusArchived,
}

var statusSet = func() map[TaskStatus]struct{} {
	set := make(map[TaskStatus]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// legalSources maps a target status to the set of statuses a task may hold
// immediately before transitioning into it. Targets absent from this map are
// never reachable through a pipeline transition; the ready_for_* statuses are
// entry states set at task creation only.
var legalSources = map[TaskStatus][]TaskStatus{
	StatusInProgress: {
		StatusReadyForAnnotation,
		StatusReadyForReview,
		StatusReadyForCompletion,
		StatusSuspended,
		StatusDeferred,
		StatusNotStarted,
		StatusChangesRequired,
	},
	StatusSuspended: {
		StatusInProgress,
		StatusReadyForAnnotation,
		StatusReadyForReview,
		StatusReadyForCompletion,
		StatusNotStarted,
		StatusChangesRequired,
	},
	StatusDeferred: {
		StatusInProgress,
		StatusReadyForAnnotation,
		StatusReadyForReview,
		StatusReadyForCompletion,
		StatusNotStarted,
		StatusChangesRequired,
	},
	StatusCompleted:       {StatusInProgress, StatusChangesRequired},
	StatusVetoed:          {StatusInProgress},
	StatusChangesRequired: {StatusCompleted},
	StatusArchived:        {StatusCompleted},
}

var legalTransitions = func() map[TaskStatus]map[TaskStatus]struct{} {
	table := make(map[TaskStatus]map[TaskStatus]struct{}, len(legalSources))
	for target, sources := range legalSources {
		set := make(map[TaskStatus]struct{}, len(sources))
		for _, source := range sources {
			set[source] = struct{}{}
		}
		table[target] = set
	}
	return table
}()

// IsLegalTransition reports whether a task currently in current may move to
// target. The decision is a pure table lookup with no side effects.
func IsLegalTransition(current, target TaskStatus) bool {
	sources, ok := legalTransitions[target]
	if !ok {
		return false
	}
	_, ok = sources[current]
	return ok
}

// AllTaskStatuses returns the ordered list of known statuses.
func AllTaskStatuses() []TaskStatus {
	cp := make([]TaskStatus, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseTaskStatus converts a string into a known TaskStatus.
func ParseTaskStatus(value string) (TaskStatus, bool) {
	normalized := TaskStatus(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := statusSet[normalized]; !ok {
		return "", false
	}
	return normalized, true
}

// EntryStatusForStage returns the status a freshly created task carries when
// it enters a stage of the given type.
func EntryStatusForStage(stageType StageType) TaskStatus {
	switch stageType {
	case StageReview:
		return StatusReadyForReview
	case StageCompletion:
		return StatusReadyForCompletion
	default:
		return StatusReadyForAnnotation
	}
}
