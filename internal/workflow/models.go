package workflow

import (
	"strings"
	"time"
)

// StageType classifies a workflow stage by the kind of work performed in it.
type StageType string

const (
	StageAnnotation StageType = "annotation"
	StageReview     StageType = "review"
	StageCompletion StageType = "completion"
)

// ParseStageType converts a string into a known StageType.
func ParseStageType(value string) (StageType, bool) {
	normalized := StageType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case StageAnnotation, StageReview, StageCompletion:
		return normalized, true
	default:
		return "", false
	}
}

// Task binds an asset to a position in a workflow. It is created when an
// asset enters a stage and mutated exclusively through validated status
// transitions; tasks are archived, never hard-deleted.
type Task struct {
	ID          int64
	Status      TaskStatus
	Priority    int
	AssetID     int64
	ProjectID   int64
	WorkflowID  int64
	StageID     int64
	AssigneeID  string
	LastActorID string

	// Version increments on every persisted status change and backs the
	// optimistic-concurrency check on status saves.
	Version int64

	DueAt             *time.Time
	CompletedAt       *time.Time
	ArchivedAt        *time.Time
	SuspendedAt       *time.Time
	DeferredAt        *time.Time
	VetoedAt          *time.Time
	ChangesRequiredAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the task still occupies its stage. Archived and
// completed tasks release their claim on the asset.
func (t *Task) IsActive() bool {
	return t.Status != StatusArchived && t.Status != StatusCompleted
}

// Clone returns a deep copy so pipeline contexts never alias a task that a
// later step may mutate.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	cp.DueAt = cloneTime(t.DueAt)
	cp.CompletedAt = cloneTime(t.CompletedAt)
	cp.ArchivedAt = cloneTime(t.ArchivedAt)
	cp.SuspendedAt = cloneTime(t.SuspendedAt)
	cp.DeferredAt = cloneTime(t.DeferredAt)
	cp.VetoedAt = cloneTime(t.VetoedAt)
	cp.ChangesRequiredAt = cloneTime(t.ChangesRequiredAt)
	return &cp
}

// Asset is a unit of content owned by exactly one data source at any instant.
type Asset struct {
	ID           int64
	StorageKey   string
	MediaJSON    string
	Status       string
	DataSourceID int64
	ProjectID    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Clone returns a copy of the asset.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

// WorkflowStage is a node in a per-workflow directed graph.
type WorkflowStage struct {
	ID                 int64
	WorkflowID         int64
	Name               string
	StageOrder         int
	Type               StageType
	Initial            bool
	Final              bool
	InputDataSourceID  *int64
	TargetDataSourceID *int64
}

// StageConnection is a directed edge between two stages. Condition is loaded
// and surfaced but never evaluated; condition-based routing is an extension
// point, not implemented behavior.
type StageConnection struct {
	ID          int64
	FromStageID int64
	ToStageID   int64
	Condition   string
}

// DataSource is a named storage location owning a set of assets.
type DataSource struct {
	ID     int64
	Name   string
	Bucket string
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
