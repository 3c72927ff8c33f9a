package workflow

import "time"

// AlertType identifies which part of a pipeline run raised an alert.
type AlertType string

const (
	AlertAssetTransferFailed  AlertType = "asset_transfer_failed"
	AlertTaskManagementFailed AlertType = "task_management_failed"
	AlertRollbackFailed       AlertType = "pipeline_rollback_failed"
)

// ManagementAlert records a pipeline failure that requires operator
// attention. Alerts are persisted before any notification is attempted so a
// lost notification never loses the failure itself.
type ManagementAlert struct {
	ID            int64
	Type          AlertType
	TaskID        *int64
	AssetID       *int64
	UserID        string
	FailureReason string

	// OriginalError is the step failure that triggered the run's rollback.
	// RollbackError is set only when the rollback itself also failed, which
	// is the state that demands manual intervention.
	OriginalError string
	RollbackError string

	Resolved        bool
	ResolvedBy      string
	ResolutionNotes string
	ResolvedAt      *time.Time

	CreatedAt time.Time
}
