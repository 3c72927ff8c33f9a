package logging

// Standardized attribute keys shared across components.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldTaskID    = "task_id"
	FieldAssetID   = "asset_id"
	FieldStage     = "stage"
	FieldUserID    = "user_id"
	FieldRunID     = "run_id"
	FieldAlertID   = "alert_id"
	FieldAlertType = "alert_type"
)
