package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"labelflow/internal/workflow"
)

const alertColumns = "id, alert_type, task_id, asset_id, user_id, failure_reason, original_error, rollback_error, resolved, resolved_by, resolution_notes, resolved_at, created_at"

// CreateAlert persists a management alert and returns it with its id.
func (s *Store) CreateAlert(ctx context.Context, alert *workflow.ManagementAlert) (*workflow.ManagementAlert, error) {
	if alert == nil {
		return nil, errors.New("alert is nil")
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO management_alerts (
            alert_type, task_id, asset_id, user_id, failure_reason,
            original_error, rollback_error, resolved, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		alert.Type,
		nullableInt64(alert.TaskID),
		nullableInt64(alert.AssetID),
		nullableString(alert.UserID),
		alert.FailureReason,
		nullableString(alert.OriginalError),
		nullableString(alert.RollbackError),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetAlert(ctx, id)
}

// GetAlert fetches an alert by identifier. Missing alerts return nil, nil.
func (s *Store) GetAlert(ctx context.Context, id int64) (*workflow.ManagementAlert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM management_alerts WHERE id = ?`, id)
	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return alert, nil
}

// ResolveAlert marks an alert resolved. It reports false without error when
// the alert was already resolved, so repeated resolutions are harmless.
func (s *Store) ResolveAlert(ctx context.Context, id int64, resolvedBy, notes string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE management_alerts
         SET resolved = 1, resolved_by = ?, resolution_notes = ?, resolved_at = ?
         WHERE id = ? AND resolved = 0`,
		nullableString(resolvedBy),
		nullableString(notes),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return false, fmt.Errorf("resolve alert: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListAlerts returns alerts ordered newest first. With unresolvedOnly set,
// resolved alerts are filtered out.
func (s *Store) ListAlerts(ctx context.Context, unresolvedOnly bool) ([]*workflow.ManagementAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM management_alerts`
	if unresolvedOnly {
		query += ` WHERE resolved = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*workflow.ManagementAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func scanAlert(scanner interface{ Scan(dest ...any) error }) (*workflow.ManagementAlert, error) {
	var (
		id            int64
		alertType     string
		taskID        sql.NullInt64
		assetID       sql.NullInt64
		userID        sql.NullString
		failureReason string
		originalErr   sql.NullString
		rollbackErr   sql.NullString
		resolved      int
		resolvedBy    sql.NullString
		notes         sql.NullString
		resolvedRaw   sql.NullString
		createdRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&alertType,
		&taskID,
		&assetID,
		&userID,
		&failureReason,
		&originalErr,
		&rollbackErr,
		&resolved,
		&resolvedBy,
		&notes,
		&resolvedRaw,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	alert := &workflow.ManagementAlert{
		ID:              id,
		Type:            workflow.AlertType(alertType),
		TaskID:          int64PtrFromNull(taskID),
		AssetID:         int64PtrFromNull(assetID),
		UserID:          userID.String,
		FailureReason:   failureReason,
		OriginalError:   originalErr.String,
		RollbackError:   rollbackErr.String,
		Resolved:        resolved != 0,
		ResolvedBy:      resolvedBy.String,
		ResolutionNotes: notes.String,
		ResolvedAt:      timePtrFromNull(resolvedRaw),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		alert.CreatedAt = created
	}
	return alert, nil
}
