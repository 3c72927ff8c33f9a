// Package alerts raises and resolves management alerts. An alert is written
// to the store before any notification goes out, so operator-facing state
// never depends on notification delivery.
package alerts

import (
	"context"
	"log/slog"

	"labelflow/internal/logging"
	"labelflow/internal/notifications"
	"labelflow/internal/store"
	"labelflow/internal/workflow"
)

// Service persists management alerts and pushes them to operators.
type Service struct {
	store    *store.Store
	notifier notifications.Service
	logger   *slog.Logger
}

// NewService builds an alert service. A nil logger disables logging.
func NewService(st *store.Store, notifier notifications.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:    st,
		notifier: notifier,
		logger:   logger.With(logging.String(logging.FieldComponent, "alerts")),
	}
}

// Raise persists the alert, logs it at error level, and attempts a
// notification. Notification failures are logged and swallowed; the persisted
// alert is the source of truth.
func (s *Service) Raise(ctx context.Context, alert *workflow.ManagementAlert) (*workflow.ManagementAlert, error) {
	created, err := s.store.CreateAlert(ctx, alert)
	if err != nil {
		return nil, err
	}

	attrs := []any{
		logging.Int64(logging.FieldAlertID, created.ID),
		logging.String(logging.FieldAlertType, string(created.Type)),
		logging.String("failure_reason", created.FailureReason),
	}
	if created.TaskID != nil {
		attrs = append(attrs, logging.Int64(logging.FieldTaskID, *created.TaskID))
	}
	if created.AssetID != nil {
		attrs = append(attrs, logging.Int64(logging.FieldAssetID, *created.AssetID))
	}
	if created.RollbackError != "" {
		attrs = append(attrs, logging.String("rollback_error", created.RollbackError))
	}
	s.logger.ErrorContext(ctx, "management alert raised", attrs...)

	if s.notifier != nil {
		if err := s.notifier.NotifyAlertRaised(ctx, created); err != nil {
			s.logger.WarnContext(ctx, "alert notification failed",
				logging.Int64(logging.FieldAlertID, created.ID),
				logging.Error(err))
		}
	}
	return created, nil
}

// Resolve marks an alert resolved. Resolving an already resolved alert
// reports false without error.
func (s *Service) Resolve(ctx context.Context, id int64, resolvedBy, notes string) (bool, error) {
	ok, err := s.store.ResolveAlert(ctx, id, resolvedBy, notes)
	if err != nil {
		return false, err
	}
	if ok {
		s.logger.InfoContext(ctx, "management alert resolved",
			logging.Int64(logging.FieldAlertID, id),
			logging.String(logging.FieldUserID, resolvedBy))
	}
	return ok, nil
}

// Unresolved lists alerts still awaiting operator action.
func (s *Service) Unresolved(ctx context.Context) ([]*workflow.ManagementAlert, error) {
	return s.store.ListAlerts(ctx, true)
}
