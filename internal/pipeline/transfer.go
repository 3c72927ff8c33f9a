package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"labelflow/internal/logging"
	"labelflow/internal/objectstore"
	"labelflow/internal/store"
)

const (
	stepAssetTransfer             = "asset-transfer"
	stepAssetTransferToAnnotation = "asset-transfer-to-annotation"
)

// assetTransferStep moves the asset's backing object into the data source of
// the context's resolved target stage and re-homes the asset record. The
// prior data source goes into the context's rollback slot so the move can be
// replayed in reverse.
type assetTransferStep struct {
	name   string
	store  *store.Store
	mover  objectstore.Mover
	logger *slog.Logger
}

// NewAssetTransferStep builds the forward transfer step.
func NewAssetTransferStep(st *store.Store, mover objectstore.Mover, logger *slog.Logger) Step {
	return newAssetTransferStep(stepAssetTransfer, st, mover, logger)
}

// NewAssetTransferToAnnotationStep builds the veto-path transfer step, which
// is the same move pointed at the first annotation stage.
func NewAssetTransferToAnnotationStep(st *store.Store, mover objectstore.Mover, logger *slog.Logger) Step {
	return newAssetTransferStep(stepAssetTransferToAnnotation, st, mover, logger)
}

func newAssetTransferStep(name string, st *store.Store, mover objectstore.Mover, logger *slog.Logger) Step {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &assetTransferStep{
		name:   name,
		store:  st,
		mover:  mover,
		logger: logger.With(logging.String(logging.FieldComponent, name)),
	}
}

func (s *assetTransferStep) Name() string { return s.name }

func (s *assetTransferStep) Execute(ctx context.Context, run Context) (Context, error) {
	target := run.TargetStage()
	if target == nil {
		return run, Wrap(ErrConfiguration, s.name, "resolve destination", "no target stage resolved", nil)
	}
	if target.TargetDataSourceID == nil {
		return run, Wrap(ErrConfiguration, s.name, "resolve destination", "target stage has no data source", nil)
	}

	asset := run.Asset()
	if asset.DataSourceID == *target.TargetDataSourceID {
		// Already home, nothing to move and nothing to roll back.
		return run, nil
	}

	source, err := s.store.GetDataSource(ctx, asset.DataSourceID)
	if err != nil {
		return run, Wrap(ErrTransient, s.name, "load source data source", "", err)
	}
	if source == nil {
		return run, Wrap(ErrConfiguration, s.name, "load source data source", "asset's data source does not exist", nil)
	}
	destination, err := s.store.GetDataSource(ctx, *target.TargetDataSourceID)
	if err != nil {
		return run, Wrap(ErrTransient, s.name, "load destination data source", "", err)
	}
	if destination == nil {
		return run, Wrap(ErrConfiguration, s.name, "load destination data source", "target stage's data source does not exist", nil)
	}

	if err := s.mover.Move(ctx, source.Bucket, destination.Bucket, asset.StorageKey); err != nil {
		return run, Wrap(markerForMoveError(err), s.name, "move object", "", err)
	}

	if err := s.store.UpdateAssetDataSource(ctx, asset.ID, destination.ID); err != nil {
		// The object already moved; put it back so the failed run leaves no
		// half-applied state behind.
		if reverseErr := s.mover.Move(ctx, destination.Bucket, source.Bucket, asset.StorageKey); reverseErr != nil {
			s.logger.ErrorContext(ctx, "object stranded after failed asset update",
				logging.Int64(logging.FieldAssetID, asset.ID),
				logging.Error(reverseErr))
			return run, Wrap(ErrCompensation, s.name, "update asset record", "reverse move also failed", err)
		}
		return run, Wrap(ErrTransient, s.name, "update asset record", "", err)
	}

	s.logger.InfoContext(ctx, "asset transferred",
		logging.Int64(logging.FieldAssetID, asset.ID),
		logging.String("from_bucket", source.Bucket),
		logging.String("to_bucket", destination.Bucket))

	updated := asset.Clone()
	updated.DataSourceID = destination.ID
	return run.WithAsset(updated).WithTransferRollback(TransferRollback{
		PriorDataSourceID: source.ID,
		PriorBucket:       source.Bucket,
	}), nil
}

// Rollback replays the move in reverse and restores the asset record.
// Reports false when reversal failed and the run must escalate.
func (s *assetTransferStep) Rollback(ctx context.Context, run Context) bool {
	data := run.TransferRollback()
	if data == nil {
		return true
	}

	asset := run.Asset()
	current, err := s.store.GetDataSource(ctx, asset.DataSourceID)
	if err != nil || current == nil {
		s.logger.ErrorContext(ctx, "rollback cannot load current data source",
			logging.Int64(logging.FieldAssetID, asset.ID),
			logging.Error(err))
		return false
	}

	if err := s.mover.Move(ctx, current.Bucket, data.PriorBucket, asset.StorageKey); err != nil {
		s.logger.ErrorContext(ctx, "rollback move failed",
			logging.Int64(logging.FieldAssetID, asset.ID),
			logging.String("from_bucket", current.Bucket),
			logging.String("to_bucket", data.PriorBucket),
			logging.Error(err))
		return false
	}
	if err := s.store.UpdateAssetDataSource(ctx, asset.ID, data.PriorDataSourceID); err != nil {
		s.logger.ErrorContext(ctx, "rollback asset update failed",
			logging.Int64(logging.FieldAssetID, asset.ID),
			logging.Error(err))
		return false
	}
	return true
}

func markerForMoveError(err error) error {
	if errors.Is(err, objectstore.ErrObjectNotFound) || errors.Is(err, objectstore.ErrBucketNotFound) {
		return ErrConfiguration
	}
	return ErrTransient
}
