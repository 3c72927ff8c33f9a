package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"labelflow/internal/workflow"
)

const assetColumns = "id, storage_key, media_json, status, data_source_id, project_id, created_at, updated_at"

// CreateAsset inserts a new asset and returns it with its assigned id.
func (s *Store) CreateAsset(ctx context.Context, asset *workflow.Asset) (*workflow.Asset, error) {
	if asset == nil {
		return nil, errors.New("asset is nil")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	status := asset.Status
	if status == "" {
		status = "active"
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO assets (storage_key, media_json, status, data_source_id, project_id, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		asset.StorageKey,
		nullableString(asset.MediaJSON),
		status,
		asset.DataSourceID,
		asset.ProjectID,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert asset: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetAsset(ctx, id)
}

// GetAsset fetches an asset by identifier. Missing assets return nil, nil.
func (s *Store) GetAsset(ctx context.Context, id int64) (*workflow.Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// UpdateAssetDataSource transfers ownership of an asset to another data
// source. This is the field the pipeline's transfer step mutates.
func (s *Store) UpdateAssetDataSource(ctx context.Context, assetID, dataSourceID int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE assets SET data_source_id = ?, updated_at = ? WHERE id = ?`,
		dataSourceID,
		time.Now().UTC().Format(time.RFC3339Nano),
		assetID,
	)
	if err != nil {
		return fmt.Errorf("update asset data source: %w", err)
	}
	return nil
}

// UpdateAsset persists changes to an existing asset.
func (s *Store) UpdateAsset(ctx context.Context, asset *workflow.Asset) error {
	if asset == nil {
		return errors.New("asset is nil")
	}
	asset.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE assets SET storage_key = ?, media_json = ?, status = ?, data_source_id = ?, updated_at = ? WHERE id = ?`,
		asset.StorageKey,
		nullableString(asset.MediaJSON),
		asset.Status,
		asset.DataSourceID,
		asset.UpdatedAt.Format(time.RFC3339Nano),
		asset.ID,
	)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	return nil
}

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*workflow.Asset, error) {
	var (
		id           int64
		storageKey   string
		mediaJSON    sql.NullString
		status       string
		dataSourceID int64
		projectID    int64
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(&id, &storageKey, &mediaJSON, &status, &dataSourceID, &projectID, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	asset := &workflow.Asset{
		ID:           id,
		StorageKey:   storageKey,
		MediaJSON:    mediaJSON.String,
		Status:       status,
		DataSourceID: dataSourceID,
		ProjectID:    projectID,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		asset.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		asset.UpdatedAt = updated
	}
	return asset, nil
}
