package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"labelflow/internal/workflow"
)

const stageColumns = "id, workflow_id, name, stage_order, stage_type, is_initial, is_final, input_data_source_id, target_data_source_id"

// CreateDataSource inserts a data source and returns it with its id.
func (s *Store) CreateDataSource(ctx context.Context, source *workflow.DataSource) (*workflow.DataSource, error) {
	if source == nil {
		return nil, errors.New("data source is nil")
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO data_sources (name, bucket) VALUES (?, ?)`,
		source.Name,
		source.Bucket,
	)
	if err != nil {
		return nil, fmt.Errorf("insert data source: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetDataSource(ctx, id)
}

// GetDataSource fetches a data source by identifier. Missing rows return
// nil, nil.
func (s *Store) GetDataSource(ctx context.Context, id int64) (*workflow.DataSource, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, bucket FROM data_sources WHERE id = ?`, id)
	var source workflow.DataSource
	err := row.Scan(&source.ID, &source.Name, &source.Bucket)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get data source: %w", err)
	}
	return &source, nil
}

// CreateWorkflowStage inserts a stage and returns it with its id.
func (s *Store) CreateWorkflowStage(ctx context.Context, stage *workflow.WorkflowStage) (*workflow.WorkflowStage, error) {
	if stage == nil {
		return nil, errors.New("stage is nil")
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO workflow_stages (
            workflow_id, name, stage_order, stage_type, is_initial, is_final,
            input_data_source_id, target_data_source_id
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stage.WorkflowID,
		stage.Name,
		stage.StageOrder,
		stage.Type,
		boolToInt(stage.Initial),
		boolToInt(stage.Final),
		nullableInt64(stage.InputDataSourceID),
		nullableInt64(stage.TargetDataSourceID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert workflow stage: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetStage(ctx, id)
}

// GetStage fetches a workflow stage by identifier. Missing rows return
// nil, nil.
func (s *Store) GetStage(ctx context.Context, id int64) (*workflow.WorkflowStage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+stageColumns+` FROM workflow_stages WHERE id = ?`, id)
	stage, err := scanStage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stage: %w", err)
	}
	return stage, nil
}

// CreateStageConnection inserts a directed edge between two stages.
func (s *Store) CreateStageConnection(ctx context.Context, conn *workflow.StageConnection) (*workflow.StageConnection, error) {
	if conn == nil {
		return nil, errors.New("connection is nil")
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO stage_connections (from_stage_id, to_stage_id, condition) VALUES (?, ?, ?)`,
		conn.FromStageID,
		conn.ToStageID,
		nullableString(conn.Condition),
	)
	if err != nil {
		return nil, fmt.Errorf("insert stage connection: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	cp := *conn
	cp.ID = id
	return &cp, nil
}

// StagesForWorkflow loads every stage and connection of a workflow, ordered
// by stage order. The result feeds workflow.NewGraph.
func (s *Store) StagesForWorkflow(ctx context.Context, workflowID int64) ([]*workflow.WorkflowStage, []*workflow.StageConnection, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+stageColumns+` FROM workflow_stages WHERE workflow_id = ? ORDER BY stage_order, id`,
		workflowID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var stages []*workflow.WorkflowStage
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, nil, err
		}
		stages = append(stages, stage)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	if len(stages) == 0 {
		return nil, nil, nil
	}

	placeholders := makePlaceholders(len(stages))
	args := make([]any, 0, len(stages))
	for _, stage := range stages {
		args = append(args, stage.ID)
	}
	connRows, err := s.db.QueryContext(
		ctx,
		`SELECT id, from_stage_id, to_stage_id, condition FROM stage_connections
         WHERE from_stage_id IN (`+placeholders+`) ORDER BY id`,
		args...,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("query stage connections: %w", err)
	}
	defer connRows.Close()

	var connections []*workflow.StageConnection
	for connRows.Next() {
		var (
			conn      workflow.StageConnection
			condition sql.NullString
		)
		if err := connRows.Scan(&conn.ID, &conn.FromStageID, &conn.ToStageID, &condition); err != nil {
			return nil, nil, err
		}
		conn.Condition = condition.String
		connections = append(connections, &conn)
	}
	return stages, connections, connRows.Err()
}

// GraphForWorkflow loads a workflow's topology and builds its resolver.
func (s *Store) GraphForWorkflow(ctx context.Context, workflowID int64) (*workflow.Graph, error) {
	stages, connections, err := s.StagesForWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return workflow.NewGraph(stages, connections), nil
}

func scanStage(scanner interface{ Scan(dest ...any) error }) (*workflow.WorkflowStage, error) {
	var (
		id         int64
		workflowID int64
		name       string
		stageOrder int
		stageType  string
		isInitial  int
		isFinal    int
		inputDS    sql.NullInt64
		targetDS   sql.NullInt64
	)
	if err := scanner.Scan(&id, &workflowID, &name, &stageOrder, &stageType, &isInitial, &isFinal, &inputDS, &targetDS); err != nil {
		return nil, err
	}
	return &workflow.WorkflowStage{
		ID:                 id,
		WorkflowID:         workflowID,
		Name:               name,
		StageOrder:         stageOrder,
		Type:               workflow.StageType(stageType),
		Initial:            isInitial != 0,
		Final:              isFinal != 0,
		InputDataSourceID:  int64PtrFromNull(inputDS),
		TargetDataSourceID: int64PtrFromNull(targetDS),
	}, nil
}
