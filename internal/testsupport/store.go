package testsupport

import (
	"context"
	"fmt"
	"testing"

	"labelflow/internal/config"
	"labelflow/internal/store"
	"labelflow/internal/workflow"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeededWorkflow holds the stages and data sources created by SeedWorkflow,
// in graph order.
type SeededWorkflow struct {
	WorkflowID  int64
	Annotation  *workflow.WorkflowStage
	Review      *workflow.WorkflowStage
	Completion  *workflow.WorkflowStage
	SourceOne   *workflow.DataSource
	SourceTwo   *workflow.DataSource
	SourceThree *workflow.DataSource
}

// Stages returns the seeded stages in order.
func (w *SeededWorkflow) Stages() []*workflow.WorkflowStage {
	return []*workflow.WorkflowStage{w.Annotation, w.Review, w.Completion}
}

// SeedWorkflow creates a three-stage linear workflow, annotation through
// review to completion, with a data source per stage and connections between
// consecutive stages.
func SeedWorkflow(t testing.TB, st *store.Store, workflowID int64) *SeededWorkflow {
	t.Helper()

	sourceOne := mustCreateDataSource(t, st, fmt.Sprintf("annotation-source-%d", workflowID), "bucket-annotation")
	sourceTwo := mustCreateDataSource(t, st, fmt.Sprintf("review-source-%d", workflowID), "bucket-review")
	sourceThree := mustCreateDataSource(t, st, fmt.Sprintf("completion-source-%d", workflowID), "bucket-completion")

	// A stage's target data source is where its own assets live while the
	// stage works on them; input points at the upstream stage's source.
	annotation := mustCreateStage(t, st, &workflow.WorkflowStage{
		WorkflowID:         workflowID,
		Name:               "Annotate",
		StageOrder:         1,
		Type:               workflow.StageAnnotation,
		Initial:            true,
		InputDataSourceID:  &sourceOne.ID,
		TargetDataSourceID: &sourceOne.ID,
	})
	review := mustCreateStage(t, st, &workflow.WorkflowStage{
		WorkflowID:         workflowID,
		Name:               "Review",
		StageOrder:         2,
		Type:               workflow.StageReview,
		InputDataSourceID:  &sourceOne.ID,
		TargetDataSourceID: &sourceTwo.ID,
	})
	completion := mustCreateStage(t, st, &workflow.WorkflowStage{
		WorkflowID:         workflowID,
		Name:               "Complete",
		StageOrder:         3,
		Type:               workflow.StageCompletion,
		Final:              true,
		InputDataSourceID:  &sourceTwo.ID,
		TargetDataSourceID: &sourceThree.ID,
	})

	mustConnect(t, st, annotation.ID, review.ID)
	mustConnect(t, st, review.ID, completion.ID)

	return &SeededWorkflow{
		WorkflowID:  workflowID,
		Annotation:  annotation,
		Review:      review,
		Completion:  completion,
		SourceOne:   sourceOne,
		SourceTwo:   sourceTwo,
		SourceThree: sourceThree,
	}
}

// SeedAsset creates an asset owned by the given data source.
func SeedAsset(t testing.TB, st *store.Store, dataSourceID int64, storageKey string) *workflow.Asset {
	t.Helper()

	asset, err := st.CreateAsset(context.Background(), &workflow.Asset{
		StorageKey:   storageKey,
		DataSourceID: dataSourceID,
		ProjectID:    1,
	})
	if err != nil {
		t.Fatalf("store.CreateAsset: %v", err)
	}
	return asset
}

// SeedTask creates a task for an asset in the given stage with the given
// status.
func SeedTask(t testing.TB, st *store.Store, asset *workflow.Asset, stage *workflow.WorkflowStage, status workflow.TaskStatus) *workflow.Task {
	t.Helper()

	task, err := st.CreateTask(context.Background(), &workflow.Task{
		Status:     status,
		AssetID:    asset.ID,
		ProjectID:  asset.ProjectID,
		WorkflowID: stage.WorkflowID,
		StageID:    stage.ID,
	})
	if err != nil {
		t.Fatalf("store.CreateTask: %v", err)
	}
	return task
}

func mustCreateDataSource(t testing.TB, st *store.Store, name, bucket string) *workflow.DataSource {
	t.Helper()

	source, err := st.CreateDataSource(context.Background(), &workflow.DataSource{Name: name, Bucket: bucket})
	if err != nil {
		t.Fatalf("store.CreateDataSource: %v", err)
	}
	return source
}

func mustCreateStage(t testing.TB, st *store.Store, stage *workflow.WorkflowStage) *workflow.WorkflowStage {
	t.Helper()

	created, err := st.CreateWorkflowStage(context.Background(), stage)
	if err != nil {
		t.Fatalf("store.CreateWorkflowStage: %v", err)
	}
	return created
}

func mustConnect(t testing.TB, st *store.Store, fromID, toID int64) {
	t.Helper()

	if _, err := st.CreateStageConnection(context.Background(), &workflow.StageConnection{
		FromStageID: fromID,
		ToStageID:   toID,
	}); err != nil {
		t.Fatalf("store.CreateStageConnection: %v", err)
	}
}
