package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"labelflow/internal/store"
	"labelflow/internal/testsupport"
	"labelflow/internal/workflow"
)

func TestOpenAppliesMigrationsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	health, err := st.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable {
		t.Fatalf("expected healthy database, got %+v", health)
	}
	if len(health.MissingTables) != 0 {
		t.Fatalf("missing tables after migration: %v", health.MissingTables)
	}
	if !health.IntegrityCheck {
		t.Fatal("integrity check failed on fresh database")
	}
}

func TestOpenRejectsSecondProcess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.MustOpenStore(t, cfg)

	if _, err := store.Open(cfg); !errors.Is(err, store.ErrLocked) {
		t.Fatalf("expected ErrLocked for second open, got %v", err)
	}
}

func TestTaskRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedWorkflow(t, st, 1)
	asset := testsupport.SeedAsset(t, st, seeded.SourceOne.ID, "clips/0001.mp4")

	task := testsupport.SeedTask(t, st, asset, seeded.Annotation, workflow.StatusReadyForAnnotation)
	if task.ID == 0 {
		t.Fatal("expected assigned task id")
	}
	if task.Version != 1 {
		t.Fatalf("new task version = %d, want 1", task.Version)
	}

	loaded, err := st.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected task, got nil")
	}
	if loaded.Status != workflow.StatusReadyForAnnotation {
		t.Fatalf("status = %s, want %s", loaded.Status, workflow.StatusReadyForAnnotation)
	}
	if loaded.StageID != seeded.Annotation.ID {
		t.Fatalf("stage = %d, want %d", loaded.StageID, seeded.Annotation.ID)
	}
}

func TestGetTaskMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	task, err := st.GetTask(context.Background(), 9999)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task != nil {
		t.Fatalf("expected nil for missing task, got %+v", task)
	}
}

func TestUpdateTaskStatusVersioned(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedWorkflow(t, st, 1)
	asset := testsupport.SeedAsset(t, st, seeded.SourceOne.ID, "clips/0001.mp4")
	task := testsupport.SeedTask(t, st, asset, seeded.Annotation, workflow.StatusInProgress)

	ctx := context.Background()

	workflow.ApplyStatus(task, workflow.StatusCompleted, "user-1", time.Now().UTC())
	if err := st.UpdateTaskStatusVersioned(ctx, task); err != nil {
		t.Fatalf("UpdateTaskStatusVersioned: %v", err)
	}
	if task.Version != 2 {
		t.Fatalf("version after save = %d, want 2", task.Version)
	}

	loaded, err := st.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if loaded.Status != workflow.StatusCompleted {
		t.Fatalf("status = %s, want %s", loaded.Status, workflow.StatusCompleted)
	}
	if loaded.CompletedAt == nil {
		t.Fatal("expected completed_at to be persisted")
	}
	if loaded.Version != 2 {
		t.Fatalf("persisted version = %d, want 2", loaded.Version)
	}
}

func TestUpdateTaskStatusVersionedConflict(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedWorkflow(t, st, 1)
	asset := testsupport.SeedAsset(t, st, seeded.SourceOne.ID, "clips/0001.mp4")
	task := testsupport.SeedTask(t, st, asset, seeded.Annotation, workflow.StatusInProgress)

	ctx := context.Background()
	now := time.Now().UTC()

	// Two readers load version 1; the second save must lose.
	stale := task.Clone()

	workflow.ApplyStatus(task, workflow.StatusSuspended, "user-1", now)
	if err := st.UpdateTaskStatusVersioned(ctx, task); err != nil {
		t.Fatalf("first save: %v", err)
	}

	workflow.ApplyStatus(stale, workflow.StatusCompleted, "user-2", now)
	err := st.UpdateTaskStatusVersioned(ctx, stale)
	if !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	loaded, err := st.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if loaded.Status != workflow.StatusSuspended {
		t.Fatalf("losing save mutated the row: status = %s", loaded.Status)
	}
	if loaded.Version != 2 {
		t.Fatalf("version = %d, want 2", loaded.Version)
	}
}

func TestActiveTasksForAssetExcludesTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedWorkflow(t, st, 1)
	asset := testsupport.SeedAsset(t, st, seeded.SourceOne.ID, "clips/0001.mp4")

	testsupport.SeedTask(t, st, asset, seeded.Annotation, workflow.StatusArchived)
	testsupport.SeedTask(t, st, asset, seeded.Annotation, workflow.StatusCompleted)
	active := testsupport.SeedTask(t, st, asset, seeded.Review, workflow.StatusReadyForReview)

	tasks, err := st.ActiveTasksForAsset(context.Background(), asset.ID)
	if err != nil {
		t.Fatalf("ActiveTasksForAsset: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("active tasks = %d, want 1", len(tasks))
	}
	if tasks[0].ID != active.ID {
		t.Fatalf("active task id = %d, want %d", tasks[0].ID, active.ID)
	}
}

func TestTaskForAssetInStagePrefersNewest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedWorkflow(t, st, 1)
	asset := testsupport.SeedAsset(t, st, seeded.SourceOne.ID, "clips/0001.mp4")

	testsupport.SeedTask(t, st, asset, seeded.Annotation, workflow.StatusArchived)
	newest := testsupport.SeedTask(t, st, asset, seeded.Annotation, workflow.StatusReadyForAnnotation)

	task, err := st.TaskForAssetInStage(context.Background(), asset.ID, seeded.Annotation.ID)
	if err != nil {
		t.Fatalf("TaskForAssetInStage: %v", err)
	}
	if task == nil || task.ID != newest.ID {
		t.Fatalf("expected newest task %d, got %+v", newest.ID, task)
	}
}

func TestListTasksWithStatusFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedWorkflow(t, st, 1)
	asset := testsupport.SeedAsset(t, st, seeded.SourceOne.ID, "clips/0001.mp4")

	testsupport.SeedTask(t, st, asset, seeded.Annotation, workflow.StatusInProgress)
	testsupport.SeedTask(t, st, asset, seeded.Review, workflow.StatusReadyForReview)
	testsupport.SeedTask(t, st, asset, seeded.Completion, workflow.StatusCompleted)

	tasks, err := st.ListTasks(context.Background(), workflow.StatusInProgress, workflow.StatusReadyForReview)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("filtered tasks = %d, want 2", len(tasks))
	}

	all, err := st.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all tasks = %d, want 3", len(all))
	}
}

func TestListTasksInStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedWorkflow(t, st, 1)
	asset := testsupport.SeedAsset(t, st, seeded.SourceOne.ID, "clips/0001.mp4")

	testsupport.SeedTask(t, st, asset, seeded.Annotation, workflow.StatusInProgress)
	testsupport.SeedTask(t, st, asset, seeded.Annotation, workflow.StatusCompleted)
	testsupport.SeedTask(t, st, asset, seeded.Review, workflow.StatusReadyForReview)

	inStage, err := st.ListTasksInStage(context.Background(), seeded.Annotation.ID)
	if err != nil {
		t.Fatalf("ListTasksInStage: %v", err)
	}
	if len(inStage) != 2 {
		t.Fatalf("annotation tasks = %d, want 2", len(inStage))
	}

	narrowed, err := st.ListTasksInStage(context.Background(), seeded.Annotation.ID, workflow.StatusInProgress)
	if err != nil {
		t.Fatalf("ListTasksInStage filtered: %v", err)
	}
	if len(narrowed) != 1 || narrowed[0].Status != workflow.StatusInProgress {
		t.Fatalf("filtered annotation tasks = %+v, want one in_progress", narrowed)
	}
}

func TestTaskStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedWorkflow(t, st, 1)
	asset := testsupport.SeedAsset(t, st, seeded.SourceOne.ID, "clips/0001.mp4")

	testsupport.SeedTask(t, st, asset, seeded.Annotation, workflow.StatusInProgress)
	testsupport.SeedTask(t, st, asset, seeded.Annotation, workflow.StatusInProgress)
	testsupport.SeedTask(t, st, asset, seeded.Review, workflow.StatusReadyForReview)

	stats, err := st.TaskStats(context.Background())
	if err != nil {
		t.Fatalf("TaskStats: %v", err)
	}
	if stats[workflow.StatusInProgress] != 2 {
		t.Fatalf("in_progress count = %d, want 2", stats[workflow.StatusInProgress])
	}
	if stats[workflow.StatusReadyForReview] != 1 {
		t.Fatalf("ready_for_review count = %d, want 1", stats[workflow.StatusReadyForReview])
	}
}

func TestUpdateAssetDataSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedWorkflow(t, st, 1)
	asset := testsupport.SeedAsset(t, st, seeded.SourceOne.ID, "clips/0001.mp4")

	ctx := context.Background()
	if err := st.UpdateAssetDataSource(ctx, asset.ID, seeded.SourceTwo.ID); err != nil {
		t.Fatalf("UpdateAssetDataSource: %v", err)
	}

	loaded, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if loaded.DataSourceID != seeded.SourceTwo.ID {
		t.Fatalf("data source = %d, want %d", loaded.DataSourceID, seeded.SourceTwo.ID)
	}
}

func TestStagesForWorkflowFeedsGraph(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedWorkflow(t, st, 7)
	testsupport.SeedWorkflow(t, st, 8)

	stages, connections, err := st.StagesForWorkflow(context.Background(), 7)
	if err != nil {
		t.Fatalf("StagesForWorkflow: %v", err)
	}
	if len(stages) != 3 {
		t.Fatalf("stages = %d, want 3", len(stages))
	}
	if len(connections) != 2 {
		t.Fatalf("connections = %d, want 2", len(connections))
	}
	for i := 1; i < len(stages); i++ {
		if stages[i-1].StageOrder > stages[i].StageOrder {
			t.Fatalf("stages out of order at %d", i)
		}
	}

	graph := workflow.NewGraph(stages, connections)
	next := graph.NextStage(seeded.Annotation.ID)
	if next == nil || next.ID != seeded.Review.ID {
		t.Fatalf("next after annotation = %+v, want review stage %d", next, seeded.Review.ID)
	}
}

func TestAlertLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	taskID := int64(42)
	alert, err := st.CreateAlert(ctx, &workflow.ManagementAlert{
		Type:          workflow.AlertRollbackFailed,
		TaskID:        &taskID,
		UserID:        "user-1",
		FailureReason: "asset move could not be reversed",
		OriginalError: "copy checksum mismatch",
		RollbackError: "source object missing",
	})
	if err != nil {
		t.Fatalf("CreateAlert: %v", err)
	}
	if alert.ID == 0 {
		t.Fatal("expected assigned alert id")
	}
	if alert.Resolved {
		t.Fatal("new alert must be unresolved")
	}
	if alert.TaskID == nil || *alert.TaskID != taskID {
		t.Fatalf("task id = %v, want %d", alert.TaskID, taskID)
	}

	unresolved, err := st.ListAlerts(ctx, true)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(unresolved) != 1 {
		t.Fatalf("unresolved alerts = %d, want 1", len(unresolved))
	}

	ok, err := st.ResolveAlert(ctx, alert.ID, "admin", "moved object back by hand")
	if err != nil {
		t.Fatalf("ResolveAlert: %v", err)
	}
	if !ok {
		t.Fatal("expected first resolve to report true")
	}

	ok, err = st.ResolveAlert(ctx, alert.ID, "admin", "again")
	if err != nil {
		t.Fatalf("ResolveAlert repeat: %v", err)
	}
	if ok {
		t.Fatal("expected repeated resolve to report false")
	}

	resolved, err := st.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("GetAlert: %v", err)
	}
	if !resolved.Resolved || resolved.ResolvedBy != "admin" || resolved.ResolvedAt == nil {
		t.Fatalf("resolution not persisted: %+v", resolved)
	}
	if resolved.ResolutionNotes != "moved object back by hand" {
		t.Fatalf("notes = %q", resolved.ResolutionNotes)
	}

	unresolved, err = st.ListAlerts(ctx, true)
	if err != nil {
		t.Fatalf("ListAlerts after resolve: %v", err)
	}
	if len(unresolved) != 0 {
		t.Fatalf("unresolved alerts after resolve = %d, want 0", len(unresolved))
	}
}
