package workflow_test

import (
	"errors"
	"testing"

	"labelflow/internal/workflow"
)

func chainGraph() *workflow.Graph {
	stages := []*workflow.WorkflowStage{
		{ID: 1, WorkflowID: 1, Name: "Annotation", StageOrder: 1, Type: workflow.StageAnnotation, Initial: true},
		{ID: 2, WorkflowID: 1, Name: "Review", StageOrder: 2, Type: workflow.StageReview},
		{ID: 3, WorkflowID: 1, Name: "Completion", StageOrder: 3, Type: workflow.StageCompletion, Final: true},
	}
	connections := []*workflow.StageConnection{
		{ID: 10, FromStageID: 1, ToStageID: 2},
		{ID: 11, FromStageID: 2, ToStageID: 3},
	}
	return workflow.NewGraph(stages, connections)
}

func TestNextStageFollowsSingleConnection(t *testing.T) {
	g := chainGraph()

	next := g.NextStage(1)
	if next == nil || next.ID != 2 {
		t.Fatalf("expected next stage 2, got %#v", next)
	}
	next = g.NextStage(2)
	if next == nil || next.ID != 3 {
		t.Fatalf("expected next stage 3, got %#v", next)
	}
}

func TestNextStageTerminalReturnsNil(t *testing.T) {
	g := chainGraph()
	if next := g.NextStage(3); next != nil {
		t.Fatalf("expected nil for final stage, got %#v", next)
	}
}

func TestNextStageBranchingIsDeterministic(t *testing.T) {
	stages := []*workflow.WorkflowStage{
		{ID: 1, Name: "Review", StageOrder: 2, Type: workflow.StageReview},
		{ID: 2, Name: "Completion", StageOrder: 4, Type: workflow.StageCompletion},
		{ID: 3, Name: "Second Review", StageOrder: 3, Type: workflow.StageReview},
	}
	// Edge to the completion stage listed first; the lower-order target wins.
	connections := []*workflow.StageConnection{
		{ID: 20, FromStageID: 1, ToStageID: 2},
		{ID: 21, FromStageID: 1, ToStageID: 3},
	}
	g := workflow.NewGraph(stages, connections)

	if got := g.OutgoingCount(1); got != 2 {
		t.Fatalf("expected 2 outgoing connections, got %d", got)
	}
	next := g.NextStage(1)
	if next == nil || next.ID != 3 {
		t.Fatalf("expected lowest-order target 3, got %#v", next)
	}
}

func TestFirstAnnotationStage(t *testing.T) {
	g := chainGraph()
	stage, err := g.FirstAnnotationStage()
	if err != nil {
		t.Fatalf("FirstAnnotationStage failed: %v", err)
	}
	if stage.ID != 1 {
		t.Fatalf("expected stage 1, got %d", stage.ID)
	}
}

func TestFirstAnnotationStagePicksLowestOrder(t *testing.T) {
	stages := []*workflow.WorkflowStage{
		{ID: 5, Name: "Late Annotation", StageOrder: 4, Type: workflow.StageAnnotation},
		{ID: 4, Name: "Early Annotation", StageOrder: 1, Type: workflow.StageAnnotation},
	}
	g := workflow.NewGraph(stages, nil)
	stage, err := g.FirstAnnotationStage()
	if err != nil {
		t.Fatalf("FirstAnnotationStage failed: %v", err)
	}
	if stage.ID != 4 {
		t.Fatalf("expected lowest-order annotation stage 4, got %d", stage.ID)
	}
}

func TestFirstAnnotationStageMissingFailsLoudly(t *testing.T) {
	stages := []*workflow.WorkflowStage{
		{ID: 1, Name: "Review", StageOrder: 1, Type: workflow.StageReview},
	}
	g := workflow.NewGraph(stages, nil)
	if _, err := g.FirstAnnotationStage(); !errors.Is(err, workflow.ErrNoAnnotationStage) {
		t.Fatalf("expected ErrNoAnnotationStage, got %v", err)
	}
}

func TestCompletionPredecessorsDeduplicated(t *testing.T) {
	stages := []*workflow.WorkflowStage{
		{ID: 1, Name: "Annotation", StageOrder: 1, Type: workflow.StageAnnotation},
		{ID: 2, Name: "Review", StageOrder: 2, Type: workflow.StageReview},
		{ID: 3, Name: "Rework Review", StageOrder: 3, Type: workflow.StageReview},
		{ID: 4, Name: "Completion", StageOrder: 4, Type: workflow.StageCompletion},
	}
	connections := []*workflow.StageConnection{
		{ID: 1, FromStageID: 1, ToStageID: 2},
		{ID: 2, FromStageID: 2, ToStageID: 4},
		{ID: 3, FromStageID: 3, ToStageID: 4},
		// Duplicate edge from stage 2; predecessors must stay deduplicated.
		{ID: 4, FromStageID: 2, ToStageID: 4},
	}
	g := workflow.NewGraph(stages, connections)

	preds := g.CompletionPredecessors()
	if len(preds) != 2 {
		t.Fatalf("expected 2 predecessors, got %d", len(preds))
	}
	if preds[0].ID != 2 || preds[1].ID != 3 {
		t.Fatalf("unexpected predecessor order: %d, %d", preds[0].ID, preds[1].ID)
	}
}

func TestConnectionExists(t *testing.T) {
	g := chainGraph()
	if !g.ConnectionExists(1, 2) {
		t.Fatal("expected connection 1->2")
	}
	if g.ConnectionExists(2, 1) {
		t.Fatal("connections are directed; 2->1 must not exist")
	}
	if g.ConnectionExists(1, 3) {
		t.Fatal("no direct edge 1->3 configured")
	}
}

func TestNewGraphDropsDanglingConnections(t *testing.T) {
	stages := []*workflow.WorkflowStage{
		{ID: 1, Name: "Annotation", StageOrder: 1, Type: workflow.StageAnnotation},
	}
	connections := []*workflow.StageConnection{
		{ID: 1, FromStageID: 1, ToStageID: 99},
	}
	g := workflow.NewGraph(stages, connections)
	if g.NextStage(1) != nil {
		t.Fatal("connection to an unknown stage must be dropped")
	}
}
