package workflow_test

import (
	"testing"

	"labelflow/internal/workflow"
)

func legalPairs() map[workflow.TaskStatus][]workflow.TaskStatus {
	return map[workflow.TaskStatus][]workflow.TaskStatus{
		workflow.StatusInProgress: {
			workflow.StatusReadyForAnnotation,
			workflow.StatusReadyForReview,
			workflow.StatusReadyForCompletion,
			workflow.StatusSuspended,
			workflow.StatusDeferred,
			workflow.StatusNotStarted,
			workflow.StatusChangesRequired,
		},
		workflow.StatusSuspended: {
			workflow.StatusInProgress,
			workflow.StatusReadyForAnnotation,
			workflow.StatusReadyForReview,
			workflow.StatusReadyForCompletion,
			workflow.StatusNotStarted,
			workflow.StatusChangesRequired,
		},
		workflow.StatusDeferred: {
			workflow.StatusInProgress,
			workflow.StatusReadyForAnnotation,
			workflow.StatusReadyForReview,
			workflow.StatusReadyForCompletion,
			workflow.StatusNotStarted,
			workflow.StatusChangesRequired,
		},
		workflow.StatusCompleted:       {workflow.StatusInProgress, workflow.StatusChangesRequired},
		workflow.StatusVetoed:          {workflow.StatusInProgress},
		workflow.StatusChangesRequired: {workflow.StatusCompleted},
		workflow.StatusArchived:        {workflow.StatusCompleted},
	}
}

func TestIsLegalTransitionExhaustive(t *testing.T) {
	legal := make(map[[2]workflow.TaskStatus]bool)
	for target, sources := range legalPairs() {
		for _, source := range sources {
			legal[[2]workflow.TaskStatus{source, target}] = true
		}
	}

	statuses := workflow.AllTaskStatuses()
	for _, current := range statuses {
		for _, target := range statuses {
			want := legal[[2]workflow.TaskStatus{current, target}]
			got := workflow.IsLegalTransition(current, target)
			if got != want {
				t.Errorf("IsLegalTransition(%s, %s) = %v, want %v", current, target, got, want)
			}
		}
	}
}

func TestReadyStatusesNeverReachable(t *testing.T) {
	targets := []workflow.TaskStatus{
		workflow.StatusReadyForAnnotation,
		workflow.StatusReadyForReview,
		workflow.StatusReadyForCompletion,
		workflow.StatusNotStarted,
	}
	for _, current := range workflow.AllTaskStatuses() {
		for _, target := range targets {
			if workflow.IsLegalTransition(current, target) {
				t.Errorf("expected %s -> %s to be illegal", current, target)
			}
		}
	}
}

func TestIsLegalTransitionUnknownStatuses(t *testing.T) {
	if workflow.IsLegalTransition("bogus", workflow.StatusCompleted) {
		t.Error("unknown current status should be illegal")
	}
	if workflow.IsLegalTransition(workflow.StatusInProgress, "bogus") {
		t.Error("unknown target status should be illegal")
	}
}

func TestParseTaskStatus(t *testing.T) {
	cases := []struct {
		input string
		want  workflow.TaskStatus
		ok    bool
	}{
		{"completed", workflow.StatusCompleted, true},
		{"  In_Progress ", workflow.StatusInProgress, true},
		{"CHANGES_REQUIRED", workflow.StatusChangesRequired, true},
		{"", "", false},
		{"nope", "", false},
	}
	for _, tc := range cases {
		got, ok := workflow.ParseTaskStatus(tc.input)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseTaskStatus(%q) = (%s, %v), want (%s, %v)", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestEntryStatusForStage(t *testing.T) {
	cases := []struct {
		stageType workflow.StageType
		want      workflow.TaskStatus
	}{
		{workflow.StageAnnotation, workflow.StatusReadyForAnnotation},
		{workflow.StageReview, workflow.StatusReadyForReview},
		{workflow.StageCompletion, workflow.StatusReadyForCompletion},
	}
	for _, tc := range cases {
		if got := workflow.EntryStatusForStage(tc.stageType); got != tc.want {
			t.Errorf("EntryStatusForStage(%s) = %s, want %s", tc.stageType, got, tc.want)
		}
	}
}
