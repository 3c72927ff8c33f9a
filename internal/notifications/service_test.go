package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"labelflow/internal/notifications"
	"labelflow/internal/testsupport"
	"labelflow/internal/workflow"
)

type recordedRequest struct {
	title    string
	priority string
	tags     string
	body     string
}

func newRecordingServer(t *testing.T) (*httptest.Server, func() []recordedRequest) {
	t.Helper()

	var mu sync.Mutex
	var requests []recordedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, recordedRequest{
			title:    r.Header.Get("Title"),
			priority: r.Header.Get("Priority"),
			tags:     r.Header.Get("Tags"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	return server, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), requests...)
	}
}

func TestNotifyTaskCompleted(t *testing.T) {
	server, recorded := newRecordingServer(t)
	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(server.URL))
	svc := notifications.NewService(cfg)

	task := &workflow.Task{ID: 12, AssetID: 34}
	if err := svc.NotifyTaskCompleted(context.Background(), task, "Review"); err != nil {
		t.Fatalf("NotifyTaskCompleted: %v", err)
	}

	requests := recorded()
	if len(requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(requests))
	}
	if !strings.Contains(requests[0].body, "Task 12") {
		t.Fatalf("body = %q, want task id", requests[0].body)
	}
	if !strings.Contains(requests[0].body, "Review") {
		t.Fatalf("body = %q, want next stage name", requests[0].body)
	}
}

func TestNotifyAlertRaisedUsesHighPriority(t *testing.T) {
	server, recorded := newRecordingServer(t)
	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(server.URL))
	svc := notifications.NewService(cfg)

	alert := &workflow.ManagementAlert{
		ID:            7,
		Type:          workflow.AlertRollbackFailed,
		FailureReason: "asset move could not be reversed",
		RollbackError: "source object missing",
	}
	if err := svc.NotifyAlertRaised(context.Background(), alert); err != nil {
		t.Fatalf("NotifyAlertRaised: %v", err)
	}

	requests := recorded()
	if len(requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(requests))
	}
	if requests[0].priority != "high" {
		t.Fatalf("priority = %q, want high", requests[0].priority)
	}
	if !strings.Contains(requests[0].body, "manual intervention") {
		t.Fatalf("body = %q, want rollback failure note", requests[0].body)
	}
}

func TestTaskEventsCanBeDisabled(t *testing.T) {
	server, recorded := newRecordingServer(t)
	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(server.URL))
	cfg.Notifications.TaskEvents = false
	svc := notifications.NewService(cfg)

	if err := svc.NotifyTaskVetoed(context.Background(), &workflow.Task{ID: 1}); err != nil {
		t.Fatalf("NotifyTaskVetoed: %v", err)
	}
	if len(recorded()) != 0 {
		t.Fatal("expected no request when task events are disabled")
	}
}

func TestNoopWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc := notifications.NewService(cfg)

	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("TestNotification on noop service: %v", err)
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	var count int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		mu.Unlock()
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(server.URL))
	svc := notifications.NewService(cfg)

	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error on 403 response")
	}
	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("requests = %d, want 1 (no retries on client error)", count)
	}
}
