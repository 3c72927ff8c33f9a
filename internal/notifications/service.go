package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"labelflow/internal/config"
	"labelflow/internal/workflow"
)

const userAgent = "Labelflow/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyTaskCompleted(ctx context.Context, task *workflow.Task, nextStageName string) error
	NotifyTaskVetoed(ctx context.Context, task *workflow.Task) error
	NotifyAlertRaised(ctx context.Context, alert *workflow.ManagementAlert) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint:   topic,
		client:     client,
		taskEvents: cfg.Notifications.TaskEvents,
		alerts:     cfg.Notifications.Alerts,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	taskEvents bool
	alerts     bool
}

func (n *ntfyService) NotifyTaskCompleted(ctx context.Context, task *workflow.Task, nextStageName string) error {
	if !n.taskEvents {
		return nil
	}
	message := fmt.Sprintf("Task %d completed for asset %d", task.ID, task.AssetID)
	if nextStageName = strings.TrimSpace(nextStageName); nextStageName != "" {
		message = fmt.Sprintf("%s\nAdvanced to: %s", message, nextStageName)
	}
	data := payload{
		title:   "Labelflow - Task Completed",
		message: message,
		tags:    []string{"labelflow", "task", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTaskVetoed(ctx context.Context, task *workflow.Task) error {
	if !n.taskEvents {
		return nil
	}
	data := payload{
		title:   "Labelflow - Task Vetoed",
		message: fmt.Sprintf("Task %d vetoed, asset %d returned for annotation changes", task.ID, task.AssetID),
		tags:    []string{"labelflow", "task", "vetoed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAlertRaised(ctx context.Context, alert *workflow.ManagementAlert) error {
	if !n.alerts {
		return nil
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "Alert %d (%s): %s", alert.ID, alert.Type, alert.FailureReason)
	if alert.RollbackError != "" {
		builder.WriteString("\nRollback failed, manual intervention required")
	}
	data := payload{
		title:    "Labelflow - Management Alert",
		message:  builder.String(),
		tags:     []string{"labelflow", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Labelflow - Test",
		message:  "Notification system test",
		tags:     []string{"labelflow", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build ntfy request: %w", err))
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		if data.title != "" {
			req.Header.Set("Title", data.title)
		}
		if len(data.tags) > 0 {
			req.Header.Set("Tags", strings.Join(data.tags, ","))
		}
		if data.priority != "" && data.priority != "default" {
			req.Header.Set("Priority", data.priority)
		}

		resp, err := n.client.Do(req)
		if err != nil {
			return fmt.Errorf("send ntfy notification: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return backoff.Permanent(fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 15 * time.Second
	return backoff.Retry(attempt, backoff.WithContext(policy, ctx))
}

type noopService struct{}

func (noopService) NotifyTaskCompleted(context.Context, *workflow.Task, string) error     { return nil }
func (noopService) NotifyTaskVetoed(context.Context, *workflow.Task) error                { return nil }
func (noopService) NotifyAlertRaised(context.Context, *workflow.ManagementAlert) error    { return nil }
func (noopService) TestNotification(context.Context) error                                { return nil }
