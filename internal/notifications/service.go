package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipforge/internal/config"
)

const userAgent = "ClipForge-Go/0.1.0"

// Service defines the notification surface used by the orchestrator and the
// cleanup engine.
type Service interface {
	NotifyJobCompleted(ctx context.Context, jobID string, files int, duration time.Duration) error
	NotifyJobFailed(ctx context.Context, jobID string, reason string) error
	NotifyCleanupFailures(ctx context.Context, failed int, detail string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:        topic,
		client:          &http.Client{Timeout: timeout},
		jobCompleted:    cfg.Notifications.JobCompleted,
		jobFailed:       cfg.Notifications.JobFailed,
		cleanupFailures: cfg.Notifications.CleanupFailures,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint        string
	client          *http.Client
	jobCompleted    bool
	jobFailed       bool
	cleanupFailures bool
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, jobID string, files int, duration time.Duration) error {
	if !n.jobCompleted {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	noun := "files"
	if files == 1 {
		noun = "file"
	}
	data := payload{
		title:   "ClipForge - Job Complete",
		message: fmt.Sprintf("✅ Job %s processed %d %s in %s", shortJobID(jobID), files, noun, duration),
		tags:    []string{"clipforge", "job", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, jobID string, reason string) error {
	if !n.jobFailed {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "ClipForge - Job Failed",
		message:  fmt.Sprintf("❌ Job %s failed: %s", shortJobID(jobID), reason),
		tags:     []string{"clipforge", "job", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCleanupFailures(ctx context.Context, failed int, detail string) error {
	if !n.cleanupFailures || failed <= 0 {
		return nil
	}
	message := fmt.Sprintf("🧹 Cleanup sweep recorded %d failed deletion(s)", failed)
	if detail = strings.TrimSpace(detail); detail != "" {
		message += "\n" + detail
	}
	data := payload{
		title:   "ClipForge - Cleanup Failures",
		message: message,
		tags:    []string{"clipforge", "cleanup", "warning"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "ClipForge - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"clipforge", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
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

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func shortJobID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, string, int, time.Duration) error { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string) error                { return nil }
func (noopService) NotifyCleanupFailures(context.Context, int, string) error             { return nil }
func (noopService) TestNotification(context.Context) error                               { return nil }
