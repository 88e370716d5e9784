package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, func() []captured) {
	t.Helper()
	var mu sync.Mutex
	var got []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte("topic rejected"))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), got...)
	}
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyJobFailed(context.Background(), "job", "boom"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).TestNotification(context.Background()); err != nil {
		t.Fatalf("expected nil config to yield noop, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	srv, requests := newNtfyServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.JobCompleted = true
	cfg.Notifications.JobFailed = true
	cfg.Notifications.CleanupFailures = true
	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	if err := svc.NotifyJobCompleted(ctx, "0123456789abcdef", 2, 1500*time.Millisecond); err != nil {
		t.Fatalf("NotifyJobCompleted failed: %v", err)
	}
	if err := svc.NotifyJobFailed(ctx, "0123456789abcdef", "ffmpeg exit status 1"); err != nil {
		t.Fatalf("NotifyJobFailed failed: %v", err)
	}
	if err := svc.NotifyCleanupFailures(ctx, 0, ""); err != nil {
		t.Fatalf("NotifyCleanupFailures failed: %v", err)
	}
	if err := svc.NotifyCleanupFailures(ctx, 3, "permission denied"); err != nil {
		t.Fatalf("NotifyCleanupFailures failed: %v", err)
	}

	got := requests()
	if len(got) != 3 {
		t.Fatalf("expected 3 requests (zero failures skipped), got %d", len(got))
	}
	if got[0].title != "ClipForge - Job Complete" || got[0].body != "✅ Job 01234567 processed 2 files in 2s" {
		t.Fatalf("unexpected completion payload %+v", got[0])
	}
	if got[1].priority != "high" || !strings.Contains(got[1].body, "ffmpeg exit status 1") {
		t.Fatalf("unexpected failure payload %+v", got[1])
	}
	if got[2].tags != "clipforge,cleanup,warning" || !strings.Contains(got[2].body, "3 failed") {
		t.Fatalf("unexpected cleanup payload %+v", got[2])
	}
}

func TestNtfyServiceRespectsToggles(t *testing.T) {
	srv, requests := newNtfyServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.JobCompleted = false
	cfg.Notifications.JobFailed = false
	cfg.Notifications.CleanupFailures = false
	svc := notifications.NewService(&cfg)

	_ = svc.NotifyJobCompleted(context.Background(), "j", 1, time.Second)
	_ = svc.NotifyJobFailed(context.Background(), "j", "x")
	_ = svc.NotifyCleanupFailures(context.Background(), 1, "")
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if got := requests(); len(got) != 1 || got[0].priority != "low" {
		t.Fatalf("expected only the test notification, got %+v", got)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv, _ := newNtfyServer(t, http.StatusForbidden)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
