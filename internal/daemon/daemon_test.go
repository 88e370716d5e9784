package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clipforge/internal/cleanup"
	"clipforge/internal/config"
	"clipforge/internal/daemon"
	"clipforge/internal/events"
	"clipforge/internal/ingest"
	"clipforge/internal/jobs"
	"clipforge/internal/metrics"
	"clipforge/internal/settings"
	"clipforge/internal/testsupport"
	"clipforge/internal/transcode"
)

// copyTranscoder writes a processed copy of the source into the output dir.
type copyTranscoder struct {
	outputDir string
}

func (c copyTranscoder) Transform(ctx context.Context, source string, _ settings.ProcessingSettings, onProgress transcode.ProgressFunc) (string, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return "", err
	}
	onProgress(50)
	out := transcode.OutputPath(ctx, c.outputDir, source, "mp4")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", err
	}
	onProgress(100)
	return out, nil
}

type stack struct {
	cfg     *config.Config
	daemon  *daemon.Daemon
	orch    *jobs.Orchestrator
	pattern *transcode.PatternSwitch
}

func newStack(t *testing.T) *stack {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	st := testsupport.MustOpenStore(t, cfg)
	hub := events.NewHub(nil)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, hub.Count)
	pattern := &transcode.PatternSwitch{}

	orch, err := jobs.New(jobs.Options{
		Store:      st,
		Transcoder: copyTranscoder{outputDir: cfg.Paths.OutputDir},
		Events:     hub,
		Metrics:    m,
		OutputDir:  cfg.Paths.OutputDir,
		MaxFiles:   cfg.Jobs.MaxFilesPerJob,
	})
	if err != nil {
		t.Fatalf("jobs.New: %v", err)
	}
	engine, err := cleanup.New(cleanup.Options{Store: st, Config: cfg, Events: hub, Metrics: m})
	if err != nil {
		t.Fatalf("cleanup.New: %v", err)
	}
	ing, err := ingest.NewService(cfg, st, nil)
	if err != nil {
		t.Fatalf("ingest.NewService: %v", err)
	}
	d, err := daemon.New(daemon.Options{
		Config:       cfg,
		Store:        st,
		Orchestrator: orch,
		Cleanup:      engine,
		Hub:          hub,
		Ingest:       ing,
		Pattern:      pattern,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
		orch.Cancel()
		_ = orch.Wait(context.Background())
	})
	return &stack{cfg: cfg, daemon: d, orch: orch, pattern: pattern}
}

func TestDaemonStartStop(t *testing.T) {
	s := newStack(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := s.daemon.Status(ctx)
	if !status.Running || !status.CleanupRunning {
		t.Fatalf("expected daemon and cleanup running, got %+v", status)
	}
	if !strings.HasPrefix(s.daemon.Address(), "127.0.0.1:") {
		t.Fatalf("unexpected address %q", s.daemon.Address())
	}
	if status.LockFilePath != filepath.Join(s.cfg.Paths.DataDir, "clipforged.lock") {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}

	if err := s.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	s.daemon.Stop()
	s.daemon.Stop()
	status = s.daemon.Status(ctx)
	if status.Running || status.CleanupRunning {
		t.Fatalf("expected daemon stopped, got %+v", status)
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	if err := s.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	other, err := daemon.New(daemon.Options{
		Config:       s.cfg,
		Store:        testsupport.MustOpenStore(t, s.cfg),
		Orchestrator: s.orch,
		Cleanup:      mustEngine(t, s.cfg),
		Hub:          events.NewHub(nil),
		Ingest:       mustIngest(t, s.cfg),
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := other.Start(ctx); err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock conflict, got %v", err)
	}
}

func mustEngine(t *testing.T, cfg *config.Config) *cleanup.Engine {
	t.Helper()
	e, err := cleanup.New(cleanup.Options{Store: testsupport.MustOpenStore(t, cfg), Config: cfg})
	if err != nil {
		t.Fatalf("cleanup.New: %v", err)
	}
	return e
}

func mustIngest(t *testing.T, cfg *config.Config) *ingest.Service {
	t.Helper()
	svc, err := ingest.NewService(cfg, testsupport.MustOpenStore(t, cfg), nil)
	if err != nil {
		t.Fatalf("ingest.NewService: %v", err)
	}
	return svc
}
