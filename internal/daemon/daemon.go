package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"clipforge/internal/cleanup"
	"clipforge/internal/config"
	"clipforge/internal/events"
	"clipforge/internal/ingest"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/preflight"
	"clipforge/internal/store"
	"clipforge/internal/transcode"
)

// Options carries the components the daemon serves.
type Options struct {
	Config       *config.Config
	Store        *store.Store
	Orchestrator *jobs.Orchestrator
	Cleanup      *cleanup.Engine
	Hub          *events.Hub
	Ingest       *ingest.Service
	Pattern      *transcode.PatternSwitch
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Daemon owns the process lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	orch    *jobs.Orchestrator
	cleanup *cleanup.Engine
	hub     *events.Hub
	ingest  *ingest.Service
	pattern *transcode.PatternSwitch
	metrics http.Handler

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	DatabasePath   string
	LockFilePath   string
	ActiveJobs     []string
	Subscribers    int
	CleanupRunning bool
	PatternEnabled bool
	Preflight      preflight.Report
}

// New constructs a daemon with initialized dependencies.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Store == nil || opts.Orchestrator == nil || opts.Cleanup == nil || opts.Hub == nil || opts.Ingest == nil {
		return nil, errors.New("daemon requires config, store, orchestrator, cleanup engine, hub, and ingest service")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Pattern == nil {
		opts.Pattern = &transcode.PatternSwitch{}
	}
	lockPath := opts.Config.LockPath()
	d := &Daemon{
		cfg:      opts.Config,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    opts.Store,
		orch:     opts.Orchestrator,
		cleanup:  opts.Cleanup,
		hub:      opts.Hub,
		ingest:   opts.Ingest,
		pattern:  opts.Pattern,
		metrics:  opts.Metrics,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(opts.Config, d, logger)
	return d, nil
}

// Start acquires the daemon lock, starts the cleanup loop, and begins serving
// the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another clipforge daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}
	d.cancel = cancel
	d.cleanup.Start(runCtx)

	d.running.Store(true)
	d.logger.Info("clipforge daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop stops the API and cleanup loop and releases the daemon lock. Running
// jobs are left to the caller's shutdown sequence.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}
	d.api.stop()
	d.cleanup.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.logger.Info("clipforge daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.hub.Close()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Address returns the API listen address once started.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Handler exposes the API router, mainly for tests.
func (d *Daemon) Handler() http.Handler {
	return d.api.handler
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		DatabasePath:   d.store.Path(),
		LockFilePath:   d.lockPath,
		ActiveJobs:     d.orch.Active(),
		Subscribers:    d.hub.Count(),
		CleanupRunning: d.cleanup.Running(),
		PatternEnabled: d.pattern.Enabled(),
		Preflight:      preflight.RunAll(ctx, d.cfg),
	}
}
