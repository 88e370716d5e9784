package cleanup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/events"
	"clipforge/internal/logging"
	"clipforge/internal/metrics"
	"clipforge/internal/notifications"
	"clipforge/internal/services"
	"clipforge/internal/store"
)

// Audit operation names recorded in the cleanup log.
const (
	OpUploadDeleted    = "upload_file_deleted"
	OpProcessedDeleted = "processed_video_deleted"
	OpBundleDeleted    = "bundle_deleted"
	OpRowsPruned       = "rows_pruned"
	OpForceVideo       = "force_cleanup_video"
	OpForceBundle      = "force_cleanup_bundle"
)

const notifyTimeout = 15 * time.Second

// Broadcaster receives cleanup events.
type Broadcaster interface {
	Broadcast(events.Event)
}

// Options wires the engine's collaborators.
type Options struct {
	Store    *store.Store
	Config   *config.Config
	Events   Broadcaster
	Notifier notifications.Service
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	// AfterPrune runs after a successful row prune with the cutoff used.
	AfterPrune func(cutoff time.Time)
}

// Engine runs retention sweeps.
type Engine struct {
	store      *store.Store
	cfg        *config.Config
	events     Broadcaster
	notifier   notifications.Service
	metrics    *metrics.Metrics
	logger     *slog.Logger
	afterPrune func(time.Time)
	now        func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	sweepMu sync.Mutex
}

// New constructs an engine. Store and Config are required.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "cleanup", "init", "store required", nil)
	}
	if opts.Config == nil {
		return nil, services.Wrap(services.ErrConfiguration, "cleanup", "init", "config required", nil)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Notifier == nil {
		opts.Notifier = notifications.NewService(nil)
	}
	return &Engine{
		store:      opts.Store,
		cfg:        opts.Config,
		events:     opts.Events,
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
		logger:     logging.NewComponentLogger(opts.Logger, "cleanup"),
		afterPrune: opts.AfterPrune,
		now:        time.Now,
	}, nil
}

// Start launches the periodic loop. A second call while running is a no-op.
func (e *Engine) Start(ctx context.Context) {
	if e == nil {
		return
	}
	if !e.cfg.Cleanup.Enabled {
		e.logger.Info("cleanup loop disabled by configuration")
		return
	}
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		e.logger.Warn("cleanup loop already running",
			logging.String(logging.FieldEventType, "cleanup_already_running"),
		)
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.wg.Add(1)
	e.mu.Unlock()

	e.logger.Info("cleanup loop started",
		logging.Duration("interval", e.cfg.CleanupInterval()),
		logging.Duration("upload_delay", e.cfg.UploadDelay()),
		logging.Duration("processed_delay", e.cfg.ProcessedDelay()),
		logging.Duration("bundle_delay", e.cfg.BundleDelay()),
	)
	go e.loop(runCtx)
}

// Stop ends the loop and waits for it to exit. Stopping an idle engine is a no-op.
func (e *Engine) Stop() {
	if e == nil {
		return
	}
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.running = false
	e.cancel = nil
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	e.logger.Info("cleanup loop stopped")
}

// Running reports whether the periodic loop is active.
func (e *Engine) Running() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.CleanupInterval())
	defer ticker.Stop()
	for {
		if _, err := e.Sweep(ctx); err != nil && ctx.Err() == nil {
			logging.WarnWithContext(e.logger, "cleanup sweep finished with errors", "cleanup_sweep_failed",
				logging.String(logging.FieldErrorHint, "check database health and directory permissions"),
				logging.String(logging.FieldImpact, "expired artifacts remain until the next sweep"),
				logging.Error(err),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ManualCycle runs one sweep synchronously. It waits for any sweep already
// in progress.
func (e *Engine) ManualCycle(ctx context.Context) (Report, error) {
	e.logger.Info("manual cleanup cycle requested")
	return e.Sweep(ctx)
}

func (e *Engine) notify(send func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			e.logger.Warn("cleanup notification failed", logging.Error(err))
		}
	}()
}

func (e *Engine) broadcast(evt events.Event) {
	if e.events != nil {
		e.events.Broadcast(evt)
	}
}
