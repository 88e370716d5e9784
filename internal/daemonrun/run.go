package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clipforge/internal/cleanup"
	"clipforge/internal/config"
	"clipforge/internal/daemon"
	"clipforge/internal/events"
	"clipforge/internal/ingest"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/metrics"
	"clipforge/internal/notifications"
	"clipforge/internal/preflight"
	"clipforge/internal/store"
	"clipforge/internal/transcode"
)

// auditLogName is a JSON copy of the daemon log kept regardless of the
// console format.
const auditLogName = "clipforged.jsonl"

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Ready is called with the bound API address once the daemon is serving.
	Ready func(addr string)
}

// Run starts the clipforge daemon and blocks until ctx is cancelled or the
// process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if cfg.Paths.LogDir != "" {
		auditPath := filepath.Join(cfg.Paths.LogDir, auditLogName)
		handler, closer, err := logging.NewJSONFileHandler(auditPath, levelFor(cfg, opts))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to open %s: %v\n", auditPath, err)
		} else {
			defer closer.Close()
			logger = logging.TeeLogger(logger, handler)
		}
	}
	logging.PruneOldLogs(logger, cfg.Paths.LogDir, "*.log", cfg.Logging.RetentionDays,
		filepath.Join(cfg.Paths.LogDir, logging.DaemonLogName))
	logPreflight(signalCtx, logger, cfg)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}

	d, orch, err := build(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the lock file and api_bind address"),
		)
		return err
	}
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		logging.WarnWithContext(logger, "unable to write pid file", "pid_file_failed",
			logging.Error(err),
			logging.String("path", pidPath),
			logging.String(logging.FieldImpact, "clipforge status cannot report the daemon pid"),
		)
	}
	defer os.Remove(pidPath)
	if opts.Ready != nil {
		opts.Ready(d.Address())
	}

	<-signalCtx.Done()
	logger.Info("clipforge daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"),
		logging.Int("active_jobs", len(orch.Active())),
	)
	shutdown(logger, cfg, d, orch)
	return nil
}

// build wires every component the daemon serves on top of an open store.
func build(cfg *config.Config, st *store.Store, logger *slog.Logger) (*daemon.Daemon, *jobs.Orchestrator, error) {
	hub := events.NewHub(logger)

	var (
		m       *metrics.Metrics
		handler http.Handler
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg, hub.Count)
		handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	pattern := &transcode.PatternSwitch{}
	transcoder, err := transcode.New(cfg, pattern, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init transcoder: %w", err)
	}
	notifier := notifications.NewService(cfg)

	orch, err := jobs.New(jobs.Options{
		Store:       st,
		Transcoder:  transcoder,
		Events:      hub,
		Notifier:    notifier,
		Metrics:     m,
		OutputDir:   cfg.Paths.OutputDir,
		MaxFiles:    cfg.Jobs.MaxFilesPerJob,
		RegistryTTL: cfg.BundleDelay(),
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init orchestrator: %w", err)
	}

	engine, err := cleanup.New(cleanup.Options{
		Store:    st,
		Config:   cfg,
		Events:   hub,
		Notifier: notifier,
		Metrics:  m,
		Logger:   logger,
		AfterPrune: func(cutoff time.Time) {
			orch.Evict(cutoff)
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init cleanup engine: %w", err)
	}

	in, err := ingest.NewService(cfg, st, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init ingest: %w", err)
	}

	d, err := daemon.New(daemon.Options{
		Config:       cfg,
		Store:        st,
		Orchestrator: orch,
		Cleanup:      engine,
		Hub:          hub,
		Ingest:       in,
		Pattern:      pattern,
		Metrics:      handler,
		Logger:       logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, orch, nil
}

// shutdown stops accepting work, gives running jobs the configured grace
// period, then cancels whatever is left.
func shutdown(logger *slog.Logger, cfg *config.Config, d *daemon.Daemon, orch *jobs.Orchestrator) {
	d.Stop()

	graceCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
	defer cancel()
	if err := orch.Wait(graceCtx); err != nil {
		logging.WarnWithContext(logger, "jobs still running after shutdown grace", "shutdown_grace_exceeded",
			logging.Duration("grace", cfg.ShutdownGrace()),
			logging.Int("active_jobs", len(orch.Active())),
			logging.String(logging.FieldImpact, "running jobs are cancelled and marked as errors"),
		)
	}
	orch.Cancel()

	finalCtx, finalCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer finalCancel()
	_ = orch.Wait(finalCtx)
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	clone := *cfg
	clone.Logging.Level = levelFor(cfg, opts)
	return logging.NewFromConfig(&clone)
}

func levelFor(cfg *config.Config, opts Options) string {
	switch {
	case opts.Development:
		return "debug"
	case opts.LogLevel != "":
		return opts.LogLevel
	default:
		return cfg.Logging.Level
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	report := preflight.RunAll(ctx, cfg)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("backend", cfg.Transcoder.Backend),
		logging.Bool("ok", report.OK()),
	}
	for _, dep := range report.Dependencies {
		attrs = append(attrs, logging.Bool(dep.Command+"_available", dep.Available))
	}
	for _, dir := range report.Directories {
		if !dir.Passed {
			attrs = append(attrs, logging.String(dir.Name, dir.Detail))
		}
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
