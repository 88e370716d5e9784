package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clipforge/internal/events"
	"clipforge/internal/logging"
	"clipforge/internal/metrics"
	"clipforge/internal/notifications"
	"clipforge/internal/services"
	"clipforge/internal/settings"
	"clipforge/internal/store"
	"clipforge/internal/transcode"
)

// Broadcaster receives job events. Implementations must not block.
type Broadcaster interface {
	Broadcast(events.Event)
}

// Options wires the orchestrator's collaborators.
type Options struct {
	Store       *store.Store
	Transcoder  transcode.Transcoder
	Events      Broadcaster
	Notifier    notifications.Service
	Metrics     *metrics.Metrics
	OutputDir   string
	MaxFiles    int
	// RegistryTTL bounds how long finished jobs stay in memory. Zero keeps
	// them until Evict is called.
	RegistryTTL time.Duration
	Logger      *slog.Logger
}

const (
	// Highest aggregate progress published before the Completed transition.
	maxRunningProgress = 99.9
	notifyTimeout      = 15 * time.Second
)

// Orchestrator accepts jobs and drives them to a terminal state.
type Orchestrator struct {
	store      *store.Store
	transcoder transcode.Transcoder
	events     Broadcaster
	notifier   notifications.Service
	metrics    *metrics.Metrics
	outputDir  string
	maxFiles   int
	ttl        time.Duration
	logger     *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.RWMutex
	tasks    map[string]*task
	running  sync.WaitGroup
	bundleMu sync.Mutex
}

// New constructs an orchestrator. Store and Transcoder are required.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "jobs", "init", "store required", nil)
	}
	if opts.Transcoder == nil {
		return nil, services.Wrap(services.ErrConfiguration, "jobs", "init", "transcoder required", nil)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Notifier == nil {
		opts.Notifier = notifications.NewService(nil)
	}
	if opts.Events == nil {
		opts.Events = discard{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:      opts.Store,
		transcoder: opts.Transcoder,
		events:     opts.Events,
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
		outputDir:  opts.OutputDir,
		maxFiles:   opts.MaxFiles,
		ttl:        opts.RegistryTTL,
		logger:     logging.NewComponentLogger(opts.Logger, "jobs"),
		baseCtx:    ctx,
		cancel:     cancel,
		tasks:      make(map[string]*task),
	}, nil
}

type discard struct{}

func (discard) Broadcast(events.Event) {}

// Submit validates the request, records the job, and starts processing in the
// background. It returns as soon as the job is registered.
func (o *Orchestrator) Submit(ctx context.Context, fileIDs []string, opts settings.ProcessingSettings) (string, error) {
	ids := normalizeIDs(fileIDs)
	if len(ids) == 0 {
		return "", services.Wrap(services.ErrValidation, "jobs", "submit", "at least one file id is required", nil)
	}
	if o.maxFiles > 0 && len(ids) > o.maxFiles {
		return "", services.Wrap(services.ErrValidation, "jobs", "submit", fmt.Sprintf("at most %d files per job", o.maxFiles), nil)
	}
	if err := opts.Validate(); err != nil {
		return "", err
	}
	if err := o.baseCtx.Err(); err != nil {
		return "", services.Wrap(services.ErrTransient, "jobs", "submit", "orchestrator is shutting down", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	logger := logging.WithContext(services.WithJobID(ctx, id), o.logger)

	settingsJSON, err := opts.Encode()
	if err != nil {
		return "", err
	}
	record := &store.Job{
		ID:           id,
		Status:       store.JobProcessing,
		FileCount:    len(ids),
		SettingsJSON: settingsJSON,
		StartedAt:    now,
	}
	if err := o.store.AddJob(ctx, record); err != nil {
		logging.WarnWithContext(logger, "failed to persist job", "job_persist_failed",
			logging.String(logging.FieldErrorHint, "check database health"),
			logging.String(logging.FieldImpact, "job runs but is not recoverable after restart"),
			logging.Error(err),
		)
	}
	if assigned, err := o.store.AssignFilesToJob(ctx, id, ids); err != nil {
		logging.WarnWithContext(logger, "failed to assign files to job", "job_assign_failed",
			logging.String(logging.FieldErrorHint, "check database health"),
			logging.String(logging.FieldImpact, "file rows keep their previous status"),
			logging.Error(err),
		)
	} else if int(assigned) != len(ids) {
		logger.Debug("some files were not in the uploaded state", logging.Int("requested", len(ids)), logging.Int64("assigned", assigned))
	}

	t := &task{
		id:        id,
		status:    store.JobProcessing,
		fileIDs:   ids,
		settings:  opts,
		results:   []Result{},
		startedAt: now,
		done:      make(chan struct{}),
	}
	o.mu.Lock()
	if o.ttl > 0 {
		if n := o.evictLocked(now.Add(-o.ttl)); n > 0 {
			logger.Debug("evicted finished jobs from registry", logging.Int("evicted", n))
		}
	}
	o.tasks[id] = t
	o.mu.Unlock()
	o.running.Add(1)
	o.metrics.JobSubmitted()

	logger.Info("job accepted", logging.Int("files", len(ids)))
	go o.run(t)
	return id, nil
}

func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (o *Orchestrator) run(t *task) {
	defer o.running.Done()
	defer close(t.done)

	ctx := services.WithJobID(o.baseCtx, t.id)
	logger := logging.WithContext(ctx, o.logger)
	total := len(t.fileIDs)
	results := make([]Result, 0, total)

	for i, fileID := range t.fileIDs {
		fctx := services.WithFileID(ctx, fileID)
		flog := logger.With(logging.String(logging.FieldFileID, fileID))

		path, ok := o.resolveSource(fctx, t.id, fileID, flog)
		if !ok {
			o.metrics.FileTransformed("skipped")
			continue
		}

		index := i
		output, err := o.transform(fctx, path, t.settings, func(p float64) {
			o.reportProgress(ctx, t, index, total, p)
		})
		if err != nil {
			o.metrics.FileTransformed("error")
			o.fail(ctx, t, fileID, err)
			return
		}
		o.metrics.FileTransformed("completed")

		result := Result{FileID: fileID, OutputPath: output, Status: string(store.FileCompleted)}
		results = append(results, result)
		o.mu.Lock()
		t.results = append(t.results, result)
		o.mu.Unlock()

		if updated, err := o.store.UpdateFileStatus(context.WithoutCancel(fctx), fileID, store.FileCompleted, output, time.Now()); err != nil {
			flog.Warn("failed to record processed file", logging.Error(err))
		} else if !updated {
			flog.Debug("file row not in processing state; status left unchanged")
		}
		flog.Info("file processed", logging.String("output", output))
		o.reportProgress(ctx, t, i, total, 100)
	}

	o.complete(ctx, t, results)
}

// resolveSource maps a file id to an existing path. Missing inputs and files
// held by another job are logged and skipped; their outputs could not be
// traced back to this job for cleanup.
func (o *Orchestrator) resolveSource(ctx context.Context, jobID, fileID string, logger *slog.Logger) (string, bool) {
	f, err := o.store.GetFile(ctx, fileID)
	if err != nil {
		logging.WarnWithContext(logger, "file lookup failed; skipping", "file_lookup_failed",
			logging.String(logging.FieldErrorHint, "check database health"),
			logging.String(logging.FieldImpact, "file excluded from job results"),
			logging.Error(err),
		)
		return "", false
	}
	if f == nil || strings.TrimSpace(f.StoredPath) == "" {
		logging.WarnWithContext(logger, "file not found; skipping", "file_missing",
			logging.String(logging.FieldErrorHint, "upload the file again"),
			logging.String(logging.FieldImpact, "file excluded from job results"),
		)
		return "", false
	}
	if f.JobID != jobID || f.Status != store.FileProcessing {
		logging.WarnWithContext(logger, "file not assigned to this job; skipping", "file_not_assigned",
			logging.String(logging.FieldErrorHint, "submit only files in the uploaded state"),
			logging.String(logging.FieldImpact, "file excluded from job results"),
			logging.String("file_status", string(f.Status)),
			logging.String("owner_job_id", f.JobID),
		)
		return "", false
	}
	if _, err := os.Stat(f.StoredPath); err != nil {
		logging.WarnWithContext(logger, "file source missing on disk; skipping", "file_source_missing",
			logging.String(logging.FieldErrorHint, "source may have been cleaned up; upload it again"),
			logging.String(logging.FieldImpact, "file excluded from job results"),
			logging.String("path", f.StoredPath),
		)
		return "", false
	}
	return f.StoredPath, true
}

func (o *Orchestrator) transform(ctx context.Context, path string, opts settings.ProcessingSettings, onProgress transcode.ProgressFunc) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transcoder panic: %v", r)
		}
	}()
	output, err = o.transcoder.Transform(ctx, path, opts, onProgress)
	if err == nil && strings.TrimSpace(output) == "" {
		err = errors.New("transcoder returned no output")
	}
	return output, err
}

// aggregateProgress maps file-level progress onto the whole job.
func aggregateProgress(index, total int, sub float64) float64 {
	if total <= 0 {
		return 0
	}
	sub = math.Max(0, math.Min(100, sub))
	agg := float64(index)/float64(total)*100 + sub/100*(100/float64(total))
	return math.Max(0, math.Min(100, agg))
}

func (o *Orchestrator) reportProgress(ctx context.Context, t *task, index, total int, sub float64) {
	agg := math.Min(aggregateProgress(index, total, sub), maxRunningProgress)

	o.mu.Lock()
	if t.status != store.JobProcessing || agg <= t.progress {
		o.mu.Unlock()
		return
	}
	t.progress = agg
	persist := int(agg) > t.persistedPct
	if persist {
		t.persistedPct = int(agg)
	}
	o.mu.Unlock()

	o.events.Broadcast(events.Event{
		Type:     events.TypeProgress,
		JobID:    t.id,
		Progress: events.Float(agg),
		Status:   string(store.JobProcessing),
	})
	if persist {
		if err := o.store.UpdateJobProgress(context.WithoutCancel(ctx), t.id, agg); err != nil {
			o.logger.Debug("failed to persist job progress", logging.String(logging.FieldJobID, t.id), logging.Error(err))
		}
	}
}

func (o *Orchestrator) fail(ctx context.Context, t *task, fileID string, cause error) {
	persistCtx := context.WithoutCancel(ctx)
	logger := logging.WithContext(ctx, o.logger)
	msg := strings.TrimSpace(cause.Error())
	if msg == "" {
		msg = "transform failed"
	}
	now := time.Now().UTC()

	o.mu.Lock()
	t.status = store.JobError
	t.errMsg = msg
	t.results = []Result{}
	t.completedAt = &now
	progress := t.progress
	o.mu.Unlock()

	if err := o.store.UpdateJobStatus(persistCtx, t.id, store.JobError, msg, now); err != nil {
		logger.Warn("failed to persist job failure", logging.Error(err))
	}
	if _, err := o.store.FailUnfinishedFiles(persistCtx, t.id); err != nil {
		logger.Warn("failed to mark unfinished files", logging.Error(err))
	}
	o.metrics.JobFinished(string(store.JobError))

	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.String(logging.FieldFileID, fileID),
		logging.String(logging.FieldErrorHint, "inspect the transcoder error and resubmit"),
		logging.String(logging.FieldImpact, "no outputs delivered for this job"),
		logging.Error(cause),
	)
	o.events.Broadcast(events.Event{
		Type:     events.TypeJobError,
		JobID:    t.id,
		Status:   string(store.JobError),
		Progress: events.Float(progress),
		Error:    msg,
	})
	o.notify(func(ctx context.Context) error {
		return o.notifier.NotifyJobFailed(ctx, t.id, msg)
	})
}

func (o *Orchestrator) complete(ctx context.Context, t *task, results []Result) {
	persistCtx := context.WithoutCancel(ctx)
	logger := logging.WithContext(ctx, o.logger)

	outputs := make([]string, 0, len(results))
	for _, r := range results {
		outputs = append(outputs, r.OutputPath)
	}
	bundlePath, bundleErr := o.createBundle(persistCtx, t.id, outputs)
	if bundleErr != nil {
		logging.WarnWithContext(logger, "bundle creation failed", "bundle_failed",
			logging.String(logging.FieldErrorHint, "bundle is rebuilt on download"),
			logging.String(logging.FieldImpact, "bundle not ready on completion"),
			logging.Error(bundleErr),
		)
	}

	now := time.Now().UTC()
	o.mu.Lock()
	t.status = store.JobCompleted
	t.progress = 100
	t.completedAt = &now
	t.results = append([]Result{}, results...)
	if bundleErr == nil {
		t.bundlePath = bundlePath
		created := now
		t.bundleCreatedAt = &created
	}
	started := t.startedAt
	o.mu.Unlock()

	if err := o.store.UpdateJobStatus(persistCtx, t.id, store.JobCompleted, "", now); err != nil {
		logger.Warn("failed to persist job completion", logging.Error(err))
	}
	if bundleErr == nil {
		if err := o.store.SetJobBundle(persistCtx, t.id, bundlePath, now); err != nil {
			logger.Warn("failed to persist bundle path", logging.Error(err))
		}
	}
	o.metrics.JobFinished(string(store.JobCompleted))
	logger.Info("job completed",
		logging.Int("results", len(results)),
		logging.Bool("bundle_ready", bundleErr == nil),
		logging.Duration("elapsed", now.Sub(started)),
	)

	eventResults := make([]events.FileResult, 0, len(results))
	for _, r := range results {
		eventResults = append(eventResults, events.FileResult{FileID: r.FileID, OutputPath: r.OutputPath, Status: r.Status})
	}
	o.events.Broadcast(events.Event{
		Type:     events.TypeProgress,
		JobID:    t.id,
		Progress: events.Float(100),
		Status:   string(store.JobCompleted),
	})
	o.events.Broadcast(events.Event{
		Type:        events.TypeJobCompleted,
		JobID:       t.id,
		Status:      string(store.JobCompleted),
		Progress:    events.Float(100),
		BundleReady: events.Bool(bundleErr == nil),
		Results:     eventResults,
	})
	o.notify(func(ctx context.Context) error {
		return o.notifier.NotifyJobCompleted(ctx, t.id, len(results), now.Sub(started))
	})
}

func (o *Orchestrator) notify(send func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			o.logger.Warn("notification failed", logging.Error(err))
		}
	}()
}

// Lookup returns a job from the registry, falling back to the store.
func (o *Orchestrator) Lookup(ctx context.Context, id string) (View, error) {
	if v, ok := o.Get(id); ok {
		return v, nil
	}
	job, err := o.store.GetJob(ctx, id)
	if err != nil {
		return View{}, err
	}
	if job == nil {
		return View{}, ErrJobNotFound
	}
	files, err := o.store.FilesForJob(ctx, id)
	if err != nil {
		return View{}, err
	}
	return viewFromStore(job, files), nil
}

// ListAll merges recent stored jobs with the registry, newest first.
func (o *Orchestrator) ListAll(ctx context.Context, limit int) ([]View, error) {
	stored, err := o.store.ListJobs(ctx, limit)
	if err != nil {
		return nil, err
	}
	live := o.List()
	seen := make(map[string]struct{}, len(live))
	views := make([]View, 0, len(live)+len(stored))
	for _, v := range live {
		seen[v.ID] = struct{}{}
		views = append(views, v)
	}
	for _, job := range stored {
		if _, ok := seen[job.ID]; ok {
			continue
		}
		views = append(views, viewFromStore(job, nil))
	}
	sortViews(views)
	for i, j := 0, len(views)-1; i < j; i, j = i+1, j-1 {
		views[i], views[j] = views[j], views[i]
	}
	if limit > 0 && len(views) > limit {
		views = views[:limit]
	}
	return views, nil
}

// Wait blocks until every running job finishes or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitJob blocks until the job finishes or ctx ends.
func (o *Orchestrator) WaitJob(ctx context.Context, id string) (View, error) {
	o.mu.RLock()
	t, ok := o.tasks[id]
	o.mu.RUnlock()
	if !ok {
		return o.Lookup(ctx, id)
	}
	select {
	case <-t.done:
		v, _ := o.Get(id)
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Cancel cancels the context shared by running jobs. Jobs observe it as a
// transform failure.
func (o *Orchestrator) Cancel() {
	o.cancel()
}
