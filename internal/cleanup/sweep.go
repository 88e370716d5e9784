package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"

	"clipforge/internal/events"
	"clipforge/internal/logging"
	"clipforge/internal/store"
)

// Report summarizes one sweep or force cleanup.
type Report struct {
	Deleted     int           `json:"deleted"`
	Missing     int           `json:"missing"`
	Failed      int           `json:"failed"`
	PrunedJobs  int64         `json:"pruned_jobs"`
	PrunedFiles int64         `json:"pruned_files"`
	Duration    time.Duration `json:"duration"`
}

func (r *Report) add(o outcome) {
	switch o {
	case outcomeDeleted:
		r.Deleted++
	case outcomeMissing:
		r.Missing++
	case outcomeFailed:
		r.Failed++
	}
}

type outcome int

const (
	outcomeDeleted outcome = iota
	outcomeMissing
	outcomeFailed
)

// Sweep runs the four retention stages in order. A failing stage does not
// stop the ones after it; stage errors are combined in the returned error.
func (e *Engine) Sweep(ctx context.Context) (Report, error) {
	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()

	started := e.now()
	var report Report
	err := multierr.Combine(
		e.sweepUploads(ctx, &report),
		e.sweepOutputs(ctx, &report),
		e.sweepBundles(ctx, &report),
		e.pruneRows(ctx, &report),
	)
	report.Duration = e.now().Sub(started)
	e.metrics.ObserveSweep(report.Duration)

	if report.Deleted > 0 || report.Failed > 0 || report.PrunedJobs > 0 || report.PrunedFiles > 0 {
		e.logger.Info("cleanup sweep complete",
			logging.Int("deleted", report.Deleted),
			logging.Int("missing", report.Missing),
			logging.Int("failed", report.Failed),
			logging.Int64("pruned_jobs", report.PrunedJobs),
			logging.Int64("pruned_files", report.PrunedFiles),
			logging.Duration("elapsed", report.Duration),
		)
	} else {
		e.logger.Debug("cleanup sweep found nothing to do")
	}
	e.broadcast(events.Event{Type: events.TypeCleanupCompleted, Detail: report})
	if report.Failed > 0 {
		failed := report.Failed
		e.notify(func(ctx context.Context) error {
			return e.notifier.NotifyCleanupFailures(ctx, failed, "retention sweep")
		})
	}
	return report, err
}

func (e *Engine) sweepUploads(ctx context.Context, report *Report) error {
	cutoff := e.now().Add(-e.cfg.UploadDelay())
	files, err := e.store.FilesEligibleForCleanup(ctx, cutoff)
	if err != nil {
		return e.stageFailed(OpUploadDeleted, err)
	}
	for _, f := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o := e.deleteTarget(ctx, OpUploadDeleted, f.StoredPath, f.JobID)
		report.add(o)
		if o == outcomeFailed {
			continue
		}
		if err := e.store.MarkSourcePurged(ctx, f.ID); err != nil {
			e.logger.Warn("failed to mark source purged", logging.String(logging.FieldFileID, f.ID), logging.Error(err))
		}
	}
	return nil
}

func (e *Engine) sweepOutputs(ctx context.Context, report *Report) error {
	cutoff := e.now().Add(-e.cfg.ProcessedDelay())
	jobs, err := e.store.JobsWithExpiredOutputs(ctx, cutoff)
	if err != nil {
		return e.stageFailed(OpProcessedDeleted, err)
	}
	var stageErr error
	for _, job := range jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		outputs, err := e.store.OutputsForJob(ctx, job.ID)
		if err != nil {
			stageErr = multierr.Append(stageErr, e.stageFailed(OpProcessedDeleted, err))
			continue
		}
		failed := false
		for _, path := range outputs {
			o := e.deleteTarget(ctx, OpProcessedDeleted, path, job.ID)
			report.add(o)
			failed = failed || o == outcomeFailed
		}
		if failed {
			continue
		}
		if err := e.store.MarkOutputsPurged(ctx, job.ID); err != nil {
			e.logger.Warn("failed to mark outputs purged", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
		}
	}
	return stageErr
}

func (e *Engine) sweepBundles(ctx context.Context, report *Report) error {
	cutoff := e.now().Add(-e.cfg.BundleDelay())
	jobs, err := e.store.BundlesEligibleForCleanup(ctx, cutoff)
	if err != nil {
		return e.stageFailed(OpBundleDeleted, err)
	}
	for _, job := range jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o := e.deleteTarget(ctx, OpBundleDeleted, job.BundlePath, job.ID)
		report.add(o)
		if o == outcomeFailed {
			continue
		}
		if err := e.store.MarkBundlePurged(ctx, job.ID); err != nil {
			e.logger.Warn("failed to mark bundle purged", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
		}
	}
	return nil
}

func (e *Engine) pruneRows(ctx context.Context, report *Report) error {
	retention := e.cfg.RowRetention()
	if retention <= 0 {
		return nil
	}
	cutoff := e.now().Add(-retention)
	res, err := e.store.PruneTerminal(ctx, cutoff)
	if err != nil {
		e.audit(ctx, store.CleanupEntry{Operation: OpRowsPruned, Success: false, ErrorMessage: err.Error()})
		e.metrics.CleanupDeletion(OpRowsPruned, false)
		return e.stageFailed(OpRowsPruned, err)
	}
	report.PrunedJobs = res.Jobs
	report.PrunedFiles = res.Files
	e.audit(ctx, store.CleanupEntry{
		Operation:  OpRowsPruned,
		TargetPath: fmt.Sprintf("jobs=%d files=%d", res.Jobs, res.Files),
		Success:    true,
	})
	e.metrics.CleanupDeletion(OpRowsPruned, true)
	if e.afterPrune != nil {
		e.afterPrune(cutoff)
	}
	return nil
}

// deleteTarget removes one artifact and records the attempt. Targets already
// absent are logged and skipped without an audit row.
func (e *Engine) deleteTarget(ctx context.Context, op, path, jobID string) outcome {
	path = strings.TrimSpace(path)
	if path == "" {
		return outcomeMissing
	}
	err := os.Remove(path)
	switch {
	case err == nil:
		e.audit(ctx, store.CleanupEntry{Operation: op, TargetPath: path, JobID: jobID, Success: true})
		e.metrics.CleanupDeletion(op, true)
		e.logger.Debug("artifact deleted", logging.String("operation", op), logging.String("path", path))
		return outcomeDeleted
	case errors.Is(err, fs.ErrNotExist):
		e.logger.Warn("cleanup target not found; skipping",
			logging.String("operation", op),
			logging.String("path", path),
			logging.String(logging.FieldJobID, jobID),
		)
		return outcomeMissing
	default:
		e.audit(ctx, store.CleanupEntry{Operation: op, TargetPath: path, JobID: jobID, Success: false, ErrorMessage: err.Error()})
		e.metrics.CleanupDeletion(op, false)
		logging.WarnWithContext(e.logger, "cleanup delete failed", "cleanup_delete_failed",
			logging.String(logging.FieldErrorHint, "check file permissions under the data directory"),
			logging.String(logging.FieldImpact, "artifact remains on disk until the next sweep"),
			logging.String("operation", op),
			logging.String("path", path),
			logging.Error(err),
		)
		return outcomeFailed
	}
}

func (e *Engine) audit(ctx context.Context, entry store.CleanupEntry) {
	entry.Timestamp = e.now()
	if err := e.store.AppendCleanupLog(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Warn("failed to write cleanup audit entry",
			logging.String("operation", entry.Operation),
			logging.Error(err),
		)
	}
}

func (e *Engine) stageFailed(op string, err error) error {
	logging.WarnWithContext(e.logger, "cleanup stage failed", "cleanup_stage_failed",
		logging.String(logging.FieldStage, op),
		logging.String(logging.FieldErrorHint, "check database health"),
		logging.String(logging.FieldImpact, "stage skipped for this sweep"),
		logging.Error(err),
	)
	return fmt.Errorf("%s: %w", op, err)
}
