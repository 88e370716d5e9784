package cleanup

import (
	"context"

	"clipforge/internal/logging"
	"clipforge/internal/services"
)

// ForceCleanup deletes every processed output and the bundle of one job
// regardless of age. Running it again after success finds nothing to delete
// and returns nil.
func (e *Engine) ForceCleanup(ctx context.Context, jobID string) (Report, error) {
	var report Report
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return report, services.Wrap(services.ErrTransient, "cleanup", "force", "load job", err)
	}
	if job == nil {
		return report, services.Wrap(services.ErrNotFound, "cleanup", "force", "job "+jobID+" not found", nil)
	}
	outputs, err := e.store.OutputsForJob(ctx, jobID)
	if err != nil {
		return report, services.Wrap(services.ErrTransient, "cleanup", "force", "load outputs", err)
	}

	outputsFailed := false
	for _, path := range outputs {
		o := e.deleteTarget(ctx, OpForceVideo, path, jobID)
		report.add(o)
		outputsFailed = outputsFailed || o == outcomeFailed
	}
	if !outputsFailed && len(outputs) > 0 {
		if err := e.store.MarkOutputsPurged(ctx, jobID); err != nil {
			e.logger.Warn("failed to mark outputs purged", logging.String(logging.FieldJobID, jobID), logging.Error(err))
		}
	}
	if job.BundlePath != "" {
		o := e.deleteTarget(ctx, OpForceBundle, job.BundlePath, jobID)
		report.add(o)
		if o != outcomeFailed {
			if err := e.store.MarkBundlePurged(ctx, jobID); err != nil {
				e.logger.Warn("failed to mark bundle purged", logging.String(logging.FieldJobID, jobID), logging.Error(err))
			}
		}
	}

	e.logger.Info("force cleanup complete",
		logging.String(logging.FieldJobID, jobID),
		logging.Int("deleted", report.Deleted),
		logging.Int("failed", report.Failed),
	)
	if report.Failed > 0 {
		failed := report.Failed
		e.notify(func(ctx context.Context) error {
			return e.notifier.NotifyCleanupFailures(ctx, failed, "force cleanup for job "+jobID)
		})
	}
	return report, nil
}
