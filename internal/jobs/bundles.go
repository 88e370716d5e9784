package jobs

import (
	"context"
	"fmt"
	"os"
	"time"

	"clipforge/internal/bundle"
	"clipforge/internal/logging"
	"clipforge/internal/services"
	"clipforge/internal/store"
)

func (o *Orchestrator) createBundle(ctx context.Context, jobID string, outputs []string) (string, error) {
	res, err := bundle.Create(ctx, o.outputDir, jobID, outputs)
	if err != nil {
		return "", err
	}
	if len(res.Skipped) > 0 {
		o.logger.Debug("bundle skipped missing outputs",
			logging.String(logging.FieldJobID, jobID),
			logging.Int("skipped", len(res.Skipped)),
		)
	}
	return res.Path, nil
}

// GetOrCreateBundle returns the job's archive, rebuilding it when the recorded
// bundle is gone.
func (o *Orchestrator) GetOrCreateBundle(ctx context.Context, id string) (string, error) {
	o.bundleMu.Lock()
	defer o.bundleMu.Unlock()

	var (
		status     store.JobStatus
		bundlePath string
		outputs    []string
	)
	if v, ok := o.Get(id); ok {
		status = v.Status
		bundlePath = v.BundlePath
		for _, r := range v.Results {
			outputs = append(outputs, r.OutputPath)
		}
	} else {
		job, err := o.store.GetJob(ctx, id)
		if err != nil {
			return "", err
		}
		if job == nil {
			return "", ErrJobNotFound
		}
		status = job.Status
		if !job.BundlePurged {
			bundlePath = job.BundlePath
		}
		if status == store.JobCompleted {
			if outputs, err = o.store.OutputsForJob(ctx, id); err != nil {
				return "", err
			}
		}
	}

	if status != store.JobCompleted {
		return "", ErrJobNotCompleted
	}
	if bundlePath != "" {
		if info, err := os.Stat(bundlePath); err == nil && !info.IsDir() {
			return bundlePath, nil
		}
	}

	path, err := o.createBundle(ctx, id, outputs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBundleUnavailable, services.Wrap(services.ErrExternalTool, "jobs", "bundle", "create archive", err))
	}
	now := time.Now().UTC()
	if err := o.store.SetJobBundle(ctx, id, path, now); err != nil {
		o.logger.Warn("failed to persist rebuilt bundle", logging.String(logging.FieldJobID, id), logging.Error(err))
	}
	o.mu.Lock()
	if t, ok := o.tasks[id]; ok {
		t.bundlePath = path
		t.bundleCreatedAt = &now
	}
	o.mu.Unlock()
	o.logger.Info("bundle rebuilt", logging.String(logging.FieldJobID, id), logging.String("path", path))
	return path, nil
}
