package cleanup

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"clipforge/internal/logging"
	"clipforge/internal/store"
)

// Settings echoes the effective retention configuration.
type Settings struct {
	Enabled               bool `json:"enabled"`
	IntervalSeconds       int  `json:"interval_seconds"`
	UploadDelaySeconds    int  `json:"upload_delay_seconds"`
	ProcessedDelaySeconds int  `json:"processed_delay_seconds"`
	BundleDelaySeconds    int  `json:"bundle_delay_seconds"`
	RowRetentionHours     int  `json:"row_retention_hours"`
}

// RootUsage is the on-disk footprint of one storage root.
type RootUsage struct {
	Path  string  `json:"path"`
	Bytes int64   `json:"bytes"`
	MB    float64 `json:"mb"`
	Files int     `json:"files"`
}

// StorageUsage reports bytes held under each managed root.
type StorageUsage struct {
	Uploads   RootUsage `json:"uploads"`
	Outputs   RootUsage `json:"outputs"`
	Temp      RootUsage `json:"temp"`
	TotalMB   float64   `json:"total_mb"`
	FreeBytes uint64    `json:"free_bytes"`
	FreeMB    float64   `json:"free_mb"`
	// Error names the first root that could not be walked; totals are partial.
	Error     string    `json:"error,omitempty"`
}

// Stats combines audit counts, storage usage, and settings.
type Stats struct {
	Database store.Stats  `json:"database"`
	Storage  StorageUsage `json:"storage"`
	Settings Settings     `json:"settings"`
	Running  bool         `json:"running"`
}

// Stats gathers read-only observability data.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	db, err := e.store.AggregateStats(ctx)
	if err != nil {
		return Stats{}, err
	}
	usage, err := e.StorageUsage()
	if err != nil {
		e.logger.Warn("storage usage incomplete", logging.Error(err))
		usage.Error = err.Error()
	}
	c := e.cfg.Cleanup
	return Stats{
		Database: db,
		Storage:  usage,
		Settings: Settings{
			Enabled:               c.Enabled,
			IntervalSeconds:       c.IntervalSeconds,
			UploadDelaySeconds:    c.UploadDelaySeconds,
			ProcessedDelaySeconds: c.ProcessedDelaySeconds,
			BundleDelaySeconds:    c.BundleDelaySeconds,
			RowRetentionHours:     c.RowRetentionHours,
		},
		Running: e.Running(),
	}, nil
}

// StorageUsage walks the upload, output, and temp roots in parallel.
// Unreadable entries below a root are skipped. A root that cannot be walked
// is returned as an error alongside the usage gathered for the others.
func (e *Engine) StorageUsage() (StorageUsage, error) {
	var usage StorageUsage
	var g errgroup.Group
	g.Go(func() (err error) {
		usage.Uploads, err = rootUsage(e.cfg.Paths.UploadDir)
		return err
	})
	g.Go(func() (err error) {
		usage.Outputs, err = rootUsage(e.cfg.Paths.OutputDir)
		return err
	})
	g.Go(func() (err error) {
		usage.Temp, err = rootUsage(e.cfg.Paths.TempDir)
		return err
	})
	walkErr := g.Wait()
	usage.TotalMB = toMB(usage.Uploads.Bytes + usage.Outputs.Bytes + usage.Temp.Bytes)

	var st unix.Statfs_t
	if err := unix.Statfs(e.cfg.Paths.OutputDir, &st); err == nil {
		usage.FreeBytes = st.Bavail * uint64(st.Bsize)
		usage.FreeMB = math.Round(float64(usage.FreeBytes)/(1024*1024)*100) / 100
	} else {
		e.logger.Debug("statfs failed", logging.String("path", e.cfg.Paths.OutputDir), logging.Error(err))
	}
	return usage, walkErr
}

func rootUsage(root string) (RootUsage, error) {
	u := RootUsage{Path: root}
	if root == "" {
		return u, nil
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		u.Bytes += info.Size()
		u.Files++
		return nil
	})
	u.MB = toMB(u.Bytes)
	if err != nil {
		return u, fmt.Errorf("walk %s: %w", root, err)
	}
	return u, nil
}

func toMB(b int64) float64 {
	return math.Round(float64(b)/(1024*1024)*100) / 100
}
