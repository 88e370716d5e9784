package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/services"
	"clipforge/internal/settings"
)

// ProgressFunc receives sub-progress for the current file in [0,100].
type ProgressFunc func(percent float64)

// Transcoder transforms one source file according to settings and returns
// the output path.
type Transcoder interface {
	Transform(ctx context.Context, sourcePath string, opts settings.ProcessingSettings, onProgress ProgressFunc) (string, error)
}

// PatternSwitch is the process-wide intro pattern toggle.
type PatternSwitch struct {
	enabled atomic.Bool
}

// Enabled reports the current toggle state. A nil switch is always off.
func (p *PatternSwitch) Enabled() bool {
	return p != nil && p.enabled.Load()
}

// Set flips the toggle.
func (p *PatternSwitch) Set(on bool) {
	if p != nil {
		p.enabled.Store(on)
	}
}

// New builds the backend selected by cfg.Transcoder.Backend.
func New(cfg *config.Config, pattern *PatternSwitch, logger *slog.Logger) (Transcoder, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "transcode", "init", "config required", nil)
	}
	logger = logging.NewComponentLogger(logger, "transcoder")
	switch cfg.Transcoder.Backend {
	case config.BackendFFmpeg, "":
		return NewFFmpeg(cfg, pattern, logger), nil
	case config.BackendDrapto:
		return NewDrapto(cfg, logger), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "transcode", "init", fmt.Sprintf("unknown backend %q", cfg.Transcoder.Backend), nil)
	}
}

// OutputPath returns the processed-output location for sourcePath.
func OutputPath(ctx context.Context, outputDir, sourcePath, ext string) string {
	jobID, _ := services.JobIDFromContext(ctx)
	fileID, _ := services.FileIDFromContext(ctx)
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	// Stored uploads are prefixed with their file id; avoid repeating it.
	if fileID != "" {
		stem = strings.TrimPrefix(stem, fileID+"_")
	}
	if stem == "" {
		stem = "video"
	}
	parts := make([]string, 0, 4)
	for _, p := range []string{jobID, fileID, stem} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, "processed")
	return filepath.Join(outputDir, strings.Join(parts, "_")+"."+strings.TrimPrefix(ext, "."))
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
