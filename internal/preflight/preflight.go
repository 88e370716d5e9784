package preflight

import (
	"context"

	"clipforge/internal/config"
	"clipforge/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Report bundles directory checks with binary availability.
type Report struct {
	Directories  []Result      `json:"directories"`
	Dependencies []deps.Status `json:"dependencies"`
}

// OK reports whether every directory is usable and no required binary is missing.
func (r Report) OK() bool {
	for _, d := range r.Directories {
		if !d.Passed {
			return false
		}
	}
	return len(deps.MissingRequired(r.Dependencies)) == 0
}

// RunAll executes every preflight check for cfg.
func RunAll(ctx context.Context, cfg *config.Config) Report {
	if cfg == nil {
		return Report{}
	}
	_ = ctx
	return Report{
		Directories: []Result{
			CheckDirectoryAccess("Upload directory", cfg.Paths.UploadDir),
			CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
			CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir),
		},
		Dependencies: CheckSystemDeps(cfg),
	}
}

// CheckSystemDeps evaluates the binaries required by the configured transcoder.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	if cfg == nil {
		return nil
	}
	return deps.CheckBinaries(deps.TranscoderRequirements(
		cfg.Transcoder.Backend,
		cfg.Transcoder.FFmpegBinary,
		cfg.Transcoder.FFprobeBinary,
	))
}
