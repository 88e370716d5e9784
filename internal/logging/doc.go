// Package logging assembles structured slog loggers and formatting helpers used
// across the ClipForge daemon and CLI.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so processing code can tag log
// lines with job IDs, file IDs, stages, and correlation IDs. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
