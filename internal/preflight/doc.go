// Package preflight provides readiness checks for the directories and
// binaries ClipForge depends on.
//
// The daemon logs a snapshot of these checks once at startup, and the
// /api/status endpoint reports them on demand. Checks never fail the daemon;
// they describe what will break.
package preflight
