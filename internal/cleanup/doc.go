// Package cleanup reclaims disk space held by uploaded sources, processed
// outputs, and bundles once their retention windows expire.
//
// The Engine runs a periodic sweep of four sequential stages and exposes
// on-demand operations for the API: ForceCleanup for one job, ManualCycle for
// an immediate sweep, and Stats for storage and audit observability. Every
// deletion attempt is recorded in the store's cleanup log.
package cleanup
