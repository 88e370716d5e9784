// Package api defines wire-format types and converters for the HTTP API
// layer. It translates store rows, job views, and cleanup reports into
// transport-friendly DTOs that the CLI and browser clients can render without
// coupling to internal types.
//
// # Key Types
//
// FileItem: an uploaded source with its lifecycle status.
//
// JobItem: a job snapshot with progress, results, and bundle readiness.
//
// DaemonStatus: runtime state, active jobs, subscriber count, and preflight
// results.
//
// # Design Notes
//
// DTOs use snake_case JSON tags to match the settings payload that clients
// already send. Timestamps use RFC3339 with milliseconds in UTC. Request
// types carry validator tags and are checked by DecodeJSON.
package api
