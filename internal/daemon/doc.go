// Package daemon coordinates the long-running ClipForge process.
//
// It wires configuration, the metadata store, the job orchestrator, the
// cleanup engine, and the realtime event hub into a single lifecycle with
// flock-based locking to prevent multiple instances. The HTTP API served here
// is a thin chi router over those components.
//
// Keep orchestration logic here: processing and retention belong to their
// own packages while the daemon focuses on startup, shutdown, and routing.
package daemon
