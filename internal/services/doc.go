// Package services defines shared helpers consumed by the job orchestrator,
// the cleanup engine, and the HTTP surface.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, file IDs, stage names, and request
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures carry stage
//     context and can be classified with errors.Is.
//   - HTTPStatus, which maps those markers onto response codes.
//
// Use these helpers when wiring new processing logic so error handling and
// observability stay uniform across the daemon.
package services
