// Package store persists uploaded files, processing jobs, and the cleanup
// audit log in SQLite.
//
// The Store manages database connections, schema initialization, busy-retry
// semantics, and the queries the orchestrator and cleanup engine rely on:
// forward-only file status transitions, monotonic job progress, retention
// eligibility lookups, and aggregate statistics. Cleanup log rows are
// append-only and never pruned.
//
// Schema changes bump schemaVersion in schema.go; users delete the database to
// adopt a new schema.
package store
