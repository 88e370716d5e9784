// Package jobs owns the lifecycle of processing jobs.
//
// Submit persists a job, assigns its files, and starts one goroutine that
// transforms the files strictly in order. A file whose stored source cannot be
// found is skipped; any transform error aborts the whole job. Aggregate
// progress never decreases and only reaches 100 when the job completes, at
// which point the outputs are bundled into a zip archive.
//
// The in-memory registry is authoritative while a job runs; store writes are
// best-effort and logged on failure. Jobs evicted from the registry (or from a
// previous process) are served from the store.
package jobs
