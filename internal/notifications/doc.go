// Package notifications pushes operator alerts to an ntfy topic.
//
// Job completions, job failures, and cleanup sweeps that recorded failed
// deletions each have their own toggle. Without a topic the service is a noop.
package notifications
