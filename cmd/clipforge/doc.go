// Package main hosts the ClipForge CLI entrypoint and command graph.
//
// The Cobra command tree either runs the daemon in the foreground or talks to
// a running daemon over its HTTP API: uploading videos, submitting and
// inspecting jobs, downloading bundles, and driving the cleanup engine.
// Configuration resolution and API address discovery live in commandContext so
// subcommands only deal with presentation.
package main
