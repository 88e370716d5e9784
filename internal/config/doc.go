// Package config loads, normalizes, and validates ClipForge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the CLIPFORGE_DATA_DIR environment
// fallback. The Config type centralizes every knob the daemon and CLI need:
// storage roots, cleanup retention windows, transcoder selection, and the API
// bind address.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
