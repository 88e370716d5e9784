// Package ffprobe wraps ffprobe JSON output with the handful of accessors the
// transcoder needs: duration, primary video dimensions, and audio presence.
package ffprobe
