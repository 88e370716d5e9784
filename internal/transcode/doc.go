// Package transcode runs the per-file transformation for a job.
//
// Two backends implement Transcoder: FFmpeg shells out to the ffmpeg CLI with
// a filter chain derived from the job settings and parses its -progress
// stream; Drapto drives the drapto encoder library in-process. Both name their
// output <output_dir>/<job>_<file>_<stem>_processed.<ext> using the job and
// file identifiers carried on the context.
package transcode
