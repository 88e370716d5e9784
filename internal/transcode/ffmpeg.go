package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/media/ffprobe"
	"clipforge/internal/services"
	"clipforge/internal/settings"
)

var (
	commandContext = exec.CommandContext
	inspectMedia   = ffprobe.Inspect
)

const stderrTailBytes = 4096

// FFmpeg transcodes through the ffmpeg command-line tool.
type FFmpeg struct {
	ffmpegBinary  string
	ffprobeBinary string
	outputDir     string
	videoCodec    string
	audioCodec    string
	crf           int
	preset        string
	pattern       *PatternSwitch
	logger        *slog.Logger
}

// NewFFmpeg constructs the ffmpeg backend from configuration.
func NewFFmpeg(cfg *config.Config, pattern *PatternSwitch, logger *slog.Logger) *FFmpeg {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FFmpeg{
		ffmpegBinary:  cfg.Transcoder.FFmpegBinary,
		ffprobeBinary: cfg.Transcoder.FFprobeBinary,
		outputDir:     cfg.Paths.OutputDir,
		videoCodec:    cfg.Transcoder.VideoCodec,
		audioCodec:    cfg.Transcoder.AudioCodec,
		crf:           cfg.Transcoder.CRF,
		preset:        cfg.Transcoder.Preset,
		pattern:       pattern,
		logger:        logger,
	}
}

// Transform probes sourcePath, runs ffmpeg with the derived filter chain, and
// moves the finished file into the output directory.
func (f *FFmpeg) Transform(ctx context.Context, sourcePath string, opts settings.ProcessingSettings, onProgress ProgressFunc) (string, error) {
	if strings.TrimSpace(sourcePath) == "" {
		return "", services.Wrap(services.ErrValidation, "transcode", "ffmpeg", "source path required", nil)
	}
	logger := logging.WithContext(ctx, f.logger)

	probe, err := inspectMedia(ctx, f.ffprobeBinary, sourcePath)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "transcode", "ffprobe", "inspect source", err)
	}

	output := OutputPath(ctx, f.outputDir, sourcePath, "mp4")
	partial := output + ".part"
	args := f.buildArgs(sourcePath, partial, opts, probe)
	logger.Info("launching ffmpeg",
		logging.String("input", sourcePath),
		logging.String("output", output),
		logging.String("command", f.ffmpegBinary+" "+strings.Join(args, " ")),
	)

	cmd := commandContext(ctx, f.ffmpegBinary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &tailBuffer{max: stderrTailBytes}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "transcode", "ffmpeg", "start", err)
	}

	expected := probe.DurationSeconds()
	if factor := opts.SpeedFactor(); factor > 0 {
		expected /= factor
	}
	parser := newProgressParser(expected)
	readErr := parser.consume(stdout, onProgress)

	if err := cmd.Wait(); err != nil {
		_ = os.Remove(partial)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", services.Wrap(services.ErrExternalTool, "transcode", "ffmpeg", "cancelled", ctxErr)
		}
		msg := "exit"
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg = "exit status " + strconv.Itoa(exitErr.ExitCode())
		}
		if tail := stderr.String(); tail != "" {
			msg += ": " + lastLines(tail, 5)
		}
		return "", services.Wrap(services.ErrExternalTool, "transcode", "ffmpeg", msg, err)
	}
	if readErr != nil {
		logger.Warn("ffmpeg progress stream read failed", logging.Error(readErr))
	}
	if err := os.Rename(partial, output); err != nil {
		_ = os.Remove(partial)
		return "", fmt.Errorf("finalize output: %w", err)
	}
	if onProgress != nil {
		onProgress(100)
	}
	return output, nil
}

func (f *FFmpeg) buildArgs(source, target string, opts settings.ProcessingSettings, probe ffprobe.Result) []string {
	args := []string{"-hide_banner", "-nostdin", "-nostats", "-y", "-i", source}
	if vf := videoFilters(opts, probe, f.pattern.Enabled()); len(vf) > 0 {
		args = append(args, "-vf", strings.Join(vf, ","))
	}
	args = append(args, "-c:v", f.videoCodec, "-crf", strconv.Itoa(f.crf), "-preset", f.preset)
	if probe.HasAudio() {
		if af := audioFilters(opts); len(af) > 0 {
			args = append(args, "-af", strings.Join(af, ","))
		}
		args = append(args, "-c:a", f.audioCodec)
	} else {
		args = append(args, "-an")
	}
	if sig := strings.TrimSpace(opts.Steganography.Signature); sig != "" {
		args = append(args, "-metadata", "comment="+sig)
	}
	args = append(args, "-movflags", "+faststart", "-progress", "pipe:1", "-f", "mp4", target)
	return args
}

func lastLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
