package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	draptolib "github.com/five82/drapto"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/services"
	"clipforge/internal/settings"
)

// Drapto transcodes with the drapto encoder library. Only output quality is
// honoured implicitly through drapto's own resolution-based profiles; picture
// settings are logged as ignored.
type Drapto struct {
	outputDir string
	tempDir   string
	logger    *slog.Logger
}

// NewDrapto constructs the library-backed encoder.
func NewDrapto(cfg *config.Config, logger *slog.Logger) *Drapto {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Drapto{outputDir: cfg.Paths.OutputDir, tempDir: cfg.Paths.TempDir, logger: logger}
}

func (d *Drapto) Transform(ctx context.Context, sourcePath string, opts settings.ProcessingSettings, onProgress ProgressFunc) (string, error) {
	if strings.TrimSpace(sourcePath) == "" {
		return "", services.Wrap(services.ErrValidation, "transcode", "drapto", "source path required", nil)
	}
	logger := logging.WithContext(ctx, d.logger)
	if ignored := ignoredSettings(opts); len(ignored) > 0 {
		logger.Info("drapto backend ignores picture settings", logging.String("ignored", strings.Join(ignored, ",")))
	}

	output := OutputPath(ctx, d.outputDir, sourcePath, "mkv")
	workDir, err := os.MkdirTemp(d.tempDir, "drapto-")
	if err != nil {
		return "", fmt.Errorf("create drapto work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "transcode", "drapto", "init encoder", err)
	}
	logger.Info("launching drapto encode", logging.String("input", sourcePath), logging.String("output", output))

	reporter := newDraptoReporter(onProgress, logger)
	if _, err := encoder.EncodeWithReporter(ctx, sourcePath, workDir, reporter); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "transcode", "drapto", "encode", err)
	}

	base := filepath.Base(sourcePath)
	produced := filepath.Join(workDir, strings.TrimSuffix(base, filepath.Ext(base))+".mkv")
	if err := os.Rename(produced, output); err != nil {
		return "", fmt.Errorf("finalize drapto output: %w", err)
	}
	if onProgress != nil {
		onProgress(100)
	}
	return output, nil
}

func ignoredSettings(opts settings.ProcessingSettings) []string {
	var ignored []string
	if opts.Noise.Intensity > 0 {
		ignored = append(ignored, "noise")
	}
	c := opts.Color
	if c.Brightness != 0 || c.Contrast != 0 || c.Saturation != 0 || c.Blur > 0 || c.Monochrome || c.Mirrored {
		ignored = append(ignored, "color")
	}
	if opts.Effects.Speed != 100 || opts.Effects.Pattern {
		ignored = append(ignored, "effects")
	}
	if strings.TrimSpace(opts.Steganography.Signature) != "" {
		ignored = append(ignored, "steganography")
	}
	return ignored
}

// Sub-progress share reserved for drapto's analysis stages before encoding.
const draptoPrepShare = 5.0

// draptoReporter adapts drapto's Reporter callbacks to a single monotonic
// sub-progress value.
type draptoReporter struct {
	progress ProgressFunc
	logger   *slog.Logger
	last     float64
}

func newDraptoReporter(progress ProgressFunc, logger *slog.Logger) *draptoReporter {
	return &draptoReporter{progress: progress, logger: logger}
}

func (r *draptoReporter) emit(p float64) {
	p = clampPercent(p)
	if p <= r.last || r.progress == nil {
		return
	}
	r.last = p
	r.progress(p)
}

func (r *draptoReporter) Hardware(s draptolib.HardwareSummary) {
	r.logger.Debug("drapto hardware", logging.String("hostname", s.Hostname))
}

func (r *draptoReporter) Initialization(s draptolib.InitializationSummary) {
	r.logger.Debug("drapto initialized",
		logging.String("resolution", s.Resolution),
		logging.String("dynamic_range", s.DynamicRange),
	)
}

func (r *draptoReporter) StageProgress(s draptolib.StageProgress) {
	r.emit(float64(s.Percent) / 100 * draptoPrepShare)
}

func (r *draptoReporter) CropResult(s draptolib.CropSummary) {
	r.logger.Debug("drapto crop", logging.String("crop", s.Crop), logging.Bool("required", s.Required))
}

func (r *draptoReporter) EncodingConfig(s draptolib.EncodingConfigSummary) {
	r.logger.Debug("drapto encoding config", logging.String("encoder", s.Encoder), logging.String("preset", s.Preset))
}

func (r *draptoReporter) EncodingStarted(uint64) {
	r.emit(draptoPrepShare)
}

func (r *draptoReporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	r.emit(draptoPrepShare + float64(s.Percent)/100*(99.9-draptoPrepShare))
}

func (r *draptoReporter) ValidationComplete(s draptolib.ValidationSummary) {
	if !s.Passed {
		r.logger.Warn("drapto validation reported failures",
			logging.String(logging.FieldEventType, "drapto_validation_failed"),
			logging.String(logging.FieldErrorHint, "inspect the encoded output"),
			logging.String(logging.FieldImpact, "output may not match the source"),
		)
	}
}

func (r *draptoReporter) EncodingComplete(draptolib.EncodingOutcome) {}

func (r *draptoReporter) Warning(message string) {
	r.logger.Warn("drapto warning",
		logging.String("detail", message),
		logging.String(logging.FieldEventType, "drapto_warning"),
		logging.String(logging.FieldErrorHint, "review drapto output"),
		logging.String(logging.FieldImpact, "encode continues"),
	)
}

func (r *draptoReporter) Error(e draptolib.ReporterError) {
	r.logger.Error("drapto error", logging.String("title", e.Title), logging.String("detail", e.Message))
}

func (r *draptoReporter) OperationComplete(string) {}

func (r *draptoReporter) BatchStarted(draptolib.BatchStartInfo) {}

func (r *draptoReporter) FileProgress(draptolib.FileProgressContext) {}

func (r *draptoReporter) BatchComplete(draptolib.BatchSummary) {}

var (
	_ draptolib.Reporter = (*draptoReporter)(nil)
	_ Transcoder         = (*Drapto)(nil)
	_ Transcoder         = (*FFmpeg)(nil)
)
