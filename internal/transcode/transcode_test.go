package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	draptolib "github.com/five82/drapto"

	"clipforge/internal/logging"
	"clipforge/internal/media/ffprobe"
	"clipforge/internal/services"
	"clipforge/internal/settings"
	"clipforge/internal/testsupport"
)

func TestOutputPathUsesContextIdentifiers(t *testing.T) {
	ctx := services.WithFileID(services.WithJobID(context.Background(), "job1"), "file1")
	got := OutputPath(ctx, "/out", "/uploads/file1_holiday clip.mov", "mp4")
	want := filepath.Join("/out", "job1_file1_holiday clip_processed.mp4")
	if got != want {
		t.Fatalf("OutputPath = %q, want %q", got, want)
	}
	if got := OutputPath(context.Background(), "/out", "/in/a.mkv", ".mkv"); got != filepath.Join("/out", "a_processed.mkv") {
		t.Fatalf("unexpected path without identifiers: %q", got)
	}
}

func TestVideoFiltersOrder(t *testing.T) {
	opts := settings.Default()
	opts.Output.Quality = settings.QualityHD
	opts.Color = settings.Color{Brightness: 10, Contrast: -20, Saturation: 30, Blur: 5, Monochrome: true, Mirrored: true}
	opts.Effects.Speed = 200
	opts.Noise = settings.Noise{Type: settings.NoiseGaussian, Intensity: 12}

	probe := ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video", Width: 1920, Height: 1080}}}
	got := videoFilters(opts, probe, false)
	want := []string{
		"scale=1280:720",
		"hflip",
		"setpts=0.5*PTS",
		"eq=brightness=0.1:contrast=0.8",
		"eq=saturation=1.3",
		"gblur=sigma=0.5",
		"hue=s=0",
		"noise=alls=12:allf=t",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("filters = %v\nwant %v", got, want)
	}
}

func TestVideoFiltersNeutralSettings(t *testing.T) {
	if got := videoFilters(settings.Default(), ffprobe.Result{}, false); len(got) != 0 {
		t.Fatalf("expected no filters for defaults, got %v", got)
	}
	if got := audioFilters(settings.Default()); got != nil {
		t.Fatalf("expected no audio filters, got %v", got)
	}
}

func TestPatternFiltersAppendedWhenToggled(t *testing.T) {
	var toggle PatternSwitch
	if toggle.Enabled() {
		t.Fatal("expected toggle off by default")
	}
	toggle.Set(true)
	got := videoFilters(settings.Default(), ffprobe.Result{}, toggle.Enabled())
	if len(got) != 2 {
		t.Fatalf("expected blur and flash filters, got %v", got)
	}
	if got[0] != "gblur=sigma=30:enable='lt(t,2)'" {
		t.Fatalf("unexpected intro blur: %s", got[0])
	}
	for _, mark := range []string{"between(t,5,5.1)", "between(t,10.1,10.2)", "between(t,14.7,14.8)", "mod(t-16.8,6)"} {
		if !strings.Contains(got[1], mark) {
			t.Fatalf("flash filter %q missing %q", got[1], mark)
		}
	}

	perJob := settings.Default()
	perJob.Effects.Pattern = true
	if got := videoFilters(perJob, ffprobe.Result{}, false); len(got) != 2 {
		t.Fatalf("expected per-job pattern to add filters, got %v", got)
	}
}

func TestProgressParserMonotonic(t *testing.T) {
	p := newProgressParser(10)
	input := strings.Join([]string{
		"frame=1",
		"out_time_us=2500000",
		"out_time_ms=2500000",
		"out_time_us=1000000",
		"out_time_us=5000000",
		"out_time_us=N/A",
		"out_time_us=20000000",
		"progress=end",
	}, "\n")
	var got []float64
	if err := p.consume(strings.NewReader(input), func(v float64) { got = append(got, v) }); err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	want := []float64{25, 50, 99.9, 100}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("progress = %v, want %v", got, want)
	}
}

func TestTailBufferKeepsEnd(t *testing.T) {
	tb := &tailBuffer{max: 5}
	_, _ = tb.Write([]byte("abc"))
	_, _ = tb.Write([]byte("defgh"))
	if tb.String() != "defgh" {
		t.Fatalf("unexpected tail %q", tb.String())
	}
}

func TestFFmpegTransformSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stubFFmpeg(t, "success", 10)

	source := filepath.Join(cfg.Paths.UploadDir, "file9_clip.mp4")
	testsupport.WriteFile(t, source, 64)

	opts := settings.Default()
	opts.Steganography.Signature = "owner-42"
	opts.Effects.Speed = 200

	var captured []string
	orig := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		captured = append([]string(nil), args...)
		return orig(ctx, name, args...)
	}

	ctx := services.WithFileID(services.WithJobID(context.Background(), "job9"), "file9")
	ff := NewFFmpeg(cfg, nil, logging.NewNop())
	var updates []float64
	out, err := ff.Transform(ctx, source, opts, func(p float64) { updates = append(updates, p) })
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if out != filepath.Join(cfg.Paths.OutputDir, "job9_file9_clip_processed.mp4") {
		t.Fatalf("unexpected output path %q", out)
	}
	if !testsupport.Exists(out) || testsupport.Exists(out+".part") {
		t.Fatal("expected finalized output without partial file")
	}
	if len(updates) == 0 || updates[len(updates)-1] != 100 {
		t.Fatalf("expected final progress 100, got %v", updates)
	}
	// 10s source at 2x speed is 5s of output; 2.5s written is 50%.
	if updates[0] != 50 {
		t.Fatalf("expected first update 50, got %v", updates)
	}
	joined := strings.Join(captured, " ")
	for _, want := range []string{"comment=owner-42", "-af atempo=2", "-progress pipe:1", "-c:a aac"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
}

func TestFFmpegTransformFailureIncludesStderr(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stubFFmpeg(t, "failure", 10)

	source := filepath.Join(cfg.Paths.UploadDir, "broken.mp4")
	testsupport.WriteFile(t, source, 64)

	_, err := NewFFmpeg(cfg, nil, nil).Transform(context.Background(), source, settings.Default(), nil)
	if err == nil {
		t.Fatal("expected transform failure")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid data found") {
		t.Fatalf("expected stderr tail in error, got %v", err)
	}
	entries, _ := os.ReadDir(cfg.Paths.OutputDir)
	if len(entries) != 0 {
		t.Fatalf("expected no leftovers in output dir, got %d", len(entries))
	}
}

func TestFFmpegTransformProbeFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	origInspect := inspectMedia
	inspectMedia = func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{}, errors.New("moov atom not found")
	}
	t.Cleanup(func() { inspectMedia = origInspect })

	_, err := NewFFmpeg(cfg, nil, nil).Transform(context.Background(), "/missing.mp4", settings.Default(), nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestDraptoReporterMonotonic(t *testing.T) {
	var got []float64
	r := newDraptoReporter(func(p float64) { got = append(got, p) }, logging.NewNop())
	r.StageProgress(draptolib.StageProgress{Stage: "analysis", Percent: 100})
	r.EncodingStarted(1000)
	r.EncodingProgress(draptolib.ProgressSnapshot{Percent: 50})
	r.EncodingProgress(draptolib.ProgressSnapshot{Percent: 40})
	r.EncodingProgress(draptolib.ProgressSnapshot{Percent: 100})
	r.Warning("slow disk")

	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("progress regressed: %v", got)
		}
	}
	if got[len(got)-1] >= 100 {
		t.Fatalf("reporter must leave 100 for completion, got %v", got)
	}
}

func TestIgnoredSettings(t *testing.T) {
	if got := ignoredSettings(settings.Default()); len(got) != 0 {
		t.Fatalf("expected nothing ignored for defaults, got %v", got)
	}
	preset, _ := settings.Lookup("TikTok")
	if got := ignoredSettings(preset.Settings); strings.Join(got, ",") != "noise,color,effects" {
		t.Fatalf("unexpected ignored list %v", got)
	}
}

func stubFFmpeg(t *testing.T, mode string, durationSeconds float64) {
	t.Helper()
	origCmd := commandContext
	origInspect := inspectMedia
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		helperArgs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], helperArgs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FFMPEG_HELPER_MODE="+mode)
		return cmd
	}
	inspectMedia = func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "video", Width: 640, Height: 360}, {CodecType: "audio"}},
			Format:  ffprobe.Format{Duration: fmt.Sprint(durationSeconds)},
		}, nil
	}
	t.Cleanup(func() {
		commandContext = origCmd
		inspectMedia = origInspect
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}
	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "success":
		target := args[len(args)-1]
		if err := os.WriteFile(target, []byte("encoded"), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("out_time_us=2500000")
		fmt.Println("progress=continue")
		fmt.Println("out_time_us=5000000")
		fmt.Println("progress=end")
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "broken.mp4: invalid data found when processing input")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}
