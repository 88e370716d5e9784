package ffprobe

import "testing"

const sample = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1921, "height": 1081, "duration": "12.5"},
    {"index": 1, "codec_type": "audio", "codec_name": "aac", "channels": 2}
  ],
  "format": {"filename": "clip.mp4", "duration": "12.480000", "size": "2048"}
}`

func TestParseHelpers(t *testing.T) {
	result, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !result.HasAudio() {
		t.Fatal("expected audio stream")
	}
	if got := result.DurationSeconds(); got != 12.48 {
		t.Fatalf("unexpected duration: %v", got)
	}
	w, h, ok := result.ScaledDimensions(0)
	if !ok || w != 1920 || h != 1080 {
		t.Fatalf("expected even source size 1920x1080, got %dx%d ok=%v", w, h, ok)
	}
	w, h, _ = result.ScaledDimensions(720)
	if h != 720 || w%2 != 0 || w < 1276 || w > 1280 {
		t.Fatalf("unexpected 720p size %dx%d", w, h)
	}
}

func TestDurationFallsBackToVideoStream(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", Duration: "4.0", Width: 640, Height: 360}},
		Format:  Format{Duration: "bad"},
	}
	if got := result.DurationSeconds(); got != 4.0 {
		t.Fatalf("expected stream duration fallback, got %v", got)
	}
	if result.HasAudio() {
		t.Fatal("expected no audio")
	}
}

func TestScaledDimensionsWithoutVideo(t *testing.T) {
	if _, _, ok := (Result{}).ScaledDimensions(720); ok {
		t.Fatal("expected no dimensions without a video stream")
	}
}
