package deps

import "strings"

// TranscoderRequirements lists the binaries a transcoder backend needs. The
// drapto backend encodes in-process and only uses ffprobe for inspection, so
// ffmpeg is optional there.
func TranscoderRequirements(backend, ffmpegBinary, ffprobeBinary string) []Requirement {
	draptoBackend := strings.EqualFold(strings.TrimSpace(backend), "drapto")
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     defaultCommand(ffmpegBinary, "ffmpeg"),
			Description: "Required for transcoding",
			Optional:    draptoBackend,
		},
		{
			Name:        "FFprobe",
			Command:     defaultCommand(ffprobeBinary, "ffprobe"),
			Description: "Required for media inspection",
			Optional:    draptoBackend,
		},
	}
}

func defaultCommand(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
