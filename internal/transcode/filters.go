package transcode

import (
	"fmt"
	"strconv"
	"strings"

	"clipforge/internal/media/ffprobe"
	"clipforge/internal/settings"
)

const (
	introBlurSeconds  = 2.0
	introBlurSigma    = 30
	flashDuration     = 0.1
	flashRepeatStart  = 16.8
	flashRepeatPeriod = 6.0
)

var fixedFlashes = []float64{5.0, 10.1, 14.7}

// videoFilters returns the ordered -vf chain for opts. probe may be empty, in
// which case scaling falls back to a height-only expression.
func videoFilters(opts settings.ProcessingSettings, probe ffprobe.Result, pattern bool) []string {
	var filters []string

	if target := opts.Output.Quality.TargetHeight(); target > 0 {
		if w, h, ok := probe.ScaledDimensions(target); ok {
			filters = append(filters, fmt.Sprintf("scale=%d:%d", w, h))
		} else {
			filters = append(filters, fmt.Sprintf("scale=-2:'min(%d,ih)'", target))
		}
	}
	if opts.Color.Mirrored {
		filters = append(filters, "hflip")
	}
	if opts.Effects.Speed != 100 && opts.Effects.Speed > 0 {
		filters = append(filters, fmt.Sprintf("setpts=%s*PTS", formatFloat(1/opts.SpeedFactor())))
	}
	if opts.Color.Brightness != 0 || opts.Color.Contrast != 0 {
		filters = append(filters, fmt.Sprintf("eq=brightness=%s:contrast=%s",
			formatFloat(float64(opts.Color.Brightness)/100),
			formatFloat(1+float64(opts.Color.Contrast)/100)))
	}
	if opts.Color.Saturation != 0 {
		filters = append(filters, fmt.Sprintf("eq=saturation=%s", formatFloat(1+float64(opts.Color.Saturation)/100)))
	}
	if opts.Color.Blur > 0 {
		filters = append(filters, fmt.Sprintf("gblur=sigma=%s", formatFloat(opts.Color.Blur/10)))
	}
	if opts.Color.Monochrome {
		filters = append(filters, "hue=s=0")
	}
	if f := noiseFilter(opts.Noise); f != "" {
		filters = append(filters, f)
	}
	if pattern || opts.Effects.Pattern {
		filters = append(filters, patternFilters()...)
	}
	return filters
}

func noiseFilter(n settings.Noise) string {
	if n.Intensity <= 0 {
		return ""
	}
	var flags string
	switch n.Type {
	case settings.NoiseGaussian:
		flags = "t"
	case settings.NoiseSaltAndPepper:
		flags = "u"
	default:
		flags = "t+p"
	}
	return fmt.Sprintf("noise=alls=%d:allf=%s", n.Intensity, flags)
}

// patternFilters blurs the opening seconds and drops short black flashes at
// fixed marks and then periodically.
func patternFilters() []string {
	terms := make([]string, 0, len(fixedFlashes)+1)
	for _, at := range fixedFlashes {
		terms = append(terms, fmt.Sprintf("between(t,%s,%s)", formatFloat(at), formatFloat(at+flashDuration)))
	}
	terms = append(terms, fmt.Sprintf("gte(t,%s)*lt(mod(t-%s,%s),%s)",
		formatFloat(flashRepeatStart), formatFloat(flashRepeatStart),
		formatFloat(flashRepeatPeriod), formatFloat(flashDuration)))
	return []string{
		fmt.Sprintf("gblur=sigma=%d:enable='lt(t,%s)'", introBlurSigma, formatFloat(introBlurSeconds)),
		fmt.Sprintf("drawbox=color=black:t=fill:enable='%s'", strings.Join(terms, "+")),
	}
}

// audioFilters keeps audio in sync with the video speed change.
func audioFilters(opts settings.ProcessingSettings) []string {
	if opts.Effects.Speed == 100 || opts.Effects.Speed <= 0 {
		return nil
	}
	// atempo accepts 0.5..2.0 per instance, which covers the allowed speed range.
	return []string{fmt.Sprintf("atempo=%s", formatFloat(opts.SpeedFactor()))}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
