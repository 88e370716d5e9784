// Package settings defines the per-job processing settings, their validation
// rules, and the built-in platform presets.
package settings

import (
	"encoding/json"
	"fmt"
)

// NoiseType selects the grain generator applied to each frame.
type NoiseType string

const (
	NoisePerlin        NoiseType = "Perlin"
	NoiseGaussian      NoiseType = "Gaussian"
	NoiseSaltAndPepper NoiseType = "Salt & Pepper"
)

// InsertionMethod selects how the signature is embedded.
type InsertionMethod string

const (
	MethodLSB                 InsertionMethod = "LSB - Least Significant Bit"
	MethodFrequencyModulation InsertionMethod = "Subtle Frequency Modulation"
)

// OutputQuality selects the target resolution.
type OutputQuality string

const (
	QualityPreserve OutputQuality = "Preservar Original"
	QualityHD       OutputQuality = "HD (720p)"
	QualityFullHD   OutputQuality = "Full HD (1080p)"
)

// TargetHeight returns the maximum output height for q, or 0 to keep the source size.
func (q OutputQuality) TargetHeight() int {
	switch q {
	case QualityHD:
		return 720
	case QualityFullHD:
		return 1080
	default:
		return 0
	}
}

type Noise struct {
	Type      NoiseType `json:"type" validate:"required,noise_type"`
	Intensity int       `json:"intensity" validate:"min=0,max=100"`
}

type Color struct {
	Brightness int     `json:"brightness" validate:"min=-100,max=100"`
	Contrast   int     `json:"contrast" validate:"min=-100,max=100"`
	Saturation int     `json:"saturation" validate:"min=-100,max=100"`
	Blur       float64 `json:"blur" validate:"min=0,max=100"`
	Monochrome bool    `json:"monochrome"`
	Mirrored   bool    `json:"mirrored"`
}

type Effects struct {
	// Speed is a percentage of the original playback rate (100 = 1.0x).
	Speed int `json:"speed" validate:"min=50,max=200"`
	// Pattern enables the intro pattern overlay for this job.
	Pattern bool `json:"pattern,omitempty"`
}

type Steganography struct {
	Signature string          `json:"signature" validate:"max=256"`
	Method    InsertionMethod `json:"method" validate:"required,insertion_method"`
	Intensity int             `json:"intensity" validate:"min=0,max=100"`
}

type Output struct {
	Quality OutputQuality `json:"quality" validate:"required,output_quality"`
}

// ProcessingSettings is the complete set of transformations applied to every
// file in a job.
type ProcessingSettings struct {
	Noise         Noise         `json:"noise"`
	Color         Color         `json:"color"`
	Effects       Effects       `json:"effects"`
	Steganography Steganography `json:"steganography"`
	Output        Output        `json:"output"`
}

// Default returns neutral settings that leave the picture untouched.
func Default() ProcessingSettings {
	return ProcessingSettings{
		Noise:         Noise{Type: NoisePerlin},
		Effects:       Effects{Speed: 100},
		Steganography: Steganography{Method: MethodLSB, Intensity: 50},
		Output:        Output{Quality: QualityPreserve},
	}
}

// SpeedFactor returns the playback rate multiplier.
func (s ProcessingSettings) SpeedFactor() float64 {
	if s.Effects.Speed <= 0 {
		return 1
	}
	return float64(s.Effects.Speed) / 100
}

// Encode serializes settings for persistence alongside the job row.
func (s ProcessingSettings) Encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}
	return string(data), nil
}

// Decode parses persisted settings. Empty input yields Default.
func Decode(raw string) (ProcessingSettings, error) {
	s := Default()
	if raw == "" {
		return s, nil
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return ProcessingSettings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}
