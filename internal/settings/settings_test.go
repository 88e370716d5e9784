package settings_test

import (
	"errors"
	"testing"

	"clipforge/internal/services"
	"clipforge/internal/settings"
)

func TestDefaultIsValid(t *testing.T) {
	if err := settings.Default().Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
}

func TestPresetsAreValid(t *testing.T) {
	all := settings.Presets()
	if len(all) != 4 {
		t.Fatalf("expected 4 presets, got %d", len(all))
	}
	for _, p := range all {
		if err := p.Settings.Validate(); err != nil {
			t.Fatalf("preset %s invalid: %v", p.Name, err)
		}
	}
	tiktok, ok := settings.Lookup("tiktok")
	if !ok {
		t.Fatal("expected case-insensitive lookup to find TikTok")
	}
	if tiktok.Settings.Color.Blur != 3.2 || tiktok.Settings.Effects.Speed != 120 || !tiktok.Settings.Color.Mirrored {
		t.Fatalf("unexpected TikTok settings: %+v", tiktok.Settings)
	}
	if _, ok := settings.Lookup("myspace"); ok {
		t.Fatal("unexpected preset match")
	}
}

func TestValidateReportsFieldPaths(t *testing.T) {
	s := settings.Default()
	s.Color.Brightness = 150
	s.Effects.Speed = 20
	s.Noise.Type = "Fractal"
	s.Output.Quality = ""

	err := s.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var verr *settings.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	want := map[string]string{
		"color.brightness": "must be at most 100",
		"effects.speed":    "must be at least 50",
		"noise.type":       `has unsupported value "Fractal"`,
		"output.quality":   "is required",
	}
	for field, msg := range want {
		if verr.Fields[field] != msg {
			t.Fatalf("field %s: got %q want %q (all: %v)", field, verr.Fields[field], msg, verr.Fields)
		}
	}
}

func TestEncodeDecodeKeepsWireNames(t *testing.T) {
	s := settings.Default()
	s.Noise.Type = settings.NoiseSaltAndPepper
	s.Output.Quality = settings.QualityHD
	raw, err := s.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := settings.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded != s {
		t.Fatalf("decoded settings differ: %+v vs %+v", decoded, s)
	}
	if decoded.Output.Quality.TargetHeight() != 720 {
		t.Fatalf("unexpected target height %d", decoded.Output.Quality.TargetHeight())
	}
	empty, err := settings.Decode("")
	if err != nil || empty != settings.Default() {
		t.Fatalf("expected default for empty input, got %+v %v", empty, err)
	}
}
