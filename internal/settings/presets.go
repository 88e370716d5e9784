package settings

import (
	"sort"
	"strings"
)

// Preset is a named starting point tuned for a publishing platform.
type Preset struct {
	Name     string             `json:"name"`
	Settings ProcessingSettings `json:"settings"`
}

var presets = map[string]func(*ProcessingSettings){
	"YouTube": func(s *ProcessingSettings) {
		s.Color = Color{Brightness: 5, Contrast: 5, Saturation: 10}
	},
	"Facebook": func(s *ProcessingSettings) {
		s.Noise.Intensity = 2
		s.Color = Color{Contrast: 8, Saturation: 15, Blur: 1}
	},
	"Instagram": func(s *ProcessingSettings) {
		s.Noise.Intensity = 8
		s.Color = Color{Brightness: 14, Contrast: -9, Saturation: 22, Blur: 5, Mirrored: true}
		s.Effects.Speed = 90
	},
	"TikTok": func(s *ProcessingSettings) {
		s.Noise.Intensity = 13
		s.Color = Color{Brightness: 3, Contrast: 13, Saturation: -17, Blur: 3.2, Mirrored: true}
		s.Effects.Speed = 120
	},
}

// Presets returns every built-in preset sorted by name.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for name := range presets {
		p, _ := Lookup(name)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds a preset by case-insensitive name.
func Lookup(name string) (Preset, bool) {
	for key, apply := range presets {
		if strings.EqualFold(key, strings.TrimSpace(name)) {
			s := Default()
			apply(&s)
			return Preset{Name: key, Settings: s}, true
		}
	}
	return Preset{}, false
}
