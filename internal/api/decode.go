package api

import (
	"encoding/json"
	"fmt"
	"io"

	"clipforge/internal/services"
	"clipforge/internal/settings"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// DecodeJSON reads one JSON document from r into dest, rejecting unknown
// fields, then runs struct validation. Nested settings are validated too.
func DecodeJSON(r io.Reader, dest any) error {
	decoder := json.NewDecoder(io.LimitReader(r, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return services.Wrap(services.ErrValidation, "api", "decode", fmt.Sprintf("invalid request body: %v", err), nil)
	}
	return settings.Struct(dest)
}

// ResolveSettings picks the effective processing settings for a submit
// request: a named preset wins, then explicit settings, then defaults.
func (r SubmitJobRequest) ResolveSettings() (settings.ProcessingSettings, error) {
	if r.Preset != "" {
		preset, ok := settings.Lookup(r.Preset)
		if !ok {
			return settings.ProcessingSettings{}, services.Wrap(services.ErrValidation, "api", "submit", fmt.Sprintf("unknown preset %q", r.Preset), nil)
		}
		return preset.Settings, nil
	}
	if r.Settings != nil {
		return *r.Settings, nil
	}
	return settings.Default(), nil
}
