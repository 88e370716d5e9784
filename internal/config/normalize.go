package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTranscoder()
	c.normalizeUploads()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" || c.Paths.DataDir == defaultDataDir {
		if value, ok := os.LookupEnv(dataDirEnv); ok && strings.TrimSpace(value) != "" {
			c.Paths.DataDir = strings.TrimSpace(value)
		} else {
			c.Paths.DataDir = defaultDataDir
		}
	}
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}

	derived := []struct {
		key   string
		value *string
		name  string
	}{
		{"paths.upload_dir", &c.Paths.UploadDir, "uploads"},
		{"paths.output_dir", &c.Paths.OutputDir, "outputs"},
		{"paths.temp_dir", &c.Paths.TempDir, "temp"},
		{"paths.log_dir", &c.Paths.LogDir, "logs"},
	}
	for _, d := range derived {
		if strings.TrimSpace(*d.value) == "" {
			*d.value = filepath.Join(c.Paths.DataDir, d.name)
		}
		if *d.value, err = expandPath(strings.TrimSpace(*d.value)); err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeTranscoder() {
	c.Transcoder.Backend = strings.ToLower(strings.TrimSpace(c.Transcoder.Backend))
	if c.Transcoder.Backend == "" {
		c.Transcoder.Backend = BackendFFmpeg
	}
	c.Transcoder.FFmpegBinary = valueOr(c.Transcoder.FFmpegBinary, defaultFFmpegBinary)
	c.Transcoder.FFprobeBinary = valueOr(c.Transcoder.FFprobeBinary, defaultFFprobeBinary)
	c.Transcoder.VideoCodec = valueOr(c.Transcoder.VideoCodec, defaultVideoCodec)
	c.Transcoder.AudioCodec = valueOr(c.Transcoder.AudioCodec, defaultAudioCodec)
	c.Transcoder.Preset = strings.ToLower(valueOr(c.Transcoder.Preset, defaultPreset))
}

func (c *Config) normalizeUploads() {
	types := make([]string, 0, len(c.Uploads.AllowedTypes))
	for _, t := range c.Uploads.AllowedTypes {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		types = []string{"video/"}
	}
	c.Uploads.AllowedTypes = types
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Level == "warning" {
		c.Logging.Level = "warn"
	}
}

func valueOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
