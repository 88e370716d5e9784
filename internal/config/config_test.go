package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"clipforge/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CLIPFORGE_DATA_DIR", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	dataDir := filepath.Join(tempHome, ".local", "share", "clipforge")
	if cfg.Paths.DataDir != dataDir {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, dataDir)
	}
	if cfg.Paths.UploadDir != filepath.Join(dataDir, "uploads") {
		t.Fatalf("unexpected upload dir: %q", cfg.Paths.UploadDir)
	}
	if cfg.Paths.OutputDir != filepath.Join(dataDir, "outputs") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.DatabasePath() != filepath.Join(dataDir, "clipforge.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Paths.APIBind != "127.0.0.1:7490" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
}

func TestDefaultRetentionWindows(t *testing.T) {
	cfg := config.Default()
	checks := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"interval", cfg.CleanupInterval(), 30 * time.Second},
		{"upload", cfg.UploadDelay(), 5 * time.Second},
		{"processed", cfg.ProcessedDelay(), time.Minute},
		{"bundle", cfg.BundleDelay(), 10 * time.Minute},
		{"rows", cfg.RowRetention(), 0},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Fatalf("%s: got %s want %s", c.name, c.got, c.want)
		}
	}
	if !cfg.Cleanup.Enabled {
		t.Fatal("expected cleanup enabled by default")
	}
}

func TestDataDirEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dataDir := t.TempDir()
	t.Setenv("CLIPFORGE_DATA_DIR", dataDir)

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.DataDir != dataDir {
		t.Fatalf("expected env data dir %q, got %q", dataDir, cfg.Paths.DataDir)
	}
	if cfg.Paths.TempDir != filepath.Join(dataDir, "temp") {
		t.Fatalf("expected derived temp dir, got %q", cfg.Paths.TempDir)
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CLIPFORGE_DATA_DIR", "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"data_dir":   "~/clips",
			"output_dir": "~/rendered",
			"api_bind":   "0.0.0.0:9000",
		},
		"cleanup": map[string]any{
			"interval_seconds":    10,
			"row_retention_hours": 48,
		},
		"transcoder": map[string]any{
			"backend": " Drapto ",
		},
		"logging": map[string]any{
			"format": "JSON",
			"level":  "Warning",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected explicit config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "clips") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "rendered") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Paths.UploadDir != filepath.Join(tempHome, "clips", "uploads") {
		t.Fatalf("unexpected upload dir: %q", cfg.Paths.UploadDir)
	}
	if cfg.CleanupInterval() != 10*time.Second {
		t.Fatalf("unexpected interval: %s", cfg.CleanupInterval())
	}
	if cfg.RowRetention() != 48*time.Hour {
		t.Fatalf("unexpected row retention: %s", cfg.RowRetention())
	}
	if cfg.UploadDelay() != 5*time.Second {
		t.Fatalf("expected untouched default upload delay, got %s", cfg.UploadDelay())
	}
	if cfg.Transcoder.Backend != config.BackendDrapto {
		t.Fatalf("unexpected backend: %q", cfg.Transcoder.Backend)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "warn" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"interval", func(c *config.Config) { c.Cleanup.IntervalSeconds = 0 }, "cleanup.interval_seconds"},
		{"upload delay", func(c *config.Config) { c.Cleanup.UploadDelaySeconds = -1 }, "cleanup.upload_delay_seconds"},
		{"backend", func(c *config.Config) { c.Transcoder.Backend = "handbrake" }, "transcoder.backend"},
		{"crf", func(c *config.Config) { c.Transcoder.CRF = 60 }, "transcoder.crf"},
		{"bind", func(c *config.Config) { c.Paths.APIBind = "localhost" }, "paths.api_bind"},
		{"same dirs", func(c *config.Config) { c.Paths.OutputDir = c.Paths.UploadDir }, "paths.upload_dir"},
		{"log level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"buffer", func(c *config.Config) { c.Events.SubscriberBuffer = 0 }, "events.subscriber_buffer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.UploadDir = "/tmp/clipforge/uploads"
			cfg.Paths.OutputDir = "/tmp/clipforge/outputs"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error to mention %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[cleanup]\nintervall_seconds = 5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for misspelled key")
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CLIPFORGE_DATA_DIR", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Transcoder.Backend != config.BackendFFmpeg {
		t.Fatalf("unexpected backend from sample: %q", cfg.Transcoder.Backend)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = base
	cfg.Paths.UploadDir = filepath.Join(base, "u")
	cfg.Paths.OutputDir = filepath.Join(base, "o")
	cfg.Paths.TempDir = filepath.Join(base, "t")
	cfg.Paths.LogDir = filepath.Join(base, "l")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.UploadDir, cfg.Paths.OutputDir, cfg.Paths.TempDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
