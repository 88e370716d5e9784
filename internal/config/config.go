package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains storage roots and the API bind address.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	UploadDir string `toml:"upload_dir"`
	OutputDir string `toml:"output_dir"`
	TempDir   string `toml:"temp_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
}

// Cleanup contains the retention windows used by the cleanup engine.
type Cleanup struct {
	Enabled               bool `toml:"enabled"`
	IntervalSeconds       int  `toml:"interval_seconds"`
	UploadDelaySeconds    int  `toml:"upload_delay_seconds"`
	ProcessedDelaySeconds int  `toml:"processed_delay_seconds"`
	BundleDelaySeconds    int  `toml:"bundle_delay_seconds"`
	// RowRetentionHours enables pruning of terminal job/file rows. 0 disables it.
	RowRetentionHours int `toml:"row_retention_hours"`
}

// Transcoder selects and tunes the media transformation backend.
type Transcoder struct {
	Backend       string `toml:"backend"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	VideoCodec    string `toml:"video_codec"`
	AudioCodec    string `toml:"audio_codec"`
	CRF           int    `toml:"crf"`
	Preset        string `toml:"preset"`
}

// Jobs contains orchestrator limits.
type Jobs struct {
	ShutdownGraceSeconds int `toml:"shutdown_grace_seconds"`
	MaxFilesPerJob       int `toml:"max_files_per_job"`
}

// Uploads contains ingest limits.
type Uploads struct {
	MaxUploadMB  int64    `toml:"max_upload_mb"`
	AllowedTypes []string `toml:"allowed_types"`
}

// Events contains realtime notifier tuning.
type Events struct {
	SubscriberBuffer int `toml:"subscriber_buffer"`
	HeartbeatSeconds int `toml:"heartbeat_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic       string `toml:"ntfy_topic"`
	RequestTimeout  int    `toml:"request_timeout"`
	JobCompleted    bool   `toml:"job_completed"`
	JobFailed       bool   `toml:"job_failed"`
	CleanupFailures bool   `toml:"cleanup_failures"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Metrics toggles the Prometheus endpoint.
type Metrics struct {
	Enabled bool `toml:"enabled"`
}

// Config encapsulates all configuration values for ClipForge.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Cleanup       Cleanup       `toml:"cleanup"`
	Transcoder    Transcoder    `toml:"transcoder"`
	Jobs          Jobs          `toml:"jobs"`
	Uploads       Uploads       `toml:"uploads"`
	Events        Events        `toml:"events"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Metrics       Metrics       `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.UploadDir, c.Paths.OutputDir, c.Paths.TempDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, databaseName)
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "clipforged.lock")
}

// PIDPath returns the daemon pid file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "clipforged.pid")
}

func (c *Config) CleanupInterval() time.Duration {
	return seconds(c.Cleanup.IntervalSeconds)
}

func (c *Config) UploadDelay() time.Duration {
	return seconds(c.Cleanup.UploadDelaySeconds)
}

func (c *Config) ProcessedDelay() time.Duration {
	return seconds(c.Cleanup.ProcessedDelaySeconds)
}

func (c *Config) BundleDelay() time.Duration {
	return seconds(c.Cleanup.BundleDelaySeconds)
}

// RowRetention returns zero when stale-row pruning is disabled.
func (c *Config) RowRetention() time.Duration {
	return time.Duration(c.Cleanup.RowRetentionHours) * time.Hour
}

func (c *Config) ShutdownGrace() time.Duration {
	return seconds(c.Jobs.ShutdownGraceSeconds)
}

func (c *Config) Heartbeat() time.Duration {
	return seconds(c.Events.HeartbeatSeconds)
}

// MaxUploadBytes returns the per-file upload ceiling.
func (c *Config) MaxUploadBytes() int64 {
	return c.Uploads.MaxUploadMB * 1024 * 1024
}

func seconds(v int) time.Duration {
	return time.Duration(v) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
