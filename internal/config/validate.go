package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCleanup(); err != nil {
		return err
	}
	if err := c.validateTranscoder(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.UploadDir == c.Paths.OutputDir {
		return errors.New("paths.upload_dir and paths.output_dir must differ")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateCleanup() error {
	if c.Cleanup.IntervalSeconds <= 0 {
		return errors.New("cleanup.interval_seconds must be positive")
	}
	if c.Cleanup.UploadDelaySeconds < 0 {
		return errors.New("cleanup.upload_delay_seconds must be >= 0")
	}
	if c.Cleanup.ProcessedDelaySeconds < 0 {
		return errors.New("cleanup.processed_delay_seconds must be >= 0")
	}
	if c.Cleanup.BundleDelaySeconds < 0 {
		return errors.New("cleanup.bundle_delay_seconds must be >= 0")
	}
	if c.Cleanup.RowRetentionHours < 0 {
		return errors.New("cleanup.row_retention_hours must be >= 0")
	}
	return nil
}

func (c *Config) validateTranscoder() error {
	switch c.Transcoder.Backend {
	case BackendFFmpeg, BackendDrapto:
	default:
		return fmt.Errorf("transcoder.backend must be %q or %q, got %q", BackendFFmpeg, BackendDrapto, c.Transcoder.Backend)
	}
	if c.Transcoder.CRF < 0 || c.Transcoder.CRF > 51 {
		return errors.New("transcoder.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Jobs.ShutdownGraceSeconds < 0 {
		return errors.New("jobs.shutdown_grace_seconds must be >= 0")
	}
	if c.Jobs.MaxFilesPerJob <= 0 {
		return errors.New("jobs.max_files_per_job must be positive")
	}
	if c.Uploads.MaxUploadMB <= 0 {
		return errors.New("uploads.max_upload_mb must be positive")
	}
	if c.Events.SubscriberBuffer <= 0 {
		return errors.New("events.subscriber_buffer must be positive")
	}
	if c.Events.HeartbeatSeconds <= 0 {
		return errors.New("events.heartbeat_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format must be console, json, or auto, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}
