package config

const (
	defaultConfigPath = "~/.config/clipforge/config.toml"
	projectConfigName = "clipforge.toml"
	defaultDataDir    = "~/.local/share/clipforge"
	dataDirEnv        = "CLIPFORGE_DATA_DIR"
	databaseName      = "clipforge.db"
	defaultAPIBind    = "127.0.0.1:7490"

	defaultCleanupInterval = 30
	defaultUploadDelay     = 5
	defaultProcessedDelay  = 60
	defaultBundleDelay     = 600

	BackendFFmpeg = "ffmpeg"
	BackendDrapto = "drapto"

	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
	defaultVideoCodec    = "libx264"
	defaultAudioCodec    = "aac"
	defaultCRF           = 23
	defaultPreset        = "medium"

	defaultShutdownGrace  = 30
	defaultMaxFilesPerJob = 50
	defaultMaxUploadMB    = 2048

	defaultSubscriberBuffer = 64
	defaultHeartbeat        = 15

	defaultNotifyTimeout = 10
	defaultLogRetention  = 14
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			APIBind: defaultAPIBind,
		},
		Cleanup: Cleanup{
			Enabled:               true,
			IntervalSeconds:       defaultCleanupInterval,
			UploadDelaySeconds:    defaultUploadDelay,
			ProcessedDelaySeconds: defaultProcessedDelay,
			BundleDelaySeconds:    defaultBundleDelay,
		},
		Transcoder: Transcoder{
			Backend:       BackendFFmpeg,
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			VideoCodec:    defaultVideoCodec,
			AudioCodec:    defaultAudioCodec,
			CRF:           defaultCRF,
			Preset:        defaultPreset,
		},
		Jobs: Jobs{
			ShutdownGraceSeconds: defaultShutdownGrace,
			MaxFilesPerJob:       defaultMaxFilesPerJob,
		},
		Uploads: Uploads{
			MaxUploadMB:  defaultMaxUploadMB,
			AllowedTypes: []string{"video/"},
		},
		Events: Events{
			SubscriberBuffer: defaultSubscriberBuffer,
			HeartbeatSeconds: defaultHeartbeat,
		},
		Notifications: Notifications{
			RequestTimeout:  defaultNotifyTimeout,
			JobCompleted:    true,
			JobFailed:       true,
			CleanupFailures: true,
		},
		Logging: Logging{
			Format:        "console",
			Level:         "info",
			RetentionDays: defaultLogRetention,
		},
		Metrics: Metrics{Enabled: true},
	}
}
