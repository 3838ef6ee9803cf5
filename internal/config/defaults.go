package config

const (
	defaultDataDir             = "~/.local/share/videotext"
	defaultLogDir              = "~/.local/share/videotext/logs"
	defaultStoragePath         = "~/.local/share/videotext/records.db"
	defaultBaseURL             = "https://www.ccai.fun/api"
	defaultUserAgent           = "videotext/dev"
	defaultRemoteTimeout       = 30
	defaultConcurrency         = 5
	defaultPollInterval        = 5
	defaultPollMaxAttempts     = 12
	defaultDurationCeiling     = 300
	defaultScheduleInterval    = 600
	defaultMetricsBind         = "127.0.0.1:9464"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultProcessingMarkerZH  = "处理中"
	defaultProcessingMarkerEN  = "processing"
	defaultProcessingMarkerQue = "queued"
)

func defaultProcessingMarkers() []string {
	return []string{defaultProcessingMarkerZH, defaultProcessingMarkerEN, defaultProcessingMarkerQue}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Remote: Remote{
			BaseURL:           defaultBaseURL,
			UserAgent:         defaultUserAgent,
			TimeoutSeconds:    defaultRemoteTimeout,
			ProcessingMarkers: defaultProcessingMarkers(),
		},
		Pipeline: Pipeline{
			Concurrency:     defaultConcurrency,
			PollInterval:    defaultPollInterval,
			PollMaxAttempts: defaultPollMaxAttempts,
			DurationCeiling: defaultDurationCeiling,
			Normalize:       true,
		},
		Storage: Storage{
			Path: defaultStoragePath,
		},
		Schedule: Schedule{
			Interval: defaultScheduleInterval,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
