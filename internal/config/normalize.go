package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRemote()
	c.normalizePipeline()
	c.normalizeMetrics()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = defaultStoragePath
	}
	if c.Storage.Path, err = expandPath(c.Storage.Path); err != nil {
		return fmt.Errorf("storage.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeRemote() {
	c.Remote.BaseURL = strings.TrimSpace(c.Remote.BaseURL)
	if c.Remote.BaseURL == "" {
		if value, ok := os.LookupEnv("VIDEOTEXT_BASE_URL"); ok && strings.TrimSpace(value) != "" {
			c.Remote.BaseURL = strings.TrimSpace(value)
		} else {
			c.Remote.BaseURL = defaultBaseURL
		}
	}
	c.Remote.BaseURL = strings.TrimRight(c.Remote.BaseURL, "/")

	// Credentials are passed through verbatim; only surrounding whitespace in
	// env values is dropped.
	if c.Remote.Username == "" {
		if value, ok := os.LookupEnv("VIDEOTEXT_USERNAME"); ok {
			c.Remote.Username = strings.TrimSpace(value)
		}
	}
	if c.Remote.Password == "" {
		if value, ok := os.LookupEnv("VIDEOTEXT_PASSWORD"); ok {
			c.Remote.Password = strings.TrimSpace(value)
		}
	}

	c.Remote.UserAgent = strings.TrimSpace(c.Remote.UserAgent)
	if c.Remote.UserAgent == "" {
		c.Remote.UserAgent = defaultUserAgent
	}
	if c.Remote.TimeoutSeconds <= 0 {
		c.Remote.TimeoutSeconds = defaultRemoteTimeout
	}

	markers := make([]string, 0, len(c.Remote.ProcessingMarkers))
	seen := make(map[string]struct{}, len(c.Remote.ProcessingMarkers))
	for _, marker := range c.Remote.ProcessingMarkers {
		normalized := strings.TrimSpace(marker)
		if normalized == "" {
			continue
		}
		key := strings.ToLower(normalized)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		markers = append(markers, normalized)
	}
	if len(markers) == 0 {
		markers = defaultProcessingMarkers()
	}
	c.Remote.ProcessingMarkers = markers
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.Concurrency == 0 {
		c.Pipeline.Concurrency = defaultConcurrency
	}
	if c.Pipeline.PollInterval == 0 {
		c.Pipeline.PollInterval = defaultPollInterval
	}
	if c.Pipeline.PollMaxAttempts == 0 {
		c.Pipeline.PollMaxAttempts = defaultPollMaxAttempts
	}
	if c.Pipeline.DurationCeiling == 0 {
		c.Pipeline.DurationCeiling = defaultDurationCeiling
	}
	if c.Schedule.Interval == 0 {
		c.Schedule.Interval = defaultScheduleInterval
	}
}

func (c *Config) normalizeMetrics() {
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	if c.Metrics.Bind == "" {
		c.Metrics.Bind = defaultMetricsBind
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
