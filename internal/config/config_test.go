package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"videotext/internal/config"
)

func TestLoadDefaultConfigUsesEnvCredentialsAndExpandsPaths(t *testing.T) {
	t.Setenv("VIDEOTEXT_USERNAME", " alice ")
	t.Setenv("VIDEOTEXT_PASSWORD", "secret")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
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

	wantData := filepath.Join(tempHome, ".local", "share", "videotext")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Storage.Path != filepath.Join(wantData, "records.db") {
		t.Fatalf("unexpected storage path: %q", cfg.Storage.Path)
	}
	if cfg.Remote.Username != "alice" || cfg.Remote.Password != "secret" {
		t.Fatalf("expected credentials from env, got %q/%q", cfg.Remote.Username, cfg.Remote.Password)
	}
	if err := cfg.RequireCredentials(); err != nil {
		t.Fatalf("RequireCredentials returned error: %v", err)
	}
	if cfg.Pipeline.Concurrency != 5 {
		t.Fatalf("unexpected concurrency: %d", cfg.Pipeline.Concurrency)
	}
	if cfg.PollInterval() != 5*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval())
	}
	if cfg.Pipeline.PollMaxAttempts != 12 {
		t.Fatalf("unexpected poll attempts: %d", cfg.Pipeline.PollMaxAttempts)
	}
	if cfg.Pipeline.DurationCeiling != 300 {
		t.Fatalf("unexpected duration ceiling: %v", cfg.Pipeline.DurationCeiling)
	}
	if !cfg.Pipeline.Normalize {
		t.Fatal("expected normalization enabled by default")
	}
	if len(cfg.Remote.ProcessingMarkers) == 0 {
		t.Fatal("expected default processing markers")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "videotext.toml")

	type payload struct {
		Remote struct {
			BaseURL           string   `toml:"base_url"`
			Username          string   `toml:"username"`
			Password          string   `toml:"password"`
			ProcessingMarkers []string `toml:"processing_markers"`
		} `toml:"remote"`
		Pipeline struct {
			Concurrency     int  `toml:"concurrency"`
			PollMaxAttempts int  `toml:"poll_max_attempts"`
			Normalize       bool `toml:"normalize"`
		} `toml:"pipeline"`
	}
	custom := payload{}
	custom.Remote.BaseURL = "https://example.com/api/"
	custom.Remote.Username = "bob"
	custom.Remote.Password = "pw"
	custom.Remote.ProcessingMarkers = []string{" Busy ", "busy", ""}
	custom.Pipeline.Concurrency = 3
	custom.Pipeline.PollMaxAttempts = 4
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Remote.BaseURL != "https://example.com/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Remote.BaseURL)
	}
	if cfg.Remote.Username != "bob" {
		t.Fatalf("expected username from file, got %q", cfg.Remote.Username)
	}
	if got := cfg.Remote.ProcessingMarkers; len(got) != 1 || got[0] != "Busy" {
		t.Fatalf("expected markers deduplicated, got %v", got)
	}
	if cfg.Pipeline.Concurrency != 3 || cfg.Pipeline.PollMaxAttempts != 4 {
		t.Fatalf("unexpected pipeline overrides: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.Normalize {
		t.Fatal("expected explicit normalize=false to be preserved")
	}
}

func TestFileCredentialsWinOverEnv(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "videotext.toml")
	content := "[remote]\nusername = \"file-user\"\npassword = \"file-pass\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("VIDEOTEXT_USERNAME", "env-user")
	t.Setenv("VIDEOTEXT_PASSWORD", "env-pass")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Remote.Username != "file-user" || cfg.Remote.Password != "file-pass" {
		t.Fatalf("expected file credentials, got %q/%q", cfg.Remote.Username, cfg.Remote.Password)
	}
}

func TestRequireCredentialsReportsMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := config.Default()
	err := cfg.RequireCredentials()
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	if !errors.Is(err, config.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if !strings.Contains(err.Error(), "VIDEOTEXT_USERNAME") {
		t.Fatalf("expected env hint in error, got %q", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"negative concurrency", func(c *config.Config) { c.Pipeline.Concurrency = -1 }, "pipeline.concurrency"},
		{"negative attempts", func(c *config.Config) { c.Pipeline.PollMaxAttempts = -2 }, "pipeline.poll_max_attempts"},
		{"bad scheme", func(c *config.Config) { c.Remote.BaseURL = "ftp://example.com" }, "remote.base_url"},
		{"bad ceiling", func(c *config.Config) { c.Pipeline.DurationCeiling = -5 }, "pipeline.duration_ceiling"},
		{"bad level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %q", tt.want, err)
			}
		})
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Pipeline.PollMaxAttempts != 12 {
		t.Fatalf("unexpected sample poll attempts: %d", cfg.Pipeline.PollMaxAttempts)
	}
}
