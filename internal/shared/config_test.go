package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Download.Format != "MP3" {
			t.Errorf("expected format MP3, got %s", config.Download.Format)
		}

		if config.Download.Bitrate != 320 {
			t.Errorf("expected bitrate 320, got %d", config.Download.Bitrate)
		}

		if config.PollInterval() != 500*time.Millisecond {
			t.Errorf("expected poll interval 500ms, got %v", config.PollInterval())
		}

		if config.GraceTimeout() != 2*time.Second {
			t.Errorf("expected grace timeout 2s, got %v", config.GraceTimeout())
		}

		if config.Download.Path != DefaultDownloadPath() {
			t.Errorf("expected download path %s, got %s", DefaultDownloadPath(), config.Download.Path)
		}

		if config.HasCredentials() {
			t.Error("default config should not have credentials")
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should be valid: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[credentials.soulseek]
username = "alice"
password = "hunter2"

[download]
path = "/music"
format = "FLAC"
bitrate = 256
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if !config.HasCredentials() {
			t.Error("expected credentials to be set")
		}

		if config.Download.Path != "/music" || config.Download.Format != "FLAC" || config.Download.Bitrate != 256 {
			t.Errorf("unexpected download config: %+v", config.Download)
		}

		if config.Engine.PollIntervalMs != 500 {
			t.Errorf("missing keys should keep defaults, got poll interval %d", config.Engine.PollIntervalMs)
		}
	})

	t.Run("LoadConfig invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[download\nformat ="), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("LoadOrDefault", func(t *testing.T) {
		tmpDir := t.TempDir()

		missing := LoadOrDefault(filepath.Join(tmpDir, "missing.toml"))
		if missing.Download.Format != "MP3" {
			t.Errorf("missing file should yield defaults, got format %s", missing.Download.Format)
		}

		badPath := filepath.Join(tmpDir, "bad.toml")
		if err := os.WriteFile(badPath, []byte("[download]\nbitrate = 999\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		bad := LoadOrDefault(badPath)
		if bad.Download.Bitrate != 320 {
			t.Errorf("invalid file should yield defaults, got bitrate %d", bad.Download.Bitrate)
		}
	})

	t.Run("Save round trip", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "sldlx", "config.toml")

		config := DefaultConfig()
		config.Credentials.Soulseek.Username = "bob"
		config.Credentials.Soulseek.Password = "secret"
		config.Download.Format = "OPUS"
		config.Download.Bitrate = 192

		if err := config.Save(configPath); err != nil {
			t.Fatalf("Save() error: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}
		if loaded.Credentials.Soulseek.Username != "bob" || loaded.Download.Format != "OPUS" || loaded.Download.Bitrate != 192 {
			t.Errorf("saved values not preserved: %+v", loaded)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name   string
			mutate func(*Config)
		}{
			{name: "unknown format", mutate: func(c *Config) { c.Download.Format = "AIFF" }},
			{name: "unknown bitrate", mutate: func(c *Config) { c.Download.Bitrate = 100 }},
			{name: "zero poll interval", mutate: func(c *Config) { c.Engine.PollIntervalMs = 0 }},
			{name: "negative grace timeout", mutate: func(c *Config) { c.Engine.GraceTimeoutMs = -1 }},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				c := DefaultConfig()
				tt.mutate(c)
				if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})
}
