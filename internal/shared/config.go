package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Formats and bitrates the downloader accepts as preferences.
var (
	AvailableFormats  = []string{"MP3", "FLAC", "OGG", "M4A", "OPUS", "WAV"}
	AvailableBitrates = []int{128, 192, 256, 320}
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Download    DownloadConfig    `toml:"download"`
	Engine      EngineConfig      `toml:"engine"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Logging     LoggingConfig     `toml:"logging"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Soulseek SoulseekConfig `toml:"soulseek"`
}

// SoulseekConfig contains the account the downloader logs in with.
type SoulseekConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// DownloadConfig contains the per-run download preferences.
type DownloadConfig struct {
	Path    string `toml:"path"`
	Format  string `toml:"format"`
	Bitrate int    `toml:"bitrate"`
}

// EngineConfig tunes the synchronization engine.
type EngineConfig struct {
	PollIntervalMs int `toml:"poll_interval_ms"`
	GraceTimeoutMs int `toml:"grace_timeout_ms"`
	Concurrency    int `toml:"concurrency"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains status server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoggingConfig controls the daily log file.
type LoggingConfig struct {
	Dir           string `toml:"dir"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// HasCredentials reports whether both a username and a password are set.
func (c *Config) HasCredentials() bool {
	return strings.TrimSpace(c.Credentials.Soulseek.Username) != "" &&
		strings.TrimSpace(c.Credentials.Soulseek.Password) != ""
}

// PollInterval returns the reconciliation cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollIntervalMs) * time.Millisecond
}

// GraceTimeout returns how long a new session waits for the previous one to wind down.
func (c *Config) GraceTimeout() time.Duration {
	return time.Duration(c.Engine.GraceTimeoutMs) * time.Millisecond
}

// Addr returns the status server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks download preferences and engine timings.
func (c *Config) Validate() error {
	if !slices.Contains(AvailableFormats, strings.ToUpper(c.Download.Format)) {
		return fmt.Errorf("%w: format %q (must be one of %s)", ErrInvalidConfig, c.Download.Format, strings.Join(AvailableFormats, ", "))
	}
	if !slices.Contains(AvailableBitrates, c.Download.Bitrate) {
		return fmt.Errorf("%w: bitrate %d (must be one of %v)", ErrInvalidConfig, c.Download.Bitrate, AvailableBitrates)
	}
	if c.Engine.PollIntervalMs <= 0 {
		return fmt.Errorf("%w: poll_interval_ms must be positive", ErrInvalidConfig)
	}
	if c.Engine.GraceTimeoutMs < 0 {
		return fmt.Errorf("%w: grace_timeout_ms must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}
	config.resolvePaths()

	return config, nil
}

// LoadOrDefault loads the config at path and falls back to [DefaultConfig] when the file is missing,
// unreadable or invalid. It never fails.
func LoadOrDefault(path string) *Config {
	config, err := LoadConfig(path)
	if err != nil {
		return DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return DefaultConfig()
	}
	return config
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.resolvePaths()
	return &config
}

// Save writes the config to path as TOML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns <user config dir>/sldlx/config.toml, or config.toml when the
// user config directory can't be determined.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "sldlx", "config.toml")
}

// DefaultDownloadPath returns ~/Music/sldl.
func DefaultDownloadPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("Music", "sldl")
	}
	return filepath.Join(home, "Music", "sldl")
}

// DefaultLogDir returns <user config dir>/sldlx/logs.
func DefaultLogDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "logs"
	}
	return filepath.Join(dir, "sldlx", "logs")
}

func (c *Config) resolvePaths() {
	if c.Download.Path == "" {
		c.Download.Path = DefaultDownloadPath()
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = DefaultLogDir()
	}
}
