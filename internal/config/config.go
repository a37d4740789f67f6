package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete cyto configuration
type Config struct {
	Mirror  MirrorConfig  `mapstructure:"mirror"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Logging LoggingConfig `mapstructure:"logging"`
	TUI     TUIConfig     `mapstructure:"tui"`
}

// MirrorConfig controls the mirror store the outline is published to
type MirrorConfig struct {
	// Store selects the mirror store backend
	// Options: "memory", "redis"
	Store string `mapstructure:"store"`
	// RedisAddr is the host:port of the Redis server
	RedisAddr string `mapstructure:"redis_addr"`
	// RedisPassword is the Redis AUTH password (empty for none)
	RedisPassword string `mapstructure:"redis_password"`
	// RedisDB is the Redis database number
	RedisDB int `mapstructure:"redis_db"`
	// MarkerTTLSeconds is the expiry of cancellation-intent markers.
	// Markers unread past this window are dropped by the store.
	MarkerTTLSeconds int `mapstructure:"marker_ttl_seconds"`
}

// SyncConfig controls the outline synchronizer cadence
type SyncConfig struct {
	// PublishIntervalMs is the minimum interval between two outline
	// publishes. Bursty state changes inside the window are coalesced
	// into the next publish.
	PublishIntervalMs int `mapstructure:"publish_interval_ms"`
	// PollIntervalMs is how often the synchronizer polls the store for
	// remote cancellation markers
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// MaxPublishAttempts bounds retries of a publish that hits an
	// unavailable store. Exhausting attempts drops that publish.
	MaxPublishAttempts int `mapstructure:"max_publish_attempts"`
	// RetryBackoffMs is the base backoff between publish retries,
	// doubled on each attempt
	RetryBackoffMs int `mapstructure:"retry_backoff_ms"`
}

// LoggingConfig controls structured logging behavior
type LoggingConfig struct {
	// Enabled turns logging on or off
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum level to log
	// Options: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// Format selects the log output format
	// Options: "json", "text"
	Format string `mapstructure:"format"`
	// File is the log file path (empty logs to stderr)
	File string `mapstructure:"file"`
	// MaxSizeMB rotates the log file when it exceeds this size (0 disables rotation)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated log files to keep
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated log files
	Compress bool `mapstructure:"compress"`
}

// TUIConfig controls the outline watcher UI
type TUIConfig struct {
	// RefreshIntervalMs is how often the watcher re-reads the outline from the store
	RefreshIntervalMs int `mapstructure:"refresh_interval_ms"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Mirror: MirrorConfig{
			Store:            "memory",
			RedisAddr:        "localhost:6379",
			RedisPassword:    "",
			RedisDB:          0,
			MarkerTTLSeconds: 30,
		},
		Sync: SyncConfig{
			PublishIntervalMs:  100,
			PollIntervalMs:     250,
			MaxPublishAttempts: 5,
			RetryBackoffMs:     50,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			Format:     "json",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
		TUI: TUIConfig{
			RefreshIntervalMs: 500,
		},
	}
}

// MarkerTTL returns the cancellation marker expiry as a time.Duration
func (c *MirrorConfig) MarkerTTL() time.Duration {
	return time.Duration(c.MarkerTTLSeconds) * time.Second
}

// PublishInterval returns the minimum inter-publish interval as a time.Duration
func (c *SyncConfig) PublishInterval() time.Duration {
	return time.Duration(c.PublishIntervalMs) * time.Millisecond
}

// PollInterval returns the cancel marker poll interval as a time.Duration
func (c *SyncConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// RetryBackoff returns the base publish retry backoff as a time.Duration
func (c *SyncConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}

// RefreshInterval returns the watcher refresh interval as a time.Duration
func (c *TUIConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Mirror defaults
	viper.SetDefault("mirror.store", defaults.Mirror.Store)
	viper.SetDefault("mirror.redis_addr", defaults.Mirror.RedisAddr)
	viper.SetDefault("mirror.redis_password", defaults.Mirror.RedisPassword)
	viper.SetDefault("mirror.redis_db", defaults.Mirror.RedisDB)
	viper.SetDefault("mirror.marker_ttl_seconds", defaults.Mirror.MarkerTTLSeconds)

	// Sync defaults
	viper.SetDefault("sync.publish_interval_ms", defaults.Sync.PublishIntervalMs)
	viper.SetDefault("sync.poll_interval_ms", defaults.Sync.PollIntervalMs)
	viper.SetDefault("sync.max_publish_attempts", defaults.Sync.MaxPublishAttempts)
	viper.SetDefault("sync.retry_backoff_ms", defaults.Sync.RetryBackoffMs)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.format", defaults.Logging.Format)
	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// TUI defaults
	viper.SetDefault("tui.refresh_interval_ms", defaults.TUI.RefreshIntervalMs)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cyto")
	}
	// Fall back to ~/.config/cyto
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cyto"
	}
	return filepath.Join(home, ".config", "cyto")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidStoreKinds returns the list of valid mirror store backends
func ValidStoreKinds() []string {
	return []string{"memory", "redis"}
}

// IsValidStoreKind checks if the given store backend is valid
func IsValidStoreKind(kind string) bool {
	for _, valid := range ValidStoreKinds() {
		if kind == valid {
			return true
		}
	}
	return false
}
