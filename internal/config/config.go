package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. VARULV_SERVER_PORT
const EnvPrefix = "VARULV"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Data     DataConfig     `mapstructure:"data"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Replay   ReplayConfig   `mapstructure:"replay"`
	Session  SessionConfig  `mapstructure:"session"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Host string `mapstructure:"host"`
	Env  string `mapstructure:"env"` // "development" or "production"
}

// DataConfig describes where thread pages live and how they are read
type DataConfig struct {
	Dir          string `mapstructure:"dir"`
	VerifyTitles bool   `mapstructure:"verify_titles"`
	VoteMarker   string `mapstructure:"vote_marker"`
}

// CacheConfig holds the parsed-vote cache settings
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ReplayConfig holds replay defaults
type ReplayConfig struct {
	DefaultDelay time.Duration `mapstructure:"default_delay"`
}

// SessionConfig holds viewing session settings
type SessionConfig struct {
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// ScheduleConfig holds cron specs for background jobs
type ScheduleConfig struct {
	Rescan  string `mapstructure:"rescan"`
	Cleanup string `mapstructure:"cleanup"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // "json" or "text"
	File       string `mapstructure:"file"`   // optional rotated log file
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load reads configuration from an optional YAML file and VARULV_* environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key so environment overrides are picked up
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.env", "development")

	v.SetDefault("data.dir", "data")
	v.SetDefault("data.verify_titles", false)
	v.SetDefault("data.vote_marker", "Röst:")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "data/.cache/votes.db")

	v.SetDefault("replay.default_delay", "200ms")

	v.SetDefault("session.stale_after", "2h")

	v.SetDefault("schedule.rescan", "@every 10m")
	v.SetDefault("schedule.cleanup", "@every 10m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if c.Data.Dir == "" {
		return errors.New("data.dir is required")
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		return errors.New("cache.path is required when the cache is enabled")
	}
	if c.Replay.DefaultDelay <= 0 {
		return fmt.Errorf("replay.default_delay must be positive, got %s", c.Replay.DefaultDelay)
	}
	if c.Session.StaleAfter <= 0 {
		return fmt.Errorf("session.stale_after must be positive, got %s", c.Session.StaleAfter)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}
