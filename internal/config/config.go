package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the runtime settings for the coursetape client.
type Config struct {
	// DBPath is the SQLite database file. Empty means the XDG default.
	DBPath string

	// UserID identifies the local listener. Defaults to "local".
	UserID string

	// RedisAddr enables the Redis-backed change-notification bus when
	// set. Empty means the in-process bus.
	RedisAddr string

	// ThrottleInterval bounds how often position telemetry is persisted
	// while a lesson is playing.
	ThrottleInterval time.Duration

	// TickInterval is the simulated transport clock resolution.
	TickInterval time.Duration

	// LogMode selects the zap config ("dev" or "prod").
	LogMode string
}

// Load reads configuration from COURSETAPE_* environment variables and
// an optional config file at $XDG_CONFIG_HOME/coursetape/config.yaml.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("coursetape")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("user-id", "local")
	v.SetDefault("throttle-interval", 3*time.Second)
	v.SetDefault("tick-interval", 250*time.Millisecond)
	v.SetDefault("log-mode", "dev")

	if dir, err := configDir(); err == nil {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			// A missing file is fine; a malformed one is not.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg := Config{
		DBPath:           v.GetString("db"),
		UserID:           v.GetString("user-id"),
		RedisAddr:        v.GetString("redis-addr"),
		ThrottleInterval: v.GetDuration("throttle-interval"),
		TickInterval:     v.GetDuration("tick-interval"),
		LogMode:          v.GetString("log-mode"),
	}
	if cfg.ThrottleInterval <= 0 {
		cfg.ThrottleInterval = 3 * time.Second
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 250 * time.Millisecond
	}
	return cfg, nil
}

// configDir resolves $XDG_CONFIG_HOME/coursetape, falling back to
// ~/.config/coursetape.
func configDir() (string, error) {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, "coursetape"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", "coursetape"), nil
}
