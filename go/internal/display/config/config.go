// Package config loads display runtime settings from an optional yaml
// file with environment-variable overrides. Environment always wins so
// a deployed display can be repointed without editing files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable for one display process.
type Config struct {
	DisplayURL string `yaml:"display_url"`
	SocketURL  string `yaml:"socket_url"`
	APIBaseURL string `yaml:"api_base_url"`

	ResyncIntervalSec     int `yaml:"resync_interval_sec"`
	ResyncInitialDelaySec int `yaml:"resync_initial_delay_sec"`
	ReconnectWaitSec      int `yaml:"reconnect_wait_sec"`
	MaxReconnects         int `yaml:"max_reconnects"`
	IdleRetryWaitSec      int `yaml:"idle_retry_wait_sec"`
	DrawingClearMs        int `yaml:"drawing_clear_ms"`

	Redis RedisConfig `yaml:"redis"`

	LogLevel string `yaml:"log_level"`
}

// RedisConfig holds the optional persisted-state backend settings. An
// empty Addr means the in-memory store is used instead.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Default returns the settings a display runs with when nothing is
// configured.
func Default() Config {
	return Config{
		SocketURL:             "ws://localhost:3000/display",
		APIBaseURL:            "http://localhost:3000",
		ResyncIntervalSec:     30,
		ResyncInitialDelaySec: 2,
		ReconnectWaitSec:      2,
		MaxReconnects:         10,
		IdleRetryWaitSec:      30,
		DrawingClearMs:        2000,
		LogLevel:              "info",
	}
}

// Load reads the yaml file at path (missing file is fine), then applies
// environment overrides on top.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.DisplayURL = getEnv("DISPLAY_URL", cfg.DisplayURL)
	cfg.SocketURL = getEnv("SOCKET_URL", cfg.SocketURL)
	cfg.APIBaseURL = getEnv("API_BASE_URL", cfg.APIBaseURL)
	cfg.ResyncIntervalSec = getEnvAsInt("RESYNC_INTERVAL_SEC", cfg.ResyncIntervalSec)
	cfg.ResyncInitialDelaySec = getEnvAsInt("RESYNC_INITIAL_DELAY_SEC", cfg.ResyncInitialDelaySec)
	cfg.ReconnectWaitSec = getEnvAsInt("RECONNECT_WAIT_SEC", cfg.ReconnectWaitSec)
	cfg.MaxReconnects = getEnvAsInt("MAX_RECONNECTS", cfg.MaxReconnects)
	cfg.IdleRetryWaitSec = getEnvAsInt("IDLE_RETRY_WAIT_SEC", cfg.IdleRetryWaitSec)
	cfg.DrawingClearMs = getEnvAsInt("DRAWING_CLEAR_MS", cfg.DrawingClearMs)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	return cfg, nil
}

// ResyncInterval returns the periodic snapshot cadence as a duration.
func (c Config) ResyncInterval() time.Duration {
	return time.Duration(c.ResyncIntervalSec) * time.Second
}

// ResyncInitialDelay returns the post-connect snapshot delay.
func (c Config) ResyncInitialDelay() time.Duration {
	return time.Duration(c.ResyncInitialDelaySec) * time.Second
}

// ReconnectWait returns the pause between reconnect attempts.
func (c Config) ReconnectWait() time.Duration {
	return time.Duration(c.ReconnectWaitSec) * time.Second
}

// IdleRetryWait returns the slow retry cadence after the reconnect
// budget is spent.
func (c Config) IdleRetryWait() time.Duration {
	return time.Duration(c.IdleRetryWaitSec) * time.Second
}

// DrawingClear returns how long the drawing animation flag stays set
// after a number is drawn.
func (c Config) DrawingClear() time.Duration {
	return time.Duration(c.DrawingClearMs) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
