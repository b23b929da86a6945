// Package config loads broker configuration from environment variables,
// with an optional .env file for local development. Grounded on the
// teacher's config.go (caarlos0/env tags, godotenv, zerolog logging of the
// loaded values).
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds every tunable of the broker process.
type Config struct {
	// Listener
	Addr          string `env:"BROKER_ADDR" envDefault:"127.0.0.1:5000"`
	ListenBacklog int    `env:"BROKER_LISTEN_BACKLOG" envDefault:"100"`

	// Admission control
	MaxConnections       int           `env:"BROKER_MAX_CONNECTIONS" envDefault:"10000"`
	CPURejectThreshold   float64       `env:"BROKER_CPU_REJECT_THRESHOLD" envDefault:"90.0"`
	ResourcePollInterval time.Duration `env:"BROKER_RESOURCE_POLL_INTERVAL" envDefault:"5s"`

	// Per-connection rate limiting
	FrameRateLimit int `env:"BROKER_FRAME_RATE_LIMIT" envDefault:"500"`
	FrameBurst     int `env:"BROKER_FRAME_BURST" envDefault:"1000"`

	// Shutdown
	DrainGracePeriod time.Duration `env:"BROKER_DRAIN_GRACE_PERIOD" envDefault:"10s"`

	// Monitoring
	MetricsAddr string `env:"BROKER_METRICS_ADDR" envDefault:":9100"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads configuration from a .env file (if present) and the process
// environment, validates it, and returns it. Priority: env vars > .env
// file > struct defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env file found, using environment variables only")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return cfg, nil
}

// Validate checks range and enum constraints that env.Parse cannot.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("BROKER_ADDR is required")
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("BROKER_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}
	if c.CPURejectThreshold < 0 || c.CPURejectThreshold > 100 {
		return fmt.Errorf("BROKER_CPU_REJECT_THRESHOLD must be 0-100, got %.1f", c.CPURejectThreshold)
	}
	if c.FrameRateLimit < 0 {
		return fmt.Errorf("BROKER_FRAME_RATE_LIMIT must be >= 0, got %d", c.FrameRateLimit)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}

	validLogFormats := map[string]bool{"json": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of json, pretty (got %q)", c.LogFormat)
	}

	return nil
}

// Log emits the loaded configuration as a structured log line.
func (c *Config) Log(logger zerolog.Logger) {
	logger.Info().
		Str("addr", c.Addr).
		Int("listen_backlog", c.ListenBacklog).
		Int("max_connections", c.MaxConnections).
		Float64("cpu_reject_threshold", c.CPURejectThreshold).
		Int("frame_rate_limit", c.FrameRateLimit).
		Int("frame_burst", c.FrameBurst).
		Dur("drain_grace_period", c.DrainGracePeriod).
		Str("metrics_addr", c.MetricsAddr).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("configuration loaded")
}
