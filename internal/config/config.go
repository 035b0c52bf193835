// Package config holds the configuration types and loading logic for the
// tickqd demo daemon. The library itself is configured in code via
// tickq.Options; this file-based config only wires the daemon's surfaces.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a tickqd instance.
type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Queue     QueueConfig    `yaml:"queue"`
	Producers ProducerConfig `yaml:"producers"`
	Metrics   MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds the HTTP/WebSocket listen settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// QueueConfig names the queue and bounds what producers may schedule.
type QueueConfig struct {
	Name string `yaml:"name"`
	// MaxScheduleAheadMs caps how far in the future a deadline may be set.
	// 0 = unlimited.
	MaxScheduleAheadMs int64 `yaml:"max_schedule_ahead_ms"`
	// MaxPayloadBytes caps the size of a single item's payload. 0 = unlimited.
	MaxPayloadBytes int `yaml:"max_payload_bytes"`
}

// ProducerConfig sets rate limiting applied per producer address.
type ProducerConfig struct {
	// MaxRate is inserts per second per producer.
	MaxRate int `yaml:"max_rate"`
	// Burst allows temporary spikes above MaxRate.
	Burst int `yaml:"burst"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a Config populated with safe, sensible defaults.
// It is the canonical source of truth for default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Queue: QueueConfig{
			Name:               "default",
			MaxScheduleAheadMs: 90 * 24 * 60 * 60 * 1000, // 90 days
			MaxPayloadBytes:    256 << 10,
		},
		Producers: ProducerConfig{
			MaxRate: 10_000,
			Burst:   50_000,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads a YAML config file at path and overlays it on top of Default().
// If the file does not exist the default config is returned without error,
// making it easy to run tickqd with no config file at all.
//
// After loading the file, environment variables are applied as overrides:
//
//	TICKQ_PORT   — sets server.port
//	TICKQ_QUEUE  — sets queue.name
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays environment variable overrides onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TICKQ_PORT"); v != "" {
		var p int
		if _, err := fmt.Sscanf(v, "%d", &p); err == nil && p > 0 {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("TICKQ_QUEUE"); v != "" {
		cfg.Queue.Name = v
	}
}

// Validate checks that the config values are consistent and within
// acceptable ranges. It returns the first error found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if c.Queue.Name == "" {
		return errors.New("queue.name must not be empty")
	}
	if c.Queue.MaxScheduleAheadMs < 0 {
		return errors.New("queue.max_schedule_ahead_ms must be >= 0")
	}
	if c.Queue.MaxPayloadBytes < 0 {
		return errors.New("queue.max_payload_bytes must be >= 0")
	}
	if c.Producers.MaxRate < 1 {
		return errors.New("producers.max_rate must be at least 1")
	}
	if c.Producers.Burst < c.Producers.MaxRate {
		return errors.New("producers.burst must be >= producers.max_rate")
	}
	return nil
}
