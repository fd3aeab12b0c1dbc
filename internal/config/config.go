// Package config loads and validates the recorder configuration from a YAML
// file plus PULSEMETER_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level application configuration.
type Config struct {
	Database    DatabaseConfig    `koanf:"database"`
	Capture     CaptureConfig     `koanf:"capture"`
	Buffer      BufferConfig      `koanf:"buffer"`
	Worker      WorkerConfig      `koanf:"worker"`
	Aggregation AggregationConfig `koanf:"aggregation"`
	Retention   RetentionConfig   `koanf:"retention"`
}

type DatabaseConfig struct {
	Path          string `koanf:"path"`
	BusyTimeoutMS int    `koanf:"busy_timeout_ms"`
}

func (c DatabaseConfig) BusyTimeout() time.Duration {
	return time.Duration(c.BusyTimeoutMS) * time.Millisecond
}

type CaptureConfig struct {
	Enabled          bool   `koanf:"enabled"`
	KeyboardThrottle string `koanf:"keyboard_throttle"`
	MouseThrottle    string `koanf:"mouse_throttle"`
}

func (c CaptureConfig) KeyboardThrottleInterval() time.Duration {
	return mustDuration(c.KeyboardThrottle)
}

func (c CaptureConfig) MouseThrottleInterval() time.Duration {
	return mustDuration(c.MouseThrottle)
}

type BufferConfig struct {
	FlushInterval  string `koanf:"flush_interval"`
	FlushThreshold int    `koanf:"flush_threshold"`
}

func (c BufferConfig) FlushEvery() time.Duration {
	return mustDuration(c.FlushInterval)
}

type WorkerConfig struct {
	QueueSize   int    `koanf:"queue_size"`
	StopTimeout string `koanf:"stop_timeout"`
}

func (c WorkerConfig) StopWait() time.Duration {
	return mustDuration(c.StopTimeout)
}

type AggregationConfig struct {
	Interval  string `koanf:"interval"`
	MinRunGap string `koanf:"min_run_gap"`
}

func (c AggregationConfig) RunEvery() time.Duration {
	return mustDuration(c.Interval)
}

func (c AggregationConfig) RunGap() time.Duration {
	return mustDuration(c.MinRunGap)
}

type RetentionConfig struct {
	MaxAge string `koanf:"max_age"`
}

func (c RetentionConfig) MaxEventAge() time.Duration {
	return mustDuration(c.MaxAge)
}

// mustDuration parses a duration already screened by Validate.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// Validate checks every field; duration strings must parse and be positive.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.BusyTimeoutMS <= 0 {
		return fmt.Errorf("database.busy_timeout_ms must be > 0")
	}
	if c.Buffer.FlushThreshold <= 0 {
		return fmt.Errorf("buffer.flush_threshold must be > 0")
	}
	if c.Worker.QueueSize <= 0 {
		return fmt.Errorf("worker.queue_size must be > 0")
	}

	durations := map[string]string{
		"capture.keyboard_throttle": c.Capture.KeyboardThrottle,
		"capture.mouse_throttle":    c.Capture.MouseThrottle,
		"buffer.flush_interval":     c.Buffer.FlushInterval,
		"worker.stop_timeout":       c.Worker.StopTimeout,
		"aggregation.interval":      c.Aggregation.Interval,
		"aggregation.min_run_gap":   c.Aggregation.MinRunGap,
		"retention.max_age":         c.Retention.MaxAge,
	}
	for key, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", key)
		}
	}

	return nil
}

// Load parses config from defaults, an optional YAML file and the
// environment, then validates the result. An empty configPath skips the
// file layer.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"database.path":             DefaultDBPath(),
		"database.busy_timeout_ms":  5000,
		"capture.enabled":           true,
		"capture.keyboard_throttle": "50ms",
		"capture.mouse_throttle":    "50ms",
		"buffer.flush_interval":     "500ms",
		"buffer.flush_threshold":    10,
		"worker.queue_size":         128,
		"worker.stop_timeout":       "5s",
		"aggregation.interval":      "30m",
		"aggregation.min_run_gap":   "60s",
		"retention.max_age":         "720h", // 30 days
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("PULSEMETER_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "PULSEMETER_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
