package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.NotEmpty(t, cfg.Database.Path)
	require.Equal(t, 5*time.Second, cfg.Database.BusyTimeout())
	require.True(t, cfg.Capture.Enabled)
	require.Equal(t, 50*time.Millisecond, cfg.Capture.KeyboardThrottleInterval())
	require.Equal(t, 50*time.Millisecond, cfg.Capture.MouseThrottleInterval())
	require.Equal(t, 500*time.Millisecond, cfg.Buffer.FlushEvery())
	require.Equal(t, 10, cfg.Buffer.FlushThreshold)
	require.Equal(t, 128, cfg.Worker.QueueSize)
	require.Equal(t, 5*time.Second, cfg.Worker.StopWait())
	require.Equal(t, 30*time.Minute, cfg.Aggregation.RunEvery())
	require.Equal(t, time.Minute, cfg.Aggregation.RunGap())
	require.Equal(t, 720*time.Hour, cfg.Retention.MaxEventAge())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
database:
  path: "/tmp/custom.db"
capture:
  keyboard_throttle: "100ms"
buffer:
  flush_threshold: 25
aggregation:
  interval: "5m"
`), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	require.Equal(t, "/tmp/custom.db", cfg.Database.Path)
	require.Equal(t, 100*time.Millisecond, cfg.Capture.KeyboardThrottleInterval())
	require.Equal(t, 25, cfg.Buffer.FlushThreshold)
	require.Equal(t, 5*time.Minute, cfg.Aggregation.RunEvery())

	// Untouched keys keep defaults.
	require.Equal(t, 50*time.Millisecond, cfg.Capture.MouseThrottleInterval())
	require.Equal(t, 128, cfg.Worker.QueueSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
database:
  path: "/tmp/from-file.db"
`), 0o644))

	t.Setenv("PULSEMETER_DATABASE__PATH", "/tmp/from-env.db")
	t.Setenv("PULSEMETER_RETENTION__MAX_AGE", "168h")

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, "/tmp/from-env.db", cfg.Database.Path)
	require.Equal(t, 7*24*time.Hour, cfg.Retention.MaxEventAge())
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty path",
			mutate:  func(c *Config) { c.Database.Path = "  " },
			wantErr: "database.path",
		},
		{
			name:    "zero busy timeout",
			mutate:  func(c *Config) { c.Database.BusyTimeoutMS = 0 },
			wantErr: "busy_timeout_ms",
		},
		{
			name:    "zero flush threshold",
			mutate:  func(c *Config) { c.Buffer.FlushThreshold = 0 },
			wantErr: "flush_threshold",
		},
		{
			name:    "zero queue size",
			mutate:  func(c *Config) { c.Worker.QueueSize = 0 },
			wantErr: "queue_size",
		},
		{
			name:    "unparseable throttle",
			mutate:  func(c *Config) { c.Capture.KeyboardThrottle = "fast" },
			wantErr: "keyboard_throttle",
		},
		{
			name:    "negative interval",
			mutate:  func(c *Config) { c.Aggregation.Interval = "-5m" },
			wantErr: "aggregation.interval",
		},
		{
			name:    "zero retention",
			mutate:  func(c *Config) { c.Retention.MaxAge = "0h" },
			wantErr: "retention.max_age",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDefaultPathsUnderXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")

	require.Equal(t, "/tmp/xdg-data/pulsemeter/pulsemeter.db", DefaultDBPath())
	require.Equal(t, "/tmp/xdg-config/pulsemeter/config.yaml", DefaultConfigPath())
}
