package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ruvnet/agentic-robotics-sub000/bus"
	"github.com/ruvnet/agentic-robotics-sub000/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
executor:
  critical_workers: 4
  best_effort_workers: 16
  critical_threshold: 5ms
  critical_queue_size: 512
bus:
  default_capacity: 128
  default_policy: evict_oldest
  block_timeout: 250ms
pool:
  buffers: 64
  buffer_size: 8192
metrics:
  enabled: true
  port: 9100
  path: /metrics
logging:
  level: debug
  format: json
bridge:
  enabled: true
  url: nats://robot:4222
  subject_prefix: fleet
  export_topics: ["/odom", "/scan"]
  max_reconnects: 5
  reconnect_wait: 1s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Executor.CriticalWorkers)
	assert.Equal(t, 5*time.Millisecond, cfg.Executor.CriticalThreshold.Std())
	assert.Equal(t, 512, cfg.Executor.ToExecutor().CriticalQueueSize)

	assert.Equal(t, 128, cfg.Bus.DefaultCapacity)
	policy, err := cfg.Bus.DefaultOverflowPolicy()
	require.NoError(t, err)
	assert.Equal(t, bus.EvictOldest, policy)
	assert.Equal(t, 250*time.Millisecond, cfg.Bus.BlockTimeout.Std())

	assert.Equal(t, 8192, cfg.Pool.BufferSize)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9100, cfg.Metrics.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "fleet", cfg.Bridge.SubjectPrefix)
	assert.Equal(t, []string{"/odom", "/scan"}, cfg.Bridge.ExportTopics)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
executor:
  critical_workers: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Executor.CriticalWorkers)
	def := Default()
	assert.Equal(t, def.Executor.BestEffortWorkers, cfg.Executor.BestEffortWorkers)
	assert.Equal(t, def.Bus.DefaultCapacity, cfg.Bus.DefaultCapacity)
	assert.Equal(t, def.Logging.Level, cfg.Logging.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "executor: [not a mapping")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, `
executor:
  critical_threshold: soon
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ROS3_METRICS_PORT", "9222")
	t.Setenv("ROS3_LOG_LEVEL", "warn")
	t.Setenv("ROS3_BRIDGE_URL", "nats://override:4222")

	path := writeConfig(t, `
metrics:
  enabled: true
  port: 9100
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9222, cfg.Metrics.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "nats://override:4222", cfg.Bridge.URL)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero critical workers", func(c *Config) { c.Executor.CriticalWorkers = 0 }},
		{"zero bus capacity", func(c *Config) { c.Bus.DefaultCapacity = 0 }},
		{"unknown policy", func(c *Config) { c.Bus.DefaultPolicy = "drop_random" }},
		{"negative block timeout", func(c *Config) { c.Bus.BlockTimeout = Duration(-time.Second) }},
		{"zero buffer size", func(c *Config) { c.Pool.BufferSize = 0 }},
		{"metrics port out of range", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 70000 }},
		{"empty metrics path", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Path = "" }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bridge without url", func(c *Config) { c.Bridge.Enabled = true; c.Bridge.URL = "" }},
		{"bridge without prefix", func(c *Config) { c.Bridge.Enabled = true; c.Bridge.SubjectPrefix = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestDuration_RoundTrip(t *testing.T) {
	type wrapper struct {
		D Duration `yaml:"d"`
	}

	out, err := yaml.Marshal(wrapper{D: Duration(1500 * time.Millisecond)})
	require.NoError(t, err)
	assert.Contains(t, string(out), "1.5s")

	var in wrapper
	require.NoError(t, yaml.Unmarshal(out, &in))
	assert.Equal(t, 1500*time.Millisecond, in.D.Std())
}

func TestLoggingConfig_Logger(t *testing.T) {
	var buf bytes.Buffer

	logger := LoggingConfig{Level: "warn", Format: "json"}.loggerTo(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "component", "bus")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"shown"`)
	assert.Contains(t, out, `"component":"bus"`)
}
