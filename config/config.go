package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ruvnet/agentic-robotics-sub000/bus"
	"github.com/ruvnet/agentic-robotics-sub000/codec"
	"github.com/ruvnet/agentic-robotics-sub000/errors"
	"github.com/ruvnet/agentic-robotics-sub000/executor"
)

// EnvPrefix is the prefix for environment variable overrides
const EnvPrefix = "ROS3"

// Duration wraps time.Duration so YAML values can be written as "10ms" or
// "2s" instead of raw nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete middleware configuration
type Config struct {
	Executor ExecutorConfig `yaml:"executor"`
	Bus      BusConfig      `yaml:"bus"`
	Pool     PoolConfig     `yaml:"pool"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
	Bridge   BridgeConfig   `yaml:"bridge"`
}

// ExecutorConfig sizes the scheduling lanes
type ExecutorConfig struct {
	CriticalWorkers   int      `yaml:"critical_workers"`
	BestEffortWorkers int      `yaml:"best_effort_workers"`
	CriticalThreshold Duration `yaml:"critical_threshold"`
	CriticalQueueSize int      `yaml:"critical_queue_size"`
}

// ToExecutor converts to the executor package's config type
func (c ExecutorConfig) ToExecutor() executor.Config {
	return executor.Config{
		CriticalWorkers:   c.CriticalWorkers,
		BestEffortWorkers: c.BestEffortWorkers,
		CriticalThreshold: c.CriticalThreshold.Std(),
		CriticalQueueSize: c.CriticalQueueSize,
	}
}

// BusConfig holds subscriber queue defaults applied when callers do not
// choose their own
type BusConfig struct {
	DefaultCapacity int      `yaml:"default_capacity"`
	DefaultPolicy   string   `yaml:"default_policy"`
	BlockTimeout    Duration `yaml:"block_timeout"`
}

// DefaultOverflowPolicy parses the configured policy name
func (c BusConfig) DefaultOverflowPolicy() (bus.OverflowPolicy, error) {
	return bus.ParseOverflowPolicy(c.DefaultPolicy)
}

// PoolConfig sizes the shared encode buffer pool
type PoolConfig struct {
	Buffers    int `yaml:"buffers"`
	BufferSize int `yaml:"buffer_size"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig controls the slog handler
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// BridgeConfig configures the optional NATS transport bridge
type BridgeConfig struct {
	Enabled       bool     `yaml:"enabled"`
	URL           string   `yaml:"url"`
	SubjectPrefix string   `yaml:"subject_prefix"`
	ExportTopics  []string `yaml:"export_topics"`
	ImportTopics  []string `yaml:"import_topics"`
	MaxReconnects int      `yaml:"max_reconnects"`
	ReconnectWait Duration `yaml:"reconnect_wait"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Executor: ExecutorConfig{
			CriticalWorkers:   executor.DefaultCriticalWorkers,
			BestEffortWorkers: executor.DefaultBestEffortWorkers,
			CriticalThreshold: Duration(executor.DefaultCriticalThreshold),
			CriticalQueueSize: executor.DefaultCriticalQueueSize,
		},
		Bus: BusConfig{
			DefaultCapacity: 64,
			DefaultPolicy:   "reject",
			BlockTimeout:    Duration(bus.DefaultBlockTimeout),
		},
		Pool: PoolConfig{
			Buffers:    codec.DefaultPoolBuffers,
			BufferSize: codec.DefaultPoolBufferSize,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Bridge: BridgeConfig{
			Enabled:       false,
			URL:           "nats://localhost:4222",
			SubjectPrefix: "ros3",
			MaxReconnects: 10,
			ReconnectWait: Duration(2 * time.Second),
		},
	}
}

// Load reads a YAML file, applies environment overrides, and validates the
// result. Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "reading config file")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "parsing config file")
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides maps a small set of deployment-varying knobs onto
// environment variables. File values lose to the environment.
func (c *Config) applyEnvOverrides() {
	if v, ok := os.LookupEnv(EnvPrefix + "_METRICS_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Metrics.Port = port
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "_BRIDGE_URL"); ok {
		c.Bridge.URL = v
	}
}

// Validate checks every section, so a bad config is rejected at load time
// rather than surfacing as runtime failures
func (c *Config) Validate() error {
	if err := c.Executor.ToExecutor().Validate(); err != nil {
		return err
	}

	if c.Bus.DefaultCapacity < 1 {
		return errors.WrapInvalid(errors.ErrInvalidCapacity,
			"config", "Validate", "bus.default_capacity")
	}
	if _, err := c.Bus.DefaultOverflowPolicy(); err != nil {
		return errors.WrapInvalid(err, "config", "Validate", "bus.default_policy")
	}
	if c.Bus.BlockTimeout < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"config", "Validate", "bus.block_timeout must not be negative")
	}

	if c.Pool.Buffers < 0 || c.Pool.BufferSize < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"config", "Validate", "pool sizing must be positive")
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return errors.WrapInvalid(errors.ErrInvalidConfig,
				"config", "Validate", "metrics.port out of range")
		}
		if c.Metrics.Path == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig,
				"config", "Validate", "metrics.path is required when metrics are enabled")
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"config", "Validate", fmt.Sprintf("unknown log level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"config", "Validate", fmt.Sprintf("unknown log format %q", c.Logging.Format))
	}

	if c.Bridge.Enabled {
		if c.Bridge.URL == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig,
				"config", "Validate", "bridge.url is required when the bridge is enabled")
		}
		if c.Bridge.SubjectPrefix == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig,
				"config", "Validate", "bridge.subject_prefix is required when the bridge is enabled")
		}
		if c.Bridge.ReconnectWait < 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig,
				"config", "Validate", "bridge.reconnect_wait must not be negative")
		}
	}

	return nil
}
