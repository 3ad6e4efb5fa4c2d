package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Backends for events and snapshots.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all configuration for the simulation orchestrator
type Config struct {
	// Server configuration
	HTTPPort int    `env:"SIMORCH_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"SIMORCH_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Backend selects the event bus and snapshot storage implementation.
	Backend string `env:"SIMORCH_BACKEND" envDefault:"memory"`

	Redis     RedisConfig
	Run       RunConfig
	Snapshots SnapshotConfig
	Workers   WorkerConfig
	Tracing   TracingConfig
	Timeouts  TimeoutConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`

	// Event streams
	ConsumerGroup string `env:"REDIS_CONSUMER_GROUP" envDefault:"simorch"`
	StreamMaxLen  int64  `env:"REDIS_STREAM_MAX_LEN" envDefault:"10000"`
}

// RunConfig describes the simulation run
type RunConfig struct {
	// Scenario is the path of the scenario file.
	Scenario string `env:"RUN_SCENARIO"`
	// ID names the run; generated when empty.
	ID string `env:"RUN_ID"`
	// RestoreFrom seeds the shared context from the latest snapshot of
	// another run.
	RestoreFrom string `env:"RUN_RESTORE_FROM"`

	// TimeStep overrides the scenario time step when set.
	TimeStep       time.Duration `env:"RUN_TIME_STEP"`
	MaxSteps       int64         `env:"RUN_MAX_STEPS" envDefault:"0"`
	StepInterval   time.Duration `env:"RUN_STEP_INTERVAL" envDefault:"0s"`
	MaxParallelism int           `env:"RUN_MAX_PARALLELISM" envDefault:"0"`
	StepTimeout    time.Duration `env:"RUN_STEP_TIMEOUT" envDefault:"0s"`
	// AutoStart runs the autorun loop; otherwise rounds are driven through
	// the API.
	AutoStart bool `env:"RUN_AUTOSTART" envDefault:"true"`
}

// SnapshotConfig controls barrier snapshots
type SnapshotConfig struct {
	Enabled bool          `env:"SNAPSHOT_ENABLED" envDefault:"true"`
	Every   int64         `env:"SNAPSHOT_EVERY" envDefault:"1"`
	TTL     time.Duration `env:"SNAPSHOT_TTL" envDefault:"24h"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled      bool    `env:"TRACING_ENABLED" envDefault:"false"`
	Exporter     string  `env:"TRACING_EXPORTER" envDefault:"stdout"`
	OTLPEndpoint string  `env:"TRACING_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	SampleRate   float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
	ServiceName  string  `env:"TRACING_SERVICE_NAME" envDefault:"simorch"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	switch c.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported backend: %s (must be memory or redis)", c.Backend)
	}

	if c.Run.MaxSteps < 0 {
		return fmt.Errorf("max steps must not be negative")
	}
	if c.Run.TimeStep < 0 {
		return fmt.Errorf("time step must not be negative")
	}
	if c.Run.StepInterval < 0 {
		return fmt.Errorf("step interval must not be negative")
	}
	if c.Run.MaxParallelism < 0 {
		return fmt.Errorf("max parallelism must not be negative")
	}
	if c.Snapshots.Every < 1 {
		return fmt.Errorf("snapshot interval must be at least 1")
	}

	switch c.Tracing.Exporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("unsupported tracing exporter: %s", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing sample rate must be between 0 and 1")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
