package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Engine struct {
		TickInterval        time.Duration `yaml:"tick_interval"`
		UpstreamTimeout     time.Duration `yaml:"upstream_timeout"`
		SilenceInterval     time.Duration `yaml:"silence_interval"`
		AlertCooldown       time.Duration `yaml:"alert_cooldown"`
		TotalBandwidthMbps  float64       `yaml:"total_bandwidth_mbps"`
		ConfidenceThreshold float64       `yaml:"confidence_threshold"`
		HeadroomFactor      float64       `yaml:"headroom_factor"`
	} `yaml:"engine"`

	Broadcast struct {
		QueueSize            int           `yaml:"queue_size"`
		WriteTimeout         time.Duration `yaml:"write_timeout"`
		PingInterval         time.Duration `yaml:"ping_interval"`
		PongTimeout          time.Duration `yaml:"pong_timeout"`
		ConnectionsPerMinute int           `yaml:"connections_per_minute"`
	} `yaml:"broadcast"`

	Predictor struct {
		Endpoint       string        `yaml:"endpoint"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		MaxRetries     int           `yaml:"max_retries"`
	} `yaml:"predictor"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		JaegerURL  string  `yaml:"jaeger_url"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
// Validation failures here are fatal at startup.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("engine.tick_interval must be > 0")
	}
	if c.Engine.UpstreamTimeout <= 0 {
		return fmt.Errorf("engine.upstream_timeout must be > 0")
	}
	if c.Engine.SilenceInterval <= 0 {
		return fmt.Errorf("engine.silence_interval must be > 0")
	}
	if c.Engine.AlertCooldown < 0 {
		return fmt.Errorf("engine.alert_cooldown must be >= 0")
	}
	if c.Engine.TotalBandwidthMbps <= 0 {
		return fmt.Errorf("engine.total_bandwidth_mbps must be > 0")
	}
	if c.Engine.ConfidenceThreshold < 0 || c.Engine.ConfidenceThreshold > 100 {
		return fmt.Errorf("engine.confidence_threshold must be in [0,100]")
	}
	if c.Engine.HeadroomFactor < 1.0 {
		return fmt.Errorf("engine.headroom_factor must be >= 1.0")
	}

	if c.Broadcast.QueueSize <= 0 {
		return fmt.Errorf("broadcast.queue_size must be > 0")
	}
	if c.Broadcast.WriteTimeout <= 0 {
		return fmt.Errorf("broadcast.write_timeout must be > 0")
	}
	if c.Broadcast.PingInterval <= 0 {
		return fmt.Errorf("broadcast.ping_interval must be > 0")
	}
	if c.Broadcast.PongTimeout <= 0 {
		return fmt.Errorf("broadcast.pong_timeout must be > 0")
	}

	if c.Predictor.Endpoint != "" && c.Predictor.RequestTimeout <= 0 {
		return fmt.Errorf("predictor.request_timeout must be > 0 when an endpoint is set")
	}
	if c.Predictor.MaxRetries < 0 {
		return fmt.Errorf("predictor.max_retries must be >= 0")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting.burst must be > 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Engine.TickInterval = time.Second
	cfg.Engine.UpstreamTimeout = 500 * time.Millisecond
	cfg.Engine.SilenceInterval = 30 * time.Second
	cfg.Engine.AlertCooldown = 60 * time.Second
	cfg.Engine.TotalBandwidthMbps = 100.0
	cfg.Engine.ConfidenceThreshold = 50.0
	cfg.Engine.HeadroomFactor = 1.2

	cfg.Broadcast.QueueSize = 16
	cfg.Broadcast.WriteTimeout = 10 * time.Second
	cfg.Broadcast.PingInterval = 30 * time.Second
	cfg.Broadcast.PongTimeout = 60 * time.Second
	cfg.Broadcast.ConnectionsPerMinute = 60

	cfg.Predictor.Endpoint = ""
	cfg.Predictor.RequestTimeout = 500 * time.Millisecond
	cfg.Predictor.MaxRetries = 2

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 50
	cfg.RateLimiting.Burst = 100

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("NETQOS_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("NETQOS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if endpoint := os.Getenv("NETQOS_PREDICTOR_ENDPOINT"); endpoint != "" {
		c.Predictor.Endpoint = endpoint
	}
	if addr := os.Getenv("NETQOS_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
	if budget := os.Getenv("NETQOS_TOTAL_BANDWIDTH_MBPS"); budget != "" {
		if v, err := strconv.ParseFloat(budget, 64); err == nil {
			c.Engine.TotalBandwidthMbps = v
		}
	}
}
