package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite3"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Gate      GateConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"3000"`
}

// GateConfig holds the access gate settings.
type GateConfig struct {
	TrustedPort  int      `env:"GATE_TRUSTED_PORT" envDefault:"3001"`
	AllowedAddrs []string `env:"GATE_ALLOWED_ADDRS" envDefault:"127.0.0.1,::1" envSeparator:","`
	APIKey       string   `env:"GATE_API_KEY" envDefault:"12345"`
}

// RateLimitConfig holds the sliding window settings.
type RateLimitConfig struct {
	Window  time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
	Max     int           `env:"RATE_LIMIT_MAX" envDefault:"5"`
	Headers bool          `env:"RATE_LIMIT_HEADERS" envDefault:"true"`
}

// StorageConfig holds task store configuration.
type StorageConfig struct {
	Driver    string `env:"STORAGE_DRIVER" envDefault:"memory"`
	DSN       string `env:"DB_DSN" envDefault:":memory:"`
	SeedTasks bool   `env:"SEED_DEMO_TASKS" envDefault:"true"`
}

// RedisConfig holds the optional Redis connection for rate-limit stats.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Prefix   string `env:"REDIS_STATS_PREFIX" envDefault:"tareas:ratelimit"`
}

// MetricsConfig holds the optional Prometheus listener.
type MetricsConfig struct {
	Addr string `env:"METRICS_ADDR"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	return LoadFrom(nil)
}

// LoadFrom loads configuration from environ instead of the process
// environment when environ is non-nil.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}

	if err := env.ParseWithOptions(&cfg.Server, opts); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.Gate, opts); err != nil {
		return nil, fmt.Errorf("parsing gate config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.RateLimit, opts); err != nil {
		return nil, fmt.Errorf("parsing rate limit config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.Storage, opts); err != nil {
		return nil, fmt.Errorf("parsing storage config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.Redis, opts); err != nil {
		return nil, fmt.Errorf("parsing redis config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.Metrics, opts); err != nil {
		return nil, fmt.Errorf("parsing metrics config: %w", err)
	}

	for i := range cfg.Gate.AllowedAddrs {
		cfg.Gate.AllowedAddrs[i] = strings.TrimSpace(cfg.Gate.AllowedAddrs[i])
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsInMemoryDSN reports whether dsn names a volatile SQLite database.
func IsInMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 0 and 65535")
	}
	if c.Gate.TrustedPort < 0 || c.Gate.TrustedPort > 65535 {
		return fmt.Errorf("GATE_TRUSTED_PORT must be between 0 and 65535")
	}
	if c.Gate.APIKey == "" {
		return fmt.Errorf("GATE_API_KEY is required")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.RateLimit.Max <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		// Tasks are process-lifetime state; a file DSN would outlive the process.
		if !IsInMemoryDSN(c.Storage.DSN) {
			return fmt.Errorf("DB_DSN must name an in-memory database, got %q", c.Storage.DSN)
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverMemory, DriverSQLite, c.Storage.Driver)
	}

	return nil
}
