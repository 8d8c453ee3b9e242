package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Marker store backends
const (
	MarkerBackendLocal    = "local"
	MarkerBackendRedis    = "redis"
	MarkerBackendPostgres = "postgres"
	MarkerBackendSSM      = "ssm"
	MarkerBackendMemory   = "memory"
)

// DefaultMarkerPrefix keeps markers readable by earlier tooling that wrote to SSM
const DefaultMarkerPrefix = "/_aws-organized/migrations"

// Config holds all service configuration
type Config struct {
	Service     ServiceConfig
	Environment EnvironmentConfig
	AWS         AWSConfig
	Markers     MarkerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Cache       CacheConfig
	RateLimit   RateLimitConfig
	Migrate     MigrateConfig
	Telemetry   TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name      string
	Port      int
	LogLevel  string
	LogFormat string
}

// EnvironmentConfig locates the directory snapshot store
type EnvironmentConfig struct {
	// afs URL of the environment directory, e.g. file:///work/environment or mem://localhost/env
	URL string

	// State file name, relative to the root directory
	StateFile string
}

// AWSConfig holds provider session settings
type AWSConfig struct {
	Region     string
	MaxRetries int
}

// MarkerConfig selects the idempotency marker backend
type MarkerConfig struct {
	Backend string

	// Badger directory for the local backend
	Path string

	// Key prefix (SSM parameter path prefix, redis key prefix)
	Prefix string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig holds settings for the describe-call cache
type CacheConfig struct {
	Enabled    bool
	DefaultTTL time.Duration
}

// RateLimitConfig throttles remote API calls per call class
type RateLimitConfig struct {
	ReadRPS     float64
	ReadBurst   int
	MutateRPS   float64
	MutateBurst int

	// Inbound requests to the status API
	ServeRPS   float64
	ServeBurst int
}

// MigrateConfig holds executor policy
type MigrateConfig struct {
	// Re-attempt migrations whose marker is FAILED or ERRORED
	RetryFailed bool
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnableMetrics bool
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:      serviceName,
			Port:      getEnvInt("PORT", 8080),
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "text"),
		},
		Environment: EnvironmentConfig{
			URL:       getEnv("ORGSYNC_ENVIRONMENT_URL", defaultEnvironmentURL()),
			StateFile: getEnv("ORGSYNC_STATE_FILE", "state.yaml"),
		},
		AWS: AWSConfig{
			Region:     getEnv("AWS_REGION", "us-east-1"),
			MaxRetries: getEnvInt("AWS_MAX_RETRIES", 5),
		},
		Markers: MarkerConfig{
			Backend: getEnv("ORGSYNC_MARKER_BACKEND", MarkerBackendLocal),
			Path:    getEnv("ORGSYNC_MARKER_PATH", ".orgsync/markers"),
			Prefix:  getEnv("ORGSYNC_MARKER_PREFIX", DefaultMarkerPrefix),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "orgsync"),
			User:        getEnv("POSTGRES_USER", "orgsync"),
			Password:    getEnv("POSTGRES_PASSWORD", "orgsync"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 4),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 1),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("CACHE_ENABLED", true),
			DefaultTTL: getEnvDuration("CACHE_DEFAULT_TTL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			ReadRPS:     getEnvFloat("ORGSYNC_API_RPS", 10),
			ReadBurst:   getEnvInt("ORGSYNC_API_BURST", 5),
			MutateRPS:   getEnvFloat("ORGSYNC_API_MUTATE_RPS", 2),
			MutateBurst: getEnvInt("ORGSYNC_API_MUTATE_BURST", 1),
			ServeRPS:    getEnvFloat("ORGSYNC_SERVE_RPS", 20),
			ServeBurst:  getEnvInt("ORGSYNC_SERVE_BURST", 40),
		},
		Migrate: MigrateConfig{
			RetryFailed: getEnvBool("ORGSYNC_RETRY_FAILED", true),
		},
		Telemetry: TelemetryConfig{
			EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Environment.URL == "" {
		return fmt.Errorf("environment url is required")
	}

	switch c.Markers.Backend {
	case MarkerBackendLocal:
		if c.Markers.Path == "" {
			return fmt.Errorf("marker path is required for the %s backend", MarkerBackendLocal)
		}
	case MarkerBackendPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required for the %s backend", MarkerBackendPostgres)
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns must be >= min_conns")
		}
	case MarkerBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required for the %s backend", MarkerBackendRedis)
		}
	case MarkerBackendSSM, MarkerBackendMemory:
	default:
		return fmt.Errorf("unknown marker backend: %s", c.Markers.Backend)
	}

	if c.RateLimit.ReadRPS <= 0 || c.RateLimit.MutateRPS <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if c.RateLimit.ReadBurst < 1 || c.RateLimit.MutateBurst < 1 {
		return fmt.Errorf("rate limit bursts must be >= 1")
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// NormalizeEnvironmentURL turns a plain directory into a file:// URL
func NormalizeEnvironmentURL(location string) string {
	if strings.Contains(location, "://") {
		return location
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		abs = location
	}
	return "file://" + filepath.ToSlash(abs)
}

func defaultEnvironmentURL() string {
	return NormalizeEnvironmentURL("environment")
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
