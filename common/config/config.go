// Package config loads service configuration from environment
// variables, all namespaced under the WKFLWS_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lyzr/wkflws/pkg/wkerrors"
)

// Config holds all service configuration.
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Lookup    LookupConfig
	Executor  ExecutorConfig
	Tracing   TracingConfig
	RateLimit RateLimitConfig
}

// ServiceConfig holds service-wide settings.
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
	NoColor     bool
}

// DatabaseConfig holds Postgres connection settings, used by the
// Postgres workflow-definition lookup backend.
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

// RedisConfig holds Redis connection settings, used by the remote
// task executor's completion handshake and the trigger rate limiter.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the "host:port" string expected by redis.Options.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig holds Kafka connection settings for the trigger event
// bus. Host is empty when Kafka is disabled and events are processed
// inline.
type KafkaConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	Topic         string
	ConsumerGroup string
}

// Enabled reports whether a Kafka host has been configured.
func (k KafkaConfig) Enabled() bool {
	return k.Host != ""
}

// Brokers returns the configured broker(s), the shape
// segmentio/kafka-go expects.
func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

// LookupConfig selects and configures the workflow lookup backend.
type LookupConfig struct {
	// Backend is "filesystem" or "postgres".
	Backend        string
	FilesystemRoot string
	// CacheTTL bounds how long a resolved set of matching workflows is
	// cached in Redis per trigger node identifier.
	CacheTTL time.Duration
}

// ExecutorConfig selects the task executor backend.
type ExecutorConfig struct {
	// Backend is "subprocess" or "remote".
	Backend string
	Timeout time.Duration
}

// TracingConfig configures OpenTelemetry span export. Exporters is the
// raw TRACING_EXPORTERS value, parsed by pkg/tracing.ParseExporters.
type TracingConfig struct {
	ResourceName string
	Exporters    string
}

// RateLimitConfig bounds how many webhook requests a trigger node may
// receive per window.
type RateLimitConfig struct {
	Limit      int64
	WindowSecs int
}

// Load reads configuration from the environment. serviceName seeds
// Service.Name and is used as the tracing resource name when
// WKFLWS_TRACING_RESOURCE_NAME is unset.
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("WKFLWS_PORT", 8080),
			Environment: getEnv("WKFLWS_ENVIRONMENT", "development"),
			LogLevel:    getEnv("WKFLWS_LOG_LEVEL", "info"),
			LogFormat:   getEnv("WKFLWS_LOG_FORMAT", "text"),
			NoColor:     getEnvBool("WKFLWS_NO_COLOR", false),
		},
		Database: DatabaseConfig{
			Host:        getEnv("WKFLWS_POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("WKFLWS_POSTGRES_PORT", 5432),
			Database:    getEnv("WKFLWS_POSTGRES_DB", "wkflws"),
			User:        getEnv("WKFLWS_POSTGRES_USER", "wkflws"),
			Password:    getEnv("WKFLWS_POSTGRES_PASSWORD", "wkflws"),
			MaxConns:    getEnvInt("WKFLWS_POSTGRES_MAX_CONNS", 50),
			MinConns:    getEnvInt("WKFLWS_POSTGRES_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("WKFLWS_POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("WKFLWS_POSTGRES_MAX_LIFETIME", time.Hour),
		},
		Redis: RedisConfig{
			Host:     getEnv("WKFLWS_REDIS_HOST", "localhost"),
			Port:     getEnvInt("WKFLWS_REDIS_PORT", 6379),
			Password: getEnv("WKFLWS_REDIS_PASSWORD", ""),
			DB:       getEnvInt("WKFLWS_REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Host:          getEnv("WKFLWS_KAFKA_HOST", ""),
			Port:          getEnvInt("WKFLWS_KAFKA_PORT", 9092),
			Username:      getEnv("WKFLWS_KAFKA_USERNAME", ""),
			Password:      getEnv("WKFLWS_KAFKA_PASSWORD", ""),
			Topic:         getEnv("WKFLWS_KAFKA_TOPIC", ""),
			ConsumerGroup: getEnv("WKFLWS_KAFKA_CONSUMER_GROUP", serviceName),
		},
		Lookup: LookupConfig{
			Backend:        getEnv("WKFLWS_WORKFLOW_LOOKUP_BACKEND", "filesystem"),
			FilesystemRoot: getEnv("WKFLWS_WORKFLOW_LOOKUP_ROOT", "./workflows"),
			CacheTTL:       getEnvDuration("WKFLWS_WORKFLOW_LOOKUP_CACHE_TTL", 30*time.Second),
		},
		Executor: ExecutorConfig{
			Backend: getEnv("WKFLWS_EXECUTOR_BACKEND", "subprocess"),
			Timeout: getEnvDuration("WKFLWS_EXECUTOR_TIMEOUT", 5*time.Minute),
		},
		Tracing: TracingConfig{
			ResourceName: getEnv("WKFLWS_TRACING_RESOURCE_NAME", serviceName),
			Exporters:    getEnv("WKFLWS_TRACING_EXPORTERS", ""),
		},
		RateLimit: RateLimitConfig{
			Limit:      int64(getEnvInt("WKFLWS_RATE_LIMIT", 600)),
			WindowSecs: getEnvInt("WKFLWS_RATE_LIMIT_WINDOW_SECS", 60),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks configuration invariants that would otherwise
// surface confusingly deep in a dependent component.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("postgres max_conns must be >= min_conns")
	}

	switch c.Lookup.Backend {
	case "filesystem", "postgres":
	default:
		return fmt.Errorf("unknown workflow lookup backend: %s", c.Lookup.Backend)
	}

	switch c.Executor.Backend {
	case "subprocess", "remote":
	default:
		return fmt.Errorf("unknown executor backend: %s", c.Executor.Backend)
	}

	if strings.Contains(c.Kafka.Topic, "_") {
		return &wkerrors.ConfigurationError{Field: "kafka_topic", Msg: "underscores in topics disallowed"}
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string.
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
