// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Lifecycle     LifecycleConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds redis configuration for session termination
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// AuthConfig holds the authentication flow configuration
type AuthConfig struct {
	// WWWRoot is the root URL of the host LMS; course target URLs are
	// matched against it.
	WWWRoot string

	// HubsFile is the path of the JSON file listing the configured ECS hubs.
	HubsFile string

	// HubTimeout bounds a single auths lookup against one hub.
	HubTimeout time.Duration

	// SessionTimeout is the stale horizon for never-enrolled accounts.
	SessionTimeout time.Duration
}

// LifecycleConfig holds lifecycle job configuration
type LifecycleConfig struct {
	SMTPAddr string
	SMTPFrom string
	Schedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("CAMPUSCONNECT_HOST", "0.0.0.0"),
			Port:            getEnv("CAMPUSCONNECT_PORT", "8080"),
			ReadTimeout:     getEnvDuration("CAMPUSCONNECT_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("CAMPUSCONNECT_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("CAMPUSCONNECT_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CAMPUSCONNECT_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("CAMPUSCONNECT_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("CAMPUSCONNECT_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("CAMPUSCONNECT_POSTGRES_MAX_CONNS", 10),
			MaxIdleConns: getEnvInt("CAMPUSCONNECT_POSTGRES_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:      getEnv("CAMPUSCONNECT_REDIS_URL", "localhost:6379"),
			Password: getEnv("CAMPUSCONNECT_REDIS_PASSWORD", ""),
			DB:       getEnvInt("CAMPUSCONNECT_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			WWWRoot:        getEnv("CAMPUSCONNECT_WWWROOT", ""),
			HubsFile:       getEnv("CAMPUSCONNECT_HUBS_FILE", "hubs.json"),
			HubTimeout:     getEnvDuration("CAMPUSCONNECT_HUB_TIMEOUT", 10*time.Second),
			SessionTimeout: getEnvDuration("CAMPUSCONNECT_SESSION_TIMEOUT", 2*time.Hour),
		},
		Lifecycle: LifecycleConfig{
			SMTPAddr: getEnv("CAMPUSCONNECT_SMTP_ADDR", "localhost:25"),
			SMTPFrom: getEnv("CAMPUSCONNECT_SMTP_FROM", "noreply@localhost"),
			Schedule: getEnv("CAMPUSCONNECT_LIFECYCLE_SCHEDULE", "30 3 * * *"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       parseLogLevel(getEnv("CAMPUSCONNECT_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("CAMPUSCONNECT_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Auth.WWWRoot == "" {
		return fmt.Errorf("LMS root URL (CAMPUSCONNECT_WWWROOT) is required")
	}
	if strings.HasSuffix(c.Auth.WWWRoot, "/") {
		return fmt.Errorf("LMS root URL must not end with a slash")
	}
	if c.Auth.HubsFile == "" {
		return fmt.Errorf("hubs config file is required")
	}
	if c.Auth.SessionTimeout <= 0 {
		return fmt.Errorf("session timeout must be positive")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
