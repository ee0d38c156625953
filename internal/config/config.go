package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	FrontendURL      string
	RedisURL         string
	RedisTimeout     time.Duration
	RabbitMQURL      string
	EncryptionSecret string
	PolicyFile       string
	CriticalOverage  float64
	EvaluateSchedule string
	EnableHSTS       bool
	ServerDebugMode  bool
	WorkerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string
}

// Load loads configuration from environment variables.
//
// REDIS_URL is optional: when empty the rate limiter falls back to the
// in-process counter store and reports degraded mode. RABBITMQ_URL is
// optional: when empty alerts go to the structured log only.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTimeout:     time.Duration(getEnvInt("REDIS_TIMEOUT_MS", 2000)) * time.Millisecond,
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		EncryptionSecret: getEnv("ENCRYPTION_SECRET", ""),
		PolicyFile:       getEnv("RATE_LIMIT_POLICY_FILE", ""),
		CriticalOverage:  getEnvFloat("ALERT_CRITICAL_OVERAGE", 0.5),
		EvaluateSchedule: getEnv("EVALUATE_SCHEDULE", "@every 5m"),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.EncryptionSecret == "" {
		return nil, fmt.Errorf("ENCRYPTION_SECRET is required for credential storage")
	}

	if cfg.CriticalOverage <= 0 {
		return nil, fmt.Errorf("ALERT_CRITICAL_OVERAGE must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
