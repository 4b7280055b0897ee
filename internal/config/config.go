package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string

	DatabaseURL string

	RedisURL string

	JWTSecret string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	ResendAPIKey string
	FromEmail    string
	AppBaseURL   string

	CORSOrigins string

	// Delivery engine knobs. Zero configuration is safe: the defaults
	// below match the baked-in acknowledgement policy.
	AckTimeoutCritical time.Duration
	AckTimeoutHigh     time.Duration
	MaxRetries         int
	MetricsWindow      int
	PushWriteTimeout   time.Duration
	StoreTimeout       time.Duration
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinIOBucket:    getEnv("MINIO_BUCKET", "clinic-xrays"),
		MinIOUseSSL:    getBoolEnv("MINIO_USE_SSL", false),

		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		FromEmail:    getEnv("FROM_EMAIL", "alerts@example.com"),
		AppBaseURL:   getEnv("APP_BASE_URL", "http://localhost:5173"),

		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:5173"),

		AckTimeoutCritical: getDurationEnv("ACK_TIMEOUT_CRITICAL", 30*time.Second),
		AckTimeoutHigh:     getDurationEnv("ACK_TIMEOUT_HIGH", 60*time.Second),
		MaxRetries:         getIntEnv("NOTIFY_MAX_RETRIES", 3),
		MetricsWindow:      getIntEnv("METRICS_WINDOW", 1000),
		PushWriteTimeout:   getDurationEnv("PUSH_WRITE_TIMEOUT", 5*time.Second),
		StoreTimeout:       getDurationEnv("STORE_TIMEOUT", 5*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
