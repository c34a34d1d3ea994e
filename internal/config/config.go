package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Push gateway
	PushServiceBaseURL    string
	PushServiceUsername   string
	PushServicePassword   string
	PushTokenFallbackSecs int

	// Ops webhook alerts (channel stays disabled unless both are set)
	AlertWebhookID    string
	AlertWebhookToken string

	// Match settings
	MatchExpirySweepSeconds int

	// Security
	JWTSecret         string
	SessionTimeoutMin int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/puzzlerush?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Push gateway
		PushServiceBaseURL:    getEnv("PUSH_SERVICE_BASE_URL", ""),
		PushServiceUsername:   getEnv("PUSH_SERVICE_USERNAME", ""),
		PushServicePassword:   getEnv("PUSH_SERVICE_PASSWORD", ""),
		PushTokenFallbackSecs: getEnvInt("PUSH_TOKEN_FALLBACK_SECONDS", 3300),

		// Ops webhook alerts
		AlertWebhookID:    getEnv("ALERT_WEBHOOK_ID", ""),
		AlertWebhookToken: getEnv("ALERT_WEBHOOK_TOKEN", ""),

		// Match settings
		MatchExpirySweepSeconds: getEnvInt("MATCH_EXPIRY_SWEEP_SECONDS", 30),

		// Security
		JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
		SessionTimeoutMin: getEnvInt("SESSION_TIMEOUT_MINUTES", 30),
	}
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
