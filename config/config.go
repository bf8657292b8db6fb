package config

import (
	"os"
	"strconv"
	"time"
)

var EnableWebsocketEvents bool
var EnableWebhook bool

type Config struct {
	Port               string
	DBConnectionString string

	// Root directory holding one credential directory per session.
	CredentialRoot string

	// Reconnect policy for transient socket disconnects.
	ReconnectBaseDelay  time.Duration
	ReconnectMaxDelay   time.Duration
	ReconnectMaxRetries int

	// Retry policy for socket construction failures. These are local
	// errors (filesystem contention, store open races), so the retries
	// are fewer and the delay grows linearly instead of doubling.
	ConnectRetryDelay time.Duration
	ConnectMaxRetries int

	// How long a destroyed session stays queryable by id.
	TombstoneTTL time.Duration

	WebhookURL    string
	WebhookSecret string
}

func Load() *Config {
	return &Config{
		Port:                getEnv("PORT", "2121"),
		DBConnectionString:  getEnv("APP_DATABASE_URL", ""),
		CredentialRoot:      getEnv("CREDENTIAL_ROOT", "./credentials"),
		ReconnectBaseDelay:  getEnvAsDuration("RECONNECT_BASE_DELAY", 2*time.Second),
		ReconnectMaxDelay:   getEnvAsDuration("RECONNECT_MAX_DELAY", 60*time.Second),
		ReconnectMaxRetries: getEnvAsInt("RECONNECT_MAX_RETRIES", 5),
		ConnectRetryDelay:   getEnvAsDuration("CONNECT_RETRY_DELAY", time.Second),
		ConnectMaxRetries:   getEnvAsInt("CONNECT_MAX_RETRIES", 3),
		TombstoneTTL:        getEnvAsDuration("SESSION_TOMBSTONE_TTL", 5*time.Minute),
		WebhookURL:          getEnv("WEBHOOK_URL", ""),
		WebhookSecret:       getEnv("WEBHOOK_SECRET", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
