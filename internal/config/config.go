package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries process-level settings resolved from the environment.
type Config struct {
	ServiceName string
	Environment string
	HTTPAddr    string
	DatabaseDSN string

	WebhookSecret        string
	WebhookRateLimit     int
	WebhookRateWindow    time.Duration
	OTLPEndpoint         string
	TracingEnabled       bool
	RolloverToRent       bool
	OccupancyPoll        time.Duration
	OccupancyBatchSize   int
	QuoteCacheTTL        time.Duration
	APIKeyTTL            time.Duration
	EnsureDefaultOrg     bool
	DefaultAdminEmail    string
	DefaultAdminPassword string
}

// Load reads configuration from the environment, honoring a local .env file
// when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		ServiceName: envString("SERVICE_NAME", "rentflow"),
		Environment: envString("ENVIRONMENT", "development"),
		HTTPAddr:    envString("HTTP_ADDR", ":8080"),
		DatabaseDSN: envString("DATABASE_DSN", "file::memory:?cache=shared"),

		WebhookSecret:        strings.TrimSpace(os.Getenv("PAYMENT_WEBHOOK_SECRET")),
		WebhookRateLimit:     envInt("WEBHOOK_RATE_LIMIT", 120),
		WebhookRateWindow:    envDuration("WEBHOOK_RATE_WINDOW", time.Minute),
		OTLPEndpoint:         strings.TrimSpace(os.Getenv("OTLP_ENDPOINT")),
		TracingEnabled:       envBool("TRACING_ENABLED", false),
		RolloverToRent:       envBool("ROLLOVER_LEFTOVER_TO_RENT", false),
		OccupancyPoll:        envDuration("OCCUPANCY_POLL_INTERVAL", 30*time.Second),
		OccupancyBatchSize:   envInt("OCCUPANCY_BATCH_SIZE", 50),
		QuoteCacheTTL:        envDuration("QUOTE_CACHE_TTL", 30*time.Second),
		APIKeyTTL:            envDuration("API_KEY_TTL", 30*24*time.Hour),
		EnsureDefaultOrg:     envBool("BOOTSTRAP_DEFAULT_ORG", true),
		DefaultAdminEmail:    envString("BOOTSTRAP_ADMIN_EMAIL", "admin@rentflow.local"),
		DefaultAdminPassword: envString("BOOTSTRAP_ADMIN_PASSWORD", "admin"),
	}
}

// IsProduction reports whether the process runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func envString(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
