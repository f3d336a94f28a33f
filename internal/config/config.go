package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration, read once at process startup.
type Config struct {
	AllowPublicRegistration bool
	DatabaseURL             string
	DefaultAppURL           string

	JWTPrivateKeyPEM string
	JWTIssuer        string
	JWTAudience      string
	AccessTokenTTL   time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	EncryptionKeyHex string

	DefaultChannelRateLimitPerSecond   int
	DefaultChannelMonthlyMessageLimit int

	WebhookVerifyToken string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

// Load reads configuration from environment variables, following the
// teacher's getEnvAsBool/getEnvAsX accessor pattern extended with the
// typed helpers the expanded settings need.
func Load() Config {
	return Config{
		AllowPublicRegistration: getEnvAsBool("ALLOW_PUBLIC_REGISTRATION", false),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		DefaultAppURL:           getEnvAsString("APP_URL", "http://localhost:3000"),

		JWTPrivateKeyPEM: os.Getenv("JWT_PRIVATE_KEY"),
		JWTIssuer:        getEnvAsString("JWT_ISSUER", "tenantcore"),
		JWTAudience:      getEnvAsString("JWT_AUDIENCE", "tenantcore-api"),
		AccessTokenTTL:   getEnvAsDuration("ACCESS_TOKEN_TTL", 15*time.Minute),

		RedisAddr:     getEnvAsString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		EncryptionKeyHex: os.Getenv("CHANNEL_ENCRYPTION_KEY"),

		DefaultChannelRateLimitPerSecond:   getEnvAsInt("CHANNEL_RATE_LIMIT_PER_SECOND", 80),
		DefaultChannelMonthlyMessageLimit:  getEnvAsInt("CHANNEL_MONTHLY_MESSAGE_LIMIT", 80),

		WebhookVerifyToken: os.Getenv("WEBHOOK_VERIFY_TOKEN"),

		OutboxPollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:    getEnvAsInt("OUTBOX_BATCH_SIZE", 50),
	}
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvAsString(name, defaultVal string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return defaultVal
}

func getEnvAsInt(name string, defaultVal int) int {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := time.ParseDuration(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}
