package config

import (
	"errors"
	"os"
	"strconv"
)

type Config struct {
	Port               string
	MongoURI           string
	MongoDB            string
	SigningSecret      string
	ClerkAPIURL        string
	ClerkSecretKey     string
	RabbitURL          string
	RabbitExchange     string
	RedisAddr          string
	WebhookDedupTTLMin int
}

func Load() Config {
	return Config{
		Port: getenv("APP_PORT", "8080"),
		// MONGODB_URI honored as an alias for drop-in compatibility
		MongoURI:           getenv("MONGO_URI", getenv("MONGODB_URI", "mongodb://localhost:27017")),
		MongoDB:            getenv("MONGO_DB", "blog"),
		SigningSecret:      os.Getenv("SIGNING_SECRET"),
		ClerkAPIURL:        getenv("CLERK_API_URL", "https://api.clerk.com"),
		ClerkSecretKey:     os.Getenv("CLERK_SECRET_KEY"),
		RabbitURL:          os.Getenv("RABBIT_URL"),
		RabbitExchange:     getenv("RABBIT_EXCHANGE", "user.events"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		WebhookDedupTTLMin: atoi(os.Getenv("WEBHOOK_DEDUP_TTL_MIN"), 1440),
	}
}

// Validate checks the settings without which the service cannot accept a
// single webhook. Everything else degrades gracefully.
func (c Config) Validate() error {
	if c.SigningSecret == "" {
		return errors.New("SIGNING_SECRET is required")
	}
	if c.MongoURI == "" {
		return errors.New("MONGO_URI is required")
	}
	return nil
}

// atoi falls back to def on anything non-numeric; a zero here would leak
// into redis TTLs as "never expire".
func atoi(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
