package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config carries everything the process reads from the environment. It is
// loaded once in main and passed down explicitly; nothing else in the tree
// touches os.Getenv.
type Config struct {
	Port string

	MongoURI string
	MongoDB  string

	ZenoPayBaseURL string
	ZenoPayAPIKey  string

	WebhookAPIKey string
	JWTSecret     string

	// Optional: legacy relational mirror. Empty DSN disables it.
	MySQLDSN string

	// Optional: analytics event stream. Empty broker disables it.
	KafkaBroker string
	KafkaTopic  string

	LogLevel string
}

const defaultZenoPayBaseURL = "https://zenoapi.com/api/payments"

// Load reads .env (if present) and the environment. Missing mandatory keys
// are an error; main treats that as fatal.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		// A missing .env is normal outside local development.
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
	}

	cfg := &Config{
		Port:           getenv("PORT", "8080"),
		MongoURI:       os.Getenv("MONGOURI"),
		MongoDB:        getenv("MONGO_DB", "zenobundledb"),
		ZenoPayBaseURL: getenv("ZENOPAY_BASE_URL", defaultZenoPayBaseURL),
		ZenoPayAPIKey:  os.Getenv("ZENOPAY_API_KEY"),
		WebhookAPIKey:  os.Getenv("WEBHOOK_API_KEY"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		MySQLDSN:       os.Getenv("MYSQL_DSN"),
		KafkaBroker:    os.Getenv("KAFKA_BROKER_ADDRESS"),
		KafkaTopic:     getenv("KAFKA_TOPIC", "payments.completed"),
		LogLevel:       getenv("LOG_LEVEL", "INFO"),
	}

	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGOURI environment variable not set")
	}
	if cfg.ZenoPayAPIKey == "" {
		return nil, fmt.Errorf("ZENOPAY_API_KEY environment variable not set")
	}
	if cfg.WebhookAPIKey == "" {
		return nil, fmt.Errorf("WEBHOOK_API_KEY environment variable not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable not set")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
