package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	OpenAIAPIKey       string
	TelegramToken      string
	TelegramWebhookURL string
	DatabaseURL        string
	DomainsFile        string
	DefaultTags        []string
	DeliveryCron       string
	VerifyCacheTTL     time.Duration
	ServerPort         string
	LogLevel           string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, using process environment")
	}

	return &Config{
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		TelegramToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramWebhookURL: getEnv("TELEGRAM_WEBHOOK_URL", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DomainsFile:        getEnv("DOMAINS_FILE", ""),
		DefaultTags:        defaultTags,
		DeliveryCron:       getEnv("DELIVERY_CRON", "0 9 * * *"),
		VerifyCacheTTL:     getEnvAsDuration("VERIFY_CACHE_TTL", 1*time.Hour),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

// Tags a fresh profile is seeded with, all at the neutral weight.
var defaultTags = []string{
	"Philosophy",
	"Economics",
	"History",
	"Science",
	"Technology",
	"Literature",
	"Psychology",
	"Politics",
}

// SlogLevel maps the configured log level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
