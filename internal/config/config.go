// Package config reads service settings from the environment (and .env).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port           string
	BaseURL        string
	DBDSN          string
	JWTSecret      string
	TokenTTL       time.Duration
	AllowedOrigins []string
	LogLevel       string
	LogPretty      bool
	SQLDebug       bool

	FreeShippingThreshold decimal.Decimal
	DeliveryFee           decimal.Decimal

	RedisAddr      string
	IdempotencyTTL time.Duration

	KafkaBrokers    []string
	KafkaOrderTopic string

	GeminiAPIKey string
	GeminiModel  string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads .env when present and then the process environment.
// It reports whether a .env file was found so callers can log it.
func Load() (*Config, bool, error) {
	envFile := godotenv.Load() == nil
	cfg, err := FromEnv()
	return cfg, envFile, err
}

// FromEnv builds a Config from the current environment.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:            getEnvOrDefault("PORT", "8080"),
		BaseURL:         getEnvOrDefault("BASE_URL", "http://localhost:8080"),
		DBDSN:           os.Getenv("DB_DSN"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		AllowedOrigins:  splitList(getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaOrderTopic: getEnvOrDefault("KAFKA_ORDER_TOPIC", "order-events"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash-001"),
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	cfg.LogPretty, err = parseBool("LOG_PRETTY", false)
	collect(err)
	cfg.SQLDebug, err = parseBool("SQL_DEBUG", false)
	collect(err)
	cfg.TokenTTL, err = parseDuration("TOKEN_TTL", 24*time.Hour)
	collect(err)
	cfg.IdempotencyTTL, err = parseDuration("IDEMPOTENCY_TTL", 24*time.Hour)
	collect(err)
	cfg.FreeShippingThreshold, err = parseMoney("FREE_SHIPPING_THRESHOLD", "1000")
	collect(err)
	cfg.DeliveryFee, err = parseMoney("DELIVERY_FEE", "50")
	collect(err)
	cfg.RateLimitRPS, err = parseFloat("RATE_LIMIT_RPS", 5)
	collect(err)
	cfg.RateLimitBurst, err = parseInt("RATE_LIMIT_BURST", 10)
	collect(err)

	if cfg.DBDSN == "" {
		collect(errors.New("config: DB_DSN is required"))
	}
	if cfg.JWTSecret == "" {
		collect(errors.New("config: JWT_SECRET is required"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func parseInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func parseFloat(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func parseMoney(key, def string) (decimal.Decimal, error) {
	raw := getEnvOrDefault(key, def)
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: %s: %w", key, err)
	}
	if v.IsNegative() {
		return decimal.Zero, fmt.Errorf("config: %s must not be negative", key)
	}
	return v, nil
}
