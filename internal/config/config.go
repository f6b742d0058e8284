package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabaseURL       string `validate:"required"`
	MaxToken          string `validate:"required"`
	MaxBaseURL        string `validate:"required,url"`
	OpenAIKey         string
	AIModel           string
	AIBaseURL         string
	RedisURL          string `validate:"required"`
	RabbitMQURL       string `validate:"required"`
	RabbitMQPrefetch  int    `validate:"min=1"`
	AdminPort         string
	AdminToken        string
	AdminRatelimit    string
	AdminPublicURL    string
	LongPollTimeout   time.Duration
	MembershipSync    time.Duration
	DefaultRemindLead time.Duration
	DebugMode         bool
	OTELEnabled       bool
	OTELEndpoint      string
}

// Load loads configuration from environment variables. A .env file in the
// working directory, if present, is loaded first for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		MaxToken:          getEnv("MAX_BOT_TOKEN", ""),
		MaxBaseURL:        getEnv("MAX_API_BASE_URL", "https://botapi.max.ru"),
		OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
		AIModel:           getEnv("AI_MODEL", ""),
		AIBaseURL:         getEnv("AI_BASE_URL", ""),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:       getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch:  getEnvInt("RABBITMQ_PREFETCH", 1),
		AdminPort:         getEnv("ADMIN_PORT", "8080"),
		AdminToken:        getEnv("ADMIN_TOKEN", ""),
		AdminRatelimit:    getEnv("ADMIN_RATELIMIT", "10-S"),
		AdminPublicURL:    getEnv("ADMIN_PUBLIC_URL", ""),
		LongPollTimeout:   getEnvDuration("LONGPOLL_TIMEOUT", 30*time.Second),
		MembershipSync:    getEnvDuration("MEMBERSHIP_SYNC_INTERVAL", time.Hour),
		DefaultRemindLead: getEnvDuration("DEFAULT_REMIND_LEAD", 120*time.Minute),
		DebugMode:         getEnvBool("DEBUG_MODE", false),
		OTELEnabled:       getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
