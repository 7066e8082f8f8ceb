// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// N8NConfig provides the outbound automation webhook endpoints.
type N8NConfig interface {
	GetScrapeWebhookURL() string
	GetEmailWebhookURL() string
}

// CallbackConfig provides settings for the inbound callback endpoints.
type CallbackConfig interface {
	GetCallbackSecret() string
	GetCallbackRatePerMinute() int
}

// LLMConfig provides settings for the generative provider used by investigations.
type LLMConfig interface {
	GetLLMProvider() string
	GetLLMAPIKey() string
	GetLLMModel() string
}

// SchedulerConfig provides settings for the asynq background scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetRunWatchAfter() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

const (
	ProviderOpenAI     = "openai"
	ProviderPerplexity = "perplexity"
)

// Config holds all application configuration values.
type Config struct {
	Env                string
	HTTPAddr           string
	DatabaseURL        string
	JWTAccessSecret    string
	CORSAllowAll       bool
	CORSOrigins        []string
	CORSAllowCreds     bool
	ScrapeWebhookURL   string
	EmailWebhookURL    string
	CallbackSecret     string
	CallbackRatePerMin int
	LLMProvider        string
	OpenAIAPIKey       string
	PerplexityAPIKey   string
	LLMModel           string
	RedisURL           string
	RedisTLSInsecure   bool
	AsynqQueueName     string
	AsynqConcurrency   int
	RunWatchAfter      time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// N8NConfig implementation
func (c *Config) GetScrapeWebhookURL() string { return c.ScrapeWebhookURL }
func (c *Config) GetEmailWebhookURL() string  { return c.EmailWebhookURL }

// CallbackConfig implementation
func (c *Config) GetCallbackSecret() string     { return c.CallbackSecret }
func (c *Config) GetCallbackRatePerMinute() int { return c.CallbackRatePerMin }

// LLMConfig implementation
func (c *Config) GetLLMProvider() string { return c.LLMProvider }
func (c *Config) GetLLMModel() string    { return c.LLMModel }
func (c *Config) GetLLMAPIKey() string {
	if c.LLMProvider == ProviderPerplexity {
		return c.PerplexityAPIKey
	}
	return c.OpenAIAPIKey
}

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string             { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool       { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string       { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int        { return c.AsynqConcurrency }
func (c *Config) GetRunWatchAfter() time.Duration { return c.RunWatchAfter }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		JWTAccessSecret:    getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:       corsAllowAll,
		CORSOrigins:        corsOrigins,
		CORSAllowCreds:     strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		ScrapeWebhookURL:   getEnv("SCRAPE_WEBHOOK_URL", ""),
		EmailWebhookURL:    getEnv("EMAIL_WEBHOOK_URL", ""),
		CallbackSecret:     getEnv("CALLBACK_SECRET", ""),
		CallbackRatePerMin: mustInt(getEnv("CALLBACK_RATE_PER_MIN", "600")),
		LLMProvider:        strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", ProviderOpenAI))),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		PerplexityAPIKey:   getEnv("PERPLEXITY_API_KEY", ""),
		LLMModel:           getEnv("LLM_MODEL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisTLSInsecure:   strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:     getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:   mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		RunWatchAfter:      mustDuration(getEnv("RUN_WATCH_AFTER", "6h")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if err := cfg.validateLLM(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validateLLM() error {
	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER is %s", ProviderOpenAI)
		}
	case ProviderPerplexity:
		if c.PerplexityAPIKey == "" {
			return fmt.Errorf("PERPLEXITY_API_KEY is required when LLM_PROVIDER is %s", ProviderPerplexity)
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
