package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	AI        AIConfig
	OTEL      OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// AIConfig holds the helper card generation configuration
type AIConfig struct {
	Enabled            bool
	DefaultProvider    string
	OpenAIAPIKey       string
	OpenAIModel        string
	GeminiAPIKey       string
	GeminiModel        string
	QubridAPIKey       string
	QubridModel        string
	MaxTokens          int
	MaxTokensValidator int
	RequestTimeout     time.Duration
	FreeDailyLimit     int
	PaidDailyLimit     int
	MaxDailyCalls      int
	RateLimitRPM       int
	RateLimitBurst     int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "radreference"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		AI: AIConfig{
			Enabled:            getEnvAsBool("AI_HELPERS_ENABLED", true),
			DefaultProvider:    getEnv("AI_PROVIDER", "openai"),
			OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:        getEnv("AI_MODEL", "gpt-4o-mini"),
			GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
			GeminiModel:        getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			QubridAPIKey:       getEnv("QUBRID_API_KEY", ""),
			QubridModel:        getEnv("QUBRID_MODEL", "qubrid-chat"),
			MaxTokens:          getEnvAsInt("AI_MAX_TOKENS", 1800),
			MaxTokensValidator: getEnvAsInt("AI_MAX_TOKENS_VALIDATOR", 40),
			RequestTimeout:     time.Duration(getEnvAsInt("AI_REQUEST_TIMEOUT", 15)) * time.Second,
			FreeDailyLimit:     getEnvAsInt("AI_FREE_DAILY_LIMIT", 5),
			PaidDailyLimit:     getEnvAsInt("AI_PAID_DAILY_LIMIT", 50),
			MaxDailyCalls:      getEnvAsInt("AI_MAX_DAILY_CALLS_PER_USER", 0),
			RateLimitRPM:       getEnvAsInt("AI_RATE_LIMIT_RPM", 60),
			RateLimitBurst:     getEnvAsInt("AI_RATE_LIMIT_BURST", 5),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "radreference"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
