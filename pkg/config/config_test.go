package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_AIConfig(t *testing.T) {
	os.Setenv("AI_PROVIDER", "gemini")
	os.Setenv("AI_REQUEST_TIMEOUT", "30")
	os.Setenv("AI_FREE_DAILY_LIMIT", "3")
	os.Setenv("AI_HELPERS_ENABLED", "false")
	defer func() {
		os.Unsetenv("AI_PROVIDER")
		os.Unsetenv("AI_REQUEST_TIMEOUT")
		os.Unsetenv("AI_FREE_DAILY_LIMIT")
		os.Unsetenv("AI_HELPERS_ENABLED")
	}()

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, "gemini", cfg.AI.DefaultProvider)
	assert.Equal(t, 30*time.Second, cfg.AI.RequestTimeout)
	assert.Equal(t, 3, cfg.AI.FreeDailyLimit)
	assert.False(t, cfg.AI.Enabled)
}

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("AI_PROVIDER")
	os.Unsetenv("AI_REQUEST_TIMEOUT")
	os.Unsetenv("AI_MAX_TOKENS_VALIDATOR")

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, "openai", cfg.AI.DefaultProvider)
	assert.Equal(t, 15*time.Second, cfg.AI.RequestTimeout)
	assert.Equal(t, 40, cfg.AI.MaxTokensValidator)
	assert.Equal(t, 5, cfg.AI.FreeDailyLimit)
	assert.Equal(t, 50, cfg.AI.PaidDailyLimit)
	assert.True(t, cfg.AI.Enabled)
	assert.Equal(t, "http://localhost:8108", cfg.Typesense.URL)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5432, User: "app", Password: "secret",
		Database: "radreference", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=app password=secret dbname=radreference sslmode=disable",
		cfg.DatabaseDSN(),
	)
}
