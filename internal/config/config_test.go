package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	configYAML := `
version: "0.1.0"
providers:
  openai:
    type: openai
    base_url: https://api.openai.com
    api_key: dummy
    timeout: 30s
models:
  chat:
    provider: openai
    model: gpt-4o
    temperature: 0.2
    max_tokens: 2048
    default: true
chat:
  max_steps: 3
resilience:
  cache:
    ttl: 2m
`

	require.NoError(t, os.WriteFile(cfgPath, []byte(configYAML), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, "openai", cfg.Models["chat"].Provider)
	require.Equal(t, 3, cfg.Chat.MaxSteps)
	require.Equal(t, 2*time.Minute, cfg.Resilience.Cache.TTL)
	// Defaults fill the rest.
	require.Equal(t, 3, cfg.Resilience.Retry.MaxRetries)
	require.Equal(t, 5, cfg.Resilience.Breaker.FailureThreshold)
	require.True(t, cfg.Tools.EnableDocuments)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	configYAML := `
providers:
  local:
    type: ollama
    base_url: http://127.0.0.1:11434
models:
  chat:
    provider: local
    model: llama3
    default: true
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(configYAML), 0o644))

	t.Setenv("INKWELL_CHAT_MAX_STEPS", "7")
	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Chat.MaxSteps)
}

func TestValidateFailsOnUnknownProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Models["broken"] = ModelConfig{Provider: "missing", Default: true}

	require.Error(t, cfg.Validate())
}

func TestValidateFailsOnBadResilience(t *testing.T) {
	cfg := validConfig()
	cfg.Resilience.Breaker.FailureThreshold = 0
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Resilience.Retry.MaxBackoff = time.Millisecond
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Resilience.Cache.TTL = 0
	require.Error(t, cfg.Validate())
}

func TestValidateFailsOnUnknownDocumentModel(t *testing.T) {
	cfg := validConfig()
	cfg.Chat.DocumentModel = "ghost"
	require.Error(t, cfg.Validate())
}

func validConfig() *Config {
	return &Config{
		Providers: map[string]ProviderConfig{
			"openai": {Type: "openai"},
		},
		Models: map[string]ModelConfig{
			"chat": {Provider: "openai", Model: "gpt-4o", Default: true},
		},
		Chat: ChatConfig{MaxSteps: 5},
		Resilience: ResilienceConfig{
			Cache:   CacheConfig{Enabled: true, TTL: 5 * time.Minute, SweepInterval: time.Minute},
			Retry:   RetryConfig{MaxRetries: 3, BaseBackoff: time.Second, MaxBackoff: 30 * time.Second},
			Breaker: BreakerConfig{FailureThreshold: 5, ResetTimeout: 30 * time.Second},
		},
		Tools: ToolsConfig{
			EnableWeather:         true,
			WeatherBaseURL:        "https://api.open-meteo.com",
			WeatherTimeoutSeconds: 10,
		},
	}
}
