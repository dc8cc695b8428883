package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config describes the top-level application configuration loaded from YAML and ENV.
type Config struct {
	Version    string                    `mapstructure:"version"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Models     map[string]ModelConfig    `mapstructure:"models"`
	Chat       ChatConfig                `mapstructure:"chat"`
	Resilience ResilienceConfig          `mapstructure:"resilience"`
	Tools      ToolsConfig               `mapstructure:"tools"`
	Logging    LoggingConfig             `mapstructure:"logging"`
	Server     ServerConfig              `mapstructure:"server"`
}

// ProviderConfig represents LLM provider configuration such as OpenAI, Ollama, or custom gateways.
type ProviderConfig struct {
	Type      string        `mapstructure:"type"`       // openai, openrouter, ollama, vllm, lmstudio, custom
	Model     string        `mapstructure:"model"`      // default model for the provider
	BaseURL   string        `mapstructure:"base_url"`   // API base URL
	APIKey    string        `mapstructure:"api_key"`    // optional API key
	Timeout   time.Duration `mapstructure:"timeout"`    // per-call deadline
	MaxTokens int           `mapstructure:"max_tokens"` // optional provider-level token cap
}

// ModelConfig binds a logical model name to a provider entry and model parameters.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Default     bool    `mapstructure:"default"`
}

// ChatConfig describes the streaming chat loop parameters.
type ChatConfig struct {
	MaxSteps      int    `mapstructure:"max_steps"`      // resume generations after tool results
	MaxTokens     int    `mapstructure:"max_tokens"`
	Temperature   float64 `mapstructure:"temperature"`
	SystemPrompt  string `mapstructure:"system_prompt"`
	DocumentModel string `mapstructure:"document_model"` // model used by document tools (default: request model)
}

// ResilienceConfig groups the cache/retry/breaker policies wrapping upstream calls.
type ResilienceConfig struct {
	Cache   CacheConfig   `mapstructure:"cache"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// RetryConfig controls backoff for retryable upstream failures.
type RetryConfig struct {
	MaxRetries  int           `mapstructure:"max_retries"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
}

// BreakerConfig controls the circuit breaker around the model dependency.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

// ToolsConfig configures tool availability and collaborator endpoints.
type ToolsConfig struct {
	EnableDocuments       bool   `mapstructure:"enable_documents"`
	EnableSuggestions     bool   `mapstructure:"enable_suggestions"`
	EnableWeather         bool   `mapstructure:"enable_weather"`
	WeatherBaseURL        string `mapstructure:"weather_base_url"`
	WeatherTimeoutSeconds int    `mapstructure:"weather_timeout_seconds"`
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// ServerConfig describes daemon settings.
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	Transport      string `mapstructure:"transport"` // connect or ndjson
}

// Load reads configuration from the provided path or defaults to configs/config.yaml.
// Environment variables override file values (prefix: INKWELL_, dots replaced with underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("INKWELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && path == "" {
			v.SetConfigName("config.example")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates sensible defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("chat.max_steps", 5)
	v.SetDefault("chat.max_tokens", 2048)
	v.SetDefault("chat.temperature", 0.2)
	v.SetDefault("chat.system_prompt", "")
	v.SetDefault("chat.document_model", "")

	v.SetDefault("resilience.cache.enabled", true)
	v.SetDefault("resilience.cache.ttl", 5*time.Minute)
	v.SetDefault("resilience.cache.sweep_interval", time.Minute)
	v.SetDefault("resilience.retry.max_retries", 3)
	v.SetDefault("resilience.retry.base_backoff", time.Second)
	v.SetDefault("resilience.retry.max_backoff", 30*time.Second)
	v.SetDefault("resilience.breaker.failure_threshold", 5)
	v.SetDefault("resilience.breaker.reset_timeout", 30*time.Second)

	v.SetDefault("tools.enable_documents", true)
	v.SetDefault("tools.enable_suggestions", true)
	v.SetDefault("tools.enable_weather", true)
	v.SetDefault("tools.weather_base_url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("tools.weather_timeout_seconds", 10)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.transport", "connect")
}

// Validate performs basic sanity checks on configuration values.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}

	if len(c.Models) == 0 {
		return errors.New("at least one model must be defined")
	}

	for name, p := range c.Providers {
		if p.Type == "" {
			return fmt.Errorf("provider %q must define type", name)
		}
	}

	var defaultFound bool
	for name, m := range c.Models {
		if m.Provider == "" {
			return fmt.Errorf("model %q must reference provider", name)
		}

		if _, ok := c.Providers[m.Provider]; !ok {
			return fmt.Errorf("model %q references unknown provider %q", name, m.Provider)
		}

		if m.Temperature < 0 || m.Temperature > 2 {
			return fmt.Errorf("model %q temperature must be within [0,2]", name)
		}

		if m.MaxTokens < 0 {
			return fmt.Errorf("model %q max_tokens cannot be negative", name)
		}

		if m.Default {
			defaultFound = true
		}
	}

	if !defaultFound {
		return errors.New("at least one model should be marked as default")
	}

	if c.Chat.MaxSteps <= 0 {
		return errors.New("chat.max_steps must be > 0")
	}
	if c.Chat.DocumentModel != "" {
		if _, ok := c.Models[c.Chat.DocumentModel]; !ok {
			return fmt.Errorf("chat.document_model references unknown model %q", c.Chat.DocumentModel)
		}
	}

	if c.Resilience.Cache.TTL <= 0 {
		return errors.New("resilience.cache.ttl must be > 0")
	}
	if c.Resilience.Cache.SweepInterval <= 0 {
		return errors.New("resilience.cache.sweep_interval must be > 0")
	}
	if c.Resilience.Retry.MaxRetries < 0 {
		return errors.New("resilience.retry.max_retries must be >= 0")
	}
	if c.Resilience.Retry.BaseBackoff <= 0 {
		return errors.New("resilience.retry.base_backoff must be > 0")
	}
	if c.Resilience.Retry.MaxBackoff < c.Resilience.Retry.BaseBackoff {
		return errors.New("resilience.retry.max_backoff must be >= base_backoff")
	}
	if c.Resilience.Breaker.FailureThreshold <= 0 {
		return errors.New("resilience.breaker.failure_threshold must be > 0")
	}
	if c.Resilience.Breaker.ResetTimeout <= 0 {
		return errors.New("resilience.breaker.reset_timeout must be > 0")
	}

	if c.Tools.EnableWeather {
		if strings.TrimSpace(c.Tools.WeatherBaseURL) == "" {
			return errors.New("tools.weather_base_url must be set when tools.enable_weather is true")
		}
		if c.Tools.WeatherTimeoutSeconds <= 0 {
			return errors.New("tools.weather_timeout_seconds must be > 0")
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Server.Transport)) {
	case "", "connect", "ndjson":
	default:
		return fmt.Errorf("server.transport must be one of connect or ndjson, got %q", c.Server.Transport)
	}

	return nil
}
