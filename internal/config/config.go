package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kitbuilder587/review-factory/internal/domain"
)

var (
	ErrInvalidProvider = errors.New("LLM_PROVIDER must be mock or openrouter")
	ErrMissingAPIKey   = errors.New("OPENROUTER_API_KEY is required for openrouter provider")
	ErrInvalidWorkers  = errors.New("FACTORY_WORKERS must be positive")
)

const (
	ProviderMock       = "mock"
	ProviderOpenRouter = "openrouter"
)

type Config struct {
	LLM       LLMConfig
	Log       LogConfig
	Verify    VerifyConfig
	Adapt     AdaptConfig
	Factory   FactoryConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
}

type LLMConfig struct {
	Provider    string
	Timeout     time.Duration
	Temperature *float64
	MaxTokens   int
	OpenRouter  OpenRouterConfig
}

type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type LogConfig struct {
	Level string
}

type VerifyConfig struct {
	MaxRetries int
	Strictness float64
	Logging    bool
}

type AdaptConfig struct {
	Window     int
	MinRetries int
	MaxRetries int
	RaiseBelow float64
	LowerAbove float64
}

type FactoryConfig struct {
	Workers int
}

// CacheConfig. TTL 0 - кеш выключен
type CacheConfig struct {
	TTL time.Duration
}

// RateLimitConfig. 0 - без ограничения
type RateLimitConfig struct {
	RequestsPerMinute int
}

// MetricsConfig. пустой Addr - /metrics не поднимаем
type MetricsConfig struct {
	Addr string
}

func Load() (*Config, error) {
	cfg := &Config{
		LLM: LLMConfig{
			Provider:    strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderMock)),
			Timeout:     time.Duration(getEnvIntOrDefault("LLM_TIMEOUT_SEC", 60)) * time.Second,
			Temperature: getEnvFloatPtr("LLM_TEMPERATURE"),
			MaxTokens:   getEnvIntOrDefault("LLM_MAX_TOKENS", 0),
			OpenRouter: OpenRouterConfig{
				APIKey:  os.Getenv("OPENROUTER_API_KEY"),
				Model:   getEnvOrDefault("OPENROUTER_MODEL", "deepseek/deepseek-chat"),
				BaseURL: getEnvOrDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			},
		},
		Log: LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
		},
		Verify: VerifyConfig{
			MaxRetries: getEnvIntOrDefault("VERIFY_MAX_RETRIES", 2),
			Strictness: getEnvFloatOrDefault("VERIFY_STRICTNESS", 0.7),
			Logging:    getEnvBoolOrDefault("VERIFY_LOGGING", true),
		},
		Adapt: AdaptConfig{
			Window:     getEnvIntOrDefault("ADAPT_WINDOW", 10),
			MinRetries: getEnvIntOrDefault("ADAPT_MIN_RETRIES", 0),
			MaxRetries: getEnvIntOrDefault("ADAPT_MAX_RETRIES", 5),
			RaiseBelow: getEnvFloatOrDefault("ADAPT_RAISE_BELOW", domain.DefaultAdaptRaiseBelow),
			LowerAbove: getEnvFloatOrDefault("ADAPT_LOWER_ABOVE", domain.DefaultAdaptLowerAbove),
		},
		Factory: FactoryConfig{
			Workers: getEnvIntOrDefault("FACTORY_WORKERS", 4),
		},
		Cache: CacheConfig{
			TTL: time.Duration(getEnvIntOrDefault("CACHE_TTL_SEC", 3600)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvIntOrDefault("LLM_REQUESTS_PER_MINUTE", 0),
		},
		Metrics: MetricsConfig{
			Addr: os.Getenv("METRICS_ADDR"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderMock:
	case ProviderOpenRouter:
		if c.LLM.OpenRouter.APIKey == "" {
			return ErrMissingAPIKey
		}
	default:
		return ErrInvalidProvider
	}
	if c.Factory.Workers <= 0 {
		return ErrInvalidWorkers
	}
	return c.AdaptiveConfig().Validate()
}

// AdaptiveConfig - шаблон для циклов стадий, имя проставляет фабрика
func (c *Config) AdaptiveConfig() domain.AdaptiveConfig {
	return domain.AdaptiveConfig{
		Loop: domain.LoopConfig{
			MaxRetries:      c.Verify.MaxRetries,
			StrictnessLevel: c.Verify.Strictness,
			Logging:         c.Verify.Logging,
		},
		Window:        c.Adapt.Window,
		MinRetries:    c.Adapt.MinRetries,
		MaxMaxRetries: c.Adapt.MaxRetries,
		Step:          domain.DefaultAdaptStep,
		RaiseBelow:    c.Adapt.RaiseBelow,
		LowerAbove:    c.Adapt.LowerAbove,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvFloatPtr(key string) *float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return &f
		}
	}
	return nil
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
