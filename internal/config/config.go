// Package config provides unified configuration loading for the chat engine.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the chat engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Store         StoreConfig         `yaml:"store"`
	Cache         CacheConfig         `yaml:"cache"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// StoreConfig holds record store connection settings.
type StoreConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Driver        string        `yaml:"driver"` // memory or redis
	TTL           time.Duration `yaml:"ttl"`
	MaxEntries    int           `yaml:"max_entries"`
	MinSimilarity float64       `yaml:"min_similarity"`
	MinTokens     int           `yaml:"min_tokens"`
	Redis         RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// ProvidersConfig holds per-provider credentials and model mappings.
// A provider is enabled purely by the presence of its credential.
type ProvidersConfig struct {
	Google     ProviderCredentials `yaml:"google"`
	OpenRouter ProviderCredentials `yaml:"openrouter"`
	Groq       ProviderCredentials `yaml:"groq"`
	Local      ProviderCredentials `yaml:"local"`

	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// ProviderCredentials holds one provider's key, endpoint and model tiers.
type ProviderCredentials struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	FlashModel string `yaml:"flash_model"`
	ProModel   string `yaml:"pro_model"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     90 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Store: StoreConfig{
			BaseURL: "https://pocketbase.startfranchise.id",
			Timeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Driver:        "memory",
			TTL:           30 * time.Minute,
			MaxEntries:    500,
			MinSimilarity: 0.84,
			MinTokens:     3,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Providers: ProvidersConfig{
			Google: ProviderCredentials{
				FlashModel: "gemini-2.0-flash",
				ProModel:   "gemini-2.5-pro-preview-05-06",
			},
			OpenRouter: ProviderCredentials{
				BaseURL:    "https://openrouter.ai/api/v1",
				FlashModel: "google/gemini-2.0-flash-exp:free",
				ProModel:   "google/gemini-2.5-pro-exp-03-25:free",
			},
			Groq: ProviderCredentials{
				BaseURL:    "https://api.groq.com/openai/v1",
				FlashModel: "llama-3.3-70b-versatile",
				ProModel:   "llama-3.3-70b-versatile",
			},
			Local:          ProviderCredentials{},
			AttemptTimeout: 60 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "chat-engine",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Cache.MinSimilarity <= 0 || c.Cache.MinSimilarity > 1 {
		return fmt.Errorf("min_similarity must be in (0, 1]")
	}

	if c.Store.BaseURL == "" {
		return fmt.Errorf("store base_url is required")
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("POCKETBASE_URL"); v != "" {
		cfg.Store.BaseURL = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = v
	}

	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Cache.Redis.Password = v
	}

	if v := os.Getenv("AI_SEMANTIC_CACHE_MIN_SIMILARITY"); v != "" {
		var sim float64
		if _, err := fmt.Sscanf(v, "%f", &sim); err == nil {
			cfg.Cache.MinSimilarity = sim
		}
	}

	if v := os.Getenv("AI_SEMANTIC_CACHE_MIN_TOKENS"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			cfg.Cache.MinTokens = n
		}
	}

	if v := os.Getenv("GOOGLE_AI_API_KEY"); v != "" {
		cfg.Providers.Google.APIKey = v
	}

	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.Providers.OpenRouter.APIKey = v
	}

	if v := os.Getenv("OPENROUTER_MODEL_FLASH"); v != "" {
		cfg.Providers.OpenRouter.FlashModel = v
	}

	if v := os.Getenv("OPENROUTER_MODEL_PRO"); v != "" {
		cfg.Providers.OpenRouter.ProModel = v
	}

	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		cfg.Providers.Groq.APIKey = v
	}

	if v := os.Getenv("LOCAL_AI_BASE_URL"); v != "" {
		cfg.Providers.Local.BaseURL = v
	}

	if v := os.Getenv("LOCAL_AI_API_KEY"); v != "" {
		cfg.Providers.Local.APIKey = v
	}

	if v := os.Getenv("LOCAL_AI_MODEL"); v != "" {
		if cfg.Providers.Local.FlashModel == "" {
			cfg.Providers.Local.FlashModel = v
		}
		if cfg.Providers.Local.ProModel == "" {
			cfg.Providers.Local.ProModel = v
		}
	}

	if v := os.Getenv("LOCAL_AI_MODEL_FLASH"); v != "" {
		cfg.Providers.Local.FlashModel = v
	}

	if v := os.Getenv("LOCAL_AI_MODEL_PRO"); v != "" {
		cfg.Providers.Local.ProModel = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
