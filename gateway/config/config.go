// Package config loads the gateway's runtime configuration: budget defaults,
// response store backend selection, MCP startup loading, and per-provider
// base URLs/credentials. It follows the project's viper-file+
// env-var+defaults layering idiom.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/masaicai/openresponses/gateway/budget"
)

// StoreType selects the Response Store backend.
type StoreType string

const (
	StoreInMemory StoreType = "in_memory"
	StoreMongoDB  StoreType = "mongodb"
)

// ProviderCredentials is one upstream LLM provider's base URL, API key, and
// default model, sourced from per-provider environment variables.
type ProviderCredentials struct {
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
}

// builtinDefaultModel is the model identifier used for a provider family
// when no "<PROVIDER>_DEFAULT_MODEL" environment variable is set. Callers
// may always override per request via the "<provider>@<model>" naming
// convention; these only matter for the bare-model case.
var builtinDefaultModel = map[string]string{
	"openai":     "gpt-4o",
	"anthropic":  "claude-sonnet-4-20250514",
	"groq":       "llama-3.3-70b-versatile",
	"xai":        "grok-2-latest",
	"togetherai": "meta-llama/Llama-3.3-70B-Instruct-Turbo",
	"bedrock":    "us.anthropic.claude-sonnet-4-20250514-v1:0",
}

// Config is the gateway's fully resolved configuration.
type Config struct {
	Port int `mapstructure:"port"`

	LogLevel  string `mapstructure:"log_level"`  // debug | info | warn | error
	LogFormat string `mapstructure:"log_format"` // json | console

	MaxIterations    int `mapstructure:"max_iterations"`
	MaxDurationMs    int `mapstructure:"max_duration_ms"`
	PerToolTimeoutMs int `mapstructure:"per_tool_timeout_ms"`

	StoreType StoreType `mapstructure:"store_type"`
	MongoURI  string    `mapstructure:"mongo_uri"`
	MongoDB   string    `mapstructure:"mongo_database"`

	MCPEnabled    bool   `mapstructure:"mcp_enabled"`
	MCPConfigPath string `mapstructure:"mcp_config_path"`

	RedisAddr string `mapstructure:"redis_addr"`

	// RateLimitTPM is the initial tokens-per-minute budget the Provider
	// Registry enforces per provider family via an adaptive rate limiter
	// (0 disables rate limiting entirely). When RedisAddr is also set, the
	// budget is coordinated across every gateway process sharing that Redis
	// instance instead of being tracked per-process.
	RateLimitTPM int `mapstructure:"rate_limit_tpm"`

	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// DefaultMaxTokens caps completion length when neither the request nor a
	// provider-specific default supplies one.
	DefaultMaxTokens int `mapstructure:"default_max_tokens"`

	Providers map[string]ProviderCredentials `mapstructure:"-"`
}

// BudgetConfig projects the loop-control options onto budget.Config.
func (c *Config) BudgetConfig() budget.Config {
	return budget.Config{
		MaxIterations:  c.MaxIterations,
		MaxDuration:    time.Duration(c.MaxDurationMs) * time.Millisecond,
		PerToolTimeout: time.Duration(c.PerToolTimeoutMs) * time.Millisecond,
	}
}

// knownProviders lists the provider families whose credentials are read from
// dedicated environment variables, "Provider base URLs and
// credentials — per-provider environment variables."
var knownProviders = []string{"openai", "anthropic", "groq", "xai", "togetherai", "bedrock"}

// Load reads config.{yaml,json,toml} from /etc/openresponses/, $HOME/.openresponses,
// and the working directory, layering in OPENRESPONSES_-prefixed environment
// variables and finally defaults,
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath("/etc/openresponses/")
	v.AddConfigPath("$HOME/.openresponses")
	v.AddConfigPath(".")

	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("max_iterations", 10)
	v.SetDefault("max_duration_ms", 60000)
	v.SetDefault("per_tool_timeout_ms", 30000)

	v.SetDefault("store_type", string(StoreInMemory))
	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_database", "openresponses")

	v.SetDefault("mcp_enabled", false)
	v.SetDefault("mcp_config_path", "")

	v.SetDefault("redis_addr", "")
	v.SetDefault("rate_limit_tpm", 0)

	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("default_max_tokens", 4096)

	v.SetEnvPrefix("OPENRESPONSES")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if len(cfg.AllowedOrigins) == 1 && strings.Contains(cfg.AllowedOrigins[0], ",") {
		parts := strings.Split(cfg.AllowedOrigins[0], ",")
		cfg.AllowedOrigins = cfg.AllowedOrigins[:0]
		for _, p := range parts {
			if o := strings.TrimSpace(p); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	cfg.Providers = loadProviderCredentials(v)

	if cfg.StoreType != StoreInMemory && cfg.StoreType != StoreMongoDB {
		return nil, fmt.Errorf("config: invalid store_type %q", cfg.StoreType)
	}

	return &cfg, nil
}

// loadProviderCredentials reads <PROVIDER>_BASE_URL / <PROVIDER>_API_KEY /
// <PROVIDER>_DEFAULT_MODEL for every known provider family (e.g.
// OPENAI_BASE_URL, ANTHROPIC_API_KEY, ANTHROPIC_DEFAULT_MODEL). Every known
// provider gets an entry so a default model is always resolvable even
// before credentials are supplied; Registry.Resolve is what actually
// rejects a provider with no API key at first use.
func loadProviderCredentials(v *viper.Viper) map[string]ProviderCredentials {
	out := make(map[string]ProviderCredentials, len(knownProviders))
	for _, name := range knownProviders {
		upper := strings.ToUpper(name)
		v.BindEnv(name+"_base_url", upper+"_BASE_URL")
		v.BindEnv(name+"_api_key", upper+"_API_KEY")
		v.BindEnv(name+"_default_model", upper+"_DEFAULT_MODEL")
		defaultModel := v.GetString(name + "_default_model")
		if defaultModel == "" {
			defaultModel = builtinDefaultModel[name]
		}
		out[name] = ProviderCredentials{
			BaseURL:      v.GetString(name + "_base_url"),
			APIKey:       v.GetString(name + "_api_key"),
			DefaultModel: defaultModel,
		}
	}
	return out
}
