package config

import (
	"fmt"
	"time"

	"github.com/jackzampolin/redline/internal/chunker"
	"github.com/jackzampolin/redline/internal/classify"
	"github.com/jackzampolin/redline/internal/correction"
)

// Config holds redline configuration.
// Stored at: {home}/config.yaml
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Classifier   ClassifierCfg             `mapstructure:"classifier" yaml:"classifier"`
	Prompts      PromptsCfg                `mapstructure:"prompts" yaml:"prompts"`
	CallLog      CallLogCfg                `mapstructure:"call_log" yaml:"call_log"`
	Server       ServerCfg                 `mapstructure:"server" yaml:"server"`
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type      string  `mapstructure:"type" yaml:"type"`                             // "openrouter", "openai", "gemini", "mock"
	Model     string  `mapstructure:"model" yaml:"model"`                           // Model name
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"`                       // API key (supports ${ENV_VAR} syntax)
	BaseURL   string  `mapstructure:"base_url" yaml:"base_url,omitempty"`           // Override endpoint
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`                 // Requests per second
	JSONMode  bool    `mapstructure:"json_mode" yaml:"json_mode,omitempty"`         // Ask for JSON output (gemini)
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg holds pipeline defaults.
type DefaultsCfg struct {
	LLMProvider           string  `mapstructure:"llm_provider" yaml:"llm_provider"`
	Model                 string  `mapstructure:"model" yaml:"model,omitempty"` // Overrides the provider's model
	MaxCharsPerChunk      int     `mapstructure:"max_chars_per_chunk" yaml:"max_chars_per_chunk"`
	ServiceTimeoutSeconds int     `mapstructure:"service_timeout_seconds" yaml:"service_timeout_seconds"`
	MaxConcurrentGroups   int     `mapstructure:"max_concurrent_groups" yaml:"max_concurrent_groups"` // 0 = unbounded
	Temperature           float64 `mapstructure:"temperature" yaml:"temperature"`
}

// ClassifierCfg configures post-processing of corrections.
type ClassifierCfg struct {
	NoOpPhrases []string `mapstructure:"no_op_phrases" yaml:"no_op_phrases"`
}

// PromptsCfg holds prompt template overrides.
type PromptsCfg struct {
	Overrides []PromptOverride `mapstructure:"overrides" yaml:"overrides,omitempty"`
}

// PromptOverride replaces an embedded prompt by key.
type PromptOverride struct {
	Key  string `mapstructure:"key" yaml:"key"`   // e.g. "correction.user"
	Text string `mapstructure:"text" yaml:"text"` // Go template text
}

// CallLogCfg selects where LLM call records are kept.
type CallLogCfg struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // "memory", "postgres" or "" to disable
	DSN    string `mapstructure:"dsn" yaml:"dsn,omitempty"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {
				Type:    "openrouter",
				Model:   "openai/gpt-4o-mini",
				APIKey:  "${OPENROUTER_API_KEY}",
				Enabled: true,
			},
		},
		Defaults: DefaultsCfg{
			LLMProvider:           "openrouter",
			MaxCharsPerChunk:      chunker.DefaultMaxChars,
			ServiceTimeoutSeconds: int(correction.DefaultTimeout / time.Second),
		},
		Classifier: ClassifierCfg{
			NoOpPhrases: append([]string(nil), classify.DefaultNoOpPhrases...),
		},
		CallLog: CallLogCfg{
			Driver: "memory",
		},
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// ServiceTimeout is the per-request deadline for the correction service.
func (c *Config) ServiceTimeout() time.Duration {
	if c.Defaults.ServiceTimeoutSeconds <= 0 {
		return correction.DefaultTimeout
	}
	return time.Duration(c.Defaults.ServiceTimeoutSeconds) * time.Second
}

// PromptOverrides returns overrides keyed by prompt key. Later entries win.
func (c *Config) PromptOverrides() map[string]string {
	out := make(map[string]string, len(c.Prompts.Overrides))
	for _, o := range c.Prompts.Overrides {
		if o.Key != "" {
			out[o.Key] = o.Text
		}
	}
	return out
}

// Validate checks values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Defaults.MaxCharsPerChunk < 1 {
		return fmt.Errorf("defaults.max_chars_per_chunk must be at least 1, got %d", c.Defaults.MaxCharsPerChunk)
	}
	if c.Defaults.MaxConcurrentGroups < 0 {
		return fmt.Errorf("defaults.max_concurrent_groups must not be negative")
	}
	if name := c.Defaults.LLMProvider; name != "" {
		if _, ok := c.LLMProviders[name]; !ok {
			return fmt.Errorf("defaults.llm_provider %q is not configured", name)
		}
	}
	switch c.CallLog.Driver {
	case "", "memory":
	case "postgres":
		if c.CallLog.DSN == "" {
			return fmt.Errorf("call_log.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown call_log.driver %q", c.CallLog.Driver)
	}
	return nil
}
