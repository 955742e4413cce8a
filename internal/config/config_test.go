package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/redline/internal/classify"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configFile
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Defaults.LLMProvider != "openrouter" {
		t.Errorf("expected openrouter default provider, got %s", cfg.Defaults.LLMProvider)
	}
	if cfg.LLMProviders["openrouter"].APIKey != "${OPENROUTER_API_KEY}" {
		t.Error("expected openrouter API key placeholder")
	}
	if cfg.Defaults.MaxCharsPerChunk != 3000 {
		t.Errorf("expected 3000 chars per chunk, got %d", cfg.Defaults.MaxCharsPerChunk)
	}
	if cfg.ServiceTimeout() != 90*time.Second {
		t.Errorf("expected 90s timeout, got %v", cfg.ServiceTimeout())
	}
	if len(cfg.Classifier.NoOpPhrases) != len(classify.DefaultNoOpPhrases) {
		t.Error("expected default no-op phrases")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"zero chunk size", func(c *Config) { c.Defaults.MaxCharsPerChunk = 0 }, "max_chars_per_chunk"},
		{"negative concurrency", func(c *Config) { c.Defaults.MaxConcurrentGroups = -1 }, "max_concurrent_groups"},
		{"unknown default provider", func(c *Config) { c.Defaults.LLMProvider = "nope" }, "not configured"},
		{"postgres without dsn", func(c *Config) { c.CallLog.Driver = "postgres" }, "dsn"},
		{"unknown driver", func(c *Config) { c.CallLog.Driver = "sqlite" }, "call_log.driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("error %q should mention %q", err, tt.errSub)
			}
		})
	}
}

func TestConfig_ServiceTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Defaults.ServiceTimeoutSeconds = 5
	if cfg.ServiceTimeout() != 5*time.Second {
		t.Errorf("expected 5s, got %v", cfg.ServiceTimeout())
	}
	cfg.Defaults.ServiceTimeoutSeconds = 0
	if cfg.ServiceTimeout() != 90*time.Second {
		t.Errorf("expected fallback to 90s, got %v", cfg.ServiceTimeout())
	}
}

func TestConfig_PromptOverrides(t *testing.T) {
	cfg := &Config{Prompts: PromptsCfg{Overrides: []PromptOverride{
		{Key: "correction.user", Text: "first"},
		{Key: "", Text: "ignored"},
		{Key: "correction.user", Text: "second"},
	}}}

	got := cfg.PromptOverrides()
	if len(got) != 1 || got["correction.user"] != "second" {
		t.Errorf("unexpected overrides: %v", got)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})

	t.Run("expands inside a larger string", func(t *testing.T) {
		t.Setenv("TEST_HOST", "proxy.local")

		result := ResolveEnvVars("https://${TEST_HOST}/v1")
		if result != "https://proxy.local/v1" {
			t.Errorf("expected expanded URL, got %s", result)
		}
	})
}

func TestConfig_ToProviderRegistryConfig(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-123")

	cfg := &Config{LLMProviders: map[string]LLMProviderCfg{
		"openai": {
			Type:      "openai",
			Model:     "gpt-4o-mini",
			APIKey:    "${TEST_OPENAI_KEY}",
			RateLimit: 2,
			Enabled:   true,
		},
		"gemini": {
			Type:     "gemini",
			APIKey:   "literal",
			JSONMode: true,
		},
	}}

	rc := cfg.ToProviderRegistryConfig()
	if len(rc.LLMProviders) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(rc.LLMProviders))
	}

	openai := rc.LLMProviders["openai"]
	if openai.APIKey != "sk-123" {
		t.Errorf("expected resolved key, got %s", openai.APIKey)
	}
	if openai.RateLimit != 2 || !openai.Enabled {
		t.Errorf("unexpected openai config: %+v", openai)
	}

	gemini := rc.LLMProviders["gemini"]
	if !gemini.JSONMode || gemini.Enabled || gemini.APIKey != "literal" {
		t.Errorf("unexpected gemini config: %+v", gemini)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		configFile := writeConfig(t, `
llm_providers:
  local:
    type: mock
    enabled: true
defaults:
  llm_provider: local
  max_chars_per_chunk: 500
classifier:
  no_op_phrases:
    - "looks fine"
prompts:
  overrides:
    - key: correction.user
      text: "{{.Text}}"
`)

		mgr, err := NewManager(configFile, "", nil)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if p, ok := cfg.GetLLMProvider("local"); !ok || p.Type != "mock" {
			t.Errorf("expected mock provider, got %+v", p)
		}
		if cfg.Defaults.MaxCharsPerChunk != 500 {
			t.Errorf("expected 500, got %d", cfg.Defaults.MaxCharsPerChunk)
		}
		if cfg.Defaults.ServiceTimeoutSeconds != 90 {
			t.Errorf("expected default timeout to survive partial section, got %d", cfg.Defaults.ServiceTimeoutSeconds)
		}
		if len(cfg.Classifier.NoOpPhrases) != 1 || cfg.Classifier.NoOpPhrases[0] != "looks fine" {
			t.Errorf("unexpected phrases: %v", cfg.Classifier.NoOpPhrases)
		}
		if cfg.PromptOverrides()["correction.user"] != "{{.Text}}" {
			t.Errorf("unexpected overrides: %v", cfg.PromptOverrides())
		}
		if mgr.ConfigFile() != configFile {
			t.Errorf("expected %s, got %s", configFile, mgr.ConfigFile())
		}
	})

	t.Run("uses defaults without a file", func(t *testing.T) {
		t.Chdir(t.TempDir())

		mgr, err := NewManager("", t.TempDir(), nil)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		cfg := mgr.Get()
		if cfg.Defaults.LLMProvider != "openrouter" {
			t.Errorf("expected default provider, got %s", cfg.Defaults.LLMProvider)
		}
		if _, ok := cfg.GetLLMProvider("openrouter"); !ok {
			t.Error("expected default provider config")
		}
		if mgr.ConfigFile() != "" {
			t.Errorf("expected no config file, got %s", mgr.ConfigFile())
		}
	})

	t.Run("finds config in home dir", func(t *testing.T) {
		t.Chdir(t.TempDir())
		homeDir := filepath.Dir(writeConfig(t, "defaults:\n  max_chars_per_chunk: 42\n"))

		mgr, err := NewManager("", homeDir, nil)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if got := mgr.Get().Defaults.MaxCharsPerChunk; got != 42 {
			t.Errorf("expected 42, got %d", got)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("REDLINE_DEFAULTS_MAX_CHARS_PER_CHUNK", "1234")
		configFile := writeConfig(t, "defaults:\n  max_chars_per_chunk: 500\n")

		mgr, err := NewManager(configFile, "", nil)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if got := mgr.Get().Defaults.MaxCharsPerChunk; got != 1234 {
			t.Errorf("expected 1234, got %d", got)
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		configFile := writeConfig(t, "defaults:\n  max_chars_per_chunk: 0\n")

		if _, err := NewManager(configFile, "", nil); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		configFile := writeConfig(t, "defaults: [unclosed\n")

		if _, err := NewManager(configFile, "", nil); err == nil {
			t.Fatal("expected parse error")
		}
	})
}

func TestManager_Reload(t *testing.T) {
	configFile := writeConfig(t, "defaults:\n  max_chars_per_chunk: 100\n")

	mgr, err := NewManager(configFile, "", nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	var seen atomic.Int32
	mgr.OnChange(func(cfg *Config) {
		seen.Store(int32(cfg.Defaults.MaxCharsPerChunk))
	})

	if err := os.WriteFile(configFile, []byte("defaults:\n  max_chars_per_chunk: 200\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}
	if err := mgr.Reload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if seen.Load() != 200 {
		t.Errorf("callback saw %d, want 200", seen.Load())
	}

	if err := os.WriteFile(configFile, []byte("defaults:\n  max_chars_per_chunk: -5\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}
	if err := mgr.Reload(); err == nil {
		t.Fatal("expected invalid reload to fail")
	}
	if got := mgr.Get().Defaults.MaxCharsPerChunk; got != 200 {
		t.Errorf("invalid reload should keep previous config, got %d", got)
	}
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "server:\n  port: \"9000\"\n"), "", nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "server:\n  port: \"9000\"\n"), "", nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Server.Port
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, "defaults:\n  max_chars_per_chunk: 100\n")

	mgr, err := NewManager(configFile, "", nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Int32

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(int32(cfg.Defaults.MaxCharsPerChunk))
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("defaults:\n  max_chars_per_chunk: 250\n"), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if lastValue.Load() == 250 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if got := mgr.Get().Defaults.MaxCharsPerChunk; got != 250 {
		t.Errorf("config not updated: expected 250, got %d", got)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Redline configuration") {
		t.Error("expected header comment")
	}

	mgr, err := NewManager(path, "", nil)
	if err != nil {
		t.Fatalf("written default should load: %v", err)
	}
	cfg := mgr.Get()
	if cfg.Defaults.MaxCharsPerChunk != 3000 || cfg.CallLog.Driver != "memory" {
		t.Errorf("unexpected round-tripped defaults: %+v", cfg.Defaults)
	}
}
