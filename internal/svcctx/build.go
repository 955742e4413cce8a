package svcctx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/redline/internal/classify"
	"github.com/jackzampolin/redline/internal/config"
	"github.com/jackzampolin/redline/internal/correction"
	"github.com/jackzampolin/redline/internal/home"
	"github.com/jackzampolin/redline/internal/llmcall"
	"github.com/jackzampolin/redline/internal/metrics"
	"github.com/jackzampolin/redline/internal/pipeline"
	"github.com/jackzampolin/redline/internal/prompts"
	correctionprompts "github.com/jackzampolin/redline/internal/prompts/correction"
	"github.com/jackzampolin/redline/internal/providers"
	"github.com/jackzampolin/redline/internal/repair"
)

// ErrNoProvider is returned when no usable LLM provider is selected.
var ErrNoProvider = errors.New("no LLM provider available")

// Options configures New.
type Options struct {
	// ConfigManager supplies config and hot reload. Defaults are used when nil.
	ConfigManager *config.Manager
	Home          *home.Dir
	Logger        *slog.Logger
}

// New builds the service set from configuration and starts the call recorder.
// Call Close when done.
func New(ctx context.Context, opts Options) (*Services, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Services{
		ConfigManager: opts.ConfigManager,
		Home:          opts.Home,
		Logger:        logger,
		Metrics:       metrics.NewRecorder(),
		Runs:          pipeline.NewRuns(0),
	}
	cfg := s.Config()

	s.Registry = providers.NewRegistry()
	s.Registry.SetLogger(logger)
	s.Registry.Reload(cfg.ToProviderRegistryConfig())

	s.Classifier = classify.New(cfg.Classifier.NoOpPhrases)

	s.Resolver = prompts.NewResolver(logger)
	correctionprompts.RegisterPrompts(s.Resolver)
	s.Resolver.SetOverrides(cfg.PromptOverrides())

	store, err := openCallStore(ctx, cfg.CallLog)
	if err != nil {
		return nil, err
	}
	if store != nil {
		s.LLMCallStore = store
		s.CallRecorder = llmcall.NewRecorder(llmcall.RecorderConfig{
			Store:  store,
			Logger: logger.With("component", "llmcall"),
		})
		s.CallRecorder.Start(ctx)
	}

	if opts.ConfigManager != nil {
		opts.ConfigManager.OnChange(s.apply)
	}
	return s, nil
}

// apply pushes a reloaded config into the live services.
func (s *Services) apply(cfg *config.Config) {
	s.Registry.Reload(cfg.ToProviderRegistryConfig())
	s.Classifier.SetPhrases(cfg.Classifier.NoOpPhrases)
	s.Resolver.SetOverrides(cfg.PromptOverrides())
	s.Logger.Info("services reloaded from config")
}

func openCallStore(ctx context.Context, cfg config.CallLogCfg) (llmcall.Store, error) {
	switch cfg.Driver {
	case "":
		return nil, nil
	case "memory":
		return llmcall.NewMemoryStore(), nil
	case "postgres":
		store, err := llmcall.OpenPostgres(ctx, config.ResolveEnvVars(cfg.DSN))
		if err != nil {
			return nil, fmt.Errorf("failed to open call log: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown call_log.driver %q", cfg.Driver)
	}
}

// Config returns the current configuration, or defaults without a manager.
func (s *Services) Config() *config.Config {
	if s.ConfigManager != nil {
		return s.ConfigManager.Get()
	}
	return config.DefaultConfig()
}

// Close flushes pending call records and releases the call store.
func (s *Services) Close() error {
	s.CallRecorder.Stop()
	if s.LLMCallStore != nil {
		return s.LLMCallStore.Close()
	}
	return nil
}

// RunOptions overrides config defaults for a single orchestrator.
// Zero values fall back to config.
type RunOptions struct {
	Provider            string
	Model               string
	Temperature         *float64
	MaxCharsPerChunk    int
	MaxConcurrentGroups int
	Observer            pipeline.Observer
}

// NewOrchestrator wires a correction client for the selected provider into
// a pipeline that shares the classifier, metrics and call recorder.
func (s *Services) NewOrchestrator(opts RunOptions) (*pipeline.Orchestrator, error) {
	cfg := s.Config()

	name := opts.Provider
	if name == "" {
		name = cfg.Defaults.LLMProvider
	}
	if name == "" {
		return nil, ErrNoProvider
	}
	client, err := s.Registry.GetLLM(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoProvider, err)
	}

	model := opts.Model
	if model == "" {
		model = cfg.Defaults.Model
	}
	temperature := cfg.Defaults.Temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	maxChars := opts.MaxCharsPerChunk
	if maxChars <= 0 {
		maxChars = cfg.Defaults.MaxCharsPerChunk
	}
	maxGroups := opts.MaxConcurrentGroups
	if maxGroups <= 0 {
		maxGroups = cfg.Defaults.MaxConcurrentGroups
	}

	logger := s.Logger.With("llm_provider", name)
	corrector, err := correction.NewClient(correction.Config{
		Provider:    client,
		Model:       model,
		Temperature: temperature,
		Timeout:     cfg.ServiceTimeout(),
		Resolver:    s.Resolver,
		Recorder:    s.CallRecorder,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	return pipeline.New(pipeline.Config{
		Corrector:           corrector,
		MaxCharsPerChunk:    maxChars,
		MaxConcurrentGroups: maxGroups,
		Classifier:          s.Classifier,
		Parser:              repair.NewParser(logger),
		Metrics:             s.Metrics,
		Observer:            opts.Observer,
		Logger:              logger,
	})
}
