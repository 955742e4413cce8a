// Package correction performs the round trip to the remote correction service.
//
// A Client never lets a failure escape as a missing payload: when the
// service cannot be used, Correct returns a synthetic one-element array
// describing the failure alongside the typed error, so the caller can
// feed the payload through the same parse path as a real response.
package correction

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"text/template"
	"time"

	"github.com/jackzampolin/redline/internal/llmcall"
	"github.com/jackzampolin/redline/internal/prompts"
	correctionprompts "github.com/jackzampolin/redline/internal/prompts/correction"
	"github.com/jackzampolin/redline/internal/providers"
	"github.com/jackzampolin/redline/internal/types"
)

// DefaultTimeout bounds a single correction request.
const DefaultTimeout = 90 * time.Second

// Config configures a Client.
type Config struct {
	Provider    providers.LLMClient
	Model       string // provider default when empty
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	// Resolver supplies prompt overrides. Embedded prompts are used when nil.
	Resolver *prompts.Resolver
	// Recorder receives an audit record per request. Optional.
	Recorder *llmcall.Recorder
	Logger   *slog.Logger
}

// Client sends chunk prompts to an LLM provider.
type Client struct {
	provider    providers.LLMClient
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	resolver    *prompts.Resolver
	recorder    *llmcall.Recorder
	logger      *slog.Logger

	mu        sync.Mutex
	templates map[string]*template.Template // parsed user overrides by CID
}

// NewClient creates a correction client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Provider == nil {
		return nil, errors.New("correction: provider is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Resolver != nil {
		correctionprompts.RegisterPrompts(cfg.Resolver)
	}
	return &Client{
		provider:    cfg.Provider,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		resolver:    cfg.Resolver,
		recorder:    cfg.Recorder,
		logger:      cfg.Logger.With("provider", cfg.Provider.Name()),
		templates:   make(map[string]*template.Template),
	}, nil
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Request is one correction call with its audit context.
type Request struct {
	Prompt     string
	RunID      string
	GroupKey   string
	ChunkIndex int
}

// Response carries the raw service text and the provider's call record.
// Result is nil when the provider returned nothing.
type Response struct {
	Raw    string
	Result *providers.ChatResult
}

// BuildPrompt renders the numbered-line payload for a chunk,
// honoring a configured user prompt override.
func (c *Client) BuildPrompt(chunk types.Chunk) string {
	if out, ok := c.renderOverride(chunk); ok {
		return out
	}
	return correctionprompts.UserPrompt(chunk)
}

func (c *Client) renderOverride(chunk types.Chunk) (string, bool) {
	if c.resolver == nil {
		return "", false
	}
	resolved, err := c.resolver.Resolve(correctionprompts.UserPromptKey)
	if err != nil || !resolved.IsOverride {
		return "", false
	}
	tmpl, err := c.userTemplate(resolved)
	if err != nil {
		c.logger.Warn("user prompt override failed to parse, using embedded", "error", err)
		return "", false
	}
	out, err := correctionprompts.RenderUser(tmpl, chunk)
	if err != nil {
		c.logger.Warn("user prompt override failed to render, using embedded", "error", err)
		return "", false
	}
	return out, true
}

func (c *Client) userTemplate(p *prompts.ResolvedPrompt) (*template.Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tmpl, ok := c.templates[p.CID]; ok {
		return tmpl, nil
	}
	tmpl, err := prompts.Parse(p.Key, p.Text)
	if err != nil {
		return nil, err
	}
	c.templates[p.CID] = tmpl
	return tmpl, nil
}

// systemPrompt returns the instruction text and its content hash.
func (c *Client) systemPrompt() (string, string) {
	if c.resolver != nil {
		if resolved, err := c.resolver.Resolve(correctionprompts.SystemPromptKey); err == nil {
			return resolved.Text, resolved.CID
		}
	}
	text := correctionprompts.SystemPrompt()
	return text, prompts.HashText(text)
}

// Correct sends prompt and returns the raw response text.
// On failure the returned text is a synthetic payload describing err.
func (c *Client) Correct(ctx context.Context, prompt string) (string, error) {
	resp, err := c.Do(ctx, Request{Prompt: prompt})
	return resp.Raw, err
}

// Do sends req with the configured timeout. On failure Response.Raw holds
// the synthetic payload and err is a *ServiceError, *TimeoutError, or *TransportError.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	sys, sysCID := c.systemPrompt()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.provider.Chat(callCtx, &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: sys},
			{Role: providers.RoleUser, Content: req.Prompt},
		},
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})

	temp := c.temperature
	c.recorder.Record(result, llmcall.RecordOptions{
		RunID:       req.RunID,
		GroupKey:    req.GroupKey,
		ChunkIndex:  req.ChunkIndex,
		PromptKey:   correctionprompts.SystemPromptKey,
		PromptCID:   sysCID,
		Temperature: &temp,
	})

	if err == nil && (result == nil || !result.Success) {
		err = providers.ErrEmptyResponse
	}
	if err != nil {
		cerr := classifyError(err, c.timeout)
		c.logger.Warn("correction request failed",
			"group", req.GroupKey,
			"chunk", req.ChunkIndex,
			"kind", ErrorKind(cerr),
			"error", err)
		return Response{Raw: SyntheticPayload(cerr.Error()), Result: result}, cerr
	}

	return Response{Raw: result.Content, Result: result}, nil
}

// syntheticItem mirrors one element of the service's response contract.
type syntheticItem struct {
	LineNumber    int    `json:"LineNumber"`
	OriginalText  string `json:"OriginalText"`
	CorrectedText string `json:"CorrectedText"`
	Explanation   string `json:"Explanation"`
	Category      string `json:"Category"`
}

// SyntheticPayload encodes a failure as a one-element response array
// with line number 0 and the Error category.
func SyntheticPayload(explanation string) string {
	b, _ := json.Marshal([]syntheticItem{{
		LineNumber:  0,
		Explanation: explanation,
		Category:    string(types.CategoryError),
	}})
	return string(b)
}
