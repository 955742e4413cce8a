package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	GeminiName         = "gemini"
	geminiDefaultModel = "gemini-1.5-flash"
)

// ErrMissingAPIKey is returned when a provider is used without credentials.
var ErrMissingAPIKey = errors.New("API key is empty")

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey       string
	DefaultModel string
	RPS          float64
	// JSONMode asks the model for application/json output.
	JSONMode bool
	Logger   *slog.Logger
}

// GeminiClient implements LLMClient with the Google generative AI SDK.
type GeminiClient struct {
	apiKey       string
	defaultModel string
	jsonMode     bool
	limiter      *RateLimiter
	logger       *slog.Logger
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = geminiDefaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &GeminiClient{
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
		jsonMode:     cfg.JSONMode,
		limiter:      NewRateLimiter(cfg.RPS),
		logger:       cfg.Logger.With("provider", GeminiName),
	}
}

// Name returns the client identifier.
func (c *GeminiClient) Name() string {
	return GeminiName
}

// Chat sends the system message as the system instruction and the remaining
// messages as content parts of a single generation request.
func (c *GeminiClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.defaultModel
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  GeminiName,
		ModelUsed: model,
		Attempts:  1,
	}

	if c.apiKey == "" {
		return result.fail("config_error", fmt.Errorf("gemini: %w", ErrMissingAPIKey), start)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return result.fail("rate_limit_wait", err, start)
	}
	result.QueueTime = time.Since(start)

	cl, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return result.fail("client_error", fmt.Errorf("gemini: %w", err), start)
	}
	defer cl.Close()

	m := cl.GenerativeModel(model)
	m.GenerationConfig = c.generationConfig(req)
	if sys := req.SystemPrompt(); sys != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(sys)}}
	}

	var parts []genai.Part
	for _, msg := range req.Messages {
		if msg.Role != RoleSystem {
			parts = append(parts, genai.Text(msg.Content))
		}
	}

	execStart := time.Now()
	resp, err := m.GenerateContent(ctx, parts...)
	result.ExecutionTime = time.Since(execStart)
	if err != nil {
		return result.fail("http_error", mapGeminiError(err), start)
	}

	text := firstText(resp)
	if text == "" {
		return result.fail("empty_response", ErrEmptyResponse, start)
	}

	result.Success = true
	result.Content = text
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		result.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	result.TotalTime = time.Since(start)
	c.logger.Debug("chat completed", "model", model, "tokens", result.TotalTokens, "duration", result.TotalTime)
	return result, nil
}

func (c *GeminiClient) generationConfig(req *ChatRequest) genai.GenerationConfig {
	temp := float32(req.Temperature)
	cfg := genai.GenerationConfig{Temperature: &temp}
	if req.MaxTokens > 0 {
		n := int32(req.MaxTokens)
		cfg.MaxOutputTokens = &n
	}
	if c.jsonMode {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

// firstText concatenates the text parts of the first candidate.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

// mapGeminiError converts googleapi errors into *HTTPError.
func mapGeminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &HTTPError{
			Provider:   GeminiName,
			StatusCode: gerr.Code,
			Body:       gerr.Message,
			RetryAfter: parseRetryAfter(gerr.Header.Get("Retry-After")),
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("gemini request failed: %w", err)
}

var _ LLMClient = (*GeminiClient)(nil)
