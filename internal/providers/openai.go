package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o-mini"
)

// OpenAIConfig holds configuration for the OpenAI chat client.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string // optional, for compatible gateways and tests
	DefaultModel string
	Timeout      time.Duration
	RPS          float64
	MaxRetries   int
	Logger       *slog.Logger
}

// OpenAIClient implements LLMClient with the official OpenAI SDK.
type OpenAIClient struct {
	client       openai.Client
	defaultModel string
	limiter      *RateLimiter
	logger       *slog.Logger
}

// NewOpenAIClient creates a new OpenAI chat client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = openAIDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	// Negative disables SDK retries; zero takes the default.
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = 2
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		client:       openai.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		limiter:      NewRateLimiter(cfg.RPS),
		logger:       cfg.Logger.With("provider", OpenAIName),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  OpenAIName,
		Attempts:  1,
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return result.fail("rate_limit_wait", err, start)
	}
	result.QueueTime = time.Since(start)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	execStart := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	result.ExecutionTime = time.Since(execStart)
	if err != nil {
		mapped := c.mapError(err)
		var httpErr *HTTPError
		if errors.As(mapped, &httpErr) && httpErr.IsRateLimited() {
			c.limiter.Backoff(httpErr.RetryAfter)
		}
		return result.fail("http_error", mapped, start)
	}
	if len(resp.Choices) == 0 {
		return result.fail("empty_response", ErrEmptyResponse, start)
	}

	result.Success = true
	result.Content = resp.Choices[0].Message.Content
	result.ModelUsed = resp.Model
	result.PromptTokens = int(resp.Usage.PromptTokens)
	result.CompletionTokens = int(resp.Usage.CompletionTokens)
	result.TotalTokens = int(resp.Usage.TotalTokens)
	result.TotalTime = time.Since(start)
	c.logger.Debug("chat completed", "model", model, "tokens", result.TotalTokens, "duration", result.TotalTime)
	return result, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// mapError converts SDK API errors into *HTTPError so callers can classify them.
func (c *OpenAIClient) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		httpErr := &HTTPError{
			Provider:   OpenAIName,
			StatusCode: apiErr.StatusCode,
			Body:       apiErr.Message,
		}
		if apiErr.Response != nil {
			httpErr.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return httpErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("OpenAI request failed: %w", err)
}

var _ LLMClient = (*OpenAIClient)(nil)
