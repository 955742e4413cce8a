package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func chatCompletion(content string) map[string]any {
	return map[string]any{
		"id":    "test-id",
		"model": "openai/gpt-4o-mini",
		"choices": []map[string]any{
			{
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 8,
			"total_tokens":      18,
			"cost":              0.0012,
		},
	}
}

func testOpenRouter(url string) *OpenRouterClient {
	return NewOpenRouterClient(OpenRouterConfig{
		APIKey:     "test-key",
		BaseURL:    url,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	})
}

func TestOpenRouterClient_Chat(t *testing.T) {
	t.Run("successful chat", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.Method != http.MethodPost {
				t.Errorf("unexpected method: %s", r.Method)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("unexpected authorization: %s", auth)
			}

			var req openRouterRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode request: %v", err)
			}
			if len(req.Messages) != 2 || req.Messages[0].Role != RoleSystem {
				t.Errorf("unexpected messages: %+v", req.Messages)
			}
			if req.Usage == nil || !req.Usage.Include {
				t.Error("expected usage accounting to be requested")
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(chatCompletion(`[]`))
		}))
		defer server.Close()

		result, err := testOpenRouter(server.URL).Chat(context.Background(), &ChatRequest{
			Messages: []Message{
				{Role: RoleSystem, Content: "You are a proofreader."},
				{Role: RoleUser, Content: "1. Hello"},
			},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if !result.Success {
			t.Error("expected Success = true")
		}
		if result.Content != "[]" {
			t.Errorf("Content = %q", result.Content)
		}
		if result.TotalTokens != 18 {
			t.Errorf("TotalTokens = %d, want 18", result.TotalTokens)
		}
		if result.CostUSD != 0.0012 {
			t.Errorf("CostUSD = %v, want 0.0012", result.CostUSD)
		}
		if result.Attempts != 1 {
			t.Errorf("Attempts = %d, want 1", result.Attempts)
		}
		if result.RequestID == "" {
			t.Error("expected a generated request ID")
		}
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				http.Error(w, "upstream exploded", http.StatusBadGateway)
				return
			}
			json.NewEncoder(w).Encode(chatCompletion("ok"))
		}))
		defer server.Close()

		result, err := testOpenRouter(server.URL).Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: RoleUser, Content: "hi"}},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.Attempts != 2 {
			t.Errorf("Attempts = %d, want 2", result.Attempts)
		}
		if calls.Load() != 2 {
			t.Errorf("server saw %d calls, want 2", calls.Load())
		}
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
		}))
		defer server.Close()

		result, err := testOpenRouter(server.URL).Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: RoleUser, Content: "hi"}},
		})
		if err == nil {
			t.Fatal("expected error")
		}
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			t.Fatalf("expected *HTTPError, got %T: %v", err, err)
		}
		if httpErr.StatusCode != http.StatusUnauthorized {
			t.Errorf("StatusCode = %d", httpErr.StatusCode)
		}
		if calls.Load() != 1 {
			t.Errorf("server saw %d calls, want 1", calls.Load())
		}
		if result.Success || result.ErrorType != "http_error" {
			t.Errorf("unexpected result: %+v", result)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := testOpenRouter(server.URL).Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: RoleUser, Content: "hi"}},
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if calls.Load() != 3 {
			t.Errorf("server saw %d calls, want 3", calls.Load())
		}
	})

	t.Run("api level error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "model not found", "code": 404},
			})
		}))
		defer server.Close()

		_, err := testOpenRouter(server.URL).Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: RoleUser, Content: "hi"}},
		})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(chatCompletion("late"))
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := testOpenRouter(server.URL).Chat(ctx, &ChatRequest{
			Messages: []Message{{Role: RoleUser, Content: "hi"}},
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestMessageText(t *testing.T) {
	if got, _ := messageText(nil); got != "" {
		t.Errorf("nil content = %q", got)
	}
	if got, _ := messageText("plain"); got != "plain" {
		t.Errorf("string content = %q", got)
	}
	got, err := messageText([]any{map[string]any{"type": "text", "text": "x"}})
	if err != nil || got == "" {
		t.Errorf("multipart content = %q, %v", got, err)
	}
}
