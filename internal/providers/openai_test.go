package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIClient_Chat(t *testing.T) {
	t.Run("successful chat", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["model"] != "gpt-test" {
				t.Errorf("model = %v", body["model"])
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion",
				"created": 1,
				"model":   "gpt-test",
				"choices": []map[string]any{
					{
						"index":         0,
						"finish_reason": "stop",
						"message":       map[string]any{"role": "assistant", "content": "[]"},
					},
				},
				"usage": map[string]any{
					"prompt_tokens":     5,
					"completion_tokens": 1,
					"total_tokens":      6,
				},
			})
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{
			APIKey:       "test-key",
			BaseURL:      server.URL,
			DefaultModel: "gpt-test",
		})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{
				{Role: RoleSystem, Content: "sys"},
				{Role: RoleUser, Content: "1. hi"},
			},
			Temperature: 0.2,
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.Content != "[]" {
			t.Errorf("Content = %q", result.Content)
		}
		if result.TotalTokens != 6 {
			t.Errorf("TotalTokens = %d, want 6", result.TotalTokens)
		}
		if result.Provider != OpenAIName {
			t.Errorf("Provider = %q", result.Provider)
		}
	})

	t.Run("api errors map to HTTPError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "bad request", "type": "invalid_request_error"},
			})
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{
			APIKey:     "test-key",
			BaseURL:    server.URL,
			MaxRetries: -1,
		})
		_, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: RoleUser, Content: "hi"}},
		})
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			t.Fatalf("expected *HTTPError, got %T: %v", err, err)
		}
		if httpErr.StatusCode != http.StatusBadRequest {
			t.Errorf("StatusCode = %d", httpErr.StatusCode)
		}
	})
}
