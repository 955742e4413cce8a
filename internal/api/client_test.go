package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_Get(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	var resp struct {
		Status string `json:"status"`
	}
	if err := client.Get(context.Background(), "/health", &resp); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
}

func TestClient_Post(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"echo": body["name"]})
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	var resp map[string]string
	if err := client.Post(context.Background(), "/api/echo", map[string]string{"name": "doc-1"}, &resp); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if resp["echo"] != "doc-1" {
		t.Errorf("echo = %q", resp["echo"])
	}

	t.Run("nil body", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			if len(b) != 0 {
				t.Errorf("expected empty body, got %q", b)
			}
		}))
		defer ts.Close()
		if err := NewClient(ts.URL).Post(context.Background(), "/x", nil, nil); err != nil {
			t.Errorf("Post() error = %v", err)
		}
	})
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"json error", http.StatusBadRequest, `{"error":"groups are required"}`, "server error (400): groups are required"},
		{"plain error", http.StatusInternalServerError, "boom", "server error (500): boom"},
		{"service unavailable", http.StatusServiceUnavailable, `{"error":"server not fully initialized"}`, "not fully initialized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			err := NewClient(ts.URL).Get(context.Background(), "/", nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Get() error = %v, want containing %q", err, tt.wantMsg)
			}
		})
	}

	t.Run("undecodable body", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer ts.Close()

		var out map[string]any
		err := NewClient(ts.URL).Get(context.Background(), "/", &out)
		if err == nil || !strings.Contains(err.Error(), "failed to decode") {
			t.Errorf("Get() error = %v", err)
		}
	})
}
