package correction

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/redline/internal/llmcall"
	"github.com/jackzampolin/redline/internal/prompts"
	"github.com/jackzampolin/redline/internal/providers"
	"github.com/jackzampolin/redline/internal/repair"
	"github.com/jackzampolin/redline/internal/types"
)

func newTestClient(t *testing.T, mock *providers.MockClient, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{Provider: mock}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClient_RequiresProvider(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("expected error without provider")
	}
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	c := newTestClient(t, providers.NewMockClient(), nil)
	if c.Timeout() != DefaultTimeout {
		t.Errorf("Timeout() = %v, want %v", c.Timeout(), DefaultTimeout)
	}
}

func TestBuildPrompt(t *testing.T) {
	c := newTestClient(t, providers.NewMockClient(), nil)
	chunk := types.Chunk{Items: []types.ScannedItem{
		{Text: "les porte son fermé", SourceID: "101"},
		{Text: "deux\nlignes", SourceID: "102"},
	}}

	got := c.BuildPrompt(chunk)
	want := "1. les porte son fermé\n2. deux lignes"
	if got != want {
		t.Errorf("BuildPrompt() = %q, want %q", got, want)
	}
}

func TestBuildPrompt_Override(t *testing.T) {
	resolver := prompts.NewResolver(nil)
	c := newTestClient(t, providers.NewMockClient(), func(cfg *Config) {
		cfg.Resolver = resolver
	})
	resolver.SetOverrides(map[string]string{
		"correction.user": "{{range .Lines}}- {{.}}\n{{end}}",
	})

	chunk := types.Chunk{Items: []types.ScannedItem{{Text: "a"}, {Text: "b"}}}
	if got := c.BuildPrompt(chunk); got != "- a\n- b" {
		t.Errorf("BuildPrompt() = %q", got)
	}

	resolver.SetOverrides(map[string]string{"correction.user": "{{.Missing"})
	if got := c.BuildPrompt(chunk); got != "1. a\n2. b" {
		t.Errorf("broken override should fall back, got %q", got)
	}
}

func TestCorrect_Success(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Latency = 0
	mock.ResponseText = `[{"LineNumber":1}]`
	c := newTestClient(t, mock, func(cfg *Config) { cfg.Model = "test-model" })

	raw, err := c.Correct(context.Background(), "1. hello")
	if err != nil {
		t.Fatalf("Correct() error = %v", err)
	}
	if raw != mock.ResponseText {
		t.Errorf("raw = %q", raw)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("got %d requests", len(reqs))
	}
	req := reqs[0]
	if req.Model != "test-model" {
		t.Errorf("Model = %q", req.Model)
	}
	if len(req.Messages) != 2 || req.Messages[1].Content != "1. hello" {
		t.Errorf("unexpected messages: %+v", req.Messages)
	}
	if !strings.Contains(req.SystemPrompt(), "LineNumber") {
		t.Error("system prompt should describe the response contract")
	}
}

func TestCorrect_Failures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*providers.MockClient)
		timeout time.Duration
		check   func(t *testing.T, err error)
		kind    string
	}{
		{
			name: "service error",
			setup: func(m *providers.MockClient) {
				m.ShouldFail = true
				m.FailWith = &providers.HTTPError{Provider: "mock", StatusCode: 503, Body: "overloaded"}
			},
			check: func(t *testing.T, err error) {
				var svc *ServiceError
				if !errors.As(err, &svc) || svc.StatusCode != 503 {
					t.Errorf("expected ServiceError 503, got %T %v", err, err)
				}
			},
			kind: "service",
		},
		{
			name: "timeout",
			setup: func(m *providers.MockClient) {
				m.Latency = time.Second
			},
			timeout: 20 * time.Millisecond,
			check: func(t *testing.T, err error) {
				var to *TimeoutError
				if !errors.As(err, &to) {
					t.Errorf("expected TimeoutError, got %T %v", err, err)
				}
				if !errors.Is(err, context.DeadlineExceeded) {
					t.Error("TimeoutError should unwrap to DeadlineExceeded")
				}
			},
			kind: "timeout",
		},
		{
			name: "transport error",
			setup: func(m *providers.MockClient) {
				m.ShouldFail = true
				m.FailWith = errors.New("dial tcp: connection refused")
			},
			check: func(t *testing.T, err error) {
				var tr *TransportError
				if !errors.As(err, &tr) {
					t.Errorf("expected TransportError, got %T %v", err, err)
				}
			},
			kind: "transport",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := providers.NewMockClient()
			tt.setup(mock)
			c := newTestClient(t, mock, func(cfg *Config) { cfg.Timeout = tt.timeout })

			raw, err := c.Correct(context.Background(), "1. x")
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
			if got := ErrorKind(err); got != tt.kind {
				t.Errorf("ErrorKind() = %q, want %q", got, tt.kind)
			}

			// The payload must parse to exactly one synthetic result carrying the message.
			results := repair.Parse(raw, "1. x")
			if len(results) != 1 || !results[0].IsSynthetic() {
				t.Fatalf("synthetic payload parsed to %+v", results)
			}
			if results[0].Explanation != err.Error() {
				t.Errorf("Explanation = %q, want %q", results[0].Explanation, err.Error())
			}
		})
	}
}

func TestDo_RecordsCalls(t *testing.T) {
	store := llmcall.NewMemoryStore()
	recorder := llmcall.NewRecorder(llmcall.RecorderConfig{Store: store})
	recorder.Start(context.Background())

	mock := providers.NewMockClient()
	mock.Latency = 0
	c := newTestClient(t, mock, func(cfg *Config) { cfg.Recorder = recorder })

	_, err := c.Do(context.Background(), Request{Prompt: "1. x", GroupKey: "g", ChunkIndex: 3, RunID: "run"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	recorder.Stop()

	calls, _ := store.List(context.Background(), llmcall.QueryFilter{GroupKey: "g"})
	if len(calls) != 1 {
		t.Fatalf("recorded %d calls, want 1", len(calls))
	}
	if calls[0].ChunkIndex != 3 || calls[0].RunID != "run" || calls[0].PromptKey != "correction.system" {
		t.Errorf("unexpected call: %+v", calls[0])
	}
	if calls[0].PromptCID == "" {
		t.Error("expected prompt CID")
	}
}

func TestSyntheticPayload(t *testing.T) {
	raw := SyntheticPayload(`quote " and newline` + "\n")
	results := repair.Parse(raw, "chunk")
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	r := results[0]
	if r.LineNumber != 0 || r.Category != types.CategoryError {
		t.Errorf("unexpected result: %+v", r)
	}
	if r.Explanation != `quote " and newline`+"\n" {
		t.Errorf("Explanation = %q", r.Explanation)
	}
}
