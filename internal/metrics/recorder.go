package metrics

import (
	"sync"
	"time"

	"github.com/jackzampolin/redline/internal/providers"
)

// Recorder collects metrics in memory. Safe for concurrent use.
// A nil *Recorder discards everything.
type Recorder struct {
	mu      sync.Mutex
	metrics []Metric
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordOpts provides context for a metric recording.
type RecordOpts struct {
	RunID      string
	GroupKey   string
	ChunkIndex int
	Items      int
}

// Record stores a single metric.
func (r *Recorder) Record(m Metric) {
	if r == nil {
		return
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	r.mu.Lock()
	r.metrics = append(r.metrics, m)
	r.mu.Unlock()
}

// RecordLLMCall records metrics from a chat result.
func (r *Recorder) RecordLLMCall(opts RecordOpts, result *providers.ChatResult, corrections int) {
	if r == nil || result == nil {
		return
	}
	r.Record(Metric{
		RunID:      opts.RunID,
		GroupKey:   opts.GroupKey,
		ChunkIndex: opts.ChunkIndex,
		Items:      opts.Items,

		Provider: result.Provider,
		Model:    result.ModelUsed,

		CostUSD:          result.CostUSD,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,

		QueueSeconds:     result.QueueTime.Seconds(),
		ExecutionSeconds: result.ExecutionTime.Seconds(),
		TotalSeconds:     result.TotalTime.Seconds(),

		Corrections: corrections,
		Success:     result.Success,
		ErrorType:   result.ErrorType,
	})
}

// RecordCacheHit records a chunk answered from the content cache.
func (r *Recorder) RecordCacheHit(opts RecordOpts, corrections int) {
	r.Record(Metric{
		RunID:       opts.RunID,
		GroupKey:    opts.GroupKey,
		ChunkIndex:  opts.ChunkIndex,
		Items:       opts.Items,
		CacheHit:    true,
		Corrections: corrections,
		Success:     true,
	})
}

// List returns the metrics matching f, in recording order.
func (r *Recorder) List(f Filter) []Metric {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Metric
	for _, m := range r.metrics {
		if f.matches(m) {
			out = append(out, m)
		}
	}
	return out
}

// Reset discards all recorded metrics.
func (r *Recorder) Reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.metrics = nil
	r.mu.Unlock()
}

// Filter specifies query filters.
type Filter struct {
	RunID    string
	GroupKey string
	Provider string
	Model    string
	CacheHit *bool // nil = any
	Success  *bool // nil = any, true = success only, false = errors only
}

func (f Filter) matches(m Metric) bool {
	switch {
	case f.RunID != "" && m.RunID != f.RunID:
		return false
	case f.GroupKey != "" && m.GroupKey != f.GroupKey:
		return false
	case f.Provider != "" && m.Provider != f.Provider:
		return false
	case f.Model != "" && m.Model != f.Model:
		return false
	case f.CacheHit != nil && m.CacheHit != *f.CacheHit:
		return false
	case f.Success != nil && m.Success != *f.Success:
		return false
	}
	return true
}
