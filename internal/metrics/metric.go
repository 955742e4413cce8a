// Package metrics provides cost and usage tracking for correction requests.
package metrics

import "time"

// Metric is a single record for one chunk sent (or served from cache) during a run.
type Metric struct {
	// Attribution (for filtering/aggregation)
	RunID      string `json:"run_id,omitempty"`
	GroupKey   string `json:"group_key,omitempty"`
	ChunkIndex int    `json:"chunk_index"`
	Items      int    `json:"items"`

	// Provider info
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// Cost and tokens
	CostUSD          float64 `json:"cost_usd,omitempty"`
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	TotalTokens      int     `json:"total_tokens,omitempty"`

	// Timing
	QueueSeconds     float64 `json:"queue_seconds,omitempty"`
	ExecutionSeconds float64 `json:"execution_seconds,omitempty"`
	TotalSeconds     float64 `json:"total_seconds,omitempty"`

	// Outcome
	CacheHit    bool   `json:"cache_hit"`
	Corrections int    `json:"corrections"`
	Success     bool   `json:"success"`
	ErrorType   string `json:"error_type,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}
