package metrics

import (
	"sort"
	"time"
)

// Summary provides a summary of metrics for a filter.
type Summary struct {
	Count          int           `json:"count"`
	CacheHits      int           `json:"cache_hits"`
	Corrections    int           `json:"corrections"`
	TotalCostUSD   float64       `json:"total_cost_usd"`
	TotalTokens    int           `json:"total_tokens"`
	TotalTime      time.Duration `json:"total_time"`
	SuccessCount   int           `json:"success_count"`
	ErrorCount     int           `json:"error_count"`
	AvgCostUSD     float64       `json:"avg_cost_usd"`
	AvgTokens      float64       `json:"avg_tokens"`
	AvgTimeSeconds float64       `json:"avg_time_seconds"`
}

// Summary returns a summary of metrics matching the filter.
func (r *Recorder) Summary(f Filter) *Summary {
	return summarize(r.List(f))
}

func summarize(metrics []Metric) *Summary {
	s := &Summary{Count: len(metrics)}
	for _, m := range metrics {
		s.TotalCostUSD += m.CostUSD
		s.TotalTokens += m.TotalTokens
		s.TotalTime += time.Duration(m.TotalSeconds * float64(time.Second))
		s.Corrections += m.Corrections
		if m.CacheHit {
			s.CacheHits++
		}
		if m.Success {
			s.SuccessCount++
		} else {
			s.ErrorCount++
		}
	}

	if s.Count > 0 {
		s.AvgCostUSD = s.TotalCostUSD / float64(s.Count)
		s.AvgTokens = float64(s.TotalTokens) / float64(s.Count)
		s.AvgTimeSeconds = s.TotalTime.Seconds() / float64(s.Count)
	}
	return s
}

// DetailedStats adds latency percentiles and token breakdowns to a Summary.
type DetailedStats struct {
	Summary

	// Latency percentiles (seconds), cache hits excluded
	LatencyP50 float64 `json:"latency_p50"`
	LatencyP95 float64 `json:"latency_p95"`
	LatencyP99 float64 `json:"latency_p99"`
	LatencyMin float64 `json:"latency_min"`
	LatencyMax float64 `json:"latency_max"`

	TotalPromptTokens     int `json:"total_prompt_tokens"`
	TotalCompletionTokens int `json:"total_completion_tokens"`
}

// DetailedStats returns detailed statistics for metrics matching the filter.
func (r *Recorder) DetailedStats(f Filter) *DetailedStats {
	metrics := r.List(f)
	stats := &DetailedStats{Summary: *summarize(metrics)}

	var latencies []float64
	for _, m := range metrics {
		stats.TotalPromptTokens += m.PromptTokens
		stats.TotalCompletionTokens += m.CompletionTokens
		if !m.CacheHit && m.TotalSeconds > 0 {
			latencies = append(latencies, m.TotalSeconds)
		}
	}

	if len(latencies) > 0 {
		sort.Float64s(latencies)
		stats.LatencyMin = latencies[0]
		stats.LatencyMax = latencies[len(latencies)-1]
		stats.LatencyP50 = percentile(latencies, 50)
		stats.LatencyP95 = percentile(latencies, 95)
		stats.LatencyP99 = percentile(latencies, 99)
	}
	return stats
}

// CostByProvider returns cost breakdown by provider.
func (r *Recorder) CostByProvider(f Filter) map[string]float64 {
	breakdown := make(map[string]float64)
	for _, m := range r.List(f) {
		if !m.CacheHit {
			breakdown[m.Provider] += m.CostUSD
		}
	}
	return breakdown
}

// GroupBreakdown returns a summary per group key.
func (r *Recorder) GroupBreakdown(f Filter) map[string]*Summary {
	byGroup := make(map[string][]Metric)
	for _, m := range r.List(f) {
		byGroup[m.GroupKey] = append(byGroup[m.GroupKey], m)
	}
	out := make(map[string]*Summary, len(byGroup))
	for key, ms := range byGroup {
		out[key] = summarize(ms)
	}
	return out
}

// percentile calculates the p-th percentile from a sorted slice of values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	n := float64(len(sorted))
	idx := (p / 100.0) * (n - 1)

	// Interpolate between floor and ceil indices
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
