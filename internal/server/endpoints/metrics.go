package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/redline/internal/api"
	"github.com/jackzampolin/redline/internal/metrics"
	"github.com/jackzampolin/redline/internal/svcctx"
)

// MetricsSummaryResponse is the response for summary queries.
type MetricsSummaryResponse struct {
	Count            int     `json:"count"`
	CacheHits        int     `json:"cache_hits"`
	Corrections      int     `json:"corrections"`
	TotalCostUSD     float64 `json:"total_cost_usd"`
	TotalTokens      int     `json:"total_tokens"`
	TotalTimeSeconds float64 `json:"total_time_seconds"`
	SuccessCount     int     `json:"success_count"`
	ErrorCount       int     `json:"error_count"`
	AvgCostUSD       float64 `json:"avg_cost_usd"`
	AvgTokens        float64 `json:"avg_tokens"`
	AvgTimeSeconds   float64 `json:"avg_time_seconds"`
}

func toSummaryResponse(s *metrics.Summary) MetricsSummaryResponse {
	return MetricsSummaryResponse{
		Count:            s.Count,
		CacheHits:        s.CacheHits,
		Corrections:      s.Corrections,
		TotalCostUSD:     s.TotalCostUSD,
		TotalTokens:      s.TotalTokens,
		TotalTimeSeconds: s.TotalTime.Seconds(),
		SuccessCount:     s.SuccessCount,
		ErrorCount:       s.ErrorCount,
		AvgCostUSD:       s.AvgCostUSD,
		AvgTokens:        s.AvgTokens,
		AvgTimeSeconds:   s.AvgTimeSeconds,
	}
}

// parseMetricsFilter reads metric filters from query parameters.
func parseMetricsFilter(q url.Values) (metrics.Filter, error) {
	f := metrics.Filter{
		RunID:    q.Get("run_id"),
		GroupKey: q.Get("group"),
		Provider: q.Get("provider"),
		Model:    q.Get("model"),
	}
	if v := q.Get("cache_hit"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("invalid cache_hit filter: %q must be true or false", v)
		}
		f.CacheHit = &b
	}
	if v := q.Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("invalid success filter: %q must be true or false", v)
		}
		f.Success = &b
	}
	return f, nil
}

// metricsPath builds a metrics URL with the common CLI filters.
func metricsPath(base, runID, group, provider string) string {
	return api.WithQuery(base, map[string]string{
		"run_id":   runID,
		"group":    group,
		"provider": provider,
	})
}

// MetricsSummaryEndpoint handles GET /api/metrics/summary.
type MetricsSummaryEndpoint struct{}

func (e *MetricsSummaryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/metrics/summary", e.handler
}

func (e *MetricsSummaryEndpoint) RequiresInit() bool { return true }

func (e *MetricsSummaryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	recorder := svcctx.MetricsFrom(r.Context())
	if recorder == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics not available")
		return
	}

	f, err := parseMetricsFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toSummaryResponse(recorder.Summary(f)))
}

func (e *MetricsSummaryEndpoint) Command(getServerURL func() string) *cobra.Command {
	var runID, group, provider string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Get metrics summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())

			var resp MetricsSummaryResponse
			if err := client.Get(cmd.Context(), metricsPath("/api/metrics/summary", runID, group, provider), &resp); err != nil {
				return err
			}
			if api.GetOutputFormat() == api.OutputFormatJSON {
				return api.Output(resp)
			}

			fmt.Printf("Metrics Summary\n")
			fmt.Printf("===============\n")
			fmt.Printf("  Chunks:      %d\n", resp.Count)
			fmt.Printf("  Cache hits:  %d\n", resp.CacheHits)
			fmt.Printf("  Success:     %d\n", resp.SuccessCount)
			fmt.Printf("  Errors:      %d\n", resp.ErrorCount)
			fmt.Printf("  Corrections: %d\n", resp.Corrections)
			fmt.Println()
			fmt.Printf("  Total Cost:  $%.4f\n", resp.TotalCostUSD)
			fmt.Printf("  Avg Cost:    $%.6f\n", resp.AvgCostUSD)
			fmt.Println()
			fmt.Printf("  Total Tokens: %d\n", resp.TotalTokens)
			fmt.Printf("  Avg Time:     %.2fs\n", resp.AvgTimeSeconds)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "Filter by run ID")
	cmd.Flags().StringVar(&group, "group", "", "Filter by group key")
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider")
	return cmd
}

// MetricsDetailedEndpoint handles GET /api/metrics/detailed.
type MetricsDetailedEndpoint struct{}

func (e *MetricsDetailedEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/metrics/detailed", e.handler
}

func (e *MetricsDetailedEndpoint) RequiresInit() bool { return true }

func (e *MetricsDetailedEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	recorder := svcctx.MetricsFrom(r.Context())
	if recorder == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics not available")
		return
	}

	f, err := parseMetricsFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, recorder.DetailedStats(f))
}

func (e *MetricsDetailedEndpoint) Command(getServerURL func() string) *cobra.Command {
	var runID, group, provider string

	cmd := &cobra.Command{
		Use:   "detailed",
		Short: "Get latency percentiles and token breakdowns",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp metrics.DetailedStats
			if err := client.Get(cmd.Context(), metricsPath("/api/metrics/detailed", runID, group, provider), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "Filter by run ID")
	cmd.Flags().StringVar(&group, "group", "", "Filter by group key")
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider")
	return cmd
}

// MetricsCostResponse breaks cost down by provider and group.
type MetricsCostResponse struct {
	ByProvider map[string]float64                `json:"by_provider"`
	ByGroup    map[string]MetricsSummaryResponse `json:"by_group"`
}

// MetricsCostEndpoint handles GET /api/metrics/cost.
type MetricsCostEndpoint struct{}

func (e *MetricsCostEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/metrics/cost", e.handler
}

func (e *MetricsCostEndpoint) RequiresInit() bool { return true }

func (e *MetricsCostEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	recorder := svcctx.MetricsFrom(r.Context())
	if recorder == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics not available")
		return
	}

	f, err := parseMetricsFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := MetricsCostResponse{
		ByProvider: recorder.CostByProvider(f),
		ByGroup:    make(map[string]MetricsSummaryResponse),
	}
	for key, s := range recorder.GroupBreakdown(f) {
		resp.ByGroup[key] = toSummaryResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *MetricsCostEndpoint) Command(getServerURL func() string) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Get cost breakdown by provider and group",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp MetricsCostResponse
			if err := client.Get(cmd.Context(), metricsPath("/api/metrics/cost", runID, "", ""), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "Filter by run ID")
	return cmd
}
