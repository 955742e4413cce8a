package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/redline/internal/api"
	"github.com/jackzampolin/redline/internal/llmcall"
	"github.com/jackzampolin/redline/internal/svcctx"
)

// LLMCallsResponse contains a list of LLM calls.
type LLMCallsResponse struct {
	Calls []llmcall.Call `json:"calls"`
	Total int            `json:"total"`
}

// LLMCallResponse contains a single LLM call.
type LLMCallResponse struct {
	Call  *llmcall.Call `json:"call,omitempty"`
	Error string        `json:"error,omitempty"`
}

// LLMCallCountsResponse contains prompt key counts.
type LLMCallCountsResponse struct {
	Counts map[string]int `json:"counts"`
}

// parseCallFilter reads list filters from query parameters.
func parseCallFilter(q url.Values) (llmcall.QueryFilter, error) {
	filter := llmcall.QueryFilter{
		RunID:     q.Get("run_id"),
		GroupKey:  q.Get("group"),
		PromptKey: q.Get("prompt_key"),
		Provider:  q.Get("provider"),
		Model:     q.Get("model"),
	}

	if v := q.Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("invalid success filter: %q must be true or false", v)
		}
		filter.Success = &b
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("invalid limit: %q must be an integer", v)
		}
		filter.Limit = limit
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}

	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("invalid offset: %q must be an integer", v)
		}
		filter.Offset = offset
	}

	if v := q.Get("after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid after time: %q must be RFC3339 format (e.g., 2024-01-15T00:00:00Z)", v)
		}
		filter.After = &t
	}
	if v := q.Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid before time: %q must be RFC3339 format (e.g., 2024-01-15T00:00:00Z)", v)
		}
		filter.Before = &t
	}
	return filter, nil
}

// callStore returns the call log store, answering 503 when logging is off.
func callStore(w http.ResponseWriter, r *http.Request) (llmcall.Store, bool) {
	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "LLM call log is disabled")
		return nil, false
	}
	return store, true
}

// callFlags are the CLI filters shared by the list and counts commands.
type callFlags struct {
	runID, group, promptKey, provider, model string
	success, failed                          bool
}

func (f *callFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.runID, "run-id", "", "Filter by run ID")
	cmd.Flags().StringVar(&f.group, "group", "", "Filter by group key")
	cmd.Flags().StringVar(&f.promptKey, "prompt-key", "", "Filter by prompt key")
	cmd.Flags().StringVar(&f.provider, "provider", "", "Filter by provider")
	cmd.Flags().StringVar(&f.model, "model", "", "Filter by model")
	cmd.Flags().BoolVar(&f.success, "success", false, "Only successful calls")
	cmd.Flags().BoolVar(&f.failed, "failed", false, "Only failed calls")
	cmd.MarkFlagsMutuallyExclusive("success", "failed")
}

func (f *callFlags) params() map[string]string {
	p := map[string]string{
		"run_id":     f.runID,
		"group":      f.group,
		"prompt_key": f.promptKey,
		"provider":   f.provider,
		"model":      f.model,
	}
	switch {
	case f.success:
		p["success"] = "true"
	case f.failed:
		p["success"] = "false"
	}
	return p
}

// ListLLMCallsEndpoint handles GET /api/llmcalls.
type ListLLMCallsEndpoint struct{}

func (e *ListLLMCallsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls", e.handler
}

func (e *ListLLMCallsEndpoint) RequiresInit() bool { return true }

func (e *ListLLMCallsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store, ok := callStore(w, r)
	if !ok {
		return
	}
	filter, err := parseCallFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	calls, err := store.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if calls == nil {
		calls = []llmcall.Call{}
	}
	writeJSON(w, http.StatusOK, LLMCallsResponse{Calls: calls, Total: len(calls)})
}

func (e *ListLLMCallsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var flags callFlags
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded LLM calls, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := flags.params()
			if limit > 0 {
				params["limit"] = strconv.Itoa(limit)
			}
			if offset > 0 {
				params["offset"] = strconv.Itoa(offset)
			}

			var resp LLMCallsResponse
			client := api.NewClient(getServerURL())
			if err := client.Get(cmd.Context(), api.WithQuery("/api/llmcalls", params), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	flags.bind(cmd)
	cmd.Flags().IntVar(&limit, "limit", 100, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Result offset")
	return cmd
}

// GetLLMCallEndpoint handles GET /api/llmcalls/{id}.
type GetLLMCallEndpoint struct{}

func (e *GetLLMCallEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls/{id}", e.handler
}

func (e *GetLLMCallEndpoint) RequiresInit() bool { return true }

func (e *GetLLMCallEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store, ok := callStore(w, r)
	if !ok {
		return
	}

	call, err := store.Get(r.Context(), r.PathValue("id"))
	switch {
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	case call == nil:
		writeError(w, http.StatusNotFound, "LLM call not found")
	default:
		writeJSON(w, http.StatusOK, LLMCallResponse{Call: call})
	}
}

func (e *GetLLMCallEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one recorded LLM call with its prompt and response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp LLMCallResponse
			client := api.NewClient(getServerURL())
			if err := client.Get(cmd.Context(), "/api/llmcalls/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp.Call)
		},
	}
}

// LLMCallCountsEndpoint handles GET /api/llmcalls/counts.
// Accepts the same filters as the list endpoint; paging is ignored.
type LLMCallCountsEndpoint struct{}

func (e *LLMCallCountsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls/counts", e.handler
}

func (e *LLMCallCountsEndpoint) RequiresInit() bool { return true }

func (e *LLMCallCountsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store, ok := callStore(w, r)
	if !ok {
		return
	}
	filter, err := parseCallFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Limit, filter.Offset = 0, 0

	calls, err := store.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, LLMCallCountsResponse{Counts: llmcall.CountByPromptKey(calls)})
}

func (e *LLMCallCountsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var flags callFlags
	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Count recorded LLM calls by prompt key",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp LLMCallCountsResponse
			client := api.NewClient(getServerURL())
			if err := client.Get(cmd.Context(), api.WithQuery("/api/llmcalls/counts", flags.params()), &resp); err != nil {
				return err
			}
			return api.Output(resp.Counts)
		},
	}
	flags.bind(cmd)
	return cmd
}
