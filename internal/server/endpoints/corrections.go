package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/redline/internal/api"
	"github.com/jackzampolin/redline/internal/cache"
	"github.com/jackzampolin/redline/internal/metrics"
	"github.com/jackzampolin/redline/internal/pipeline"
	"github.com/jackzampolin/redline/internal/svcctx"
	"github.com/jackzampolin/redline/internal/types"
)

// CorrectRequest is the body of POST /api/corrections.
type CorrectRequest struct {
	// Groups maps a group key to its ordered items. Groups run in key order.
	Groups map[string][]types.ScannedItem `json:"groups"`

	Provider            string   `json:"provider,omitempty"`
	Model               string   `json:"model,omitempty"`
	Temperature         *float64 `json:"temperature,omitempty"`
	MaxCharsPerChunk    int      `json:"max_chars_per_chunk,omitempty"`
	MaxConcurrentGroups int      `json:"max_concurrent_groups,omitempty"`

	// Async returns immediately with the run ID; poll GET /api/runs/{id}.
	Async bool `json:"async,omitempty"`
}

// RunResponse reports a correction run. Results and Summary are set once the run completed.
type RunResponse struct {
	RunID   string           `json:"run_id"`
	Status  pipeline.Status  `json:"status"`
	Cache   cache.Stats      `json:"cache"`
	Results types.Results    `json:"results,omitempty"`
	Summary *metrics.Summary `json:"summary,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// runResponse snapshots a run. Results are included only after completion.
func runResponse(s *svcctx.Services, h *pipeline.Handle) RunResponse {
	resp := RunResponse{
		RunID:  h.ID(),
		Status: h.Status(),
		Cache:  h.CacheStats(),
	}
	select {
	case <-h.Done():
	default:
		return resp
	}

	results, err := h.Wait()
	resp.Results = results
	if err != nil {
		resp.Error = err.Error()
	}
	if s != nil && s.Metrics != nil {
		resp.Summary = s.Metrics.Summary(metrics.Filter{RunID: h.ID()})
	}
	return resp
}

// CorrectEndpoint handles POST /api/corrections.
type CorrectEndpoint struct{}

func (e *CorrectEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/corrections", e.handler
}

func (e *CorrectEndpoint) RequiresInit() bool { return true }

func (e *CorrectEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req CorrectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Groups) == 0 {
		writeError(w, http.StatusBadRequest, "groups required")
		return
	}
	if req.MaxCharsPerChunk < 0 || req.MaxConcurrentGroups < 0 {
		writeError(w, http.StatusBadRequest, "limits must not be negative")
		return
	}

	s := svcctx.ServicesFrom(r.Context())
	orch, err := s.NewOrchestrator(svcctx.RunOptions{
		Provider:            req.Provider,
		Model:               req.Model,
		Temperature:         req.Temperature,
		MaxCharsPerChunk:    req.MaxCharsPerChunk,
		MaxConcurrentGroups: req.MaxConcurrentGroups,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, svcctx.ErrNoProvider) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	groups := pipeline.GroupsFromMap(req.Groups)

	if req.Async {
		// Detach from the request so the run outlives it; cancel via /api/runs/{id}/cancel.
		ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
		h := orch.Start(ctx, groups)
		go func() {
			<-h.Done()
			cancel()
		}()
		if s.Runs != nil {
			s.Runs.Add(h, cancel)
		}
		writeJSON(w, http.StatusAccepted, runResponse(s, h))
		return
	}

	h := orch.Start(r.Context(), groups)
	if s.Runs != nil {
		s.Runs.Add(h, nil)
	}
	<-h.Done()
	writeJSON(w, http.StatusOK, runResponse(s, h))
}

func (e *CorrectEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req CorrectRequest

	cmd := &cobra.Command{
		Use:   "correct <file>",
		Short: "Run a correction pass on the server",
		Long: `Send a JSON document of item groups to the server for correction.

The file holds either {"groups": {...}} or just the groups mapping:

  {"chapter-1": [{"text": "les porte son fermé", "source_id": "p1"}]}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := readGroupsFile(args[0])
			if err != nil {
				return err
			}
			req.Groups = groups

			client := api.NewClient(getServerURL())
			var resp RunResponse
			if err := client.Post(cmd.Context(), "/api/corrections", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&req.Provider, "provider", "", "LLM provider (default from config)")
	cmd.Flags().StringVar(&req.Model, "model", "", "Model override")
	cmd.Flags().IntVar(&req.MaxCharsPerChunk, "max-chars", 0, "Characters per chunk (default from config)")
	cmd.Flags().IntVar(&req.MaxConcurrentGroups, "max-groups", 0, "Concurrent groups (default from config)")
	cmd.Flags().BoolVar(&req.Async, "async", false, "Return immediately with the run ID")
	return cmd
}

// readGroupsFile loads groups from a request body or a bare mapping.
func readGroupsFile(path string) (map[string][]types.ScannedItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseGroups(data)
}

// ParseGroups decodes either {"groups": {...}} or a bare key to items mapping.
func ParseGroups(data []byte) (map[string][]types.ScannedItem, error) {
	var wrapped struct {
		Groups map[string][]types.ScannedItem `json:"groups"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Groups != nil {
		return wrapped.Groups, nil
	}

	var bare map[string][]types.ScannedItem
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("invalid groups document: %w", err)
	}
	return bare, nil
}
