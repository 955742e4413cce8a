package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/redline/internal/api"
	"github.com/jackzampolin/redline/internal/pipeline"
	"github.com/jackzampolin/redline/internal/svcctx"
)

// RunsResponse lists tracked runs, newest first.
type RunsResponse struct {
	Runs []pipeline.Status `json:"runs"`
}

// ListRunsEndpoint handles GET /api/runs.
type ListRunsEndpoint struct{}

func (e *ListRunsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/runs", e.handler
}

func (e *ListRunsEndpoint) RequiresInit() bool { return true }

func (e *ListRunsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	runs := svcctx.RunsFrom(r.Context())
	if runs == nil {
		writeError(w, http.StatusInternalServerError, "run tracker not available")
		return
	}
	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs.List()})
}

func (e *ListRunsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recent correction runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp RunsResponse
			if err := client.Get(cmd.Context(), "/api/runs", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetRunEndpoint handles GET /api/runs/{id}.
type GetRunEndpoint struct{}

func (e *GetRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/runs/{id}", e.handler
}

func (e *GetRunEndpoint) RequiresInit() bool { return true }

func (e *GetRunEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}

	s := svcctx.ServicesFrom(r.Context())
	if s.Runs == nil {
		writeError(w, http.StatusInternalServerError, "run tracker not available")
		return
	}
	h, ok := s.Runs.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	writeJSON(w, http.StatusOK, runResponse(s, h))
}

func (e *GetRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a run's status, and its results once complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp RunResponse
			if err := client.Get(cmd.Context(), "/api/runs/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CancelRunEndpoint handles POST /api/runs/{id}/cancel.
// Chunks already in flight are dropped; the run still completes with partial results.
type CancelRunEndpoint struct{}

func (e *CancelRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/runs/{id}/cancel", e.handler
}

func (e *CancelRunEndpoint) RequiresInit() bool { return true }

func (e *CancelRunEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	runs := svcctx.RunsFrom(r.Context())
	if runs == nil {
		writeError(w, http.StatusInternalServerError, "run tracker not available")
		return
	}
	h, ok := runs.Cancel(id)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, h.Status())
}

func (e *CancelRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a running correction pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp pipeline.Status
			if err := client.Post(cmd.Context(), "/api/runs/"+args[0]+"/cancel", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
