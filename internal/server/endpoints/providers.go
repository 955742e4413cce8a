package endpoints

import (
	"net/http"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/redline/internal/api"
	"github.com/jackzampolin/redline/internal/svcctx"
)

// ProviderInfo describes a configured LLM provider.
type ProviderInfo struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Model      string  `json:"model,omitempty"`
	RateLimit  float64 `json:"rate_limit,omitempty"`
	Enabled    bool    `json:"enabled"`
	Registered bool    `json:"registered"`
	Default    bool    `json:"default,omitempty"`
}

// ProvidersResponse lists configured LLM providers.
type ProvidersResponse struct {
	Providers []ProviderInfo `json:"providers"`
}

// ListProvidersEndpoint handles GET /api/providers.
type ListProvidersEndpoint struct{}

func (e *ListProvidersEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/providers", e.handler
}

func (e *ListProvidersEndpoint) RequiresInit() bool { return true }

func (e *ListProvidersEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s := svcctx.ServicesFrom(r.Context())
	cfg := s.Config()

	seen := make(map[string]bool)
	resp := ProvidersResponse{Providers: []ProviderInfo{}}
	for name, p := range cfg.LLMProviders {
		seen[name] = true
		resp.Providers = append(resp.Providers, ProviderInfo{
			Name:       name,
			Type:       p.Type,
			Model:      p.Model,
			RateLimit:  p.RateLimit,
			Enabled:    p.Enabled,
			Registered: s.Registry.HasLLM(name),
			Default:    name == cfg.Defaults.LLMProvider,
		})
	}
	// Clients registered in code have no config entry
	for _, name := range s.Registry.ListLLM() {
		if seen[name] {
			continue
		}
		client, _ := s.Registry.GetLLM(name)
		resp.Providers = append(resp.Providers, ProviderInfo{
			Name:       name,
			Type:       client.Name(),
			Enabled:    true,
			Registered: true,
			Default:    name == cfg.Defaults.LLMProvider,
		})
	}
	sort.Slice(resp.Providers, func(i, j int) bool {
		return resp.Providers[i].Name < resp.Providers[j].Name
	})

	writeJSON(w, http.StatusOK, resp)
}

func (e *ListProvidersEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured LLM providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ProvidersResponse
			if err := client.Get(cmd.Context(), "/api/providers", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
