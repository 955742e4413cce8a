package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/redline/internal/api"
	"github.com/jackzampolin/redline/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Redline server via HTTP.

These commands require a running server (redline serve).
Use --server to specify a custom server URL.

Examples:
  redline api health                      # Check server health
  redline api correct groups.json --async # Start a run in the background
  redline api runs get <id>               # Poll a run
  redline api llmcalls list --group ch-1  # Inspect recorded provider calls`,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Correction run commands",
}

var llmcallsCmd = &cobra.Command{
	Use:   "llmcalls",
	Short: "LLM call history commands",
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Metrics and cost tracking commands",
}

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Prompt inspection commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func addGroup(parent, group *cobra.Command, eps []api.Endpoint) {
	for _, ep := range eps {
		group.AddCommand(ep.Command(getServerURL))
	}
	parent.AddCommand(group)
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ListProvidersEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.CorrectEndpoint{}).Command(getServerURL))

	addGroup(apiCmd, runsCmd, endpoints.RunCommands())
	addGroup(apiCmd, llmcallsCmd, endpoints.LLMCallCommands())
	addGroup(apiCmd, metricsCmd, endpoints.MetricsCommands())
	addGroup(apiCmd, promptsCmd, endpoints.PromptCommands())

	rootCmd.AddCommand(apiCmd)
}
