package endpoints

import (
	"github.com/jackzampolin/redline/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		&ListProvidersEndpoint{},

		// Correction runs
		&CorrectEndpoint{},
		&ListRunsEndpoint{},
		&GetRunEndpoint{},
		&CancelRunEndpoint{},

		// LLM call history endpoints
		&ListLLMCallsEndpoint{},
		&LLMCallCountsEndpoint{},
		&GetLLMCallEndpoint{},

		// Metrics endpoints
		&MetricsSummaryEndpoint{},
		&MetricsDetailedEndpoint{},
		&MetricsCostEndpoint{},

		// Prompt endpoints
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
	}
}

// RunCommands returns endpoints for correction run operations.
func RunCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListRunsEndpoint{},
		&GetRunEndpoint{},
		&CancelRunEndpoint{},
	}
}

// LLMCallCommands returns endpoints for LLM call history operations.
func LLMCallCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListLLMCallsEndpoint{},
		&GetLLMCallEndpoint{},
		&LLMCallCountsEndpoint{},
	}
}

// MetricsCommands returns endpoints for metrics operations.
func MetricsCommands() []api.Endpoint {
	return []api.Endpoint{
		&MetricsSummaryEndpoint{},
		&MetricsDetailedEndpoint{},
		&MetricsCostEndpoint{},
	}
}

// PromptCommands returns endpoints for prompt operations.
func PromptCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
	}
}
