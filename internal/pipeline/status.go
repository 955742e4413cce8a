package pipeline

// RunState is the lifecycle state of a whole run.
type RunState string

const (
	RunIdle         RunState = "idle"
	RunRunning      RunState = "running"
	RunAllCompleted RunState = "all_completed"
)

// GroupState is the lifecycle state of one group within a run.
type GroupState string

const (
	GroupPending    GroupState = "pending"
	GroupChunking   GroupState = "chunking"
	GroupProcessing GroupState = "processing"
	GroupCompleted  GroupState = "completed"
	GroupCancelled  GroupState = "cancelled"
)

// GroupStatus reports progress of one group.
type GroupStatus struct {
	Key   string     `json:"key"`
	State GroupState `json:"state"`
	// Chunk is the 1-based chunk being processed, or the last one processed.
	Chunk       int `json:"chunk"`
	Chunks      int `json:"chunks"`
	Corrections int `json:"corrections"`
}

// Status is a point-in-time snapshot of a run.
type Status struct {
	RunID           string        `json:"run_id,omitempty"`
	State           RunState      `json:"state"`
	TotalChunks     int           `json:"total_chunks"`
	ProcessedChunks int           `json:"processed_chunks"`
	Percent         int           `json:"percent"`
	Cancelled       bool          `json:"cancelled,omitempty"`
	Groups          []GroupStatus `json:"groups,omitempty"`
}
