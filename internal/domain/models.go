package domain

import (
	"encoding/json"
	"time"
)

// CallRecord is one completed call tied to the strategy version it ran on.
type CallRecord struct {
	ID                string          `json:"id"`
	ExternalCallRef   string          `json:"external_call_ref"`
	StrategyVersionID string          `json:"strategy_version_id"`
	AgentVersion      string          `json:"agent_version,omitempty"`
	Transcript        string          `json:"transcript"`
	Outcome           CallOutcome     `json:"outcome"`
	DurationSeconds   int             `json:"duration_seconds"`
	CustomerNumber    string          `json:"customer_number,omitempty"`
	Analysis          json.RawMessage `json:"analysis,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// PipelineJob tracks one unit of background work.
type PipelineJob struct {
	ID        string    `json:"id"`
	Type      JobType   `json:"type"`
	Ref       string    `json:"ref"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
