package models

import (
	"encoding/json"
	"time"
)

// ToolCallStatus tracks a dispatch attempt. Transitions only move
// forward: pending, running, then one of completed, failed, or denied.
type ToolCallStatus string

const (
	ToolCallPending   ToolCallStatus = "pending"
	ToolCallRunning   ToolCallStatus = "running"
	ToolCallCompleted ToolCallStatus = "completed"
	ToolCallFailed    ToolCallStatus = "failed"
	ToolCallDenied    ToolCallStatus = "denied"
)

// ToolCallLog is one audit row per dispatch attempt. Writes to it are
// best-effort: audit logging never blocks the agent.
type ToolCallLog struct {
	ID          string          `json:"id"`
	ExecutionID string          `json:"execution_id"`
	AgentID     string          `json:"agent_id"`
	ToolName    string          `json:"tool_name"`
	Status      ToolCallStatus  `json:"status"`
	Input       json.RawMessage `json:"input,omitempty"`
	Output      string          `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at,omitempty"`
	Duration    time.Duration   `json:"duration"`
}
