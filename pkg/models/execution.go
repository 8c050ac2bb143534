package models

import (
	"encoding/json"
	"time"
)

// TriggerType identifies what started an execution.
type TriggerType string

const (
	TriggerManual   TriggerType = "manual"
	TriggerSchedule TriggerType = "schedule"
	TriggerEvent    TriggerType = "event"
	TriggerWebhook  TriggerType = "webhook"
)

// Trigger describes the external cause of a run.
type Trigger struct {
	Type    TriggerType    `json:"type"`
	Event   string         `json:"event,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ExecutionStatus is the lifecycle state of one run.
type ExecutionStatus string

const (
	ExecutionPending         ExecutionStatus = "pending"
	ExecutionRunning         ExecutionStatus = "running"
	ExecutionWaitingApproval ExecutionStatus = "waiting_approval"
	ExecutionCompleted       ExecutionStatus = "completed"
	ExecutionFailed          ExecutionStatus = "failed"
	ExecutionCancelled       ExecutionStatus = "cancelled"
	ExecutionTimedOut        ExecutionStatus = "timed_out"
)

// Terminal reports whether no further transitions are possible.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionFailed, ExecutionCancelled, ExecutionTimedOut:
		return true
	default:
		return false
	}
}

// Execution is the durable record of one run. It doubles as the run's
// scratch state: created at run start, mutated only by the executor,
// persisted at every status transition.
type Execution struct {
	ID       string          `json:"id"`
	TenantID string          `json:"tenant_id"`
	AgentID  string          `json:"agent_id"`
	Status   ExecutionStatus `json:"status"`

	Trigger Trigger        `json:"trigger"`
	Summary string         `json:"summary,omitempty"`
	Vars    map[string]any `json:"vars,omitempty"`

	Error        string `json:"error,omitempty"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	StepCount    int    `json:"step_count"`
	ToolCalls    int    `json:"tool_calls"`

	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// StepKind classifies one loop iteration record.
type StepKind string

const (
	StepThink   StepKind = "think"
	StepAct     StepKind = "act"
	StepObserve StepKind = "observe"
)

// ExecutionStep is the append-only record of one loop iteration.
// Numbers are contiguous from 0 within an execution and never rewritten.
type ExecutionStep struct {
	ID          string          `json:"id"`
	ExecutionID string          `json:"execution_id"`
	Number      int             `json:"number"`
	Kind        StepKind        `json:"kind"`
	Reasoning   string          `json:"reasoning,omitempty"`
	ToolName    string          `json:"tool_name,omitempty"`
	ToolInput   json.RawMessage `json:"tool_input,omitempty"`
	ToolOutput  string          `json:"tool_output,omitempty"`
	Tokens      int             `json:"tokens"`
	StartedAt   time.Time       `json:"started_at"`
	Duration    time.Duration   `json:"duration"`
}

// ActionRecord is a denormalized summary of one completed tool
// invocation, kept in order for the episode and conversational feedback.
type ActionRecord struct {
	Tool      string          `json:"tool"`
	Input     json.RawMessage `json:"input,omitempty"`
	Output    string          `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
	Success   bool            `json:"success"`
	Timestamp time.Time       `json:"timestamp"`
}

// ExecutionResult is what Run returns to its caller. A failed run has the
// same shape as a successful one; callers branch on Success, never on a
// raised error.
type ExecutionResult struct {
	ExecutionID  string          `json:"execution_id"`
	Status       ExecutionStatus `json:"status"`
	Success      bool            `json:"success"`
	Error        string          `json:"error,omitempty"`
	Output       string          `json:"output,omitempty"`
	StepCount    int             `json:"step_count"`
	ToolCalls    int             `json:"tool_calls"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	Duration     time.Duration   `json:"duration"`
	Actions      []ActionRecord  `json:"actions,omitempty"`

	// ApprovalID is set when the run suspended waiting for approval.
	ApprovalID string `json:"approval_id,omitempty"`
}
