package models

import (
	"encoding/json"
	"time"
)

// RiskLevel classifies a prospective tool call.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank orders risk levels for comparison; higher is riskier.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskCritical:
		return 3
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// ApprovalStatus is the lifecycle state of an approval request.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalDenied   ApprovalStatus = "denied"
	ApprovalExpired  ApprovalStatus = "expired"
)

// Resolved reports whether the request has left the pending state.
func (s ApprovalStatus) Resolved() bool {
	return s != ApprovalPending
}

// ApprovalRequest records a human sign-off demand for a risky tool call.
// Its status transitions exactly once, except the implicit pending to
// expired transition driven by a time sweep; the first resolution wins
// under race.
type ApprovalRequest struct {
	ID          string `json:"id"`
	ExecutionID string `json:"execution_id"`
	AgentID     string `json:"agent_id"`

	ToolName        string          `json:"tool_name"`
	ToolDescription string          `json:"tool_description,omitempty"`
	Input           json.RawMessage `json:"input,omitempty"`
	Risk            RiskLevel       `json:"risk"`

	Status         ApprovalStatus `json:"status"`
	ResolvedBy     string         `json:"resolved_by,omitempty"`
	ResolutionNote string         `json:"resolution_note,omitempty"`
	ResolvedAt     time.Time      `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the request is past its expiry at the given time.
func (a *ApprovalRequest) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}
