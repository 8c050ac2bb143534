// Package models defines the core data types for Praxis.
package models

import (
	"time"
)

// Goal is one ordered objective an agent pursues. Goals with a numeric
// target carry a comparator so progress can be evaluated mechanically.
type Goal struct {
	Description string   `json:"description"`
	Priority    int      `json:"priority"`
	Target      *float64 `json:"target,omitempty"`
	Comparator  string   `json:"comparator,omitempty"` // gte, lte, eq
}

// AgentBudgets bounds the resources a single agent may consume.
// Zero values fall back to engine defaults at run time.
type AgentBudgets struct {
	MaxStepsPerRun      int `json:"max_steps_per_run"`
	MaxToolCallsPerStep int `json:"max_tool_calls_per_step"`
	MaxTokens           int `json:"max_tokens"`
	TimeoutSeconds      int `json:"timeout_seconds"`
	MaxRunsPerHour      int `json:"max_runs_per_hour"`
	MaxRunsPerDay       int `json:"max_runs_per_day"`
}

// AgentConfig is the immutable-per-run snapshot of an agent's policy.
// The executor reads it once at run start and never reloads it, even if
// the underlying record changes mid-execution.
type AgentConfig struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	IsActive bool   `json:"is_active"`

	Personality  string   `json:"personality,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	Goals        []Goal   `json:"goals,omitempty"`
	Constraints  []string `json:"constraints,omitempty"`

	// AllowedTools and DeniedTools are tool name patterns. A trailing "*"
	// matches any suffix. Deny always wins over allow.
	AllowedTools []string `json:"allowed_tools,omitempty"`
	DeniedTools  []string `json:"denied_tools,omitempty"`

	Budgets AgentBudgets `json:"budgets"`

	// Backend selection for the completion provider.
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
