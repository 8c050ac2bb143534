package models

import (
	"time"
)

// MemoryKind categorizes a durable memory.
type MemoryKind string

const (
	MemoryFact         MemoryKind = "fact"
	MemoryPreference   MemoryKind = "preference"
	MemoryPattern      MemoryKind = "pattern"
	MemoryRelationship MemoryKind = "relationship"
	MemoryOutcome      MemoryKind = "outcome"
)

// Memory is a durable, embeddable item retrievable by semantic
// similarity. Embeddings are stored alongside the row and never
// serialized to JSON.
type Memory struct {
	ID      string     `json:"id"`
	AgentID string     `json:"agent_id"`
	Kind    MemoryKind `json:"kind"`
	Content string     `json:"content"`

	Embedding []float32 `json:"-"`

	Confidence float64  `json:"confidence"` // 0-1
	Importance int      `json:"importance"` // ordinal, higher matters more
	Subject    string   `json:"subject,omitempty"`
	Tags       []string `json:"tags,omitempty"`

	AccessCount    int        `json:"access_count"`
	LastAccessedAt time.Time  `json:"last_accessed_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ScoredMemory pairs a memory with its similarity to a query.
type ScoredMemory struct {
	Memory     *Memory `json:"memory"`
	Similarity float64 `json:"similarity"`
}

// EpisodeOutcome summarizes how a run ended.
type EpisodeOutcome string

const (
	OutcomeSuccess EpisodeOutcome = "success"
	OutcomePartial EpisodeOutcome = "partial"
	OutcomeFailure EpisodeOutcome = "failure"
)

// Episode is the durable summary of one completed execution, used to
// bias future retrieval toward patterns that worked.
type Episode struct {
	ID          string         `json:"id"`
	AgentID     string         `json:"agent_id"`
	ExecutionID string         `json:"execution_id"`
	Outcome     EpisodeOutcome `json:"outcome"`
	Actions     []ActionRecord `json:"actions,omitempty"`
	Lessons     string         `json:"lessons,omitempty"`

	// ShouldRepeat marks episodes worth imitating in future runs.
	ShouldRepeat bool `json:"should_repeat"`

	CreatedAt time.Time `json:"created_at"`
}
