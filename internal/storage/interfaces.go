// Package storage defines the record store contracts the runtime
// depends on, plus SQLite and in-memory implementations.
//
// The runtime only ever sees the typed entities of pkg/models; row
// translation happens inside each implementation. Conditional updates
// (UpdateStatus, Resolve) are the concurrency primitive: they compare
// the current state and fail with ErrConflict when another writer got
// there first.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/praxishq/praxis/pkg/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflicting update")
)

// AgentStore persists agent configurations.
type AgentStore interface {
	Create(ctx context.Context, agent *models.AgentConfig) error
	Get(ctx context.Context, id string) (*models.AgentConfig, error)
	Update(ctx context.Context, agent *models.AgentConfig) error
	Delete(ctx context.Context, id string) error
}

// ExecutionStore persists executions and their step records.
type ExecutionStore interface {
	Create(ctx context.Context, exec *models.Execution) error
	Get(ctx context.Context, id string) (*models.Execution, error)
	Update(ctx context.Context, exec *models.Execution) error

	// UpdateStatus transitions an execution from one status to another.
	// It fails with ErrConflict when the stored status is not `from`,
	// which makes suspension and resumption safe across processes.
	UpdateStatus(ctx context.Context, id string, from, to models.ExecutionStatus) error

	// AppendStep records one loop iteration. Step numbers are assigned
	// by the executor and must be contiguous from 0.
	AppendStep(ctx context.Context, step *models.ExecutionStep) error
	ListSteps(ctx context.Context, executionID string) ([]*models.ExecutionStep, error)

	// CountForAgentSince counts executions created for an agent after
	// the given time, used for run-frequency budgets.
	CountForAgentSince(ctx context.Context, agentID string, since time.Time) (int, error)
}

// ToolCallLogStore persists dispatch audit rows.
type ToolCallLogStore interface {
	Create(ctx context.Context, log *models.ToolCallLog) error
	Update(ctx context.Context, log *models.ToolCallLog) error
	ListByExecution(ctx context.Context, executionID string) ([]*models.ToolCallLog, error)
}

// ApprovalStore persists approval requests.
type ApprovalStore interface {
	Create(ctx context.Context, req *models.ApprovalRequest) error
	Get(ctx context.Context, id string) (*models.ApprovalRequest, error)

	// Resolve transitions a pending request to a resolved status. The
	// first write wins; later attempts fail with ErrConflict.
	Resolve(ctx context.Context, id string, to models.ApprovalStatus, by, note string, at time.Time) error

	ListPending(ctx context.Context, agentID string) ([]*models.ApprovalRequest, error)

	// ListExpired returns pending requests whose expiry is before now.
	ListExpired(ctx context.Context, now time.Time) ([]*models.ApprovalRequest, error)
}

// MemoryStore persists durable memories.
type MemoryStore interface {
	Insert(ctx context.Context, mem *models.Memory) error
	Get(ctx context.Context, id string) (*models.Memory, error)
	Delete(ctx context.Context, id string) error

	// List returns an agent's memories, optionally filtered by kind and
	// subject. Similarity ranking happens above this layer.
	List(ctx context.Context, agentID string, kinds []models.MemoryKind, subject string) ([]*models.Memory, error)

	Count(ctx context.Context, agentID string) (int, error)

	// Touch bumps access accounting on retrieval hits.
	Touch(ctx context.Context, id string, at time.Time) error
}

// EpisodeStore persists the append-only episodic log.
type EpisodeStore interface {
	Insert(ctx context.Context, ep *models.Episode) error
	ListByAgent(ctx context.Context, agentID string, limit int) ([]*models.Episode, error)
	ListByOutcome(ctx context.Context, agentID string, outcome models.EpisodeOutcome, limit int) ([]*models.Episode, error)
}

// StoreSet groups the storage dependencies the runtime is wired with.
type StoreSet struct {
	Agents     AgentStore
	Executions ExecutionStore
	ToolCalls  ToolCallLogStore
	Approvals  ApprovalStore
	Memories   MemoryStore
	Episodes   EpisodeStore

	closer func() error
}

// Close releases any underlying resources.
func (s *StoreSet) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
