package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/praxishq/praxis/pkg/models"
)

// NewMemoryStoreSet builds a full in-memory StoreSet for testing and
// local runs.
func NewMemoryStoreSet() *StoreSet {
	return &StoreSet{
		Agents:     NewInMemAgentStore(),
		Executions: NewInMemExecutionStore(),
		ToolCalls:  NewInMemToolCallLogStore(),
		Approvals:  NewInMemApprovalStore(),
		Memories:   NewInMemMemoryStore(),
		Episodes:   NewInMemEpisodeStore(),
	}
}

// InMemAgentStore is an in-memory AgentStore implementation.
type InMemAgentStore struct {
	mu     sync.RWMutex
	agents map[string]*models.AgentConfig
}

// NewInMemAgentStore creates an empty in-memory agent store.
func NewInMemAgentStore() *InMemAgentStore {
	return &InMemAgentStore{agents: map[string]*models.AgentConfig{}}
}

func (s *InMemAgentStore) Create(ctx context.Context, agent *models.AgentConfig) error {
	if agent == nil {
		return errors.New("agent is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *agent
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	clone.UpdatedAt = clone.CreatedAt
	agent.ID = clone.ID
	agent.CreatedAt = clone.CreatedAt
	agent.UpdatedAt = clone.UpdatedAt
	s.agents[clone.ID] = &clone
	return nil
}

func (s *InMemAgentStore) Get(ctx context.Context, id string) (*models.AgentConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agent, ok := s.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *agent
	return &clone, nil
}

func (s *InMemAgentStore) Update(ctx context.Context, agent *models.AgentConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[agent.ID]; !ok {
		return ErrNotFound
	}
	clone := *agent
	clone.UpdatedAt = time.Now()
	agent.UpdatedAt = clone.UpdatedAt
	s.agents[clone.ID] = &clone
	return nil
}

func (s *InMemAgentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[id]; !ok {
		return ErrNotFound
	}
	delete(s.agents, id)
	return nil
}

// InMemExecutionStore is an in-memory ExecutionStore implementation.
type InMemExecutionStore struct {
	mu    sync.RWMutex
	execs map[string]*models.Execution
	steps map[string][]*models.ExecutionStep
}

// NewInMemExecutionStore creates an empty in-memory execution store.
func NewInMemExecutionStore() *InMemExecutionStore {
	return &InMemExecutionStore{
		execs: map[string]*models.Execution{},
		steps: map[string][]*models.ExecutionStep{},
	}
}

func (s *InMemExecutionStore) Create(ctx context.Context, exec *models.Execution) error {
	if exec == nil {
		return errors.New("execution is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *exec
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	exec.ID = clone.ID
	exec.CreatedAt = clone.CreatedAt
	s.execs[clone.ID] = &clone
	return nil
}

func (s *InMemExecutionStore) Get(ctx context.Context, id string) (*models.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.execs[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *exec
	return &clone, nil
}

func (s *InMemExecutionStore) Update(ctx context.Context, exec *models.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.execs[exec.ID]; !ok {
		return ErrNotFound
	}
	clone := *exec
	s.execs[clone.ID] = &clone
	return nil
}

func (s *InMemExecutionStore) UpdateStatus(ctx context.Context, id string, from, to models.ExecutionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, ok := s.execs[id]
	if !ok {
		return ErrNotFound
	}
	if exec.Status != from {
		return ErrConflict
	}
	exec.Status = to
	return nil
}

func (s *InMemExecutionStore) AppendStep(ctx context.Context, step *models.ExecutionStep) error {
	if step == nil {
		return errors.New("step is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *step
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	step.ID = clone.ID
	s.steps[clone.ExecutionID] = append(s.steps[clone.ExecutionID], &clone)
	return nil
}

func (s *InMemExecutionStore) ListSteps(ctx context.Context, executionID string) ([]*models.ExecutionStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	steps := s.steps[executionID]
	out := make([]*models.ExecutionStep, len(steps))
	for i, st := range steps {
		clone := *st
		out[i] = &clone
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *InMemExecutionStore) CountForAgentSince(ctx context.Context, agentID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, exec := range s.execs {
		if exec.AgentID == agentID && !exec.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// InMemToolCallLogStore is an in-memory ToolCallLogStore implementation.
type InMemToolCallLogStore struct {
	mu   sync.RWMutex
	logs map[string]*models.ToolCallLog
	byEx map[string][]string
}

// NewInMemToolCallLogStore creates an empty in-memory tool call log store.
func NewInMemToolCallLogStore() *InMemToolCallLogStore {
	return &InMemToolCallLogStore{
		logs: map[string]*models.ToolCallLog{},
		byEx: map[string][]string{},
	}
}

func (s *InMemToolCallLogStore) Create(ctx context.Context, log *models.ToolCallLog) error {
	if log == nil {
		return errors.New("log is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *log
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	log.ID = clone.ID
	s.logs[clone.ID] = &clone
	s.byEx[clone.ExecutionID] = append(s.byEx[clone.ExecutionID], clone.ID)
	return nil
}

func (s *InMemToolCallLogStore) Update(ctx context.Context, log *models.ToolCallLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.logs[log.ID]; !ok {
		return ErrNotFound
	}
	clone := *log
	s.logs[clone.ID] = &clone
	return nil
}

func (s *InMemToolCallLogStore) ListByExecution(ctx context.Context, executionID string) ([]*models.ToolCallLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byEx[executionID]
	out := make([]*models.ToolCallLog, 0, len(ids))
	for _, id := range ids {
		if log, ok := s.logs[id]; ok {
			clone := *log
			out = append(out, &clone)
		}
	}
	return out, nil
}

// InMemApprovalStore is an in-memory ApprovalStore implementation.
type InMemApprovalStore struct {
	mu   sync.RWMutex
	reqs map[string]*models.ApprovalRequest
}

// NewInMemApprovalStore creates an empty in-memory approval store.
func NewInMemApprovalStore() *InMemApprovalStore {
	return &InMemApprovalStore{reqs: map[string]*models.ApprovalRequest{}}
}

func (s *InMemApprovalStore) Create(ctx context.Context, req *models.ApprovalRequest) error {
	if req == nil {
		return errors.New("request is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *req
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	req.ID = clone.ID
	req.CreatedAt = clone.CreatedAt
	s.reqs[clone.ID] = &clone
	return nil
}

func (s *InMemApprovalStore) Get(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.reqs[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (s *InMemApprovalStore) Resolve(ctx context.Context, id string, to models.ApprovalStatus, by, note string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.reqs[id]
	if !ok {
		return ErrNotFound
	}
	if req.Status != models.ApprovalPending {
		return ErrConflict
	}
	req.Status = to
	req.ResolvedBy = by
	req.ResolutionNote = note
	req.ResolvedAt = at
	return nil
}

func (s *InMemApprovalStore) ListPending(ctx context.Context, agentID string) ([]*models.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ApprovalRequest
	for _, req := range s.reqs {
		if req.Status != models.ApprovalPending {
			continue
		}
		if agentID != "" && req.AgentID != agentID {
			continue
		}
		clone := *req
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemApprovalStore) ListExpired(ctx context.Context, now time.Time) ([]*models.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ApprovalRequest
	for _, req := range s.reqs {
		if req.Status == models.ApprovalPending && req.Expired(now) {
			clone := *req
			out = append(out, &clone)
		}
	}
	return out, nil
}

// InMemMemoryStore is an in-memory MemoryStore implementation.
type InMemMemoryStore struct {
	mu   sync.RWMutex
	mems map[string]*models.Memory
}

// NewInMemMemoryStore creates an empty in-memory memory store.
func NewInMemMemoryStore() *InMemMemoryStore {
	return &InMemMemoryStore{mems: map[string]*models.Memory{}}
}

func (s *InMemMemoryStore) Insert(ctx context.Context, mem *models.Memory) error {
	if mem == nil {
		return errors.New("memory is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *mem
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	mem.ID = clone.ID
	mem.CreatedAt = clone.CreatedAt
	s.mems[clone.ID] = &clone
	return nil
}

func (s *InMemMemoryStore) Get(ctx context.Context, id string) (*models.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mem, ok := s.mems[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *mem
	return &clone, nil
}

func (s *InMemMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mems[id]; !ok {
		return ErrNotFound
	}
	delete(s.mems, id)
	return nil
}

func (s *InMemMemoryStore) List(ctx context.Context, agentID string, kinds []models.MemoryKind, subject string) ([]*models.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Memory
	for _, mem := range s.mems {
		if mem.AgentID != agentID {
			continue
		}
		if len(kinds) > 0 && !kindIn(kinds, mem.Kind) {
			continue
		}
		if subject != "" && mem.Subject != subject {
			continue
		}
		clone := *mem
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemMemoryStore) Count(ctx context.Context, agentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, mem := range s.mems {
		if mem.AgentID == agentID {
			n++
		}
	}
	return n, nil
}

func (s *InMemMemoryStore) Touch(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mem, ok := s.mems[id]
	if !ok {
		return ErrNotFound
	}
	mem.AccessCount++
	mem.LastAccessedAt = at
	return nil
}

func kindIn(kinds []models.MemoryKind, k models.MemoryKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// InMemEpisodeStore is an in-memory EpisodeStore implementation.
type InMemEpisodeStore struct {
	mu       sync.RWMutex
	episodes []*models.Episode
}

// NewInMemEpisodeStore creates an empty in-memory episode store.
func NewInMemEpisodeStore() *InMemEpisodeStore {
	return &InMemEpisodeStore{}
}

func (s *InMemEpisodeStore) Insert(ctx context.Context, ep *models.Episode) error {
	if ep == nil {
		return errors.New("episode is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *ep
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	ep.ID = clone.ID
	ep.CreatedAt = clone.CreatedAt
	s.episodes = append(s.episodes, &clone)
	return nil
}

func (s *InMemEpisodeStore) ListByAgent(ctx context.Context, agentID string, limit int) ([]*models.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(agentID, "", limit), nil
}

func (s *InMemEpisodeStore) ListByOutcome(ctx context.Context, agentID string, outcome models.EpisodeOutcome, limit int) ([]*models.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(agentID, outcome, limit), nil
}

// filter returns newest-first episodes; must be called with s.mu held.
func (s *InMemEpisodeStore) filter(agentID string, outcome models.EpisodeOutcome, limit int) []*models.Episode {
	var out []*models.Episode
	for i := len(s.episodes) - 1; i >= 0; i-- {
		ep := s.episodes[i]
		if ep.AgentID != agentID {
			continue
		}
		if outcome != "" && ep.Outcome != outcome {
			continue
		}
		clone := *ep
		out = append(out, &clone)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
