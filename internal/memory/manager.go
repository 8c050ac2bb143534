// Package memory implements the semantic memory subsystem: embedding
// backed storage and retrieval of durable facts, deduplication,
// episodic recording, and the consolidation maintenance pass.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/praxishq/praxis/internal/memory/embeddings"
	"github.com/praxishq/praxis/internal/observability"
	"github.com/praxishq/praxis/internal/storage"
	"github.com/praxishq/praxis/pkg/models"
)

const (
	// DefaultSimilarityThreshold is the minimum cosine similarity for
	// FindSimilar to report a duplicate.
	DefaultSimilarityThreshold = 0.95

	// DefaultRetrieveLimit caps how many memories Retrieve returns when
	// the caller does not say.
	DefaultRetrieveLimit = 10

	// consolidationMinimum is the memory count below which Consolidate
	// is a no-op. Small stores are cheap to scan and pruning them
	// mostly loses signal.
	consolidationMinimum = 100

	// Pruning thresholds for the consolidation pass. A memory is pruned
	// when it is unimportant, rarely accessed, and old, or when its own
	// expiry has passed.
	pruneImportanceBelow = 3
	pruneAccessBelow     = 2
	pruneOlderThan       = 30 * 24 * time.Hour
)

// RetrieveOptions constrain a similarity search.
type RetrieveOptions struct {
	Limit   int
	Kinds   []models.MemoryKind
	Subject string
}

// Manager owns all Memory and Episode writes. Ranking happens in
// process: candidate rows are filtered by the store and scored here by
// cosine similarity against the query embedding.
type Manager struct {
	memories storage.MemoryStore
	episodes storage.EpisodeStore
	embedder embeddings.Provider
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// ManagerConfig carries the manager's dependencies. Embedder is
// required; Metrics and Logger may be nil.
type ManagerConfig struct {
	Memories storage.MemoryStore
	Episodes storage.EpisodeStore
	Embedder embeddings.Provider
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// NewManager creates a memory manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		memories: cfg.Memories,
		episodes: cfg.Episodes,
		embedder: cfg.Embedder,
		metrics:  cfg.Metrics,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Store embeds the memory's content and persists it.
func (m *Manager) Store(ctx context.Context, mem *models.Memory) error {
	if mem.AgentID == "" {
		return fmt.Errorf("memory requires an agent id")
	}
	if mem.Content == "" {
		return fmt.Errorf("memory requires content")
	}
	if mem.Kind == "" {
		mem.Kind = models.MemoryFact
	}

	vec, err := m.embedder.Embed(ctx, mem.Content)
	if err != nil {
		return fmt.Errorf("embed memory content: %w", err)
	}
	mem.Embedding = vec
	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = m.now()
	}

	if err := m.memories.Insert(ctx, mem); err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	if m.metrics != nil {
		m.metrics.RecordMemoryOperation("store", string(mem.Kind))
	}
	m.logger.Debug("memory stored", "agent_id", mem.AgentID, "kind", mem.Kind, "memory_id", mem.ID)
	return nil
}

// Retrieve embeds the query and returns the agent's memories ranked by
// cosine similarity descending, constrained by the given options.
// Returned rows get their access accounting bumped.
func (m *Manager) Retrieve(ctx context.Context, agentID, query string, opts RetrieveOptions) ([]*models.ScoredMemory, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultRetrieveLimit
	}

	queryVec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := m.memories.List(ctx, agentID, opts.Kinds, opts.Subject)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}

	now := m.now()
	scored := make([]*models.ScoredMemory, 0, len(candidates))
	for _, mem := range candidates {
		if mem.ExpiresAt != nil && mem.ExpiresAt.Before(now) {
			continue
		}
		scored = append(scored, &models.ScoredMemory{
			Memory:     mem,
			Similarity: CosineSimilarity(queryVec, mem.Embedding),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	for _, s := range scored {
		if err := m.memories.Touch(ctx, s.Memory.ID, now); err != nil {
			m.logger.Warn("failed to bump memory access", "memory_id", s.Memory.ID, "error", err)
		}
	}
	if m.metrics != nil {
		m.metrics.RecordMemoryOperation("retrieve", "")
	}
	return scored, nil
}

// FindSimilar returns the agent's single closest memory to the given
// content, but only when similarity meets the threshold. A zero or
// negative threshold means DefaultSimilarityThreshold. Returns nil when
// nothing is close enough.
func (m *Manager) FindSimilar(ctx context.Context, agentID, content string, threshold float64) (*models.Memory, error) {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	vec, err := m.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	candidates, err := m.memories.List(ctx, agentID, nil, "")
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}

	var best *models.Memory
	bestScore := threshold
	for _, mem := range candidates {
		if score := CosineSimilarity(vec, mem.Embedding); score >= bestScore {
			best = mem
			bestScore = score
		}
	}
	return best, nil
}

// Consolidate prunes an agent's memory store: expired rows always go;
// beyond that, rows that are simultaneously unimportant, rarely
// accessed, and old are deleted. Runs only once the agent holds at
// least 100 memories; below that it is a free no-op. Returns the number
// of pruned rows.
func (m *Manager) Consolidate(ctx context.Context, agentID string) (int, error) {
	count, err := m.memories.Count(ctx, agentID)
	if err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	if count < consolidationMinimum {
		return 0, nil
	}

	all, err := m.memories.List(ctx, agentID, nil, "")
	if err != nil {
		return 0, fmt.Errorf("list memories: %w", err)
	}

	now := m.now()
	pruned := 0
	for _, mem := range all {
		if !m.shouldPrune(mem, now) {
			continue
		}
		if err := m.memories.Delete(ctx, mem.ID); err != nil {
			return pruned, fmt.Errorf("delete memory %s: %w", mem.ID, err)
		}
		pruned++
	}

	if m.metrics != nil {
		m.metrics.RecordMemoryOperation("consolidate", "")
	}
	m.logger.Info("memory consolidation complete", "agent_id", agentID, "pruned", pruned)
	return pruned, nil
}

func (m *Manager) shouldPrune(mem *models.Memory, now time.Time) bool {
	if mem.ExpiresAt != nil && mem.ExpiresAt.Before(now) {
		return true
	}
	return mem.Importance < pruneImportanceBelow &&
		mem.AccessCount < pruneAccessBelow &&
		now.Sub(mem.CreatedAt) > pruneOlderThan
}

// RecordEpisode appends one run summary to the episodic log.
func (m *Manager) RecordEpisode(ctx context.Context, ep *models.Episode) error {
	if ep.AgentID == "" {
		return fmt.Errorf("episode requires an agent id")
	}
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = m.now()
	}
	if err := m.episodes.Insert(ctx, ep); err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	if m.metrics != nil {
		m.metrics.RecordMemoryOperation("episode", string(ep.Outcome))
	}
	return nil
}

// GetSimilarEpisodes returns an agent's most recent episodes. Episodes
// carry no embeddings; recency stands in for relevance.
func (m *Manager) GetSimilarEpisodes(ctx context.Context, agentID string, limit int) ([]*models.Episode, error) {
	return m.episodes.ListByAgent(ctx, agentID, limit)
}

// GetSuccessfulEpisodes returns an agent's recent successful episodes,
// used to bias planning toward patterns that worked.
func (m *Manager) GetSuccessfulEpisodes(ctx context.Context, agentID string, limit int) ([]*models.Episode, error) {
	return m.episodes.ListByOutcome(ctx, agentID, models.OutcomeSuccess, limit)
}

// CosineSimilarity computes the cosine of the angle between two
// vectors. Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
