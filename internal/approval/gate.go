// Package approval implements the human approval gate: filing requests
// for risky tool calls, resolving them exactly once, and flipping the
// suspended execution's status so an external scheduler can re-drive it.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/praxishq/praxis/internal/observability"
	"github.com/praxishq/praxis/internal/storage"
	"github.com/praxishq/praxis/pkg/models"
)

// ErrAlreadyResolved is returned when resolving a request that has
// already been approved, denied, or expired. The prior resolution is
// left untouched.
var ErrAlreadyResolved = errors.New("approval request already resolved")

// DeniedMessage is the error recorded on an execution cancelled by a
// human denying its pending approval.
const DeniedMessage = "Action denied by user"

// DefaultTTL is how long a request stays actionable after creation.
const DefaultTTL = 24 * time.Hour

// Gate owns ApprovalRequest transitions. Resolution is first-write-wins
// via the store's conditional update, so concurrent approve/deny races
// settle the same way regardless of process.
type Gate struct {
	approvals  storage.ApprovalStore
	executions storage.ExecutionStore
	metrics    *observability.Metrics
	logger     *slog.Logger
	ttl        time.Duration
	now        func() time.Time
}

// GateConfig carries the gate's dependencies. TTL defaults to
// DefaultTTL; Metrics and Logger may be nil.
type GateConfig struct {
	Approvals  storage.ApprovalStore
	Executions storage.ExecutionStore
	Metrics    *observability.Metrics
	Logger     *slog.Logger
	TTL        time.Duration
}

// NewGate creates an approval gate.
func NewGate(cfg GateConfig) *Gate {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Gate{
		approvals:  cfg.Approvals,
		executions: cfg.Executions,
		metrics:    cfg.Metrics,
		logger:     logger,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Create files a pending request, stamping status and expiry. The
// expiry is fixed at creation and never moves.
func (g *Gate) Create(ctx context.Context, req *models.ApprovalRequest) error {
	req.Status = models.ApprovalPending
	if req.CreatedAt.IsZero() {
		req.CreatedAt = g.now()
	}
	if req.ExpiresAt.IsZero() {
		req.ExpiresAt = req.CreatedAt.Add(g.ttl)
	}
	if err := g.approvals.Create(ctx, req); err != nil {
		return fmt.Errorf("create approval request: %w", err)
	}
	g.logger.Info("approval request created",
		"approval_id", req.ID,
		"execution_id", req.ExecutionID,
		"tool", req.ToolName,
		"risk", req.Risk)
	return nil
}

// Get returns a request by ID.
func (g *Gate) Get(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	return g.approvals.Get(ctx, id)
}

// ListPending returns an agent's unresolved requests.
func (g *Gate) ListPending(ctx context.Context, agentID string) ([]*models.ApprovalRequest, error) {
	return g.approvals.ListPending(ctx, agentID)
}

// Approve resolves a pending request as approved and moves its
// execution from waiting_approval back to running. The orchestrator
// that re-drives the loop is external; the gate only flips the flag.
func (g *Gate) Approve(ctx context.Context, id, by, note string) error {
	req, err := g.resolve(ctx, id, models.ApprovalApproved, by, note)
	if err != nil {
		return err
	}
	if g.metrics != nil {
		g.metrics.ApprovalsResolved.WithLabelValues(string(models.ApprovalApproved)).Inc()
	}

	if err := g.executions.UpdateStatus(ctx, req.ExecutionID, models.ExecutionWaitingApproval, models.ExecutionRunning); err != nil {
		// The request stays approved; the execution may have been
		// cancelled or timed out while the approval was pending.
		if errors.Is(err, storage.ErrConflict) || errors.Is(err, storage.ErrNotFound) {
			g.logger.Warn("approved request has no suspended execution",
				"approval_id", id, "execution_id", req.ExecutionID, "error", err)
			return nil
		}
		return fmt.Errorf("resume execution %s: %w", req.ExecutionID, err)
	}
	g.logger.Info("approval granted, execution resumed",
		"approval_id", id, "execution_id", req.ExecutionID, "by", by)
	return nil
}

// Deny resolves a pending request as denied and cancels its execution
// with a fixed error message.
func (g *Gate) Deny(ctx context.Context, id, by, note string) error {
	req, err := g.resolve(ctx, id, models.ApprovalDenied, by, note)
	if err != nil {
		return err
	}
	if g.metrics != nil {
		g.metrics.ApprovalsResolved.WithLabelValues(string(models.ApprovalDenied)).Inc()
	}

	if err := g.cancelExecution(ctx, req.ExecutionID, DeniedMessage); err != nil {
		if errors.Is(err, storage.ErrConflict) || errors.Is(err, storage.ErrNotFound) {
			g.logger.Warn("denied request has no suspended execution",
				"approval_id", id, "execution_id", req.ExecutionID, "error", err)
			return nil
		}
		return fmt.Errorf("cancel execution %s: %w", req.ExecutionID, err)
	}
	g.logger.Info("approval denied, execution cancelled",
		"approval_id", id, "execution_id", req.ExecutionID, "by", by)
	return nil
}

// resolve performs the exactly-once transition for a request. Expired
// requests are lapsed in place and can no longer be approved or denied.
func (g *Gate) resolve(ctx context.Context, id string, to models.ApprovalStatus, by, note string) (*models.ApprovalRequest, error) {
	req, err := g.approvals.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status.Resolved() {
		return nil, ErrAlreadyResolved
	}
	now := g.now()
	if req.Expired(now) {
		if err := g.approvals.Resolve(ctx, id, models.ApprovalExpired, "system", "expired before resolution", now); err != nil && !errors.Is(err, storage.ErrConflict) {
			return nil, err
		}
		return nil, ErrAlreadyResolved
	}
	if err := g.approvals.Resolve(ctx, id, to, by, note, now); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrAlreadyResolved
		}
		return nil, err
	}
	req.Status = to
	req.ResolvedBy = by
	req.ResolutionNote = note
	req.ResolvedAt = now
	return req, nil
}

// Sweep expires every pending request past its expiry and fails the
// executions still suspended on them. Returns how many requests lapsed.
func (g *Gate) Sweep(ctx context.Context) (int, error) {
	now := g.now()
	stale, err := g.approvals.ListExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expired approvals: %w", err)
	}

	expired := 0
	for _, req := range stale {
		if err := g.approvals.Resolve(ctx, req.ID, models.ApprovalExpired, "system", "expired by sweep", now); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				continue // raced with a human resolution
			}
			return expired, fmt.Errorf("expire approval %s: %w", req.ID, err)
		}
		expired++
		if g.metrics != nil {
			g.metrics.ApprovalsResolved.WithLabelValues(string(models.ApprovalExpired)).Inc()
		}

		// An execution stuck behind a lapsed approval can never make
		// progress; fail it rather than leaving it suspended forever.
		err := g.failExecution(ctx, req.ExecutionID,
			fmt.Sprintf("approval for %s expired before resolution", req.ToolName))
		if err != nil && !errors.Is(err, storage.ErrConflict) && !errors.Is(err, storage.ErrNotFound) {
			g.logger.Warn("failed to reconcile execution for expired approval",
				"approval_id", req.ID, "execution_id", req.ExecutionID, "error", err)
		}
	}

	if expired > 0 {
		g.logger.Info("approval sweep complete", "expired", expired)
	}
	return expired, nil
}

func (g *Gate) cancelExecution(ctx context.Context, id, msg string) error {
	if err := g.executions.UpdateStatus(ctx, id, models.ExecutionWaitingApproval, models.ExecutionCancelled); err != nil {
		return err
	}
	return g.recordExecutionError(ctx, id, msg)
}

func (g *Gate) failExecution(ctx context.Context, id, msg string) error {
	if err := g.executions.UpdateStatus(ctx, id, models.ExecutionWaitingApproval, models.ExecutionFailed); err != nil {
		return err
	}
	return g.recordExecutionError(ctx, id, msg)
}

func (g *Gate) recordExecutionError(ctx context.Context, id, msg string) error {
	exec, err := g.executions.Get(ctx, id)
	if err != nil {
		return err
	}
	exec.Error = msg
	exec.FinishedAt = g.now()
	return g.executions.Update(ctx, exec)
}
