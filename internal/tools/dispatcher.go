package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/praxishq/praxis/internal/observability"
	"github.com/praxishq/praxis/internal/ratelimit"
	"github.com/praxishq/praxis/internal/storage"
	"github.com/praxishq/praxis/pkg/models"
)

// FailureKind classifies why a dispatch did not execute the handler, or
// why execution failed. Empty on success and on approval suspension.
type FailureKind string

const (
	FailureUnknownTool             FailureKind = "unknown_tool"
	FailureRateLimitExceeded       FailureKind = "rate_limit_exceeded"
	FailureInvalidInput            FailureKind = "invalid_input"
	FailureInsufficientPermissions FailureKind = "insufficient_permissions"
	FailureExecution               FailureKind = "execution_failed"
)

// Invocation is one dispatch request from the loop.
type Invocation struct {
	ExecutionID string
	Agent       *models.AgentConfig
	Tool        string
	Input       json.RawMessage
}

// Result is the uniform dispatch outcome. Handler errors are folded in
// rather than propagated; callers branch on Success and
// PendingApproval, never on a raised error.
type Result struct {
	Tool    string
	Success bool
	Output  string
	Error   string
	Failure FailureKind

	// PendingApproval signals the call was parked behind a human
	// approval; the loop must suspend. Not a failure.
	PendingApproval bool
	ApprovalID      string

	Risk     models.RiskLevel
	Duration time.Duration
}

// ApprovalCreator files approval requests for gated calls. Implemented
// by the approval gate; split out so this package does not depend on
// gate internals.
type ApprovalCreator interface {
	Create(ctx context.Context, req *models.ApprovalRequest) error
}

// Dispatcher composes the registry, rate limiter, permission and risk
// checks, and the approval gate into a single safe Invoke path.
type Dispatcher struct {
	registry  *Registry
	limiter   *ratelimit.Limiter
	approvals ApprovalCreator
	logs      storage.ToolCallLogStore
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// DispatcherConfig carries the dispatcher's dependencies. Registry and
// Limiter are required; the rest degrade gracefully when nil.
type DispatcherConfig struct {
	Registry  *Registry
	Limiter   *ratelimit.Limiter
	Approvals ApprovalCreator
	Logs      storage.ToolCallLogStore
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// NewDispatcher creates a dispatcher from its dependencies.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.New()
	}
	return &Dispatcher{
		registry:  cfg.Registry,
		limiter:   limiter,
		approvals: cfg.Approvals,
		logs:      cfg.Logs,
		metrics:   cfg.Metrics,
		logger:    logger,
	}
}

// Invoke runs the dispatch pipeline for one tool call. Every failure
// mode returns a well-formed Result; only the audit log is best-effort.
func (d *Dispatcher) Invoke(ctx context.Context, inv *Invocation) *Result {
	started := time.Now()

	// Lookup. Unknown tools produce no audit row: there is nothing to
	// attribute the call to.
	def, ok := d.registry.Get(inv.Tool)
	if !ok {
		return d.finish(nil, &Result{
			Tool:    inv.Tool,
			Failure: FailureUnknownTool,
			Error:   "Unknown tool: " + inv.Tool,
		}, started)
	}

	log := d.openLog(ctx, inv)

	// Rate limit, per-minute window before per-hour.
	if decision := d.limiter.Allow(def.Name, inv.Agent.ID, def.RateLimitPerMinute, def.RateLimitPerHour); !decision.Allowed {
		if d.metrics != nil {
			d.metrics.RateLimitDenials.WithLabelValues(def.Name, string(decision.Window)).Inc()
		}
		d.closeLog(ctx, log, models.ToolCallDenied, "", rateLimitMessage(def.Name, decision), started)
		return d.finish(def, &Result{
			Tool:    def.Name,
			Failure: FailureRateLimitExceeded,
			Error:   rateLimitMessage(def.Name, decision),
		}, started)
	}

	// Schema validation.
	input, err := decodeInput(inv.Input)
	if err == nil {
		err = ValidateInput(def, input)
	}
	if err != nil {
		d.closeLog(ctx, log, models.ToolCallDenied, "", err.Error(), started)
		return d.finish(def, &Result{
			Tool:    def.Name,
			Failure: FailureInvalidInput,
			Error:   err.Error(),
		}, started)
	}

	// Permission check: the tool name itself, then its capability tags.
	// The catalog shown to the model is already filtered, but a decision
	// can name any registered tool, so deny patterns are enforced here.
	if !Allowed(inv.Agent.AllowedTools, inv.Agent.DeniedTools, def.Name) {
		msg := fmt.Sprintf("Insufficient permissions for %s: tool is not allowed for this agent", def.Name)
		d.closeLog(ctx, log, models.ToolCallDenied, "", msg, started)
		return d.finish(def, &Result{
			Tool:    def.Name,
			Failure: FailureInsufficientPermissions,
			Error:   msg,
		}, started)
	}
	if missing := MissingPermissions(def.RequiredPermissions, inv.Agent.AllowedTools, inv.Agent.DeniedTools); len(missing) > 0 {
		msg := fmt.Sprintf("Insufficient permissions for %s: %s not granted", def.Name, strings.Join(missing, ", "))
		d.closeLog(ctx, log, models.ToolCallDenied, "", msg, started)
		return d.finish(def, &Result{
			Tool:    def.Name,
			Failure: FailureInsufficientPermissions,
			Error:   msg,
		}, started)
	}

	// Risk assessment and approval gating. A gated call is parked, not
	// executed; its log row stays pending until a later dispatch.
	risk := AssessRisk(def, input)
	if RequiresApproval(def, risk, inv.Agent.Constraints) && d.approvals != nil {
		req := &models.ApprovalRequest{
			ExecutionID:     inv.ExecutionID,
			AgentID:         inv.Agent.ID,
			ToolName:        def.Name,
			ToolDescription: def.Description,
			Input:           inv.Input,
			Risk:            risk,
			Status:          models.ApprovalPending,
		}
		if err := d.approvals.Create(ctx, req); err != nil {
			d.closeLog(ctx, log, models.ToolCallFailed, "", err.Error(), started)
			return d.finish(def, &Result{
				Tool:    def.Name,
				Failure: FailureExecution,
				Error:   fmt.Sprintf("failed to create approval request: %v", err),
				Risk:    risk,
			}, started)
		}
		if d.metrics != nil {
			d.metrics.ApprovalsCreated.WithLabelValues(def.Name, string(risk)).Inc()
		}
		return d.finish(def, &Result{
			Tool:            def.Name,
			PendingApproval: true,
			ApprovalID:      req.ID,
			Risk:            risk,
			Output:          fmt.Sprintf("Approval required for %s (risk: %s)", def.Name, risk),
		}, started)
	}

	// Execute. Handler panics and errors become failed results.
	d.markRunning(ctx, log)
	output, execErr := d.execute(ctx, def, input)
	if execErr != nil {
		d.closeLog(ctx, log, models.ToolCallFailed, "", execErr.Error(), started)
		return d.finish(def, &Result{
			Tool:    def.Name,
			Failure: FailureExecution,
			Error:   execErr.Error(),
			Risk:    risk,
		}, started)
	}

	d.closeLog(ctx, log, models.ToolCallCompleted, output, "", started)
	return d.finish(def, &Result{
		Tool:    def.Name,
		Success: true,
		Output:  output,
		Risk:    risk,
	}, started)
}

// InvokeApproved executes a call whose approval has already been
// granted by a human. Rate limiting, permission checks, and risk
// gating are skipped: the resolution covers exactly this tool and
// input snapshot. Validation still runs in case the registration
// changed while the request sat pending.
func (d *Dispatcher) InvokeApproved(ctx context.Context, inv *Invocation) *Result {
	started := time.Now()

	def, ok := d.registry.Get(inv.Tool)
	if !ok {
		return d.finish(nil, &Result{
			Tool:    inv.Tool,
			Failure: FailureUnknownTool,
			Error:   "Unknown tool: " + inv.Tool,
		}, started)
	}

	log := d.openLog(ctx, inv)

	input, err := decodeInput(inv.Input)
	if err == nil {
		err = ValidateInput(def, input)
	}
	if err != nil {
		d.closeLog(ctx, log, models.ToolCallDenied, "", err.Error(), started)
		return d.finish(def, &Result{
			Tool:    def.Name,
			Failure: FailureInvalidInput,
			Error:   err.Error(),
		}, started)
	}

	d.markRunning(ctx, log)
	output, execErr := d.execute(ctx, def, input)
	if execErr != nil {
		d.closeLog(ctx, log, models.ToolCallFailed, "", execErr.Error(), started)
		return d.finish(def, &Result{
			Tool:    def.Name,
			Failure: FailureExecution,
			Error:   execErr.Error(),
		}, started)
	}

	d.closeLog(ctx, log, models.ToolCallCompleted, output, "", started)
	return d.finish(def, &Result{
		Tool:    def.Name,
		Success: true,
		Output:  output,
	}, started)
}

func (d *Dispatcher) execute(ctx context.Context, def *Definition, input map[string]any) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", def.Name, r)
		}
	}()
	return def.Handler(ctx, input)
}

// openLog writes the audit row in pending state; nil when auditing is
// disabled or the write failed. Audit failures never block dispatch.
func (d *Dispatcher) openLog(ctx context.Context, inv *Invocation) *models.ToolCallLog {
	if d.logs == nil {
		return nil
	}
	log := &models.ToolCallLog{
		ExecutionID: inv.ExecutionID,
		AgentID:     inv.Agent.ID,
		ToolName:    inv.Tool,
		Status:      models.ToolCallPending,
		Input:       inv.Input,
		StartedAt:   time.Now(),
	}
	if err := d.logs.Create(ctx, log); err != nil {
		d.logger.Warn("tool call audit write failed", "tool", inv.Tool, "error", err)
		return nil
	}
	return log
}

func (d *Dispatcher) markRunning(ctx context.Context, log *models.ToolCallLog) {
	if log == nil {
		return
	}
	log.Status = models.ToolCallRunning
	if err := d.logs.Update(ctx, log); err != nil {
		d.logger.Warn("tool call audit update failed", "tool", log.ToolName, "error", err)
	}
}

func (d *Dispatcher) closeLog(ctx context.Context, log *models.ToolCallLog, status models.ToolCallStatus, output, errMsg string, started time.Time) {
	if log == nil {
		return
	}
	log.Status = status
	log.Output = output
	log.Error = errMsg
	log.FinishedAt = time.Now()
	log.Duration = log.FinishedAt.Sub(started)
	if err := d.logs.Update(ctx, log); err != nil {
		d.logger.Warn("tool call audit update failed", "tool", log.ToolName, "error", err)
	}
}

func (d *Dispatcher) finish(def *Definition, res *Result, started time.Time) *Result {
	res.Duration = time.Since(started)
	if d.metrics != nil {
		status := "success"
		switch {
		case res.PendingApproval:
			status = "approval_pending"
		case res.Failure != "":
			status = string(res.Failure)
		}
		d.metrics.ToolDispatches.WithLabelValues(res.Tool, status).Inc()
		if def != nil {
			d.metrics.ToolDuration.WithLabelValues(res.Tool).Observe(res.Duration.Seconds())
		}
	}
	return res
}

func decodeInput(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var input map[string]any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("invalid input: not a JSON object: %w", err)
	}
	if input == nil {
		input = map[string]any{}
	}
	return input, nil
}

func rateLimitMessage(tool string, d ratelimit.Decision) string {
	return fmt.Sprintf("Rate limit exceeded for %s: %d calls per %s", tool, d.Limit, d.Window)
}
