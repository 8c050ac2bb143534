// Package engine drives the per-execution reason-act-observe loop. The
// Executor composes the completion provider, the tool dispatcher, and
// the memory subsystem, and persists every step through the record
// store so a suspended run can be resumed from durable state alone.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/praxishq/praxis/internal/memory"
	"github.com/praxishq/praxis/internal/observability"
	"github.com/praxishq/praxis/internal/provider"
	"github.com/praxishq/praxis/internal/storage"
	"github.com/praxishq/praxis/internal/tools"
	"github.com/praxishq/praxis/pkg/models"
)

const (
	// DefaultMaxSteps caps loop iterations when the agent sets none.
	DefaultMaxSteps = 10

	// DefaultMaxToolCallsPerStep caps how many native tool calls from a
	// single completion are dispatched.
	DefaultMaxToolCallsPerStep = 3

	memoryRetrieveLimit = 10
)

// memoryKindsForContext are the kinds fed into the system prompt.
var memoryKindsForContext = []models.MemoryKind{
	models.MemoryFact,
	models.MemoryPreference,
	models.MemoryOutcome,
}

// RunOptions override per-call what the agent config would decide.
type RunOptions struct {
	MaxSteps int
	Timeout  time.Duration
}

// Config carries the executor's dependencies. Stores, Provider,
// Registry, and Dispatcher are required.
type Config struct {
	Stores     *storage.StoreSet
	Provider   provider.Provider
	Registry   *tools.Registry
	Dispatcher *tools.Dispatcher
	Memory     *memory.Manager
	Metrics    *observability.Metrics
	Tracer     *observability.Tracer
	Logger     *slog.Logger
}

// Executor runs agents. Safe for concurrent use; each Run is one
// sequential control flow and shares only the stores, the rate-limited
// dispatcher, and the registry with its siblings.
type Executor struct {
	stores     *storage.StoreSet
	provider   provider.Provider
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
	memory     *memory.Manager
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	logger     *slog.Logger

	now func() time.Time
}

// NewExecutor builds an executor, validating required dependencies.
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.Stores == nil {
		return nil, errors.New("engine: stores are required")
	}
	if cfg.Provider == nil {
		return nil, errors.New("engine: a completion provider is required")
	}
	if cfg.Registry == nil || cfg.Dispatcher == nil {
		return nil, errors.New("engine: registry and dispatcher are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		stores:     cfg.Stores,
		provider:   cfg.Provider,
		registry:   cfg.Registry,
		dispatcher: cfg.Dispatcher,
		memory:     cfg.Memory,
		metrics:    cfg.Metrics,
		tracer:     cfg.Tracer,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// runState is the in-memory view of one run while the loop is driving
// it. Everything needed to rebuild it lives in the record store.
type runState struct {
	agent    *models.AgentConfig
	exec     *models.Execution
	system   string
	messages []models.Message

	iterations int
	stepNum    int
	actions    []models.ActionRecord
	output     string
	started    time.Time
}

// Run executes one agent run from a trigger. It never returns an error:
// every outcome, including panics inside the loop, is folded into a
// well-formed ExecutionResult that callers branch on via Success.
func (e *Executor) Run(ctx context.Context, agentID string, trigger models.Trigger, opts RunOptions) (result *models.ExecutionResult) {
	started := e.now()
	exec := &models.Execution{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		Status:    models.ExecutionPending,
		Trigger:   trigger,
		CreatedAt: started,
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("execution panicked", "execution_id", exec.ID, "agent_id", agentID, "panic", r)
			if e.metrics != nil {
				e.metrics.RecordError("engine", "panic")
			}
			result = e.failEarly(context.WithoutCancel(ctx), exec, fmt.Sprintf("internal error: %v", r), started)
		}
	}()

	ctx = observability.WithExecutionID(observability.WithAgentID(ctx, agentID), exec.ID)
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.TraceExecution(ctx, exec.ID, agentID)
		defer span.End()
	}

	if err := e.stores.Executions.Create(ctx, exec); err != nil {
		return &models.ExecutionResult{
			ExecutionID: exec.ID,
			Status:      models.ExecutionFailed,
			Error:       fmt.Sprintf("create execution: %v", err),
		}
	}

	agent, err := e.stores.Agents.Get(ctx, agentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return e.failEarly(ctx, exec, fmt.Sprintf("%s: %s", ErrAgentNotFound, agentID), started)
		}
		return e.failEarly(ctx, exec, fmt.Sprintf("load agent: %v", err), started)
	}
	if !agent.IsActive {
		return e.failEarly(ctx, exec, fmt.Sprintf("%s: %s", ErrAgentInactive, agentID), started)
	}
	exec.TenantID = agent.TenantID

	if msg := e.checkRunBudget(ctx, agent, started); msg != "" {
		return e.failEarly(ctx, exec, msg, started)
	}

	if err := e.stores.Executions.UpdateStatus(ctx, exec.ID, models.ExecutionPending, models.ExecutionRunning); err != nil {
		return e.failEarly(ctx, exec, fmt.Sprintf("start execution: %v", err), started)
	}
	exec.Status = models.ExecutionRunning
	exec.StartedAt = started
	exec.Summary = summarizeTrigger(trigger)

	timeout := opts.Timeout
	if timeout <= 0 && agent.Budgets.TimeoutSeconds > 0 {
		timeout = time.Duration(agent.Budgets.TimeoutSeconds) * time.Second
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	memories := e.retrieveMemories(ctx, agentID, exec.Summary)

	st := &runState{
		agent:    agent,
		exec:     exec,
		system:   buildSystemPrompt(agent, memories),
		messages: []models.Message{{Role: models.RoleUser, Content: describeTrigger(trigger)}},
		started:  started,
	}
	return e.loop(ctx, st, opts)
}

// Resume continues an execution that was suspended behind the given
// approval. The approval must already be resolved as approved (the
// gate has flipped the execution back to running); Resume replays the
// approved call without re-gating it, then re-drives the loop.
func (e *Executor) Resume(ctx context.Context, approvalID string, opts RunOptions) (result *models.ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("resume panicked", "approval_id", approvalID, "panic", r)
			if e.metrics != nil {
				e.metrics.RecordError("engine", "panic")
			}
			result = &models.ExecutionResult{
				Status: models.ExecutionFailed,
				Error:  fmt.Sprintf("internal error: %v", r),
			}
		}
	}()

	req, err := e.stores.Approvals.Get(ctx, approvalID)
	if err != nil {
		return &models.ExecutionResult{
			Status: models.ExecutionFailed,
			Error:  fmt.Sprintf("load approval %s: %v", approvalID, err),
		}
	}
	if req.Status != models.ApprovalApproved {
		return &models.ExecutionResult{
			ExecutionID: req.ExecutionID,
			Status:      models.ExecutionFailed,
			Error:       fmt.Sprintf("%s: approval %s is %s", ErrNotResumable, approvalID, req.Status),
		}
	}

	exec, err := e.stores.Executions.Get(ctx, req.ExecutionID)
	if err != nil {
		return &models.ExecutionResult{
			ExecutionID: req.ExecutionID,
			Status:      models.ExecutionFailed,
			Error:       fmt.Sprintf("load execution: %v", err),
		}
	}
	if exec.Status.Terminal() {
		return e.resultFromExecution(exec)
	}
	if exec.Status != models.ExecutionRunning {
		return &models.ExecutionResult{
			ExecutionID: exec.ID,
			Status:      models.ExecutionFailed,
			Error:       fmt.Sprintf("%s: execution is %s", ErrNotResumable, exec.Status),
		}
	}

	ctx = observability.WithExecutionID(observability.WithAgentID(ctx, exec.AgentID), exec.ID)
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.TraceExecution(ctx, exec.ID, exec.AgentID)
		defer span.End()
	}

	started := e.now()
	agent, err := e.stores.Agents.Get(ctx, exec.AgentID)
	if err != nil {
		return e.failEarly(ctx, exec, fmt.Sprintf("load agent: %v", err), started)
	}

	steps, err := e.stores.Executions.ListSteps(ctx, exec.ID)
	if err != nil {
		return e.failEarly(ctx, exec, fmt.Sprintf("load steps: %v", err), started)
	}

	memories := e.retrieveMemories(ctx, agent.ID, exec.Summary)
	st := &runState{
		agent:      agent,
		exec:       exec,
		system:     buildSystemPrompt(agent, memories),
		messages:   rebuildMessages(exec, steps),
		iterations: countThinkSteps(steps),
		stepNum:    len(steps),
		actions:    e.rebuildActions(ctx, exec.ID),
		started:    started,
	}

	// Replay the approved call directly; the gate already signed it off.
	res := e.dispatcher.InvokeApproved(ctx, &tools.Invocation{
		ExecutionID: exec.ID,
		Agent:       agent,
		Tool:        req.ToolName,
		Input:       req.Input,
	})
	exec.ToolCalls++
	call := models.ToolCall{ID: "call_" + req.ID, Name: req.ToolName, Input: req.Input}
	if err := e.appendStep(ctx, st, actStepRecord(call, res)); err != nil {
		return e.finalize(ctx, st, models.ExecutionFailed, err.Error())
	}
	st.actions = append(st.actions, actionRecord(call, res, e.now()))
	st.messages = append(st.messages, models.Message{
		Role:    models.RoleUser,
		Content: fmt.Sprintf("Approval granted. Tool %s result: %s", res.Tool, toolResultText(res)),
	})

	return e.loop(ctx, st, opts)
}

// loop drives iterations until finish, suspension, budget exhaustion,
// or an aborting error. st.iterations may start above zero on resume.
func (e *Executor) loop(ctx context.Context, st *runState, opts RunOptions) *models.ExecutionResult {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = st.agent.Budgets.MaxStepsPerRun
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	maxCalls := st.agent.Budgets.MaxToolCallsPerStep
	if maxCalls <= 0 {
		maxCalls = DefaultMaxToolCallsPerStep
	}
	catalog := toolSpecs(e.registry.Catalog(st.agent.AllowedTools, st.agent.DeniedTools))

	if e.metrics != nil {
		e.metrics.ActiveExecutions.Inc()
		defer e.metrics.ActiveExecutions.Dec()
	}

	for st.iterations < maxSteps {
		// Cancellation and timeout are honored between iterations only;
		// a mid-call abort surfaces through the provider or handler.
		if err := ctx.Err(); err != nil {
			status, msg := statusForContextErr(err)
			return e.finalize(context.WithoutCancel(ctx), st, status, msg)
		}

		comp, err := e.think(ctx, st, catalog)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				status, msg := statusForContextErr(ctxErr)
				return e.finalize(context.WithoutCancel(ctx), st, status, msg)
			}
			if e.metrics != nil {
				e.metrics.RecordError("provider", "completion")
			}
			return e.finalize(ctx, st, models.ExecutionFailed, fmt.Sprintf("%s: %v", ErrProvider, err))
		}
		st.exec.InputTokens += comp.TokensIn
		st.exec.OutputTokens += comp.TokensOut

		decision, calls := decide(comp)

		thinkStep := &models.ExecutionStep{
			Kind:      models.StepThink,
			Reasoning: decision.Reasoning,
			Tokens:    comp.TokensIn + comp.TokensOut,
		}
		if err := e.appendStep(ctx, st, thinkStep); err != nil {
			return e.finalize(ctx, st, models.ExecutionFailed, err.Error())
		}

		if decision.Action == ActionFinish {
			st.messages = append(st.messages, models.Message{Role: models.RoleAssistant, Content: decision.Reasoning})
			st.output = decision.Reasoning
			st.iterations++
			return e.finalize(ctx, st, models.ExecutionCompleted, "")
		}

		if len(calls) > maxCalls {
			calls = calls[:maxCalls]
		}
		st.messages = append(st.messages, models.Message{
			Role:      models.RoleAssistant,
			Content:   decision.Reasoning,
			ToolCalls: calls,
		})

		for _, call := range calls {
			res := e.dispatcher.Invoke(ctx, &tools.Invocation{
				ExecutionID: st.exec.ID,
				Agent:       st.agent,
				Tool:        call.Name,
				Input:       call.Input,
			})
			st.exec.ToolCalls++

			if err := e.appendStep(ctx, st, actStepRecord(call, res)); err != nil {
				return e.finalize(ctx, st, models.ExecutionFailed, err.Error())
			}
			st.messages = append(st.messages, models.Message{
				Role:       models.RoleTool,
				ToolCallID: call.ID,
				Content:    toolResultText(res),
			})

			if res.PendingApproval {
				return e.suspend(ctx, st, res)
			}
			st.actions = append(st.actions, actionRecord(call, res, e.now()))
		}

		st.iterations++

		if budget := st.agent.Budgets.MaxTokens; budget > 0 && st.exec.InputTokens+st.exec.OutputTokens >= budget {
			return e.finalize(ctx, st, models.ExecutionFailed, TokenBudgetMessage)
		}
	}

	return e.finalize(ctx, st, models.ExecutionFailed, MaxStepsMessage)
}

// think asks the provider for the next completion over the running
// conversation and the agent's tool catalog.
func (e *Executor) think(ctx context.Context, st *runState, catalog []provider.ToolSpec) (*provider.Completion, error) {
	popts := provider.Options{
		Model:       st.agent.Model,
		System:      st.system,
		Temperature: st.agent.Temperature,
		MaxTokens:   st.agent.Budgets.MaxTokens,
	}

	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.TraceLLMRequest(ctx, e.provider.Name(), popts.Model)
		defer span.End()
	}

	start := time.Now()
	comp, err := e.provider.CompleteWithTools(ctx, st.messages, catalog, popts)
	if e.metrics != nil {
		status := "success"
		tokensIn, tokensOut := 0, 0
		if err != nil {
			status = "error"
		} else {
			tokensIn, tokensOut = comp.TokensIn, comp.TokensOut
		}
		e.metrics.RecordLLMRequest(e.provider.Name(), popts.Model, status, time.Since(start).Seconds(), tokensIn, tokensOut)
	}
	return comp, err
}

// decide normalizes a completion into a decision plus the tool calls to
// dispatch. Native tool calls take precedence over a parsed textual
// decision; a parsed use_tool is synthesized into a single call.
func decide(comp *provider.Completion) (*Decision, []models.ToolCall) {
	if len(comp.ToolCalls) > 0 {
		calls := make([]models.ToolCall, len(comp.ToolCalls))
		copy(calls, comp.ToolCalls)
		for i := range calls {
			if calls[i].ID == "" {
				calls[i].ID = "call_" + uuid.New().String()[:8]
			}
		}
		return &Decision{
			Action:    ActionUseTool,
			Reasoning: comp.Content,
			Tool:      calls[0].Name,
		}, calls
	}

	d := ParseDecision(comp.Content)
	if d.Action == ActionUseTool {
		return d, []models.ToolCall{{
			ID:    "call_" + uuid.New().String()[:8],
			Name:  d.Tool,
			Input: d.Input,
		}}
	}
	return d, nil
}

// suspend parks the run behind a pending approval. Resumption is a
// fresh Resume call after the gate flips the status back to running.
func (e *Executor) suspend(ctx context.Context, st *runState, res *tools.Result) *models.ExecutionResult {
	if err := e.stores.Executions.UpdateStatus(ctx, st.exec.ID, models.ExecutionRunning, models.ExecutionWaitingApproval); err != nil {
		return e.finalize(ctx, st, models.ExecutionFailed, fmt.Sprintf("suspend execution: %v", err))
	}
	st.exec.Status = models.ExecutionWaitingApproval
	if err := e.stores.Executions.Update(ctx, st.exec); err != nil {
		e.logger.Warn("persist suspended counters failed", "execution_id", st.exec.ID, "error", err)
	}

	e.logger.Info("execution suspended for approval",
		"execution_id", st.exec.ID,
		"approval_id", res.ApprovalID,
		"tool", res.Tool,
		"risk", res.Risk,
	)

	result := e.resultFromState(st)
	result.ApprovalID = res.ApprovalID
	return result
}

// finalize persists the terminal state, records metrics, and writes the
// episode. A store failure here downgrades the outcome to failed.
func (e *Executor) finalize(ctx context.Context, st *runState, status models.ExecutionStatus, errMsg string) *models.ExecutionResult {
	st.exec.Status = status
	st.exec.Error = errMsg
	st.exec.FinishedAt = e.now()

	if err := e.stores.Executions.Update(ctx, st.exec); err != nil {
		e.logger.Error("finalize execution failed", "execution_id", st.exec.ID, "error", err)
		if e.metrics != nil {
			e.metrics.RecordError("storage", "finalize")
		}
		st.exec.Status = models.ExecutionFailed
		if st.exec.Error == "" {
			st.exec.Error = fmt.Sprintf("finalize execution: %v", err)
		}
	}

	if e.metrics != nil {
		e.metrics.RecordExecution(string(st.exec.Trigger.Type), string(st.exec.Status), e.now().Sub(st.started).Seconds())
	}
	e.recordEpisode(ctx, st)

	return e.resultFromState(st)
}

// failEarly terminates a run that never reached the loop: missing or
// inactive agent, exhausted run budget, or a store failure at start.
// No steps exist yet and no episode is written.
func (e *Executor) failEarly(ctx context.Context, exec *models.Execution, errMsg string, started time.Time) *models.ExecutionResult {
	exec.Status = models.ExecutionFailed
	exec.Error = errMsg
	exec.FinishedAt = e.now()
	if err := e.stores.Executions.Update(ctx, exec); err != nil {
		e.logger.Error("persist failed execution", "execution_id", exec.ID, "error", err)
	}
	if e.metrics != nil {
		e.metrics.RecordExecution(string(exec.Trigger.Type), string(models.ExecutionFailed), e.now().Sub(started).Seconds())
	}
	return e.resultFromExecution(exec)
}

// recordEpisode writes the run's durable summary. Episode writes are
// bookkeeping after the terminal state is already persisted, so a
// failure here is logged and swallowed.
func (e *Executor) recordEpisode(ctx context.Context, st *runState) {
	outcome := models.OutcomeFailure
	switch {
	case st.exec.Status == models.ExecutionCompleted:
		outcome = models.OutcomeSuccess
	case st.exec.Status == models.ExecutionCancelled:
		// A cancelled run is a failure outright, even when earlier tool
		// calls succeeded.
	default:
		for _, a := range st.actions {
			if a.Success {
				outcome = models.OutcomePartial
				break
			}
		}
	}

	ep := &models.Episode{
		AgentID:      st.agent.ID,
		ExecutionID:  st.exec.ID,
		Outcome:      outcome,
		Actions:      st.actions,
		Lessons:      episodeLessons(st, outcome),
		ShouldRepeat: outcome == models.OutcomeSuccess,
	}

	var err error
	switch {
	case e.memory != nil:
		err = e.memory.RecordEpisode(ctx, ep)
	case e.stores.Episodes != nil:
		ep.ID = uuid.New().String()
		ep.CreatedAt = e.now()
		err = e.stores.Episodes.Insert(ctx, ep)
	default:
		return
	}
	if err != nil {
		e.logger.Warn("record episode failed", "execution_id", st.exec.ID, "error", err)
	}
}

func episodeLessons(st *runState, outcome models.EpisodeOutcome) string {
	switch outcome {
	case models.OutcomeSuccess:
		return st.output
	default:
		if st.exec.Error != "" {
			return fmt.Sprintf("Run ended %s: %s", st.exec.Status, st.exec.Error)
		}
		return fmt.Sprintf("Run ended %s", st.exec.Status)
	}
}

func (e *Executor) retrieveMemories(ctx context.Context, agentID, query string) []*models.ScoredMemory {
	if e.memory == nil || query == "" {
		return nil
	}
	scored, err := e.memory.Retrieve(ctx, agentID, query, memory.RetrieveOptions{
		Limit: memoryRetrieveLimit,
		Kinds: memoryKindsForContext,
	})
	if err != nil {
		// Memory is advisory context; a degraded run beats no run.
		e.logger.Warn("memory retrieval failed", "agent_id", agentID, "error", err)
		return nil
	}
	return scored
}

func (e *Executor) checkRunBudget(ctx context.Context, agent *models.AgentConfig, now time.Time) string {
	type window struct {
		limit int
		span  time.Duration
		name  string
	}
	for _, w := range []window{
		{agent.Budgets.MaxRunsPerHour, time.Hour, "hour"},
		{agent.Budgets.MaxRunsPerDay, 24 * time.Hour, "day"},
	} {
		if w.limit <= 0 {
			continue
		}
		count, err := e.stores.Executions.CountForAgentSince(ctx, agent.ID, now.Add(-w.span))
		if err != nil {
			e.logger.Warn("run budget check failed", "agent_id", agent.ID, "error", err)
			continue
		}
		// The count includes the row this run just created.
		if count > w.limit {
			return fmt.Sprintf("%s: %d runs in the last %s (limit %d)", ErrRunBudgetExceeded, count, w.name, w.limit)
		}
	}
	return ""
}

func (e *Executor) appendStep(ctx context.Context, st *runState, step *models.ExecutionStep) error {
	step.ID = uuid.New().String()
	step.ExecutionID = st.exec.ID
	step.Number = st.stepNum
	if step.StartedAt.IsZero() {
		step.StartedAt = e.now()
	}
	if err := e.stores.Executions.AppendStep(ctx, step); err != nil {
		return fmt.Errorf("record step %d: %w", st.stepNum, err)
	}
	st.stepNum++
	st.exec.StepCount++
	if e.metrics != nil {
		e.metrics.RecordStep(string(step.Kind))
	}
	return nil
}

func (e *Executor) resultFromState(st *runState) *models.ExecutionResult {
	res := e.resultFromExecution(st.exec)
	res.Output = st.output
	res.Duration = e.now().Sub(st.started)
	res.Actions = st.actions
	return res
}

func (e *Executor) resultFromExecution(exec *models.Execution) *models.ExecutionResult {
	duration := time.Duration(0)
	if !exec.FinishedAt.IsZero() && !exec.StartedAt.IsZero() {
		duration = exec.FinishedAt.Sub(exec.StartedAt)
	}
	return &models.ExecutionResult{
		ExecutionID:  exec.ID,
		Status:       exec.Status,
		Success:      exec.Status == models.ExecutionCompleted,
		Error:        exec.Error,
		StepCount:    exec.StepCount,
		ToolCalls:    exec.ToolCalls,
		InputTokens:  exec.InputTokens,
		OutputTokens: exec.OutputTokens,
		Duration:     duration,
	}
}

func statusForContextErr(err error) (models.ExecutionStatus, string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ExecutionTimedOut, TimedOutMessage
	}
	return models.ExecutionCancelled, CancelledMessage
}

func actStepRecord(call models.ToolCall, res *tools.Result) *models.ExecutionStep {
	out := res.Output
	if !res.Success && !res.PendingApproval {
		out = res.Error
	}
	return &models.ExecutionStep{
		Kind:       models.StepAct,
		ToolName:   res.Tool,
		ToolInput:  call.Input,
		ToolOutput: out,
		Duration:   res.Duration,
	}
}

func actionRecord(call models.ToolCall, res *tools.Result, at time.Time) models.ActionRecord {
	return models.ActionRecord{
		Tool:      res.Tool,
		Input:     call.Input,
		Output:    res.Output,
		Error:     res.Error,
		Success:   res.Success,
		Timestamp: at,
	}
}

// toolResultText renders a dispatch outcome as the observation fed back
// into the conversation.
func toolResultText(res *tools.Result) string {
	switch {
	case res.PendingApproval:
		return fmt.Sprintf("Tool %s is awaiting human approval (risk: %s).", res.Tool, res.Risk)
	case !res.Success:
		return fmt.Sprintf("Tool %s failed: %s", res.Tool, res.Error)
	case res.Output == "":
		return fmt.Sprintf("Tool %s completed with no output.", res.Tool)
	default:
		return res.Output
	}
}

// rebuildMessages reconstructs an approximate conversation from the
// persisted step records. Exact token-for-token replay is not required;
// the model only needs the reasoning trail and tool observations.
func rebuildMessages(exec *models.Execution, steps []*models.ExecutionStep) []models.Message {
	msgs := make([]models.Message, 0, len(steps)+1)
	msgs = append(msgs, models.Message{Role: models.RoleUser, Content: describeTrigger(exec.Trigger)})
	for _, s := range steps {
		switch s.Kind {
		case models.StepThink:
			msgs = append(msgs, models.Message{Role: models.RoleAssistant, Content: s.Reasoning})
		case models.StepAct:
			msgs = append(msgs, models.Message{
				Role:    models.RoleUser,
				Content: fmt.Sprintf("Tool %s result: %s", s.ToolName, s.ToolOutput),
			})
		case models.StepObserve:
			msgs = append(msgs, models.Message{Role: models.RoleUser, Content: s.ToolOutput})
		}
	}
	return msgs
}

func countThinkSteps(steps []*models.ExecutionStep) int {
	n := 0
	for _, s := range steps {
		if s.Kind == models.StepThink {
			n++
		}
	}
	return n
}

// rebuildActions recovers completed-call records from the audit log,
// which carries the authoritative success flag. Rows still pending
// (gated calls) are skipped.
func (e *Executor) rebuildActions(ctx context.Context, executionID string) []models.ActionRecord {
	if e.stores.ToolCalls == nil {
		return nil
	}
	logs, err := e.stores.ToolCalls.ListByExecution(ctx, executionID)
	if err != nil {
		e.logger.Warn("rebuild actions failed", "execution_id", executionID, "error", err)
		return nil
	}
	actions := make([]models.ActionRecord, 0, len(logs))
	for _, l := range logs {
		switch l.Status {
		case models.ToolCallCompleted, models.ToolCallFailed:
			actions = append(actions, models.ActionRecord{
				Tool:      l.ToolName,
				Input:     l.Input,
				Output:    l.Output,
				Error:     l.Error,
				Success:   l.Status == models.ToolCallCompleted,
				Timestamp: l.StartedAt,
			})
		}
	}
	return actions
}
