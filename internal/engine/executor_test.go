package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/praxishq/praxis/internal/approval"
	"github.com/praxishq/praxis/internal/provider"
	"github.com/praxishq/praxis/internal/storage"
	"github.com/praxishq/praxis/internal/tools"
	"github.com/praxishq/praxis/pkg/models"
)

// stubProvider replays a scripted sequence of completions. When the
// script runs out, the last completion repeats.
type stubProvider struct {
	script []*provider.Completion
	err    error
	block  bool
	calls  int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Complete(ctx context.Context, messages []models.Message, opts provider.Options) (*provider.Completion, error) {
	return p.CompleteWithTools(ctx, messages, nil, opts)
}

func (p *stubProvider) CompleteWithTools(ctx context.Context, messages []models.Message, specs []provider.ToolSpec, opts provider.Options) (*provider.Completion, error) {
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	i := p.calls
	p.calls++
	if i >= len(p.script) {
		i = len(p.script) - 1
	}
	if i < 0 {
		return &provider.Completion{Content: `{"reasoning": "nothing to do", "action": "finish"}`, FinishReason: provider.FinishStop}, nil
	}
	c := *p.script[i]
	return &c, nil
}

func (p *stubProvider) Stream(ctx context.Context, messages []models.Message, opts provider.Options) (<-chan provider.StreamChunk, error) {
	ch := make(chan provider.StreamChunk, 1)
	ch <- provider.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (p *stubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0, 0, 1}, nil
}

func decisionCompletion(format string, args ...any) *provider.Completion {
	return &provider.Completion{
		Content:      fmt.Sprintf(format, args...),
		TokensIn:     10,
		TokensOut:    5,
		FinishReason: provider.FinishStop,
	}
}

var (
	useEcho   = decisionCompletion(`{"reasoning": "echo it", "action": "use_tool", "tool": "echo", "input": {"text": "hi"}, "confidence": 0.9}`)
	useDanger = decisionCompletion(`{"reasoning": "wipe it", "action": "use_tool", "tool": "wipe_database", "input": {}, "confidence": 0.8}`)
	doFinish  = decisionCompletion(`{"reasoning": "done", "action": "finish"}`)
)

type testRig struct {
	stores      *storage.StoreSet
	executor    *Executor
	gate        *approval.Gate
	echoCalls   int
	dangerCalls int
	onEcho      func()
}

func newRig(t *testing.T, p provider.Provider, maxSteps int) *testRig {
	t.Helper()

	rig := &testRig{stores: storage.NewMemoryStoreSet()}

	registry := tools.NewRegistry()
	if err := registry.Register(&tools.Definition{
		Name:        "echo",
		Description: "Echoes text back.",
		Schema:      json.RawMessage(`{"type": "object", "properties": {"text": {"type": "string"}}, "required": ["text"]}`),
		Handler: func(ctx context.Context, input map[string]any) (string, error) {
			rig.echoCalls++
			if rig.onEcho != nil {
				rig.onEcho()
			}
			return fmt.Sprintf("%v", input["text"]), nil
		},
	}); err != nil {
		t.Fatalf("register echo: %v", err)
	}
	if err := registry.Register(&tools.Definition{
		Name:        "wipe_database",
		Description: "Destroys everything.",
		Dangerous:   true,
		Handler: func(ctx context.Context, input map[string]any) (string, error) {
			rig.dangerCalls++
			return "wiped", nil
		},
	}); err != nil {
		t.Fatalf("register wipe_database: %v", err)
	}

	rig.gate = approval.NewGate(approval.GateConfig{
		Approvals:  rig.stores.Approvals,
		Executions: rig.stores.Executions,
	})
	dispatcher := tools.NewDispatcher(tools.DispatcherConfig{
		Registry:  registry,
		Approvals: rig.gate,
		Logs:      rig.stores.ToolCalls,
	})

	executor, err := NewExecutor(Config{
		Stores:     rig.stores,
		Provider:   p,
		Registry:   registry,
		Dispatcher: dispatcher,
	})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	rig.executor = executor

	agent := &models.AgentConfig{
		ID:       "agent-1",
		Name:     "Tester",
		IsActive: true,
		Budgets:  models.AgentBudgets{MaxStepsPerRun: maxSteps},
	}
	if err := rig.stores.Agents.Create(context.Background(), agent); err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	return rig
}

func manualTrigger() models.Trigger {
	return models.Trigger{Type: models.TriggerManual, Payload: map[string]any{"task": "say hi"}}
}

func listSteps(t *testing.T, rig *testRig, executionID string) []*models.ExecutionStep {
	t.Helper()
	steps, err := rig.stores.Executions.ListSteps(context.Background(), executionID)
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	return steps
}

func countKind(steps []*models.ExecutionStep, kind models.StepKind) int {
	n := 0
	for _, s := range steps {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

func TestRunUnknownAgent(t *testing.T) {
	rig := newRig(t, &stubProvider{script: []*provider.Completion{doFinish}}, 5)

	res := rig.executor.Run(context.Background(), "no-such-agent", manualTrigger(), RunOptions{})

	if res.Success {
		t.Fatal("run should fail")
	}
	if !strings.Contains(res.Error, "agent not found") {
		t.Errorf("error = %q, want agent not found", res.Error)
	}
	exec, err := rig.stores.Executions.Get(context.Background(), res.ExecutionID)
	if err != nil {
		t.Fatalf("pending row should exist: %v", err)
	}
	if exec.Status != models.ExecutionFailed {
		t.Errorf("stored status = %s, want failed", exec.Status)
	}
}

func TestRunInactiveAgent(t *testing.T) {
	rig := newRig(t, &stubProvider{script: []*provider.Completion{doFinish}}, 5)
	if err := rig.stores.Agents.Create(context.Background(), &models.AgentConfig{ID: "sleeper", Name: "Sleeper", IsActive: false}); err != nil {
		t.Fatalf("seed agent: %v", err)
	}

	res := rig.executor.Run(context.Background(), "sleeper", manualTrigger(), RunOptions{})

	if res.Success {
		t.Fatal("run should fail")
	}
	if !strings.Contains(res.Error, "not active") {
		t.Errorf("error = %q, want not active", res.Error)
	}
	if steps := listSteps(t, rig, res.ExecutionID); len(steps) != 0 {
		t.Errorf("got %d steps, want none", len(steps))
	}
}

func TestRunExhaustsMaxSteps(t *testing.T) {
	rig := newRig(t, &stubProvider{script: []*provider.Completion{useEcho}}, 1)

	res := rig.executor.Run(context.Background(), "agent-1", manualTrigger(), RunOptions{})

	if res.Success {
		t.Fatal("run should fail on step budget")
	}
	if res.Error != MaxStepsMessage {
		t.Errorf("error = %q, want %q", res.Error, MaxStepsMessage)
	}
	if res.Status != models.ExecutionFailed {
		t.Errorf("status = %s, want failed", res.Status)
	}
	if rig.echoCalls != 1 {
		t.Errorf("echo called %d times, want 1", rig.echoCalls)
	}

	steps := listSteps(t, rig, res.ExecutionID)
	if got := countKind(steps, models.StepThink); got != 1 {
		t.Errorf("think steps = %d, want 1", got)
	}
	if got := countKind(steps, models.StepAct); got != 1 {
		t.Errorf("act steps = %d, want 1", got)
	}

	// The successful echo makes the failed run a partial episode.
	episodes, err := rig.stores.Episodes.ListByAgent(context.Background(), "agent-1", 10)
	if err != nil {
		t.Fatalf("list episodes: %v", err)
	}
	if len(episodes) != 1 {
		t.Fatalf("got %d episodes, want 1", len(episodes))
	}
	if episodes[0].Outcome != models.OutcomePartial {
		t.Errorf("episode outcome = %s, want partial", episodes[0].Outcome)
	}
}

func TestRunFinishOnFirstThink(t *testing.T) {
	rig := newRig(t, &stubProvider{script: []*provider.Completion{doFinish}}, 5)

	res := rig.executor.Run(context.Background(), "agent-1", manualTrigger(), RunOptions{})

	if !res.Success {
		t.Fatalf("run failed: %s", res.Error)
	}
	if res.Status != models.ExecutionCompleted {
		t.Errorf("status = %s, want completed", res.Status)
	}
	if res.Output != "done" {
		t.Errorf("output = %q, want done", res.Output)
	}
	if res.InputTokens != 10 || res.OutputTokens != 5 {
		t.Errorf("tokens = %d/%d, want 10/5", res.InputTokens, res.OutputTokens)
	}

	steps := listSteps(t, rig, res.ExecutionID)
	if len(steps) != 1 || steps[0].Kind != models.StepThink {
		t.Fatalf("got %d steps, want exactly one think step", len(steps))
	}

	episodes, err := rig.stores.Episodes.ListByAgent(context.Background(), "agent-1", 10)
	if err != nil {
		t.Fatalf("list episodes: %v", err)
	}
	if len(episodes) != 1 {
		t.Fatalf("got %d episodes, want 1", len(episodes))
	}
	if episodes[0].Outcome != models.OutcomeSuccess {
		t.Errorf("episode outcome = %s, want success", episodes[0].Outcome)
	}
	if !episodes[0].ShouldRepeat {
		t.Error("successful episode should be marked for repetition")
	}
}

func TestRunProseResponseFinishesSoftly(t *testing.T) {
	prose := &provider.Completion{Content: "Everything already looks fine here.", TokensIn: 4, TokensOut: 8}
	rig := newRig(t, &stubProvider{script: []*provider.Completion{prose}}, 5)

	res := rig.executor.Run(context.Background(), "agent-1", manualTrigger(), RunOptions{})

	if !res.Success {
		t.Fatalf("unparsable decision must finish, not fail: %s", res.Error)
	}
	if res.Output != prose.Content {
		t.Errorf("output = %q, want raw model text", res.Output)
	}
}

func TestRunDangerousToolSuspends(t *testing.T) {
	rig := newRig(t, &stubProvider{script: []*provider.Completion{useDanger}}, 5)

	res := rig.executor.Run(context.Background(), "agent-1", manualTrigger(), RunOptions{})

	if res.Status != models.ExecutionWaitingApproval {
		t.Fatalf("status = %s, want waiting_approval", res.Status)
	}
	if res.ApprovalID == "" {
		t.Fatal("approval ID missing from suspended result")
	}
	if rig.dangerCalls != 0 {
		t.Errorf("handler invoked %d times before approval, want 0", rig.dangerCalls)
	}

	req, err := rig.stores.Approvals.Get(context.Background(), res.ApprovalID)
	if err != nil {
		t.Fatalf("get approval: %v", err)
	}
	if req.Status != models.ApprovalPending {
		t.Errorf("approval status = %s, want pending", req.Status)
	}
	if req.ToolName != "wipe_database" {
		t.Errorf("approval tool = %s, want wipe_database", req.ToolName)
	}

	exec, err := rig.stores.Executions.Get(context.Background(), res.ExecutionID)
	if err != nil {
		t.Fatalf("get execution: %v", err)
	}
	if exec.Status != models.ExecutionWaitingApproval {
		t.Errorf("stored status = %s, want waiting_approval", exec.Status)
	}

	steps := listSteps(t, rig, res.ExecutionID)
	if got := countKind(steps, models.StepThink); got != 1 {
		t.Errorf("think steps = %d, want 1", got)
	}
	if got := countKind(steps, models.StepAct); got != 1 {
		t.Errorf("act steps = %d, want 1", got)
	}
}

func TestDenyCancelsSuspendedRun(t *testing.T) {
	rig := newRig(t, &stubProvider{script: []*provider.Completion{useDanger}}, 5)
	ctx := context.Background()

	res := rig.executor.Run(ctx, "agent-1", manualTrigger(), RunOptions{})
	if res.Status != models.ExecutionWaitingApproval {
		t.Fatalf("status = %s, want waiting_approval", res.Status)
	}

	if err := rig.gate.Deny(ctx, res.ApprovalID, "operator", "too risky"); err != nil {
		t.Fatalf("deny: %v", err)
	}

	exec, err := rig.stores.Executions.Get(ctx, res.ExecutionID)
	if err != nil {
		t.Fatalf("get execution: %v", err)
	}
	if exec.Status != models.ExecutionCancelled {
		t.Errorf("status = %s, want cancelled", exec.Status)
	}
	if exec.Error != approval.DeniedMessage {
		t.Errorf("error = %q, want %q", exec.Error, approval.DeniedMessage)
	}
	if rig.dangerCalls != 0 {
		t.Errorf("handler invoked %d times after denial, want 0", rig.dangerCalls)
	}
}

func TestApproveAndResumeCompletesRun(t *testing.T) {
	rig := newRig(t, &stubProvider{script: []*provider.Completion{useDanger, doFinish}}, 5)
	ctx := context.Background()

	res := rig.executor.Run(ctx, "agent-1", manualTrigger(), RunOptions{})
	if res.Status != models.ExecutionWaitingApproval {
		t.Fatalf("status = %s, want waiting_approval", res.Status)
	}

	if err := rig.gate.Approve(ctx, res.ApprovalID, "operator", "go ahead"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	resumed := rig.executor.Resume(ctx, res.ApprovalID, RunOptions{})

	if !resumed.Success {
		t.Fatalf("resume failed: %s", resumed.Error)
	}
	if resumed.Status != models.ExecutionCompleted {
		t.Errorf("status = %s, want completed", resumed.Status)
	}
	if rig.dangerCalls != 1 {
		t.Errorf("handler invoked %d times, want exactly 1 after approval", rig.dangerCalls)
	}

	var approved *models.ActionRecord
	for i := range resumed.Actions {
		if resumed.Actions[i].Tool == "wipe_database" {
			approved = &resumed.Actions[i]
		}
	}
	if approved == nil {
		t.Fatal("approved action missing from result")
	}
	if !approved.Success || approved.Output != "wiped" {
		t.Errorf("approved action = %+v, want successful wipe", approved)
	}
}

func TestResumeRejectsUnapprovedRequest(t *testing.T) {
	rig := newRig(t, &stubProvider{script: []*provider.Completion{useDanger}}, 5)
	ctx := context.Background()

	res := rig.executor.Run(ctx, "agent-1", manualTrigger(), RunOptions{})
	if res.Status != models.ExecutionWaitingApproval {
		t.Fatalf("status = %s, want waiting_approval", res.Status)
	}

	resumed := rig.executor.Resume(ctx, res.ApprovalID, RunOptions{})
	if resumed.Success {
		t.Fatal("resume must fail while the approval is still pending")
	}
	if !strings.Contains(resumed.Error, "not resumable") {
		t.Errorf("error = %q, want not resumable", resumed.Error)
	}
	if rig.dangerCalls != 0 {
		t.Errorf("handler invoked %d times, want 0", rig.dangerCalls)
	}
}

func TestRunProviderOutageFails(t *testing.T) {
	rig := newRig(t, &stubProvider{err: errors.New("backend down")}, 5)

	res := rig.executor.Run(context.Background(), "agent-1", manualTrigger(), RunOptions{})

	if res.Success {
		t.Fatal("run should fail on provider outage")
	}
	if !strings.Contains(res.Error, "provider error") || !strings.Contains(res.Error, "backend down") {
		t.Errorf("error = %q, want wrapped provider error", res.Error)
	}
	if res.Status != models.ExecutionFailed {
		t.Errorf("status = %s, want failed", res.Status)
	}
}

func TestRunTimeout(t *testing.T) {
	rig := newRig(t, &stubProvider{block: true}, 5)

	res := rig.executor.Run(context.Background(), "agent-1", manualTrigger(), RunOptions{Timeout: 20 * time.Millisecond})

	if res.Status != models.ExecutionTimedOut {
		t.Fatalf("status = %s, want timed_out", res.Status)
	}
	if res.Error != TimedOutMessage {
		t.Errorf("error = %q, want %q", res.Error, TimedOutMessage)
	}
}

func TestRunCancellation(t *testing.T) {
	rig := newRig(t, &stubProvider{block: true}, 5)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	res := rig.executor.Run(ctx, "agent-1", manualTrigger(), RunOptions{})

	if res.Status != models.ExecutionCancelled {
		t.Fatalf("status = %s, want cancelled", res.Status)
	}
	if res.Error != CancelledMessage {
		t.Errorf("error = %q, want %q", res.Error, CancelledMessage)
	}
}

func TestCancelledRunRecordsFailureEpisode(t *testing.T) {
	rig := newRig(t, &stubProvider{script: []*provider.Completion{useEcho, useEcho}}, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rig.onEcho = cancel

	res := rig.executor.Run(ctx, "agent-1", manualTrigger(), RunOptions{})

	if res.Status != models.ExecutionCancelled {
		t.Fatalf("status = %s, want cancelled", res.Status)
	}
	if rig.echoCalls != 1 {
		t.Fatalf("echo ran %d times, want 1", rig.echoCalls)
	}

	episodes, err := rig.stores.Episodes.ListByAgent(context.Background(), "agent-1", 10)
	if err != nil {
		t.Fatalf("list episodes: %v", err)
	}
	if len(episodes) != 1 {
		t.Fatalf("got %d episodes, want 1", len(episodes))
	}
	if episodes[0].Outcome != models.OutcomeFailure {
		t.Errorf("outcome = %s, want failure despite the successful tool call", episodes[0].Outcome)
	}
	if episodes[0].ShouldRepeat {
		t.Error("cancelled run should not be marked repeatable")
	}
}

func TestRunFrequencyBudget(t *testing.T) {
	rig := newRig(t, &stubProvider{script: []*provider.Completion{doFinish}}, 5)
	ctx := context.Background()

	agent, err := rig.stores.Agents.Get(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	agent.Budgets.MaxRunsPerHour = 1
	if err := rig.stores.Agents.Update(ctx, agent); err != nil {
		t.Fatalf("update agent: %v", err)
	}

	first := rig.executor.Run(ctx, "agent-1", manualTrigger(), RunOptions{})
	if !first.Success {
		t.Fatalf("first run failed: %s", first.Error)
	}

	second := rig.executor.Run(ctx, "agent-1", manualTrigger(), RunOptions{})
	if second.Success {
		t.Fatal("second run should exceed the hourly budget")
	}
	if !strings.Contains(second.Error, "run budget exceeded") {
		t.Errorf("error = %q, want run budget exceeded", second.Error)
	}
	if steps := listSteps(t, rig, second.ExecutionID); len(steps) != 0 {
		t.Errorf("budget-refused run recorded %d steps, want 0", len(steps))
	}
}

func TestRunNativeToolCallTakesPrecedence(t *testing.T) {
	native := &provider.Completion{
		Content:      `{"reasoning": "textual decision says finish", "action": "finish"}`,
		ToolCalls:    []models.ToolCall{{ID: "call_1", Name: "echo", Input: json.RawMessage(`{"text": "native"}`)}},
		TokensIn:     3,
		TokensOut:    2,
		FinishReason: provider.FinishToolCalls,
	}
	rig := newRig(t, &stubProvider{script: []*provider.Completion{native, doFinish}}, 5)

	res := rig.executor.Run(context.Background(), "agent-1", manualTrigger(), RunOptions{})

	if !res.Success {
		t.Fatalf("run failed: %s", res.Error)
	}
	if rig.echoCalls != 1 {
		t.Errorf("echo called %d times, want 1 (native call wins over text)", rig.echoCalls)
	}
}
