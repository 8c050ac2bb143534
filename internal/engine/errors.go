package engine

import "errors"

// Sentinel errors for run preconditions and terminal outcomes. They are
// folded into ExecutionResult.Error strings; Run itself never returns
// an error value.
var (
	ErrAgentNotFound     = errors.New("agent not found")
	ErrAgentInactive     = errors.New("agent is not active")
	ErrRunBudgetExceeded = errors.New("run budget exceeded")
	ErrProvider          = errors.New("provider error")
	ErrNotResumable      = errors.New("execution is not resumable")
)

// Fixed error strings surfaced on terminal executions. Operators and
// automation match on these literally, so they never change.
const (
	MaxStepsMessage    = "Max steps reached without completion"
	TimedOutMessage    = "Execution timed out"
	CancelledMessage   = "Execution cancelled"
	TokenBudgetMessage = "Token budget exceeded"
)
