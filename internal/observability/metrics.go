package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Execution lifecycle (starts, completions, durations) by trigger and status
//   - LLM request performance, response times, and token consumption
//   - Tool dispatch outcomes and latencies
//   - Rate limit denials and approval gate activity
//   - Memory subsystem operations
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordExecution("manual", "completed", time.Since(start).Seconds())
type Metrics struct {
	// ExecutionCounter counts agent executions.
	// Labels: trigger (manual|cron|event|condition), status
	ExecutionCounter *prometheus.CounterVec

	// ExecutionDuration measures wall-clock run duration in seconds.
	// Labels: status
	// Buckets: 0.5s, 1s, 5s, 15s, 30s, 60s, 120s, 300s, 600s
	ExecutionDuration *prometheus.HistogramVec

	// StepCounter counts loop steps by kind.
	// Labels: kind (think|act|observe)
	StepCounter *prometheus.CounterVec

	// ActiveExecutions is a gauge of currently running executions.
	ActiveExecutions prometheus.Gauge

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider (anthropic|openai), model
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider and model.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// ToolDispatches counts tool dispatch outcomes.
	// Labels: tool_name, status (success|approval_pending|unknown_tool|...)
	ToolDispatches *prometheus.CounterVec

	// ToolDuration measures tool dispatch time in seconds.
	// Labels: tool_name
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	ToolDuration *prometheus.HistogramVec

	// RateLimitDenials counts dispatches refused by the rate limiter.
	// Labels: tool_name, window (minute|hour)
	RateLimitDenials *prometheus.CounterVec

	// ApprovalsCreated counts approval requests filed by the gate.
	// Labels: tool_name, risk
	ApprovalsCreated *prometheus.CounterVec

	// ApprovalsResolved counts approval outcomes.
	// Labels: status (approved|denied|expired)
	ApprovalsResolved *prometheus.CounterVec

	// MemoryOperations counts memory subsystem activity.
	// Labels: operation (store|retrieve|consolidate|episode), kind
	MemoryOperations *prometheus.CounterVec

	// ErrorCounter tracks errors by component and error type.
	// Labels: component (engine|tool|provider|storage|approval), error_type
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
func NewMetrics() *Metrics {
	return &Metrics{
		ExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "praxis_executions_total",
				Help: "Total number of agent executions by trigger and status",
			},
			[]string{"trigger", "status"},
		),

		ExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "praxis_execution_duration_seconds",
				Help:    "Duration of agent executions in seconds",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),

		StepCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "praxis_steps_total",
				Help: "Total number of loop steps by kind",
			},
			[]string{"kind"},
		),

		ActiveExecutions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "praxis_active_executions",
				Help: "Current number of running executions",
			},
		),

		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "praxis_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "praxis_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "praxis_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		ToolDispatches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "praxis_tool_dispatches_total",
				Help: "Total number of tool dispatches by tool name and outcome",
			},
			[]string{"tool_name", "status"},
		),

		ToolDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "praxis_tool_dispatch_duration_seconds",
				Help:    "Duration of tool dispatches in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		RateLimitDenials: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "praxis_rate_limit_denials_total",
				Help: "Total number of dispatches refused by the rate limiter",
			},
			[]string{"tool_name", "window"},
		),

		ApprovalsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "praxis_approvals_created_total",
				Help: "Total number of approval requests filed by tool and risk",
			},
			[]string{"tool_name", "risk"},
		),

		ApprovalsResolved: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "praxis_approvals_resolved_total",
				Help: "Total number of approval outcomes by status",
			},
			[]string{"status"},
		),

		MemoryOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "praxis_memory_operations_total",
				Help: "Total number of memory subsystem operations",
			},
			[]string{"operation", "kind"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "praxis_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),
	}
}

// RecordExecution records a finished execution.
func (m *Metrics) RecordExecution(trigger, status string, durationSeconds float64) {
	m.ExecutionCounter.WithLabelValues(trigger, status).Inc()
	m.ExecutionDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordStep increments the step counter for a loop step kind.
func (m *Metrics) RecordStep(kind string) {
	m.StepCounter.WithLabelValues(kind).Inc()
}

// RecordLLMRequest records metrics for an LLM API request.
//
// Example:
//
//	start := time.Now()
//	// ... make LLM request ...
//	metrics.RecordLLMRequest("anthropic", "claude-sonnet-4-5", "success", time.Since(start).Seconds(), 100, 500)
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordError increments the error counter for a given component and error type.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// RecordMemoryOperation increments the memory operation counter.
func (m *Metrics) RecordMemoryOperation(operation, kind string) {
	m.MemoryOperations.WithLabelValues(operation, kind).Inc()
}
