package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Metrics register against the default Prometheus registry, so the
// package shares a single instance across tests.
var testMetrics = NewMetrics()

func TestRecordExecution(t *testing.T) {
	testMetrics.RecordExecution("manual", "completed", 1.5)
	testMetrics.RecordExecution("manual", "completed", 0.5)
	testMetrics.RecordExecution("cron", "failed", 2.0)

	if got := testutil.ToFloat64(testMetrics.ExecutionCounter.WithLabelValues("manual", "completed")); got != 2 {
		t.Errorf("manual/completed count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(testMetrics.ExecutionCounter.WithLabelValues("cron", "failed")); got != 1 {
		t.Errorf("cron/failed count = %v, want 1", got)
	}
}

func TestRecordLLMRequestTokens(t *testing.T) {
	testMetrics.RecordLLMRequest("openai", "gpt-4o", "success", 0.8, 120, 45)

	if got := testutil.ToFloat64(testMetrics.LLMTokensUsed.WithLabelValues("openai", "gpt-4o", "prompt")); got != 120 {
		t.Errorf("prompt tokens = %v, want 120", got)
	}
	if got := testutil.ToFloat64(testMetrics.LLMTokensUsed.WithLabelValues("openai", "gpt-4o", "completion")); got != 45 {
		t.Errorf("completion tokens = %v, want 45", got)
	}
}

func TestRecordStepAndMemory(t *testing.T) {
	testMetrics.RecordStep("think")
	testMetrics.RecordStep("think")
	testMetrics.RecordMemoryOperation("store", "fact")

	if got := testutil.ToFloat64(testMetrics.StepCounter.WithLabelValues("think")); got != 2 {
		t.Errorf("think steps = %v, want 2", got)
	}
	if got := testutil.ToFloat64(testMetrics.MemoryOperations.WithLabelValues("store", "fact")); got != 1 {
		t.Errorf("memory store/fact = %v, want 1", got)
	}
}
