package models

import (
	"testing"
	"time"
)

func TestExecutionStatusTerminal(t *testing.T) {
	terminal := []ExecutionStatus{ExecutionCompleted, ExecutionFailed, ExecutionCancelled, ExecutionTimedOut}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	live := []ExecutionStatus{ExecutionPending, ExecutionRunning, ExecutionWaitingApproval}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestRiskLevelRank(t *testing.T) {
	if RiskCritical.Rank() <= RiskHigh.Rank() {
		t.Error("critical should outrank high")
	}
	if RiskHigh.Rank() <= RiskMedium.Rank() {
		t.Error("high should outrank medium")
	}
	if RiskMedium.Rank() <= RiskLow.Rank() {
		t.Error("medium should outrank low")
	}
	if RiskLevel("unknown").Rank() != RiskLow.Rank() {
		t.Error("unknown risk should rank as low")
	}
}

func TestApprovalExpired(t *testing.T) {
	now := time.Now()
	req := &ApprovalRequest{ExpiresAt: now.Add(time.Hour)}
	if req.Expired(now) {
		t.Error("request before expiry should not be expired")
	}
	if !req.Expired(now.Add(2 * time.Hour)) {
		t.Error("request past expiry should be expired")
	}

	// Zero expiry never expires.
	zero := &ApprovalRequest{}
	if zero.Expired(now) {
		t.Error("zero expiry should never expire")
	}
}

func TestApprovalStatusResolved(t *testing.T) {
	if ApprovalPending.Resolved() {
		t.Error("pending is not resolved")
	}
	for _, s := range []ApprovalStatus{ApprovalApproved, ApprovalDenied, ApprovalExpired} {
		if !s.Resolved() {
			t.Errorf("%s should be resolved", s)
		}
	}
}
