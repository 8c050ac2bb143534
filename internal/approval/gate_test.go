package approval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/praxishq/praxis/internal/storage"
	"github.com/praxishq/praxis/pkg/models"
)

func newTestGate(t *testing.T) (*Gate, *storage.StoreSet) {
	t.Helper()
	stores := storage.NewMemoryStoreSet()
	gate := NewGate(GateConfig{
		Approvals:  stores.Approvals,
		Executions: stores.Executions,
	})
	return gate, stores
}

func seedSuspended(t *testing.T, gate *Gate, stores *storage.StoreSet) *models.ApprovalRequest {
	t.Helper()
	ctx := context.Background()

	exec := &models.Execution{AgentID: "agent-1", Status: models.ExecutionWaitingApproval}
	if err := stores.Executions.Create(ctx, exec); err != nil {
		t.Fatalf("create execution: %v", err)
	}

	req := &models.ApprovalRequest{
		ExecutionID: exec.ID,
		AgentID:     "agent-1",
		ToolName:    "email_send",
		Risk:        models.RiskHigh,
	}
	if err := gate.Create(ctx, req); err != nil {
		t.Fatalf("create approval: %v", err)
	}
	return req
}

func TestCreateStampsDefaults(t *testing.T) {
	gate, stores := newTestGate(t)
	req := seedSuspended(t, gate, stores)

	if req.ID == "" {
		t.Error("ID not assigned")
	}
	if req.Status != models.ApprovalPending {
		t.Errorf("status = %s, want pending", req.Status)
	}
	want := req.CreatedAt.Add(DefaultTTL)
	if !req.ExpiresAt.Equal(want) {
		t.Errorf("expiry = %v, want %v", req.ExpiresAt, want)
	}
}

func TestApproveResumesExecution(t *testing.T) {
	gate, stores := newTestGate(t)
	req := seedSuspended(t, gate, stores)
	ctx := context.Background()

	if err := gate.Approve(ctx, req.ID, "ops@example.com", "looks fine"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	got, err := gate.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.ApprovalApproved {
		t.Errorf("status = %s, want approved", got.Status)
	}
	if got.ResolvedBy != "ops@example.com" {
		t.Errorf("resolved by = %q", got.ResolvedBy)
	}

	exec, err := stores.Executions.Get(ctx, req.ExecutionID)
	if err != nil {
		t.Fatalf("get execution: %v", err)
	}
	if exec.Status != models.ExecutionRunning {
		t.Errorf("execution status = %s, want running", exec.Status)
	}
}

func TestDenyCancelsExecution(t *testing.T) {
	gate, stores := newTestGate(t)
	req := seedSuspended(t, gate, stores)
	ctx := context.Background()

	if err := gate.Deny(ctx, req.ID, "ops@example.com", "too risky"); err != nil {
		t.Fatalf("Deny: %v", err)
	}

	got, _ := gate.Get(ctx, req.ID)
	if got.Status != models.ApprovalDenied {
		t.Errorf("status = %s, want denied", got.Status)
	}

	exec, _ := stores.Executions.Get(ctx, req.ExecutionID)
	if exec.Status != models.ExecutionCancelled {
		t.Errorf("execution status = %s, want cancelled", exec.Status)
	}
	if exec.Error != DeniedMessage {
		t.Errorf("execution error = %q, want %q", exec.Error, DeniedMessage)
	}
}

func TestResolveTwiceFails(t *testing.T) {
	gate, stores := newTestGate(t)
	req := seedSuspended(t, gate, stores)
	ctx := context.Background()

	if err := gate.Approve(ctx, req.ID, "first", ""); err != nil {
		t.Fatalf("first Approve: %v", err)
	}
	if err := gate.Deny(ctx, req.ID, "second", ""); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("second resolution error = %v, want ErrAlreadyResolved", err)
	}
	if err := gate.Approve(ctx, req.ID, "third", ""); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("repeat approve error = %v, want ErrAlreadyResolved", err)
	}

	// Prior resolution untouched.
	got, _ := gate.Get(ctx, req.ID)
	if got.Status != models.ApprovalApproved || got.ResolvedBy != "first" {
		t.Errorf("resolution overwritten: status=%s by=%s", got.Status, got.ResolvedBy)
	}
}

func TestApproveExpiredRequest(t *testing.T) {
	gate, stores := newTestGate(t)
	req := seedSuspended(t, gate, stores)
	ctx := context.Background()

	gate.now = func() time.Time { return req.ExpiresAt.Add(time.Minute) }

	if err := gate.Approve(ctx, req.ID, "ops", ""); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("approve after expiry = %v, want ErrAlreadyResolved", err)
	}
	got, _ := gate.Get(ctx, req.ID)
	if got.Status != models.ApprovalExpired {
		t.Errorf("status = %s, want expired", got.Status)
	}

	// A lapsed request never becomes approved, even on retry.
	if err := gate.Approve(ctx, req.ID, "ops", ""); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("retry after lapse = %v, want ErrAlreadyResolved", err)
	}
}

func TestSweepExpiresAndFailsStuckExecutions(t *testing.T) {
	gate, stores := newTestGate(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gate.now = func() time.Time { return base }
	stale := seedSuspended(t, gate, stores)

	gate.now = func() time.Time { return base.Add(time.Hour) }
	fresh := seedSuspended(t, gate, stores)

	// A moment past the first expiry but before the second.
	gate.now = func() time.Time { return base.Add(DefaultTTL + time.Minute) }

	n, err := gate.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}

	got, _ := gate.Get(ctx, stale.ID)
	if got.Status != models.ApprovalExpired {
		t.Errorf("stale status = %s, want expired", got.Status)
	}
	exec, _ := stores.Executions.Get(ctx, stale.ExecutionID)
	if exec.Status != models.ExecutionFailed {
		t.Errorf("stuck execution status = %s, want failed", exec.Status)
	}

	untouched, _ := gate.Get(ctx, fresh.ID)
	if untouched.Status != models.ApprovalPending {
		t.Errorf("fresh status = %s, want pending", untouched.Status)
	}
}

func TestListPending(t *testing.T) {
	gate, stores := newTestGate(t)
	a := seedSuspended(t, gate, stores)
	b := seedSuspended(t, gate, stores)
	ctx := context.Background()

	if err := gate.Approve(ctx, a.ID, "ops", ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	pending, err := gate.ListPending(ctx, "agent-1")
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != b.ID {
		t.Errorf("pending = %+v, want only %s", pending, b.ID)
	}
}
