package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAllowWithinLimit(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		if d := l.Allow("echo", "agent-1", 5, 0); !d.Allowed {
			t.Fatalf("call %d denied unexpectedly", i)
		}
	}
	d := l.Allow("echo", "agent-1", 5, 0)
	if d.Allowed {
		t.Fatal("sixth call should be denied")
	}
	if d.Window != WindowMinute || d.Limit != 5 {
		t.Errorf("unexpected denial detail: %+v", d)
	}
}

func TestHourWindowDistinguished(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if d := l.Allow("send", "agent-1", 0, 3); !d.Allowed {
			t.Fatalf("call %d denied unexpectedly", i)
		}
	}
	d := l.Allow("send", "agent-1", 0, 3)
	if d.Allowed || d.Window != WindowHour {
		t.Errorf("expected hour window denial, got %+v", d)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()
	if d := l.Allow("echo", "agent-1", 1, 0); !d.Allowed {
		t.Fatal("first call denied")
	}
	// Different agent, same tool: fresh window.
	if d := l.Allow("echo", "agent-2", 1, 0); !d.Allowed {
		t.Fatal("other agent should have its own window")
	}
	// Different tool, same agent: fresh window.
	if d := l.Allow("search", "agent-1", 1, 0); !d.Allowed {
		t.Fatal("other tool should have its own window")
	}
	if d := l.Allow("echo", "agent-1", 1, 0); d.Allowed {
		t.Fatal("same key should be exhausted")
	}
}

func TestWindowReset(t *testing.T) {
	var clock atomic.Int64
	base := time.Now()
	now := func() time.Time { return base.Add(time.Duration(clock.Load())) }
	l := NewWithClock(now)

	if d := l.Allow("echo", "a", 1, 0); !d.Allowed {
		t.Fatal("first call denied")
	}
	if d := l.Allow("echo", "a", 1, 0); d.Allowed {
		t.Fatal("second call within window should be denied")
	}

	clock.Store(int64(61 * time.Second))
	if d := l.Allow("echo", "a", 1, 0); !d.Allowed {
		t.Fatal("call after window reset should be allowed")
	}
}

func TestZeroLimitDisablesWindow(t *testing.T) {
	l := New()
	for i := 0; i < 100; i++ {
		if d := l.Allow("echo", "a", 0, 0); !d.Allowed {
			t.Fatal("unlimited tool should never be denied")
		}
	}
}

// N+1 calls against a limit of N must produce exactly one denial,
// regardless of interleaving.
func TestConcurrentAllowCount(t *testing.T) {
	const limit = 10
	l := New()

	var wg sync.WaitGroup
	var allowed, denied atomic.Int32
	for i := 0; i < limit+1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d := l.Allow("echo", "a", limit, 0); d.Allowed {
				allowed.Add(1)
			} else {
				denied.Add(1)
			}
		}()
	}
	wg.Wait()

	if allowed.Load() != limit {
		t.Errorf("allowed = %d, want %d", allowed.Load(), limit)
	}
	if denied.Load() != 1 {
		t.Errorf("denied = %d, want 1", denied.Load())
	}
}

func TestPrune(t *testing.T) {
	var clock atomic.Int64
	base := time.Now()
	l := NewWithClock(func() time.Time { return base.Add(time.Duration(clock.Load())) })

	l.Allow("echo", "a", 5, 5)
	l.Allow("search", "b", 5, 0)

	if n := l.Prune(); n != 0 {
		t.Errorf("nothing should be prunable yet, pruned %d", n)
	}

	clock.Store(int64(2 * time.Minute))
	if n := l.Prune(); n != 2 {
		t.Errorf("expected 2 lapsed minute windows pruned, got %d", n)
	}
}
