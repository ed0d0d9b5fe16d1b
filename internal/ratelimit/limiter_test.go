package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterAllowsUpToLimit(t *testing.T) {
	l := New(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.TryAcquire() {
			t.Fatalf("TryAcquire %d should succeed within budget", i+1)
		}
	}
	if l.TryAcquire() {
		t.Error("TryAcquire beyond budget should fail")
	}
}

func TestLimiterRemaining(t *testing.T) {
	l := New(5, time.Minute)

	if got := l.Remaining(); got != 5 {
		t.Errorf("Remaining() = %d, want 5", got)
	}

	l.TryAcquire()
	l.TryAcquire()

	if got := l.Remaining(); got != 3 {
		t.Errorf("Remaining() after 2 acquires = %d, want 3", got)
	}
}

func TestLimiterWindowRollover(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := New(2, time.Minute)
	l.now = func() time.Time { return current }

	if !l.TryAcquire() || !l.TryAcquire() {
		t.Fatal("Budget should allow 2 acquires")
	}
	if l.TryAcquire() {
		t.Fatal("Budget exhausted, acquire should fail")
	}

	// Mid-window: still exhausted.
	current = current.Add(30 * time.Second)
	if l.TryAcquire() {
		t.Error("Acquire mid-window should still fail")
	}

	// Window elapsed: budget resets.
	current = current.Add(31 * time.Second)
	if !l.TryAcquire() {
		t.Error("Acquire after window rollover should succeed")
	}
	if got := l.Remaining(); got != 1 {
		t.Errorf("Remaining() after rollover and 1 acquire = %d, want 1", got)
	}
}

func TestLimiterZeroBudget(t *testing.T) {
	l := New(0, time.Minute)

	if l.TryAcquire() {
		t.Error("TryAcquire with zero budget should fail")
	}
	if got := l.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}
}
