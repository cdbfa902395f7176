package ratelimit

import (
	"testing"
	"time"
)

// TestAllowConsumesBudget verifies the per-caller budget and that callers
// do not share buckets.
func TestAllowConsumesBudget(t *testing.T) {
	l := New(2, time.Minute)

	if !l.Allow("a") {
		t.Error("first request should be allowed")
	}
	if !l.Allow("a") {
		t.Error("second request should be allowed")
	}
	if l.Allow("a") {
		t.Error("third request should be rejected")
	}
	if !l.Allow("b") {
		t.Error("a different caller has its own budget")
	}
}

// TestAllowRefillsOverTime verifies tokens come back after the window
// elapses.
func TestAllowRefillsOverTime(t *testing.T) {
	l := New(1, 50*time.Millisecond)

	if !l.Allow("a") {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("a") {
		t.Fatal("budget should be exhausted")
	}

	time.Sleep(80 * time.Millisecond)
	if !l.Allow("a") {
		t.Error("budget should refill after the window")
	}
}

// TestReset verifies clearing a caller restores its full budget.
func TestReset(t *testing.T) {
	l := New(1, time.Minute)

	l.Allow("a")
	if l.Allow("a") {
		t.Fatal("budget should be exhausted")
	}

	l.Reset("a")
	if !l.Allow("a") {
		t.Error("reset caller should be allowed again")
	}
}
