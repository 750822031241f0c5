package ratelimit

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(window time.Duration) (*Limiter, *clock) {
	c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(window)
	l.now = c.now
	return l, c
}

func TestAllowExhaustsAndRefills(t *testing.T) {
	l, c := newTestLimiter(time.Minute)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("k", 3) {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if l.Allow("k", 3) {
		t.Fatal("fourth request should be limited")
	}
	c.t = c.t.Add(20 * time.Second)
	if !l.Allow("k", 3) {
		t.Fatal("one token should have refilled")
	}
	if l.Allow("k", 3) {
		t.Fatal("only one token should have refilled")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(time.Minute)
	defer l.Stop()
	l.Allow("a", 1)
	if l.Allow("a", 1) {
		t.Error("a should be limited")
	}
	if !l.Allow("b", 1) {
		t.Error("b should be allowed")
	}
}

func TestNonPositiveLimitDisables(t *testing.T) {
	l, _ := newTestLimiter(time.Minute)
	defer l.Stop()
	for i := 0; i < 100; i++ {
		if !l.Allow("k", 0) {
			t.Fatal("zero limit must not block")
		}
	}
}

func TestRemainingAndReset(t *testing.T) {
	l, _ := newTestLimiter(time.Minute)
	defer l.Stop()
	l.Allow("k", 5)
	l.Allow("k", 5)
	if got := l.Remaining("k", 5); got != 3 {
		t.Errorf("remaining = %d, want 3", got)
	}
	l.Reset("k")
	if got := l.Remaining("k", 5); got != 5 {
		t.Errorf("remaining after reset = %d, want 5", got)
	}
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	l, c := newTestLimiter(time.Minute)
	defer l.Stop()
	l.Allow("k", 1)
	c.t = c.t.Add(3 * time.Minute)
	l.sweep()
	l.mu.Lock()
	n := len(l.buckets)
	l.mu.Unlock()
	if n != 0 {
		t.Errorf("expected idle bucket to be swept, %d left", n)
	}
}

func TestRetryAfter(t *testing.T) {
	l, _ := newTestLimiter(time.Minute)
	defer l.Stop()
	if got := l.RetryAfter(60); got != time.Second {
		t.Errorf("got %v", got)
	}
}
