package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAcquire_ConsumesDailyQuota(t *testing.T) {
	l := New("llm", 1000, 10, 2)

	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if got := l.Remaining(); got != 1 {
		t.Errorf("remaining after one acquire = %d, want 1", got)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}

	err := l.Acquire(ctx)
	if !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted, got %v", err)
	}
	if got := l.Remaining(); got != 0 {
		t.Errorf("remaining after exhaustion = %d, want 0", got)
	}
}

func TestAcquire_BlocksForBucketRefill(t *testing.T) {
	l := New("search", 20, 1, 0)

	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	start := time.Now()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("second acquire returned after %v, expected a refill wait", elapsed)
	}
}

func TestAcquire_CancelledWhileWaiting(t *testing.T) {
	l := New("search", 0.01, 1, 0)

	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	err := l.Acquire(waitCtx)
	if err == nil {
		t.Fatal("expected an error when the wait is cancelled")
	}
	if errors.Is(err, ErrQuotaExhausted) {
		t.Errorf("cancellation must not look like quota exhaustion: %v", err)
	}
}

func TestRemaining_UnlimitedQuota(t *testing.T) {
	l := New("search", 10, 1, 0)
	if got := l.Remaining(); got != -1 {
		t.Errorf("unlimited quota Remaining() = %d, want -1", got)
	}
}

func TestGetStats_ReportsUsage(t *testing.T) {
	l := New("llm", 1000, 10, 5)
	_ = l.Acquire(context.Background())

	stats := l.GetStats()
	if stats["service"] != "llm" {
		t.Errorf("service = %v, want llm", stats["service"])
	}
	if stats["used"] != 1 {
		t.Errorf("used = %v, want 1", stats["used"])
	}
	if stats["daily_cap"] != 5 {
		t.Errorf("daily_cap = %v, want 5", stats["daily_cap"])
	}
}
