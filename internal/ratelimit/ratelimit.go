package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/briefwire/newsbrief/internal/logger"
)

// ErrQuotaExhausted is returned when the daily request quota is spent.
// Callers must treat it as fatal for the rest of the run, not retry it.
var ErrQuotaExhausted = errors.New("daily request quota exhausted")

// Limiter gates outbound calls to one external service. Short-term pacing is
// a token bucket; on top of it a daily request quota protects free-tier API
// allowances. Both are shared by all workers talking to that service.
type Limiter struct {
	name   string
	bucket *rate.Limiter

	mu       sync.Mutex
	used     int
	dailyCap int // 0 = unlimited
	waited   int
	resetAt  time.Time
}

// New creates a limiter allowing rps requests per second with the given
// burst, and at most dailyCap requests per day (0 disables the quota).
func New(name string, rps float64, burst, dailyCap int) *Limiter {
	if rps <= 0 {
		rps = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		name:     name,
		bucket:   rate.NewLimiter(rate.Limit(rps), burst),
		dailyCap: dailyCap,
		resetAt:  time.Now().Add(24 * time.Hour),
	}
}

// Acquire blocks until a request slot is available, then consumes one unit
// of the daily quota. Returns ErrQuotaExhausted when the quota is spent and
// the context error when the wait is cancelled.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	l.checkReset()
	if l.dailyCap > 0 && l.used >= l.dailyCap {
		used := l.used
		l.mu.Unlock()
		logger.Warn("rate limiter quota exhausted", "service", l.name, "used", used, "cap", l.dailyCap)
		return ErrQuotaExhausted
	}
	if l.bucket.Tokens() < 1 {
		l.waited++
	}
	l.mu.Unlock()

	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	l.used++
	l.mu.Unlock()
	return nil
}

// Remaining reports how many daily-quota requests are left. Unlimited quotas
// report -1.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checkReset()
	if l.dailyCap <= 0 {
		return -1
	}
	left := l.dailyCap - l.used
	if left < 0 {
		left = 0
	}
	return left
}

// GetStats returns current limiter statistics.
func (l *Limiter) GetStats() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return map[string]interface{}{
		"service":   l.name,
		"used":      l.used,
		"daily_cap": l.dailyCap,
		"waited":    l.waited,
		"reset_at":  l.resetAt.Format(time.RFC3339),
	}
}

// checkReset clears the quota once the daily window rolls over.
// Caller must hold l.mu.
func (l *Limiter) checkReset() {
	if time.Now().After(l.resetAt) {
		logger.Info("resetting rate limiter quota", "service", l.name, "used", l.used)
		l.used = 0
		l.waited = 0
		l.resetAt = time.Now().Add(24 * time.Hour)
	}
}
