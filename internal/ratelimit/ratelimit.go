package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter spaces out page fetches.
type Limiter interface {
	Wait(ctx context.Context) error
}

// JitterLimiter keeps a random delay in [min, max) between two actions.
type JitterLimiter struct {
	mu         sync.Mutex
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	now        func() time.Time
	rand       func(n int64) int64
}

func NewJitterLimiter(minDelay, maxDelay time.Duration) *JitterLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &JitterLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		now:      time.Now,
		rand:     rand.Int63n,
	}
}

func (r *JitterLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lastAction.IsZero() {
		elapsed := r.now().Sub(r.lastAction)
		if delay := r.nextDelay(); elapsed < delay {
			timer := time.NewTimer(delay - elapsed)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	r.lastAction = r.now()
	return nil
}

// Delays returns the current bounds.
func (r *JitterLimiter) Delays() (time.Duration, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.minDelay, r.maxDelay
}

func (r *JitterLimiter) nextDelay() time.Duration {
	if r.minDelay >= r.maxDelay {
		return r.minDelay
	}
	return r.minDelay + time.Duration(r.rand(int64(r.maxDelay-r.minDelay)))
}

// AdaptiveLimiter widens the delay after repeated blocks and slowly narrows
// it back to the configured floor while fetches succeed.
type AdaptiveLimiter struct {
	*JitterLimiter
	floorMin      time.Duration
	floorMax      time.Duration
	errorCount    int
	successCount  int
	maxErrorCount int
	backoffFactor float64
	ceilingMin    time.Duration
	ceilingMax    time.Duration
}

func NewAdaptiveLimiter(minDelay, maxDelay time.Duration) *AdaptiveLimiter {
	base := NewJitterLimiter(minDelay, maxDelay)
	return &AdaptiveLimiter{
		JitterLimiter: base,
		floorMin:      base.minDelay,
		floorMax:      base.maxDelay,
		maxErrorCount: 3,
		backoffFactor: 1.5,
		ceilingMin:    60 * time.Second,
		ceilingMax:    120 * time.Second,
	}
}

func (a *AdaptiveLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.errorCount = 0

	if a.successCount > 5 {
		a.minDelay = max(time.Duration(float64(a.minDelay)*0.9), a.floorMin)
		a.maxDelay = max(time.Duration(float64(a.maxDelay)*0.9), a.floorMax)
		a.successCount = 0
	}
}

// RecordBlocked counts a challenge or denial. Every third one in a row
// multiplies both bounds by the backoff factor.
func (a *AdaptiveLimiter) RecordBlocked() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	a.successCount = 0

	if a.errorCount >= a.maxErrorCount {
		a.minDelay = min(time.Duration(float64(a.minDelay)*a.backoffFactor), a.ceilingMin)
		a.maxDelay = min(time.Duration(float64(a.maxDelay)*a.backoffFactor), a.ceilingMax)
		a.errorCount = 0
	}
}
