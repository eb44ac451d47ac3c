// Package ratelimit throttles metadata calls and body reads.
//
// RateLimiter is a token bucket for request rates. Bandwidth caps the bytes
// per second read across every concurrent fetch.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/dropshare/dropget/internal/constants"
	"github.com/dropshare/dropget/internal/logging"
)

// RateLimiter is a token bucket: up to burst calls at once, then rate
// calls per second. A server-requested cooldown holds back every caller
// regardless of the tokens left.
type RateLimiter struct {
	mu        sync.Mutex
	tokens    float64
	burst     float64
	rate      float64 // tokens per second
	refilled  time.Time
	coolUntil time.Time
	warned    time.Time
	logger    *logging.Logger
}

// NewRateLimiter returns a full bucket. burst is at least 1.
func NewRateLimiter(rate, burst float64) *RateLimiter {
	burst = max(burst, 1)
	return &RateLimiter{
		tokens:   burst,
		burst:    burst,
		rate:     rate,
		refilled: time.Now(),
		logger:   logging.NewNopLogger(),
	}
}

// NewMetadataRateLimiter creates the limiter used for transfer lookups.
func NewMetadataRateLimiter() *RateLimiter {
	return NewRateLimiter(constants.DefaultAPIRatePerSec, constants.DefaultAPIBurst)
}

// SetLogger sets where long-wait warnings go.
func (rl *RateLimiter) SetLogger(l *logging.Logger) {
	rl.mu.Lock()
	rl.logger = logging.OrNop(l)
	rl.mu.Unlock()
}

// Wait takes one token, sleeping until one is free and any cooldown has
// passed. It returns ctx.Err() if ctx ends first.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	start := time.Now()
	for first := true; ; first = false {
		d := rl.reserve(time.Now())
		if d == 0 {
			if !first {
				rl.logger.Debug().Dur("waited", time.Since(start)).Msg("Rate limit wait completed")
			}
			return nil
		}
		if first {
			rl.warnLongWait(d)
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve takes a token and returns 0, or returns how long to sleep
// before trying again.
func (rl *RateLimiter) reserve(now time.Time) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Before(rl.coolUntil) {
		return rl.coolUntil.Sub(now)
	}
	rl.refillLocked(now)
	if rl.tokens >= 1 {
		rl.tokens--
		return 0
	}
	if rl.rate <= 0 {
		return time.Second
	}
	return time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
}

func (rl *RateLimiter) warnLongWait(d time.Duration) {
	if d <= constants.RateLimitWarningThreshold {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if time.Since(rl.warned) > constants.RateLimitWarningInterval {
		rl.warned = time.Now()
		rl.logger.Warn().Dur("wait", d).Msg("Rate limited, waiting for API capacity")
	}
}

// tryAcquire takes a token if one is free right now.
func (rl *RateLimiter) tryAcquire() bool {
	return rl.reserve(time.Now()) == 0
}

func (rl *RateLimiter) refillLocked(now time.Time) {
	rl.tokens = min(rl.burst, rl.tokens+now.Sub(rl.refilled).Seconds()*rl.rate)
	rl.refilled = now
}

// GetCurrentTokens reports the tokens available now.
func (rl *RateLimiter) GetCurrentTokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked(time.Now())
	return rl.tokens
}

// Drain empties the bucket, e.g. after the server answered 429.
func (rl *RateLimiter) Drain() {
	rl.mu.Lock()
	rl.tokens = 0
	rl.refilled = time.Now()
	rl.mu.Unlock()
}

// SetCooldown holds back every caller for d. It never shortens a
// cooldown already in effect.
func (rl *RateLimiter) SetCooldown(d time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if until := time.Now().Add(d); until.After(rl.coolUntil) {
		rl.coolUntil = until
	}
}

// CooldownRemaining returns how long the current cooldown still lasts.
func (rl *RateLimiter) CooldownRemaining() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return max(time.Until(rl.coolUntil), 0)
}
