package transfer

import (
	"time"

	"github.com/dropshare/dropget/internal/constants"
)

// ProgressThrottle coalesces progress values. A value passes only when it
// has advanced by at least MinStep points and MinInterval has elapsed since
// the last emitted value. 100 always passes once.
type ProgressThrottle struct {
	MinInterval time.Duration
	MinStep     int

	now    func() time.Time
	last   int
	lastAt time.Time
}

// NewProgressThrottle returns a throttle with the given limits.
// Zero values select the defaults (100ms, 10 points).
func NewProgressThrottle(minInterval time.Duration, minStep int) *ProgressThrottle {
	if minInterval <= 0 {
		minInterval = constants.ProgressMinInterval
	}
	if minStep <= 0 {
		minStep = constants.ProgressMinStep
	}
	return &ProgressThrottle{
		MinInterval: minInterval,
		MinStep:     minStep,
		now:         time.Now,
	}
}

// Offer reports whether p should be emitted and returns the clamped value.
func (t *ProgressThrottle) Offer(p int) (int, bool) {
	if p > 100 {
		p = 100
	}
	if p <= t.last {
		return t.last, false
	}

	now := t.now()
	if p < 100 {
		if p-t.last < t.MinStep || now.Sub(t.lastAt) < t.MinInterval {
			return t.last, false
		}
	}

	t.last = p
	t.lastAt = now
	return p, true
}

// Last returns the last emitted value.
func (t *ProgressThrottle) Last() int {
	return t.last
}
