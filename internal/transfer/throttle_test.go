package transfer

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestProgressThrottle(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	th := NewProgressThrottle(100*time.Millisecond, 10)
	th.now = clock.now

	steps := []struct {
		advance time.Duration
		offer   int
		want    int
		emitted bool
	}{
		{100 * time.Millisecond, 5, 0, false},  // below step
		{0, 12, 12, true},                      // step and interval satisfied
		{10 * time.Millisecond, 30, 12, false}, // interval not elapsed
		{100 * time.Millisecond, 30, 30, true},
		{100 * time.Millisecond, 20, 30, false}, // backwards
		{100 * time.Millisecond, 35, 30, false}, // below step
		{0, 100, 100, true},                     // completion always passes
		{time.Second, 100, 100, false},          // only once
		{time.Second, 150, 100, false},
	}

	for i, s := range steps {
		clock.advance(s.advance)
		got, ok := th.Offer(s.offer)
		if got != s.want || ok != s.emitted {
			t.Errorf("step %d: Offer(%d) = (%d, %v), want (%d, %v)", i, s.offer, got, ok, s.want, s.emitted)
		}
	}
}

func TestProgressThrottleDefaults(t *testing.T) {
	th := NewProgressThrottle(0, 0)
	if th.MinInterval != 100*time.Millisecond || th.MinStep != 10 {
		t.Errorf("defaults = %s / %d", th.MinInterval, th.MinStep)
	}
}

func TestProgressThrottleCompletionWithoutIntermediates(t *testing.T) {
	th := NewProgressThrottle(time.Hour, 10)
	if v, ok := th.Offer(100); !ok || v != 100 {
		t.Fatalf("Offer(100) = (%d, %v)", v, ok)
	}
	if th.Last() != 100 {
		t.Errorf("Last() = %d", th.Last())
	}
}
