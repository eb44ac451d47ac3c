package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func drain(rl *RateLimiter, n int) {
	for i := 0; i < n; i++ {
		rl.tryAcquire()
	}
}

func TestBucket(t *testing.T) {
	tests := []struct {
		name      string
		rate      float64
		burst     float64
		take      int
		sleep     time.Duration
		min, max  float64
		wantTaken bool // whether one more tryAcquire succeeds
	}{
		{name: "starts full", rate: 1, burst: 10, min: 9.9, max: 10, wantTaken: true},
		{name: "burst exhausted", rate: 1, burst: 5, take: 5, min: 0, max: 0.1},
		{name: "refills", rate: 10, burst: 10, take: 10, sleep: 200 * time.Millisecond, min: 1.5, max: 3, wantTaken: true},
		{name: "refill capped", rate: 100, burst: 5, sleep: 100 * time.Millisecond, min: 4.9, max: 5, wantTaken: true},
		{name: "burst below one", rate: 1, burst: 0, min: 0.9, max: 1, wantTaken: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(tt.rate, tt.burst)
			drain(rl, tt.take)
			time.Sleep(tt.sleep)

			if got := rl.GetCurrentTokens(); got < tt.min || got > tt.max {
				t.Errorf("tokens = %.2f, want %.1f..%.1f", got, tt.min, tt.max)
			}
			if got := rl.tryAcquire(); got != tt.wantTaken {
				t.Errorf("tryAcquire = %v, want %v", got, tt.wantTaken)
			}
		})
	}
}

func TestWaitForLookup(t *testing.T) {
	rl := NewRateLimiter(10, 1)
	drain(rl, 1)

	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond || elapsed > time.Second {
		t.Errorf("waited %v, want about 100ms", elapsed)
	}
}

func TestWaitCancelled(t *testing.T) {
	rl := NewRateLimiter(0.1, 1)
	drain(rl, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Wait = %v, want deadline exceeded", err)
	}
}

func TestThrottledResponse(t *testing.T) {
	// A 429 drains the bucket and sets a cooldown; the next lookup waits
	// out the cooldown even though the refill rate is high.
	rl := NewRateLimiter(1000, 5)
	rl.Drain()
	if got := rl.GetCurrentTokens(); got > 1 {
		t.Errorf("tokens after Drain = %.2f", got)
	}

	rl.SetCooldown(150 * time.Millisecond)
	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("cooldown ignored: waited %v", elapsed)
	}
}

func TestCooldownMerge(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	if d := rl.CooldownRemaining(); d != 0 {
		t.Errorf("fresh limiter cooldown = %v", d)
	}

	rl.SetCooldown(time.Second)
	rl.SetCooldown(10 * time.Millisecond)
	if d := rl.CooldownRemaining(); d < 900*time.Millisecond {
		t.Errorf("shorter cooldown shortened the running one: %v", d)
	}

	rl.SetCooldown(2 * time.Second)
	if d := rl.CooldownRemaining(); d < 1900*time.Millisecond {
		t.Errorf("longer cooldown did not extend: %v", d)
	}

	short := NewRateLimiter(1, 1)
	short.SetCooldown(20 * time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	if d := short.CooldownRemaining(); d != 0 {
		t.Errorf("expired cooldown = %v", d)
	}
}

func TestConcurrentLookups(t *testing.T) {
	rl := NewRateLimiter(200, 5)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%5 == 0 {
				rl.Drain()
			}
			errs <- rl.Wait(ctx)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Wait: %v", err)
		}
	}
}
