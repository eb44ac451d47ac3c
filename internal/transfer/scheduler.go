package transfer

import (
	"context"
	"sync"
	"time"

	"github.com/dropshare/dropget/internal/events"
	"github.com/dropshare/dropget/internal/logging"
)

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	Policy   Policy // nil = fixed with the default concurrency
	EventBus *events.EventBus
	Logger   *logging.Logger

	// OnComplete runs on the fetch goroutine after a unit reaches complete.
	// The unit's capacity is already released, so a slow callback does not
	// hold back the next admission.
	OnComplete func(ctx context.Context, u Unit)
}

// Scheduler admits pending units to the fetcher under a Policy.
//
// At most one admission loop runs at a time. The loop walks the collection
// in order and stops at the first unit the policy refuses, then sleeps until
// a fetch finishes or Start is called again. It exits once nothing is
// pending and nothing is in flight.
type Scheduler struct {
	coll       *Collection
	fetcher    *Fetcher
	policy     Policy
	eventBus   *events.EventBus
	logger     *logging.Logger
	onComplete func(ctx context.Context, u Unit)

	mu       sync.Mutex
	running  bool
	inflight int
	cancel   context.CancelFunc
	done     chan struct{}

	wake chan struct{}
	wg   sync.WaitGroup
}

// NewScheduler creates a scheduler over coll.
func NewScheduler(coll *Collection, fetcher *Fetcher, opts SchedulerOptions) *Scheduler {
	policy := opts.Policy
	if policy == nil {
		policy = NewFixedPolicy(0)
	}
	return &Scheduler{
		coll:       coll,
		fetcher:    fetcher,
		policy:     policy,
		eventBus:   opts.EventBus,
		logger:     logging.OrNop(opts.Logger),
		onComplete: opts.OnComplete,
		wake:       make(chan struct{}, 1),
	}
}

// Policy returns the admission policy.
func (s *Scheduler) Policy() Policy {
	return s.policy
}

// Start runs the admission loop if it is not running and work is pending.
// When the loop is already running it is only woken.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.signal()
		return
	}
	if !s.coll.HasPending() {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Debug().Str("policy", s.policy.Name()).Msg("scheduler started")
	go s.loop(loopCtx, cancel, s.done)
}

// Retry moves a failed unit back to pending and restarts admission.
// It returns false when the unit was not in the error state.
func (s *Scheduler) Retry(ctx context.Context, id string) bool {
	if !s.coll.Retry(id) {
		return false
	}
	s.Start(ctx)
	return true
}

// Wait blocks until the current admission loop exits or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels in-flight fetches and waits for them to settle. Cancelled
// units end in the error state.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	s.wg.Wait()
}

// Idle reports whether no admission loop is running.
func (s *Scheduler) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.running
}

// InFlight returns the number of running fetches.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer cancel()

	for {
		if ctx.Err() == nil {
			s.admit(ctx)
		}

		s.mu.Lock()
		if s.inflight == 0 && (ctx.Err() != nil || !s.coll.HasPending()) {
			s.running = false
			s.mu.Unlock()
			s.publishIdle()
			return
		}
		s.mu.Unlock()

		// Once cancelled, only fetch completions can move the loop forward.
		var ctxDone <-chan struct{}
		if ctx.Err() == nil {
			ctxDone = ctx.Done()
		}
		select {
		case <-s.wake:
		case <-ctxDone:
		}
	}
}

// admit starts every pending unit the policy accepts, in collection order.
func (s *Scheduler) admit(ctx context.Context) {
	for _, u := range s.coll.Snapshot() {
		if ctx.Err() != nil {
			return
		}
		if u.Status != StatusPending {
			continue
		}
		if !s.policy.TryAcquire(u) {
			return
		}
		admitted, ok := s.coll.Admit(u.ID)
		if !ok {
			s.policy.Release(u)
			continue
		}

		s.mu.Lock()
		s.inflight++
		s.mu.Unlock()

		s.wg.Add(1)
		go s.run(ctx, admitted)
	}
}

func (s *Scheduler) run(ctx context.Context, u Unit) {
	defer s.wg.Done()

	res, err := s.fetcher.Fetch(ctx, u, func(progress int, received, total int64) {
		s.coll.SetProgress(u.ID, progress, received, total)
	})

	completed := false
	switch {
	case err != nil:
		if s.coll.Fail(u.ID, err) {
			s.logger.Warn().Err(err).Str("unit", u.ID).Int("attempt", u.Attempts).Msg("fetch failed")
		}
	case s.coll.Complete(u.ID, res.Data, res.MimeType, res.Handle):
		completed = true
	default:
		// Removed while in flight.
		s.fetcher.Discard(res)
	}

	// Capacity goes back before the preview runs; inflight still covers
	// it so Wait returns only once previews are attached.
	s.policy.Release(u)
	s.signal()

	if completed && s.onComplete != nil {
		if done, ok := s.coll.Get(u.ID); ok {
			s.onComplete(ctx, done)
		}
	}

	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
	s.signal()
}

func (s *Scheduler) publishIdle() {
	counts := s.coll.Counts()
	s.logger.Debug().Int("complete", counts.Complete).Int("failed", counts.Failed).Msg("scheduler idle")
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(&events.SchedulerEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventSchedulerIdle,
			Time:      time.Now(),
		},
		Complete: counts.Complete,
		Failed:   counts.Failed,
	})
}
