package progress

import (
	"context"
	"sync"

	"github.com/dropshare/dropget/internal/events"
	"github.com/dropshare/dropget/internal/transfer"
)

// Tracker feeds unit events from the bus into a DownloadUI. It is the
// only writer to the bars, so they need no locking of their own.
type Tracker struct {
	ui     *DownloadUI
	bus    *events.EventBus
	ch     <-chan events.Event
	index  map[string]int
	sizes  map[string]int64
	names  map[string]string
	done   chan struct{}
	stopMu sync.Once
	wg     sync.WaitGroup
}

// NewTracker subscribes to bus and creates a bar for each of units.
func NewTracker(ui *DownloadUI, bus *events.EventBus, units []transfer.Unit) *Tracker {
	t := &Tracker{
		ui:    ui,
		bus:   bus,
		ch:    bus.SubscribeAll(),
		index: make(map[string]int, len(units)),
		sizes: make(map[string]int64, len(units)),
		names: make(map[string]string, len(units)),
		done:  make(chan struct{}),
	}
	for i, u := range units {
		t.index[u.ID] = i + 1
		t.sizes[u.ID] = u.Descriptor.Size
		t.names[u.ID] = u.Name()
		ui.AddUnit(i+1, u.ID, u.Name(), u.Descriptor.Size)
	}
	return t
}

// Start runs Run in a goroutine. Stop waits for it.
func (t *Tracker) Start(ctx context.Context) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.Run(ctx)
	}()
}

// Run consumes events until ctx is done or Stop is called.
func (t *Tracker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			t.drain()
			return
		case ev, ok := <-t.ch:
			if !ok {
				return
			}
			t.Handle(ev)
		}
	}
}

// drain handles events already buffered, so the last completions are
// shown before Stop returns.
func (t *Tracker) drain() {
	for {
		select {
		case ev, ok := <-t.ch:
			if !ok {
				return
			}
			t.Handle(ev)
		default:
			return
		}
	}
}

// Stop ends Run, unsubscribes and clears unfinished bars.
func (t *Tracker) Stop() {
	t.stopMu.Do(func() {
		close(t.done)
		t.wg.Wait()
		t.bus.UnsubscribeAll(t.ch)
		t.ui.Abandon()
	})
}

// Handle applies one event to the bars. Non-unit events are ignored.
func (t *Tracker) Handle(ev events.Event) {
	ue, ok := ev.(*events.UnitEvent)
	if !ok {
		return
	}
	bar, ok := t.ui.Bar(ue.UnitID)

	switch ue.Type() {
	case events.EventUnitStarted:
		if ok {
			bar.SetRetry(ue.Attempt)
			bar.Start()
		}
	case events.EventUnitProgress:
		if ok {
			bar.Update(ue.Received, ue.Progress)
		}
	case events.EventUnitCompleted:
		if ok {
			bar.Update(ue.Received, 100)
			bar.Complete(nil)
		}
	case events.EventUnitFailed:
		if ok {
			bar.Complete(ue.Error)
		}
	case events.EventUnitRetried:
		// The failed bar stays on screen; the new attempt gets a fresh one.
		t.ui.addBar(t.index[ue.UnitID], ue.UnitID, t.names[ue.UnitID], t.sizes[ue.UnitID], ue.Attempt+1)
	case events.EventUnitRemoved:
		if ok {
			bar.Remove()
		}
	}
}
