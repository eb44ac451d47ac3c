package transfer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dropshare/dropget/internal/events"
	"github.com/dropshare/dropget/internal/models"
)

// Counts holds the number of units in each state.
type Counts struct {
	Pending     int
	Downloading int
	Complete    int
	Failed      int
}

// Total returns the number of units counted.
func (c Counts) Total() int {
	return c.Pending + c.Downloading + c.Complete + c.Failed
}

// Collection is the ordered set of units of one session.
//
// Readers take lock-free snapshots. Writers serialize on mu and replace the
// whole slice, so a snapshot never changes after it is returned and every
// transition is checked against the latest state. Events are published while
// mu is held, which keeps them in transition order.
type Collection struct {
	units    atomic.Pointer[[]Unit]
	mu       sync.Mutex
	eventBus *events.EventBus
}

// NewCollection creates a collection with one pending unit per descriptor.
func NewCollection(descs []models.FileDescriptor, eventBus *events.EventBus) *Collection {
	c := &Collection{eventBus: eventBus}
	units := NewUnits(descs)
	c.units.Store(&units)

	c.mu.Lock()
	for _, u := range units {
		c.publish(events.EventUnitQueued, u)
	}
	c.mu.Unlock()
	return c
}

// Snapshot returns the current units in order. Callers must not modify
// the returned slice.
func (c *Collection) Snapshot() []Unit {
	return *c.units.Load()
}

// Get returns a copy of the unit with the given id.
func (c *Collection) Get(id string) (Unit, bool) {
	for _, u := range c.Snapshot() {
		if u.ID == id {
			return u, true
		}
	}
	return Unit{}, false
}

// Len returns the number of units.
func (c *Collection) Len() int {
	return len(c.Snapshot())
}

// Counts tallies units by state.
func (c *Collection) Counts() Counts {
	var counts Counts
	for _, u := range c.Snapshot() {
		switch u.Status {
		case StatusPending:
			counts.Pending++
		case StatusDownloading:
			counts.Downloading++
		case StatusComplete:
			counts.Complete++
		case StatusError:
			counts.Failed++
		}
	}
	return counts
}

// HasPending reports whether any unit waits for admission.
func (c *Collection) HasPending() bool {
	for _, u := range c.Snapshot() {
		if u.Status == StatusPending {
			return true
		}
	}
	return false
}

// Completed returns the complete units in collection order.
func (c *Collection) Completed() []Unit {
	var out []Unit
	for _, u := range c.Snapshot() {
		if u.HasData() {
			out = append(out, u)
		}
	}
	return out
}

// update applies fn to the unit with the given id under the writer lock.
// fn returns false to leave the collection untouched. On success the event
// returned by fn (if any) is published before the lock is released.
func (c *Collection) update(id string, fn func(u *Unit) (events.EventType, bool)) (Unit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := *c.units.Load()
	idx := -1
	for i := range cur {
		if cur[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Unit{}, false
	}

	u := cur[idx]
	eventType, ok := fn(&u)
	if !ok {
		return cur[idx], false
	}

	next := make([]Unit, len(cur))
	copy(next, cur)
	next[idx] = u
	c.units.Store(&next)

	if eventType != "" {
		c.publish(eventType, u)
	}
	return u, true
}

// Admit moves a pending unit to downloading. It fails when the unit is in
// any other state, so a unit can never be admitted twice.
func (c *Collection) Admit(id string) (Unit, bool) {
	return c.update(id, func(u *Unit) (events.EventType, bool) {
		if u.Status != StatusPending {
			return "", false
		}
		u.Status = StatusDownloading
		u.Progress = 0
		u.Received = 0
		u.Total = u.Descriptor.Size
		u.Err = nil
		u.Attempts++
		u.StartedAt = time.Now()
		u.CompletedAt = time.Time{}
		return events.EventUnitStarted, true
	})
}

// SetProgress records progress for a downloading unit. Values that would
// move progress backwards are ignored.
func (c *Collection) SetProgress(id string, progress int, received, total int64) bool {
	_, ok := c.update(id, func(u *Unit) (events.EventType, bool) {
		if u.Status != StatusDownloading || progress < u.Progress {
			return "", false
		}
		if progress > 100 {
			progress = 100
		}
		u.Progress = progress
		u.Received = received
		if total > 0 {
			u.Total = total
		}
		return events.EventUnitProgress, true
	})
	return ok
}

// Complete attaches the assembled bytes to a downloading unit.
func (c *Collection) Complete(id string, data []byte, mimeType, handle string) bool {
	_, ok := c.update(id, func(u *Unit) (events.EventType, bool) {
		if u.Status != StatusDownloading {
			return "", false
		}
		u.Status = StatusComplete
		u.Progress = 100
		u.Received = int64(len(data))
		u.Data = data
		u.MimeType = mimeType
		u.Handle = handle
		u.CompletedAt = time.Now()
		return events.EventUnitCompleted, true
	})
	return ok
}

// Fail records err on a downloading unit.
func (c *Collection) Fail(id string, err error) bool {
	_, ok := c.update(id, func(u *Unit) (events.EventType, bool) {
		if u.Status != StatusDownloading {
			return "", false
		}
		u.Status = StatusError
		u.Err = err
		u.CompletedAt = time.Now()
		return events.EventUnitFailed, true
	})
	return ok
}

// Retry resets a failed unit to pending with zero progress. Units in any
// other state are left alone and false is returned, so repeated calls are
// harmless.
func (c *Collection) Retry(id string) bool {
	_, ok := c.update(id, func(u *Unit) (events.EventType, bool) {
		if u.Status != StatusError {
			return "", false
		}
		u.Status = StatusPending
		u.Progress = 0
		u.Received = 0
		u.Err = nil
		u.StartedAt = time.Time{}
		u.CompletedAt = time.Time{}
		return events.EventUnitRetried, true
	})
	return ok
}

// SetPreview attaches a preview to a complete unit.
func (c *Collection) SetPreview(id string, p Preview) bool {
	_, ok := c.update(id, func(u *Unit) (events.EventType, bool) {
		if u.Status != StatusComplete {
			return "", false
		}
		u.Preview = &p
		return events.EventUnitPreview, true
	})
	return ok
}

// Remove drops a unit from the collection and returns it. A downloading
// unit may be removed; its fetch result is discarded when it arrives.
func (c *Collection) Remove(id string) (Unit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := *c.units.Load()
	for i := range cur {
		if cur[i].ID != id {
			continue
		}
		removed := cur[i]
		next := make([]Unit, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		next = append(next, cur[i+1:]...)
		c.units.Store(&next)
		c.publish(events.EventUnitRemoved, removed)
		return removed, true
	}
	return Unit{}, false
}

func (c *Collection) publish(eventType events.EventType, u Unit) {
	if c.eventBus == nil {
		return
	}
	c.eventBus.Publish(&events.UnitEvent{
		BaseEvent: events.BaseEvent{
			EventType: eventType,
			Time:      time.Now(),
		},
		UnitID:   u.ID,
		Name:     u.Name(),
		Status:   string(u.Status),
		Size:     u.Descriptor.Size,
		Received: u.Received,
		Progress: u.Progress,
		Attempt:  u.Attempts,
		Error:    u.Err,
	})
}
