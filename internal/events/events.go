package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dropshare/dropget/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventLog EventType = "log"

	// Transfer unit lifecycle
	EventUnitQueued    EventType = "unit_queued"    // Unit created or reset to pending
	EventUnitStarted   EventType = "unit_started"   // Admitted, fetch running
	EventUnitProgress  EventType = "unit_progress"  // Throttled progress update
	EventUnitCompleted EventType = "unit_completed" // Bytes assembled
	EventUnitFailed    EventType = "unit_failed"    // Fetch failed
	EventUnitRetried   EventType = "unit_retried"   // error -> pending by user request
	EventUnitRemoved   EventType = "unit_removed"   // Dropped from the session
	EventUnitPreview   EventType = "unit_preview"   // Preview attached after completion

	// Scheduler
	EventSchedulerIdle EventType = "scheduler_idle" // No pending and nothing in flight

	// Bundles and sharing
	EventBundleSaved EventType = "bundle_saved"
	EventShared      EventType = "shared"

	EventSelectionChanged EventType = "selection_changed"
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// LogEvent represents log messages
type LogEvent struct {
	BaseEvent
	Level   LogLevel
	Message string
	UnitID  string
	Error   error
}

// UnitEvent describes a change to one transfer unit.
type UnitEvent struct {
	BaseEvent
	UnitID   string
	Name     string
	Status   string
	Size     int64 // Declared size, 0 if unknown
	Received int64 // Bytes received in the current attempt
	Progress int   // 0 to 100
	Attempt  int
	Error    error
}

// SchedulerEvent reports scheduler lifecycle changes.
type SchedulerEvent struct {
	BaseEvent
	Complete int
	Failed   int
}

// BundleEvent reports a saved single file or archive.
type BundleEvent struct {
	BaseEvent
	Name    string // File name the blob was saved under
	Path    string // Where the download trigger put it
	Entries int    // Files inside, 1 for a direct download
	Bytes   int64
}

// ShareEvent reports the outcome of a share action.
type ShareEvent struct {
	BaseEvent
	Files    int
	Links    []string
	Fallback bool // True when the share fell back to a bundle download
}

// SelectionEvent carries the selected unit ids in display order.
type SelectionEvent struct {
	BaseEvent
	UnitIDs []string
}

// subscription is one listener. A zero kind receives every event.
type subscription struct {
	kind EventType
	ch   chan Event
}

// EventBus fans events out to buffered subscriber channels. Publishing
// never blocks; a subscriber that falls behind loses events and the loss
// is counted.
type EventBus struct {
	mu      sync.RWMutex
	subs    []subscription
	size    int
	closed  bool
	dropped atomic.Int64
}

// NewEventBus returns a bus whose subscriber channels hold size events.
func NewEventBus(size int) *EventBus {
	switch {
	case size <= 0:
		size = constants.EventBusDefaultBuffer
	case size > constants.EventBusMaxBuffer:
		size = constants.EventBusMaxBuffer
	}
	return &EventBus{size: size}
}

func (eb *EventBus) subscribe(kind EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}
	ch := make(chan Event, eb.size)
	eb.subs = append(eb.subs, subscription{kind: kind, ch: ch})
	return ch
}

// Subscribe returns a channel receiving events of one type.
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	return eb.subscribe(eventType)
}

// SubscribeAll returns a channel receiving every event.
func (eb *EventBus) SubscribeAll() <-chan Event {
	return eb.subscribe("")
}

// Publish delivers event to each matching subscriber with room in its buffer.
// Safe on a nil bus.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		return
	}

	kind := event.Type()
	for _, s := range eb.subs {
		if s.kind != "" && s.kind != kind {
			continue
		}
		select {
		case s.ch <- event:
		default:
			eb.dropped.Add(1)
		}
	}
}

// PublishLog publishes a LogEvent stamped with the current time.
func (eb *EventBus) PublishLog(level LogLevel, message, unitID string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: BaseEvent{EventType: EventLog, Time: time.Now()},
		Level:     level,
		Message:   message,
		UnitID:    unitID,
		Error:     err,
	})
}

func (eb *EventBus) remove(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		return
	}
	for i, s := range eb.subs {
		if s.ch == ch {
			eb.subs = append(eb.subs[:i], eb.subs[i+1:]...)
			close(s.ch)
			return
		}
	}
}

// Unsubscribe closes and forgets a channel returned by Subscribe.
func (eb *EventBus) Unsubscribe(_ EventType, ch <-chan Event) { eb.remove(ch) }

// UnsubscribeAll closes and forgets a channel returned by SubscribeAll.
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) { eb.remove(ch) }

// Close closes every subscriber channel. Later publishes are ignored and
// later subscriptions get an already closed channel.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		return
	}
	eb.closed = true
	for _, s := range eb.subs {
		close(s.ch)
	}
	eb.subs = nil
}

// GetDroppedEventCount reports how many deliveries were skipped.
func (eb *EventBus) GetDroppedEventCount() int64 { return eb.dropped.Load() }

// ResetDroppedEventCount zeroes the counter and returns its old value.
func (eb *EventBus) ResetDroppedEventCount() int64 { return eb.dropped.Swap(0) }
