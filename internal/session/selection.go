package session

import (
	"sync"
	"time"

	"github.com/dropshare/dropget/internal/events"
)

// Selection is the set of units the user picked for bundling. It is safe
// for concurrent use and publishes a selection event on every change.
type Selection struct {
	mu       sync.RWMutex
	selected map[string]bool
	eventBus *events.EventBus
	order    func() []string
}

func newSelection(eventBus *events.EventBus, order func() []string) *Selection {
	return &Selection{
		selected: make(map[string]bool),
		eventBus: eventBus,
		order:    order,
	}
}

// Select adds ids to the selection.
func (s *Selection) Select(ids ...string) {
	s.change(func() {
		for _, id := range ids {
			s.selected[id] = true
		}
	})
}

// Deselect removes ids from the selection.
func (s *Selection) Deselect(ids ...string) {
	s.change(func() {
		for _, id := range ids {
			delete(s.selected, id)
		}
	})
}

// Toggle flips one id.
func (s *Selection) Toggle(id string) {
	s.change(func() {
		if s.selected[id] {
			delete(s.selected, id)
		} else {
			s.selected[id] = true
		}
	})
}

// Set replaces the selection.
func (s *Selection) Set(ids []string) {
	s.change(func() {
		s.selected = make(map[string]bool, len(ids))
		for _, id := range ids {
			s.selected[id] = true
		}
	})
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.change(func() {
		s.selected = make(map[string]bool)
	})
}

// IsSelected reports whether id is selected.
func (s *Selection) IsSelected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected[id]
}

// Len returns the number of selected ids.
func (s *Selection) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.selected)
}

// IDs returns the selected ids in display order. Ids that no longer name a
// unit are left out.
func (s *Selection) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idsLocked()
}

func (s *Selection) idsLocked() []string {
	var ids []string
	for _, id := range s.order() {
		if s.selected[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Selection) change(fn func()) {
	s.mu.Lock()
	fn()
	ids := s.idsLocked()
	s.mu.Unlock()

	s.eventBus.Publish(&events.SelectionEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventSelectionChanged, Time: time.Now()},
		UnitIDs:   ids,
	})
}
