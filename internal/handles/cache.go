// Package handles keeps ephemeral references to in-memory file bodies.
//
// A handle is an opaque token standing in for a blob while it is rendered
// or saved. Every handle must be revoked; the session owning the cache
// evicts a unit's handles when the unit is removed and closes the cache on
// teardown.
package handles

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropshare/dropget/internal/logging"
)

// Entry is the blob behind a handle.
type Entry struct {
	Token     string
	UnitID    string // Empty for blobs not tied to a unit, such as archives
	Data      []byte
	MimeType  string
	CreatedAt time.Time
}

// Size returns the number of bytes held.
func (e Entry) Size() int64 {
	return int64(len(e.Data))
}

// Cache maps tokens to blobs.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	timers  map[string]*time.Timer
	closed  bool
	logger  *logging.Logger
}

// NewCache creates an empty cache.
func NewCache(logger *logging.Logger) *Cache {
	return &Cache{
		entries: make(map[string]Entry),
		timers:  make(map[string]*time.Timer),
		logger:  logging.OrNop(logger),
	}
}

// Create registers data and returns its token. After Close it returns "".
func (c *Cache) Create(unitID string, data []byte, mimeType string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ""
	}
	token := uuid.NewString()
	c.entries[token] = Entry{
		Token:     token,
		UnitID:    unitID,
		Data:      data,
		MimeType:  mimeType,
		CreatedAt: time.Now(),
	}
	return token
}

// Get returns the entry behind token.
func (c *Cache) Get(token string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[token]
	return e, ok
}

// Revoke releases token. Unknown tokens are ignored.
func (c *Cache) Revoke(token string) {
	if token == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revokeLocked(token)
}

func (c *Cache) revokeLocked(token string) {
	if t, ok := c.timers[token]; ok {
		t.Stop()
		delete(c.timers, token)
	}
	delete(c.entries, token)
}

// ReleaseAfter revokes token once d has elapsed. A pending release for the
// same token is replaced.
func (c *Cache) ReleaseAfter(token string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[token]; !ok {
		return
	}
	if t, ok := c.timers[token]; ok {
		t.Stop()
	}
	c.timers[token] = time.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.timers, token)
		delete(c.entries, token)
		c.logger.Debug().Str("handle", token).Msg("handle released")
	})
}

// EvictUnit revokes every handle created for unitID and returns how many
// were removed.
func (c *Cache) EvictUnit(unitID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for token, e := range c.entries {
		if e.UnitID == unitID {
			c.revokeLocked(token)
			n++
		}
	}
	return n
}

// Len returns the number of live handles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Bytes returns the total size of live blobs.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, e := range c.entries {
		total += e.Size()
	}
	return total
}

// Close revokes every handle. Later Create calls return "".
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for token := range c.entries {
		c.revokeLocked(token)
	}
	for token, t := range c.timers {
		t.Stop()
		delete(c.timers, token)
	}
	c.closed = true
}
