package registry

import (
	"encoding/json"
	"sync"
	"time"
)

// ModelCache holds one upstream model listing with its fetch time.
// It replaces a global mutable cache with an explicit object that is
// injected where needed; freshness is a pure function of now minus the
// fetch timestamp.
type ModelCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	data      json.RawMessage
	fetchedAt time.Time
}

// NewModelCache creates a cache whose entries stay fresh for ttl.
func NewModelCache(ttl time.Duration) *ModelCache {
	return &ModelCache{ttl: ttl}
}

// Get returns the cached listing if it is still fresh at the given time.
func (c *ModelCache) Get(now time.Time) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.data == nil || now.Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.data, true
}

// Set stores a freshly fetched listing.
func (c *ModelCache) Set(data json.RawMessage, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = data
	c.fetchedAt = now
}
