// Package statuscache holds the last known settlement outcome per
// gateway session for a bounded retention window. It is process-local
// and non-durable; deployments with more than one instance back the
// Cache interface with a shared store instead.
package statuscache

import (
	"sync"
	"time"
)

// DefaultRetention is how long an entry stays retrievable.
const DefaultRetention = time.Hour

// Entry is the cached settlement outcome for one gateway session.
type Entry struct {
	SessionID     string    `json:"sessionId"`
	Succeeded     bool      `json:"succeeded"`
	TransactionID string    `json:"transactionId"`
	AmountMinor   int64     `json:"amountMinor"`
	Currency      string    `json:"currency"`
	FailureReason string    `json:"failureReason,omitempty"`
	ObservedAt    time.Time `json:"observedAt"`
}

// Cache is the settlement cache abstraction consumed by the gateway
// adapters (writes) and the reconciler (reads).
type Cache interface {
	Put(e Entry)
	Get(sessionID string) (Entry, bool)
}

// MemoryCache is a mutex-guarded in-memory Cache. Expired entries are
// swept opportunistically on writes; reads additionally check expiry so
// the retention window holds even when no write triggers a sweep.
type MemoryCache struct {
	mu        sync.RWMutex
	entries   map[string]Entry
	retention time.Duration
	now       func() time.Time
}

// NewMemoryCache creates a MemoryCache. A non-positive retention falls
// back to DefaultRetention.
func NewMemoryCache(retention time.Duration) *MemoryCache {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryCache{
		entries:   make(map[string]Entry),
		retention: retention,
		now:       time.Now,
	}
}

// Put stores e keyed by its session id, stamping ObservedAt when unset,
// and sweeps expired entries.
func (c *MemoryCache) Put(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if e.ObservedAt.IsZero() {
		e.ObservedAt = now
	}
	c.entries[e.SessionID] = e
	for id, old := range c.entries {
		if now.Sub(old.ObservedAt) > c.retention {
			delete(c.entries, id)
		}
	}
}

// Get returns the live entry for sessionID, if any.
func (c *MemoryCache) Get(sessionID string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[sessionID]
	if !ok || c.now().Sub(e.ObservedAt) > c.retention {
		return Entry{}, false
	}
	return e, true
}

// Len reports the number of stored entries, expired or not. Intended
// for tests and metrics.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
