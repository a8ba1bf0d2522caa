package store

import (
	"context"
	"sync"
)

// GeneralCache is a read-through cache serving actor lookups on the HTTP
// inspection path. Entries are advisory only: the executor always writes
// through to the store of record and invalidates the touched ids, so the
// single-writer discipline keeps the cache coherent.
type GeneralCache struct {
	store *Store
	mu    sync.RWMutex
	byID  map[int64]*General
}

// NewGeneralCache creates an empty cache over the store.
func NewGeneralCache(s *Store) *GeneralCache {
	return &GeneralCache{store: s, byID: make(map[int64]*General)}
}

// Get returns a cached general, loading on miss.
func (c *GeneralCache) Get(ctx context.Context, id int64) (*General, error) {
	c.mu.RLock()
	g, ok := c.byID[id]
	c.mu.RUnlock()
	if ok {
		return g, nil
	}
	g, err := c.store.GeneralByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.byID[id] = g
	c.mu.Unlock()
	return g, nil
}

// Invalidate drops an entry after a write.
func (c *GeneralCache) Invalidate(id int64) {
	c.mu.Lock()
	delete(c.byID, id)
	c.mu.Unlock()
}

// InvalidateAll drops everything.
func (c *GeneralCache) InvalidateAll() {
	c.mu.Lock()
	c.byID = make(map[int64]*General)
	c.mu.Unlock()
}
