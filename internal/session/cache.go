package session

import (
	"fmt"
	"sync"
)

// Cache is the read-only session lookup consumed once per command execution.
// It memoizes by session id with an explicit invalidation hook; the loader's
// hot reload invalidates everything, so lifecycle and test isolation stay
// controllable (no module-level state).
type Cache struct {
	loader *Loader
	mu     sync.RWMutex
	byID   map[string]*Session
}

// NewCache builds a cache over the loader and wires reload invalidation.
func NewCache(loader *Loader) *Cache {
	c := &Cache{loader: loader, byID: make(map[string]*Session)}
	loader.OnChange(func(*File) { c.InvalidateAll() })
	return c
}

// Get returns the configuration for a session id.
func (c *Cache) Get(sessionID string) (*Session, error) {
	c.mu.RLock()
	s, ok := c.byID[sessionID]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	cfg := c.loader.File()
	for i := range cfg.Sessions {
		if cfg.Sessions[i].ID == sessionID {
			s = &cfg.Sessions[i]
			c.mu.Lock()
			c.byID[sessionID] = s
			c.mu.Unlock()
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown session %q", sessionID)
}

// Invalidate drops one session from the cache.
func (c *Cache) Invalidate(sessionID string) {
	c.mu.Lock()
	delete(c.byID, sessionID)
	c.mu.Unlock()
}

// InvalidateAll drops every cached session.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.byID = make(map[string]*Session)
	c.mu.Unlock()
}
