package schema

import (
	"context"
	"sync"
)

// Cache is a process-wide read-through cache in front of a Provider. The
// store schema is assumed static for a session; Invalidate is the explicit
// trigger for picking up an external schema change.
type Cache struct {
	provider Provider

	mu     sync.RWMutex
	loaded bool
	snap   Descriptor
}

func NewCache(provider Provider) *Cache {
	return &Cache{provider: provider}
}

func (c *Cache) Snapshot(ctx context.Context) (Descriptor, error) {
	c.mu.RLock()
	if c.loaded {
		snap := c.snap
		c.mu.RUnlock()
		return snap, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.snap, nil
	}
	snap, err := c.provider.Snapshot(ctx)
	if err != nil {
		return Descriptor{}, err
	}
	c.snap = snap
	c.loaded = true
	return snap, nil
}

func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.snap = Descriptor{}
	c.mu.Unlock()
}

var _ Provider = (*Cache)(nil)
