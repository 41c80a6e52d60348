package stockroom

import (
	"context"
	"sync"
)

// MemorySessionCache keeps the identity handle for the lifetime of the process
type MemorySessionCache struct {
	mu      sync.RWMutex
	session *CachedSession
}

func NewMemorySessionCache() *MemorySessionCache {
	return &MemorySessionCache{}
}

func (c *MemorySessionCache) Load(_ context.Context) (*CachedSession, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil, ErrNoCachedSession
	}
	cp := *c.session
	return &cp, nil
}

func (c *MemorySessionCache) Save(_ context.Context, session *CachedSession) error {
	if session == nil {
		return nil
	}
	cp := *session
	c.mu.Lock()
	c.session = &cp
	c.mu.Unlock()
	return nil
}

func (c *MemorySessionCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	return nil
}
