package resolver

import (
	"sync"

	"github.com/varoOP/tankodb/internal/domain"
)

// sessionCache is the cheapest tier: a process-lifetime map of normalized
// title to resolved counts, trusted without staleness checks until restart.
type sessionCache struct {
	mtx     sync.RWMutex
	entries map[string]domain.ResolvedCount
}

func newSessionCache() *sessionCache {
	return &sessionCache{entries: make(map[string]domain.ResolvedCount)}
}

func (c *sessionCache) get(key string) (domain.ResolvedCount, bool) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	rc, ok := c.entries[key]
	return rc, ok
}

func (c *sessionCache) set(key string, rc domain.ResolvedCount) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.entries[key] = rc
}

func (c *sessionCache) delete(key string) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	delete(c.entries, key)
}

func (c *sessionCache) clear() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.entries = make(map[string]domain.ResolvedCount)
}
