// Package tokens keeps the API tokens in memory and reloads them from the
// token repository.
package tokens

import "sync"

// Scope lists the operations a token may call. An empty scope allows all.
type Scope map[string]bool

// Allows reports whether the scope grants op.
func (s Scope) Allows(op string) bool {
	return len(s) == 0 || s[op]
}

// Entry is one API token.
type Entry struct {
	RateLimit int
	Scope     Scope
}

// Cache is the in-memory token set. The zero value is not ready; use NewCache.
type Cache struct {
	mu    sync.RWMutex
	items map[string]Entry
}

func NewCache() *Cache {
	return &Cache{}
}

// Replace swaps in a new token set and marks the cache ready.
func (c *Cache) Replace(m map[string]Entry) {
	items := make(map[string]Entry, len(m))
	for k, v := range m {
		items[k] = v
	}
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
}

// Ready reports whether the cache has been loaded at least once.
func (c *Cache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items != nil
}

// Validate reports whether token is known.
func (c *Cache) Validate(token string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[token]
	return ok
}

// RateLimit returns the per-interval limit of token, 0 for unknown tokens
// (no token limit).
func (c *Cache) RateLimit(token string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items[token].RateLimit
}

// Allows reports whether token is known and its scope grants op.
func (c *Cache) Allows(token, op string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[token]
	return ok && e.Scope.Allows(op)
}

// Len returns the number of cached tokens.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
