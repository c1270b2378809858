// Package memory provides an in-memory resultcache.Cache used in tests and
// single-process deployments.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/coragem/retrieval"
	"github.com/coragem/retrieval/resultcache"
)

type entry struct {
	result    retrieval.QueryResult
	expiresAt time.Time
}

// Cache implements resultcache.Cache using an in-memory map with lazy
// expiry.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty in-memory result cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
	}
}

// Get implements resultcache.Cache.
// Returns nil if the key is not present or expired (not an error).
func (c *Cache) Get(ctx context.Context, key resultcache.Key) (*retrieval.QueryResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[key.String()]
	if !exists || time.Now().After(e.expiresAt) {
		return nil, nil
	}
	result := e.result
	return &result, nil
}

// Set implements resultcache.Cache.
func (c *Cache) Set(ctx context.Context, key resultcache.Key, result *retrieval.QueryResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key.String()] = entry{
		result:    *result,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Invalidate implements resultcache.Cache.
func (c *Cache) Invalidate(ctx context.Context, key resultcache.Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key.String())
	return nil
}

// InvalidateDepartment implements resultcache.Cache.
func (c *Cache) InvalidateDepartment(ctx context.Context, department string) (int, error) {
	prefix := strings.TrimSuffix(resultcache.DepartmentPattern(department), "*")

	c.mu.Lock()
	defer c.mu.Unlock()

	deleted := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			deleted++
		}
	}
	return deleted, nil
}

// Close implements resultcache.Cache.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = nil
	return nil
}

// Compile-time check that Cache implements resultcache.Cache.
var _ resultcache.Cache = (*Cache)(nil)
