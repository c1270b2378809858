// Package redis provides the Redis-backed result cache driver.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coragem/retrieval"
	"github.com/coragem/retrieval/resultcache"
	"github.com/redis/go-redis/v9"
)

// Cache implements resultcache.Cache using Redis with TTL expiry.
type Cache struct {
	client *redis.Client
}

// New creates a new Redis-backed result cache.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get implements resultcache.Cache.
// Returns nil if the key is not present (not an error).
func (c *Cache) Get(ctx context.Context, key resultcache.Key) (*retrieval.QueryResult, error) {
	val, err := c.client.Get(ctx, key.String()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var result retrieval.QueryResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, fmt.Errorf("cache entry malformed: %w", err)
	}
	return &result, nil
}

// Set implements resultcache.Cache.
func (c *Cache) Set(ctx context.Context, key resultcache.Key, result *retrieval.QueryResult, ttl time.Duration) error {
	val, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("cache entry marshal failed: %w", err)
	}
	if err := c.client.Set(ctx, key.String(), val, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Invalidate implements resultcache.Cache.
func (c *Cache) Invalidate(ctx context.Context, key resultcache.Key) error {
	if err := c.client.Del(ctx, key.String()).Err(); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// InvalidateDepartment implements resultcache.Cache.
// Scans the department's key space in batches and deletes every match.
func (c *Cache) InvalidateDepartment(ctx context.Context, department string) (int, error) {
	pattern := resultcache.DepartmentPattern(department)

	var cursor uint64
	deleted := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("cache scan failed: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return deleted, fmt.Errorf("cache delete failed: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return deleted, nil
}

// Close implements resultcache.Cache.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Compile-time check that Cache implements resultcache.Cache.
var _ resultcache.Cache = (*Cache)(nil)
