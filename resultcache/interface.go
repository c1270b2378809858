// Package resultcache defines the query-result cache. Keys always combine
// the normalized query text with the caller's department, so a cached
// answer can never cross a department boundary: the department is part of
// the key by construction, and callers cannot build a key from query text
// alone.
package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/coragem/retrieval"
)

// keyPrefix namespaces cache keys so department-wide invalidation can scan
// "rag:{department}:*" without touching unrelated keys.
const keyPrefix = "rag"

// Key is an opaque cache key. The only way to obtain one is NewKey.
type Key struct {
	department string
	digest     string
}

// NewKey derives the cache key for a (query, department) pair. The query is
// normalized (trimmed, lowercased) so trivially different spellings of the
// same question share an entry within a department.
func NewKey(query, department string) Key {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized + "\x00" + department))
	return Key{
		department: department,
		digest:     hex.EncodeToString(sum[:]),
	}
}

// String renders the key as "rag:{department}:{digest}".
func (k Key) String() string {
	return keyPrefix + ":" + k.department + ":" + k.digest
}

// Department returns the department the key is scoped to.
func (k Key) Department() string {
	return k.department
}

// DepartmentPattern returns the match pattern covering every key of a
// department.
func DepartmentPattern(department string) string {
	return keyPrefix + ":" + department + ":*"
}

// Cache stores computed query results with expiry.
type Cache interface {
	// Get retrieves a cached result.
	// Returns nil if the key is not present (not an error).
	Get(ctx context.Context, key Key) (*retrieval.QueryResult, error)

	// Set stores a result under the key for the given TTL.
	Set(ctx context.Context, key Key, result *retrieval.QueryResult, ttl time.Duration) error

	// Invalidate removes a single entry.
	Invalidate(ctx context.Context, key Key) error

	// InvalidateDepartment removes every entry cached for the department
	// and returns the number removed. Used after any ingestion into that
	// department so stale answers (including cached "low confidence"
	// fallbacks) are not served.
	InvalidateDepartment(ctx context.Context, department string) (int, error)

	// Close releases any resources held by the cache.
	Close() error
}
