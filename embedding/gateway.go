package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/coragem/retrieval"
)

// Default gateway tuning.
const (
	DefaultBatchSize       = 100
	DefaultMaxConcurrency  = 4
	DefaultMaxCacheEntries = 10000
	DefaultMaxRetries      = 3
	DefaultInitialBackoff  = 500 * time.Millisecond
	DefaultMaxBackoff      = 10 * time.Second
)

// Config holds gateway configuration.
type Config struct {
	Provider Provider

	// BatchSize is the maximum number of texts per provider call.
	BatchSize int

	// MaxConcurrency bounds in-flight provider calls per EmbedBatch.
	MaxConcurrency int

	// MaxCacheEntries bounds the vector cache. When full, an arbitrary
	// entry is evicted per insert.
	MaxCacheEntries int

	// MaxRetries is the number of retry attempts after a failed provider
	// call before the batch is failed.
	MaxRetries int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Gateway implements Embedder on top of a Provider, adding a
// content-addressed cache, batch splitting with bounded concurrency, and
// bounded retry with exponential backoff.
type Gateway struct {
	provider       Provider
	batchSize      int
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	sem            *semaphore.Weighted

	mu         sync.RWMutex
	cache      map[string][]float32
	maxEntries int
}

// NewGateway creates a gateway over the given provider.
func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("%w: embedding provider is required", retrieval.ErrInvalidConfig)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.MaxCacheEntries <= 0 {
		cfg.MaxCacheEntries = DefaultMaxCacheEntries
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("%w: max retries must not be negative", retrieval.ErrInvalidConfig)
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}

	return &Gateway{
		provider:       cfg.Provider,
		batchSize:      cfg.BatchSize,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		sem:            semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		cache:          make(map[string][]float32),
		maxEntries:     cfg.MaxCacheEntries,
	}, nil
}

// hashText is the cache key: the digest of the trimmed text, so keys are
// content-addressed and insensitive to surrounding whitespace.
func hashText(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// Embed implements Embedder.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch implements Embedder. Cached texts are served without a
// provider call; the remainder is deduplicated, split into sub-batches, and
// embedded concurrently. Any sub-batch failure fails the whole batch: a
// partially embedded document must never reach the index.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	hashes := make([]string, len(texts))
	for i, text := range texts {
		hashes[i] = hashText(text)
	}

	// Partition into cache hits and deduplicated misses. Hit vectors are
	// snapshotted here: the cache may evict entries at any time, so the
	// result is never assembled by re-reading it.
	g.mu.RLock()
	hits := make(map[string][]float32)
	var missHashes []string
	missText := make(map[string]string)
	for i, h := range hashes {
		if vector, hit := g.cache[h]; hit {
			hits[h] = vector
			continue
		}
		if _, queued := missText[h]; queued {
			continue
		}
		missText[h] = texts[i]
		missHashes = append(missHashes, h)
	}
	g.mu.RUnlock()

	computed, err := g.embedMisses(ctx, missHashes, missText)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, h := range hashes {
		if vector, ok := hits[h]; ok {
			vectors[i] = vector
			continue
		}
		vectors[i] = computed[h]
	}
	return vectors, nil
}

// embedMisses embeds the deduplicated miss set and returns the vectors
// keyed by content hash. Results also populate the cache, but callers
// assemble from the returned map so eviction cannot drop a vector between
// computation and return.
func (g *Gateway) embedMisses(ctx context.Context, missHashes []string, missText map[string]string) (map[string][]float32, error) {
	if len(missHashes) == 0 {
		return nil, nil
	}

	computed := make(map[string][]float32, len(missHashes))
	var computedMu sync.Mutex

	group, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(missHashes); start += g.batchSize {
		end := min(start+g.batchSize, len(missHashes))
		batch := missHashes[start:end]

		group.Go(func() error {
			if err := g.sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer g.sem.Release(1)

			batchTexts := make([]string, len(batch))
			for i, h := range batch {
				batchTexts[i] = missText[h]
			}

			vectors, err := g.embedWithRetry(ctx, batchTexts)
			if err != nil {
				return err
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("%w: provider returned %d vectors for %d texts",
					retrieval.ErrProviderUnavailable, len(vectors), len(batch))
			}

			computedMu.Lock()
			for i, h := range batch {
				computed[h] = vectors[i]
			}
			computedMu.Unlock()

			g.mu.Lock()
			for i, h := range batch {
				g.store(h, vectors[i])
			}
			g.mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return computed, nil
}

// embedWithRetry calls the provider with exponential backoff. The final
// failure is reported as a provider outage.
func (g *Gateway) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	backoff := g.initialBackoff

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, g.maxBackoff)
		}

		vectors, err := g.provider.EmbedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: embedding failed after %d attempts: %v",
		retrieval.ErrProviderUnavailable, g.maxRetries+1, lastErr)
}

// store inserts under g.mu. When the cache is full an arbitrary entry is
// evicted; content-addressed entries are all equally re-derivable.
func (g *Gateway) store(hash string, vector []float32) {
	if len(g.cache) >= g.maxEntries {
		for k := range g.cache {
			delete(g.cache, k)
			break
		}
	}
	g.cache[hash] = vector
}

// Dimension implements Embedder.
func (g *Gateway) Dimension() int {
	return g.provider.Dimension()
}

// CacheLen returns the number of cached vectors. Test helper.
func (g *Gateway) CacheLen() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cache)
}

// Compile-time check that Gateway implements Embedder.
var _ Embedder = (*Gateway)(nil)
