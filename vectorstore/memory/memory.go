// Package memory provides an in-memory vectorstore.Index used in tests and
// single-process deployments.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/coragem/retrieval/vectorstore"
)

// Index implements vectorstore.Index using an in-memory map with cosine
// similarity. The filter is applied before ranking, mirroring how a real
// vector database evaluates payload filters inside the query.
type Index struct {
	mu      sync.RWMutex
	entries map[string]vectorstore.Entry
}

// New creates an empty in-memory index.
func New() *Index {
	return &Index{
		entries: make(map[string]vectorstore.Entry),
	}
}

// Upsert implements vectorstore.Index.
func (i *Index) Upsert(ctx context.Context, entries []vectorstore.Entry) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, e := range entries {
		i.entries[e.ChunkID] = e
	}
	return len(entries), nil
}

// Search implements vectorstore.Index.
func (i *Index) Search(ctx context.Context, vector []float32, filter vectorstore.SearchFilter, limit int) ([]vectorstore.SearchResult, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	results := make([]vectorstore.SearchResult, 0, limit)
	for _, e := range i.entries {
		// Filter first, rank second. Entries outside the department are
		// never candidates.
		if e.Payload.Department != filter.Department {
			continue
		}
		if filter.ActiveOnly && !e.Payload.Active {
			continue
		}
		results = append(results, vectorstore.SearchResult{
			ChunkID: e.ChunkID,
			Score:   cosineSimilarity(vector, e.Vector),
			Content: e.Payload.Content,
			Payload: e.Payload,
		})
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SetActive implements vectorstore.Index. The flip happens under the write
// lock, so concurrent searches observe either the full old state or the
// full new state, never a mix.
func (i *Index) SetActive(ctx context.Context, documentID string, active bool) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	updated := 0
	for id, e := range i.entries {
		if e.Payload.DocumentID != documentID {
			continue
		}
		e.Payload.Active = active
		i.entries[id] = e
		updated++
	}
	return updated, nil
}

// Delete implements vectorstore.Index.
func (i *Index) Delete(ctx context.Context, chunkIDs []string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, id := range chunkIDs {
		delete(i.entries, id)
	}
	return nil
}

// Close implements vectorstore.Index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries = nil
	return nil
}

// Len returns the number of stored entries.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return len(i.entries)
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for idx := range a {
		dot += float64(a[idx]) * float64(b[idx])
		normA += float64(a[idx]) * float64(a[idx])
		normB += float64(b[idx]) * float64(b[idx])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Compile-time check that Index implements vectorstore.Index.
var _ vectorstore.Index = (*Index)(nil)
