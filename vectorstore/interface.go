// Package vectorstore defines the technology-agnostic contract for the
// vector index that backs retrieval. Department isolation is enforced here:
// every search carries a closed, typed filter that the index applies before
// similarity ranking, never by post-filtering in the caller.
package vectorstore

import (
	"context"

	"github.com/coragem/retrieval"
)

// Index is a technology-agnostic interface for vector storage and
// similarity search. Implementations can use Qdrant, Pinecone, pgvector, etc.
type Index interface {
	// Upsert writes entries keyed by chunk ID and returns the number
	// written. Idempotent on entry key.
	Upsert(ctx context.Context, entries []Entry) (int, error)

	// Search performs vector similarity search with mandatory filtering.
	// Results are ordered by descending score. A filter without a
	// department is rejected with retrieval.ErrFilterRequired; the filter
	// is applied by the index itself before ranking.
	Search(ctx context.Context, vector []float32, filter SearchFilter, limit int) ([]SearchResult, error)

	// SetActive flips the active flag on every entry belonging to the
	// given document version and returns the number updated. The flip is
	// atomic with respect to concurrent searches: a search started after
	// the flip commits never sees the old state, and no search observes a
	// mix across chunks of the same document version.
	SetActive(ctx context.Context, documentID string, active bool) (int, error)

	// Delete removes entries by chunk ID.
	Delete(ctx context.Context, chunkIDs []string) error

	// Close releases any resources held by the index.
	Close() error
}

// SearchFilter is the closed filter structure applied to every search.
// Department is mandatory; there is deliberately no way to express an
// unfiltered search through this type.
type SearchFilter struct {
	// Department scopes the search to entries tagged with this department.
	Department string

	// ActiveOnly restricts results to entries of active document versions.
	ActiveOnly bool
}

// Validate rejects a filter that would widen the security boundary.
func (f SearchFilter) Validate() error {
	if f.Department == "" {
		return retrieval.ErrFilterRequired
	}
	return nil
}

// Payload is the metadata stored alongside each vector. Department MUST
// equal the owning document's department at write time; only the ingestion
// coordinator sets it.
type Payload struct {
	Content    string
	DocumentID string
	Title      string
	Department string
	DocType    string
	ChunkIndex int
	Version    int
	Active     bool
}

// Entry is one (vector, payload) pair keyed by chunk ID.
type Entry struct {
	// ChunkID is the unique identifier of the entry (UUID).
	ChunkID string

	// Vector is the embedding for the chunk content.
	Vector []float32

	// Payload carries the chunk metadata used for filtering and sourcing.
	Payload Payload
}

// SearchResult represents a single result from vector similarity search.
type SearchResult struct {
	// ChunkID is the unique identifier of the matched entry.
	ChunkID string

	// Score is the similarity score (0.0-1.0, higher is more similar).
	Score float32

	// Content is the text content associated with this vector.
	Content string

	// Payload carries the stored metadata of the matched entry.
	Payload Payload
}
