// Package memory provides an in-memory docstore.Store used in tests and
// single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/coragem/retrieval"
	"github.com/coragem/retrieval/docstore"
)

type head struct {
	documentID string
	version    int
}

// Store implements docstore.Store using in-memory maps.
type Store struct {
	mu        sync.RWMutex
	documents map[string]retrieval.Document
	chunks    map[string][]retrieval.DocumentChunk
	heads     map[string]head
	queryLogs []retrieval.QueryLog
}

// New creates an empty in-memory document store.
func New() *Store {
	return &Store{
		documents: make(map[string]retrieval.Document),
		chunks:    make(map[string][]retrieval.DocumentChunk),
		heads:     make(map[string]head),
	}
}

func headKey(title, department string) string {
	return title + "\x00" + department
}

// CreateDocument implements docstore.Store.
func (s *Store) CreateDocument(ctx context.Context, doc *retrieval.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents[doc.ID] = *doc
	return nil
}

// CreateChunks implements docstore.Store.
func (s *Store) CreateChunks(ctx context.Context, chunks []retrieval.DocumentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		s.chunks[chunk.DocumentID] = append(s.chunks[chunk.DocumentID], chunk)
	}
	return nil
}

// GetDocument implements docstore.Store.
// Returns nil if the document is not found (not an error).
func (s *Store) GetDocument(ctx context.Context, id string) (*retrieval.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.documents[id]
	if !exists {
		return nil, nil
	}
	return &doc, nil
}

// ActiveVersion implements docstore.Store.
func (s *Store) ActiveVersion(ctx context.Context, title, department string) (*retrieval.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, exists := s.heads[headKey(title, department)]
	if !exists {
		return nil, nil
	}
	doc, exists := s.documents[h.documentID]
	if !exists {
		return nil, nil
	}
	return &doc, nil
}

// LatestVersion implements docstore.Store.
func (s *Store) LatestVersion(ctx context.Context, title, department string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := 0
	for _, doc := range s.documents {
		if doc.Title == title && doc.Department == department && doc.Version > latest {
			latest = doc.Version
		}
	}
	return latest, nil
}

// PromoteHead implements docstore.Store.
func (s *Store) PromoteHead(ctx context.Context, title, department, documentID string, version int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := headKey(title, department)
	previousID := ""
	if h, exists := s.heads[key]; exists {
		previousID = h.documentID
	}
	s.heads[key] = head{documentID: documentID, version: version}
	return previousID, nil
}

// SetDocumentActive implements docstore.Store.
func (s *Store) SetDocumentActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, exists := s.documents[id]
	if !exists {
		return retrieval.ErrNotFound
	}
	doc.IsActive = active
	s.documents[id] = doc
	return nil
}

// ListDocuments implements docstore.Store.
func (s *Store) ListDocuments(ctx context.Context, department string, limit int) ([]retrieval.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []retrieval.Document
	for _, doc := range s.documents {
		if doc.Department == department {
			docs = append(docs, doc)
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})

	limit = docstore.ClampLimit(limit)
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// ChunksByDocument implements docstore.Store.
func (s *Store) ChunksByDocument(ctx context.Context, documentID string) ([]retrieval.DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := make([]retrieval.DocumentChunk, len(s.chunks[documentID]))
	copy(chunks, s.chunks[documentID])
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Index < chunks[j].Index
	})
	return chunks, nil
}

// DeleteDocument implements docstore.Store.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}

// InsertQueryLog implements docstore.Store.
func (s *Store) InsertQueryLog(ctx context.Context, log *retrieval.QueryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queryLogs = append(s.queryLogs, *log)
	return nil
}

// QueryLogs returns a copy of the recorded query logs. Test helper.
func (s *Store) QueryLogs() []retrieval.QueryLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]retrieval.QueryLog, len(s.queryLogs))
	copy(logs, s.queryLogs)
	return logs
}

// Close implements docstore.Store.
func (s *Store) Close() error {
	return nil
}

// Compile-time check that Store implements docstore.Store.
var _ docstore.Store = (*Store)(nil)
