// Package docstore defines the relational store for the document version
// chain. Document rows are immutable versions; a head row per (title,
// department) points at the active version, which makes "exactly one active
// version" a structural property instead of a convention over scattered
// flag updates.
package docstore

import (
	"context"

	"github.com/coragem/retrieval"
)

// Listing limits for ListDocuments (applied by every driver).
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// ClampLimit normalizes a caller-supplied listing limit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// Store provides access to documents, chunks, version heads, and query
// logs. Only the ingestion coordinator writes documents and chunks; only
// the retrieval coordinator writes query logs.
type Store interface {
	// CreateDocument inserts a new document version row.
	CreateDocument(ctx context.Context, doc *retrieval.Document) error

	// CreateChunks inserts the chunk rows of one document version.
	CreateChunks(ctx context.Context, chunks []retrieval.DocumentChunk) error

	// GetDocument retrieves a document version by ID.
	// Returns nil if the document is not found (not an error).
	GetDocument(ctx context.Context, id string) (*retrieval.Document, error)

	// ActiveVersion resolves the active version for (title, department)
	// through the head pointer. Returns nil if no version is active.
	ActiveVersion(ctx context.Context, title, department string) (*retrieval.Document, error)

	// LatestVersion returns the highest version number recorded for
	// (title, department), or 0 when the document has never been ingested.
	LatestVersion(ctx context.Context, title, department string) (int, error)

	// PromoteHead atomically repoints the head for (title, department) at
	// the given document version and returns the ID of the version it
	// superseded ("" for a first version).
	PromoteHead(ctx context.Context, title, department, documentID string, version int) (previousID string, err error)

	// SetDocumentActive updates the is_active flag on a version row.
	// The head pointer, not this flag, is authoritative; the flag mirrors
	// it for listings.
	SetDocumentActive(ctx context.Context, id string, active bool) error

	// ListDocuments returns document versions for a department, newest
	// first. The limit is clamped to [1, MaxListLimit] with
	// DefaultListLimit as the default.
	ListDocuments(ctx context.Context, department string, limit int) ([]retrieval.Document, error)

	// ChunksByDocument returns the chunk rows of a document version in
	// sequence order.
	ChunksByDocument(ctx context.Context, documentID string) ([]retrieval.DocumentChunk, error)

	// DeleteDocument removes a document version row and its chunk rows.
	// Used only to compensate a failed ingestion; completed versions are
	// deactivated, never deleted.
	DeleteDocument(ctx context.Context, id string) error

	// InsertQueryLog records an executed query for analytics.
	InsertQueryLog(ctx context.Context, log *retrieval.QueryLog) error

	// Close closes the store and releases any resources.
	Close() error
}
