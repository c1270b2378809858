// Package supabase provides the Supabase-backed document store driver.
//
// Tables: documents (version rows), document_chunks, document_heads (one
// row per (title, department) pointing at the active version), query_logs.
package supabase

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"github.com/coragem/retrieval"
	"github.com/coragem/retrieval/docstore"
)

// Config holds Supabase connection configuration.
type Config struct {
	URL    string
	APIKey string
}

// Client implements docstore.Store using Supabase.
type Client struct {
	client *supabase.Client
}

// headRow is the document_heads table shape. The upsert on
// (title, department) is what makes promotion a single atomic statement.
type headRow struct {
	Title      string    `json:"title"`
	Department string    `json:"department"`
	DocumentID string    `json:"document_id"`
	Version    int       `json:"version"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// New creates a new Supabase document store.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: supabase URL is required", retrieval.ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: supabase API key is required", retrieval.ErrInvalidConfig)
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{client: client}, nil
}

// CreateDocument implements docstore.Store.
func (c *Client) CreateDocument(ctx context.Context, doc *retrieval.Document) error {
	_, _, err := c.client.From("documents").
		Insert(doc, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("%w: failed to create document: %v", retrieval.ErrStorage, err)
	}
	return nil
}

// CreateChunks implements docstore.Store.
func (c *Client) CreateChunks(ctx context.Context, chunks []retrieval.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	_, _, err := c.client.From("document_chunks").
		Insert(chunks, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("%w: failed to create chunks: %v", retrieval.ErrStorage, err)
	}
	return nil
}

// GetDocument implements docstore.Store.
// Returns nil if the document is not found (not an error).
func (c *Client) GetDocument(ctx context.Context, id string) (*retrieval.Document, error) {
	var docs []retrieval.Document
	_, err := c.client.From("documents").
		Select("*", "", false).
		Eq("id", id).
		ExecuteTo(&docs)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get document: %v", retrieval.ErrStorage, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

// ActiveVersion implements docstore.Store.
// Returns nil if no version is active for (title, department).
func (c *Client) ActiveVersion(ctx context.Context, title, department string) (*retrieval.Document, error) {
	var heads []headRow
	_, err := c.client.From("document_heads").
		Select("*", "", false).
		Eq("title", title).
		Eq("department", department).
		ExecuteTo(&heads)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get document head: %v", retrieval.ErrStorage, err)
	}
	if len(heads) == 0 {
		return nil, nil
	}
	return c.GetDocument(ctx, heads[0].DocumentID)
}

// LatestVersion implements docstore.Store.
func (c *Client) LatestVersion(ctx context.Context, title, department string) (int, error) {
	var docs []retrieval.Document
	_, err := c.client.From("documents").
		Select("version", "", false).
		Eq("title", title).
		Eq("department", department).
		Order("version", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "").
		ExecuteTo(&docs)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get latest version: %v", retrieval.ErrStorage, err)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	return docs[0].Version, nil
}

// PromoteHead implements docstore.Store.
// The upsert repoints the head in one statement; the prior pointer is read
// first so the caller can deactivate the superseded version.
func (c *Client) PromoteHead(ctx context.Context, title, department, documentID string, version int) (string, error) {
	var heads []headRow
	_, err := c.client.From("document_heads").
		Select("*", "", false).
		Eq("title", title).
		Eq("department", department).
		ExecuteTo(&heads)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read document head: %v", retrieval.ErrStorage, err)
	}

	previousID := ""
	if len(heads) > 0 {
		previousID = heads[0].DocumentID
	}

	head := headRow{
		Title:      title,
		Department: department,
		DocumentID: documentID,
		Version:    version,
		UpdatedAt:  time.Now().UTC(),
	}
	_, _, err = c.client.From("document_heads").
		Insert(head, true, "title,department", "", "").
		Execute()
	if err != nil {
		return "", fmt.Errorf("%w: failed to promote document head: %v", retrieval.ErrStorage, err)
	}
	return previousID, nil
}

// SetDocumentActive implements docstore.Store.
func (c *Client) SetDocumentActive(ctx context.Context, id string, active bool) error {
	_, _, err := c.client.From("documents").
		Update(map[string]any{"is_active": active}, "", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("%w: failed to update document active flag: %v", retrieval.ErrStorage, err)
	}
	return nil
}

// ListDocuments implements docstore.Store.
func (c *Client) ListDocuments(ctx context.Context, department string, limit int) ([]retrieval.Document, error) {
	var docs []retrieval.Document
	_, err := c.client.From("documents").
		Select("*", "", false).
		Eq("department", department).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(docstore.ClampLimit(limit), "").
		ExecuteTo(&docs)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list documents: %v", retrieval.ErrStorage, err)
	}
	return docs, nil
}

// ChunksByDocument implements docstore.Store.
func (c *Client) ChunksByDocument(ctx context.Context, documentID string) ([]retrieval.DocumentChunk, error) {
	var chunks []retrieval.DocumentChunk
	_, err := c.client.From("document_chunks").
		Select("*", "", false).
		Eq("document_id", documentID).
		Order("chunk_index", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get chunks: %v", retrieval.ErrStorage, err)
	}
	return chunks, nil
}

// DeleteDocument implements docstore.Store.
// Chunks are removed first so a failure never leaves orphaned chunk rows
// pointing at a deleted document.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	_, _, err := c.client.From("document_chunks").
		Delete("", "").
		Eq("document_id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("%w: failed to delete chunks: %v", retrieval.ErrStorage, err)
	}

	_, _, err = c.client.From("documents").
		Delete("", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("%w: failed to delete document: %v", retrieval.ErrStorage, err)
	}
	return nil
}

// InsertQueryLog implements docstore.Store.
func (c *Client) InsertQueryLog(ctx context.Context, log *retrieval.QueryLog) error {
	_, _, err := c.client.From("query_logs").
		Insert(log, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("%w: failed to insert query log: %v", retrieval.ErrStorage, err)
	}
	return nil
}

// Close implements docstore.Store.
func (c *Client) Close() error {
	// The Supabase client does not require explicit close.
	return nil
}

// Compile-time check that Client implements docstore.Store.
var _ docstore.Store = (*Client)(nil)
