// Package ingestion coordinates document ingestion: chunking, embedding,
// and the multi-store write that activates a new document version.
package ingestion

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/coragem/retrieval"
	"github.com/coragem/retrieval/chunker"
	"github.com/coragem/retrieval/docstore"
	"github.com/coragem/retrieval/embedding"
	"github.com/coragem/retrieval/resultcache"
	"github.com/coragem/retrieval/vectorstore"
)

// Config holds ingestion coordinator configuration.
type Config struct {
	Store    docstore.Store
	Index    vectorstore.Index
	Embedder embedding.Embedder
	Chunker  *chunker.Chunker
	Cache    resultcache.Cache

	// Departments is the closed allow-list of valid departments.
	Departments []string

	Logger *logrus.Logger
}

// Request describes one document to ingest.
type Request struct {
	Title     string
	Content   string
	DocType   string
	SourceURL string

	// TargetDepartment selects a department other than the caller's own.
	// Only admins may set it; empty means the caller's department.
	TargetDepartment string
}

// Coordinator ingests documents. Writes to the same (title, department)
// are serialized so concurrent re-ingests produce a clean version chain.
type Coordinator struct {
	store       docstore.Store
	index       vectorstore.Index
	embedder    embedding.Embedder
	chunker     *chunker.Chunker
	cache       resultcache.Cache
	departments []string
	logger      *logrus.Logger
	locks       *keyedMutex
}

// New creates a new ingestion coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Store == nil || cfg.Index == nil || cfg.Embedder == nil || cfg.Chunker == nil {
		return nil, fmt.Errorf("%w: store, index, embedder, and chunker are required", retrieval.ErrInvalidConfig)
	}
	if len(cfg.Departments) == 0 {
		cfg.Departments = retrieval.DefaultDepartments
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	return &Coordinator{
		store:       cfg.Store,
		index:       cfg.Index,
		embedder:    cfg.Embedder,
		chunker:     cfg.Chunker,
		cache:       cfg.Cache,
		departments: cfg.Departments,
		logger:      cfg.Logger,
		locks:       newKeyedMutex(),
	}, nil
}

// resolveDepartment applies the permission rules: callers work in their own
// department; only admins may name another one, and the override is audited.
func (c *Coordinator) resolveDepartment(caller retrieval.Identity, target string) (string, error) {
	if target == "" || target == caller.Department {
		if !slices.Contains(c.departments, caller.Department) {
			return "", fmt.Errorf("%w: %q", retrieval.ErrInvalidDepartment, caller.Department)
		}
		return caller.Department, nil
	}

	if !caller.IsAdmin() {
		return "", fmt.Errorf("%w: caller in %q may not act on %q",
			retrieval.ErrPermissionDenied, caller.Department, target)
	}
	if !slices.Contains(c.departments, target) {
		return "", fmt.Errorf("%w: %q", retrieval.ErrInvalidDepartment, target)
	}

	c.logger.WithFields(logrus.Fields{
		"audit":             "department_override",
		"user_id":           caller.UserID,
		"caller_department": caller.Department,
		"target_department": target,
	}).Info("admin acting across department boundary")
	return target, nil
}

// Ingest creates, embeds, and activates a new version of a document. On any
// failure before activation, every partial write is compensated so no
// incomplete version is ever visible to search.
func (c *Coordinator) Ingest(ctx context.Context, caller retrieval.Identity, req Request) (*retrieval.Document, error) {
	department, err := c.resolveDepartment(caller, req.TargetDepartment)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("document title is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("document content is required")
	}
	docType := req.DocType
	if docType == "" {
		docType = "document"
	}

	// Serialize per (title, department): concurrent re-ingests of the
	// same document must see each other's version numbers.
	unlock := c.locks.lock(title + "\x00" + department)
	defer unlock()

	latest, err := c.store.LatestVersion(ctx, title, department)
	if err != nil {
		return nil, err
	}
	version := latest + 1

	pieces := c.chunker.Chunk(req.Content)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("document produced no chunks")
	}

	vectors, err := c.embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := &retrieval.Document{
		ID:         uuid.NewString(),
		Title:      title,
		Department: department,
		DocType:    docType,
		SourceURL:  req.SourceURL,
		Version:    version,
		IsActive:   true,
		ChunkCount: len(pieces),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	chunks := make([]retrieval.DocumentChunk, len(pieces))
	entries := make([]vectorstore.Entry, len(pieces))
	chunkIDs := make([]string, len(pieces))
	for i, content := range pieces {
		chunkID := uuid.NewString()
		chunkIDs[i] = chunkID
		chunks[i] = retrieval.DocumentChunk{
			ID:         chunkID,
			DocumentID: doc.ID,
			Index:      i,
			Content:    content,
			TokenCount: retrieval.EstimateTokens(content),
			VectorID:   chunkID,
			CreatedAt:  now,
		}
		entries[i] = vectorstore.Entry{
			ChunkID: chunkID,
			Vector:  vectors[i],
			Payload: vectorstore.Payload{
				Content:    content,
				DocumentID: doc.ID,
				Title:      title,
				Department: department,
				DocType:    docType,
				ChunkIndex: i,
				Version:    version,
				Active:     true,
			},
		}
	}

	log := c.logger.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"title":       title,
		"department":  department,
		"version":     version,
		"chunks":      len(pieces),
	})

	if err := c.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	if err := c.store.CreateChunks(ctx, chunks); err != nil {
		c.compensate(doc.ID, nil, log)
		return nil, err
	}
	if _, err := c.index.Upsert(ctx, entries); err != nil {
		c.compensate(doc.ID, chunkIDs, log)
		return nil, err
	}

	// Activation point. Everything before this is invisible to callers
	// resolving through the head; everything after is cleanup.
	previousID, err := c.store.PromoteHead(ctx, title, department, doc.ID, version)
	if err != nil {
		c.compensate(doc.ID, chunkIDs, log)
		return nil, err
	}

	if previousID != "" {
		if err := c.retireVersion(ctx, previousID); err != nil {
			// The new version is active; the superseded one must not
			// keep serving stale content.
			log.WithError(err).Error("failed to retire superseded version")
			return nil, fmt.Errorf("%w: superseded version %s not retired: %v",
				retrieval.ErrStorage, previousID, err)
		}
	}

	c.invalidateDepartment(ctx, department, log)

	log.Info("document version ingested")
	return doc, nil
}

// retireVersion deactivates a superseded version in both stores.
func (c *Coordinator) retireVersion(ctx context.Context, documentID string) error {
	if err := c.store.SetDocumentActive(ctx, documentID, false); err != nil {
		return err
	}
	if _, err := c.index.SetActive(ctx, documentID, false); err != nil {
		return err
	}
	return nil
}

// compensate undoes the partial writes of a failed ingest. Best effort:
// failures are logged, and a leftover row is harmless because the head was
// never promoted to it.
func (c *Coordinator) compensate(documentID string, chunkIDs []string, log *logrus.Entry) {
	ctx := context.Background()
	if len(chunkIDs) > 0 {
		if err := c.index.Delete(ctx, chunkIDs); err != nil {
			log.WithError(err).Warn("compensation: failed to delete vectors")
		}
	}
	if err := c.store.DeleteDocument(ctx, documentID); err != nil {
		log.WithError(err).Warn("compensation: failed to delete document rows")
	}
}

func (c *Coordinator) invalidateDepartment(ctx context.Context, department string, log *logrus.Entry) {
	if c.cache == nil {
		return
	}
	deleted, err := c.cache.InvalidateDepartment(ctx, department)
	if err != nil {
		log.WithError(err).Warn("failed to invalidate result cache")
		return
	}
	if deleted > 0 {
		log.WithField("invalidated", deleted).Debug("result cache invalidated")
	}
}

// Deactivate retires a document version without replacing it. The head is
// left pointing at it, so a later ingest of the same title starts a fresh
// version past it.
func (c *Coordinator) Deactivate(ctx context.Context, caller retrieval.Identity, documentID string) error {
	doc, err := c.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: document %s", retrieval.ErrNotFound, documentID)
	}
	if _, err := c.resolveDepartment(caller, doc.Department); err != nil {
		return err
	}

	if err := c.retireVersion(ctx, documentID); err != nil {
		return err
	}

	log := c.logger.WithFields(logrus.Fields{
		"document_id": documentID,
		"department":  doc.Department,
	})
	c.invalidateDepartment(ctx, doc.Department, log)
	log.Info("document version deactivated")
	return nil
}

// ListDocuments returns the document versions visible to the caller in the
// requested department, newest first.
func (c *Coordinator) ListDocuments(ctx context.Context, caller retrieval.Identity, targetDepartment string, limit int) ([]retrieval.Document, error) {
	department, err := c.resolveDepartment(caller, targetDepartment)
	if err != nil {
		return nil, err
	}
	return c.store.ListDocuments(ctx, department, limit)
}
