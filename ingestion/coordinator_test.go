package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coragem/retrieval"
	"github.com/coragem/retrieval/chunker"
	"github.com/coragem/retrieval/docstore"
	docmem "github.com/coragem/retrieval/docstore/memory"
	"github.com/coragem/retrieval/resultcache"
	cachemem "github.com/coragem/retrieval/resultcache/memory"
	"github.com/coragem/retrieval/vectorstore"
	vecmem "github.com/coragem/retrieval/vectorstore/memory"
)

// fakeEmbedder returns a fixed-direction vector per text so every entry is
// searchable with any query vector.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, float32(len(text))}, nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i], _ = f.Embed(ctx, text)
	}
	return vectors, nil
}

func (fakeEmbedder) Dimension() int { return 2 }

// failingStore wraps a docstore.Store and fails CreateChunks.
type failingStore struct {
	docstore.Store
}

func (f *failingStore) CreateChunks(ctx context.Context, chunks []retrieval.DocumentChunk) error {
	return errors.New("chunk write refused")
}

// failingIndex wraps a vectorstore.Index and fails Upsert.
type failingIndex struct {
	vectorstore.Index
}

func (f *failingIndex) Upsert(ctx context.Context, entries []vectorstore.Entry) (int, error) {
	return 0, errors.New("index unavailable")
}

type fixture struct {
	coordinator *Coordinator
	store       *docmem.Store
	index       *vecmem.Index
	cache       *cachemem.Cache
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()

	ch, err := chunker.New(chunker.Config{Size: 50, Overlap: 10})
	require.NoError(t, err)

	f := &fixture{
		store: docmem.New(),
		index: vecmem.New(),
		cache: cachemem.New(),
	}
	cfg := Config{
		Store:    f.store,
		Index:    f.index,
		Embedder: fakeEmbedder{},
		Chunker:  ch,
		Cache:    f.cache,
		Logger:   quietLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f.coordinator, err = New(cfg)
	require.NoError(t, err)
	return f
}

func hrManager() retrieval.Identity {
	return retrieval.Identity{UserID: "u-hr", Department: "HR", Role: retrieval.RoleManager}
}

func admin() retrieval.Identity {
	return retrieval.Identity{UserID: "u-admin", Department: "Operations", Role: retrieval.RoleAdmin}
}

func TestIngestFirstVersion(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	doc, err := f.coordinator.Ingest(ctx, hrManager(), Request{
		Title:   "Leave Policy",
		Content: "Employees are entitled to 25 days of paid leave per year.",
		DocType: "policy",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, "HR", doc.Department)
	assert.True(t, doc.IsActive)
	assert.Positive(t, doc.ChunkCount)

	active, err := f.store.ActiveVersion(ctx, "Leave Policy", "HR")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, doc.ID, active.ID)

	results, err := f.index.Search(ctx, []float32{1, 1},
		vectorstore.SearchFilter{Department: "HR", ActiveOnly: true}, 10)
	require.NoError(t, err)
	assert.Len(t, results, doc.ChunkCount)
}

func TestReingestSupersedesPreviousVersion(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	caller := hrManager()

	v1, err := f.coordinator.Ingest(ctx, caller, Request{
		Title: "Leave Policy", Content: "Old policy: 20 days.",
	})
	require.NoError(t, err)

	v2, err := f.coordinator.Ingest(ctx, caller, Request{
		Title: "Leave Policy", Content: "New policy: 25 days.",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)

	active, err := f.store.ActiveVersion(ctx, "Leave Policy", "HR")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, v2.ID, active.ID)

	old, err := f.store.GetDocument(ctx, v1.ID)
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.False(t, old.IsActive)

	// Active-only search must surface only the new version's chunks.
	results, err := f.index.Search(ctx, []float32{1, 1},
		vectorstore.SearchFilter{Department: "HR", ActiveOnly: true}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, v2.ID, r.Payload.DocumentID)
	}
}

func TestCrossDepartmentRequiresAdmin(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.coordinator.Ingest(ctx, hrManager(), Request{
		Title: "Quota Plan", Content: "...", TargetDepartment: "Sales",
	})
	assert.ErrorIs(t, err, retrieval.ErrPermissionDenied)

	doc, err := f.coordinator.Ingest(ctx, admin(), Request{
		Title: "Quota Plan", Content: "Quota targets for the year.", TargetDepartment: "Sales",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sales", doc.Department)
}

func TestUnknownDepartmentRejected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.coordinator.Ingest(ctx, admin(), Request{
		Title: "X", Content: "...", TargetDepartment: "Skunkworks",
	})
	assert.ErrorIs(t, err, retrieval.ErrInvalidDepartment)

	outsider := retrieval.Identity{UserID: "u", Department: "Skunkworks", Role: retrieval.RoleEmployee}
	_, err = f.coordinator.Ingest(ctx, outsider, Request{Title: "X", Content: "..."})
	assert.ErrorIs(t, err, retrieval.ErrInvalidDepartment)
}

func TestChunkWriteFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Store = &failingStore{Store: docmem.New()}
	})
	ctx := context.Background()

	_, err := f.coordinator.Ingest(ctx, hrManager(), Request{
		Title: "Leave Policy", Content: "Some content.",
	})
	require.Error(t, err)

	results, err := f.index.Search(ctx, []float32{1, 1},
		vectorstore.SearchFilter{Department: "HR"}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndexFailureRollsBackDocument(t *testing.T) {
	store := docmem.New()
	f := newFixture(t, func(cfg *Config) {
		cfg.Store = store
		cfg.Index = &failingIndex{Index: vecmem.New()}
	})
	ctx := context.Background()

	_, err := f.coordinator.Ingest(ctx, hrManager(), Request{
		Title: "Leave Policy", Content: "Some content.",
	})
	require.Error(t, err)

	active, err := store.ActiveVersion(ctx, "Leave Policy", "HR")
	require.NoError(t, err)
	assert.Nil(t, active)

	docs, err := store.ListDocuments(ctx, "HR", 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestConcurrentReingestKeepsChainConsistent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	caller := hrManager()

	const writers = 8
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coordinator.Ingest(ctx, caller, Request{
				Title:   "Leave Policy",
				Content: fmt.Sprintf("Policy revision %d with enough text to chunk.", i),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	latest, err := f.store.LatestVersion(ctx, "Leave Policy", "HR")
	require.NoError(t, err)
	assert.Equal(t, writers, latest)

	// Exactly one version remains active.
	docs, err := f.store.ListDocuments(ctx, "HR", 0)
	require.NoError(t, err)
	require.Len(t, docs, writers)
	activeCount := 0
	for _, d := range docs {
		if d.IsActive {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)

	active, err := f.store.ActiveVersion(ctx, "Leave Policy", "HR")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.True(t, active.IsActive)
}

func TestIngestInvalidatesDepartmentCache(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	stale := &retrieval.QueryResult{Answer: "stale", Confidence: retrieval.ConfidenceHigh}
	require.NoError(t, f.cache.Set(ctx, resultcache.NewKey("q", "HR"), stale, time.Minute))
	require.NoError(t, f.cache.Set(ctx, resultcache.NewKey("q", "Sales"), stale, time.Minute))

	_, err := f.coordinator.Ingest(ctx, hrManager(), Request{
		Title: "Leave Policy", Content: "New content.",
	})
	require.NoError(t, err)

	got, err := f.cache.Get(ctx, resultcache.NewKey("q", "HR"))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = f.cache.Get(ctx, resultcache.NewKey("q", "Sales"))
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestDeactivate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	caller := hrManager()

	doc, err := f.coordinator.Ingest(ctx, caller, Request{
		Title: "Leave Policy", Content: "Some content.",
	})
	require.NoError(t, err)

	require.NoError(t, f.coordinator.Deactivate(ctx, caller, doc.ID))

	results, err := f.index.Search(ctx, []float32{1, 1},
		vectorstore.SearchFilter{Department: "HR", ActiveOnly: true}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	err = f.coordinator.Deactivate(ctx, caller, "missing")
	assert.ErrorIs(t, err, retrieval.ErrNotFound)
}

func TestListDocumentsPermission(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.coordinator.Ingest(ctx, hrManager(), Request{
		Title: "Leave Policy", Content: "Some content.",
	})
	require.NoError(t, err)

	_, err = f.coordinator.ListDocuments(ctx, hrManager(), "Sales", 0)
	assert.ErrorIs(t, err, retrieval.ErrPermissionDenied)

	docs, err := f.coordinator.ListDocuments(ctx, admin(), "HR", 0)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
