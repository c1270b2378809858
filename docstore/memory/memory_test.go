package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coragem/retrieval"
)

func doc(id, title, department string, version int, active bool) *retrieval.Document {
	return &retrieval.Document{
		ID:         id,
		Title:      title,
		Department: department,
		DocType:    "policy",
		Version:    version,
		IsActive:   active,
		CreatedAt:  time.Now().Add(time.Duration(version) * time.Second),
	}
}

func TestGetDocumentMiss(t *testing.T) {
	s := New()
	got, err := s.GetDocument(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestVersionChain(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateDocument(ctx, doc("v1", "Leave Policy", "HR", 1, true)))
	prev, err := s.PromoteHead(ctx, "Leave Policy", "HR", "v1", 1)
	require.NoError(t, err)
	assert.Empty(t, prev)

	latest, err := s.LatestVersion(ctx, "Leave Policy", "HR")
	require.NoError(t, err)
	assert.Equal(t, 1, latest)

	// Re-ingest: version 2 takes over the head, version 1 is superseded.
	require.NoError(t, s.CreateDocument(ctx, doc("v2", "Leave Policy", "HR", 2, true)))
	prev, err = s.PromoteHead(ctx, "Leave Policy", "HR", "v2", 2)
	require.NoError(t, err)
	assert.Equal(t, "v1", prev)
	require.NoError(t, s.SetDocumentActive(ctx, prev, false))

	active, err := s.ActiveVersion(ctx, "Leave Policy", "HR")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "v2", active.ID)

	old, err := s.GetDocument(ctx, "v1")
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.False(t, old.IsActive)

	latest, err = s.LatestVersion(ctx, "Leave Policy", "HR")
	require.NoError(t, err)
	assert.Equal(t, 2, latest)
}

func TestHeadsAreScopedByDepartment(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateDocument(ctx, doc("hr-1", "Onboarding", "HR", 1, true)))
	require.NoError(t, s.CreateDocument(ctx, doc("sales-1", "Onboarding", "Sales", 1, true)))
	_, err := s.PromoteHead(ctx, "Onboarding", "HR", "hr-1", 1)
	require.NoError(t, err)
	_, err = s.PromoteHead(ctx, "Onboarding", "Sales", "sales-1", 1)
	require.NoError(t, err)

	hr, err := s.ActiveVersion(ctx, "Onboarding", "HR")
	require.NoError(t, err)
	require.NotNil(t, hr)
	assert.Equal(t, "hr-1", hr.ID)

	sales, err := s.ActiveVersion(ctx, "Onboarding", "Sales")
	require.NoError(t, err)
	require.NotNil(t, sales)
	assert.Equal(t, "sales-1", sales.ID)
}

func TestChunksByDocumentOrdered(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateChunks(ctx, []retrieval.DocumentChunk{
		{ID: "c2", DocumentID: "d1", Index: 2, Content: "third"},
		{ID: "c0", DocumentID: "d1", Index: 0, Content: "first"},
		{ID: "c1", DocumentID: "d1", Index: 1, Content: "second"},
	}))

	chunks, err := s.ChunksByDocument(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, []string{"first", "second", "third"},
		[]string{chunks[0].Content, chunks[1].Content, chunks[2].Content})
}

func TestDeleteDocumentRemovesChunks(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateDocument(ctx, doc("d1", "T", "HR", 1, true)))
	require.NoError(t, s.CreateChunks(ctx, []retrieval.DocumentChunk{
		{ID: "c0", DocumentID: "d1", Index: 0, Content: "x"},
	}))

	require.NoError(t, s.DeleteDocument(ctx, "d1"))

	got, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, got)

	chunks, err := s.ChunksByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestListDocumentsNewestFirstAndClamped(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d := doc(string(rune('a'+i)), "Doc", "HR", i, i == 3)
		require.NoError(t, s.CreateDocument(ctx, d))
	}
	require.NoError(t, s.CreateDocument(ctx, doc("other", "Doc", "Sales", 1, true)))

	docs, err := s.ListDocuments(ctx, "HR", 0)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, 3, docs[0].Version)

	docs, err = s.ListDocuments(ctx, "HR", 2)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestQueryLogs(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.InsertQueryLog(ctx, &retrieval.QueryLog{
		ID: "q1", Query: "leave policy", UserID: "u1", Department: "HR",
		ResultCount: 3, Cached: false, Confidence: string(retrieval.ConfidenceHigh),
	}))

	logs := s.QueryLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "leave policy", logs[0].Query)
}
