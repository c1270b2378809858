package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coragem/retrieval"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Index.Type)
	assert.Equal(t, 500, cfg.Chunker.Size)
	assert.Equal(t, float32(0.7), cfg.Retrieval.ConfidenceThreshold)
	assert.Contains(t, cfg.Departments, "HR")
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
index:
  type: qdrant
  qdrant:
    url: qdrant.internal:6334
retrieval:
  confidence_threshold: 0.8
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "qdrant", cfg.Index.Type)
	assert.Equal(t, "qdrant.internal:6334", cfg.Index.Qdrant.URL)
	assert.Equal(t, 768, cfg.Index.Qdrant.VectorSize)
	assert.Equal(t, float32(0.8), cfg.Retrieval.ConfidenceThreshold)
	assert.Equal(t, 10, cfg.Retrieval.SearchLimit)
}

func TestLoadRejectsUnknownIndexType(t *testing.T) {
	path := writeConfig(t, `
index:
  type: pinecone
`)

	_, err := Load(path)
	assert.ErrorIs(t, err, retrieval.ErrInvalidConfig)
}

func TestLoadRejectsOverlapNotSmallerThanSize(t *testing.T) {
	path := writeConfig(t, `
chunker:
  size: 100
  overlap: 100
`)

	_, err := Load(path)
	assert.ErrorIs(t, err, retrieval.ErrInvalidConfig)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "index: [unterminated")

	_, err := Load(path)
	assert.ErrorIs(t, err, retrieval.ErrInvalidConfig)
}

func TestSecretReadsEnvironment(t *testing.T) {
	t.Setenv("TEST_RAG_SECRET", "s3cret")
	assert.Equal(t, "s3cret", Secret("TEST_RAG_SECRET"))
}
