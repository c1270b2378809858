// Package gemini provides the Gemini embedding provider driver.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/coragem/retrieval"
	"github.com/coragem/retrieval/embedding"
)

// Defaults for the Gemini embedding model.
const (
	DefaultModel     = "gemini-embedding-001"
	DefaultDimension = 768
)

// Config holds Gemini embedding configuration.
type Config struct {
	APIKey    string
	Model     string
	Dimension int
}

// Provider implements embedding.Provider using the Gemini API.
type Provider struct {
	client    *genai.Client
	model     string
	dimension int
}

// New creates a new Gemini embedding provider.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key is required", retrieval.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Provider{
		client:    client,
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}, nil
}

// EmbedBatch implements embedding.Provider.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	outputDim := int32(p.dimension)
	result, err := p.client.Models.EmbedContent(ctx, p.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("no embeddings returned from API")
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d",
			len(texts), len(result.Embeddings))
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		if len(emb.Values) != p.dimension {
			return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d",
				p.dimension, len(emb.Values))
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Dimension implements embedding.Provider.
func (p *Provider) Dimension() int {
	return p.dimension
}

// Compile-time check that Provider implements embedding.Provider.
var _ embedding.Provider = (*Provider)(nil)
