// Package embedding turns text into vectors through a provider gateway with
// a content-addressed cache, so re-ingesting unchanged text never pays for
// a provider call twice.
package embedding

import "context"

// Provider generates embeddings by calling an external model API.
// Implementations live in driver subpackages.
type Provider interface {
	// EmbedBatch embeds texts in order. The returned slice has one vector
	// per input text.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed dimensionality of produced vectors.
	Dimension() int
}

// Embedder is the gateway surface used by the coordinators.
type Embedder interface {
	// Embed embeds a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts in order, serving repeats from the cache.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed dimensionality of produced vectors.
	Dimension() int
}
