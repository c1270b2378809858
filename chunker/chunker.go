// Package chunker splits document text into overlapping fixed-size segments
// for embedding and indexing.
package chunker

import (
	"github.com/coragem/retrieval"
)

const (
	// DefaultSize is the default segment size in characters.
	DefaultSize = 500
	// DefaultOverlap is the default number of characters shared between
	// consecutive segments.
	DefaultOverlap = 50
)

// Config holds chunking parameters. Overlap must be smaller than Size.
type Config struct {
	Size    int
	Overlap int
}

// Chunker splits text into overlapping character-based segments.
// Splitting is deterministic: the same input always yields the same
// segmentation.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. Zero values fall back to defaults; an overlap
// greater than or equal to the size is rejected.
func New(cfg Config) (*Chunker, error) {
	if cfg.Size == 0 {
		cfg.Size = DefaultSize
	}
	if cfg.Size < 0 || cfg.Overlap < 0 {
		return nil, retrieval.ErrInvalidConfig
	}
	if cfg.Overlap >= cfg.Size {
		return nil, retrieval.ErrInvalidConfig
	}
	return &Chunker{size: cfg.Size, overlap: cfg.Overlap}, nil
}

// Chunk splits text into ordered segments. Each segment is at most Size
// characters long and consecutive segments share exactly Overlap trailing/
// leading characters. Empty input yields no segments.
func (c *Chunker) Chunk(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	segments := make([]string, 0, (len(runes)+step-1)/step)

	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		segments = append(segments, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	return segments
}

// Size returns the configured segment size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }
