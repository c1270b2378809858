package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c, err := New(Config{})
		require.NoError(t, err)
		assert.Equal(t, DefaultSize, c.Size())
		assert.Equal(t, 0, c.Overlap())
	})

	t.Run("overlap equal to size is rejected", func(t *testing.T) {
		_, err := New(Config{Size: 100, Overlap: 100})
		require.Error(t, err)
	})

	t.Run("overlap greater than size is rejected", func(t *testing.T) {
		_, err := New(Config{Size: 100, Overlap: 150})
		require.Error(t, err)
	})

	t.Run("negative overlap is rejected", func(t *testing.T) {
		_, err := New(Config{Size: 100, Overlap: -1})
		require.Error(t, err)
	})
}

func TestChunkEmpty(t *testing.T) {
	c, err := New(Config{Size: 10, Overlap: 2})
	require.NoError(t, err)
	assert.Empty(t, c.Chunk(""))
}

func TestChunkShorterThanSize(t *testing.T) {
	c, err := New(Config{Size: 100, Overlap: 10})
	require.NoError(t, err)

	segments := c.Chunk("short text")
	require.Len(t, segments, 1)
	assert.Equal(t, "short text", segments[0])
}

func TestChunkOverlap(t *testing.T) {
	c, err := New(Config{Size: 10, Overlap: 3})
	require.NoError(t, err)

	text := "abcdefghijklmnopqrstuvwxyz"
	segments := c.Chunk(text)
	require.Greater(t, len(segments), 1)

	for i, seg := range segments {
		assert.LessOrEqual(t, len([]rune(seg)), 10, "segment %d exceeds size", i)
	}

	// Consecutive segments share exactly the configured overlap.
	for i := 1; i < len(segments); i++ {
		prev := []rune(segments[i-1])
		cur := []rune(segments[i])
		tail := string(prev[len(prev)-3:])
		head := string(cur[:3])
		assert.Equal(t, tail, head, "segments %d and %d do not overlap by 3", i-1, i)
	}

	// Rejoining segments with the overlap removed reproduces the input.
	var rebuilt strings.Builder
	rebuilt.WriteString(segments[0])
	for i := 1; i < len(segments); i++ {
		rebuilt.WriteString(string([]rune(segments[i])[3:]))
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestChunkDeterministic(t *testing.T) {
	c, err := New(Config{Size: 7, Overlap: 2})
	require.NoError(t, err)

	text := strings.Repeat("department isolation ", 20)
	first := c.Chunk(text)
	second := c.Chunk(text)
	assert.Equal(t, first, second)
}

func TestChunkMultibyte(t *testing.T) {
	c, err := New(Config{Size: 4, Overlap: 1})
	require.NoError(t, err)

	segments := c.Chunk("宛らcélère")
	for _, seg := range segments {
		assert.LessOrEqual(t, len([]rune(seg)), 4)
	}
	// Overlap is rune-based, so multibyte boundaries stay intact.
	for i := 1; i < len(segments); i++ {
		prev := []rune(segments[i-1])
		cur := []rune(segments[i])
		assert.Equal(t, prev[len(prev)-1], cur[0])
	}
}

func TestChunkNoTrailingFragment(t *testing.T) {
	// When the final window ends exactly at the text boundary, no
	// redundant fragment fully contained in the previous segment is
	// emitted.
	c, err := New(Config{Size: 5, Overlap: 2})
	require.NoError(t, err)

	segments := c.Chunk("abcdefgh")
	last := segments[len(segments)-1]
	assert.True(t, strings.HasSuffix("abcdefgh", last))
	if len(segments) > 1 {
		prev := segments[len(segments)-2]
		assert.NotContains(t, prev, last)
	}
}
