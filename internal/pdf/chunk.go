package pdf

import (
	"strings"
	"unicode"

	"github.com/matsen/paperdex/internal/paper"
)

const (
	// DefaultChunkSize is the default number of characters per chunk.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the default number of characters shared by consecutive chunks.
	DefaultChunkOverlap = 200
)

// Chunker splits page text into fixed-size overlapping chunks.
// Boundaries depend only on the input text and the configured size and overlap.
type Chunker struct {
	size    int
	overlap int
}

// ChunkOption configures a Chunker.
type ChunkOption func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) ChunkOption {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithChunkOverlap sets the overlap between consecutive chunks in characters.
func WithChunkOverlap(overlap int) ChunkOption {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// NewChunker creates a chunker with the given options.
func NewChunker(opts ...ChunkOption) *Chunker {
	c := &Chunker{
		size:    DefaultChunkSize,
		overlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}

	// Overlap must leave room to advance
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

// Size returns the chunk size in characters.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the chunk overlap in characters.
func (c *Chunker) Overlap() int { return c.overlap }

// SplitPages chunks each page independently so every chunk maps to one page.
// Pages are 1-based in the output. Whitespace-only chunks are dropped.
func (c *Chunker) SplitPages(pages []string) []paper.ChunkInput {
	var chunks []paper.ChunkInput
	for i, text := range pages {
		chunks = append(chunks, c.split(text, i+1)...)
	}
	return chunks
}

// split chunks one page. Offsets count characters, not bytes.
func (c *Chunker) split(text string, page int) []paper.ChunkInput {
	runes := []rune(text)
	n := len(runes)
	step := c.size - c.overlap

	var chunks []paper.ChunkInput
	for start := 0; start < n; start += step {
		end := start + c.size
		if end > n {
			end = n
		}

		content := string(runes[start:end])
		if strings.TrimFunc(content, unicode.IsSpace) != "" {
			chunks = append(chunks, paper.ChunkInput{
				Text:   content,
				Page:   page,
				Offset: start,
			})
		}

		if end == n {
			break
		}
	}
	return chunks
}
