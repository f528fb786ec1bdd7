// Package chunker splits extracted documents into bounded, overlapping spans.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mike-a-ellis/docchat/internal/storage"
)

const (
	// DefaultChunkSize is the default number of characters per chunk.
	DefaultChunkSize = 4000

	// DefaultOverlap is the default number of characters repeated from the previous chunk.
	DefaultOverlap = 50

	// DefaultMaxChunks is the embedding provider's batch limit the adaptive size aims for.
	DefaultMaxChunks = 16

	// DefaultMinChunkSize is the lower bound of the adaptive chunk size.
	DefaultMinChunkSize = 4000
)

// ErrChunkBudget is returned when more non-empty documents exist than chunks are allowed.
var ErrChunkBudget = errors.New("chunk budget smaller than document count")

// DefaultSeparators are tried in order: paragraph, line, sentence, word.
// Text with none of them in range is cut at the character limit.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "? ", "! ", " "}

// Span is one chunk of a single text, before it is attached to a document.
type Span struct {
	Offset int    // Character offset in the source text
	Text   string // Exact substring of the source text
}

// Chunker splits text at the highest-priority separator that keeps a chunk within size.
type Chunker struct {
	size       int
	overlap    int
	separators [][]rune
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the target chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator priority list.
func WithSeparators(seps ...string) Option {
	return func(c *Chunker) {
		if len(seps) > 0 {
			c.separators = toRunes(seps)
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:       DefaultChunkSize,
		overlap:    DefaultOverlap,
		separators: toRunes(DefaultSeparators),
	}
	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't swallow the whole chunk
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

// ChunkSize returns the effective chunk size.
func (c *Chunker) ChunkSize() int { return c.size }

// Overlap returns the effective overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split chunks every document in input order. Empty documents yield no chunks.
func (c *Chunker) Split(docs []*storage.Document) []*storage.Chunk {
	var chunks []*storage.Chunk
	for _, doc := range docs {
		path := doc.Source
		if path == "" {
			path = doc.Path
		}
		for i, span := range c.SplitText(doc.Content) {
			chunks = append(chunks, &storage.Chunk{
				ID:         uuid.New().String(),
				DocumentID: doc.ID,
				Path:       path,
				Index:      i,
				Offset:     span.Offset,
				Content:    span.Text,
			})
		}
	}
	return chunks
}

// SplitText splits one text into spans. Each span after the first starts with
// the last Overlap characters of the previous span.
func (c *Chunker) SplitText(text string) []Span {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	r := []rune(text)
	n := len(r)
	var spans []Span

	start := 0
	for start < n {
		end := n
		if start+c.size < n {
			end = c.breakPoint(r, start, start+c.size)
		}
		spans = append(spans, Span{Offset: start, Text: string(r[start:end])})
		if end >= n {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return spans
}

// breakPoint picks the end of a chunk starting at start. The end lands right
// after a separator inside (start+overlap, maxEnd], or at maxEnd when no
// separator falls in that window.
func (c *Chunker) breakPoint(r []rune, start, maxEnd int) int {
	floor := start + c.overlap
	for _, sep := range c.separators {
		for i := maxEnd - len(sep); i >= start; i-- {
			if i+len(sep) <= floor {
				break
			}
			if hasPrefixAt(r, i, sep) {
				return i + len(sep)
			}
		}
	}

	// Character cut
	return maxEnd
}

// AdaptiveChunkSize returns max(total/maxChunks, minFloor).
func AdaptiveChunkSize(total, maxChunks, minFloor int) int {
	if maxChunks <= 0 {
		return max(minFloor, 1)
	}
	return max(total/maxChunks, minFloor, 1)
}

// SplitAdaptive sizes chunks so the total count never exceeds maxChunks.
// It starts at AdaptiveChunkSize and grows the size whenever boundary breaks
// or per-document tails push the count over the limit. It returns the chunks
// and the chunk size finally used.
func SplitAdaptive(docs []*storage.Document, maxChunks, minFloor, overlap int) ([]*storage.Chunk, int, error) {
	total := 0
	nonEmpty := 0
	for _, doc := range docs {
		total += len([]rune(doc.Content))
		if strings.TrimSpace(doc.Content) != "" {
			nonEmpty++
		}
	}

	size := AdaptiveChunkSize(total, maxChunks, minFloor)
	if maxChunks <= 0 {
		return New(WithChunkSize(size), WithOverlap(overlap)).Split(docs), size, nil
	}
	if nonEmpty > maxChunks {
		return nil, size, fmt.Errorf("%w: %d documents, %d chunks allowed", ErrChunkBudget, nonEmpty, maxChunks)
	}

	for {
		chunks := New(WithChunkSize(size), WithOverlap(overlap)).Split(docs)
		if len(chunks) <= maxChunks {
			return chunks, size, nil
		}
		size += size*(len(chunks)-maxChunks)/maxChunks + 1
	}
}

func toRunes(seps []string) [][]rune {
	out := make([][]rune, 0, len(seps))
	for _, s := range seps {
		if s != "" {
			out = append(out, []rune(s))
		}
	}
	return out
}

func hasPrefixAt(r []rune, i int, sep []rune) bool {
	if i+len(sep) > len(r) {
		return false
	}
	for j, s := range sep {
		if r[i+j] != s {
			return false
		}
	}
	return true
}
