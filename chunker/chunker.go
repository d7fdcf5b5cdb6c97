// Package chunker splits normalized text into overlapping, size-bounded chunks.
//
// Text is cut recursively at the highest-priority separator available
// (paragraph break, line break, sentence terminators, space). Each
// separator stays attached to the piece before it, so the pieces tile the
// source exactly. Pieces are then packed greedily into contiguous spans and
// every chunk after the first is prefixed with the tail of the previous span.
// Sizes are measured in runes.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

// Metadata keys added to every chunk.
const (
	MetaChunkSize    = "chunk_size"
	MetaChunkOverlap = "chunk_overlap"
	MetaTotalChunks  = "total_chunks"
)

var separators = []string{"\n\n", "\n", ".", "!", "?", " ", ""}

var (
	ErrInvalidSize    = errors.New("chunk size must be positive")
	ErrInvalidOverlap = errors.New("chunk overlap must be non-negative and smaller than size")
)

// Chunk is one segment of the source text.
// Start and End are rune offsets into the source; Text is source[Start:End].
type Chunk struct {
	Text     string
	Sequence int
	Start    int
	End      int
	Overlap  int
	Metadata map[string]any
}

// Params are the chunking parameters recorded with every chunk.
type Params struct {
	Size    int
	Overlap int
}

// Chunker splits text into chunks.
type Chunker struct {
	size    int
	overlap int
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithSize sets the target chunk size in runes.
func WithSize(size int) Option {
	return func(c *Chunker) error {
		if size <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidSize, size)
		}
		c.size = size
		return nil
	}
}

// WithOverlap sets how many runes of the previous span each chunk repeats.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) error {
		if overlap < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidOverlap, overlap)
		}
		c.overlap = overlap
		return nil
	}
}

// New creates a Chunker, defaulting to 500 rune chunks with 50 runes of overlap.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{size: DefaultSize, overlap: DefaultOverlap}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.overlap >= c.size {
		return nil, fmt.Errorf("%w: overlap %d, size %d", ErrInvalidOverlap, c.overlap, c.size)
	}
	return c, nil
}

// Params returns the chunker's configuration.
func (c *Chunker) Params() Params {
	return Params{Size: c.size, Overlap: c.overlap}
}

// Chunk splits text into chunks numbered from 0. Empty or whitespace-only
// text yields no chunks. metadata is copied into every chunk.
func (c *Chunker) Chunk(text string, metadata map[string]any) []Chunk {
	if strings.TrimFunc(text, unicode.IsSpace) == "" {
		return nil
	}

	runes := []rune(text)
	var pieces []span
	c.split(runes, span{0, len(runes)}, 0, &pieces)
	spans := c.pack(pieces)

	chunks := make([]Chunk, len(spans))
	for i, s := range spans {
		overlap := 0
		if i > 0 {
			overlap = min(c.overlap, spans[i-1].len())
		}
		start := s.lo - overlap

		meta := make(map[string]any, len(metadata)+3)
		for k, v := range metadata {
			meta[k] = v
		}
		meta[MetaChunkSize] = c.size
		meta[MetaChunkOverlap] = c.overlap
		meta[MetaTotalChunks] = len(spans)

		chunks[i] = Chunk{
			Text:     string(runes[start:s.hi]),
			Sequence: i,
			Start:    start,
			End:      s.hi,
			Overlap:  overlap,
			Metadata: meta,
		}
	}
	return chunks
}

type span struct {
	lo, hi int
}

func (s span) len() int {
	return s.hi - s.lo
}

// pieceLimit is the largest piece that fits a non-first span.
func (c *Chunker) pieceLimit() int {
	return c.size - c.overlap
}

// split appends pieces of s no longer than pieceLimit, cutting at separators
// from level onward. A piece with no usable separator is kept whole.
func (c *Chunker) split(text []rune, s span, level int, out *[]span) {
	if s.len() <= c.pieceLimit() {
		*out = append(*out, s)
		return
	}

	for ; level < len(separators); level++ {
		sep := []rune(separators[level])
		if len(sep) == 0 {
			break
		}
		parts := cutAfter(text, s, sep)
		if len(parts) < 2 {
			continue
		}
		for _, p := range parts {
			c.split(text, p, level+1, out)
		}
		return
	}

	*out = append(*out, s)
}

// cutAfter splits s after every occurrence of sep.
func cutAfter(text []rune, s span, sep []rune) []span {
	var parts []span
	lo := s.lo
	for i := s.lo; i+len(sep) <= s.hi; {
		if hasRunes(text[i:], sep) {
			i += len(sep)
			parts = append(parts, span{lo, i})
			lo = i
			continue
		}
		i++
	}
	if lo < s.hi {
		parts = append(parts, span{lo, s.hi})
	}
	return parts
}

func hasRunes(text, prefix []rune) bool {
	if len(text) < len(prefix) {
		return false
	}
	for i, r := range prefix {
		if text[i] != r {
			return false
		}
	}
	return true
}

// pack merges adjacent pieces into spans. The first span may hold size runes,
// later spans size-overlap so that the overlap prefix keeps them within size.
func (c *Chunker) pack(pieces []span) []span {
	var spans []span
	cur := span{-1, -1}
	for _, p := range pieces {
		if cur.lo < 0 {
			cur = p
			continue
		}
		capacity := c.size
		if len(spans) > 0 {
			capacity = c.size - c.overlap
		}
		if p.hi-cur.lo <= capacity {
			cur.hi = p.hi
			continue
		}
		spans = append(spans, cur)
		cur = p
	}
	if cur.lo >= 0 {
		spans = append(spans, cur)
	}
	return spans
}
