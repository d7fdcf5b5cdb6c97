package search

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/storage"
)

// Index answers top-k similarity queries over chunk vectors.
// Implementations must be safe for concurrent use.
type Index interface {
	// Add makes chunks searchable. Chunks must carry their ID and vector.
	Add(ctx context.Context, chunks ...*core.Chunk) error

	// Remove drops chunks from the index. Unknown IDs are ignored.
	Remove(ctx context.Context, ids ...core.ID) error

	// Search returns up to k chunks passing filter, most similar first.
	Search(ctx context.Context, vector []float32, k int, filter core.ChunkFilter) ([]core.ScoredChunk, error)
}

// LinearIndex scores every stored chunk against the query.
// The chunk repository is the index, so Add and Remove do nothing.
type LinearIndex struct {
	chunks storage.ChunkRepository
}

var _ Index = (*LinearIndex)(nil)

// NewLinearIndex creates an index that scans chunks.
func NewLinearIndex(chunks storage.ChunkRepository) (*LinearIndex, error) {
	if chunks == nil {
		return nil, ErrRepositoriesRequired
	}
	return &LinearIndex{chunks: chunks}, nil
}

func (l *LinearIndex) Add(_ context.Context, _ ...*core.Chunk) error { return nil }

func (l *LinearIndex) Remove(_ context.Context, _ ...core.ID) error { return nil }

// Search scans the chunks passing filter that carry a vector. Ties keep
// scan order.
func (l *LinearIndex) Search(ctx context.Context, vector []float32, k int, filter core.ChunkFilter) ([]core.ScoredChunk, error) {
	if k <= 0 {
		return []core.ScoredChunk{}, nil
	}

	scored := make([]core.ScoredChunk, 0)
	err := l.chunks.ScanChunks(ctx, filter, func(c *core.Chunk) error {
		if len(c.Vector) == 0 {
			return nil
		}
		scored = append(scored, core.ScoredChunk{Chunk: c, Score: Cosine(vector, c.Vector)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(scored, func(a, b core.ScoredChunk) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Cosine returns dot(a,b)/(|a||b|). Vectors of different length or with a
// zero norm score 0.
func Cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
