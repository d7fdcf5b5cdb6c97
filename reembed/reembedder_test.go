package reembed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/seeq/ai/mock"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/embedding"
	"github.com/poiesic/seeq/storage"
	"github.com/poiesic/seeq/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) storage.ChunkRepository {
	t.Helper()
	repos, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		repos.Close()
		backend.Close()
	})
	return repos.Chunks
}

// seedChunks stores n chunks per document with stale two-dimensional vectors.
func seedChunks(t *testing.T, repo storage.ChunkRepository, folder core.ID, doc core.ID, n int) []*core.Chunk {
	t.Helper()
	chunks := make([]*core.Chunk, n)
	for i := range n {
		chunks[i] = &core.Chunk{
			DocumentId: doc,
			FolderId:   folder,
			FileID:     fmt.Sprintf("file-%d", doc),
			Sequence:   i,
			Text:       fmt.Sprintf("chunk %d of document %d", i, doc),
			Vector:     []float32{1, 1},
		}
	}
	added, err := repo.AddChunks(context.Background(), chunks...)
	require.NoError(t, err)
	return added
}

// newEmbedder returns an embedder producing [1, 2, 2] for every text.
func newEmbedder() *mock.MockEmbedder {
	e := mock.NewMockEmbedder()
	e.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, 2, 2}
		}
		return out, nil
	}
	return e
}

func newBatcher(t *testing.T, e *mock.MockEmbedder) *embedding.Batcher {
	t.Helper()
	b, err := embedding.NewBatcher(e,
		embedding.WithInitialInterval(time.Millisecond),
		embedding.WithMaxAttempts(2))
	require.NoError(t, err)
	return b
}

type recordingIndex struct {
	mu    sync.Mutex
	added []core.ID
}

func (r *recordingIndex) Add(_ context.Context, chunks ...*core.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range chunks {
		r.added = append(r.added, c.Id)
	}
	return nil
}

func TestNewReembedder(t *testing.T) {
	repo := setupTestDB(t)

	_, err := NewReembedder(nil, newBatcher(t, newEmbedder()), nil, nil)
	assert.Equal(t, ErrRepositoryRequired, err)

	_, err = NewReembedder(repo, nil, nil, nil)
	assert.Equal(t, ErrBatcherRequired, err)

	r, err := NewReembedder(repo, newBatcher(t, newEmbedder()), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, r.iterator.batchSize)
}

func TestReembedderRun(t *testing.T) {
	ctx := context.Background()
	repo := setupTestDB(t)
	seedChunks(t, repo, 1, 10, 6)
	seedChunks(t, repo, 2, 20, 4)

	var buf bytes.Buffer
	index := &recordingIndex{}
	r, err := NewReembedder(repo, newBatcher(t, newEmbedder()),
		&Config{BatchSize: 3, ReportInterval: 3}, &buf, WithIndex(index))
	require.NoError(t, err)

	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, result.Chunks)
	assert.Equal(t, 4, result.Batches)
	assert.Len(t, index.added, 10)

	err = repo.ScanChunks(ctx, core.ChunkFilter{}, func(c *core.Chunk) error {
		require.Len(t, c.Vector, 3)
		assert.InDelta(t, 1.0/3, c.Vector[0], 1e-6)
		assert.InDelta(t, 2.0/3, c.Vector[1], 1e-6)
		return nil
	})
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Reembedding 10 chunks (batch size: 3)")
	assert.Contains(t, output, "10/10")
	assert.Contains(t, output, "Reembedding complete")
}

func TestReembedderFilter(t *testing.T) {
	ctx := context.Background()
	repo := setupTestDB(t)
	seedChunks(t, repo, 1, 10, 3)
	seedChunks(t, repo, 2, 20, 5)

	r, err := NewReembedder(repo, newBatcher(t, newEmbedder()),
		&Config{BatchSize: 2, Filter: core.ChunkFilter{FolderId: 2}}, nil)
	require.NoError(t, err)

	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Chunks)
	assert.Equal(t, 3, result.Batches)

	err = repo.ScanChunks(ctx, core.ChunkFilter{}, func(c *core.Chunk) error {
		if c.FolderId == 2 {
			assert.Len(t, c.Vector, 3)
		} else {
			assert.Equal(t, []float32{1, 1}, c.Vector, "chunks outside the filter keep their vectors")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestReembedderEmpty(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewReembedder(setupTestDB(t), newBatcher(t, newEmbedder()), nil, &buf)
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Chunks)
	assert.Contains(t, buf.String(), "No chunks to reembed")
}

func TestReembedderStopsOnFailure(t *testing.T) {
	ctx := context.Background()
	repo := setupTestDB(t)
	seedChunks(t, repo, 1, 10, 4)

	e := newEmbedder()
	calls := 0
	e.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("model unavailable")
		}
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{0, 3, 4}
		}
		return out, nil
	}

	r, err := NewReembedder(repo, newBatcher(t, e), &Config{BatchSize: 2}, nil)
	require.NoError(t, err)

	result, err := r.Run(ctx)
	assert.ErrorIs(t, err, core.ErrEmbeddingService)
	assert.Equal(t, 2, result.Chunks, "the first batch is kept")
	assert.Equal(t, 1, result.Batches)
}

func TestBatchProcessorMismatch(t *testing.T) {
	ctx := context.Background()
	repo := setupTestDB(t)
	chunks := seedChunks(t, repo, 1, 10, 2)

	e := mock.NewMockEmbedder()
	e.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}
	bp := NewBatchProcessor(repo, newBatcher(t, e), nil)
	err := bp.Process(ctx, chunks)
	assert.ErrorIs(t, err, core.ErrEmbeddingService)

	assert.NoError(t, bp.Process(ctx, nil))
}

func TestChunkIterator(t *testing.T) {
	ctx := context.Background()
	repo := setupTestDB(t)
	seedChunks(t, repo, 1, 10, 5)
	seedChunks(t, repo, 2, 20, 2)

	tests := []struct {
		name      string
		filter    core.ChunkFilter
		batchSize int
		want      []int
	}{
		{"all in threes", core.ChunkFilter{}, 3, []int{3, 3, 1}},
		{"exact multiple", core.ChunkFilter{}, 7, []int{7}},
		{"one big batch", core.ChunkFilter{}, 100, []int{7}},
		{"filtered", core.ChunkFilter{FolderId: 1}, 2, []int{2, 2, 1}},
		{"filtered by file", core.ChunkFilter{FileID: "file-20"}, 3, []int{2}},
		{"nothing matches", core.ChunkFilter{FolderId: 99}, 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := NewChunkIterator(repo, tt.filter, tt.batchSize)
			var sizes []int
			var last core.ID
			err := it.ForEach(ctx, func(batch []*core.Chunk) error {
				sizes = append(sizes, len(batch))
				for _, c := range batch {
					assert.True(t, uint64(c.Id) > uint64(last), "chunks arrive in id order")
					last = c.Id
				}
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, sizes)

			count, err := it.Count(ctx)
			require.NoError(t, err)
			total := 0
			for _, s := range sizes {
				total += s
			}
			assert.Equal(t, total, count)
		})
	}
}

func TestChunkIteratorStops(t *testing.T) {
	repo := setupTestDB(t)
	seedChunks(t, repo, 1, 10, 6)
	it := NewChunkIterator(repo, core.ChunkFilter{}, 2)

	boom := errors.New("stop")
	calls := 0
	err := it.ForEach(context.Background(), func([]*core.Chunk) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	calls = 0
	err = it.ForEach(ctx, func([]*core.Chunk) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
