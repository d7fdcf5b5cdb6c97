package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/embedding"
	"github.com/poiesic/seeq/storage"
)

// Indexer receives refreshed chunks. search.Index implementations satisfy it.
type Indexer interface {
	Add(ctx context.Context, chunks ...*core.Chunk) error
}

// BatchProcessor embeds batches of chunks and writes the vectors back.
type BatchProcessor struct {
	repo    storage.ChunkRepository
	batcher *embedding.Batcher
	index   Indexer
}

// NewBatchProcessor creates a batch processor. index may be nil.
func NewBatchProcessor(repo storage.ChunkRepository, batcher *embedding.Batcher, index Indexer) *BatchProcessor {
	return &BatchProcessor{
		repo:    repo,
		batcher: batcher,
		index:   index,
	}
}

// Process embeds the chunks' text, normalizes the vectors and updates the
// chunks in storage and then in the index. Retries happen inside the batcher.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := bp.batcher.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrEmbeddingService, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: expected %d vectors, got %d", core.ErrEmbeddingService, len(chunks), len(vectors))
	}

	for i := range chunks {
		chunks[i].Vector = NormalizeVector(vectors[i])
	}

	if err := bp.repo.UpdateChunks(ctx, chunks...); err != nil {
		return fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	if bp.index != nil {
		if err := bp.index.Add(ctx, chunks...); err != nil {
			return fmt.Errorf("failed to update index: %w", err)
		}
	}
	return nil
}
