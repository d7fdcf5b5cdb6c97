// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"

	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/storage"
)

// DefaultBatchSize is the number of chunks handled per batch.
const DefaultBatchSize = 100

// ChunkIterator walks the chunks matching a filter in batches.
type ChunkIterator struct {
	repo      storage.ChunkRepository
	filter    core.ChunkFilter
	batchSize int
}

// NewChunkIterator creates an iterator. A batchSize <= 0 means DefaultBatchSize.
func NewChunkIterator(repo storage.ChunkRepository, filter core.ChunkFilter, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ChunkIterator{
		repo:      repo,
		filter:    filter,
		batchSize: batchSize,
	}
}

// Count returns how many chunks the iterator will visit.
func (it *ChunkIterator) Count(ctx context.Context) (int, error) {
	if it.filter == (core.ChunkFilter{}) {
		return it.repo.CountChunks(ctx)
	}
	n := 0
	err := it.repo.ScanChunks(ctx, it.filter, func(*core.Chunk) error {
		n++
		return nil
	})
	return n, err
}

// ForEach calls fn with consecutive batches of matching chunks in ID order.
// Chunks are paged out of storage, so fn may write them back. Iteration
// stops at the first error from fn, and the context is checked between batches.
func (it *ChunkIterator) ForEach(ctx context.Context, fn func([]*core.Chunk) error) error {
	var after core.ID
	batch := make([]*core.Chunk, 0, it.batchSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := it.repo.GetChunksAfter(ctx, after, it.batchSize)
		if err != nil {
			return err
		}
		for _, c := range page {
			after = c.Id
			if !it.filter.Matches(c) {
				continue
			}
			batch = append(batch, c)
			if len(batch) == it.batchSize {
				if err := fn(batch); err != nil {
					return err
				}
				batch = make([]*core.Chunk, 0, it.batchSize)
			}
		}
		if len(page) < it.batchSize {
			break
		}
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
