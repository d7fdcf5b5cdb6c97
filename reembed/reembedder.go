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
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/embedding"
	"github.com/poiesic/seeq/storage"
)

// Config holds configuration for a reembedding run.
type Config struct {
	// BatchSize is the number of chunks read and written per batch.
	BatchSize int

	// ReportInterval is how often progress is reported, in chunks.
	ReportInterval int

	// Filter restricts the run to matching chunks. The zero value matches all.
	Filter core.ChunkFilter
}

// DefaultConfig returns a Config covering every chunk.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: DefaultBatchSize,
	}
}

// Result summarizes a run.
type Result struct {
	Chunks  int
	Batches int
	Elapsed time.Duration
}

// Reembedder recomputes chunk vectors.
type Reembedder struct {
	config    *Config
	progress  io.Writer
	logger    *slog.Logger
	iterator  *ChunkIterator
	processor *BatchProcessor
}

type Option func(*Reembedder)

// WithIndex also upserts refreshed chunks into index.
func WithIndex(index Indexer) Option {
	return func(r *Reembedder) {
		r.processor.index = index
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
	}
}

// NewReembedder creates a reembedder.
// progress: where to write progress output (typically os.Stderr), may be nil
func NewReembedder(chunks storage.ChunkRepository, batcher *embedding.Batcher, config *Config, progress io.Writer, opts ...Option) (*Reembedder, error) {
	if chunks == nil {
		return nil, ErrRepositoryRequired
	}
	if batcher == nil {
		return nil, ErrBatcherRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	r := &Reembedder{
		config:    config,
		progress:  progress,
		logger:    slog.Default(),
		iterator:  NewChunkIterator(chunks, config.Filter, config.BatchSize),
		processor: NewBatchProcessor(chunks, batcher, nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reembed")
	return r, nil
}

// Run re-embeds every chunk matching the configured filter. A failing batch
// stops the run; batches before it keep their new vectors.
func (r *Reembedder) Run(ctx context.Context) (*Result, error) {
	total, err := r.iterator.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks to reembed\n")
		return &Result{}, nil
	}

	fmt.Fprintf(r.progress, "Reembedding %d chunks (batch size: %d)\n", total, r.iterator.batchSize)
	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	result := &Result{}
	err = r.iterator.ForEach(ctx, func(chunks []*core.Chunk) error {
		if err := r.processor.Process(ctx, chunks); err != nil {
			return fmt.Errorf("batch %d: %w", result.Batches+1, err)
		}
		result.Batches++
		result.Chunks += len(chunks)
		tracker.Add(len(chunks))
		return nil
	})
	if err != nil {
		r.logger.Error("reembedding stopped", "done", result.Chunks, "total", total, "err", err)
		return result, err
	}

	tracker.Finish()
	result.Elapsed = tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d chunks in %v\n",
		result.Chunks, result.Elapsed.Round(time.Millisecond))
	r.logger.Info("reembedding complete", "chunks", result.Chunks, "batches", result.Batches)
	return result, nil
}
