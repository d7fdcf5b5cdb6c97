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


// Package seeq wires storage, AI services, ingestion, search and generation
// into a single Engine.
package seeq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/seeq/ai"
	"github.com/poiesic/seeq/ai/openai"
	"github.com/poiesic/seeq/bridge"
	"github.com/poiesic/seeq/cache"
	"github.com/poiesic/seeq/chunker"
	"github.com/poiesic/seeq/config"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/embedding"
	"github.com/poiesic/seeq/generation"
	"github.com/poiesic/seeq/ingestion"
	"github.com/poiesic/seeq/reembed"
	"github.com/poiesic/seeq/search"
	"github.com/poiesic/seeq/search/qdrant"
	"github.com/poiesic/seeq/storage"
	"github.com/poiesic/seeq/storage/badger"
)

// Engine owns the storage backend, the AI provider and every service built on them.
type Engine struct {
	backend     *badger.Backend
	repos       *storage.Repositories
	provider    ai.AIProvider
	batcher     *embedding.Batcher
	index       search.Index
	closer      io.Closer
	pipeline    *ingestion.Pipeline
	vector      *search.VectorSearcher
	hybrid      *search.HybridSearcher
	summarizer  *generation.Summarizer
	answerer    *generation.Answerer
	recommender *generation.Recommender
	cache       *cache.Cache
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	aiConfig       *ai.Config
	provider       ai.AIProvider
	inMemory       bool
	qdrant         *qdrant.Config
	chunkSize      int
	chunkOverlap   int
	embedBatchSize int
	embedAttempts  int
	logger         *slog.Logger
}

// WithAIConfig sets the AI service configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *options) {
		o.aiConfig = cfg
	}
}

// WithProvider supplies an AI provider directly instead of building one from the AI config.
// The Engine closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// InMemory keeps all data in memory. The path passed to Open is ignored.
func InMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithQdrant searches through a Qdrant collection instead of scanning stored chunks.
func WithQdrant(cfg qdrant.Config) Option {
	return func(o *options) {
		o.qdrant = &cfg
	}
}

// WithChunking sets chunk size and overlap in characters.
func WithChunking(size, overlap int) Option {
	return func(o *options) {
		o.chunkSize = size
		o.chunkOverlap = overlap
	}
}

// WithEmbedding sets the embedding batch size and attempt limit. Zero keeps the default.
func WithEmbedding(batchSize, maxAttempts int) Option {
	return func(o *options) {
		o.embedBatchSize = batchSize
		o.embedAttempts = maxAttempts
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open opens the database at path and builds every service.
func Open(ctx context.Context, path string, opts ...Option) (*Engine, error) {
	o := &options{
		aiConfig:     ai.DefaultConfig(),
		chunkSize:    chunker.DefaultSize,
		chunkOverlap: chunker.DefaultOverlap,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(path, o.inMemory)
	if err != nil {
		return nil, err
	}
	e := &Engine{backend: backend, logger: o.logger}

	if err := e.build(ctx, o); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// OpenConfig opens an Engine described by an application config.
func OpenConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := []Option{
		WithAIConfig(cfg.AIConfig()),
		WithChunking(cfg.Chunking.Size, cfg.Chunking.Overlap),
		WithEmbedding(cfg.Embedding.BatchSize, cfg.Embedding.MaxAttempts),
	}
	if cfg.Index.Type == config.IndexQdrant {
		base = append(base, WithQdrant(cfg.QdrantConfig()))
	}
	return Open(ctx, cfg.DataDir, append(base, opts...)...)
}

func (e *Engine) build(ctx context.Context, o *options) error {
	var err error
	if e.repos, err = badger.NewRepositories(e.backend); err != nil {
		return err
	}

	e.provider = o.provider
	if e.provider == nil {
		if e.provider, err = openai.NewProvider(o.aiConfig); err != nil {
			return err
		}
	}

	batcherOpts := []embedding.Option{embedding.WithLogger(e.logger)}
	if o.embedBatchSize > 0 {
		batcherOpts = append(batcherOpts, embedding.WithBatchSize(o.embedBatchSize))
	}
	if o.embedAttempts > 0 {
		batcherOpts = append(batcherOpts, embedding.WithMaxAttempts(o.embedAttempts))
	}
	if e.batcher, err = embedding.NewBatcher(e.provider.Embedder(), batcherOpts...); err != nil {
		return err
	}

	if o.qdrant != nil {
		idx, err := qdrant.New(ctx, *o.qdrant, e.repos.Chunks, qdrant.WithLogger(e.logger))
		if err != nil {
			return err
		}
		e.index, e.closer = idx, idx
	} else if e.index, err = search.NewLinearIndex(e.repos.Chunks); err != nil {
		return err
	}

	ch, err := chunker.New(chunker.WithSize(o.chunkSize), chunker.WithOverlap(o.chunkOverlap))
	if err != nil {
		return err
	}
	e.pipeline, err = ingestion.NewPipeline(e.repos, e.provider,
		ingestion.WithChunker(ch),
		ingestion.WithBatcher(e.batcher),
		ingestion.WithIndex(e.index),
		ingestion.WithLogger(e.logger))
	if err != nil {
		return err
	}

	e.vector, err = search.NewVectorSearcher(e.repos, e.provider,
		search.WithIndex(e.index),
		search.WithBatcher(e.batcher),
		search.WithLogger(e.logger))
	if err != nil {
		return err
	}
	if e.hybrid, err = search.NewHybridSearcher(e.vector, e.repos.Labels); err != nil {
		return err
	}

	if e.summarizer, err = generation.NewSummarizer(e.repos, e.provider, generation.WithLogger(e.logger)); err != nil {
		return err
	}
	if e.answerer, err = generation.NewAnswerer(e.hybrid, e.provider, generation.WithLogger(e.logger)); err != nil {
		return err
	}
	if e.recommender, err = generation.NewRecommender(e.repos, e.hybrid, e.provider, generation.WithLogger(e.logger)); err != nil {
		return err
	}
	e.cache, err = cache.New(e.repos.Cache, cache.WithLogger(e.logger))
	return err
}

// Close releases everything Open acquired. It is safe on a partially built Engine.
func (e *Engine) Close() error {
	var errs []error
	if e.pipeline != nil {
		e.pipeline.Release()
	}
	if e.closer != nil {
		if err := e.closer.Close(); err != nil {
			e.logger.Error("error closing index", "err", err)
			errs = append(errs, err)
		}
	}
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
		}
	}
	if e.repos != nil {
		if err := e.repos.Close(); err != nil {
			e.logger.Error("error closing repositories", "err", err)
			errs = append(errs, err)
		}
	}
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) Repositories() *storage.Repositories {
	return e.repos
}

func (e *Engine) Pipeline() *ingestion.Pipeline {
	return e.pipeline
}

func (e *Engine) Searcher() *search.HybridSearcher {
	return e.hybrid
}

func (e *Engine) Summarizer() *generation.Summarizer {
	return e.summarizer
}

func (e *Engine) Answerer() *generation.Answerer {
	return e.answerer
}

func (e *Engine) Recommender() *generation.Recommender {
	return e.recommender
}

func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// Folders lists every folder.
func (e *Engine) Folders(ctx context.Context) ([]*core.Folder, error) {
	return e.repos.Folders.ListFolders(ctx)
}

// Folder resolves a folder by ID, or by title when ref is not an ID.
func (e *Engine) Folder(ctx context.Context, ref string) (*core.Folder, error) {
	if id, err := core.ParseID(ref); err == nil {
		if f, err := e.repos.Folders.GetFolder(ctx, id); err == nil {
			return f, nil
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}
	for _, folderType := range []string{core.FolderTypeLibrary, core.FolderTypeOCR} {
		f, err := e.repos.Folders.FindFolderByTitle(ctx, ref, folderType)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", core.ErrFolderNotFound, ref)
}

// DeleteFolder removes a folder with its documents and cached artifacts.
func (e *Engine) DeleteFolder(ctx context.Context, id core.ID) (*ingestion.DeleteFolderResult, error) {
	return e.pipeline.DeleteFolder(ctx, id)
}

// NewReconciler builds a bridge reconciler feeding source into this Engine.
func (e *Engine) NewReconciler(source bridge.Source, opts ...bridge.Option) (*bridge.Reconciler, error) {
	opts = append([]bridge.Option{bridge.WithLogger(e.logger)}, opts...)
	return bridge.NewReconciler(source, e.pipeline, e.repos, opts...)
}

// NewReembedder builds a reembedder that refreshes stored vectors and the search index.
func (e *Engine) NewReembedder(cfg *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(e.repos.Chunks, e.batcher, cfg, progress,
		reembed.WithIndex(e.index),
		reembed.WithLogger(e.logger))
}
