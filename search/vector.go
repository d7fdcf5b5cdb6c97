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


package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/seeq/ai"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/embedding"
	"github.com/poiesic/seeq/storage"
)

// Filter restricts a search to one folder and/or one file.
// Both fields are external string forms; empty means unrestricted.
type Filter struct {
	FolderID string
	FileID   string
}

func (f Filter) chunkFilter() (core.ChunkFilter, error) {
	var cf core.ChunkFilter
	if f.FolderID != "" {
		id, err := core.ParseID(f.FolderID)
		if err != nil {
			return cf, fmt.Errorf("%w: folder id %q", ErrInvalidFilter, f.FolderID)
		}
		cf.FolderId = id
	}
	if f.FileID != "" {
		fileID := strings.TrimSpace(f.FileID)
		if fileID == "" || strings.ContainsAny(fileID, "\x00\n\r\t") {
			return cf, fmt.Errorf("%w: file id %q", ErrInvalidFilter, f.FileID)
		}
		cf.FileID = fileID
	}
	return cf, nil
}

// VectorSearcher finds the chunks most similar to a query.
type VectorSearcher struct {
	index     Index
	batcher   *embedding.Batcher
	chunks    storage.ChunkRepository
	documents storage.DocumentRepository
	logger    *slog.Logger
}

type Option func(*VectorSearcher) error

// WithIndex replaces the default LinearIndex.
func WithIndex(index Index) Option {
	return func(s *VectorSearcher) error {
		if index != nil {
			s.index = index
		}
		return nil
	}
}

// WithBatcher sets the batcher used to embed queries.
func WithBatcher(batcher *embedding.Batcher) Option {
	return func(s *VectorSearcher) error {
		if batcher != nil {
			s.batcher = batcher
		}
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *VectorSearcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewVectorSearcher creates a searcher over repos. Unless WithIndex is given
// the chunk repository is scanned linearly.
func NewVectorSearcher(repos *storage.Repositories, provider ai.AIProvider, opts ...Option) (*VectorSearcher, error) {
	if repos == nil || repos.Chunks == nil || repos.Documents == nil {
		return nil, ErrRepositoriesRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &VectorSearcher{
		chunks:    repos.Chunks,
		documents: repos.Documents,
		logger:    slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "vector-search")

	var err error
	if s.index == nil {
		if s.index, err = NewLinearIndex(s.chunks); err != nil {
			return nil, err
		}
	}
	if s.batcher == nil {
		if s.batcher, err = embedding.NewBatcher(provider.Embedder(), embedding.WithLogger(s.logger)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Index returns the index the searcher queries.
func (s *VectorSearcher) Index() Index {
	return s.index
}

// SearchSimilar returns the k chunks most similar to query.
func (s *VectorSearcher) SearchSimilar(ctx context.Context, query string, k int, filter Filter) ([]*core.SearchResult, error) {
	return s.SearchSimilarWithMonitor(ctx, query, k, filter, nil)
}

// SearchSimilarWithMonitor is SearchSimilar reporting each stage to monitor.
func (s *VectorSearcher) SearchSimilarWithMonitor(ctx context.Context, query string, k int, filter Filter, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if err := checkK(k); err != nil {
		return nil, err
	}
	monitor.Start(query)

	cf, err := filter.chunkFilter()
	if err != nil {
		return nil, err
	}
	results := s.search(ctx, query, k, cf, monitor)
	monitor.Finish(results)
	return results, nil
}

// SearchByFile returns the k chunks of one file most similar to query.
func (s *VectorSearcher) SearchByFile(ctx context.Context, query, fileID string, k int) ([]*core.SearchResult, error) {
	return s.SearchSimilar(ctx, query, k, Filter{FileID: fileID})
}

// SimilarChunks returns the k chunks nearest to an existing chunk, excluding
// the chunk itself. With sameDocumentOnly only its siblings are considered.
func (s *VectorSearcher) SimilarChunks(ctx context.Context, chunkID core.ID, k int, sameDocumentOnly bool) ([]*core.SearchResult, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	chunk, err := s.chunks.GetChunk(ctx, chunkID)
	if err != nil {
		return nil, err
	}
	if k <= 0 || len(chunk.Vector) == 0 {
		return []*core.SearchResult{}, nil
	}

	var cf core.ChunkFilter
	if sameDocumentOnly {
		cf.DocumentId = chunk.DocumentId
	}
	scored, err := s.index.Search(ctx, chunk.Vector, k+1, cf)
	if err != nil {
		s.logger.Error("error querying index", "chunk_id", chunkID, "err", err)
		return []*core.SearchResult{}, nil
	}

	neighbours := make([]core.ScoredChunk, 0, len(scored))
	for _, sc := range scored {
		if sc.Chunk.Id != chunkID {
			neighbours = append(neighbours, sc)
		}
	}
	if len(neighbours) > k {
		neighbours = neighbours[:k]
	}
	return s.annotate(ctx, neighbours), nil
}

func checkK(k int) error {
	if k < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidK, k)
	}
	return nil
}

// search embeds the query and asks the index. Failures degrade to no results.
func (s *VectorSearcher) search(ctx context.Context, query string, k int, filter core.ChunkFilter, monitor SearchMonitor) []*core.SearchResult {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return []*core.SearchResult{}
	}

	vector, err := s.batcher.EmbedQuery(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return []*core.SearchResult{}
	}
	monitor.AfterEmbedding(len(vector))

	scored, err := s.index.Search(ctx, vector, k, filter)
	if err != nil {
		s.logger.Error("error querying index", "err", err)
		return []*core.SearchResult{}
	}
	monitor.AfterIndexSearch(scored)

	return s.annotate(ctx, scored)
}

// annotate attaches document display metadata to scored chunks.
func (s *VectorSearcher) annotate(ctx context.Context, scored []core.ScoredChunk) []*core.SearchResult {
	ids := make([]core.ID, 0, len(scored))
	seen := make(map[core.ID]bool, len(scored))
	for _, sc := range scored {
		if !seen[sc.Chunk.DocumentId] {
			seen[sc.Chunk.DocumentId] = true
			ids = append(ids, sc.Chunk.DocumentId)
		}
	}

	byID := make(map[core.ID]*core.Document, len(ids))
	if len(ids) > 0 {
		docs, err := s.documents.GetDocuments(ctx, ids...)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("error retrieving documents for results", "count", len(ids), "err", err)
		}
		for _, doc := range docs {
			if doc != nil {
				byID[doc.Id] = doc
			}
		}
	}

	results := make([]*core.SearchResult, 0, len(scored))
	for _, sc := range scored {
		result := &core.SearchResult{
			Chunk:    sc.Chunk,
			Score:    sc.Score,
			Filename: core.UnknownFilename,
		}
		if doc, ok := byID[sc.Chunk.DocumentId]; ok {
			result.Filename = doc.File.OriginalFilename
			result.FileType = doc.File.FileType
		}
		results = append(results, result)
	}
	return results
}
