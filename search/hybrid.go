package search

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/storage"
)

// overFetch is how many vector candidates are requested per wanted result,
// leaving room for label filtering.
const overFetch = 2

// HybridSearcher narrows vector search results by document labels.
type HybridSearcher struct {
	vector *VectorSearcher
	labels storage.LabelRepository
	logger *slog.Logger
}

// NewHybridSearcher creates a label-aware searcher on top of vector.
func NewHybridSearcher(vector *VectorSearcher, labels storage.LabelRepository) (*HybridSearcher, error) {
	if vector == nil {
		return nil, ErrSearcherRequired
	}
	if labels == nil {
		return nil, ErrRepositoriesRequired
	}
	return &HybridSearcher{
		vector: vector,
		labels: labels,
		logger: vector.logger.With("component", "hybrid-search"),
	}, nil
}

// Vector returns the underlying vector searcher.
func (h *HybridSearcher) Vector() *VectorSearcher {
	return h.vector
}

// Search returns up to k chunks similar to query whose documents match the
// label filters. A non-empty categories keeps only documents in one of those
// categories; a non-empty tags keeps only documents carrying at least one.
// Unlabeled documents pass only when neither filter is given.
func (h *HybridSearcher) Search(ctx context.Context, query string, k int, filter Filter, categories, tags []string) ([]*core.SearchResult, error) {
	return h.SearchWithMonitor(ctx, query, k, filter, categories, tags, nil)
}

// SearchWithMonitor is Search reporting each stage to monitor.
func (h *HybridSearcher) SearchWithMonitor(ctx context.Context, query string, k int, filter Filter, categories, tags []string, monitor SearchMonitor) ([]*core.SearchResult, error) {
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
	candidates := h.vector.search(ctx, query, k*overFetch, cf, monitor)

	// Label records are looked up once per document per call.
	cache := make(map[core.ID]*core.Labels)
	results := make([]*core.SearchResult, 0, k)
	for _, result := range candidates {
		if len(results) == k {
			break
		}
		docID := result.Chunk.DocumentId
		labels, ok := cache[docID]
		if !ok {
			labels = h.lookup(ctx, docID)
			cache[docID] = labels
			monitor.AfterLabelLookup(docID, labels)
		}
		if reason := reject(labels, categories, tags); reason != "" {
			monitor.Rejected(result, reason)
			continue
		}
		results = append(results, result)
	}

	monitor.Finish(results)
	return results, nil
}

// SearchByKeyword returns up to k chunks whose text contains keyword,
// ignoring case, in storage order. Every hit scores 1.0.
func (h *HybridSearcher) SearchByKeyword(ctx context.Context, keyword string, k int, filter Filter) ([]*core.SearchResult, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	cf, err := filter.chunkFilter()
	if err != nil {
		return nil, err
	}
	needle := normalizeKeyword(keyword)
	if k <= 0 || needle == "" {
		return []*core.SearchResult{}, nil
	}

	hits := make([]core.ScoredChunk, 0, k)
	err = h.vector.chunks.ScanChunks(ctx, cf, func(c *core.Chunk) error {
		if !containsKeyword(c.Text, needle) {
			return nil
		}
		hits = append(hits, core.ScoredChunk{Chunk: c, Score: 1.0})
		if len(hits) == k {
			return errEnough
		}
		return nil
	})
	if err != nil && !errors.Is(err, errEnough) {
		h.logger.Error("error scanning chunks for keyword", "keyword", keyword, "err", err)
		return []*core.SearchResult{}, nil
	}
	return h.vector.annotate(ctx, hits), nil
}

var errEnough = errors.New("enough results")

func (h *HybridSearcher) lookup(ctx context.Context, documentID core.ID) *core.Labels {
	record, err := h.labels.GetLabels(ctx, documentID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			h.logger.Warn("error looking up labels", "document_id", documentID, "err", err)
		}
		return nil
	}
	return &record.Labels
}

// reject returns why labels fail the filters, or "" if they pass.
func reject(labels *core.Labels, categories, tags []string) string {
	if len(categories) == 0 && len(tags) == 0 {
		return ""
	}
	if labels == nil {
		return RejectUnlabeled
	}
	if len(categories) > 0 && !slices.Contains(categories, labels.Category) {
		return RejectCategory
	}
	if len(tags) > 0 && !labels.HasTag(tags...) {
		return RejectTags
	}
	return ""
}
