package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/storage"
)

// DeleteFolderResult counts what a folder delete removed.
type DeleteFolderResult struct {
	Documents    int
	CacheEntries int
}

// DeleteDocument removes a document with its chunks, labels and every
// cache entry derived from it or from its folder.
// Folder counters are decremented for documents that had been counted.
func (p *Pipeline) DeleteDocument(ctx context.Context, id core.ID) error {
	_, err := p.deleteDocument(ctx, id)
	return err
}

// deleteDocument returns the number of cache entries it removed.
func (p *Pipeline) deleteDocument(ctx context.Context, id core.ID) (int, error) {
	doc, err := p.documents.GetDocument(ctx, id)
	if err != nil {
		return 0, err
	}

	if err := p.removeChunks(ctx, id); err != nil {
		return 0, err
	}
	if err := p.labels.DeleteLabels(ctx, id); err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	if err := p.documents.DeleteDocument(ctx, id); err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}

	evicted := 0
	if p.cache != nil {
		evicted, err = p.cache.DeleteCacheEntriesByDocument(ctx, doc.File.FileID, doc.FolderId)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", core.ErrPersistence, err)
		}
	}

	if doc.Status == core.StatusComplete {
		err := p.folders.IncrementFolderCounts(ctx, doc.FolderId, -1, -1)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			p.logger.Warn("failed to update folder counts", "folder", doc.FolderId, "err", err)
		}
	}
	p.logger.Debug("deleted document", "document", id, "file_id", doc.File.FileID, "cache_entries", evicted)
	return evicted, nil
}

// DeleteFolder removes a folder, its documents with their chunks and labels,
// and every cache entry scoped to it.
func (p *Pipeline) DeleteFolder(ctx context.Context, id core.ID) (*DeleteFolderResult, error) {
	if _, err := p.folders.GetFolder(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &core.FolderNotFoundError{ID: id}
		}
		return nil, err
	}

	docs, err := p.documents.ListDocumentsByFolder(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &DeleteFolderResult{}
	for _, doc := range docs {
		evicted, err := p.deleteDocument(ctx, doc.Id)
		if err != nil {
			return result, err
		}
		result.Documents++
		result.CacheEntries += evicted
	}

	if p.cache != nil {
		n, err := p.cache.DeleteCacheEntriesByFolder(ctx, id)
		if err != nil {
			return result, fmt.Errorf("%w: %w", core.ErrPersistence, err)
		}
		result.CacheEntries += n
	}

	if err := p.folders.DeleteFolder(ctx, id); err != nil {
		return result, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	p.logger.Info("deleted folder", "folder", id, "documents", result.Documents, "cache_entries", result.CacheEntries)
	return result, nil
}

func (p *Pipeline) removeChunks(ctx context.Context, documentID core.ID) error {
	ids, err := p.chunks.DeleteChunksByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	if p.index != nil && len(ids) > 0 {
		if err := p.index.Remove(ctx, ids...); err != nil {
			return err
		}
	}
	return nil
}
