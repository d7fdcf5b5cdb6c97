package storage

import (
	"context"
	"time"

	"github.com/poiesic/seeq/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository.
	// The shared backend is closed separately.
	Close() error
}

// FolderRepository manages folders.
type FolderRepository interface {
	Repository

	// GetOrCreateFolder returns the folder with the given (title, type), creating it if needed.
	// Concurrent callers with the same pair always receive the same folder.
	GetOrCreateFolder(ctx context.Context, title, folderType string) (*core.Folder, error)

	// GetFolder retrieves a folder by ID.
	// Returns ErrNotFound if the folder doesn't exist.
	GetFolder(ctx context.Context, id core.ID) (*core.Folder, error)

	// FindFolderByTitle retrieves a folder by its (title, type) pair.
	// Returns ErrNotFound if no such folder exists.
	FindFolderByTitle(ctx context.Context, title, folderType string) (*core.Folder, error)

	// ListFolders returns every folder ordered by title.
	ListFolders(ctx context.Context) ([]*core.Folder, error)

	// TouchFolder sets the folder's last accessed time to now.
	TouchFolder(ctx context.Context, id core.ID) error

	// IncrementFolderCounts adds to the folder's document and file counters.
	IncrementFolderCounts(ctx context.Context, id core.ID, documents, files int) error

	// DeleteFolder removes the folder record only.
	// Returns ErrNotFound if the folder doesn't exist.
	DeleteFolder(ctx context.Context, id core.ID) error
}

// DocumentRepository manages documents.
type DocumentRepository interface {
	Repository

	// AddDocument stores a new document, assigning an ID from the sequence.
	// Returns ErrDuplicateKey if a document with the same FileID exists.
	AddDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// UpdateDocument replaces an existing document.
	// Returns ErrNotFound if the document doesn't exist.
	UpdateDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocuments retrieves the documents that exist among ids.
	GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error)

	// GetDocumentByFileID retrieves a document by its external file id.
	// Returns ErrNotFound if no document carries that id.
	GetDocumentByFileID(ctx context.Context, fileID string) (*core.Document, error)

	// ExistsByFileID reports whether a document with fileID is stored.
	ExistsByFileID(ctx context.Context, fileID string) (bool, error)

	// ListDocumentsByFolder returns the folder's documents in insertion order.
	ListDocumentsByFolder(ctx context.Context, folderID core.ID) ([]*core.Document, error)

	// ListIncompleteDocuments returns documents that are not complete
	// and were last updated before olderThan.
	ListIncompleteDocuments(ctx context.Context, olderThan time.Time) ([]*core.Document, error)

	// DeleteDocument removes a document and its file id index.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id core.ID) error
}

// ChunkRepository manages chunks.
type ChunkRepository interface {
	Repository

	// AddChunks bulk inserts chunks, assigning IDs from the sequence.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// UpdateChunks replaces existing chunks.
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateChunks(ctx context.Context, chunks ...*core.Chunk) error

	// GetChunk retrieves a chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error)

	// GetChunksByDocument returns the document's chunks ordered by sequence.
	GetChunksByDocument(ctx context.Context, documentID core.ID) ([]*core.Chunk, error)

	// DeleteChunksByDocument removes every chunk of a document and returns their IDs.
	DeleteChunksByDocument(ctx context.Context, documentID core.ID) ([]core.ID, error)

	// ScanChunks calls fn for every chunk passing filter.
	// Iteration stops at the first error fn returns.
	ScanChunks(ctx context.Context, filter core.ChunkFilter, fn func(*core.Chunk) error) error

	// GetChunksAfter returns up to limit chunks with IDs greater than afterID, in ID order.
	GetChunksAfter(ctx context.Context, afterID core.ID, limit int) ([]*core.Chunk, error)

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int, error)
}

// LabelRepository manages per-document label records.
type LabelRepository interface {
	Repository

	// PutLabels stores or replaces the label record for a document.
	PutLabels(ctx context.Context, record *core.LabelRecord) error

	// GetLabels retrieves the label record for a document.
	// Returns ErrNotFound if the document has no labels.
	GetLabels(ctx context.Context, documentID core.ID) (*core.LabelRecord, error)

	// DeleteLabels removes a document's label record. Missing records are ignored.
	DeleteLabels(ctx context.Context, documentID core.ID) error
}

// CacheRepository stores derived artifacts keyed by fingerprint.
type CacheRepository interface {
	Repository

	// GetCacheEntry retrieves an entry by fingerprint.
	// Returns ErrNotFound on a miss.
	GetCacheEntry(ctx context.Context, fingerprint string) (*core.CacheEntry, error)

	// PutCacheEntry stores an entry. An existing entry with the same fingerprint is overwritten.
	PutCacheEntry(ctx context.Context, entry *core.CacheEntry) error

	// TouchCacheEntry sets the entry's last accessed time.
	TouchCacheEntry(ctx context.Context, fingerprint string, at time.Time) error

	// ListCacheEntries returns entries of kind (all kinds if empty), optionally
	// restricted to folderID, newest first, up to limit (unbounded if <= 0).
	ListCacheEntries(ctx context.Context, kind string, folderID core.ID, limit int) ([]*core.CacheEntry, error)

	// DeleteCacheEntry removes an entry.
	// Returns ErrNotFound if the entry doesn't exist.
	DeleteCacheEntry(ctx context.Context, fingerprint string) error

	// DeleteCacheEntriesByFolder removes every entry scoped to folderID.
	DeleteCacheEntriesByFolder(ctx context.Context, folderID core.ID) (int, error)

	// DeleteCacheEntriesByDocument removes every entry computed from fileID,
	// plus entries scoped to folderID when it is non-zero.
	DeleteCacheEntriesByDocument(ctx context.Context, fileID string, folderID core.ID) (int, error)
}

// SyncRepository persists reconciliation watermarks.
type SyncRepository interface {
	Repository

	// GetWatermark returns the watermark for a source.
	// Returns nil, nil if the source was never synced.
	GetWatermark(ctx context.Context, source string) (*core.SyncWatermark, error)

	// SetWatermark upserts the watermark for its source.
	SetWatermark(ctx context.Context, watermark *core.SyncWatermark) error
}

// FailureRepository records ingestion failures.
type FailureRepository interface {
	Repository

	// AddFailure stores a failure record, assigning an ID from the sequence.
	AddFailure(ctx context.Context, failure *core.FailureRecord) (*core.FailureRecord, error)

	// ListFailures returns failure records, newest first, up to limit (unbounded if <= 0).
	ListFailures(ctx context.Context, limit int) ([]*core.FailureRecord, error)
}

// Repositories bundles every repository backed by one store.
type Repositories struct {
	Folders   FolderRepository
	Documents DocumentRepository
	Chunks    ChunkRepository
	Labels    LabelRepository
	Cache     CacheRepository
	Sync      SyncRepository
	Failures  FailureRepository
}

// Close closes every repository, returning the first error.
func (r *Repositories) Close() error {
	var first error
	for _, repo := range []Repository{r.Folders, r.Documents, r.Chunks, r.Labels, r.Cache, r.Sync, r.Failures} {
		if repo == nil {
			continue
		}
		if err := repo.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
