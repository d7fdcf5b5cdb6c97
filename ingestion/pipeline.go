package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/seeq/ai"
	"github.com/poiesic/seeq/chunker"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/embedding"
	"github.com/poiesic/seeq/loader"
	"github.com/poiesic/seeq/preprocess"
	"github.com/poiesic/seeq/storage"
)

// Indexer receives chunks as they are stored and removed.
// search.Index implementations satisfy it.
type Indexer interface {
	Add(ctx context.Context, chunks ...*core.Chunk) error
	Remove(ctx context.Context, ids ...core.ID) error
}

// Pipeline orchestrates the ingestion of documents.
type Pipeline struct {
	folders   storage.FolderRepository
	documents storage.DocumentRepository
	chunks    storage.ChunkRepository
	labels    storage.LabelRepository
	cache     storage.CacheRepository
	failures  storage.FailureRepository
	labeler   ai.Labeler
	batcher   *embedding.Batcher
	chunker   *chunker.Chunker
	index     Indexer
	pool      *ants.Pool
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size used by Sweep.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithChunker replaces the default chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(p *Pipeline) error {
		if c != nil {
			p.chunker = c
		}
		return nil
	}
}

// WithBatcher replaces the default embedding batcher.
func WithBatcher(b *embedding.Batcher) Option {
	return func(p *Pipeline) error {
		if b != nil {
			p.batcher = b
		}
		return nil
	}
}

// WithIndex registers an index kept in step with stored chunks.
func WithIndex(index Indexer) Option {
	return func(p *Pipeline) error {
		p.index = index
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(repos *storage.Repositories, provider ai.AIProvider, opts ...Option) (*Pipeline, error) {
	if repos == nil || repos.Folders == nil || repos.Documents == nil || repos.Chunks == nil ||
		repos.Labels == nil || repos.Failures == nil {
		return nil, ErrRepositoriesRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		folders:   repos.Folders,
		documents: repos.Documents,
		chunks:    repos.Chunks,
		labels:    repos.Labels,
		cache:     repos.Cache,
		failures:  repos.Failures,
		labeler:   provider.Labeler(),
		pool:      pool,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	if p.chunker == nil {
		if p.chunker, err = chunker.New(); err != nil {
			p.Release()
			return nil, err
		}
	}
	if p.batcher == nil {
		if p.batcher, err = embedding.NewBatcher(provider.Embedder(), embedding.WithLogger(p.logger)); err != nil {
			p.Release()
			return nil, err
		}
	}
	return p, nil
}

// Artifact is an uploaded file.
type Artifact struct {
	Filename string
	Data     []byte
	// FileID is the external identifier; a random UUID is assigned when empty.
	FileID      string
	Description string
}

// Options holds optional parameters for ProcessAndStore.
type Options struct {
	// FolderID selects an existing folder. An id that does not parse is used as a title.
	FolderID string
	// FolderTitle selects or creates a library folder by title.
	FolderTitle string
	Metadata    map[string]string
}

// Result describes a stored document.
type Result struct {
	DocumentID core.ID
	FolderID   core.ID
	FileID     string
	ChunkIDs   []core.ID
	ChunkCount int
	Labels     *core.Labels
}

// ProcessAndStore extracts, labels, chunks, embeds and stores an uploaded file.
// An unsupported extension fails before anything is written.
func (p *Pipeline) ProcessAndStore(ctx context.Context, artifact Artifact, opts Options) (*Result, error) {
	if strings.TrimSpace(artifact.Filename) == "" {
		return nil, ErrEmptyFilename
	}
	if artifact.FileID == "" {
		artifact.FileID = uuid.NewString()
	}

	loaded, err := loader.Load(ctx, artifact.Filename, artifact.Data)
	if err != nil {
		if !loader.Supported(artifact.Filename) {
			return nil, err
		}
		p.recordFailure(ctx, &core.Document{File: core.FileMetadata{
			FileID:           artifact.FileID,
			OriginalFilename: artifact.Filename,
		}}, StageExtract, err)
		return nil, fmt.Errorf("%w: %w", core.ErrParse, err)
	}
	text := preprocess.Normalize(loaded.Text)

	folder, err := p.ResolveFolder(ctx, opts.FolderID, opts.FolderTitle)
	if err != nil {
		p.recordFailure(ctx, &core.Document{File: core.FileMetadata{
			FileID:           artifact.FileID,
			OriginalFilename: artifact.Filename,
		}}, StageFolder, err)
		return nil, err
	}

	doc := &core.Document{
		FolderId: folder.Id,
		Text:     text,
		File: core.FileMetadata{
			FileID:           artifact.FileID,
			OriginalFilename: artifact.Filename,
			FileType:         loaded.FileType,
			FileSize:         int64(len(artifact.Data)),
			Description:      artifact.Description,
		},
		Source:   core.SourceUpload,
		Metadata: opts.Metadata,
	}

	result, err := p.Store(ctx, doc)
	if err != nil {
		return nil, err
	}

	if err := p.folders.TouchFolder(ctx, folder.Id); err != nil {
		p.logger.Warn("failed to touch folder", "folder", folder.Id, "err", err)
	}
	if err := p.folders.IncrementFolderCounts(ctx, folder.Id, 1, 1); err != nil {
		p.logger.Warn("failed to update folder counts", "folder", folder.Id, "err", err)
	}

	p.logger.Info("ingested document",
		"filename", artifact.Filename,
		"document", result.DocumentID,
		"folder", folder.Id,
		"chunks", result.ChunkCount)
	return result, nil
}

// Store labels, persists, chunks and embeds an already extracted document.
// doc must carry its folder, file id and normalized text.
func (p *Pipeline) Store(ctx context.Context, doc *core.Document) (*Result, error) {
	labels := p.label(ctx, doc)

	doc.Status = core.StatusPending
	doc.ChunkCount = 0
	if _, err := p.documents.AddDocument(ctx, doc); err != nil {
		err = fmt.Errorf("%w: %w", core.ErrPersistence, err)
		p.recordFailure(ctx, doc, StagePersist, err)
		return nil, err
	}

	return p.process(ctx, doc, labels)
}

// label runs the labeler. Failure is recorded and yields nil labels.
func (p *Pipeline) label(ctx context.Context, doc *core.Document) *core.Labels {
	labels, err := p.labeler.Analyze(ctx, doc.Text, doc.File.OriginalFilename)
	if err != nil {
		p.logger.Warn("labeling failed, continuing without labels",
			"file_id", doc.File.FileID,
			"err", err)
		p.addFailure(ctx, doc, StageLabel, err)
		return nil
	}
	return labels
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

func now() time.Time {
	return time.Now().UTC()
}
