package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

// recordingIndex implements Indexer and remembers what it was given.
type recordingIndex struct {
	mu      sync.Mutex
	added   map[core.ID]bool
	removed []core.ID
	addErr  error
}

func newRecordingIndex() *recordingIndex {
	return &recordingIndex{added: make(map[core.ID]bool)}
}

func (r *recordingIndex) Add(ctx context.Context, chunks ...*core.Chunk) error {
	if r.addErr != nil {
		return r.addErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range chunks {
		r.added[c.Id] = true
	}
	return nil
}

func (r *recordingIndex) Remove(ctx context.Context, ids ...core.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.added, id)
	}
	r.removed = append(r.removed, ids...)
	return nil
}

func (r *recordingIndex) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.added)
}

type fixture struct {
	pipeline *Pipeline
	repos    *storage.Repositories
	provider *mock.MockProvider
	index    *recordingIndex
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	repos, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)

	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), mock.NewMockLabeler(), mock.NewMockGenerator("ok"))
	batcher, err := embedding.NewBatcher(provider.Embedder(),
		embedding.WithInitialInterval(time.Millisecond),
		embedding.WithMaxAttempts(2))
	require.NoError(t, err)

	index := newRecordingIndex()
	opts = append([]Option{WithBatcher(batcher), WithIndex(index), WithPoolSize(4)}, opts...)
	pipeline, err := NewPipeline(repos, provider, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		pipeline.Release()
		repos.Close()
		backend.Close()
	})
	return &fixture{pipeline: pipeline, repos: repos, provider: provider, index: index}
}

// sentences returns roughly n characters of plain prose.
func sentences(n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		fmt.Fprintf(&b, "Sentence number %d talks about storage engines and retrieval. ", i)
	}
	return strings.TrimSpace(b.String()[:n])
}

func TestNewPipelineRequiresCollaborators(t *testing.T) {
	repos, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	defer repos.Close()

	_, err = NewPipeline(nil, mock.NewMockProvider())
	assert.ErrorIs(t, err, ErrRepositoriesRequired)

	_, err = NewPipeline(&storage.Repositories{}, mock.NewMockProvider())
	assert.ErrorIs(t, err, ErrRepositoriesRequired)

	_, err = NewPipeline(repos, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)
}

func TestProcessAndStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	text := sentences(1200)

	result, err := f.pipeline.ProcessAndStore(ctx, Artifact{
		Filename: "engines.txt",
		Data:     []byte(text),
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.ChunkCount)
	assert.Len(t, result.ChunkIDs, 3)
	assert.NotEmpty(t, result.FileID)
	require.NotNil(t, result.Labels)

	doc, err := f.repos.Documents.GetDocument(ctx, result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusComplete, doc.Status)
	assert.Equal(t, 3, doc.ChunkCount)
	assert.Equal(t, "txt", doc.File.FileType)
	assert.Equal(t, int64(len(text)), doc.File.FileSize)
	assert.Equal(t, core.SourceUpload, doc.Source)
	assert.Equal(t, result.Labels.Category, doc.Labels.Category)

	chunks, err := f.repos.Chunks.GetChunksByDocument(ctx, doc.Id)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Sequence)
		assert.Equal(t, doc.FolderId, c.FolderId)
		assert.Equal(t, doc.File.FileID, c.FileID)
		assert.NotEmpty(t, c.Vector)
		assert.Equal(t, 500, c.ChunkSize)
		assert.Equal(t, 50, c.ChunkOverlap)
	}
	assert.Equal(t, 3, f.index.size())

	record, err := f.repos.Labels.GetLabels(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.SourceUpload, record.Source)

	folder, err := f.repos.Folders.GetFolder(ctx, doc.FolderId)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultFolderTitle, folder.Title)
	assert.Equal(t, 1, folder.DocumentCount)
	assert.Equal(t, 1, folder.FileCount)
}

func TestProcessAndStoreUnsupportedFormat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.pipeline.ProcessAndStore(ctx, Artifact{Filename: "slides.pptx", Data: []byte("x")}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)

	var formatErr *core.UnsupportedFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, ".pptx", formatErr.Ext)

	failures, err := f.repos.Failures.ListFailures(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, failures)

	folders, err := f.repos.Folders.ListFolders(ctx)
	require.NoError(t, err)
	assert.Empty(t, folders)
}

func TestProcessAndStoreDuplicateFileID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	artifact := Artifact{Filename: "a.txt", Data: []byte("some text here"), FileID: "file-1"}

	_, err := f.pipeline.ProcessAndStore(ctx, artifact, Options{})
	require.NoError(t, err)

	_, err = f.pipeline.ProcessAndStore(ctx, artifact, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPersistence)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestProcessAndStoreLabelingFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.provider.GetMockLabeler().AnalyzeFunc = func(ctx context.Context, text, filename string) (*core.Labels, error) {
		return nil, fmt.Errorf("%w: model offline", core.ErrLabeling)
	}

	result, err := f.pipeline.ProcessAndStore(ctx, Artifact{Filename: "a.txt", Data: []byte("plain words")}, Options{})
	require.NoError(t, err)
	assert.Nil(t, result.Labels)

	doc, err := f.repos.Documents.GetDocument(ctx, result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusComplete, doc.Status)
	assert.Nil(t, doc.Labels)

	_, err = f.repos.Labels.GetLabels(ctx, doc.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	failures, err := f.repos.Failures.ListFailures(ctx, 0)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, StageLabel, failures[0].Stage)
	assert.Equal(t, "a.txt", failures[0].Filename)
}

func TestProcessAndStoreEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.provider.GetMockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("quota exceeded")
	}

	_, err := f.pipeline.ProcessAndStore(ctx, Artifact{Filename: "a.txt", Data: []byte("plain words"), FileID: "f-embed"}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingService)

	doc, err := f.repos.Documents.GetDocumentByFileID(ctx, "f-embed")
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, doc.Status)
	assert.Equal(t, 1, doc.ChunkCount)
	assert.Contains(t, doc.Error, "quota exceeded")

	failures, err := f.repos.Failures.ListFailures(ctx, 0)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, StageEmbed, failures[0].Stage)
	assert.Equal(t, doc.Id, failures[0].DocumentId)

	count, err := f.repos.Chunks.CountChunks(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	folder, err := f.repos.Folders.GetFolder(ctx, doc.FolderId)
	require.NoError(t, err)
	assert.Zero(t, folder.DocumentCount)
}

func TestProcessAndStoreExtractFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.pipeline.ProcessAndStore(ctx, Artifact{Filename: "broken.docx", Data: []byte("not a zip")}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrParse)

	failures, err := f.repos.Failures.ListFailures(ctx, 0)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, StageExtract, failures[0].Stage)
}

func TestProcessAndStoreUnknownFolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.pipeline.ProcessAndStore(ctx, Artifact{Filename: "a.txt", Data: []byte("orphan text"), FileID: "orphan"},
		Options{FolderID: "424242"})
	assert.ErrorIs(t, err, core.ErrFolderNotFound)

	failures, err := f.repos.Failures.ListFailures(ctx, 0)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, StageFolder, failures[0].Stage)
	assert.Equal(t, "orphan", failures[0].FileID)
	assert.Equal(t, "a.txt", failures[0].Filename)

	_, err = f.repos.Documents.GetDocumentByFileID(ctx, "orphan")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestResolveFolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("default folder", func(t *testing.T) {
		a, err := f.pipeline.ResolveFolder(ctx, "", "")
		require.NoError(t, err)
		b, err := f.pipeline.ResolveFolder(ctx, "", "  ")
		require.NoError(t, err)
		assert.Equal(t, core.DefaultFolderTitle, a.Title)
		assert.Equal(t, core.FolderTypeLibrary, a.Type)
		assert.Equal(t, a.Id, b.Id)
	})

	t.Run("title is get-or-create", func(t *testing.T) {
		a, err := f.pipeline.ResolveFolder(ctx, "", "Research")
		require.NoError(t, err)
		b, err := f.pipeline.ResolveFolder(ctx, "", " Research ")
		require.NoError(t, err)
		assert.Equal(t, a.Id, b.Id)
	})

	t.Run("existing id", func(t *testing.T) {
		created, err := f.pipeline.ResolveFolder(ctx, "", "Papers")
		require.NoError(t, err)
		found, err := f.pipeline.ResolveFolder(ctx, created.Id.String(), "")
		require.NoError(t, err)
		assert.Equal(t, created.Id, found.Id)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := f.pipeline.ResolveFolder(ctx, "12345", "")
		assert.ErrorIs(t, err, core.ErrFolderNotFound)

		var notFound *core.FolderNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, core.ID(12345), notFound.ID)
	})

	t.Run("unparseable id is a title", func(t *testing.T) {
		folder, err := f.pipeline.ResolveFolder(ctx, "Meeting Notes", "")
		require.NoError(t, err)
		assert.Equal(t, "Meeting Notes", folder.Title)
	})
}

func TestStoreWithIndexFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.index.addErr = errors.New("index unavailable")

	folder, err := f.pipeline.ResolveFolder(ctx, "", "")
	require.NoError(t, err)
	doc := &core.Document{
		FolderId: folder.Id,
		Text:     "indexed text",
		File:     core.FileMetadata{FileID: "ocr_1", OriginalFilename: "x.ocr", FileType: "ocr"},
		Source:   core.SourceBridge,
	}

	_, err = f.pipeline.Store(ctx, doc)
	require.Error(t, err)

	stored, err := f.repos.Documents.GetDocumentByFileID(ctx, "ocr_1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, stored.Status)
}
