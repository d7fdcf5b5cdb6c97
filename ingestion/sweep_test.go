package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addStale stores a pending document last touched an hour ago.
func addStale(t *testing.T, f *fixture, fileID, text string) *core.Document {
	t.Helper()
	ctx := context.Background()
	folder, err := f.pipeline.ResolveFolder(ctx, "", "")
	require.NoError(t, err)

	doc, err := f.repos.Documents.AddDocument(ctx, &core.Document{
		FolderId:  folder.Id,
		Text:      text,
		File:      core.FileMetadata{FileID: fileID, OriginalFilename: fileID + ".txt", FileType: "txt"},
		Source:    core.SourceUpload,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	})
	require.NoError(t, err)
	return doc
}

func TestSweepResumes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stale := addStale(t, f, "stale-1", sentences(700))

	// A partial chunk left by an interrupted run
	_, err := f.repos.Chunks.AddChunks(ctx, &core.Chunk{DocumentId: stale.Id, FolderId: stale.FolderId, Text: "partial"})
	require.NoError(t, err)

	// Fresh documents are inside the grace period
	fresh, err := f.repos.Documents.AddDocument(ctx, &core.Document{
		FolderId: stale.FolderId,
		Text:     "fresh",
		File:     core.FileMetadata{FileID: "fresh-1"},
	})
	require.NoError(t, err)

	result, err := f.pipeline.Sweep(ctx, SweepOptions{})
	require.NoError(t, err)
	assert.Equal(t, &SweepResult{Examined: 1, Resumed: 1}, result)

	doc, err := f.repos.Documents.GetDocument(ctx, stale.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusComplete, doc.Status)
	assert.NotNil(t, doc.Labels)

	chunks, err := f.repos.Chunks.GetChunksByDocument(ctx, stale.Id)
	require.NoError(t, err)
	assert.Len(t, chunks, doc.ChunkCount)
	assert.Equal(t, 2, doc.ChunkCount)
	for _, c := range chunks {
		assert.NotEqual(t, "partial", c.Text)
	}

	pending, err := f.repos.Documents.GetDocument(ctx, fresh.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, pending.Status)

	folder, err := f.repos.Folders.GetFolder(ctx, stale.FolderId)
	require.NoError(t, err)
	assert.Equal(t, 1, folder.DocumentCount)
}

func TestSweepDiscards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, id := range []string{"a", "b", "c"} {
		addStale(t, f, id, "stale text "+id)
	}

	result, err := f.pipeline.Sweep(ctx, SweepOptions{Discard: true})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Examined)
	assert.Equal(t, 3, result.Discarded)

	for _, id := range []string{"a", "b", "c"} {
		_, err := f.repos.Documents.GetDocumentByFileID(ctx, id)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
}

func TestDeleteFolderCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var folderID core.ID
	for _, name := range []string{"one.txt", "two.txt"} {
		result, err := f.pipeline.ProcessAndStore(ctx, Artifact{Filename: name, Data: []byte(sentences(600))},
			Options{FolderTitle: "Doomed"})
		require.NoError(t, err)
		folderID = result.FolderID
	}
	keep, err := f.pipeline.ProcessAndStore(ctx, Artifact{Filename: "keep.txt", Data: []byte("kept words")}, Options{})
	require.NoError(t, err)

	require.NoError(t, f.repos.Cache.PutCacheEntry(ctx, &core.CacheEntry{
		Fingerprint: "fp-1",
		Kind:        "summary",
		FolderId:    folderID,
		Payload:     "cached",
	}))

	result, err := f.pipeline.DeleteFolder(ctx, folderID)
	require.NoError(t, err)
	assert.Equal(t, &DeleteFolderResult{Documents: 2, CacheEntries: 1}, result)

	_, err = f.repos.Folders.GetFolder(ctx, folderID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	count, err := f.repos.Chunks.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, keep.ChunkCount, count)
	assert.Equal(t, keep.ChunkCount, f.index.size())

	_, err = f.pipeline.DeleteFolder(ctx, folderID)
	assert.ErrorIs(t, err, core.ErrFolderNotFound)
}

func TestDeleteDocumentDecrementsCounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	result, err := f.pipeline.ProcessAndStore(ctx, Artifact{Filename: "a.txt", Data: []byte("some words")}, Options{})
	require.NoError(t, err)

	require.NoError(t, f.pipeline.DeleteDocument(ctx, result.DocumentID))

	folder, err := f.repos.Folders.GetFolder(ctx, result.FolderID)
	require.NoError(t, err)
	assert.Zero(t, folder.DocumentCount)
	assert.Zero(t, folder.FileCount)

	_, err = f.repos.Labels.GetLabels(ctx, result.DocumentID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = f.pipeline.DeleteDocument(ctx, result.DocumentID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteDocumentEvictsCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	result, err := f.pipeline.ProcessAndStore(ctx, Artifact{Filename: "a.txt", Data: []byte("some words"), FileID: "f1"},
		Options{FolderTitle: "Notes"})
	require.NoError(t, err)

	for _, e := range []*core.CacheEntry{
		{Fingerprint: "names-file", Kind: "summary", DocumentIDs: []string{"f1"}},
		{Fingerprint: "folder-scoped", Kind: "summary", FolderId: result.FolderID},
		{Fingerprint: "unrelated", Kind: "summary", DocumentIDs: []string{"f9"}},
	} {
		require.NoError(t, f.repos.Cache.PutCacheEntry(ctx, e))
	}

	require.NoError(t, f.pipeline.DeleteDocument(ctx, result.DocumentID))

	left, err := f.repos.Cache.ListCacheEntries(ctx, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "unrelated", left[0].Fingerprint)
}
