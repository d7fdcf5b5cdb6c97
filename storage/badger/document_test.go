package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDocument(folderID core.ID, fileID string) *core.Document {
	return &core.Document{
		FolderId: folderID,
		Text:     "document text for " + fileID,
		File: core.FileMetadata{
			FileID:           fileID,
			OriginalFilename: fileID + ".txt",
			FileType:         "txt",
		},
		Source: core.SourceUpload,
	}
}

func TestDocumentRepository_AddAndGet(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	doc, err := repos.Documents.AddDocument(ctx, newTestDocument(1, "file-a"))
	require.NoError(t, err)
	assert.NotZero(t, doc.Id)
	assert.Equal(t, core.StatusPending, doc.Status)
	assert.False(t, doc.CreatedAt.IsZero())

	got, err := repos.Documents.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, "file-a", got.File.FileID)

	got, err = repos.Documents.GetDocumentByFileID(ctx, "file-a")
	require.NoError(t, err)
	assert.Equal(t, doc.Id, got.Id)

	exists, err := repos.Documents.ExistsByFileID(ctx, "file-a")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repos.Documents.ExistsByFileID(ctx, "file-b")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repos.Documents.GetDocumentByFileID(ctx, "file-b")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentRepository_UniqueFileID(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	_, err := repos.Documents.AddDocument(ctx, newTestDocument(1, "dup"))
	require.NoError(t, err)

	_, err = repos.Documents.AddDocument(ctx, newTestDocument(2, "dup"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestDocumentRepository_Validation(t *testing.T) {
	repos := newTestRepositories(t)

	_, err := repos.Documents.AddDocument(context.Background(), newTestDocument(1, ""))
	assert.ErrorIs(t, err, core.ErrEmptyFileID)
}

func TestDocumentRepository_UpdateMovesIndexes(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	doc, err := repos.Documents.AddDocument(ctx, newTestDocument(1, "movable"))
	require.NoError(t, err)

	doc.FolderId = 2
	doc.Status = core.StatusComplete
	doc.ChunkCount = 4
	_, err = repos.Documents.UpdateDocument(ctx, doc)
	require.NoError(t, err)

	inOld, err := repos.Documents.ListDocumentsByFolder(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, inOld)

	inNew, err := repos.Documents.ListDocumentsByFolder(ctx, 2)
	require.NoError(t, err)
	require.Len(t, inNew, 1)
	assert.Equal(t, core.StatusComplete, inNew[0].Status)
	assert.Equal(t, 4, inNew[0].ChunkCount)

	missing := newTestDocument(1, "ghost")
	missing.Id = 9999
	_, err = repos.Documents.UpdateDocument(ctx, missing)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentRepository_ListByFolder(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	for _, fileID := range []string{"a", "b", "c"} {
		_, err := repos.Documents.AddDocument(ctx, newTestDocument(7, fileID))
		require.NoError(t, err)
	}
	_, err := repos.Documents.AddDocument(ctx, newTestDocument(8, "other"))
	require.NoError(t, err)

	docs, err := repos.Documents.ListDocumentsByFolder(ctx, 7)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "a", docs[0].File.FileID)
	assert.Equal(t, "c", docs[2].File.FileID)
}

func TestDocumentRepository_ListIncomplete(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	pending, err := repos.Documents.AddDocument(ctx, newTestDocument(1, "pending"))
	require.NoError(t, err)

	done, err := repos.Documents.AddDocument(ctx, newTestDocument(1, "done"))
	require.NoError(t, err)
	done.Status = core.StatusComplete
	_, err = repos.Documents.UpdateDocument(ctx, done)
	require.NoError(t, err)

	docs, err := repos.Documents.ListIncompleteDocuments(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, pending.Id, docs[0].Id)

	docs, err = repos.Documents.ListIncompleteDocuments(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDocumentRepository_Delete(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	doc, err := repos.Documents.AddDocument(ctx, newTestDocument(1, "gone"))
	require.NoError(t, err)

	require.NoError(t, repos.Documents.DeleteDocument(ctx, doc.Id))

	_, err = repos.Documents.GetDocument(ctx, doc.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	exists, err := repos.Documents.ExistsByFileID(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, exists)

	// The file id is free again
	_, err = repos.Documents.AddDocument(ctx, newTestDocument(1, "gone"))
	require.NoError(t, err)

	assert.ErrorIs(t, repos.Documents.DeleteDocument(ctx, 424242), storage.ErrNotFound)
}

func TestDocumentRepository_GetDocuments(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	a, err := repos.Documents.AddDocument(ctx, newTestDocument(1, "x"))
	require.NoError(t, err)
	b, err := repos.Documents.AddDocument(ctx, newTestDocument(1, "y"))
	require.NoError(t, err)

	docs, err := repos.Documents.GetDocuments(ctx, a.Id, 5555, b.Id)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, a.Id, docs[0].Id)
	assert.Equal(t, b.Id, docs[1].Id)
}
