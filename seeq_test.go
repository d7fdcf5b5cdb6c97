package seeq

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/seeq/ai/mock"
	"github.com/poiesic/seeq/bridge"
	"github.com/poiesic/seeq/config"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/generation"
	"github.com/poiesic/seeq/ingestion"
	"github.com/poiesic/seeq/reembed"
	"github.com/poiesic/seeq/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(context.Background(), "", InMemory(), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func ingest(t *testing.T, e *Engine, filename, text, folder string) *ingestion.Result {
	t.Helper()
	result, err := e.Pipeline().ProcessAndStore(context.Background(),
		ingestion.Artifact{Filename: filename, Data: []byte(text)},
		ingestion.Options{FolderTitle: folder})
	require.NoError(t, err)
	return result
}

func TestOpen(t *testing.T) {
	t.Run("on disk", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "seeq_db")
		e, err := Open(context.Background(), dir, WithProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		assert.NotNil(t, e.Repositories())
		assert.NotNil(t, e.Pipeline())
		assert.NotNil(t, e.Searcher())
		assert.NotNil(t, e.Summarizer())
		assert.NotNil(t, e.Answerer())
		assert.NotNil(t, e.Cache())
		assert.NoError(t, e.Close())
	})

	t.Run("path is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
		e, err := Open(context.Background(), file, WithProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, e)
	})

	t.Run("invalid chunking", func(t *testing.T) {
		e, err := Open(context.Background(), "", InMemory(),
			WithProvider(mock.NewMockProvider()), WithChunking(100, 100))
		assert.Error(t, err)
		assert.Nil(t, e)
	})
}

func TestOpenConfig(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Chunking.Size = 200
	cfg.Chunking.Overlap = 20

	e, err := OpenConfig(context.Background(), cfg, WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer e.Close()
	_, isLinear := e.index.(*search.LinearIndex)
	assert.True(t, isLinear)

	cfg.Index.Type = "faiss"
	_, err = OpenConfig(context.Background(), cfg, WithProvider(mock.NewMockProvider()))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestEngineEndToEnd(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)

	first := ingest(t, e, "badgers.txt", "Badgers dig burrows in the forest. They sleep during the day.", "Wildlife")
	ingest(t, e, "rivers.txt", "Rivers carry water to the sea. Salmon swim upstream in autumn.", "Wildlife")
	assert.Positive(t, first.ChunkCount)

	folder, err := e.Folder(ctx, "Wildlife")
	require.NoError(t, err)
	assert.Equal(t, 2, folder.DocumentCount)

	byID, err := e.Folder(ctx, folder.Id.String())
	require.NoError(t, err)
	assert.Equal(t, folder.Title, byID.Title)

	_, err = e.Folder(ctx, "Nowhere")
	assert.ErrorIs(t, err, core.ErrFolderNotFound)

	results, err := e.Searcher().Search(ctx, "badgers dig burrows", 1, search.Filter{}, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "badgers.txt", results[0].Filename)

	answer, err := e.Answerer().Answer(ctx, "Where do badgers live?", generation.AnswerOptions{K: 2})
	require.NoError(t, err)
	assert.Equal(t, "mock answer", answer.Answer)
	assert.NotEmpty(t, answer.Sources)

	summary, err := e.Summarizer().Summarize(ctx, generation.SummaryRequest{FolderID: folder.Id})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.DocumentCount)

	entries, err := e.Cache().List(ctx, generation.CacheKindSummary, folder.Id, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	recs, err := e.Recommender().Recommend(ctx, generation.RecommendRequest{Keywords: []string{"otters"}, FolderID: folder.Id})
	require.NoError(t, err)
	assert.NotEmpty(t, recs.Items)

	deleted, err := e.DeleteFolder(ctx, folder.Id)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted.Documents)
	assert.Equal(t, 2, deleted.CacheEntries)

	folders, err := e.Folders(ctx)
	require.NoError(t, err)
	assert.Empty(t, folders)
}

func TestEngineReconciler(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)

	source := bridge.NewMemorySource("ocr_db.texts", bridge.Record{
		ID: "a1",
		Fields: map[string]any{
			"title":     "Scanned Letter",
			"pages":     []any{"Dear reader, the harvest was plentiful this year."},
			"timestamp": "2025-06-01 10:00:00",
		},
	})
	r, err := e.NewReconciler(source)
	require.NoError(t, err)

	result, err := r.Sync(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SyncedCount)

	doc, err := e.Repositories().Documents.GetDocumentByFileID(ctx, bridge.FileIDPrefix+"a1")
	require.NoError(t, err)
	assert.Equal(t, core.SourceBridge, doc.Source)

	folder, err := e.Folder(ctx, "Scanned Letter")
	require.NoError(t, err)
	assert.Equal(t, core.FolderTypeOCR, folder.Type)
}

func TestEngineReembedder(t *testing.T) {
	e := openTestEngine(t)
	ingest(t, e, "notes.txt", "Short notes about the weather and the garden.", "")

	var out bytes.Buffer
	r, err := e.NewReembedder(&reembed.Config{BatchSize: 10, ReportInterval: 10}, &out)
	require.NoError(t, err)
	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Positive(t, result.Chunks)
	assert.Contains(t, out.String(), "Reembedding complete")
}
