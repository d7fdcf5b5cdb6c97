package qdrant

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/search"
	"github.com/poiesic/seeq/storage"
	"github.com/poiesic/seeq/storage/badger"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory Qdrant that scores points by cosine.
type fakeClient struct {
	mu          sync.Mutex
	healthy     bool
	exists      bool
	created     int
	indexed     []string
	points      map[uint64]*qdrant.PointStruct
	upsertFails int
	upserts     int
	closed      bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{healthy: true, points: make(map[uint64]*qdrant.PointStruct)}
}

func (f *fakeClient) HealthCheck(context.Context) (*qdrant.HealthCheckReply, error) {
	if !f.healthy {
		return nil, errors.New("connection refused")
	}
	return &qdrant.HealthCheckReply{Title: "qdrant - vector search engine"}, nil
}

func (f *fakeClient) CollectionExists(context.Context, string) (bool, error) {
	return f.exists, nil
}

func (f *fakeClient) CreateCollection(context.Context, *qdrant.CreateCollection) error {
	f.created++
	f.exists = true
	return nil
}

func (f *fakeClient) CreateFieldIndex(_ context.Context, req *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error) {
	f.indexed = append(f.indexed, req.GetFieldName())
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeClient) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.upsertFails > 0 {
		f.upsertFails--
		return nil, errors.New("transient")
	}
	for _, p := range req.GetPoints() {
		f.points[p.GetId().GetNum()] = p
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeClient) Delete(_ context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range req.GetPoints().GetPoints().GetIds() {
		delete(f.points, id.GetNum())
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeClient) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	query := req.GetQuery().GetNearest().GetDense().GetData()

	var hits []*qdrant.ScoredPoint
	for id, p := range f.points {
		if !matches(p, req.GetFilter()) {
			continue
		}
		vector := p.GetVectors().GetVector().GetDense().GetData()
		hits = append(hits, &qdrant.ScoredPoint{Id: qdrant.NewIDNum(id), Score: search.Cosine(query, vector)})
	}
	slices.SortFunc(hits, func(a, b *qdrant.ScoredPoint) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.GetId().GetNum(), b.GetId().GetNum())
	})
	if limit := int(req.GetLimit()); len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func matches(p *qdrant.PointStruct, filter *qdrant.Filter) bool {
	for _, cond := range filter.GetMust() {
		field := cond.GetField()
		value := p.GetPayload()[field.GetKey()]
		if keyword := field.GetMatch().GetKeyword(); keyword != "" {
			if value.GetStringValue() != keyword {
				return false
			}
			continue
		}
		if value.GetIntegerValue() != field.GetMatch().GetInteger() {
			return false
		}
	}
	return true
}

func quickRetry() backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
}

func testConfig() Config {
	config := DefaultConfig()
	config.Dimension = 2
	return config
}

func newTestIndex(t *testing.T, client *fakeClient) (*Index, *storage.Repositories) {
	t.Helper()
	repos, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		repos.Close()
		backend.Close()
	})

	index, err := NewWithClient(context.Background(), client, testConfig(), repos.Chunks, WithRetry(quickRetry))
	require.NoError(t, err)
	return index, repos
}

func TestNewWithClient(t *testing.T) {
	t.Run("creates collection and payload indexes", func(t *testing.T) {
		client := newFakeClient()
		newTestIndex(t, client)
		assert.Equal(t, 1, client.created)
		assert.ElementsMatch(t, []string{fieldFolderID, fieldDocumentID, fieldFileID}, client.indexed)
	})

	t.Run("existing collection untouched", func(t *testing.T) {
		client := newFakeClient()
		client.exists = true
		newTestIndex(t, client)
		assert.Zero(t, client.created)
		assert.Empty(t, client.indexed)
	})

	t.Run("unhealthy server", func(t *testing.T) {
		client := newFakeClient()
		client.healthy = false
		_, err := NewWithClient(context.Background(), client, testConfig(), nil, WithRetry(quickRetry))
		assert.ErrorIs(t, err, search.ErrRepositoriesRequired)

		repos, backend, err := badger.NewMemoryRepositories()
		require.NoError(t, err)
		defer backend.Close()
		defer repos.Close()
		_, err = NewWithClient(context.Background(), client, testConfig(), repos.Chunks, WithRetry(quickRetry))
		assert.ErrorIs(t, err, ErrUnreachable)
	})

	t.Run("invalid config", func(t *testing.T) {
		config := testConfig()
		config.Dimension = 0
		_, err := NewWithClient(context.Background(), newFakeClient(), config, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)

		config = testConfig()
		config.Collection = ""
		_, err = New(context.Background(), config, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestIndexAddSearchRemove(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	index, repos := newTestIndex(t, client)

	stored, err := repos.Chunks.AddChunks(ctx,
		&core.Chunk{DocumentId: 1, FileID: "a", FolderId: 10, Sequence: 0, Text: "x", Vector: []float32{0, 1}},
		&core.Chunk{DocumentId: 1, FileID: "a", FolderId: 10, Sequence: 1, Text: "y", Vector: []float32{1, 0}},
		&core.Chunk{DocumentId: 2, FileID: "b", FolderId: 20, Sequence: 0, Text: "z", Vector: []float32{1, 1}},
	)
	require.NoError(t, err)
	require.NoError(t, index.Add(ctx, stored...))
	assert.Len(t, client.points, 3)

	t.Run("top k", func(t *testing.T) {
		scored, err := index.Search(ctx, []float32{1, 0}, 2, core.ChunkFilter{})
		require.NoError(t, err)
		require.Len(t, scored, 2)
		assert.Equal(t, stored[1].Id, scored[0].Chunk.Id)
		assert.Equal(t, "y", scored[0].Chunk.Text)
		assert.Equal(t, stored[2].Id, scored[1].Chunk.Id)
	})

	t.Run("filters", func(t *testing.T) {
		scored, err := index.Search(ctx, []float32{1, 0}, 10, core.ChunkFilter{FolderId: 20})
		require.NoError(t, err)
		require.Len(t, scored, 1)
		assert.Equal(t, stored[2].Id, scored[0].Chunk.Id)

		scored, err = index.Search(ctx, []float32{1, 0}, 10, core.ChunkFilter{FileID: "a", DocumentId: 1})
		require.NoError(t, err)
		assert.Len(t, scored, 2)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := index.Search(ctx, []float32{1, 0, 0}, 1, core.ChunkFilter{})
		assert.ErrorIs(t, err, ErrDimensionMismatch)

		err = index.Add(ctx, &core.Chunk{Id: 99, Vector: []float32{1}})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("stale points are skipped", func(t *testing.T) {
		_, err := repos.Chunks.DeleteChunksByDocument(ctx, 2)
		require.NoError(t, err)
		scored, err := index.Search(ctx, []float32{1, 1}, 10, core.ChunkFilter{})
		require.NoError(t, err)
		assert.Len(t, scored, 2)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, index.Remove(ctx, stored[0].Id, stored[1].Id))
		assert.Len(t, client.points, 1)
		require.NoError(t, index.Remove(ctx))
	})

	require.NoError(t, index.Close())
	assert.True(t, client.closed)
}

func TestIndexAddRetries(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	index, _ := newTestIndex(t, client)

	client.upsertFails = 2
	require.NoError(t, index.Add(ctx, &core.Chunk{Id: 1, Vector: []float32{1, 0}}))
	assert.Equal(t, 3, client.upserts)

	client.upsertFails = 5
	err := index.Add(ctx, &core.Chunk{Id: 2, Vector: []float32{1, 0}})
	assert.Error(t, err)
}

func TestBuildFilter(t *testing.T) {
	assert.Nil(t, buildFilter(core.ChunkFilter{}))

	filter := buildFilter(core.ChunkFilter{FolderId: 7, FileID: "f"})
	require.NotNil(t, filter)
	assert.Len(t, filter.GetMust(), 2)
}
