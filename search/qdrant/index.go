// Package qdrant implements search.Index on a Qdrant collection.
//
// Each chunk becomes one point whose numeric ID is the chunk ID. The payload
// carries the filterable fields only; search hits are hydrated from the
// chunk repository so results always reflect the stored chunk.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/search"
	"github.com/poiesic/seeq/storage"
	"github.com/qdrant/go-client/qdrant"
)

// Payload fields. Each has a payload index.
const (
	fieldDocumentID = "document_id"
	fieldFolderID   = "folder_id"
	fieldFileID     = "file_id"
	fieldSequence   = "sequence"
)

const upsertBatchSize = 100

var (
	// ErrUnreachable is returned when Qdrant does not answer health checks.
	ErrUnreachable = errors.New("qdrant unreachable")

	// ErrDimensionMismatch is returned for vectors of the wrong size.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidConfig is returned for an unusable Config.
	ErrInvalidConfig = errors.New("invalid qdrant config")
)

// Config locates the Qdrant server and collection.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	// Dimension is the embedding size the collection is created with.
	Dimension int
}

// DefaultConfig returns a local server on the gRPC port with a "seeq_chunks" collection.
func DefaultConfig() Config {
	return Config{
		Host:       "localhost",
		Port:       6334,
		Collection: "seeq_chunks",
		Dimension:  3072,
	}
}

func (c Config) validate() error {
	if c.Host == "" || c.Port <= 0 {
		return fmt.Errorf("%w: host and port required", ErrInvalidConfig)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection required", ErrInvalidConfig)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return nil
}

// Client is the subset of *qdrant.Client the index uses.
type Client interface {
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	CreateFieldIndex(ctx context.Context, request *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// Index stores chunk vectors in Qdrant.
type Index struct {
	client     Client
	chunks     storage.ChunkRepository
	collection string
	dimension  int
	retry      func() backoff.BackOff
	logger     *slog.Logger
}

var _ search.Index = (*Index)(nil)

type Option func(*Index)

func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) {
		if logger == nil {
			logger = slog.Default()
		}
		i.logger = logger
	}
}

// WithRetry replaces the exponential policy used for health checks and upserts.
func WithRetry(policy func() backoff.BackOff) Option {
	return func(i *Index) {
		if policy != nil {
			i.retry = policy
		}
	}
}

// New connects to Qdrant, waits for it to become healthy and ensures the
// collection exists.
func New(ctx context.Context, config Config, chunks storage.ChunkRepository, opts ...Option) (*Index, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	index, err := NewWithClient(ctx, client, config, chunks, opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	return index, nil
}

// NewWithClient builds an index over an existing client.
func NewWithClient(ctx context.Context, client Client, config Config, chunks storage.ChunkRepository, opts ...Option) (*Index, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if chunks == nil {
		return nil, search.ErrRepositoriesRequired
	}

	i := &Index{
		client:     client,
		chunks:     chunks,
		collection: config.Collection,
		dimension:  config.Dimension,
		retry:      defaultRetry,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With("component", "qdrant-index", "collection", i.collection)

	if err := i.healthCheck(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	if err := i.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return i, nil
}

func defaultRetry() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

func (i *Index) healthCheck(ctx context.Context) error {
	return backoff.Retry(func() error {
		reply, err := i.client.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if reply == nil || reply.GetTitle() == "" {
			return errors.New("health check returned invalid response")
		}
		return nil
	}, backoff.WithContext(i.retry(), ctx))
}

// ensureCollection creates the collection and its payload indexes if missing.
func (i *Index) ensureCollection(ctx context.Context) error {
	exists, err := i.client.CollectionExists(ctx, i.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = i.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(i.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	fields := map[string]qdrant.FieldType{
		fieldFolderID:   qdrant.FieldType_FieldTypeInteger,
		fieldDocumentID: qdrant.FieldType_FieldTypeInteger,
		fieldFileID:     qdrant.FieldType_FieldTypeKeyword,
	}
	for field, fieldType := range fields {
		_, err := i.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: i.collection,
			FieldName:      field,
			FieldType:      fieldType.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}
	i.logger.Info("created collection", "dimension", i.dimension)
	return nil
}

// Add upserts chunk vectors in batches, retrying each batch.
func (i *Index) Add(ctx context.Context, chunks ...*core.Chunk) error {
	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(chunks))

		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, chunk := range chunks[start:end] {
			if len(chunk.Vector) != i.dimension {
				return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
					ErrDimensionMismatch, chunk.Id, len(chunk.Vector), i.dimension)
			}
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(chunk.Id)),
				Vectors: qdrant.NewVectors(chunk.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					fieldDocumentID: int64(chunk.DocumentId),
					fieldFolderID:   int64(chunk.FolderId),
					fieldFileID:     chunk.FileID,
					fieldSequence:   int64(chunk.Sequence),
				}),
			})
		}

		err := backoff.Retry(func() error {
			_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: i.collection,
				Wait:           qdrant.PtrOf(true),
				Points:         points,
			})
			return err
		}, backoff.WithContext(i.retry(), ctx))
		if err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// Remove deletes points by chunk ID.
func (i *Index) Remove(ctx context.Context, ids ...core.ID) error {
	if len(ids) == 0 {
		return nil
	}
	points := make([]*qdrant.PointId, len(ids))
	for n, id := range ids {
		points[n] = qdrant.NewIDNum(uint64(id))
	}
	_, err := i.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: i.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(points...),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// Search queries the collection and hydrates hits from the chunk repository.
// Points whose chunk no longer exists are skipped.
func (i *Index) Search(ctx context.Context, vector []float32, k int, filter core.ChunkFilter) ([]core.ScoredChunk, error) {
	if k <= 0 {
		return []core.ScoredChunk{}, nil
	}
	if len(vector) != i.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), i.dimension)
	}

	points, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         buildFilter(filter),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(false),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}

	scored := make([]core.ScoredChunk, 0, len(points))
	for _, point := range points {
		id := core.ID(point.GetId().GetNum())
		chunk, err := i.chunks.GetChunk(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			i.logger.Debug("skipping stale point", "chunk_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		scored = append(scored, core.ScoredChunk{Chunk: chunk, Score: point.GetScore()})
	}
	return scored, nil
}

// Close closes the client connection.
func (i *Index) Close() error {
	if i.client != nil {
		return i.client.Close()
	}
	return nil
}

func buildFilter(filter core.ChunkFilter) *qdrant.Filter {
	var must []*qdrant.Condition
	if filter.FolderId != 0 {
		must = append(must, qdrant.NewMatchInt(fieldFolderID, int64(filter.FolderId)))
	}
	if filter.DocumentId != 0 {
		must = append(must, qdrant.NewMatchInt(fieldDocumentID, int64(filter.DocumentId)))
	}
	if filter.FileID != "" {
		must = append(must, qdrant.NewMatch(fieldFileID, filter.FileID))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}
