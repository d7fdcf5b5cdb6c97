package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig locates the OCR service's collection.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// DefaultMongoConfig returns the OCR service's default location.
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "ocr_db",
		Collection: "texts",
	}
}

// ErrSourceUnavailable is returned when the foreign store cannot be reached.
var ErrSourceUnavailable = errors.New("bridge source unavailable")

// MongoSource reads OCR records from a Mongo collection.
type MongoSource struct {
	client     *mongo.Client
	collection *mongo.Collection
	name       string
}

var _ Source = (*MongoSource)(nil)

// NewMongoSource connects to the configured collection and pings the server.
func NewMongoSource(ctx context.Context, config MongoConfig) (*MongoSource, error) {
	defaults := DefaultMongoConfig()
	if strings.TrimSpace(config.URI) == "" {
		config.URI = defaults.URI
	}
	if config.Database == "" {
		config.Database = defaults.Database
	}
	if config.Collection == "" {
		config.Collection = defaults.Collection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return &MongoSource{
		client:     client,
		collection: client.Database(config.Database).Collection(config.Collection),
		name:       config.Database + "." + config.Collection,
	}, nil
}

func (s *MongoSource) Name() string {
	return s.name
}

// Candidates finds records newer than since. The OCR service has written
// timestamps both as dates and as "2006-01-02 15:04:05" strings, so both
// encodings are compared.
func (s *MongoSource) Candidates(ctx context.Context, since *time.Time) ([]Record, error) {
	cursor, err := s.collection.Find(ctx, sinceFilter(since))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	records := make([]Record, 0, len(raw))
	for _, m := range raw {
		records = append(records, recordFromBSON(m))
	}
	return records, nil
}

func (s *MongoSource) Stats(ctx context.Context) (*SourceStats, error) {
	total, err := s.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	stats := &SourceStats{Total: total}

	var latest bson.M
	err = s.collection.FindOne(ctx, bson.D{},
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})).Decode(&latest)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return stats, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	record := recordFromBSON(latest)
	if ts, ok := record.Timestamp(); ok {
		stats.Latest = &ts
	}
	stats.LatestTitle = record.Title()
	return stats, nil
}

// Close disconnects from the server.
func (s *MongoSource) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func sinceFilter(since *time.Time) bson.M {
	if since == nil {
		return bson.M{}
	}
	t := since.UTC()
	return bson.M{"$or": bson.A{
		bson.M{"timestamp": bson.M{"$gt": t}},
		bson.M{"timestamp": bson.M{"$gt": t.Format(time.DateTime)}},
	}}
}

// recordFromBSON converts a decoded document to a Record, turning driver
// types into plain Go values.
func recordFromBSON(m bson.M) Record {
	fields := plainMap(m)
	return Record{ID: idString(m["_id"]), Fields: fields}
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

func plainMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}

func plainSlice(s []any) []any {
	out := make([]any, len(s))
	for i, e := range s {
		out[i] = plainValue(e)
	}
	return out
}

func plainValue(v any) any {
	switch t := v.(type) {
	case primitive.M:
		return plainMap(t)
	case map[string]any:
		return plainMap(t)
	case primitive.D:
		return plainMap(t.Map())
	case primitive.A:
		return plainSlice(t)
	case []any:
		return plainSlice(t)
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	default:
		return v
	}
}
