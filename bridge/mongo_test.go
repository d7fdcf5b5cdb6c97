package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSinceFilter(t *testing.T) {
	assert.Empty(t, sinceFilter(nil))

	since := time.Date(2025, 6, 10, 13, 47, 1, 0, time.UTC)
	filter := sinceFilter(&since)
	clauses, ok := filter["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, clauses, 2)
	assert.Equal(t, bson.M{"timestamp": bson.M{"$gt": since}}, clauses[0])
	assert.Equal(t, bson.M{"timestamp": bson.M{"$gt": "2025-06-10 13:47:01"}}, clauses[1])
}

func TestRecordFromBSON(t *testing.T) {
	oid := primitive.NewObjectID()
	when := time.Date(2025, 6, 10, 13, 47, 1, 0, time.UTC)
	doc := bson.M{
		"_id":       oid,
		"title":     "Receipts",
		"timestamp": primitive.NewDateTimeFromTime(when),
		"pages": bson.A{
			bson.M{"text": "page one"},
			bson.D{{Key: "content", Value: "page two"}},
			"page three",
		},
	}

	record := recordFromBSON(doc)
	assert.Equal(t, oid.Hex(), record.ID)
	assert.Equal(t, "ocr_"+oid.Hex(), record.FileID())
	assert.Equal(t, "Receipts", record.Title())

	ts, ok := record.Timestamp()
	require.True(t, ok)
	assert.True(t, when.Equal(ts))

	assert.Equal(t, ObjectPages{Pages: []Page{{1, "page one"}, {2, "page two"}, {3, "page three"}}}, Classify(record))
}

func TestIDString(t *testing.T) {
	assert.Equal(t, "42", idString(int32(42)))
	assert.Equal(t, "custom", idString("custom"))
	assert.Equal(t, "", idString(nil))
}
