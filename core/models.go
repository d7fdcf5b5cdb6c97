package core

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
// IDs stay within the int64 range so they survive BSON round-trips.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	id := ID(binary.LittleEndian.Uint64(sum) & math.MaxInt64)
	if id == 0 {
		id = 1
	}
	return id
}

// ParseID parses the decimal string form of an ID.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.ParseUint(s, 10, 63)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return ID(n), nil
}

// String returns the decimal form of the ID.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Folder types.
const (
	FolderTypeLibrary = "library"
	FolderTypeOCR     = "ocr"
)

// DefaultFolderTitle is the title of the folder used when an upload names none.
const DefaultFolderTitle = "Default"

// Folder is a named grouping of documents.
type Folder struct {
	Id             ID        `bson:"_id"`
	Title          string    `bson:"title"`
	Type           string    `bson:"folder_type"`
	Description    string    `bson:"description,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
	LastAccessedAt time.Time `bson:"last_accessed_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
	DocumentCount  int       `bson:"document_count"`
	FileCount      int       `bson:"file_count"`
}

// FolderID derives the folder ID for a (type, title) pair.
func FolderID(folderType, title string) ID {
	return IDFromContent("(" + folderType + "," + title + ")")
}

// DocumentStatus tracks how far a document got through ingestion.
type DocumentStatus string

const (
	StatusPending  DocumentStatus = "pending"
	StatusChunked  DocumentStatus = "chunked"
	StatusEmbedded DocumentStatus = "embedded"
	StatusComplete DocumentStatus = "complete"
	StatusFailed   DocumentStatus = "failed"
)

// Document sources.
const (
	SourceUpload = "upload"
	SourceBridge = "bridge"
)

// FileMetadata describes the artifact a document was ingested from.
type FileMetadata struct {
	FileID           string `bson:"file_id"`
	OriginalFilename string `bson:"original_filename"`
	FileType         string `bson:"file_type"`
	FileSize         int64  `bson:"file_size"`
	Description      string `bson:"description,omitempty"`
}

// Document is one ingested source artifact.
type Document struct {
	Id         ID                `bson:"_id"`
	FolderId   ID                `bson:"folder_id"`
	Text       string            `bson:"text"`
	File       FileMetadata      `bson:"file_metadata"`
	Source     string            `bson:"source"`
	Status     DocumentStatus    `bson:"status"`
	ChunkCount int               `bson:"chunk_count"`
	Labels     *Labels           `bson:"labels,omitempty"`
	Error      string            `bson:"error,omitempty"`
	Metadata   map[string]string `bson:"metadata,omitempty"`
	CreatedAt  time.Time         `bson:"created_at"`
	UpdatedAt  time.Time         `bson:"updated_at"`
}

// Chunk is one retrievable unit of a document.
type Chunk struct {
	Id           ID        `bson:"_id"`
	DocumentId   ID        `bson:"document_id"`
	FileID       string    `bson:"file_id"`
	FolderId     ID        `bson:"folder_id"`
	Sequence     int       `bson:"sequence"`
	Text         string    `bson:"text"`
	Vector       []float32 `bson:"vector,omitempty"`
	ChunkSize    int       `bson:"chunk_size"`
	ChunkOverlap int       `bson:"chunk_overlap"`
	CreatedAt    time.Time `bson:"created_at"`
}

// Labels are the auto-generated classification of a document.
type Labels struct {
	Tags       []string `bson:"tags"`
	Category   string   `bson:"category"`
	Keywords   []string `bson:"keywords"`
	Confidence float64  `bson:"confidence_score"`
}

// HasTag reports whether any of tags is present in the labels.
func (l *Labels) HasTag(tags ...string) bool {
	if l == nil {
		return false
	}
	for _, want := range tags {
		for _, have := range l.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// LabelRecord is the stored label set for one document.
type LabelRecord struct {
	DocumentId ID        `bson:"_id"`
	FileID     string    `bson:"file_id"`
	FolderId   ID        `bson:"folder_id"`
	Labels     Labels    `bson:"labels"`
	Source     string    `bson:"source"`
	CreatedAt  time.Time `bson:"created_at"`
}

// CacheEntry is a memoized expensive computation.
type CacheEntry struct {
	Fingerprint    string            `bson:"_id"`
	Kind           string            `bson:"kind"`
	FolderId       ID                `bson:"folder_id,omitempty"`
	DocumentIDs    []string          `bson:"document_ids,omitempty"`
	Params         map[string]string `bson:"params,omitempty"`
	Payload        string            `bson:"payload"`
	CreatedAt      time.Time         `bson:"created_at"`
	LastAccessedAt time.Time         `bson:"last_accessed_at"`
}

// SyncWatermark records how far a foreign source has been reconciled.
type SyncWatermark struct {
	Source          string    `bson:"_id"`
	LastSyncTime    time.Time `bson:"last_sync_time"`
	SyncedCount     int       `bson:"synced_count"`
	ProcessedCount  int       `bson:"processed_count"`
	TotalCandidates int       `bson:"total_candidates"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

// FailureRecord marks an ingestion that failed part way through.
type FailureRecord struct {
	Id         ID        `bson:"_id"`
	DocumentId ID        `bson:"document_id,omitempty"`
	FileID     string    `bson:"file_id"`
	Filename   string    `bson:"filename"`
	Stage      string    `bson:"stage"`
	Status     string    `bson:"status"`
	Error      string    `bson:"error"`
	CreatedAt  time.Time `bson:"created_at"`
}

// ChunkFilter narrows the working set of a similarity scan.
// Zero values match everything.
type ChunkFilter struct {
	FolderId   ID
	FileID     string
	DocumentId ID
}

// Matches reports whether the chunk passes the filter.
func (f ChunkFilter) Matches(c *Chunk) bool {
	if f.FolderId != 0 && c.FolderId != f.FolderId {
		return false
	}
	if f.FileID != "" && c.FileID != f.FileID {
		return false
	}
	if f.DocumentId != 0 && c.DocumentId != f.DocumentId {
		return false
	}
	return true
}

// ScoredChunk is a chunk with its similarity to a query.
type ScoredChunk struct {
	Chunk *Chunk
	Score float32
}

// UnknownFilename is reported for chunks whose document is gone.
const UnknownFilename = "unknown file"

// SearchResult is a ranked chunk annotated with its document's display metadata.
type SearchResult struct {
	Chunk    *Chunk
	Score    float32
	Filename string
	FileType string
}
