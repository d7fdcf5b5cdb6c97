package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/seeq/core"
)

// Key prefixes for different data types
const (
	folderPrefix         = "fold"
	documentPrefix       = "doc"
	documentFileIDPrefix = "docext"
	documentFolderPrefix = "docf"
	documentIDSeq        = "docseq"
	chunkPrefix          = "chk"
	chunkDocumentPrefix  = "chkd"
	chunkIDSeq           = "chkseq"
	labelPrefix          = "lbl"
	cachePrefix          = "cache"
	syncPrefix           = "sync"
	failurePrefix        = "fail"
	failureIDSeq         = "failseq"
)

// makeFolderKey generates a key for a folder by ID.
func makeFolderKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", folderPrefix, id))
}

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentPrefix, id))
}

// makeDocumentFileIDKey generates the unique index key for an external file id.
func makeDocumentFileIDKey(fileID string) []byte {
	return []byte(documentFileIDPrefix + ":" + fileID)
}

// makeDocumentFolderKey generates a composite key for the folder index.
// Format: prefix:folderID:documentID
func makeDocumentFolderKey(folderID, documentID core.ID) []byte {
	return appendIDs([]byte(documentFolderPrefix+":"), uint64(folderID), uint64(documentID))
}

// makePartialDocumentFolderKey generates a partial key for folder queries.
func makePartialDocumentFolderKey(folderID core.ID) []byte {
	return appendIDs([]byte(documentFolderPrefix+":"), uint64(folderID))
}

// makeChunkKey generates a key for a chunk by ID.
// Chunk IDs are big-endian so a prefix scan visits chunks in ID order.
func makeChunkKey(id core.ID) []byte {
	return appendIDs([]byte(chunkPrefix+":"), uint64(id))
}

// makeChunkDocumentKey generates a composite key for the document index.
// Format: prefix:documentID:sequence
func makeChunkDocumentKey(documentID core.ID, sequence int) []byte {
	return appendIDs([]byte(chunkDocumentPrefix+":"), uint64(documentID), uint64(sequence))
}

// makePartialChunkDocumentKey generates a partial key for document queries.
func makePartialChunkDocumentKey(documentID core.ID) []byte {
	return appendIDs([]byte(chunkDocumentPrefix+":"), uint64(documentID))
}

// makeLabelKey generates a key for a document's label record.
func makeLabelKey(documentID core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", labelPrefix, documentID))
}

// makeCacheKey generates a key for a cache entry by fingerprint.
func makeCacheKey(fingerprint string) []byte {
	return []byte(cachePrefix + ":" + fingerprint)
}

// makeSyncKey generates a key for a source's watermark.
func makeSyncKey(source string) []byte {
	return []byte(syncPrefix + ":" + source)
}

// makeFailureKey generates a key for a failure record.
func makeFailureKey(id core.ID) []byte {
	return appendIDs([]byte(failurePrefix+":"), uint64(id))
}

// appendIDs writes each value in BigEndian order so lexicographic sort works correctly.
func appendIDs(buf []byte, ids ...uint64) []byte {
	for _, id := range ids {
		buf = binary.BigEndian.AppendUint64(buf, id)
	}
	return buf
}
