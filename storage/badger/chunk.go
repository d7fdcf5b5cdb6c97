package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/storage"
)

// chunksPerTxn bounds how many chunks one write transaction carries.
const chunksPerTxn = 256

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	idSeq, err := backend.GetSequence(chunkIDSeq)
	if err != nil {
		return nil, err
	}

	return &ChunkRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *ChunkRepository) Close() error {
	return r.idSeq.Release()
}

// AddChunks bulk inserts chunks.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	now := time.Now().UTC()
	for start := 0; start < len(chunks); start += chunksPerTxn {
		end := min(start+chunksPerTxn, len(chunks))
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			for _, chunk := range chunks[start:end] {
				id, err := nextID(r.idSeq)
				if err != nil {
					return err
				}
				chunk.Id = core.ID(id)
				if chunk.CreatedAt.IsZero() {
					chunk.CreatedAt = now
				}

				if err := writeValue(tx, makeChunkKey(chunk.Id), chunk); err != nil {
					return err
				}
				docKey := makeChunkDocumentKey(chunk.DocumentId, chunk.Sequence)
				if err := tx.Set(docKey, storage.MarshalID(chunk.Id)); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return nil, err
		}
	}
	return chunks, nil
}

// UpdateChunks replaces existing chunks.
func (r *ChunkRepository) UpdateChunks(ctx context.Context, chunks ...*core.Chunk) error {
	for start := 0; start < len(chunks); start += chunksPerTxn {
		end := min(start+chunksPerTxn, len(chunks))
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			for _, chunk := range chunks[start:end] {
				key := makeChunkKey(chunk.Id)
				if _, err := tx.Get(key); err != nil {
					if err == badger.ErrKeyNotFound {
						return storage.ErrNotFound
					}
					return err
				}
				if err := writeValue(tx, key, chunk); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetChunk retrieves a single chunk by ID.
func (r *ChunkRepository) GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error) {
	var result *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readValue[core.Chunk](tx, makeChunkKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetChunksByDocument returns the document's chunks ordered by sequence.
func (r *ChunkRepository) GetChunksByDocument(ctx context.Context, documentID core.ID) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makePartialChunkDocumentKey(documentID), false, func(_, val []byte) error {
			id, err := storage.UnmarshalID(val)
			if err != nil {
				return err
			}
			chunk, err := readValue[core.Chunk](tx, makeChunkKey(id))
			if err != nil {
				return err
			}
			if chunk != nil {
				results = append(results, chunk)
			}
			return nil
		})
	}, false)
	return results, err
}

// DeleteChunksByDocument removes every chunk of a document.
func (r *ChunkRepository) DeleteChunksByDocument(ctx context.Context, documentID core.ID) ([]core.ID, error) {
	var deleted []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var indexKeys [][]byte
		err := scanPrefix(tx, makePartialChunkDocumentKey(documentID), false, func(key, val []byte) error {
			id, err := storage.UnmarshalID(val)
			if err != nil {
				return err
			}
			deleted = append(deleted, id)
			indexKeys = append(indexKeys, key)
			return nil
		})
		if err != nil {
			return err
		}

		for i, id := range deleted {
			if err := tx.Delete(makeChunkKey(id)); err != nil {
				return err
			}
			if err := tx.Delete(indexKeys[i]); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ScanChunks calls fn for every chunk passing filter.
// A document filter uses the document index; everything else scans all chunks.
func (r *ChunkRepository) ScanChunks(ctx context.Context, filter core.ChunkFilter, fn func(*core.Chunk) error) error {
	if filter.DocumentId != 0 {
		chunks, err := r.GetChunksByDocument(ctx, filter.DocumentId)
		if err != nil {
			return err
		}
		for _, chunk := range chunks {
			if !filter.Matches(chunk) {
				continue
			}
			if err := fn(chunk); err != nil {
				return err
			}
		}
		return nil
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(chunkPrefix+":"), false, func(_, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunk, err := storage.UnmarshalChunk(val)
			if err != nil {
				return err
			}
			if !filter.Matches(chunk) {
				return nil
			}
			return fn(chunk)
		})
	}, false)
}

// GetChunksAfter returns up to limit chunks with IDs greater than afterID.
func (r *ChunkRepository) GetChunksAfter(ctx context.Context, afterID core.ID, limit int) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(chunkPrefix + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeChunkKey(afterID + 1)); iter.ValidForPrefix(prefix); iter.Next() {
			if limit > 0 && len(results) >= limit {
				break
			}
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, chunk)
		}
		return nil
	}, false)
	return results, err
}

// CountChunks returns the number of stored chunks.
func (r *ChunkRepository) CountChunks(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(chunkPrefix + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.ValidForPrefix(prefix); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}
