package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	idSeq, err := backend.GetSequence(documentIDSeq)
	if err != nil {
		return nil, err
	}

	return &DocumentRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *DocumentRepository) Close() error {
	return r.idSeq.Release()
}

// AddDocument stores a new document under a fresh ID.
// The file id index is checked in the same transaction, so two writers
// racing on one file id cannot both commit.
func (r *DocumentRepository) AddDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}

	id, err := nextID(r.idSeq)
	if err != nil {
		return nil, err
	}

	err = r.backend.WithTx(func(tx *badger.Txn) error {
		extKey := makeDocumentFileIDKey(doc.File.FileID)
		if _, err := tx.Get(extKey); err == nil {
			return storage.ErrDuplicateKey
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		doc.Id = core.ID(id)
		if doc.Status == "" {
			doc.Status = core.StatusPending
		}
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = time.Now().UTC()
		}
		doc.UpdatedAt = doc.CreatedAt

		if err := writeValue(tx, makeDocumentKey(doc.Id), doc); err != nil {
			return err
		}
		if err := tx.Set(extKey, storage.MarshalID(doc.Id)); err != nil {
			return err
		}
		if err := tx.Set(makeDocumentFolderKey(doc.FolderId, doc.Id), storage.MarshalID(doc.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err == badger.ErrConflict {
		err = storage.ErrDuplicateKey
	}
	if err != nil {
		doc.Id = 0
		return nil, err
	}
	return doc, nil
}

// UpdateDocument replaces an existing document.
func (r *DocumentRepository) UpdateDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	err := r.backend.Update(func(tx *badger.Txn) error {
		key := makeDocumentKey(doc.Id)
		old, err := readValue[core.Document](tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		doc.UpdatedAt = time.Now().UTC()
		if err := writeValue(tx, key, doc); err != nil {
			return err
		}

		// Keep indices in step with file id and folder moves
		if old.File.FileID != doc.File.FileID {
			if err := tx.Delete(makeDocumentFileIDKey(old.File.FileID)); err != nil {
				return err
			}
			if err := tx.Set(makeDocumentFileIDKey(doc.File.FileID), storage.MarshalID(doc.Id)); err != nil {
				return err
			}
		}
		if old.FolderId != doc.FolderId {
			if err := tx.Delete(makeDocumentFolderKey(old.FolderId, doc.Id)); err != nil {
				return err
			}
			if err := tx.Set(makeDocumentFolderKey(doc.FolderId, doc.Id), storage.MarshalID(doc.Id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readValue[core.Document](tx, makeDocumentKey(id))
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

// GetDocuments retrieves multiple documents by their IDs.
func (r *DocumentRepository) GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error) {
	var result []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			doc, err := readValue[core.Document](tx, makeDocumentKey(id))
			if err != nil {
				return err
			}
			if doc != nil {
				result = append(result, doc)
			}
		}
		return nil
	}, false)
	return result, err
}

// GetDocumentByFileID retrieves a document by its external file id.
func (r *DocumentRepository) GetDocumentByFileID(ctx context.Context, fileID string) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		id, err := readIndexID(tx, makeDocumentFileIDKey(fileID))
		if err != nil {
			return err
		}
		if id == 0 {
			return storage.ErrNotFound
		}
		result, err = readValue[core.Document](tx, makeDocumentKey(id))
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

// ExistsByFileID reports whether a document with fileID is stored.
func (r *DocumentRepository) ExistsByFileID(ctx context.Context, fileID string) (bool, error) {
	var exists bool
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeDocumentFileIDKey(fileID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	}, false)
	return exists, err
}

// ListDocumentsByFolder returns the folder's documents in insertion order.
func (r *DocumentRepository) ListDocumentsByFolder(ctx context.Context, folderID core.ID) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makePartialDocumentFolderKey(folderID), false, func(_, val []byte) error {
			id, err := storage.UnmarshalID(val)
			if err != nil {
				return err
			}
			doc, err := readValue[core.Document](tx, makeDocumentKey(id))
			if err != nil {
				return err
			}
			if doc != nil {
				results = append(results, doc)
			}
			return nil
		})
	}, false)
	return results, err
}

// ListIncompleteDocuments returns documents not yet complete and not updated since olderThan.
func (r *DocumentRepository) ListIncompleteDocuments(ctx context.Context, olderThan time.Time) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(documentPrefix+":"), false, func(_, val []byte) error {
			doc, err := storage.UnmarshalDocument(val)
			if err != nil {
				return err
			}
			if doc.Status != core.StatusComplete && doc.UpdatedAt.Before(olderThan) {
				results = append(results, doc)
			}
			return nil
		})
	}, false)
	return results, err
}

// DeleteDocument removes a document and its indices.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		doc, err := readValue[core.Document](tx, key)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}

		if err := tx.Delete(makeDocumentFileIDKey(doc.File.FileID)); err != nil {
			return err
		}
		if err := tx.Delete(makeDocumentFolderKey(doc.FolderId, doc.Id)); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// readIndexID reads an ID stored as an index value.
// Returns 0, nil if the index key does not exist.
func readIndexID(tx *badger.Txn, key []byte) (core.ID, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return 0, nil
		}
		return 0, err
	}

	var id core.ID
	err = item.Value(func(val []byte) error {
		var err error
		id, err = storage.UnmarshalID(val)
		return err
	})
	return id, err
}
