package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/storage"
)

// LabelRepository implements storage.LabelRepository for BadgerDB.
type LabelRepository struct {
	backend *Backend
}

var _ storage.LabelRepository = (*LabelRepository)(nil)

// NewLabelRepository creates a new LabelRepository.
func NewLabelRepository(backend *Backend) (*LabelRepository, error) {
	return &LabelRepository{backend: backend}, nil
}

// Close releases resources. LabelRepository has no resources to release.
func (r *LabelRepository) Close() error {
	return nil
}

// PutLabels stores or replaces the label record for a document.
func (r *LabelRepository) PutLabels(ctx context.Context, record *core.LabelRecord) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if record.CreatedAt.IsZero() {
			record.CreatedAt = time.Now().UTC()
		}
		if err := writeValue(tx, makeLabelKey(record.DocumentId), record); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetLabels retrieves the label record for a document.
func (r *LabelRepository) GetLabels(ctx context.Context, documentID core.ID) (*core.LabelRecord, error) {
	var result *core.LabelRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readValue[core.LabelRecord](tx, makeLabelKey(documentID))
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

// DeleteLabels removes a document's label record.
func (r *LabelRepository) DeleteLabels(ctx context.Context, documentID core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeLabelKey(documentID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
