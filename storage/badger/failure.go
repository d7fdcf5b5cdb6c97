package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/storage"
)

// FailureRepository implements storage.FailureRepository for BadgerDB.
type FailureRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.FailureRepository = (*FailureRepository)(nil)

// NewFailureRepository creates a new FailureRepository.
func NewFailureRepository(backend *Backend) (*FailureRepository, error) {
	idSeq, err := backend.GetSequence(failureIDSeq)
	if err != nil {
		return nil, err
	}
	return &FailureRepository{backend: backend, idSeq: idSeq}, nil
}

// Close releases the ID sequence.
func (r *FailureRepository) Close() error {
	return r.idSeq.Release()
}

// AddFailure stores a failure record.
func (r *FailureRepository) AddFailure(ctx context.Context, failure *core.FailureRecord) (*core.FailureRecord, error) {
	id, err := nextID(r.idSeq)
	if err != nil {
		return nil, err
	}

	err = r.backend.WithTx(func(tx *badger.Txn) error {
		failure.Id = core.ID(id)
		if failure.Status == "" {
			failure.Status = string(core.StatusFailed)
		}
		if failure.CreatedAt.IsZero() {
			failure.CreatedAt = time.Now().UTC()
		}
		if err := writeValue(tx, makeFailureKey(failure.Id), failure); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return failure, nil
}

// ListFailures returns failure records, newest first.
func (r *FailureRepository) ListFailures(ctx context.Context, limit int) ([]*core.FailureRecord, error) {
	var results []*core.FailureRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(failurePrefix+":"), true, func(_, val []byte) error {
			if limit > 0 && len(results) >= limit {
				return errStopScan
			}
			failure, err := storage.Unmarshal[core.FailureRecord](val)
			if err != nil {
				return err
			}
			results = append(results, failure)
			return nil
		})
	}, false)
	if err == errStopScan {
		err = nil
	}
	return results, err
}
