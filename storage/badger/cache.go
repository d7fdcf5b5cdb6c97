package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/storage"
)

// CacheRepository implements storage.CacheRepository for BadgerDB.
type CacheRepository struct {
	backend *Backend
}

var _ storage.CacheRepository = (*CacheRepository)(nil)

// NewCacheRepository creates a new CacheRepository.
func NewCacheRepository(backend *Backend) (*CacheRepository, error) {
	return &CacheRepository{backend: backend}, nil
}

// Close releases resources. CacheRepository has no resources to release.
func (r *CacheRepository) Close() error {
	return nil
}

// GetCacheEntry retrieves an entry by fingerprint.
func (r *CacheRepository) GetCacheEntry(ctx context.Context, fingerprint string) (*core.CacheEntry, error) {
	var result *core.CacheEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readValue[core.CacheEntry](tx, makeCacheKey(fingerprint))
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

// PutCacheEntry stores an entry, overwriting any entry with the same fingerprint.
func (r *CacheRepository) PutCacheEntry(ctx context.Context, entry *core.CacheEntry) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now().UTC()
		}
		if entry.LastAccessedAt.IsZero() {
			entry.LastAccessedAt = entry.CreatedAt
		}
		if err := writeValue(tx, makeCacheKey(entry.Fingerprint), entry); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// TouchCacheEntry sets the entry's last accessed time.
func (r *CacheRepository) TouchCacheEntry(ctx context.Context, fingerprint string, at time.Time) error {
	key := makeCacheKey(fingerprint)
	return r.backend.Update(func(tx *badger.Txn) error {
		entry, err := readValue[core.CacheEntry](tx, key)
		if err != nil {
			return err
		}
		if entry == nil {
			return storage.ErrNotFound
		}
		entry.LastAccessedAt = at
		return writeValue(tx, key, entry)
	})
}

// ListCacheEntries returns matching entries, newest first.
func (r *CacheRepository) ListCacheEntries(ctx context.Context, kind string, folderID core.ID, limit int) ([]*core.CacheEntry, error) {
	var results []*core.CacheEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(cachePrefix+":"), false, func(_, val []byte) error {
			entry, err := storage.Unmarshal[core.CacheEntry](val)
			if err != nil {
				return err
			}
			if kind != "" && entry.Kind != kind {
				return nil
			}
			if folderID != 0 && entry.FolderId != folderID {
				return nil
			}
			results = append(results, entry)
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b *core.CacheEntry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteCacheEntry removes an entry by fingerprint.
func (r *CacheRepository) DeleteCacheEntry(ctx context.Context, fingerprint string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeCacheKey(fingerprint)
		if _, err := tx.Get(key); err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteCacheEntriesByFolder removes every entry scoped to folderID.
func (r *CacheRepository) DeleteCacheEntriesByFolder(ctx context.Context, folderID core.ID) (int, error) {
	return r.deleteMatching(func(entry *core.CacheEntry) bool {
		return entry.FolderId == folderID
	})
}

// DeleteCacheEntriesByDocument removes entries that list fileID among their
// inputs, and entries scoped to folderID when it is non-zero.
func (r *CacheRepository) DeleteCacheEntriesByDocument(ctx context.Context, fileID string, folderID core.ID) (int, error) {
	return r.deleteMatching(func(entry *core.CacheEntry) bool {
		if folderID != 0 && entry.FolderId == folderID {
			return true
		}
		return fileID != "" && slices.Contains(entry.DocumentIDs, fileID)
	})
}

func (r *CacheRepository) deleteMatching(match func(*core.CacheEntry) bool) (int, error) {
	deleted := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var keys [][]byte
		err := scanPrefix(tx, []byte(cachePrefix+":"), false, func(key, val []byte) error {
			entry, err := storage.Unmarshal[core.CacheEntry](val)
			if err != nil {
				return err
			}
			if match(entry) {
				keys = append(keys, slices.Clone(key))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		deleted = len(keys)
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
