package badger

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/storage"
)

// FolderRepository implements storage.FolderRepository for BadgerDB.
type FolderRepository struct {
	backend *Backend
}

var _ storage.FolderRepository = (*FolderRepository)(nil)

// NewFolderRepository creates a new FolderRepository.
func NewFolderRepository(backend *Backend) (*FolderRepository, error) {
	return &FolderRepository{
		backend: backend,
	}, nil
}

// Close releases resources. FolderRepository has no resources to release.
func (r *FolderRepository) Close() error {
	return nil
}

// GetOrCreateFolder finds or creates a folder by title and type.
// The folder key is derived from the pair, so the read and the insert run in one
// transaction and a concurrent creator forces a conflict and a retry that then
// observes the committed folder.
func (r *FolderRepository) GetOrCreateFolder(ctx context.Context, title, folderType string) (*core.Folder, error) {
	title = strings.TrimSpace(title)
	candidate := &core.Folder{Title: title, Type: folderType}
	if err := core.ValidateFolder(candidate); err != nil {
		return nil, err
	}

	id := core.FolderID(folderType, title)
	key := makeFolderKey(id)

	var result *core.Folder
	err := r.backend.Update(func(tx *badger.Txn) error {
		existing, err := readValue[core.Folder](tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			result = existing
			return nil
		}

		now := time.Now().UTC()
		folder := &core.Folder{
			Id:             id,
			Title:          title,
			Type:           folderType,
			CreatedAt:      now,
			LastAccessedAt: now,
			UpdatedAt:      now,
		}
		if err := writeValue(tx, key, folder); err != nil {
			return err
		}
		result = folder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetFolder retrieves a folder by ID.
func (r *FolderRepository) GetFolder(ctx context.Context, id core.ID) (*core.Folder, error) {
	var result *core.Folder
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readValue[core.Folder](tx, makeFolderKey(id))
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

// FindFolderByTitle retrieves a folder by its (title, type) pair.
func (r *FolderRepository) FindFolderByTitle(ctx context.Context, title, folderType string) (*core.Folder, error) {
	return r.GetFolder(ctx, core.FolderID(folderType, strings.TrimSpace(title)))
}

// ListFolders returns every folder ordered by title.
func (r *FolderRepository) ListFolders(ctx context.Context) ([]*core.Folder, error) {
	var results []*core.Folder
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(folderPrefix+":"), false, func(_, val []byte) error {
			folder, err := storage.UnmarshalFolder(val)
			if err != nil {
				return err
			}
			results = append(results, folder)
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.Folder) int {
		if c := strings.Compare(a.Title, b.Title); c != 0 {
			return c
		}
		return strings.Compare(a.Type, b.Type)
	})
	return results, nil
}

// TouchFolder sets the folder's last accessed time to now.
func (r *FolderRepository) TouchFolder(ctx context.Context, id core.ID) error {
	return r.modify(id, func(folder *core.Folder) {
		folder.LastAccessedAt = time.Now().UTC()
	})
}

// IncrementFolderCounts adds to the folder's document and file counters.
func (r *FolderRepository) IncrementFolderCounts(ctx context.Context, id core.ID, documents, files int) error {
	return r.modify(id, func(folder *core.Folder) {
		folder.DocumentCount += documents
		folder.FileCount += files
		folder.UpdatedAt = time.Now().UTC()
	})
}

// DeleteFolder removes the folder record.
func (r *FolderRepository) DeleteFolder(ctx context.Context, id core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeFolderKey(id)
		folder, err := readValue[core.Folder](tx, key)
		if err != nil {
			return err
		}
		if folder == nil {
			return storage.ErrNotFound
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// modify applies fn to a stored folder under conflict retry.
func (r *FolderRepository) modify(id core.ID, fn func(*core.Folder)) error {
	key := makeFolderKey(id)
	return r.backend.Update(func(tx *badger.Txn) error {
		folder, err := readValue[core.Folder](tx, key)
		if err != nil {
			return err
		}
		if folder == nil {
			return fmt.Errorf("folder %s: %w", id, storage.ErrNotFound)
		}
		fn(folder)
		return writeValue(tx, key, folder)
	})
}
