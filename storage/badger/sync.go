// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/storage"
)

// SyncRepository implements storage.SyncRepository for BadgerDB.
type SyncRepository struct {
	backend *Backend
}

var _ storage.SyncRepository = (*SyncRepository)(nil)

// NewSyncRepository creates a new SyncRepository.
func NewSyncRepository(backend *Backend) (*SyncRepository, error) {
	return &SyncRepository{
		backend: backend,
	}, nil
}

// Close releases resources. SyncRepository has no resources to release.
func (r *SyncRepository) Close() error {
	return nil
}

// SetWatermark persists the watermark for its source.
func (r *SyncRepository) SetWatermark(ctx context.Context, watermark *core.SyncWatermark) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		watermark.UpdatedAt = time.Now().UTC()
		if err := writeValue(tx, makeSyncKey(watermark.Source), watermark); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetWatermark retrieves the watermark for a source.
// Returns nil, nil if no watermark exists.
func (r *SyncRepository) GetWatermark(ctx context.Context, source string) (*core.SyncWatermark, error) {
	var watermark *core.SyncWatermark
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		watermark, err = readValue[core.SyncWatermark](tx, makeSyncKey(source))
		return err
	}, false)

	return watermark, err
}
