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


package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/ingestion"
	"github.com/poiesic/seeq/preprocess"
	"github.com/poiesic/seeq/storage"
)

var (
	// ErrSourceRequired is returned when no source is provided.
	ErrSourceRequired = errors.New("bridge source required")

	// ErrPipelineRequired is returned when no ingestion pipeline is provided.
	ErrPipelineRequired = errors.New("ingestion pipeline required")

	// ErrRepositoriesRequired is returned when required repositories are missing.
	ErrRepositoriesRequired = errors.New("folder, document and sync repositories required")

	// ErrSyncInProgress is returned when a sync is started while another runs.
	ErrSyncInProgress = errors.New("bridge sync already in progress")
)

// DefaultEpoch bounds the first incremental sync of a source.
var DefaultEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// FileType is the file type of bridged documents.
const FileType = "ocr"

const bridgedDescription = "OCR-extracted text"

// SyncResult summarizes one reconciliation run.
type SyncResult struct {
	RunID string
	// SyncedCount is the number of records newly stored.
	SyncedCount int
	// ProcessedCount is the number of stored records that produced chunks.
	ProcessedCount  int
	TotalCandidates int
	// NewWatermark is the run's start time.
	NewWatermark time.Time
	// WatermarkUpdated reports whether NewWatermark was persisted.
	WatermarkUpdated bool
}

// Stats describes the foreign source and how far it has been reconciled.
type Stats struct {
	Source    string
	Foreign   SourceStats
	Watermark *core.SyncWatermark
}

// Reconciler ingests foreign records idempotently.
type Reconciler struct {
	source    Source
	pipeline  *ingestion.Pipeline
	folders   storage.FolderRepository
	documents storage.DocumentRepository
	sync      storage.SyncRepository
	logger    *slog.Logger
	now       func() time.Time
	running   sync.Mutex
}

type Option func(*Reconciler)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
	}
}

// WithClock replaces the time source used for run start times.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler creates a reconciler storing records from source through pipeline.
func NewReconciler(source Source, pipeline *ingestion.Pipeline, repos *storage.Repositories, opts ...Option) (*Reconciler, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}
	if repos == nil || repos.Folders == nil || repos.Documents == nil || repos.Sync == nil {
		return nil, ErrRepositoriesRequired
	}
	r := &Reconciler{
		source:    source,
		pipeline:  pipeline,
		folders:   repos.Folders,
		documents: repos.Documents,
		sync:      repos.Sync,
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "bridge", "source", source.Name())
	return r, nil
}

// Sync ingests records newer than since. With since nil the stored
// watermark is used, or DefaultEpoch when the source was never synced.
// The watermark moves to the run's start time only if something was stored.
func (r *Reconciler) Sync(ctx context.Context, since *time.Time) (*SyncResult, error) {
	if !r.running.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer r.running.Unlock()

	if since == nil {
		watermark, err := r.sync.GetWatermark(ctx, r.source.Name())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrPersistence, err)
		}
		from := DefaultEpoch
		if watermark != nil && !watermark.LastSyncTime.IsZero() {
			from = watermark.LastSyncTime
		}
		since = &from
	}
	return r.run(ctx, since, false)
}

// ForceSync examines every foreign record, still skipping those already
// stored, and always writes the watermark.
func (r *Reconciler) ForceSync(ctx context.Context) (*SyncResult, error) {
	if !r.running.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer r.running.Unlock()
	return r.run(ctx, nil, true)
}

func (r *Reconciler) run(ctx context.Context, since *time.Time, force bool) (*SyncResult, error) {
	result := &SyncResult{RunID: uuid.NewString(), NewWatermark: r.now()}
	logger := r.logger.With("run", result.RunID)
	if since != nil {
		logger.Info("sync started", "since", *since)
	} else {
		logger.Info("forced sync started")
	}

	candidates, err := r.source.Candidates(ctx, since)
	if err != nil {
		return nil, err
	}
	result.TotalCandidates = len(candidates)

	for _, record := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stored, processed, err := r.reconcile(ctx, record)
		if err != nil {
			logger.Warn("failed to sync record", "record", record.ID, "err", err)
			continue
		}
		if stored {
			result.SyncedCount++
		}
		if processed {
			result.ProcessedCount++
		}
	}

	if result.SyncedCount > 0 || force {
		err := r.sync.SetWatermark(ctx, &core.SyncWatermark{
			Source:          r.source.Name(),
			LastSyncTime:    result.NewWatermark,
			SyncedCount:     result.SyncedCount,
			ProcessedCount:  result.ProcessedCount,
			TotalCandidates: result.TotalCandidates,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrPersistence, err)
		}
		result.WatermarkUpdated = true
	}

	logger.Info("sync finished",
		"candidates", result.TotalCandidates,
		"synced", result.SyncedCount,
		"processed", result.ProcessedCount)
	return result, nil
}

// reconcile stores one record unless its file id is already present.
func (r *Reconciler) reconcile(ctx context.Context, record Record) (stored, processed bool, err error) {
	if record.ID == "" {
		return false, false, errors.New("record has no id")
	}
	title := record.Title()
	folder, err := r.folders.GetOrCreateFolder(ctx, title, core.FolderTypeOCR)
	if err != nil {
		return false, false, err
	}
	if err := r.folders.TouchFolder(ctx, folder.Id); err != nil {
		r.logger.Warn("failed to touch folder", "folder", folder.Id, "err", err)
	}

	fileID := record.FileID()
	exists, err := r.documents.ExistsByFileID(ctx, fileID)
	if err != nil {
		return false, false, err
	}
	if exists {
		r.logger.Debug("record already synced", "file_id", fileID)
		return false, false, nil
	}

	shape := Classify(record)
	raw := shape.Render(title)
	doc := &core.Document{
		FolderId: folder.Id,
		Text:     preprocess.Normalize(raw),
		File: core.FileMetadata{
			FileID:           fileID,
			OriginalFilename: title + ".ocr",
			FileType:         FileType,
			FileSize:         int64(len(raw)),
			Description:      bridgedDescription,
		},
		Source: core.SourceBridge,
		Metadata: map[string]string{
			"foreign_id": record.ID,
			"shape":      shape.Kind(),
		},
	}
	if ts, ok := record.Timestamp(); ok {
		doc.Metadata["foreign_timestamp"] = ts.Format(time.RFC3339)
	}

	res, err := r.pipeline.Store(ctx, doc)
	if err != nil {
		return false, false, err
	}
	if err := r.folders.IncrementFolderCounts(ctx, folder.Id, 1, 1); err != nil {
		r.logger.Warn("failed to update folder counts", "folder", folder.Id, "err", err)
	}
	r.logger.Info("synced record",
		"record", record.ID,
		"folder", title,
		"shape", shape.Kind(),
		"chunks", res.ChunkCount)
	return true, res.ChunkCount > 0, nil
}

// Stats reports the foreign store's size and newest record with the watermark.
func (r *Reconciler) Stats(ctx context.Context) (*Stats, error) {
	foreign, err := r.source.Stats(ctx)
	if err != nil {
		return nil, err
	}
	watermark, err := r.sync.GetWatermark(ctx, r.source.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	return &Stats{Source: r.source.Name(), Foreign: *foreign, Watermark: watermark}, nil
}
