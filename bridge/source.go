package bridge

import (
	"context"
	"slices"
	"sync"
	"time"
)

// SourceStats describes the contents of a foreign store.
type SourceStats struct {
	Total int64
	// Latest is the newest record's timestamp, nil when unknown.
	Latest      *time.Time
	LatestTitle string
}

// Source is a foreign record store.
type Source interface {
	// Name identifies the source. Watermarks are kept per name.
	Name() string
	// Candidates returns the records newer than since, or every record
	// when since is nil.
	Candidates(ctx context.Context, since *time.Time) ([]Record, error)
	Stats(ctx context.Context) (*SourceStats, error)
}

// MemorySource is an in-process Source.
type MemorySource struct {
	name    string
	mu      sync.RWMutex
	records []Record
}

var _ Source = (*MemorySource)(nil)

// NewMemorySource creates a source holding records.
func NewMemorySource(name string, records ...Record) *MemorySource {
	return &MemorySource{name: name, records: slices.Clone(records)}
}

func (s *MemorySource) Name() string {
	return s.name
}

// Add appends records.
func (s *MemorySource) Add(records ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

// Candidates returns records in insertion order. With since set, records
// without a readable timestamp are not candidates.
func (s *MemorySource) Candidates(ctx context.Context, since *time.Time) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if since == nil {
		return slices.Clone(s.records), nil
	}
	var out []Record
	for _, r := range s.records {
		if ts, ok := r.Timestamp(); ok && ts.After(*since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemorySource) Stats(ctx context.Context) (*SourceStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &SourceStats{Total: int64(len(s.records))}
	for _, r := range s.records {
		ts, ok := r.Timestamp()
		if !ok {
			continue
		}
		if stats.Latest == nil || ts.After(*stats.Latest) {
			stats.Latest = &ts
			stats.LatestTitle = r.Title()
		}
	}
	return stats, nil
}
