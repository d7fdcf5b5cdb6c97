// Package cache memoizes expensive derived artifacts, such as summaries,
// under a content fingerprint of their inputs.
//
// Get-or-compute is not atomic: two concurrent misses may both compute, and
// the last write wins. Callers must tolerate at-least-once computation.
package cache

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/storage"
)

var (
	// ErrRepositoryRequired is returned when no cache repository is provided.
	ErrRepositoryRequired = errors.New("cache repository required")

	// ErrEmptyKind is returned for a key without a kind.
	ErrEmptyKind = errors.New("cache kind cannot be empty")
)

// Key identifies a derived artifact by what it was computed from.
// Document IDs and parameter values are order independent.
type Key struct {
	Kind        string
	FolderID    core.ID
	DocumentIDs []string
	Params      map[string][]string
}

// Fingerprint returns the hex BLAKE2b-256 digest of the key's canonical form.
func (k Key) Fingerprint() string {
	h, _ := blake2b.New(32, nil)

	write := func(s string) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}

	write(k.Kind)
	write(k.FolderID.String())

	ids := slices.Sorted(slices.Values(k.DocumentIDs))
	write(fmt.Sprint(len(ids)))
	for _, id := range ids {
		write(id)
	}

	names := slices.Sorted(maps.Keys(k.Params))
	write(fmt.Sprint(len(names)))
	for _, name := range names {
		values := slices.Sorted(slices.Values(k.Params[name]))
		write(name)
		write(fmt.Sprint(len(values)))
		for _, v := range values {
			write(v)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// flatParams renders params for storage, values sorted and comma joined.
func (k Key) flatParams() map[string]string {
	if len(k.Params) == 0 {
		return nil
	}
	flat := make(map[string]string, len(k.Params))
	for name, values := range k.Params {
		flat[name] = strings.Join(slices.Sorted(slices.Values(values)), ",")
	}
	return flat
}

// Result is an artifact and where it came from.
type Result struct {
	Artifact    string
	Fingerprint string
	FromCache   bool
	CreatedAt   time.Time
}

// ComputeFunc produces an artifact on a cache miss.
type ComputeFunc func(ctx context.Context) (string, error)

// Cache stores artifacts in a CacheRepository.
type Cache struct {
	repo   storage.CacheRepository
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Cache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a cache over repo.
func New(repo storage.CacheRepository, opts ...Option) (*Cache, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	c := &Cache{
		repo:   repo,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "cache")
	return c, nil
}

// GetOrCompute returns the cached artifact for key, or runs compute and
// stores its result. A hit refreshes the entry's last access time and never
// calls compute. Failing to store a computed artifact is logged, and the
// artifact is still returned.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute ComputeFunc) (*Result, error) {
	if key.Kind == "" {
		return nil, ErrEmptyKind
	}
	fingerprint := key.Fingerprint()

	entry, err := c.repo.GetCacheEntry(ctx, fingerprint)
	switch {
	case err == nil:
		if err := c.repo.TouchCacheEntry(ctx, fingerprint, c.now()); err != nil {
			c.logger.Warn("failed to touch cache entry", "fingerprint", fingerprint, "err", err)
		}
		c.logger.Debug("cache hit", "kind", key.Kind, "fingerprint", fingerprint)
		return &Result{
			Artifact:    entry.Payload,
			Fingerprint: fingerprint,
			FromCache:   true,
			CreatedAt:   entry.CreatedAt,
		}, nil
	case !errors.Is(err, storage.ErrNotFound):
		c.logger.Warn("cache lookup failed, computing", "fingerprint", fingerprint, "err", err)
	}

	artifact, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	now := c.now()
	entry = &core.CacheEntry{
		Fingerprint:    fingerprint,
		Kind:           key.Kind,
		FolderId:       key.FolderID,
		DocumentIDs:    slices.Sorted(slices.Values(key.DocumentIDs)),
		Params:         key.flatParams(),
		Payload:        artifact,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	if err := c.repo.PutCacheEntry(ctx, entry); err != nil {
		c.logger.Error("failed to store cache entry", "kind", key.Kind, "fingerprint", fingerprint, "err", err)
	}
	return &Result{
		Artifact:    artifact,
		Fingerprint: fingerprint,
		CreatedAt:   now,
	}, nil
}

// List returns entries of kind (every kind if empty), optionally restricted
// to folderID, newest first. limit <= 0 means no limit.
func (c *Cache) List(ctx context.Context, kind string, folderID core.ID, limit int) ([]*core.CacheEntry, error) {
	return c.repo.ListCacheEntries(ctx, kind, folderID, limit)
}

// Delete removes an entry. Returns storage.ErrNotFound if it does not exist.
func (c *Cache) Delete(ctx context.Context, fingerprint string) error {
	return c.repo.DeleteCacheEntry(ctx, fingerprint)
}
