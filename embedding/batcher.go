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


// Package embedding turns many texts into vectors through an ai.Embedder,
// a bounded batch at a time.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/poiesic/seeq/ai"
)

const (
	DefaultBatchSize       = 20
	DefaultMaxAttempts     = 3
	DefaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 10 * time.Second
)

// Batcher embeds texts in sequential batches, retrying each batch with
// exponential backoff.
type Batcher struct {
	embedder        ai.Embedder
	batchSize       int
	maxAttempts     int
	initialInterval time.Duration
	logger          *slog.Logger
}

// Option configures a Batcher.
type Option func(*Batcher)

// WithBatchSize sets how many texts go into one embedder call.
func WithBatchSize(n int) Option {
	return func(b *Batcher) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithMaxAttempts bounds how often a failing batch is tried.
func WithMaxAttempts(n int) Option {
	return func(b *Batcher) {
		if n > 0 {
			b.maxAttempts = n
		}
	}
}

// WithInitialInterval sets the first retry delay.
func WithInitialInterval(d time.Duration) Option {
	return func(b *Batcher) {
		if d > 0 {
			b.initialInterval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Batcher) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBatcher creates a Batcher over embedder.
func NewBatcher(embedder ai.Embedder, opts ...Option) (*Batcher, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	b := &Batcher{
		embedder:        embedder,
		batchSize:       DefaultBatchSize,
		maxAttempts:     DefaultMaxAttempts,
		initialInterval: DefaultInitialInterval,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "embedding-batcher")
	return b, nil
}

// BatchSize returns the configured batch size.
func (b *Batcher) BatchSize() int {
	return b.batchSize
}

// EmbedBatch embeds texts and returns one vector per text in input order.
// Batches run one after another; the first batch that still fails after
// retries aborts the call with a *ServiceError.
func (b *Batcher) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))

		batch, err := b.embedWithRetry(ctx, texts[start:end])
		if err != nil {
			b.logger.Error("batch failed", "start", start, "end", end, "err", err)
			return nil, &ServiceError{Start: start, End: end, Err: err}
		}
		vectors = append(vectors, batch...)
		b.logger.Debug("embedded batch", "start", start, "end", end, "total", len(texts))
	}
	return vectors, nil
}

// EmbedQuery embeds a single text, typically a search query.
func (b *Batcher) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := backoff.RetryNotifyWithData(func() ([]float32, error) {
		v, err := b.embedder.EmbedText(ctx, text)
		if err != nil {
			return nil, classify(ctx, err)
		}
		return v, nil
	}, b.policy(ctx), b.notify)
	if err != nil {
		return nil, &ServiceError{Start: 0, End: 1, Err: err}
	}
	return vector, nil
}

func (b *Batcher) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	return backoff.RetryNotifyWithData(func() ([][]float32, error) {
		vectors, err := b.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, classify(ctx, err)
		}
		if len(vectors) != len(texts) {
			return nil, backoff.Permanent(fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts)))
		}
		return vectors, nil
	}, b.policy(ctx), b.notify)
}

func (b *Batcher) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(b.initialInterval),
		backoff.WithMaxInterval(defaultMaxInterval),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(b.maxAttempts-1)), ctx)
}

func (b *Batcher) notify(err error, next time.Duration) {
	b.logger.Warn("embedding failed, retrying", "err", err, "next", next)
}

// classify marks errors that retrying cannot fix.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	return err
}
