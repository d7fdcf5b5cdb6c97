package reembed

import "errors"

var (
	// ErrRepositoryRequired is returned when no chunk repository is provided.
	ErrRepositoryRequired = errors.New("chunk repository required")

	// ErrBatcherRequired is returned when no embedding batcher is provided.
	ErrBatcherRequired = errors.New("embedding batcher required")
)
