package embedding

import (
	"errors"
	"fmt"

	"github.com/poiesic/seeq/core"
)

// ErrEmbedderRequired is returned when a Batcher is built without an embedder.
var ErrEmbedderRequired = errors.New("embedder is required")

// ServiceError reports a batch that could not be embedded.
// It matches core.ErrEmbeddingService under errors.Is.
type ServiceError struct {
	// Start and End delimit the failed batch within the input, End exclusive.
	Start, End int
	Err        error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("embedding service: batch %d-%d: %v", e.Start, e.End, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return target == core.ErrEmbeddingService
}
