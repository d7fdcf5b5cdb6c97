package generation

import (
	"errors"
	"fmt"

	"github.com/poiesic/seeq/core"
)

var (
	// ErrRepositoriesRequired is returned when a required repository is not provided.
	ErrRepositoriesRequired = errors.New("repositories required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrSearcherRequired is returned when an answerer has no searcher.
	ErrSearcherRequired = errors.New("searcher required")

	// ErrScopeRequired is returned when a summary names neither documents nor a folder.
	ErrScopeRequired = errors.New("document ids or folder id required")

	// ErrInvalidSummaryType is returned for an unknown summary type.
	ErrInvalidSummaryType = errors.New("invalid summary type")

	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrInvalidContentType is returned for an unknown recommendation content type.
	ErrInvalidContentType = errors.New("invalid content type")

	// ErrKeywordsRequired is returned when a recommendation names neither
	// keywords nor documents to take them from.
	ErrKeywordsRequired = errors.New("keywords, file id or folder id required")

	// ErrNoKeywords is returned when no keywords could be taken from the documents in scope.
	ErrNoKeywords = errors.New("no keywords found in documents")
)

// GenerationError reports which operation the generator failed in.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func (e *GenerationError) Is(target error) bool {
	return target == core.ErrGeneration
}
