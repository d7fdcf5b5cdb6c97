package ai

import (
	"context"

	"github.com/poiesic/seeq/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Labeler derives tags, a category and keywords for a document.
// Implementations must be thread-safe for concurrent use.
type Labeler interface {
	// Analyze labels text. filename contributes keyword hints and may be empty.
	// An unparseable model response yields fallback labels, not an error.
	// Returns an error wrapping core.ErrLabeling if the model call itself fails.
	Analyze(ctx context.Context, text, filename string) (*core.Labels, error)
}

// GenerateOptions tunes a single generation call.
type GenerateOptions struct {
	// System is an optional system prompt.
	System string

	// Temperature is the sampling temperature. Zero means deterministic.
	Temperature float64

	// MaxTokens caps the response length. Zero leaves it to the model.
	MaxTokens int
}

// Generator produces free text from a prompt.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate returns the model's reply to prompt.
	// Returns an error wrapping core.ErrGeneration on failure.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Labeler returns the document labeling service.
	Labeler() Labeler

	// Generator returns the text generation service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
