package ingestion

import "errors"

var (
	// ErrRepositoriesRequired is returned when repositories are not provided.
	ErrRepositoriesRequired = errors.New("repositories required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEmptyFilename is returned when an artifact has no filename.
	ErrEmptyFilename = errors.New("artifact filename required")
)

// Failure stages recorded in core.FailureRecord.Stage.
const (
	StageExtract = "extract"
	StageFolder  = "folder"
	StageLabel   = "label"
	StagePersist = "persist"
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StageIndex   = "index"
)
