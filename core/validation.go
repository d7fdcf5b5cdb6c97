package core

import (
	"fmt"
	"strings"
)

// ValidateDocument checks the invariants a Document must hold before it is stored.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if strings.TrimSpace(doc.File.FileID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyFileID)
	}

	if doc.FolderId == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrInvalidID)
	}

	return nil
}

// ValidateChunks checks that chunks belong to one document and carry contiguous sequences.
func ValidateChunks(chunks []*Chunk) error {
	for i, chunk := range chunks {
		if chunk == nil {
			return fmt.Errorf("%w: chunk %d is nil", ErrInvalidChunk, i)
		}
		if chunk.Sequence != i {
			return fmt.Errorf("%w: sequence %d at position %d", ErrInvalidChunk, chunk.Sequence, i)
		}
		if chunk.DocumentId != chunks[0].DocumentId {
			return fmt.Errorf("%w: chunks span documents", ErrInvalidChunk)
		}
	}
	return nil
}

// ValidateFolderType checks that folderType is a known grouping type.
func ValidateFolderType(folderType string) error {
	if folderType != FolderTypeLibrary && folderType != FolderTypeOCR {
		return fmt.Errorf("%w: %q", ErrInvalidFolderType, folderType)
	}
	return nil
}

// ValidateFolder checks a Folder prior to storage.
func ValidateFolder(folder *Folder) error {
	if folder == nil {
		return fmt.Errorf("%w: folder is nil", ErrInvalidFolder)
	}

	if strings.TrimSpace(folder.Title) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFolder, ErrEmptyTitle)
	}

	if err := ValidateFolderType(folder.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFolder, err)
	}

	return nil
}
