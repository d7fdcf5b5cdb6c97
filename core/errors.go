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


package core

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy
var (
	// ErrUnsupportedFormat indicates a file extension no loader handles.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrFolderNotFound indicates an explicit folder id that does not exist.
	ErrFolderNotFound = errors.New("folder not found")

	// ErrEmbeddingService indicates the embedding service failed a batch.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrLabeling indicates automatic labeling failed. Never fatal.
	ErrLabeling = errors.New("labeling failed")

	// ErrPersistence indicates a store write failed.
	ErrPersistence = errors.New("persistence failed")

	// ErrParse indicates model output was not valid structured data.
	ErrParse = errors.New("unparseable model output")

	// ErrGeneration indicates the text generation service failed.
	ErrGeneration = errors.New("generation failed")
)

// Domain validation errors
var (
	// ErrInvalidID indicates an identifier string that does not parse.
	ErrInvalidID = errors.New("invalid identifier")

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidFolder indicates a Folder failed validation.
	ErrInvalidFolder = errors.New("invalid folder")

	// ErrEmptyFileID indicates the file metadata carries no external id.
	ErrEmptyFileID = errors.New("file id cannot be empty")

	// ErrEmptyTitle indicates a folder title is empty.
	ErrEmptyTitle = errors.New("folder title cannot be empty")

	// ErrInvalidFolderType indicates an unknown folder type.
	ErrInvalidFolderType = errors.New("invalid folder type")
)

// UnsupportedFormatError reports the extension that could not be loaded.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnsupportedFormat, e.Ext)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// FolderNotFoundError reports the folder id that was requested.
type FolderNotFoundError struct {
	ID ID
}

func (e *FolderNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrFolderNotFound, e.ID)
}

func (e *FolderNotFoundError) Is(target error) bool {
	return target == ErrFolderNotFound
}
