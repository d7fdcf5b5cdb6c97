package core

import (
	"errors"
	"math"
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "same content produces same ID", content: "test content"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
			if uint64(id1) > math.MaxInt64 {
				t.Errorf("IDFromContent() = %d, exceeds int64 range", id1)
			}
			if id1 == 0 {
				t.Errorf("IDFromContent() returned zero")
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("content1")
	id2 := IDFromContent("content2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestFolderID(t *testing.T) {
	if FolderID(FolderTypeOCR, "Scans") != FolderID(FolderTypeOCR, "Scans") {
		t.Error("FolderID() not deterministic")
	}
	if FolderID(FolderTypeOCR, "Scans") == FolderID(FolderTypeLibrary, "Scans") {
		t.Error("FolderID() ignores folder type")
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ID
		wantErr bool
	}{
		{name: "decimal", input: "42", want: 42},
		{name: "whitespace", input: " 7 ", want: 7},
		{name: "zero", input: "0", wantErr: true},
		{name: "title", input: "Research", wantErr: true},
		{name: "negative", input: "-3", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseID(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidID) {
					t.Errorf("ParseID(%q) error = %v, want ErrInvalidID", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseID(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseID(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestID_StringRoundTrip(t *testing.T) {
	id := IDFromContent("round trip")
	parsed, err := ParseID(id.String())
	if err != nil {
		t.Fatalf("ParseID() error: %v", err)
	}
	if parsed != id {
		t.Errorf("round trip = %d, want %d", parsed, id)
	}
}

func TestLabels_HasTag(t *testing.T) {
	labels := &Labels{Tags: []string{"finance", "report"}}

	if !labels.HasTag("report") {
		t.Error("HasTag(report) = false")
	}
	if !labels.HasTag("legal", "finance") {
		t.Error("HasTag(legal, finance) = false")
	}
	if labels.HasTag("legal") {
		t.Error("HasTag(legal) = true")
	}

	var none *Labels
	if none.HasTag("finance") {
		t.Error("nil labels reported a tag")
	}
}

func TestChunkFilter_Matches(t *testing.T) {
	chunk := &Chunk{DocumentId: 3, FileID: "f-1", FolderId: 9}

	tests := []struct {
		name   string
		filter ChunkFilter
		want   bool
	}{
		{name: "empty filter", filter: ChunkFilter{}, want: true},
		{name: "folder match", filter: ChunkFilter{FolderId: 9}, want: true},
		{name: "folder mismatch", filter: ChunkFilter{FolderId: 8}, want: false},
		{name: "file match", filter: ChunkFilter{FileID: "f-1"}, want: true},
		{name: "file mismatch", filter: ChunkFilter{FileID: "f-2"}, want: false},
		{name: "document and folder", filter: ChunkFilter{FolderId: 9, DocumentId: 3}, want: true},
		{name: "document mismatch", filter: ChunkFilter{DocumentId: 4}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(chunk); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorTypes(t *testing.T) {
	var err error = &UnsupportedFormatError{Ext: ".xyz"}
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Error("UnsupportedFormatError does not match ErrUnsupportedFormat")
	}

	err = &FolderNotFoundError{ID: 12}
	if !errors.Is(err, ErrFolderNotFound) {
		t.Error("FolderNotFoundError does not match ErrFolderNotFound")
	}
	var fnf *FolderNotFoundError
	if !errors.As(err, &fnf) || fnf.ID != 12 {
		t.Error("errors.As failed for FolderNotFoundError")
	}
}
