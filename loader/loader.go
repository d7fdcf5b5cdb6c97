// Package loader extracts plain text from uploaded files.
//
// The format is chosen by the lower-cased file extension. PDF, HTML and
// plain text go through langchaingo document loaders; DOCX is read from
// the word/document.xml part of the archive; Markdown is rendered to text
// by walking the goldmark AST.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/poiesic/seeq/core"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

// Loaded is the text extracted from one file.
type Loaded struct {
	Text     string
	FileType string
	Pages    int
}

type extractFunc func(ctx context.Context, data []byte) ([]string, error)

var extractors = map[string]extractFunc{
	"pdf":  loadPDF,
	"docx": loadDOCX,
	"txt":  loadText,
	"html": loadHTML,
	"htm":  loadHTML,
	"md":   loadMarkdown,
}

// FileType returns the lower-cased extension of filename without the dot.
func FileType(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Supported reports whether filename has an extension Load can handle.
func Supported(filename string) bool {
	_, ok := extractors[FileType(filename)]
	return ok
}

// Load extracts the text of data, choosing a format by filename's extension.
// Pages are joined with a newline.
func Load(ctx context.Context, filename string, data []byte) (*Loaded, error) {
	fileType := FileType(filename)
	extract, ok := extractors[fileType]
	if !ok {
		return nil, &core.UnsupportedFormatError{Ext: filepath.Ext(filename)}
	}

	pages, err := extract(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filename, err)
	}

	return &Loaded{
		Text:     strings.Join(pages, "\n"),
		FileType: fileType,
		Pages:    len(pages),
	}, nil
}

func loadPDF(ctx context.Context, data []byte) ([]string, error) {
	docs, err := documentloaders.NewPDF(bytes.NewReader(data), int64(len(data))).Load(ctx)
	if err != nil {
		return nil, err
	}
	return pageContents(docs), nil
}

func loadHTML(ctx context.Context, data []byte) ([]string, error) {
	docs, err := documentloaders.NewHTML(bytes.NewReader(data)).Load(ctx)
	if err != nil {
		return nil, err
	}
	return pageContents(docs), nil
}

func loadText(ctx context.Context, data []byte) ([]string, error) {
	docs, err := documentloaders.NewText(bytes.NewReader(data)).Load(ctx)
	if err != nil {
		return nil, err
	}
	return pageContents(docs), nil
}

func pageContents(docs []schema.Document) []string {
	pages := make([]string, 0, len(docs))
	for _, doc := range docs {
		pages = append(pages, doc.PageContent)
	}
	return pages
}
