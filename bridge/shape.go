package bridge

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Shape is the recognized layout of a foreign record. A record is
// classified once, and its text is rendered from the shape alone.
type Shape interface {
	// Kind names the shape for logs and metadata.
	Kind() string
	// Render returns the document text. It is never empty.
	Render(title string) string
}

// Page is one page of OCR output. Number is 1-based and keeps the page's
// position in the source even when earlier pages were empty.
type Page struct {
	Number int
	Text   string
}

// StringPages is a record whose pages are plain strings.
type StringPages struct {
	Pages []Page
}

// ObjectPages is a record whose pages are objects carrying their text in a
// text, content or data field, or spread over string fields.
type ObjectPages struct {
	Pages []Page
}

// FlatContent is a record with its text in a single top level field.
type FlatContent struct {
	Label string
	Text  string
}

// ImageOnly is a record with an image and no text.
type ImageOnly struct{}

// Field is a key and string value pair.
type Field struct {
	Key   string
	Value string
}

// Unknown is a record in no recognized layout. Fields holds its remaining
// string fields, sorted by key, and may be empty.
type Unknown struct {
	Fields []Field
}

func (StringPages) Kind() string { return "string_pages" }
func (ObjectPages) Kind() string { return "object_pages" }
func (FlatContent) Kind() string { return "flat_content" }
func (ImageOnly) Kind() string   { return "image_only" }
func (Unknown) Kind() string     { return "unknown" }

func (s StringPages) Render(string) string { return renderPages(s.Pages) }
func (s ObjectPages) Render(string) string { return renderPages(s.Pages) }

func (s FlatContent) Render(string) string {
	return fmt.Sprintf("[%s]\n%s\n\n", s.Label, s.Text)
}

func (ImageOnly) Render(title string) string {
	return fmt.Sprintf("[Image document]\nTitle: %s\nDescription: This document contains only an image.\n", title)
}

func (s Unknown) Render(title string) string {
	if len(s.Fields) == 0 {
		return fmt.Sprintf("[Empty document]\nTitle: %s\nDescription: No text could be extracted from this document.\n", title)
	}
	lines := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		lines = append(lines, f.Key+": "+f.Value)
	}
	return "[Document information]\n" + strings.Join(lines, "\n") + "\n\n"
}

func renderPages(pages []Page) string {
	var b strings.Builder
	for _, p := range pages {
		fmt.Fprintf(&b, "[Page %d]\n%s\n\n", p.Number, p.Text)
	}
	return b.String()
}

// Top level fields tried in order for flat content, with the label each is
// rendered under.
var flatFields = []struct{ name, label string }{
	{"content", "Page 1"},
	{"text", "Page 1"},
	{"description", "Description"},
	{"data", "data"},
	{"message", "message"},
	{"body", "body"},
	{"details", "details"},
}

// Fields never treated as text.
var reservedFields = map[string]bool{"_id": true, "timestamp": true, "image_base64": true}

// Classify resolves the shape of a record. Pages win over flat fields, flat
// fields over an image, and anything else is Unknown.
func Classify(r Record) Shape {
	if shape := classifyPages(r.Fields["pages"]); shape != nil {
		return shape
	}

	for _, f := range flatFields {
		if text := flatText(r.Fields[f.name], f.name == "content"); text != "" {
			return FlatContent{Label: f.label, Text: text}
		}
	}

	if _, ok := r.Fields["image_base64"]; ok {
		return ImageOnly{}
	}

	var fields []Field
	for _, key := range slices.Sorted(maps.Keys(r.Fields)) {
		if reservedFields[key] {
			continue
		}
		if s, ok := r.Fields[key].(string); ok && strings.TrimSpace(s) != "" {
			fields = append(fields, Field{Key: key, Value: s})
		}
	}
	return Unknown{Fields: fields}
}

// classifyPages returns nil when the pages field holds no text.
func classifyPages(v any) Shape {
	switch pages := v.(type) {
	case string:
		if strings.TrimSpace(pages) == "" {
			return nil
		}
		return StringPages{Pages: []Page{{Number: 1, Text: pages}}}

	case map[string]any:
		text := ""
		if t, ok := pages["text"]; ok {
			text = stringify(t)
		} else {
			text = joinStrings(pages)
		}
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return ObjectPages{Pages: []Page{{Number: 1, Text: text}}}

	case []any:
		var out []Page
		objects := false
		for i, page := range pages {
			var text string
			switch p := page.(type) {
			case nil:
				continue
			case map[string]any:
				objects = true
				text = pageObjectText(p)
			default:
				text = stringify(p)
			}
			if strings.TrimSpace(text) == "" {
				continue
			}
			out = append(out, Page{Number: i + 1, Text: strings.TrimSpace(text)})
		}
		if len(out) == 0 {
			return nil
		}
		if objects {
			return ObjectPages{Pages: out}
		}
		return StringPages{Pages: out}
	}
	return nil
}

func pageObjectText(page map[string]any) string {
	for _, key := range []string{"text", "content", "data"} {
		if v, ok := page[key]; ok {
			return stringify(v)
		}
	}
	return joinStrings(page)
}

// flatText reads a top level text field. Objects are only accepted for the
// content field.
func flatText(v any, allowObject bool) string {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) != "" {
			return t
		}
	case map[string]any:
		if allowObject {
			return joinStrings(t)
		}
	}
	return ""
}

// joinStrings joins the non-blank string values of m in key order.
func joinStrings(m map[string]any) string {
	var values []string
	for _, key := range slices.Sorted(maps.Keys(m)) {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			values = append(values, s)
		}
	}
	return strings.Join(values, " ")
}
