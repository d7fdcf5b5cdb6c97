package bridge

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTitle is used for records without a usable title.
const DefaultTitle = "Untitled"

// FileIDPrefix marks file ids of bridged documents.
const FileIDPrefix = "ocr_"

// Record is one foreign record. Fields holds the record's top level fields
// with nested documents as map[string]any and arrays as []any.
type Record struct {
	ID     string
	Fields map[string]any
}

// FileID is the synthetic external id the record is stored under.
func (r Record) FileID() string {
	return FileIDPrefix + r.ID
}

// Title returns the trimmed title field, or DefaultTitle.
func (r Record) Title() string {
	if s, ok := r.Fields["title"].(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return DefaultTitle
}

// Timestamp returns the record's timestamp field as UTC. Native times and
// strings in the OCR service's formats are understood.
func (r Record) Timestamp() (time.Time, bool) {
	return ParseTimestamp(r.Fields["timestamp"])
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp converts a timestamp field value. Strings without a zone
// are taken as UTC.
func ParseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// stringify renders a scalar field value.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
