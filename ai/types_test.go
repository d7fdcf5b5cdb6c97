package ai

import (
	"strings"
	"testing"

	"github.com/poiesic/seeq/core"
	"github.com/stretchr/testify/assert"
)

func TestValidateLabels(t *testing.T) {
	high := 1.7
	low := -0.2

	tests := []struct {
		name string
		raw  RawLabels
		want *core.Labels
	}{
		{
			name: "defaults",
			raw:  RawLabels{},
			want: &core.Labels{Tags: []string{}, Keywords: []string{}, Category: CategoryOther, Confidence: 0.5},
		},
		{
			name: "bounds terms",
			raw: RawLabels{
				Tags:     []string{"a", "b", " ", "c", "d", "e", "f", "g"},
				Keywords: []string{"abcdefghijklmnopqrstuvwxyz"},
				Category: "law",
			},
			want: &core.Labels{
				Tags:       []string{"a", "b", "c", "d", "e"},
				Keywords:   []string{"abcdefghijklmno"},
				Category:   "law",
				Confidence: 0.5,
			},
		},
		{
			name: "unknown category and clamped confidence",
			raw:  RawLabels{Category: "poetry", Confidence: &high},
			want: &core.Labels{Tags: []string{}, Keywords: []string{}, Category: CategoryOther, Confidence: 1},
		},
		{
			name: "negative confidence",
			raw:  RawLabels{Category: "report", Confidence: &low},
			want: &core.Labels{Tags: []string{}, Keywords: []string{}, Category: "report", Confidence: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateLabels(tt.raw))
		})
	}
}

func TestHeuristicLabels(t *testing.T) {
	t.Run("short text", func(t *testing.T) {
		labels := HeuristicLabels("hello world hello")

		assert.Equal(t, []string{"short"}, labels.Tags)
		assert.Equal(t, []string{"hello"}, labels.Keywords)
		assert.Equal(t, CategoryOther, labels.Category)
		assert.InDelta(t, 0.3, labels.Confidence, 1e-9)
	})

	t.Run("long numeric text", func(t *testing.T) {
		labels := HeuristicLabels(strings.Repeat("alpha 1 ", 700))

		assert.Equal(t, []string{"long", "data"}, labels.Tags)
		assert.Equal(t, CategoryReport, labels.Category)
		assert.Equal(t, []string{"alpha"}, labels.Keywords)
	})
}

func TestFallbackLabels(t *testing.T) {
	labels := FallbackLabels("report report summary data data data")

	assert.Equal(t, []string{"auto-generated"}, labels.Tags)
	assert.Equal(t, CategoryOther, labels.Category)
	assert.Equal(t, []string{"data", "report", "summary"}, labels.Keywords)
	assert.InDelta(t, 0.2, labels.Confidence, 1e-9)
}

func TestMergeLabels(t *testing.T) {
	model := &core.Labels{Tags: []string{"a", "b"}, Category: "law", Keywords: []string{"x"}, Confidence: 0.8}
	heuristic := &core.Labels{Tags: []string{"b", "short"}, Category: CategoryOther, Keywords: []string{"x", "y"}, Confidence: 0.3}

	merged := MergeLabels(model, heuristic)
	assert.Equal(t, []string{"a", "b", "short"}, merged.Tags)
	assert.Equal(t, []string{"x", "y"}, merged.Keywords)
	assert.Equal(t, "law", merged.Category)
	assert.InDelta(t, 0.8, merged.Confidence, 1e-9)

	model.Category = ""
	assert.Equal(t, CategoryOther, MergeLabels(model, heuristic).Category)
	assert.Same(t, heuristic, MergeLabels(nil, heuristic))
}

func TestMergeLabelsCapsTags(t *testing.T) {
	model := &core.Labels{Tags: []string{"a", "b", "c", "d"}}
	heuristic := &core.Labels{Tags: []string{"e", "f"}}

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, MergeLabels(model, heuristic).Tags)
}

func TestFilenameHints(t *testing.T) {
	assert.Equal(t, []string{"quarterly", "report", "2024", "v2"}, FilenameHints("quarterly_report-2024.v2.pdf"))
	assert.Empty(t, FilenameHints("a.txt"))
	assert.Empty(t, FilenameHints(""))
}

func TestIsCategory(t *testing.T) {
	assert.True(t, IsCategory("meeting_minutes"))
	assert.True(t, IsCategory(CategoryOther))
	assert.False(t, IsCategory("Meeting Minutes"))
}
