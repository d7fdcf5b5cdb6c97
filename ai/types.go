package ai

import (
	"cmp"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/seeq/core"
)

// Categories is the closed set of document categories a labeler may assign.
// Anything else is coerced to CategoryOther.
var Categories = []string{
	"academic",
	"literature",
	"science_technology",
	"economics_business",
	"law",
	"medicine",
	"education",
	"art",
	"history",
	"philosophy",
	"religion",
	"social_science",
	"technical_document",
	"manual",
	"meeting_minutes",
	"report",
	CategoryOther,
}

const (
	CategoryOther  = "other"
	CategoryReport = "report"

	MaxTags          = 5
	MaxTagLength     = 20
	MaxKeywords      = 7
	MaxKeywordLength = 15

	// AnalysisWindow is how much of a document the model sees.
	AnalysisWindow = 2000

	longDocument  = 5000
	shortDocument = 500
	dataNumbers   = 20
)

var (
	wordRe   = regexp.MustCompile(`\p{L}{2,}`)
	numberRe = regexp.MustCompile(`\d+`)
)

// IsCategory reports whether c is one of Categories.
func IsCategory(c string) bool {
	return slices.Contains(Categories, c)
}

// RawLabels is the unvalidated shape a model returns.
type RawLabels struct {
	Tags       []string `json:"tags"`
	Category   string   `json:"category"`
	Keywords   []string `json:"keywords"`
	Confidence *float64 `json:"confidence_score"`
}

// ValidateLabels bounds and cleans model output.
func ValidateLabels(raw RawLabels) *core.Labels {
	labels := &core.Labels{
		Tags:       limitTerms(raw.Tags, MaxTags, MaxTagLength),
		Keywords:   limitTerms(raw.Keywords, MaxKeywords, MaxKeywordLength),
		Category:   strings.TrimSpace(raw.Category),
		Confidence: 0.5,
	}
	if !IsCategory(labels.Category) {
		labels.Category = CategoryOther
	}
	if raw.Confidence != nil {
		labels.Confidence = min(max(*raw.Confidence, 0), 1)
	}
	return labels
}

func limitTerms(terms []string, count, length int) []string {
	out := make([]string, 0, min(len(terms), count))
	for _, t := range terms {
		if len(out) == count {
			break
		}
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if utf8.RuneCountInString(t) > length {
			t = string([]rune(t)[:length])
		}
		out = append(out, t)
	}
	return out
}

// HeuristicLabels labels text from surface statistics alone.
func HeuristicLabels(text string) *core.Labels {
	labels := &core.Labels{
		Tags:       []string{},
		Category:   CategoryOther,
		Confidence: 0.3,
	}

	n := utf8.RuneCountInString(text)
	switch {
	case n > longDocument:
		labels.Tags = append(labels.Tags, "long")
	case n < shortDocument:
		labels.Tags = append(labels.Tags, "short")
	}

	if len(numberRe.FindAllString(text, -1)) > dataNumbers {
		labels.Tags = append(labels.Tags, "data")
		labels.Category = CategoryReport
	}

	labels.Keywords = frequentWords(text, 2, 5, 2)
	return labels
}

// FallbackLabels is used when the model answered but its reply could not be parsed.
func FallbackLabels(text string) *core.Labels {
	window := []rune(text)
	if len(window) > 1000 {
		window = window[:1000]
	}
	return &core.Labels{
		Tags:       []string{"auto-generated"},
		Category:   CategoryOther,
		Keywords:   frequentWords(string(window), 3, 3, 1),
		Confidence: 0.2,
	}
}

// DefaultLabels is the last resort when no analysis could run.
func DefaultLabels() *core.Labels {
	return &core.Labels{
		Tags:       []string{"document"},
		Category:   CategoryOther,
		Keywords:   []string{},
		Confidence: 0.1,
	}
}

// MergeLabels combines model labels with heuristic ones.
// The model's category wins when set; tags and keywords are unioned in order.
func MergeLabels(model, heuristic *core.Labels) *core.Labels {
	if model == nil {
		return heuristic
	}
	if heuristic == nil {
		return model
	}
	merged := &core.Labels{
		Category:   cmp.Or(model.Category, heuristic.Category),
		Confidence: max(model.Confidence, heuristic.Confidence),
		Tags:       union(MaxTags, model.Tags, heuristic.Tags),
		Keywords:   union(MaxKeywords, model.Keywords, heuristic.Keywords),
	}
	return merged
}

func union(limit int, lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, list := range lists {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			if len(out) == limit {
				return out
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// FilenameHints splits a filename into words usable as keyword hints.
func FilenameHints(filename string) []string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	fields := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
	})
	var hints []string
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= 2 {
			hints = append(hints, f)
		}
	}
	return hints
}

// frequentWords returns up to limit lower-cased words of at least minLen
// letters seen at least minCount times, most frequent first.
func frequentWords(text string, minLen, limit, minCount int) []string {
	counts := make(map[string]int)
	var order []string
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if utf8.RuneCountInString(w) < minLen {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	slices.SortStableFunc(order, func(a, b string) int {
		return cmp.Compare(counts[b], counts[a])
	})

	out := []string{}
	for _, w := range order {
		if len(out) == limit {
			break
		}
		if counts[w] >= minCount {
			out = append(out, w)
		}
	}
	return out
}
