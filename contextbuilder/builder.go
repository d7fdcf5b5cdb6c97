// Package contextbuilder packs ranked search results into a bounded block of
// text for a generation call.
//
// Length is budgeted in estimated tokens, one token per four runes. Build
// never returns text whose estimate exceeds the budget: packing stops before
// the first block that would overflow it.
package contextbuilder

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/seeq/core"
)

// DefaultMaxTokens is the budget used when a caller passes zero or less.
const DefaultMaxTokens = 2000

// Grouping selects how results are packed.
type Grouping int

const (
	// Flat keeps ranked order, one labelled block per chunk.
	Flat Grouping = iota
	// ByDocument emits one header per document, in the order documents first
	// appear among the results, followed by its chunks in sequence order.
	ByDocument
)

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// budget tracks the rune length of parts joined by sep.
type budget struct {
	maxTokens int
	runes     int
	parts     []string
	sep       string
}

func newBudget(maxTokens int, sep string) *budget {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &budget{maxTokens: maxTokens, sep: sep}
}

// cost is the rune count added by appending s as a new part.
func (b *budget) cost(s string) int {
	n := utf8.RuneCountInString(s)
	if len(b.parts) > 0 {
		n += utf8.RuneCountInString(b.sep)
	}
	return n
}

func (b *budget) fits(extra int) bool {
	return (b.runes+extra)/4 <= b.maxTokens
}

func (b *budget) add(s string) bool {
	c := b.cost(s)
	if !b.fits(c) {
		return false
	}
	b.parts = append(b.parts, s)
	b.runes += c
	return true
}

func (b *budget) String() string {
	return strings.Join(b.parts, b.sep)
}

// Build packs results into at most maxTokens estimated tokens.
func Build(results []*core.SearchResult, maxTokens int, grouping Grouping) string {
	if grouping == ByDocument {
		return buildGrouped(results, maxTokens)
	}
	return buildFlat(results, maxTokens)
}

func buildFlat(results []*core.SearchResult, maxTokens int) string {
	b := newBudget(maxTokens, "\n")
	for i, r := range results {
		if r == nil || r.Chunk == nil || r.Chunk.Text == "" {
			continue
		}
		block := fmt.Sprintf("[Doc %d] %s (chunk %d, similarity: %.3f)\n%s\n",
			i+1, filename(r), r.Chunk.Sequence+1, r.Score, r.Chunk.Text)
		if !b.add(block) {
			break
		}
	}
	return b.String()
}

type group struct {
	filename string
	results  []*core.SearchResult
}

// groupByDocument partitions results by document in first-seen order.
func groupByDocument(results []*core.SearchResult) []*group {
	var groups []*group
	index := make(map[core.ID]*group)
	for _, r := range results {
		if r == nil || r.Chunk == nil {
			continue
		}
		g, ok := index[r.Chunk.DocumentId]
		if !ok {
			g = &group{filename: filename(r)}
			index[r.Chunk.DocumentId] = g
			groups = append(groups, g)
		}
		g.results = append(g.results, r)
	}
	for _, g := range groups {
		slices.SortStableFunc(g.results, func(a, b *core.SearchResult) int {
			return a.Chunk.Sequence - b.Chunk.Sequence
		})
	}
	return groups
}

func buildGrouped(results []*core.SearchResult, maxTokens int) string {
	b := newBudget(maxTokens, "\n")

	for _, g := range groupByDocument(results) {
		var part strings.Builder
		part.WriteString(fmt.Sprintf("\n=== %s ===\n", g.filename))
		header := part.Len()

		full := false
		for _, r := range g.results {
			block := fmt.Sprintf("[chunk %d] (similarity: %.3f)\n%s\n", r.Chunk.Sequence+1, r.Score, r.Chunk.Text)
			if !b.fits(b.cost(part.String() + block)) {
				full = true
				break
			}
			part.WriteString(block)
		}

		// A header is only emitted with at least one chunk under it.
		if part.Len() > header {
			b.add(part.String())
		}
		if full {
			break
		}
	}
	return b.String()
}

func filename(r *core.SearchResult) string {
	if r.Filename == "" {
		return core.UnknownFilename
	}
	return r.Filename
}
