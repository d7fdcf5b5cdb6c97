package contextbuilder

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/poiesic/seeq/core"
)

// QAPair is a previously answered question.
type QAPair struct {
	Question string
	Answer   string
}

// BuildQA returns the grounding text for answering query: the grouped
// document context within maxTokens, then the question.
func BuildQA(query string, results []*core.SearchResult, maxTokens int) string {
	var b strings.Builder
	b.WriteString("=== Related documents ===\n")
	b.WriteString(Build(results, maxTokens, ByDocument))
	b.WriteString("\n\n=== Question ===\n")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\n")
	return b.String()
}

// BuildQAPairs formats earlier question and answer pairs.
func BuildQAPairs(pairs []QAPair) string {
	parts := make([]string, 0, len(pairs))
	for _, qa := range pairs {
		parts = append(parts, fmt.Sprintf("Q: %s\nA: %s\n", qa.Question, qa.Answer))
	}
	return strings.Join(parts, "\n")
}

// BuildFull assembles every available section: grouped documents within
// the default budget, earlier QA pairs and free-form info sorted by key.
// Empty sections are omitted.
func BuildFull(results []*core.SearchResult, pairs []QAPair, info map[string]string) string {
	var parts []string
	if len(results) > 0 {
		parts = append(parts, "=== Related documents ===", Build(results, DefaultMaxTokens, ByDocument))
	}
	if len(pairs) > 0 {
		parts = append(parts, "\n=== Related questions ===", BuildQAPairs(pairs))
	}
	if len(info) > 0 {
		parts = append(parts, "\n=== Additional information ===")
		for _, key := range slices.Sorted(maps.Keys(info)) {
			parts = append(parts, key+": "+info[key])
		}
	}
	return strings.Join(parts, "\n")
}

// FileSummary counts the chunks one file contributed.
type FileSummary struct {
	FileID     string
	Filename   string
	ChunkCount int
}

// Summary describes a result set.
type Summary struct {
	TotalChunks int
	UniqueFiles int
	AvgScore    float32
	MaxScore    float32
	MinScore    float32
	Files       []FileSummary
}

// Summarize computes statistics over results. Files appear in first-seen order.
func Summarize(results []*core.SearchResult) Summary {
	var s Summary
	index := make(map[string]int)
	var total float32
	for _, r := range results {
		if r == nil || r.Chunk == nil {
			continue
		}
		if s.TotalChunks == 0 || r.Score > s.MaxScore {
			s.MaxScore = r.Score
		}
		if s.TotalChunks == 0 || r.Score < s.MinScore {
			s.MinScore = r.Score
		}
		s.TotalChunks++
		total += r.Score

		fileID := r.Chunk.FileID
		if fileID == "" {
			continue
		}
		i, ok := index[fileID]
		if !ok {
			i = len(s.Files)
			index[fileID] = i
			s.Files = append(s.Files, FileSummary{FileID: fileID, Filename: filename(r)})
		}
		s.Files[i].ChunkCount++
	}
	s.UniqueFiles = len(s.Files)
	if s.TotalChunks > 0 {
		s.AvgScore = total / float32(s.TotalChunks)
	}
	return s
}
