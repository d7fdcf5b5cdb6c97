package generation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/seeq/ai"
	"github.com/poiesic/seeq/contextbuilder"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/search"
)

// DefaultTopK is the number of chunks retrieved when AnswerOptions.K is unset.
const DefaultTopK = 5

// NoDocumentsAnswer is returned when retrieval finds nothing.
const NoDocumentsAnswer = "No relevant documents were found for this question."

const excerptLength = 200

const answerSystemPrompt = "Answer the user's question using the provided context. " +
	"Be accurate and helpful, and do not guess at anything the context does not contain."

// AnswerOptions narrows retrieval for one question.
type AnswerOptions struct {
	K          int
	Filter     search.Filter
	Categories []string
	Tags       []string
	MaxTokens  int
}

// Source is a chunk the answer was grounded on.
type Source struct {
	DocumentID core.ID
	FileID     string
	Filename   string
	Sequence   int
	Score      float32
	Excerpt    string
}

// Answer is a generated answer with its sources.
type Answer struct {
	Answer  string
	Sources []Source
}

// Answerer answers questions from retrieved chunks.
type Answerer struct {
	searcher  *search.HybridSearcher
	generator ai.Generator
	logger    *slog.Logger
}

// NewAnswerer creates an answerer over searcher.
func NewAnswerer(searcher *search.HybridSearcher, provider ai.AIProvider, opts ...Option) (*Answerer, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	s := apply(opts)
	return &Answerer{
		searcher:  searcher,
		generator: provider.Generator(),
		logger:    s.logger.With("component", "answerer"),
	}, nil
}

// Answer retrieves context for question and asks the generator. When no
// chunk is retrieved the model is not called and NoDocumentsAnswer is returned.
func (a *Answerer) Answer(ctx context.Context, question string, opts AnswerOptions) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	k := opts.K
	if k <= 0 {
		k = DefaultTopK
	}

	results, err := a.searcher.Search(ctx, question, k, opts.Filter, opts.Categories, opts.Tags)
	if err != nil {
		return nil, err
	}
	a.logger.Info("retrieved context", "question", question, "chunks", len(results))
	if len(results) == 0 {
		return &Answer{Answer: NoDocumentsAnswer, Sources: []Source{}}, nil
	}

	prompt := contextbuilder.BuildQA(question, results, opts.MaxTokens) + "\nAnswer:"
	reply, err := a.generator.Generate(ctx, prompt, ai.GenerateOptions{
		System:      answerSystemPrompt,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, &GenerationError{Op: "answer", Err: err}
	}

	sources := make([]Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, Source{
			DocumentID: r.Chunk.DocumentId,
			FileID:     r.Chunk.FileID,
			Filename:   r.Filename,
			Sequence:   r.Chunk.Sequence,
			Score:      r.Score,
			Excerpt:    excerpt(r.Chunk.Text),
		})
	}
	return &Answer{Answer: reply, Sources: sources}, nil
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLength {
		return text
	}
	return string(runes[:excerptLength]) + "..."
}
