package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/seeq/ai"
	"github.com/poiesic/seeq/cache"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/storage"
)

// SummaryType selects the shape of a summary.
type SummaryType string

const (
	SummaryBrief    SummaryType = "brief"
	SummaryDetailed SummaryType = "detailed"
	SummaryBullets  SummaryType = "bullets"
)

// CacheKindSummary is the cache kind summaries are stored under.
const CacheKindSummary = "summary"

// MaxSummaryInput caps the runes of document text sent to the model.
const MaxSummaryInput = 8000

const summaryMaxTokens = 500

// NoDocumentsSummary is returned when the scope holds no text.
const NoDocumentsSummary = "There are no documents to summarize."

// ParseSummaryType validates s. An empty string means SummaryBrief.
func ParseSummaryType(s string) (SummaryType, error) {
	switch t := SummaryType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return SummaryBrief, nil
	case SummaryBrief, SummaryDetailed, SummaryBullets:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSummaryType, s)
	}
}

func summaryPrompt(t SummaryType, text string) string {
	switch t {
	case SummaryDetailed:
		return "Summarize the following text in detail. Cover the main content and the key points:\n\n" + text
	case SummaryBullets:
		return "Summarize the key content of the following text as bullet points:\n\n" + text
	default:
		return "Summarize the following text in one or two sentences:\n\n" + text
	}
}

// SummaryRequest scopes a summary to explicit files or to a whole folder.
// DocumentIDs are external file ids and take precedence over FolderID.
type SummaryRequest struct {
	FolderID    core.ID
	DocumentIDs []string
	Type        SummaryType
}

// Summary is a generated or cached summary.
type Summary struct {
	Summary       string
	Type          SummaryType
	DocumentCount int
	FromCache     bool
	CreatedAt     time.Time
	Fingerprint   string
}

type settings struct {
	logger *slog.Logger
}

type Option func(*settings)

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

func apply(opts []Option) settings {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Summarizer summarizes stored documents through the cache.
type Summarizer struct {
	documents storage.DocumentRepository
	folders   storage.FolderRepository
	cache     *cache.Cache
	generator ai.Generator
	logger    *slog.Logger
}

// NewSummarizer creates a summarizer.
func NewSummarizer(repos *storage.Repositories, provider ai.AIProvider, opts ...Option) (*Summarizer, error) {
	if repos == nil || repos.Documents == nil || repos.Folders == nil || repos.Cache == nil {
		return nil, ErrRepositoriesRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := apply(opts)
	logger := s.logger.With("component", "summarizer")
	c, err := cache.New(repos.Cache, cache.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	return &Summarizer{
		documents: repos.Documents,
		folders:   repos.Folders,
		cache:     c,
		generator: provider.Generator(),
		logger:    logger,
	}, nil
}

// Summarize returns a summary of the requested scope, from the cache when
// the same documents were summarized the same way before. The cache key
// names the documents actually found, so a folder summary is recomputed
// once the folder's contents change.
func (s *Summarizer) Summarize(ctx context.Context, req SummaryRequest) (*Summary, error) {
	summaryType, err := ParseSummaryType(string(req.Type))
	if err != nil {
		return nil, err
	}
	fileIDs := cleanIDs(req.DocumentIDs)
	if len(fileIDs) == 0 && req.FolderID == 0 {
		return nil, ErrScopeRequired
	}

	docs, err := s.collect(ctx, fileIDs, req.FolderID)
	if err != nil {
		return nil, err
	}
	if req.FolderID != 0 {
		if err := s.folders.TouchFolder(ctx, req.FolderID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to touch folder", "folder", req.FolderID, "err", err)
		}
	}

	text, found := combine(docs)
	if text == "" {
		return &Summary{Summary: NoDocumentsSummary, Type: summaryType, DocumentCount: len(docs)}, nil
	}

	key := cache.Key{
		Kind:        CacheKindSummary,
		FolderID:    req.FolderID,
		DocumentIDs: found,
		Params:      map[string][]string{"type": {string(summaryType)}},
	}
	result, err := s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (string, error) {
		s.logger.Info("generating summary", "type", summaryType, "documents", len(found), "runes", len([]rune(text)))
		summary, err := s.generator.Generate(ctx, summaryPrompt(summaryType, text), ai.GenerateOptions{
			Temperature: 0.3,
			MaxTokens:   summaryMaxTokens,
		})
		if err != nil {
			return "", &GenerationError{Op: "summarize", Err: err}
		}
		return summary, nil
	})
	if err != nil {
		return nil, err
	}

	return &Summary{
		Summary:       result.Artifact,
		Type:          summaryType,
		DocumentCount: len(found),
		FromCache:     result.FromCache,
		CreatedAt:     result.CreatedAt,
		Fingerprint:   result.Fingerprint,
	}, nil
}

// collect loads the documents in scope. Unknown file ids are skipped.
func (s *Summarizer) collect(ctx context.Context, fileIDs []string, folderID core.ID) ([]*core.Document, error) {
	if len(fileIDs) == 0 {
		return s.documents.ListDocumentsByFolder(ctx, folderID)
	}

	docs := make([]*core.Document, 0, len(fileIDs))
	for _, fileID := range fileIDs {
		doc, err := s.documents.GetDocumentByFileID(ctx, fileID)
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("document to summarize not found", "file_id", fileID)
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// combine joins document texts, capped at MaxSummaryInput runes, and
// returns the file ids that contributed text.
func combine(docs []*core.Document) (string, []string) {
	var texts, fileIDs []string
	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		texts = append(texts, doc.Text)
		fileIDs = append(fileIDs, doc.File.FileID)
	}

	combined := []rune(strings.Join(texts, "\n\n"))
	if len(combined) > MaxSummaryInput {
		return string(combined[:MaxSummaryInput]) + "...", fileIDs
	}
	return string(combined), fileIDs
}

func cleanIDs(ids []string) []string {
	var out []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
