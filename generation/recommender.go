package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/seeq/ai"
	"github.com/poiesic/seeq/cache"
	"github.com/poiesic/seeq/contextbuilder"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/search"
	"github.com/poiesic/seeq/storage"
)

// CacheKindRecommendation is the cache kind recommendation sets are stored under.
const CacheKindRecommendation = "recommendation"

// DefaultMaxRecommendations is the set size when RecommendRequest.MaxItems is unset.
const DefaultMaxRecommendations = 10

const (
	maxRecommendations       = 50
	maxExtractedKeywords     = 5
	fallbackKeywords         = 3
	recommendContextChunks   = 5
	recommendContextTokens   = 1000
	recommendationMaxTokens  = 800
	recommendationDescLength = 300
)

// ContentType is the kind of material recommended.
type ContentType string

const (
	ContentBook    ContentType = "book"
	ContentMovie   ContentType = "movie"
	ContentVideo   ContentType = "youtube_video"
	ContentArticle ContentType = "article"
)

// DefaultContentTypes is used when a request names none.
var DefaultContentTypes = []ContentType{ContentBook, ContentMovie, ContentVideo}

// Where a recommendation came from.
const (
	SourceGenerated = "generated"
	SourceFallback  = "fallback"
)

// ParseContentType validates s. "video" is accepted for ContentVideo.
func ParseContentType(s string) (ContentType, error) {
	switch t := ContentType(strings.ToLower(strings.TrimSpace(s))); t {
	case ContentBook, ContentMovie, ContentVideo, ContentArticle:
		return t, nil
	case "video":
		return ContentVideo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidContentType, s)
	}
}

// RecommendRequest asks for material related to keywords. Without keywords
// they are taken from the labels of the documents in scope: FileID if set,
// else FolderID.
type RecommendRequest struct {
	Keywords     []string
	FolderID     core.ID
	FileID       string
	ContentTypes []ContentType
	MaxItems     int
}

// Recommendation is one suggested book, film, video or article.
type Recommendation struct {
	Title       string      `json:"title"`
	ContentType ContentType `json:"content_type"`
	Description string      `json:"description,omitempty"`
	Keyword     string      `json:"keyword,omitempty"`
	Source      string      `json:"source"`
}

// Recommendations is a generated or cached recommendation set.
type Recommendations struct {
	Items       []Recommendation
	Keywords    []string
	Extracted   bool
	FromCache   bool
	CreatedAt   time.Time
	Fingerprint string
}

// Recommender suggests related material, grounded on retrieved chunks and
// cached by keywords, content types and scope.
type Recommender struct {
	searcher  *search.HybridSearcher
	documents storage.DocumentRepository
	folders   storage.FolderRepository
	cache     *cache.Cache
	generator ai.Generator
	logger    *slog.Logger
}

// NewRecommender creates a recommender.
func NewRecommender(repos *storage.Repositories, searcher *search.HybridSearcher, provider ai.AIProvider, opts ...Option) (*Recommender, error) {
	if repos == nil || repos.Documents == nil || repos.Folders == nil || repos.Cache == nil {
		return nil, ErrRepositoriesRequired
	}
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := apply(opts)
	c, err := cache.New(repos.Cache, cache.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	return &Recommender{
		searcher:  searcher,
		documents: repos.Documents,
		folders:   repos.Folders,
		cache:     c,
		generator: provider.Generator(),
		logger:    s.logger.With("component", "recommender"),
	}, nil
}

// Recommend returns up to MaxItems recommendations. A reply the model
// formats badly is replaced by template suggestions, and a short reply is
// topped up with them, so a set is never empty. Generator failures are
// returned and nothing is cached.
func (r *Recommender) Recommend(ctx context.Context, req RecommendRequest) (*Recommendations, error) {
	types, err := contentTypes(req.ContentTypes)
	if err != nil {
		return nil, err
	}
	maxItems := req.MaxItems
	if maxItems <= 0 {
		maxItems = DefaultMaxRecommendations
	}
	maxItems = min(maxItems, maxRecommendations)
	fileID := strings.TrimSpace(req.FileID)

	keywords := cleanIDs(req.Keywords)
	extracted := false
	if len(keywords) == 0 {
		if fileID == "" && req.FolderID == 0 {
			return nil, ErrKeywordsRequired
		}
		if keywords, err = r.extractKeywords(ctx, fileID, req.FolderID); err != nil {
			return nil, err
		}
		if len(keywords) == 0 {
			return nil, ErrNoKeywords
		}
		extracted = true
	}

	if req.FolderID != 0 {
		if err := r.folders.TouchFolder(ctx, req.FolderID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("failed to touch folder", "folder", req.FolderID, "err", err)
		}
	}

	key := cache.Key{
		Kind:     CacheKindRecommendation,
		FolderID: req.FolderID,
		Params: map[string][]string{
			"keywords":      keywords,
			"content_types": typeNames(types),
			"max_items":     {fmt.Sprint(maxItems)},
		},
	}
	if fileID != "" {
		key.DocumentIDs = []string{fileID}
	}

	result, err := r.cache.GetOrCompute(ctx, key, func(ctx context.Context) (string, error) {
		items, err := r.generate(ctx, keywords, types, maxItems, search.Filter{FolderID: folderRef(req.FolderID), FileID: fileID})
		if err != nil {
			return "", err
		}
		payload, err := json.Marshal(items)
		if err != nil {
			return "", err
		}
		return string(payload), nil
	})
	if err != nil {
		return nil, err
	}

	var items []Recommendation
	if err := json.Unmarshal([]byte(result.Artifact), &items); err != nil {
		return nil, fmt.Errorf("%w: cached recommendations: %w", core.ErrParse, err)
	}
	return &Recommendations{
		Items:       items,
		Keywords:    keywords,
		Extracted:   extracted,
		FromCache:   result.FromCache,
		CreatedAt:   result.CreatedAt,
		Fingerprint: result.Fingerprint,
	}, nil
}

func (r *Recommender) generate(ctx context.Context, keywords []string, types []ContentType, maxItems int, filter search.Filter) ([]Recommendation, error) {
	query := strings.Join(keywords, " ")
	results, err := r.searcher.Search(ctx, query, recommendContextChunks, filter, nil, nil)
	if err != nil {
		r.logger.Warn("recommendation context unavailable", "keywords", query, "err", err)
		results = nil
	}

	prompt := recommendPrompt(keywords, types, maxItems,
		contextbuilder.Build(results, recommendContextTokens, contextbuilder.Flat))
	r.logger.Info("generating recommendations", "keywords", query, "context_chunks", len(results))
	reply, err := r.generator.Generate(ctx, prompt, ai.GenerateOptions{
		Temperature: 0.7,
		MaxTokens:   recommendationMaxTokens,
	})
	if err != nil {
		return nil, &GenerationError{Op: "recommend", Err: err}
	}

	items, err := parseRecommendations(reply, types)
	if err != nil {
		r.logger.Warn("unusable recommendation reply, using templates", "err", err)
	}
	if len(items) < maxItems {
		items = dedupeTitles(append(items, fallbackRecommendations(keywords, types)...))
	}
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items, nil
}

// extractKeywords collects label keywords, then tags, from the documents in
// scope, in document order.
func (r *Recommender) extractKeywords(ctx context.Context, fileID string, folderID core.ID) ([]string, error) {
	var docs []*core.Document
	if fileID != "" {
		doc, err := r.documents.GetDocumentByFileID(ctx, fileID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		docs = []*core.Document{doc}
	} else {
		var err error
		if docs, err = r.documents.ListDocumentsByFolder(ctx, folderID); err != nil {
			return nil, err
		}
	}

	var terms []string
	for _, doc := range docs {
		if doc.Labels != nil {
			terms = append(terms, doc.Labels.Keywords...)
		}
	}
	for _, doc := range docs {
		if doc.Labels != nil {
			terms = append(terms, doc.Labels.Tags...)
		}
	}

	keywords := cleanIDs(terms)
	if len(keywords) > maxExtractedKeywords {
		keywords = keywords[:maxExtractedKeywords]
	}
	return keywords, nil
}

func recommendPrompt(keywords []string, types []ContentType, maxItems int, grounding string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recommend up to %d items for someone studying: %s.\n", maxItems, strings.Join(keywords, ", "))
	fmt.Fprintf(&b, "Allowed content types: %s.\n", strings.Join(typeNames(types), ", "))
	if grounding != "" {
		b.WriteString("\nTheir documents contain:\n")
		b.WriteString(grounding)
		b.WriteString("\n")
	}
	b.WriteString("\nReply with only a JSON array of objects with the fields " +
		`"title", "content_type", "description" and "keyword".`)
	return b.String()
}

// parseRecommendations reads a JSON array, or an object holding one under
// "recommendations", out of reply. Items without a title or with a content
// type outside types are dropped. An unreadable reply, or one with no usable
// item, is a core.ErrParse.
func parseRecommendations(reply string, types []ContentType) ([]Recommendation, error) {
	text := strings.TrimSpace(reply)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(strings.TrimSuffix(text, "```"))

	var raw []struct {
		Title       string `json:"title"`
		ContentType string `json:"content_type"`
		Description string `json:"description"`
		Keyword     string `json:"keyword"`
	}
	start, end := strings.Index(text, "["), strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON array in reply", core.ErrParse)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrParse, err)
	}

	items := make([]Recommendation, 0, len(raw))
	for _, item := range raw {
		title := strings.TrimSpace(item.Title)
		ct, err := ParseContentType(item.ContentType)
		if title == "" || err != nil || !slices.Contains(types, ct) {
			continue
		}
		desc := []rune(strings.TrimSpace(item.Description))
		if len(desc) > recommendationDescLength {
			desc = append(desc[:recommendationDescLength], []rune("...")...)
		}
		items = append(items, Recommendation{
			Title:       title,
			ContentType: ct,
			Description: string(desc),
			Keyword:     strings.TrimSpace(item.Keyword),
			Source:      SourceGenerated,
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no usable recommendations in reply", core.ErrParse)
	}
	return dedupeTitles(items), nil
}

// fallbackRecommendations builds template suggestions for the first few
// keywords, one per content type.
func fallbackRecommendations(keywords []string, types []ContentType) []Recommendation {
	var items []Recommendation
	for _, kw := range keywords[:min(len(keywords), fallbackKeywords)] {
		for _, t := range types {
			title, desc := fallbackText(t, kw)
			items = append(items, Recommendation{
				Title:       title,
				ContentType: t,
				Description: desc,
				Keyword:     kw,
				Source:      SourceFallback,
			})
		}
	}
	return items
}

func fallbackText(t ContentType, keyword string) (string, string) {
	switch t {
	case ContentBook:
		return "Books about " + keyword, "Look for books that explore " + keyword + " in more depth."
	case ContentMovie:
		return "Films about " + keyword, "Look for films and documentaries about " + keyword + "."
	case ContentVideo:
		return "Videos about " + keyword, "Search for talks and explainers on " + keyword + "."
	default:
		return "Articles about " + keyword, "Read articles and papers on " + keyword + "."
	}
}

func dedupeTitles(items []Recommendation) []Recommendation {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		key := strings.ToLower(item.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

func contentTypes(requested []ContentType) ([]ContentType, error) {
	if len(requested) == 0 {
		return DefaultContentTypes, nil
	}
	var types []ContentType
	for _, t := range requested {
		ct, err := ParseContentType(string(t))
		if err != nil {
			return nil, err
		}
		if !slices.Contains(types, ct) {
			types = append(types, ct)
		}
	}
	return types, nil
}

func typeNames(types []ContentType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}

func folderRef(id core.ID) string {
	if id == 0 {
		return ""
	}
	return id.String()
}
