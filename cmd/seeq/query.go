package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/poiesic/seeq/contextbuilder"
	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/generation"
	"github.com/poiesic/seeq/search"
	"github.com/urfave/cli/v2"
)

func scopeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "k",
			Aliases: []string{"n"},
			Usage:   "Number of chunks to retrieve",
			Value:   5,
		},
		&cli.StringFlag{
			Name:    "folder",
			Aliases: []string{"f"},
			Usage:   "Restrict to a folder id",
		},
		&cli.StringFlag{
			Name:  "file",
			Usage: "Restrict to a file id",
		},
		&cli.StringSliceFlag{
			Name:  "category",
			Usage: "Keep only documents in these categories",
		},
		&cli.StringSliceFlag{
			Name:  "tag",
			Usage: "Keep only documents with any of these tags",
		},
	}
}

func filterFrom(c *cli.Context) search.Filter {
	return search.Filter{FolderID: c.String("folder"), FileID: c.String("file")}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Find the chunks most similar to a query",
		ArgsUsage: "QUERY",
		Action:    searchAction,
		Flags: append(scopeFlags(),
			&cli.BoolFlag{
				Name:  "keyword",
				Usage: "Match the query as a case-insensitive substring instead of by similarity",
			},
			&cli.BoolFlag{
				Name:  "explain",
				Usage: "Print each search stage",
			},
			&cli.BoolFlag{
				Name:  "context",
				Usage: "Print the packed context block instead of a result list",
			},
			&cli.IntFlag{
				Name:  "max-tokens",
				Usage: "Context budget in tokens when --context is set",
				Value: contextbuilder.DefaultMaxTokens,
			},
		),
	}
}

func searchAction(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("query is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	out := c.App.Writer
	var results []*core.SearchResult
	switch {
	case c.Bool("keyword"):
		results, err = engine.Searcher().SearchByKeyword(c.Context, query, c.Int("k"), filterFrom(c))
	case c.Bool("explain"):
		results, err = engine.Searcher().SearchWithMonitor(c.Context, query, c.Int("k"), filterFrom(c),
			c.StringSlice("category"), c.StringSlice("tag"), &explainMonitor{out: out})
	default:
		results, err = engine.Searcher().Search(c.Context, query, c.Int("k"), filterFrom(c),
			c.StringSlice("category"), c.StringSlice("tag"))
	}
	if err != nil {
		return err
	}

	if c.Bool("context") {
		fmt.Fprintln(out, contextbuilder.Build(results, c.Int("max-tokens"), contextbuilder.ByDocument))
		return nil
	}
	printResults(out, results)
	return nil
}

func printResults(out io.Writer, results []*core.SearchResult) {
	stats := contextbuilder.Summarize(results)
	fmt.Fprintf(out, "Found %d hits in %d files\n", stats.TotalChunks, stats.UniqueFiles)
	for i, hit := range results {
		fmt.Fprintf(out, "%d: [%0.3f] %s #%d\n   %s\n",
			i+1, hit.Score, hit.Filename, hit.Chunk.Sequence, oneLine(hit.Chunk.Text, 160))
	}
}

func oneLine(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return text
}

// explainMonitor prints search stages as they happen.
type explainMonitor struct {
	out io.Writer
}

var _ search.SearchMonitor = (*explainMonitor)(nil)

func (m *explainMonitor) Start(query string) {
	fmt.Fprintf(m.out, "query: %q\n", query)
}

func (m *explainMonitor) AfterEmbedding(dimension int) {
	fmt.Fprintf(m.out, "embedded query (%d dimensions)\n", dimension)
}

func (m *explainMonitor) AfterIndexSearch(candidates []core.ScoredChunk) {
	fmt.Fprintf(m.out, "index returned %d candidates\n", len(candidates))
}

func (m *explainMonitor) AfterLabelLookup(documentID core.ID, labels *core.Labels) {
	if labels == nil {
		fmt.Fprintf(m.out, "  document %s: no labels\n", documentID)
		return
	}
	fmt.Fprintf(m.out, "  document %s: category=%s tags=%s\n", documentID, labels.Category, strings.Join(labels.Tags, ","))
}

func (m *explainMonitor) Rejected(result *core.SearchResult, reason string) {
	fmt.Fprintf(m.out, "  rejected %s #%d: %s\n", result.Filename, result.Chunk.Sequence, reason)
}

func (m *explainMonitor) Finish(results []*core.SearchResult) {
	fmt.Fprintf(m.out, "kept %d results\n\n", len(results))
}

func askCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a question from retrieved chunks",
		ArgsUsage: "QUESTION",
		Action:    askAction,
		Flags: append(scopeFlags(),
			&cli.IntFlag{
				Name:  "max-tokens",
				Usage: "Context budget in tokens",
				Value: contextbuilder.DefaultMaxTokens,
			},
		),
	}
}

func askAction(c *cli.Context) error {
	question := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return errors.New("question is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	answer, err := engine.Answerer().Answer(c.Context, question, generation.AnswerOptions{
		K:          c.Int("k"),
		Filter:     filterFrom(c),
		Categories: c.StringSlice("category"),
		Tags:       c.StringSlice("tag"),
		MaxTokens:  c.Int("max-tokens"),
	})
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintln(out, answer.Answer)
	if len(answer.Sources) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for _, s := range answer.Sources {
			fmt.Fprintf(out, "  - %s #%d [%0.3f]\n", s.Filename, s.Sequence, s.Score)
		}
	}
	return nil
}

func summarizeCommand() *cli.Command {
	return &cli.Command{
		Name:   "summarize",
		Usage:  "Summarize a folder or a set of files",
		Action: summarizeAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "folder",
				Aliases: []string{"f"},
				Usage:   "Folder id or title",
			},
			&cli.StringSliceFlag{
				Name:  "file",
				Usage: "File ids to summarize",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "Summary type (brief, detailed, bullets)",
				Value: string(generation.SummaryBrief),
			},
		},
	}
}

func summarizeAction(c *cli.Context) error {
	summaryType, err := generation.ParseSummaryType(c.String("type"))
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	req := generation.SummaryRequest{DocumentIDs: c.StringSlice("file"), Type: summaryType}
	if ref := c.String("folder"); ref != "" {
		folder, err := engine.Folder(c.Context, ref)
		if err != nil {
			return err
		}
		req.FolderID = folder.Id
	}

	summary, err := engine.Summarizer().Summarize(c.Context, req)
	if err != nil {
		return err
	}
	out := c.App.Writer
	fmt.Fprintln(out, summary.Summary)
	source := "generated"
	if summary.FromCache {
		source = "cached"
	}
	fmt.Fprintf(out, "\n(%s %s summary of %d documents)\n", source, summary.Type, summary.DocumentCount)
	return nil
}

func recommendCommand() *cli.Command {
	return &cli.Command{
		Name:      "recommend",
		Usage:     "Recommend books, films, videos or articles related to keywords or documents",
		ArgsUsage: "[keyword...]",
		Action:    recommendAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "folder",
				Aliases: []string{"f"},
				Usage:   "Folder id or title; keywords come from its labels when none are given",
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "File id; keywords come from its labels when none are given",
			},
			&cli.StringSliceFlag{
				Name:  "type",
				Usage: "Content types (book, movie, youtube_video, article)",
			},
			&cli.IntFlag{
				Name:  "max",
				Usage: "Maximum number of recommendations",
				Value: generation.DefaultMaxRecommendations,
			},
		},
	}
}

func recommendAction(c *cli.Context) error {
	req := generation.RecommendRequest{
		Keywords: c.Args().Slice(),
		FileID:   c.String("file"),
		MaxItems: c.Int("max"),
	}
	for _, name := range c.StringSlice("type") {
		t, err := generation.ParseContentType(name)
		if err != nil {
			return err
		}
		req.ContentTypes = append(req.ContentTypes, t)
	}
	if len(req.Keywords) == 0 && req.FileID == "" && c.String("folder") == "" {
		return errors.New("keywords, --file or --folder is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if ref := c.String("folder"); ref != "" {
		folder, err := engine.Folder(c.Context, ref)
		if err != nil {
			return err
		}
		req.FolderID = folder.Id
	}

	recs, err := engine.Recommender().Recommend(c.Context, req)
	if err != nil {
		return err
	}
	out := c.App.Writer
	if recs.Extracted {
		fmt.Fprintf(out, "Keywords from documents: %s\n\n", strings.Join(recs.Keywords, ", "))
	}
	for i, item := range recs.Items {
		fmt.Fprintf(out, "%d. [%s] %s\n", i+1, item.ContentType, item.Title)
		if item.Description != "" {
			fmt.Fprintf(out, "   %s\n", item.Description)
		}
	}
	source := "generated"
	if recs.FromCache {
		source = "cached"
	}
	fmt.Fprintf(out, "\n(%s, %d recommendations)\n", source, len(recs.Items))
	return nil
}
