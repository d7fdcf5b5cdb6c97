package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/poiesic/seeq/core"
	"github.com/poiesic/seeq/ingestion"
	"github.com/poiesic/seeq/reembed"
	"github.com/urfave/cli/v2"
)

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:   "sweep",
		Usage:  "Resume or discard documents whose ingestion never completed",
		Action: sweepAction,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "grace",
				Usage: "Skip documents updated more recently than this",
				Value: ingestion.DefaultGracePeriod,
			},
			&cli.BoolFlag{
				Name:  "discard",
				Usage: "Delete incomplete documents instead of resuming them",
			},
		},
	}
}

func sweepAction(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	grace := c.Duration("grace")
	if grace == 0 {
		grace = -1
	}
	result, err := engine.Pipeline().Sweep(c.Context, ingestion.SweepOptions{
		GracePeriod: grace,
		Discard:     c.Bool("discard"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Examined %d, resumed %d, discarded %d, failed %d\n",
		result.Examined, result.Resumed, result.Discarded, result.Failed)
	return nil
}

func reembedCommand() *cli.Command {
	return &cli.Command{
		Name:   "reembed",
		Usage:  "Recompute chunk vectors with the configured embedding model",
		Action: reembedAction,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Number of chunks to process in each batch",
				Value: reembed.DefaultBatchSize,
			},
			&cli.IntFlag{
				Name:  "report-interval",
				Usage: "Report progress every N chunks",
				Value: reembed.DefaultBatchSize,
			},
			&cli.StringFlag{
				Name:    "folder",
				Aliases: []string{"f"},
				Usage:   "Only chunks in this folder id",
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "Only chunks of this file id",
			},
		},
	}
}

func reembedAction(c *cli.Context) error {
	cfg := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		Filter:         core.ChunkFilter{FileID: c.String("file")},
	}
	if cfg.BatchSize <= 0 {
		return errors.New("batch-size must be greater than 0")
	}
	if cfg.ReportInterval <= 0 {
		return errors.New("report-interval must be greater than 0")
	}
	if v := c.String("folder"); v != "" {
		id, err := core.ParseID(v)
		if err != nil {
			return fmt.Errorf("invalid folder id %q: %w", v, err)
		}
		cfg.Filter.FolderId = id
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	reembedder, err := engine.NewReembedder(cfg, os.Stderr)
	if err != nil {
		return err
	}
	if _, err := reembedder.Run(c.Context); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and prune cached summaries",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List cache entries, most recently used first",
				Action: cacheListAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Only entries of this kind",
					},
					&cli.StringFlag{
						Name:    "folder",
						Aliases: []string{"f"},
						Usage:   "Only entries scoped to this folder id or title",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum entries to show (0 for all)",
						Value: 20,
					},
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete cache entries by fingerprint",
				ArgsUsage: "FINGERPRINT...",
				Action:    cacheDeleteAction,
			},
		},
	}
}

func cacheListAction(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	var folderID core.ID
	if ref := c.String("folder"); ref != "" {
		folder, err := engine.Folder(c.Context, ref)
		if err != nil {
			return err
		}
		folderID = folder.Id
	}
	entries, err := engine.Cache().List(c.Context, c.String("kind"), folderID, c.Int("limit"))
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "%d entries\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %-8s folder=%s docs=%d used=%s\n   %s\n",
			e.Fingerprint, e.Kind, e.FolderId, len(e.DocumentIDs),
			e.LastAccessedAt.Format(time.RFC3339), oneLine(e.Payload, 120))
	}
	return nil
}

func cacheDeleteAction(c *cli.Context) error {
	fingerprints := c.Args().Slice()
	if len(fingerprints) == 0 {
		return errors.New("at least one fingerprint is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	for _, fp := range fingerprints {
		if err := engine.Cache().Delete(c.Context, fp); err != nil {
			return fmt.Errorf("failed to delete %s: %w", fp, err)
		}
		fmt.Fprintf(c.App.Writer, "deleted %s\n", fp)
	}
	return nil
}

func foldersCommand() *cli.Command {
	return &cli.Command{
		Name:   "folders",
		Usage:  "List folders",
		Action: foldersListAction,
		Subcommands: []*cli.Command{
			{
				Name:      "delete",
				Usage:     "Delete a folder with its documents and cached summaries",
				ArgsUsage: "FOLDER",
				Action:    foldersDeleteAction,
			},
		},
	}
}

func foldersListAction(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	folders, err := engine.Folders(c.Context)
	if err != nil {
		return err
	}
	out := c.App.Writer
	for _, f := range folders {
		fmt.Fprintf(out, "%s  %-7s %-30s documents=%d files=%d last used %s\n",
			f.Id, f.Type, f.Title, f.DocumentCount, f.FileCount, f.LastAccessedAt.Format(time.RFC3339))
	}
	return nil
}

func foldersDeleteAction(c *cli.Context) error {
	ref := strings.TrimSpace(c.Args().First())
	if ref == "" {
		return errors.New("folder id or title is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	folder, err := engine.Folder(c.Context, ref)
	if err != nil {
		return err
	}
	result, err := engine.DeleteFolder(c.Context, folder.Id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Deleted folder %q: %d documents, %d cache entries\n",
		folder.Title, result.Documents, result.CacheEntries)
	return nil
}
