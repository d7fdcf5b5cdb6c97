package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/poiesic/seeq/ingestion"
	"github.com/urfave/cli/v2"
)

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Extract, label, chunk and embed files into a folder",
		ArgsUsage: "FILE...",
		Action:    ingestAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "folder",
				Aliases: []string{"f"},
				Usage:   "Folder id or title (created when the title is new)",
			},
			&cli.StringFlag{
				Name:  "description",
				Usage: "Description stored with each file",
			},
			&cli.StringFlag{
				Name:  "file-id",
				Usage: "External file id; only valid with a single file",
			},
		},
	}
}

func ingestAction(c *cli.Context) error {
	files := c.Args().Slice()
	if len(files) == 0 {
		return errors.New("at least one file is required")
	}
	if c.String("file-id") != "" && len(files) > 1 {
		return errors.New("--file-id can only be used with a single file")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	out := c.App.Writer
	var failed int
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		result, err := engine.Pipeline().ProcessAndStore(c.Context, ingestion.Artifact{
			Filename:    filepath.Base(path),
			Data:        data,
			FileID:      c.String("file-id"),
			Description: c.String("description"),
		}, ingestion.Options{FolderID: c.String("folder")})
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			failed++
			continue
		}
		category := ""
		if result.Labels != nil {
			category = result.Labels.Category
		}
		fmt.Fprintf(out, "%s: document %s, %d chunks, folder %s, file id %s, category %q\n",
			path, result.DocumentID, result.ChunkCount, result.FolderID, result.FileID, category)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}
