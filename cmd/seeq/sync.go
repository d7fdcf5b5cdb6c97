package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/poiesic/seeq/bridge"
	"github.com/urfave/cli/v2"
)

func mongoFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "mongo-uri",
			Usage: "MongoDB connection URI (overrides bridge.mongo.uri)",
		},
		&cli.StringFlag{
			Name:  "database",
			Usage: "Database holding OCR records",
		},
		&cli.StringFlag{
			Name:  "collection",
			Usage: "Collection holding OCR records",
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:   "sync",
		Usage:  "Reconcile OCR records from MongoDB into the library",
		Action: syncAction,
		Flags: append(mongoFlags(),
			&cli.StringFlag{
				Name:  "since",
				Usage: "Only records newer than this timestamp (default: stored watermark)",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Consider every record regardless of timestamp",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Keep running and sync on a schedule until interrupted",
			},
			&cli.StringFlag{
				Name:  "schedule",
				Usage: "Cron expression or descriptor used with --watch (overrides bridge.schedule)",
			},
		),
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show foreign record counts and the sync watermark",
				Action: syncStatusAction,
				Flags:  mongoFlags(),
			},
		},
	}
}

// openSource is a variable so tests can substitute an in-memory source.
var openSource = func(c *cli.Context) (bridge.Source, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	mongoCfg := cfg.Bridge.Mongo
	if v := c.String("mongo-uri"); v != "" {
		mongoCfg.URI = v
	}
	if v := c.String("database"); v != "" {
		mongoCfg.Database = v
	}
	if v := c.String("collection"); v != "" {
		mongoCfg.Collection = v
	}
	source, err := bridge.NewMongoSource(c.Context, mongoCfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := source.Close(ctx); err != nil {
			slog.Warn("error closing mongo source", "err", err)
		}
	}
	return source, closeFn, nil
}

// schedule resolves the cron schedule for --watch.
func schedule(c *cli.Context) (string, error) {
	if s := c.String("schedule"); s != "" {
		return s, nil
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return "", err
	}
	return cfg.Bridge.Schedule, nil
}

func syncAction(c *cli.Context) error {
	var since *time.Time
	if v := c.String("since"); v != "" {
		t, ok := bridge.ParseTimestamp(v)
		if !ok {
			return fmt.Errorf("invalid --since timestamp %q", v)
		}
		since = &t
	}
	if since != nil && c.Bool("force") {
		return errors.New("--since and --force are mutually exclusive")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	source, closeSource, err := openSource(c)
	if err != nil {
		return err
	}
	defer closeSource()

	reconciler, err := engine.NewReconciler(source)
	if err != nil {
		return err
	}

	if c.Bool("watch") {
		sched, err := schedule(c)
		if err != nil {
			return err
		}
		return watch(c.Context, reconciler, sched, c.App.Writer)
	}

	var result *bridge.SyncResult
	if c.Bool("force") {
		result, err = reconciler.ForceSync(c.Context)
	} else {
		result, err = reconciler.Sync(c.Context, since)
	}
	if err != nil {
		return err
	}
	printSyncResult(c.App.Writer, result)
	return nil
}

func printSyncResult(out io.Writer, result *bridge.SyncResult) {
	fmt.Fprintf(out, "Run %s: %d candidates, %d synced, %d processed\n",
		result.RunID, result.TotalCandidates, result.SyncedCount, result.ProcessedCount)
	if result.WatermarkUpdated {
		fmt.Fprintf(out, "Watermark advanced to %s\n", result.NewWatermark.Format(time.RFC3339))
	}
}

// watch runs the scheduler until the context ends or the process is interrupted.
func watch(ctx context.Context, reconciler *bridge.Reconciler, sched string, out io.Writer) error {
	scheduler, err := bridge.NewScheduler(reconciler, sched, slog.Default())
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", sched, err)
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "Syncing on schedule %q, press Ctrl-C to stop\n", sched)
	scheduler.RunOnce()
	scheduler.Start(ctx)
	<-ctx.Done()
	scheduler.Stop()
	return nil
}

func syncStatusAction(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	source, closeSource, err := openSource(c)
	if err != nil {
		return err
	}
	defer closeSource()

	reconciler, err := engine.NewReconciler(source)
	if err != nil {
		return err
	}
	stats, err := reconciler.Stats(c.Context)
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Source: %s\n", stats.Source)
	fmt.Fprintf(out, "Foreign records: %d\n", stats.Foreign.Total)
	if stats.Foreign.Latest != nil {
		fmt.Fprintf(out, "Latest record: %s (%s)\n", stats.Foreign.LatestTitle, stats.Foreign.Latest.Format(time.RFC3339))
	}
	if stats.Watermark == nil {
		fmt.Fprintln(out, "Never synced")
		return nil
	}
	w := stats.Watermark
	fmt.Fprintf(out, "Last sync: %s (%d synced, %d processed, %d candidates)\n",
		w.LastSyncTime.Format(time.RFC3339), w.SyncedCount, w.ProcessedCount, w.TotalCandidates)
	return nil
}
