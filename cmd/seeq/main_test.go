package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/seeq"
	"github.com/poiesic/seeq/ai/mock"
	"github.com/poiesic/seeq/bridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// useTestEngine points every command at an on-disk database in a temp dir
// backed by the mock AI provider.
func useTestEngine(t *testing.T) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "db")
	prev := openEngine
	openEngine = func(c *cli.Context) (*seeq.Engine, error) {
		return seeq.Open(c.Context, dir, seeq.WithProvider(mock.NewMockProvider()))
	}
	t.Cleanup(func() { openEngine = prev })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"seeq", "--log-level", "error"}, args...))
	return out.String(), err
}

func TestSetupLogger(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"INFO", false},
		{"warn", false},
		{"error", false},
		{"verbose", true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			app := &cli.App{
				Name:   "seeq",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "log-level", Value: "info"}},
				Before: setupLogger,
				Action: func(*cli.Context) error { return nil },
			}
			err := app.Run([]string{"seeq", "--log-level", tt.level})
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid log level")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCommands(t *testing.T) {
	app := newApp()
	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, want := range []string{"ingest", "search", "ask", "summarize", "recommend", "sync", "sweep", "reembed", "cache", "folders"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestArgumentValidation(t *testing.T) {
	useTestEngine(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"ingest without files", []string{"ingest"}, "at least one file"},
		{"file id with many files", []string{"ingest", "--file-id", "x", "a.txt", "b.txt"}, "single file"},
		{"empty search", []string{"search"}, "query is required"},
		{"negative k", []string{"search", "--k=-1", "badgers"}, "must not be negative"},
		{"empty question", []string{"ask"}, "question is required"},
		{"bad summary type", []string{"summarize", "--type", "haiku"}, "haiku"},
		{"recommend without scope", []string{"recommend"}, "keywords, --file or --folder"},
		{"bad content type", []string{"recommend", "--type", "podcast", "badgers"}, "podcast"},
		{"bad since", []string{"sync", "--since", "yesterday-ish"}, "invalid --since"},
		{"since with force", []string{"sync", "--since", "2025-01-01", "--force"}, "mutually exclusive"},
		{"bad batch size", []string{"reembed", "--batch-size", "0"}, "batch-size"},
		{"cache delete without args", []string{"cache", "delete"}, "fingerprint"},
		{"folder delete without args", []string{"folders", "delete"}, "folder id or title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLibraryWorkflow(t *testing.T) {
	useTestEngine(t)

	file := filepath.Join(t.TempDir(), "badgers.txt")
	require.NoError(t, os.WriteFile(file, []byte("Badgers dig burrows in the forest. They sleep during the day."), 0o644))

	out, err := run(t, "ingest", "--folder", "Notes", file)
	require.NoError(t, err)
	assert.Contains(t, out, "badgers.txt: document")

	_, err = run(t, "ingest", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	out, err = run(t, "search", "badgers", "burrows")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 hits in 1 files")
	assert.Contains(t, out, "badgers.txt")

	out, err = run(t, "search", "--explain", "badgers")
	require.NoError(t, err)
	assert.Contains(t, out, `query: "badgers"`)
	assert.Contains(t, out, "kept 1 results")

	out, err = run(t, "search", "--keyword", "BURROWS")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 hits")

	out, err = run(t, "ask", "Where", "do", "badgers", "live?")
	require.NoError(t, err)
	assert.Contains(t, out, "mock answer")
	assert.Contains(t, out, "Sources:")

	out, err = run(t, "summarize", "--folder", "Notes")
	require.NoError(t, err)
	assert.Contains(t, out, "generated brief summary of 1 documents")

	out, err = run(t, "summarize", "--folder", "Notes")
	require.NoError(t, err)
	assert.Contains(t, out, "cached brief summary")

	out, err = run(t, "cache", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "1 entries")

	out, err = run(t, "recommend", "--type", "book", "badgers")
	require.NoError(t, err)
	assert.Contains(t, out, "1. [book] Books about badgers")
	assert.Contains(t, out, "(generated, 1 recommendations)")

	out, err = run(t, "recommend", "--type", "book", "badgers")
	require.NoError(t, err)
	assert.Contains(t, out, "(cached, 1 recommendations)")

	out, err = run(t, "folders")
	require.NoError(t, err)
	assert.Contains(t, out, "Notes")

	out, err = run(t, "sweep", "--grace", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Examined 0")

	_, err = run(t, "reembed", "--batch-size", "10")
	require.NoError(t, err)

	out, err = run(t, "folders", "delete", "Notes")
	require.NoError(t, err)
	assert.Contains(t, out, `Deleted folder "Notes": 1 documents, 1 cache entries`)
}

func TestSyncCommand(t *testing.T) {
	useTestEngine(t)

	source := bridge.NewMemorySource("ocr_db.texts", bridge.Record{
		ID: "a1",
		Fields: map[string]any{
			"title":     "Scanned Letter",
			"pages":     []any{"The harvest was plentiful this year."},
			"timestamp": "2025-06-01 10:00:00",
		},
	})
	prev := openSource
	openSource = func(*cli.Context) (bridge.Source, func(), error) {
		return source, func() {}, nil
	}
	t.Cleanup(func() { openSource = prev })

	out, err := run(t, "sync", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Foreign records: 1")
	assert.Contains(t, out, "Never synced")

	out, err = run(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "1 candidates, 1 synced, 1 processed")
	assert.Contains(t, out, "Watermark advanced")

	out, err = run(t, "sync", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "1 candidates, 0 synced")

	out, err = run(t, "sync", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Last sync:")
}
