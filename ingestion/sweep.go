package ingestion

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/seeq/core"
)

// DefaultGracePeriod keeps Sweep away from documents still being ingested.
const DefaultGracePeriod = 10 * time.Minute

// SweepOptions controls a reconciliation sweep.
type SweepOptions struct {
	// GracePeriod skips documents updated more recently than this.
	// Zero means DefaultGracePeriod; negative means no grace.
	GracePeriod time.Duration
	// Discard deletes incomplete documents instead of resuming them.
	Discard bool
}

// SweepResult counts what a sweep did.
type SweepResult struct {
	Examined  int
	Resumed   int
	Discarded int
	Failed    int
}

// Sweep finds documents that never reached complete and either finishes
// them or deletes them. Documents are handled concurrently on the pipeline's
// worker pool.
func (p *Pipeline) Sweep(ctx context.Context, opts SweepOptions) (*SweepResult, error) {
	grace := opts.GracePeriod
	if grace == 0 {
		grace = DefaultGracePeriod
	}
	if grace < 0 {
		grace = 0
	}

	docs, err := p.documents.ListIncompleteDocuments(ctx, now().Add(-grace))
	if err != nil {
		return nil, err
	}

	var resumed, discarded, failed atomic.Int64
	var wg sync.WaitGroup
	for _, doc := range docs {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				failed.Add(1)
				return
			}
			if opts.Discard {
				if err := p.DeleteDocument(ctx, doc.Id); err != nil {
					p.logger.Error("sweep discard failed", "document", doc.Id, "err", err)
					failed.Add(1)
					return
				}
				discarded.Add(1)
				return
			}
			if err := p.resume(ctx, doc); err != nil {
				p.logger.Error("sweep resume failed", "document", doc.Id, "err", err)
				failed.Add(1)
				return
			}
			resumed.Add(1)
		})
		if err != nil {
			wg.Done()
			p.logger.Error("failed to submit sweep task", "document", doc.Id, "err", err)
			failed.Add(1)
		}
	}
	wg.Wait()

	result := &SweepResult{
		Examined:  len(docs),
		Resumed:   int(resumed.Load()),
		Discarded: int(discarded.Load()),
		Failed:    int(failed.Load()),
	}
	p.logger.Info("sweep finished",
		"examined", result.Examined,
		"resumed", result.Resumed,
		"discarded", result.Discarded,
		"failed", result.Failed)
	return result, ctx.Err()
}

// resume drops any partial chunks and reruns chunking onward.
// Labels already on the document are kept; otherwise it is labeled again.
func (p *Pipeline) resume(ctx context.Context, doc *core.Document) error {
	if err := p.removeChunks(ctx, doc.Id); err != nil {
		return err
	}

	labels := doc.Labels
	if labels == nil {
		labels = p.label(ctx, doc)
	}

	_, err := p.process(ctx, doc, labels)
	if err != nil {
		return err
	}

	if err := p.folders.IncrementFolderCounts(ctx, doc.FolderId, 1, 1); err != nil {
		p.logger.Warn("failed to update folder counts", "folder", doc.FolderId, "err", err)
	}
	return nil
}
