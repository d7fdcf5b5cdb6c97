package ingestion

import (
	"context"
	"fmt"

	"github.com/poiesic/seeq/core"
)

// process runs the stages after the document is persisted: chunk, embed,
// store chunks, attach labels. doc must already have an id.
func (p *Pipeline) process(ctx context.Context, doc *core.Document, labels *core.Labels) (*Result, error) {
	params := p.chunker.Params()
	pieces := p.chunker.Chunk(doc.Text, map[string]any{"folder_id": doc.FolderId.String()})

	chunks := make([]*core.Chunk, len(pieces))
	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &core.Chunk{
			DocumentId:   doc.Id,
			FileID:       doc.File.FileID,
			FolderId:     doc.FolderId,
			Sequence:     piece.Sequence,
			Text:         piece.Text,
			ChunkSize:    params.Size,
			ChunkOverlap: params.Overlap,
		}
		texts[i] = piece.Text
	}
	if err := core.ValidateChunks(chunks); err != nil {
		return nil, p.fail(ctx, doc, StageChunk, err)
	}

	doc.Status = core.StatusChunked
	doc.ChunkCount = len(chunks)
	if err := p.update(ctx, doc); err != nil {
		return nil, p.fail(ctx, doc, StagePersist, err)
	}

	vectors, err := p.batcher.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, p.fail(ctx, doc, StageEmbed, err)
	}
	for i := range chunks {
		chunks[i].Vector = vectors[i]
	}

	if len(chunks) > 0 {
		if _, err := p.chunks.AddChunks(ctx, chunks...); err != nil {
			return nil, p.fail(ctx, doc, StagePersist, fmt.Errorf("%w: %w", core.ErrPersistence, err))
		}
		if p.index != nil {
			if err := p.index.Add(ctx, chunks...); err != nil {
				return nil, p.fail(ctx, doc, StageIndex, err)
			}
		}
	}

	doc.Status = core.StatusEmbedded
	if err := p.update(ctx, doc); err != nil {
		return nil, p.fail(ctx, doc, StagePersist, err)
	}

	if labels != nil {
		record := &core.LabelRecord{
			DocumentId: doc.Id,
			FileID:     doc.File.FileID,
			FolderId:   doc.FolderId,
			Labels:     *labels,
			Source:     doc.Source,
			CreatedAt:  now(),
		}
		if err := p.labels.PutLabels(ctx, record); err != nil {
			return nil, p.fail(ctx, doc, StagePersist, fmt.Errorf("%w: %w", core.ErrPersistence, err))
		}
		doc.Labels = labels
	}

	doc.Status = core.StatusComplete
	doc.Error = ""
	if err := p.update(ctx, doc); err != nil {
		return nil, p.fail(ctx, doc, StagePersist, err)
	}

	ids := make([]core.ID, len(chunks))
	for i, c := range chunks {
		ids[i] = c.Id
	}
	return &Result{
		DocumentID: doc.Id,
		FolderID:   doc.FolderId,
		FileID:     doc.File.FileID,
		ChunkIDs:   ids,
		ChunkCount: len(chunks),
		Labels:     labels,
	}, nil
}

func (p *Pipeline) update(ctx context.Context, doc *core.Document) error {
	if _, err := p.documents.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	return nil
}

// fail records cause against doc and returns it.
func (p *Pipeline) fail(ctx context.Context, doc *core.Document, stage string, cause error) error {
	p.recordFailure(ctx, doc, stage, cause)
	return cause
}

// recordFailure writes a failure record and, when doc was persisted, marks it failed.
// Writes go through even if ctx was canceled.
func (p *Pipeline) recordFailure(ctx context.Context, doc *core.Document, stage string, cause error) {
	ctx = context.WithoutCancel(ctx)
	p.logger.Error("ingestion failed",
		"stage", stage,
		"file_id", doc.File.FileID,
		"document", doc.Id,
		"err", cause)

	p.addFailure(ctx, doc, stage, cause)

	if doc.Id == 0 {
		return
	}
	doc.Status = core.StatusFailed
	doc.Error = cause.Error()
	if _, err := p.documents.UpdateDocument(ctx, doc); err != nil {
		p.logger.Error("failed to mark document failed", "document", doc.Id, "err", err)
	}
}

func (p *Pipeline) addFailure(ctx context.Context, doc *core.Document, stage string, cause error) {
	_, err := p.failures.AddFailure(context.WithoutCancel(ctx), &core.FailureRecord{
		DocumentId: doc.Id,
		FileID:     doc.File.FileID,
		Filename:   doc.File.OriginalFilename,
		Stage:      stage,
		Status:     string(core.StatusFailed),
		Error:      cause.Error(),
		CreatedAt:  now(),
	})
	if err != nil {
		p.logger.Error("failed to record failure", "stage", stage, "err", err)
	}
}
