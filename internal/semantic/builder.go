package semantic

import (
	"context"
	"fmt"
	"time"

	"github.com/matsen/paperdex/internal/paper"
)

// ProgressReporter receives progress updates during long-running operations.
type ProgressReporter interface {
	// OnProgress is called with the current progress.
	OnProgress(current, total int)
}

// ProgressFunc is a function adapter for ProgressReporter.
type ProgressFunc func(current, total int)

// OnProgress implements ProgressReporter.
func (f ProgressFunc) OnProgress(current, total int) {
	f(current, total)
}

// Builder re-embeds an existing collection with the index's provider,
// used after switching embedding models. Chunk text and ids are kept.
type Builder struct {
	index    *Index
	progress ProgressReporter
}

// NewBuilder creates a new rebuilder for idx.
func NewBuilder(idx *Index) *Builder {
	return &Builder{index: idx}
}

// SetProgressReporter sets the progress reporter for the builder.
func (b *Builder) SetProgressReporter(reporter ProgressReporter) {
	b.progress = reporter
}

// Rebuild re-embeds every stored chunk, one paper per transaction. The collection
// model is only updated once every paper succeeded, so an interrupted rebuild
// keeps failing the model check until it is rerun.
func (b *Builder) Rebuild(ctx context.Context) (*BuildStats, error) {
	startTime := time.Now()
	store := b.index.store
	provider := b.index.provider

	ids, err := store.PaperIDs(ctx)
	if err != nil {
		return nil, err
	}

	stats := &BuildStats{Model: provider.ModelName()}
	total := len(ids)

	for i, paperID := range ids {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if b.progress != nil {
			b.progress.OnProgress(i+1, total)
		}

		chunks, err := store.Chunks(ctx, paperID)
		if err != nil {
			return nil, err
		}

		for j := range chunks {
			emb, err := provider.Embed(ctx, chunks[j].Text)
			if err != nil {
				return nil, fmt.Errorf("%w: chunk %s: %w", paper.ErrEmbedding, chunks[j].ID, err)
			}
			if err := checkDimensions(emb, provider.Dimensions()); err != nil {
				return nil, fmt.Errorf("%w: chunk %s: %w", paper.ErrEmbedding, chunks[j].ID, err)
			}
			chunks[j].Embedding = emb.Vector
		}

		if err := store.Replace(ctx, paperID, chunks); err != nil {
			return nil, err
		}

		stats.PapersIndexed++
		stats.ChunksIndexed += len(chunks)
	}

	if err := store.SetModel(ctx, provider.ModelName(), provider.Dimensions()); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(startTime)
	return stats, nil
}
