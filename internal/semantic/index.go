package semantic

import (
	"context"
	"errors"
	"fmt"

	"github.com/matsen/paperdex/internal/embedding"
	"github.com/matsen/paperdex/internal/paper"
)

// DefaultK is the number of nearest chunks searched when the caller asks for none.
const DefaultK = 5

// ErrModelMismatch indicates the provider differs from the model that populated the collection.
var ErrModelMismatch = errors.New("embedding model does not match collection")

// Index embeds paper chunks and answers free-text queries against them.
// The same provider embeds both chunks and queries.
type Index struct {
	store    *Store
	provider embedding.Provider
}

// NewIndex creates an index over store using provider for all embeddings.
func NewIndex(store *Store, provider embedding.Provider) *Index {
	return &Index{store: store, provider: provider}
}

// Store returns the underlying chunk store.
func (idx *Index) Store() *Store {
	return idx.store
}

// Provider returns the embedding provider.
func (idx *Index) Provider() embedding.Provider {
	return idx.provider
}

// IndexChunks embeds and stores every chunk of a paper under ids derived from
// the paper id and chunk ordinal. All embeddings are computed before anything is
// written, and the write is a single transaction, so a failure leaves no chunks
// of the paper behind.
func (idx *Index) IndexChunks(ctx context.Context, paperID string, inputs []paper.ChunkInput) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: no chunks for paper %s", paper.ErrChunking, paperID)
	}

	info, err := idx.checkModel(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", paper.ErrEmbedding, err)
	}

	chunks, err := idx.embedChunks(ctx, paperID, inputs)
	if err != nil {
		return err
	}

	if err := idx.store.Add(ctx, paperID, chunks); err != nil {
		return err
	}

	if info == nil {
		return idx.store.SetModel(ctx, idx.provider.ModelName(), idx.provider.Dimensions())
	}
	return nil
}

func (idx *Index) embedChunks(ctx context.Context, paperID string, inputs []paper.ChunkInput) ([]paper.Chunk, error) {
	chunks := make([]paper.Chunk, len(inputs))
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", paper.ErrEmbedding, err)
		}

		emb, err := idx.provider.Embed(ctx, in.Text)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d of %s: %w", paper.ErrEmbedding, i, paperID, err)
		}
		if err := checkDimensions(emb, idx.provider.Dimensions()); err != nil {
			return nil, fmt.Errorf("%w: chunk %d of %s: %w", paper.ErrEmbedding, i, paperID, err)
		}

		chunks[i] = paper.Chunk{
			ID:        paper.ChunkID(paperID, i),
			PaperID:   paperID,
			Ordinal:   i,
			Text:      in.Text,
			Page:      in.Page,
			Offset:    in.Offset,
			Embedding: emb.Vector,
		}
	}
	return chunks, nil
}

// checkDimensions rejects a vector whose length differs from what the provider declares.
func checkDimensions(emb embedding.Embedding, want int) error {
	if emb.Dimensions() != want {
		return fmt.Errorf("vector has %d dimensions, provider declares %d", emb.Dimensions(), want)
	}
	return nil
}

// checkModel returns the recorded collection model, failing if it differs from the provider.
func (idx *Index) checkModel(ctx context.Context) (*CollectionInfo, error) {
	info, err := idx.store.Model(ctx)
	if err != nil {
		return nil, err
	}
	if info != nil && (info.Model != idx.provider.ModelName() || info.Dimensions != idx.provider.Dimensions()) {
		return nil, fmt.Errorf("%w: collection %s uses %s (%d dims), provider is %s (%d dims)",
			ErrModelMismatch, info.Name, info.Model, info.Dimensions,
			idx.provider.ModelName(), idx.provider.Dimensions())
	}
	return info, nil
}

// Search returns the ids of papers owning the k chunks nearest to the query,
// deduplicated in order of first occurrence. A k of zero or less means DefaultK.
// An empty result with a nil error means no matches.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]string, error) {
	hits, err := idx.SearchHits(ctx, query, k)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.PaperID
	}
	return ids, nil
}

// SearchHits is Search with the similarity and chunk of each paper's best hit.
func (idx *Index) SearchHits(ctx context.Context, query string, k int) ([]PaperHit, error) {
	if k <= 0 {
		k = DefaultK
	}

	if _, err := idx.checkModel(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", paper.ErrSearch, err)
	}

	emb, err := idx.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", paper.ErrSearch, err)
	}
	if err := checkDimensions(emb, idx.provider.Dimensions()); err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", paper.ErrSearch, err)
	}

	hits, err := idx.store.Nearest(ctx, emb.Vector, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", paper.ErrSearch, err)
	}

	return DedupePaperIDs(hits), nil
}

// DeleteByPaperID removes every chunk of a paper.
func (idx *Index) DeleteByPaperID(ctx context.Context, paperID string) error {
	return idx.store.DeleteByPaperID(ctx, paperID)
}

// PaperIDs returns the ids of all papers that have chunks in the index.
func (idx *Index) PaperIDs(ctx context.Context) ([]string, error) {
	return idx.store.PaperIDs(ctx)
}

// DropAll empties the collection, leaving it ready for new chunks under any model.
func (idx *Index) DropAll(ctx context.Context) error {
	return idx.store.DropAll(ctx)
}
