// Package retrieval answers free-text queries with ranked, fully hydrated papers.
package retrieval

import (
	"context"

	"github.com/matsen/paperdex/internal/paper"
	"github.com/matsen/paperdex/internal/semantic"
	"go.uber.org/zap"
)

// Index finds the papers whose chunks best match a query.
type Index interface {
	SearchHits(ctx context.Context, query string, k int) ([]semantic.PaperHit, error)
}

// Store hydrates paper ids into records.
type Store interface {
	GetByIDs(ctx context.Context, ids []string) ([]paper.Paper, error)
}

// Result is a paper with the similarity of its best matching chunk.
type Result struct {
	Paper      paper.Paper `json:"paper"`
	Similarity float32     `json:"similarity"`
	ChunkID    string      `json:"chunk_id"`
}

// Engine composes the chunk index with the metadata store.
type Engine struct {
	index  Index
	store  Store
	logger *zap.Logger
}

// NewEngine creates an engine. A nil logger disables logging.
func NewEngine(index Index, store Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{index: index, store: store, logger: logger}
}

// Search returns the papers most relevant to query, best first.
// At most k papers are returned; fewer when several top chunks share a paper.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]paper.Paper, error) {
	results, err := e.SearchWithScores(ctx, query, k)
	if err != nil {
		return nil, err
	}

	papers := make([]paper.Paper, len(results))
	for i, r := range results {
		papers[i] = r.Paper
	}
	return papers, nil
}

// SearchWithScores is Search keeping each paper's similarity.
// Hits without a metadata row, or whose row is not yet marked indexed, are
// dropped; Audit reports them.
func (e *Engine) SearchWithScores(ctx context.Context, query string, k int) ([]Result, error) {
	hits, err := e.index.SearchHits(ctx, query, k)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.PaperID
	}

	papers, err := e.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]paper.Paper, len(papers))
	for _, p := range papers {
		byID[p.ID] = p
	}

	// GetByIDs does not keep order; restore the index's relevance order.
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		p, ok := byID[h.PaperID]
		if !ok {
			e.logger.Warn("search hit has no metadata", zap.String("paper_id", h.PaperID))
			continue
		}
		if !p.Indexed {
			e.logger.Debug("skipping paper not marked indexed", zap.String("paper_id", h.PaperID))
			continue
		}
		results = append(results, Result{Paper: p, Similarity: h.Similarity, ChunkID: h.ChunkID})
	}

	e.logger.Debug("search finished",
		zap.String("query", query), zap.Int("hits", len(hits)), zap.Int("results", len(results)))
	return results, nil
}
