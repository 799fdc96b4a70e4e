// Package ingest sequences metadata generation and chunk indexing so a paper
// becomes searchable only once both stores hold it.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/matsen/paperdex/internal/paper"
	"github.com/matsen/paperdex/internal/pdf"
	"go.uber.org/zap"
)

// Extractor turns a document on disk into text and chunks.
type Extractor interface {
	ExtractText(path string) (string, error)
	ChunkDocument(path string) ([]paper.ChunkInput, error)
	ExtractDOI(path string) (string, error)
}

// Generator produces structured metadata from paper text.
type Generator interface {
	GenerateMetadata(ctx context.Context, text, model string) (paper.Metadata, error)
}

// MetadataStore is the relational half of the two-store design.
type MetadataStore interface {
	CreatePaper(ctx context.Context, meta paper.Metadata) (string, error)
	Update(ctx context.Context, id string, meta paper.Metadata) error
	SetIndexed(ctx context.Context, id string, indexed bool) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	ListIDs(ctx context.Context) ([]string, error)
	ListUnindexed(ctx context.Context) ([]string, error)
}

// ChunkIndex is the vector half of the two-store design.
type ChunkIndex interface {
	IndexChunks(ctx context.Context, paperID string, chunks []paper.ChunkInput) error
	DeleteByPaperID(ctx context.Context, paperID string) error
	DropAll(ctx context.Context) error
	PaperIDs(ctx context.Context) ([]string, error)
}

// Overrides replace generated metadata fields when the caller knows better,
// e.g. authors and link taken from a paper repository listing.
type Overrides struct {
	Title   string
	Authors []string
	Link    string
}

// Input is one paper ready for ingestion.
type Input struct {
	Text      string             // Full text, sent to the generator
	Chunks    []paper.ChunkInput // Ordered chunks, embedded into the index
	Model     string             // Generation model, empty for the generator default
	Overrides Overrides
	Source    string // Label used in errors and logs
}

// Coordinator writes papers to both stores and keeps them consistent.
type Coordinator struct {
	store     MetadataStore
	index     ChunkIndex
	generator Generator
	extractor Extractor
	logger    *zap.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithExtractor sets the document extractor used by IngestFile and IngestBatch.
func WithExtractor(extractor Extractor) Option {
	return func(c *Coordinator) {
		c.extractor = extractor
	}
}

// New creates a coordinator over the two stores.
func New(store MetadataStore, index ChunkIndex, generator Generator, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		index:     index,
		generator: generator,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ingest generates metadata for the paper, stores it unindexed, indexes every
// chunk and only then marks the paper indexed. If indexing fails the record and
// any chunks are removed again; if that cleanup fails too the returned *Error
// has Orphaned set. Returns the new paper id.
func (c *Coordinator) Ingest(ctx context.Context, in Input) (string, error) {
	log := c.logger.With(zap.String("source", in.Source))

	if len(in.Chunks) == 0 {
		return "", &Error{Stage: StageChunking, Source: in.Source,
			Err: fmt.Errorf("%w: no chunks", paper.ErrChunking)}
	}

	meta, err := c.generator.GenerateMetadata(ctx, in.Text, in.Model)
	if err != nil {
		log.Warn("metadata generation failed", zap.Error(err))
		return "", &Error{Stage: StageGeneration, Source: in.Source, Err: ensureKind(err, paper.ErrGeneration)}
	}
	meta = applyOverrides(meta, in.Overrides)

	id, err := c.store.CreatePaper(ctx, meta)
	if err != nil {
		return "", &Error{Stage: StageStorage, Source: in.Source, Err: ensureKind(err, paper.ErrStorage)}
	}
	log = log.With(zap.String("paper_id", id))

	if err := c.index.IndexChunks(ctx, id, in.Chunks); err != nil {
		log.Warn("indexing failed, rolling back", zap.Error(err))
		return "", c.rollback(ctx, id, in.Source, StageIndexing, err)
	}

	if err := c.store.SetIndexed(ctx, id, true); err != nil {
		log.Warn("marking paper indexed failed, rolling back", zap.Error(err))
		return "", c.rollback(ctx, id, in.Source, StageStorage, ensureKind(err, paper.ErrStorage))
	}

	log.Info("paper ingested", zap.String("title", meta.Title), zap.Int("chunks", len(in.Chunks)))
	return id, nil
}

// rollback removes a partially ingested paper from both stores.
// Cleanup ignores cancellation of ctx so a cancelled ingestion still cleans up.
func (c *Coordinator) rollback(ctx context.Context, id, source string, stage Stage, cause error) *Error {
	ctx = context.WithoutCancel(ctx)

	var cleanup []error
	if err := c.index.DeleteByPaperID(ctx, id); err != nil {
		cleanup = append(cleanup, err)
	}
	if err := c.store.Delete(ctx, id); err != nil {
		cleanup = append(cleanup, err)
	}

	e := &Error{Stage: stage, PaperID: id, Source: source, Err: cause}
	if len(cleanup) > 0 {
		c.logger.Error("rollback failed, paper orphaned",
			zap.String("paper_id", id), zap.Errors("cleanup", cleanup))
		e.Orphaned = true
		e.Err = errors.Join(cause, fmt.Errorf("rollback: %w", errors.Join(cleanup...)))
	}
	return e
}

// IngestFile extracts, chunks and ingests one PDF. When no link override is
// given, a DOI found in the document becomes the link.
func (c *Coordinator) IngestFile(ctx context.Context, path, model string, ov Overrides) (string, error) {
	if c.extractor == nil {
		return "", &Error{Stage: StageExtraction, Source: path,
			Err: fmt.Errorf("%w: no extractor configured", paper.ErrExtraction)}
	}

	text, err := c.extractor.ExtractText(path)
	if err != nil {
		return "", &Error{Stage: StageExtraction, Source: path, Err: ensureKind(err, paper.ErrExtraction)}
	}

	chunks, err := c.extractor.ChunkDocument(path)
	if err != nil {
		return "", &Error{Stage: StageChunking, Source: path, Err: ensureKind(err, paper.ErrChunking)}
	}

	if ov.Link == "" {
		doi, err := c.extractor.ExtractDOI(path)
		if err != nil {
			c.logger.Debug("DOI lookup failed", zap.String("source", path), zap.Error(err))
		}
		ov.Link = pdf.DOILink(doi)
	}

	return c.Ingest(ctx, Input{
		Text:      text,
		Chunks:    chunks,
		Model:     model,
		Overrides: ov,
		Source:    path,
	})
}

// Update replaces a paper's metadata. Returns paper.ErrNotFound for unknown ids.
func (c *Coordinator) Update(ctx context.Context, id string, meta paper.Metadata) error {
	if err := c.store.Update(ctx, id, meta); err != nil {
		return err
	}
	c.logger.Info("paper updated", zap.String("paper_id", id))
	return nil
}

// Delete removes a paper's chunks and then its metadata. Unknown ids are a no-op.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	if err := c.index.DeleteByPaperID(ctx, id); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	c.logger.Info("paper deleted", zap.String("paper_id", id))
	return nil
}

// DeleteAll empties both stores. The index is dropped and recreated.
func (c *Coordinator) DeleteAll(ctx context.Context) error {
	if err := c.index.DropAll(ctx); err != nil {
		return err
	}
	if err := c.store.DeleteAll(ctx); err != nil {
		return err
	}
	c.logger.Info("all papers deleted")
	return nil
}

func applyOverrides(meta paper.Metadata, ov Overrides) paper.Metadata {
	if ov.Title != "" {
		meta.Title = ov.Title
	}
	if len(ov.Authors) > 0 {
		meta.Authors = ov.Authors
	}
	if ov.Link != "" {
		meta.Link = ov.Link
	}
	return meta.Normalize()
}

// ensureKind wraps err with kind unless it already carries it.
func ensureKind(err, kind error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
