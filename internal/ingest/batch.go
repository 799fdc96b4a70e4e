package ingest

import (
	"context"

	"github.com/matsen/paperdex/internal/semantic"
	"go.uber.org/zap"
)

// Source is one file to ingest in a batch.
type Source struct {
	Path      string
	Model     string
	Overrides Overrides
}

// Result is the outcome of ingesting one Source.
type Result struct {
	Source  string `json:"source"`
	PaperID string `json:"id,omitempty"`
	Err     error  `json:"-"`
}

// OK reports whether the paper was ingested.
func (r Result) OK() bool {
	return r.Err == nil
}

// IngestBatch ingests sources one at a time, in order. A failure affects only
// its own paper. Once ctx is cancelled the remaining sources are not attempted
// and their results carry the context error.
func (c *Coordinator) IngestBatch(ctx context.Context, sources []Source, progress semantic.ProgressReporter) []Result {
	results := make([]Result, len(sources))
	total := len(sources)

	for i, src := range sources {
		results[i].Source = src.Path

		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		if progress != nil {
			progress.OnProgress(i+1, total)
		}

		id, err := c.IngestFile(ctx, src.Path, src.Model, src.Overrides)
		results[i].PaperID = id
		results[i].Err = err
	}

	failed := CountFailed(results)
	c.logger.Info("batch ingestion finished",
		zap.Int("total", total), zap.Int("ingested", total-failed), zap.Int("failed", failed))
	return results
}

// CountFailed returns how many results carry an error.
func CountFailed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}
