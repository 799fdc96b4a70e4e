package ingest

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// Report lists inconsistencies between the metadata store and the chunk index.
type Report struct {
	// Unindexed papers have a metadata row that never got marked indexed,
	// typically an ingestion whose rollback failed.
	Unindexed []string `json:"unindexed"`

	// MissingChunks are papers marked indexed that have no chunks in the index.
	MissingChunks []string `json:"missing_chunks"`

	// OrphanChunks are paper ids that have chunks but no metadata row.
	OrphanChunks []string `json:"orphan_chunks"`
}

// Clean reports whether no inconsistency was found.
func (r *Report) Clean() bool {
	return len(r.Unindexed) == 0 && len(r.MissingChunks) == 0 && len(r.OrphanChunks) == 0
}

// ReconcileStats summarizes what Reconcile removed.
type ReconcileStats struct {
	PapersRemoved      int `json:"papers_removed"`
	ChunkGroupsRemoved int `json:"chunk_groups_removed"`
}

// Audit compares both stores. It never modifies either.
func (c *Coordinator) Audit(ctx context.Context) (*Report, error) {
	ids, err := c.store.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	unindexed, err := c.store.ListUnindexed(ctx)
	if err != nil {
		return nil, err
	}
	chunked, err := c.index.PaperIDs(ctx)
	if err != nil {
		return nil, err
	}

	known := toSet(ids)
	pending := toSet(unindexed)
	hasChunks := toSet(chunked)

	report := &Report{
		Unindexed:     []string{},
		MissingChunks: []string{},
		OrphanChunks:  []string{},
	}
	report.Unindexed = append(report.Unindexed, unindexed...)
	for _, id := range ids {
		if !pending[id] && !hasChunks[id] {
			report.MissingChunks = append(report.MissingChunks, id)
		}
	}
	for _, id := range chunked {
		if !known[id] {
			report.OrphanChunks = append(report.OrphanChunks, id)
		}
	}

	sort.Strings(report.Unindexed)
	sort.Strings(report.MissingChunks)
	sort.Strings(report.OrphanChunks)
	return report, nil
}

// Reconcile repairs the inconsistencies in report: orphan chunks are deleted,
// and unindexed or chunkless papers are removed from both stores so they can be
// ingested again.
func (c *Coordinator) Reconcile(ctx context.Context, report *Report) (*ReconcileStats, error) {
	stats := &ReconcileStats{}

	for _, id := range report.OrphanChunks {
		if err := c.index.DeleteByPaperID(ctx, id); err != nil {
			return stats, err
		}
		stats.ChunkGroupsRemoved++
	}

	broken := append(append([]string{}, report.Unindexed...), report.MissingChunks...)
	for _, id := range broken {
		if err := c.Delete(ctx, id); err != nil {
			return stats, err
		}
		stats.PapersRemoved++
	}

	c.logger.Info("stores reconciled",
		zap.Int("papers_removed", stats.PapersRemoved),
		zap.Int("chunk_groups_removed", stats.ChunkGroupsRemoved))
	return stats, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
