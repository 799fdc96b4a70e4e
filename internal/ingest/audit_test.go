package ingest

import (
	"context"
	"testing"

	"github.com/matsen/paperdex/internal/paper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudit_CleanStores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.Ingest(ctx, Input{Chunks: chunkInputs("graph")})
	require.NoError(t, err)

	report, err := f.coord.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.NotNil(t, report.OrphanChunks)
}

func TestAuditAndReconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	healthy, err := f.coord.Ingest(ctx, Input{Chunks: chunkInputs("graph", "soil")})
	require.NoError(t, err)

	// Chunks whose paper row is gone
	require.NoError(t, f.index.IndexChunks(ctx, "ghost", chunkInputs("quantum")))

	// A row that claims to be indexed but has no chunks
	hollow, err := f.db.CreatePaper(ctx, paper.Metadata{Title: "hollow"})
	require.NoError(t, err)
	require.NoError(t, f.db.SetIndexed(ctx, hollow, true))

	// A row left behind by an interrupted ingestion, with partial chunks
	pending, err := f.db.CreatePaper(ctx, paper.Metadata{Title: "pending"})
	require.NoError(t, err)
	require.NoError(t, f.index.IndexChunks(ctx, pending, chunkInputs("protein")))

	report, err := f.coord.Audit(ctx)
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Equal(t, []string{"ghost"}, report.OrphanChunks)
	assert.Equal(t, []string{hollow}, report.MissingChunks)
	assert.Equal(t, []string{pending}, report.Unindexed)

	// Auditing never repairs
	again, err := f.coord.Audit(ctx)
	require.NoError(t, err)
	assert.Equal(t, report, again)

	stats, err := f.coord.Reconcile(ctx, report)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ChunkGroupsRemoved)
	assert.Equal(t, 2, stats.PapersRemoved)

	after, err := f.coord.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, after.Clean())

	ids, err := f.db.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{healthy}, ids)

	chunked, err := f.index.PaperIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{healthy}, chunked)
}
