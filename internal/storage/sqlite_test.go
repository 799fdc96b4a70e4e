package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/matsen/paperdex/internal/paper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenDB(filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleMetadata() paper.Metadata {
	return paper.Metadata{
		Title:              "BitNet: Scaling 1-bit Transformers for Large Language Models",
		Summary:            "Introduces a 1-bit transformer architecture.",
		Authors:            []string{"Hongyu Wang", "Shuming Ma"},
		Link:               "https://arxiv.org/abs/2310.11453",
		Datasets:           []string{"The Pile"},
		Metrics:            []string{"perplexity", "energy consumption"},
		Methods:            []string{"BitLinear", "quantization-aware training"},
		Applications:       []string{"on-device inference"},
		Limitations:        []string{"evaluated on language modeling only"},
		AreasOfImprovement: []string{"extend to vision", "kernel support", "larger scales"},
	}
}

func TestOpenDB_CreatesSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "metadata.db")

	db, err := OpenDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "OpenDB() did not create database file")
}

func TestDB_EnsureSchemaIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.CreatePaper(ctx, sampleMetadata())
	require.NoError(t, err)

	require.NoError(t, db.EnsureSchema(ctx))
	require.NoError(t, db.EnsureSchema(ctx))

	got, err := db.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got, "existing rows must survive repeated schema creation")
}

func TestDB_CreatePaperRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	meta := sampleMetadata()

	id, err := db.CreatePaper(ctx, meta)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	papers, err := db.GetByIDs(ctx, []string{id})
	require.NoError(t, err)
	require.Len(t, papers, 1)

	assert.Equal(t, id, papers[0].ID)
	assert.Equal(t, meta, papers[0].Metadata)
	assert.False(t, papers[0].Indexed, "new papers start unindexed")
}

func TestDB_CreatePaperFillsDefaults(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.CreatePaper(ctx, paper.Metadata{Title: "Only a title"})
	require.NoError(t, err)

	got, err := db.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Only a title", got.Title)
	assert.Equal(t, "", got.Summary)
	assert.Equal(t, "", got.Link)
	assert.NotNil(t, got.Authors)
	assert.Empty(t, got.Authors)
	assert.NotNil(t, got.AreasOfImprovement)
	assert.Empty(t, got.AreasOfImprovement)
}

func TestDB_CreatePaperGeneratesUniqueIDs(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		id, err := db.CreatePaper(ctx, sampleMetadata())
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestDB_GetByIDsOmitsUnknown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.CreatePaper(ctx, sampleMetadata())
	require.NoError(t, err)

	papers, err := db.GetByIDs(ctx, []string{id, "00000000-0000-0000-0000-000000000000"})
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, id, papers[0].ID)
}

func TestDB_GetByIDsEmptyInput(t *testing.T) {
	db := openTestDB(t)

	papers, err := db.GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, papers)
	assert.Empty(t, papers)
}

func TestDB_GetByIDsDuplicateInput(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.CreatePaper(ctx, sampleMetadata())
	require.NoError(t, err)

	papers, err := db.GetByIDs(ctx, []string{id, id, id})
	require.NoError(t, err)
	assert.Len(t, papers, 1)
}

func TestDB_GetByIDMissing(t *testing.T) {
	db := openTestDB(t)

	got, err := db.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDB_GetAllStableOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"first", "second", "third"} {
		id, err := db.CreatePaper(ctx, paper.Metadata{Title: title})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	all, err := db.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, p := range all {
		assert.Equal(t, ids[i], p.ID)
	}

	again, err := db.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, all, again)
}

func TestDB_UpdateReplacesAllFields(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.CreatePaper(ctx, sampleMetadata())
	require.NoError(t, err)

	updated := paper.Metadata{
		Title:   "Revised title",
		Methods: []string{"new method"},
	}
	require.NoError(t, db.Update(ctx, id, updated))

	papers, err := db.GetByIDs(ctx, []string{id})
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, updated.Normalize(), papers[0].Metadata, "no stale field may survive an update")
	assert.Equal(t, id, papers[0].ID)
}

func TestDB_UpdatePreservesIndexedFlag(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.CreatePaper(ctx, sampleMetadata())
	require.NoError(t, err)
	require.NoError(t, db.SetIndexed(ctx, id, true))
	require.NoError(t, db.Update(ctx, id, paper.Metadata{Title: "x"}))

	got, err := db.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Indexed)
}

func TestDB_UpdateMissingIsNotFound(t *testing.T) {
	db := openTestDB(t)

	err := db.Update(context.Background(), "missing", sampleMetadata())
	require.Error(t, err)
	assert.True(t, errors.Is(err, paper.ErrNotFound))
}

func TestDB_DeleteIsLenient(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	assert.NoError(t, db.Delete(ctx, "missing"))

	id, err := db.CreatePaper(ctx, sampleMetadata())
	require.NoError(t, err)
	require.NoError(t, db.Delete(ctx, id))

	papers, err := db.GetByIDs(ctx, []string{id})
	require.NoError(t, err)
	assert.Empty(t, papers)
}

func TestDB_DeleteAll(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := db.CreatePaper(ctx, sampleMetadata())
		require.NoError(t, err)
	}
	require.NoError(t, db.DeleteAll(ctx))

	count, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDB_ListUnindexed(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	done, err := db.CreatePaper(ctx, sampleMetadata())
	require.NoError(t, err)
	pending, err := db.CreatePaper(ctx, sampleMetadata())
	require.NoError(t, err)
	require.NoError(t, db.SetIndexed(ctx, done, true))

	ids, err := db.ListUnindexed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{pending}, ids)

	all, err := db.ListIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{done, pending}, all)
}

func TestDB_SetIndexedMissing(t *testing.T) {
	db := openTestDB(t)

	err := db.SetIndexed(context.Background(), "missing", true)
	assert.True(t, errors.Is(err, paper.ErrNotFound))
}

func TestDB_ClosedDatabaseIsStorageError(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.GetAll(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, paper.ErrStorage))
}
