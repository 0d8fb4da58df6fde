package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JagjeevanAK/mem-oracle/internal/store"
)

func TestCheckConsistency_FlagsOrphanedVectorAndMissingVectorChunk(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	d, err := e.metadata.CreateDocset(ctx, &store.Docset{BaseURL: "https://example.com", SeedPath: "/a"})
	require.NoError(t, err)
	require.NoError(t, e.vectors.Init(ctx, d.ID))

	p, err := e.metadata.CreatePage(ctx, &store.Page{DocsetID: d.ID, URL: "https://example.com/a", Path: "/a"})
	require.NoError(t, err)

	require.NoError(t, e.metadata.CreateChunks(ctx, []*store.Chunk{
		{ID: "chunk-with-vector", PageID: p.ID, DocsetID: d.ID, Body: "has a vector", Index: 0, EmbeddingID: "chunk-with-vector"},
		{ID: "chunk-missing-vector", PageID: p.ID, DocsetID: d.ID, Body: "never upserted", Index: 1, EmbeddingID: "chunk-missing-vector"},
	}))

	require.NoError(t, e.vectors.Upsert(ctx, d.ID, []*store.VectorRecord{
		{ID: "chunk-with-vector", Vector: []float32{1, 0, 0}},
		{ID: "orphaned-vector", Vector: []float32{0, 1, 0}},
	}))

	report, err := e.CheckConsistency(ctx, d.ID)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"orphaned-vector"}, report.OrphanedVectorIDs)
	require.Len(t, report.ChunksMissingVector, 1)
	assert.Equal(t, "chunk-missing-vector", report.ChunksMissingVector[0].ChunkID)
	assert.Equal(t, p.ID, report.ChunksMissingVector[0].PageID)
}

func TestCheckConsistency_ReportsNothingWhenStoresAgree(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	d, err := e.metadata.CreateDocset(ctx, &store.Docset{BaseURL: "https://example.com", SeedPath: "/a"})
	require.NoError(t, err)
	require.NoError(t, e.vectors.Init(ctx, d.ID))

	p, err := e.metadata.CreatePage(ctx, &store.Page{DocsetID: d.ID, URL: "https://example.com/a", Path: "/a"})
	require.NoError(t, err)
	require.NoError(t, e.metadata.CreateChunks(ctx, []*store.Chunk{
		{ID: "c1", PageID: p.ID, DocsetID: d.ID, Body: "fine", Index: 0, EmbeddingID: "c1"},
	}))
	require.NoError(t, e.vectors.Upsert(ctx, d.ID, []*store.VectorRecord{{ID: "c1", Vector: []float32{1, 0}}}))

	report, err := e.CheckConsistency(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, report.OrphanedVectorIDs)
	assert.Empty(t, report.ChunksMissingVector)
}
