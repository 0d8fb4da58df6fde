package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JagjeevanAK/mem-oracle/internal/store"
)

func TestFuseResults_CombinesVectorAndKeywordScoresByConvexCombination(t *testing.T) {
	vectorResults := []*store.VectorResult{
		{Score: 0.8, Record: &store.VectorRecord{ID: "c1", DocsetID: "d1", PageID: "p1", Content: "vector only high score"}},
	}
	keywordResults := []*store.KeywordResult{
		{ChunkID: "c1", DocsetID: "d1", PageID: "p1", Content: "vector only high score", KeywordScore: 0.4},
		{ChunkID: "c2", DocsetID: "d1", PageID: "p1", Content: "keyword only hit", KeywordScore: 0.9},
	}

	fused := fuseResults(vectorResults, keywordResults, 0.5, 0)
	byID := map[string]Result{}
	for _, r := range fused {
		byID[r.ChunkID] = r
	}

	require.Contains(t, byID, "c1")
	assert.InDelta(t, 0.5*float64(float32(0.8))+0.5*0.4, byID["c1"].Score, 1e-9)

	require.Contains(t, byID, "c2")
	assert.InDelta(t, 0.5*0+0.5*0.9, byID["c2"].Score, 1e-9)
}

func TestFuseResults_DropsKeywordHitsBelowMinScore(t *testing.T) {
	keywordResults := []*store.KeywordResult{
		{ChunkID: "weak", KeywordScore: 0.1},
		{ChunkID: "strong", KeywordScore: 0.6},
	}

	fused := fuseResults(nil, keywordResults, 0.5, 0.3)
	ids := make([]string, len(fused))
	for i, r := range fused {
		ids[i] = r.ChunkID
	}
	assert.NotContains(t, ids, "weak")
	assert.Contains(t, ids, "strong")
}

func TestApplyDiversityFilter_CapsResultsPerPage(t *testing.T) {
	results := []Result{
		{ChunkID: "1", DocsetID: "d", PageID: "p1", Score: 0.9},
		{ChunkID: "2", DocsetID: "d", PageID: "p1", Score: 0.8},
		{ChunkID: "3", DocsetID: "d", PageID: "p1", Score: 0.7},
		{ChunkID: "4", DocsetID: "d", PageID: "p2", Score: 0.6},
		{ChunkID: "5", DocsetID: "d", PageID: "p2", Score: 0.5},
	}

	admitted := applyDiversityFilter(results, 10, 2)
	var fromP1 int
	for _, r := range admitted {
		if r.PageID == "p1" {
			fromP1++
		}
	}
	assert.Equal(t, 2, fromP1, "at most maxChunksPerPage results should be admitted from a single page")
	assert.Len(t, admitted, 4)
}

func TestApplyDiversityFilter_StopsAtTopK(t *testing.T) {
	results := []Result{
		{ChunkID: "1", DocsetID: "d", PageID: "p1", Score: 0.9},
		{ChunkID: "2", DocsetID: "d", PageID: "p2", Score: 0.8},
		{ChunkID: "3", DocsetID: "d", PageID: "p3", Score: 0.7},
	}
	admitted := applyDiversityFilter(results, 2, 5)
	assert.Len(t, admitted, 2)
}

func TestClampHelpers(t *testing.T) {
	assert.Equal(t, 1, clampInt(-5, 1, 100))
	assert.Equal(t, 100, clampInt(500, 1, 100))
	assert.Equal(t, 50, clampInt(50, 1, 100))

	assert.Equal(t, float32(0), clampFloat32(-1, 0, 1))
	assert.Equal(t, float32(1), clampFloat32(2, 0, 1))

	assert.Equal(t, 0.0, clampFloat64(-1, 0, 1))
	assert.Equal(t, 1.0, clampFloat64(2, 0, 1))
}

func TestSearch_EndToEndHybridRetrievalOverIndexedDocset(t *testing.T) {
	e := newTestEngine(t)
	srv := newTestDocsetServer(t)
	defer srv.Close()

	result, err := e.IndexDocset(context.Background(), IndexInput{
		BaseURL: srv.URL, SeedSlug: "/docs/intro", AllowedPaths: []string{"/docs"}, WaitForSeed: true,
	})
	require.NoError(t, err)
	e.stopBackgroundCrawl(result.DocsetID)

	resp, err := e.Search(context.Background(), Query{
		Text:      "introduction documentation basics",
		DocsetIDs: []string{result.DocsetID},
		TopK:      5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, result.DocsetID, resp.Results[0].DocsetID)
}

func TestSearch_DefaultsToAllDocsetsWhenNoneSpecified(t *testing.T) {
	e := newTestEngine(t)
	srv := newTestDocsetServer(t)
	defer srv.Close()

	result, err := e.IndexDocset(context.Background(), IndexInput{
		BaseURL: srv.URL, SeedSlug: "/docs/intro", AllowedPaths: []string{"/docs"}, WaitForSeed: true,
	})
	require.NoError(t, err)
	e.stopBackgroundCrawl(result.DocsetID)

	resp, err := e.Search(context.Background(), Query{Text: "introduction basics", TopK: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
}
