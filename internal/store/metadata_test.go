package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateDocset_FillsDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.CreateDocset(ctx, &Docset{BaseURL: "https://docs.example.com", SeedPath: "/guide/intro"})
	require.NoError(t, err)

	assert.Equal(t, "docs.example.com", d.Name)
	assert.Equal(t, []string{"/guide"}, d.AllowedPaths)
	assert.Equal(t, DocsetPending, d.Status)
	assert.NotEmpty(t, d.ID)
}

func TestCreateDocset_SeedAtRootDefaultsAllowedPathToSlash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.CreateDocset(ctx, &Docset{BaseURL: "https://docs.example.com", SeedPath: "/intro"})
	require.NoError(t, err)

	assert.Equal(t, []string{"/"}, d.AllowedPaths)
}

func TestGetDocset_RoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateDocset(ctx, &Docset{BaseURL: "https://docs.example.com", SeedPath: "/guide/intro"})
	require.NoError(t, err)

	got, err := s.GetDocset(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.BaseURL, got.BaseURL)
}

func TestDeleteDocset_CascadesToPages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.CreateDocset(ctx, &Docset{BaseURL: "https://docs.example.com", SeedPath: "/a"})
	require.NoError(t, err)

	_, err = s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/a", Path: "/a"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteDocset(ctx, d.ID))

	_, err = s.GetDocset(ctx, d.ID)
	assert.Error(t, err)

	pages, err := s.ListPages(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestCreatePage_AssignsIncreasingInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.CreateDocset(ctx, &Docset{BaseURL: "https://docs.example.com", SeedPath: "/a"})
	require.NoError(t, err)

	p1, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/a", Path: "/a"})
	require.NoError(t, err)
	p2, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/b", Path: "/b"})
	require.NoError(t, err)

	assert.Less(t, p1.InsertionOrder, p2.InsertionOrder)
}

func TestGetNextPendingPage_ReturnsOldestPendingFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.CreateDocset(ctx, &Docset{BaseURL: "https://docs.example.com", SeedPath: "/a"})
	require.NoError(t, err)

	first, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/a", Path: "/a"})
	require.NoError(t, err)
	second, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/b", Path: "/b"})
	require.NoError(t, err)

	fetching := PageFetching
	require.NoError(t, s.UpdatePage(ctx, first.ID, PageUpdate{Status: &fetching}))

	next, err := s.GetNextPendingPage(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, next.ID)
}

func TestGetNextPendingPage_OrdersByDepthBeforeInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.CreateDocset(ctx, &Docset{BaseURL: "https://docs.example.com", SeedPath: "/a"})
	require.NoError(t, err)

	insertedFirstButDeeper, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/deep", Path: "/deep", Depth: 2})
	require.NoError(t, err)
	_ = insertedFirstButDeeper
	insertedSecondButShallower, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/shallow", Path: "/shallow", Depth: 0})
	require.NoError(t, err)

	next, err := s.GetNextPendingPage(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, insertedSecondButShallower.ID, next.ID, "page inserted later but at shallower depth should come first")
}

func TestListPages_OrdersIndexedPagesByRecencyThenUnindexedLast(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.CreateDocset(ctx, &Docset{BaseURL: "https://docs.example.com", SeedPath: "/a"})
	require.NoError(t, err)

	neverIndexed, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/pending", Path: "/pending"})
	require.NoError(t, err)
	stale, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/stale", Path: "/stale"})
	require.NoError(t, err)
	fresh, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/fresh", Path: "/fresh"})
	require.NoError(t, err)

	staleTime := time.Now().Add(-time.Hour)
	freshTime := time.Now()
	require.NoError(t, s.UpdatePage(ctx, stale.ID, PageUpdate{IndexedAt: &staleTime}))
	require.NoError(t, s.UpdatePage(ctx, fresh.ID, PageUpdate{IndexedAt: &freshTime}))

	pages, err := s.ListPages(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, fresh.ID, pages[0].ID, "most recently indexed page should come first")
	assert.Equal(t, stale.ID, pages[1].ID)
	assert.Equal(t, neverIndexed.ID, pages[2].ID, "never-indexed pages should sort last")
}

func TestUpdatePage_OnlyTouchesProvidedFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.CreateDocset(ctx, &Docset{BaseURL: "https://docs.example.com", SeedPath: "/a"})
	require.NoError(t, err)
	p, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/a", Path: "/a"})
	require.NoError(t, err)

	title := "A Title"
	require.NoError(t, s.UpdatePage(ctx, p.ID, PageUpdate{Title: &title}))

	got, err := s.GetPage(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "A Title", got.Title)
	assert.Equal(t, PagePending, got.Status)
}

func TestCreateChunks_PopulatesFTSMirror(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.CreateDocset(ctx, &Docset{BaseURL: "https://docs.example.com", SeedPath: "/a"})
	require.NoError(t, err)
	p, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/a", Path: "/a", Title: "Alpha"})
	require.NoError(t, err)

	require.NoError(t, s.CreateChunks(ctx, []*Chunk{
		{ID: "c1", PageID: p.ID, DocsetID: d.ID, Body: "alpha content here", Index: 0},
	}))

	results, err := s.SearchKeyword(ctx, "alpha", nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)
}

func TestDeleteChunks_RemovesFTSRowsToo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.CreateDocset(ctx, &Docset{BaseURL: "https://docs.example.com", SeedPath: "/a"})
	require.NoError(t, err)
	p, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/a", Path: "/a"})
	require.NoError(t, err)

	require.NoError(t, s.CreateChunks(ctx, []*Chunk{
		{ID: "c1", PageID: p.ID, DocsetID: d.ID, Body: "alpha content", Index: 0},
	}))
	require.NoError(t, s.DeleteChunks(ctx, p.ID))

	results, err := s.SearchKeyword(ctx, "alpha", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchKeyword_FiltersByDocsetID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d1, err := s.CreateDocset(ctx, &Docset{BaseURL: "https://a.example.com", SeedPath: "/a"})
	require.NoError(t, err)
	d2, err := s.CreateDocset(ctx, &Docset{BaseURL: "https://b.example.com", SeedPath: "/b"})
	require.NoError(t, err)

	p1, err := s.CreatePage(ctx, &Page{DocsetID: d1.ID, URL: "https://a.example.com/a", Path: "/a"})
	require.NoError(t, err)
	p2, err := s.CreatePage(ctx, &Page{DocsetID: d2.ID, URL: "https://b.example.com/b", Path: "/b"})
	require.NoError(t, err)

	require.NoError(t, s.CreateChunks(ctx, []*Chunk{
		{ID: "c1", PageID: p1.ID, DocsetID: d1.ID, Body: "widget content", Index: 0},
		{ID: "c2", PageID: p2.ID, DocsetID: d2.ID, Body: "widget content", Index: 0},
	}))

	results, err := s.SearchKeyword(ctx, "widget", []string{d1.ID}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)
}

func TestSearchKeyword_RanksBetterMatchesWithHigherKeywordScore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.CreateDocset(ctx, &Docset{BaseURL: "https://docs.example.com", SeedPath: "/a"})
	require.NoError(t, err)
	p1, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/strong", Path: "/strong"})
	require.NoError(t, err)
	p2, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/weak", Path: "/weak"})
	require.NoError(t, err)
	p3, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/other1", Path: "/other1"})
	require.NoError(t, err)
	p4, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/other2", Path: "/other2"})
	require.NoError(t, err)

	require.NoError(t, s.CreateChunks(ctx, []*Chunk{
		{ID: "strong", PageID: p1.ID, DocsetID: d.ID, Body: "zephyr zephyr zephyr", Index: 0},
		{ID: "weak", PageID: p2.ID, DocsetID: d.ID, Body: "zephyr is mentioned once among many other unrelated filler words describing something else entirely", Index: 0},
		{ID: "other1", PageID: p3.ID, DocsetID: d.ID, Body: "completely unrelated discussion about widgets and gadgets", Index: 0},
		{ID: "other2", PageID: p4.ID, DocsetID: d.ID, Body: "another unrelated passage covering gizmos and sprockets", Index: 0},
	}))

	results, err := s.SearchKeyword(ctx, "zephyr", nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "strong", results[0].ChunkID, "SQL orders bm25 ascending, so the stronger match must come first")
	assert.Equal(t, "weak", results[1].ChunkID)
	assert.Greater(t, results[0].KeywordScore, results[1].KeywordScore, "the better match must receive the higher KeywordScore")
	assert.InDelta(t, 1.0, results[0].KeywordScore, 1e-9, "a negative bm25 clamps to the formula's maximum of 1")
}

func TestGetIndexStatus_AggregatesPageStatesAndChunkCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.CreateDocset(ctx, &Docset{BaseURL: "https://docs.example.com", SeedPath: "/a"})
	require.NoError(t, err)
	p, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/a", Path: "/a"})
	require.NoError(t, err)
	require.NoError(t, s.CreateChunks(ctx, []*Chunk{
		{ID: "c1", PageID: p.ID, DocsetID: d.ID, Body: "content", Index: 0},
	}))

	status, err := s.GetIndexStatus(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.PagesByState[PagePending])
	assert.Equal(t, 1, status.ChunkCount)
}

func TestNormalizeKeywordQuery_DropsShortTokensAndAddsPrefixWildcard(t *testing.T) {
	assert.Equal(t, "alpha* beta*", normalizeKeywordQuery("Alpha, beta! a"))
}

func TestGetIndexStatus_FlagsPagesStuckPastThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.CreateDocset(ctx, &Docset{BaseURL: "https://docs.example.com", SeedPath: "/a"})
	require.NoError(t, err)

	stuck, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/stuck", Path: "/stuck"})
	require.NoError(t, err)
	fetching := PageFetching
	longAgo := time.Now().Add(-2 * StuckPageThreshold)
	require.NoError(t, s.UpdatePage(ctx, stuck.ID, PageUpdate{Status: &fetching, LastAttemptAt: &longAgo}))

	fresh, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/fresh", Path: "/fresh"})
	require.NoError(t, err)
	recent := time.Now()
	require.NoError(t, s.UpdatePage(ctx, fresh.ID, PageUpdate{Status: &fetching, LastAttemptAt: &recent}))

	status, err := s.GetIndexStatus(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, status.StuckPages, 1)
	assert.Equal(t, stuck.ID, status.StuckPages[0].ID)
}

func TestListChunksByDocset_ReturnsChunksAcrossAllPages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.CreateDocset(ctx, &Docset{BaseURL: "https://docs.example.com", SeedPath: "/a"})
	require.NoError(t, err)
	p1, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/a", Path: "/a"})
	require.NoError(t, err)
	p2, err := s.CreatePage(ctx, &Page{DocsetID: d.ID, URL: "https://docs.example.com/b", Path: "/b"})
	require.NoError(t, err)

	require.NoError(t, s.CreateChunks(ctx, []*Chunk{
		{ID: "c1", PageID: p1.ID, DocsetID: d.ID, Body: "one", Index: 0},
		{ID: "c2", PageID: p2.ID, DocsetID: d.ID, Body: "two", Index: 0},
	}))

	chunks, err := s.ListChunksByDocset(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}
