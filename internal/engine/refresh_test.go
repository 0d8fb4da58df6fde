package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JagjeevanAK/mem-oracle/internal/store"
)

func TestRefresh_SkipsPagesYoungerThanMaxAge(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	d, err := e.metadata.CreateDocset(ctx, &store.Docset{BaseURL: "https://example.com", SeedPath: "/a"})
	require.NoError(t, err)
	p, err := e.metadata.CreatePage(ctx, &store.Page{
		DocsetID: d.ID, URL: "https://example.com/a", Path: "/a",
		Status: store.PageIndexed, ContentHash: "abc",
	})
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, e.metadata.UpdatePage(ctx, p.ID, store.PageUpdate{IndexedAt: &now}))

	plans, err := e.Refresh(ctx, RefreshInput{DocsetID: d.ID, MaxAge: time.Hour})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, 0, plans[0].PagesRequeued)

	page, err := e.metadata.GetPage(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, store.PageIndexed, page.Status)
}

func TestRefresh_IncrementalModeRequeuesStalePagesAndPreservesHash(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	d, err := e.metadata.CreateDocset(ctx, &store.Docset{BaseURL: "https://example.com", SeedPath: "/a"})
	require.NoError(t, err)
	p, err := e.metadata.CreatePage(ctx, &store.Page{
		DocsetID: d.ID, URL: "https://example.com/a", Path: "/a",
		Status: store.PageIndexed, ContentHash: "abc", ETag: "etag-1",
	})
	require.NoError(t, err)
	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, e.metadata.UpdatePage(ctx, p.ID, store.PageUpdate{IndexedAt: &stale}))

	plans, err := e.Refresh(ctx, RefreshInput{DocsetID: d.ID, MaxAge: time.Hour})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, 1, plans[0].PagesRequeued)
	assert.Equal(t, 1, plans[0].PreservedHashes)
	assert.Equal(t, 0, plans[0].ClearedHashes)

	page, err := e.metadata.GetPage(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, store.PagePending, page.Status)
	assert.Equal(t, "abc", page.ContentHash)
	assert.Equal(t, "etag-1", page.ETag)
}

func TestRefresh_FullReindexClearsHashAndETag(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	d, err := e.metadata.CreateDocset(ctx, &store.Docset{BaseURL: "https://example.com", SeedPath: "/a"})
	require.NoError(t, err)
	p, err := e.metadata.CreatePage(ctx, &store.Page{
		DocsetID: d.ID, URL: "https://example.com/a", Path: "/a",
		Status: store.PageIndexed, ContentHash: "abc", ETag: "etag-1", LastModified: "lm-1",
	})
	require.NoError(t, err)
	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, e.metadata.UpdatePage(ctx, p.ID, store.PageUpdate{IndexedAt: &stale}))

	plans, err := e.Refresh(ctx, RefreshInput{DocsetID: d.ID, MaxAge: time.Hour, FullReindex: true})
	require.NoError(t, err)
	assert.Equal(t, 1, plans[0].ClearedHashes)
	assert.Equal(t, 0, plans[0].PreservedHashes)

	page, err := e.metadata.GetPage(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, page.ContentHash)
	assert.Empty(t, page.ETag)
	assert.Empty(t, page.LastModified)
}

func TestRefresh_ForceBypassesMaxAgeCheck(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	d, err := e.metadata.CreateDocset(ctx, &store.Docset{BaseURL: "https://example.com", SeedPath: "/a"})
	require.NoError(t, err)
	p, err := e.metadata.CreatePage(ctx, &store.Page{
		DocsetID: d.ID, URL: "https://example.com/a", Path: "/a",
		Status: store.PageIndexed, ContentHash: "abc",
	})
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, e.metadata.UpdatePage(ctx, p.ID, store.PageUpdate{IndexedAt: &now}))

	plans, err := e.Refresh(ctx, RefreshInput{DocsetID: d.ID, Force: true, MaxAge: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 1, plans[0].PagesRequeued)
}

func TestRefresh_AllDocsetsWhenDocsetIDEmpty(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := e.metadata.CreateDocset(ctx, &store.Docset{BaseURL: "https://example.com", SeedPath: "/a" + string(rune('a'+i))})
		require.NoError(t, err)
		p, err := e.metadata.CreatePage(ctx, &store.Page{
			DocsetID: d.ID, URL: "https://example.com/a" + string(rune('a'+i)), Path: "/a",
			Status: store.PageIndexed, ContentHash: "abc",
		})
		require.NoError(t, err)
		stale := time.Now().Add(-2 * time.Hour)
		require.NoError(t, e.metadata.UpdatePage(ctx, p.ID, store.PageUpdate{IndexedAt: &stale}))
	}

	plans, err := e.Refresh(ctx, RefreshInput{MaxAge: time.Hour})
	require.NoError(t, err)
	assert.Len(t, plans, 2)
}
