package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/JagjeevanAK/mem-oracle/internal/engerr"
	"github.com/JagjeevanAK/mem-oracle/internal/extract"
	"github.com/JagjeevanAK/mem-oracle/internal/fetch"
	"github.com/JagjeevanAK/mem-oracle/internal/ids"
	"github.com/JagjeevanAK/mem-oracle/internal/store"
)

// IndexDocset implements 4.9.1: find-or-create the docset, ensure a seed
// page exists, optionally index it synchronously, then start (or resume)
// its background crawl.
func (e *Engine) IndexDocset(ctx context.Context, in IndexInput) (*IndexResult, error) {
	docsetID := ids.Docset(in.BaseURL, in.SeedSlug)

	d, err := e.metadata.GetDocset(ctx, docsetID)
	if err != nil {
		if _, ok := err.(store.ErrNotFound); !ok {
			return nil, fmt.Errorf("get docset: %w", err)
		}
		d, err = e.metadata.CreateDocset(ctx, &store.Docset{
			ID:           docsetID,
			Name:         in.Name,
			BaseURL:      in.BaseURL,
			SeedPath:     in.SeedSlug,
			AllowedPaths: in.AllowedPaths,
		})
		if err != nil {
			return nil, fmt.Errorf("create docset: %w", err)
		}
	}

	if err := e.vectors.Init(ctx, d.ID); err != nil {
		return nil, fmt.Errorf("init vector namespace: %w", err)
	}
	if err := e.metadata.UpdateDocsetStatus(ctx, d.ID, store.DocsetIndexing); err != nil {
		return nil, fmt.Errorf("update docset status: %w", err)
	}

	seedURL := joinURL(in.BaseURL, in.SeedSlug)
	seed, err := e.metadata.GetPageByURL(ctx, d.ID, seedURL)
	if err != nil {
		if _, ok := err.(store.ErrNotFound); !ok {
			return nil, fmt.Errorf("get seed page: %w", err)
		}
		seed, err = e.metadata.CreatePage(ctx, &store.Page{
			DocsetID: d.ID,
			URL:      seedURL,
			Path:     in.SeedSlug,
			Status:   store.PagePending,
		})
		if err != nil {
			return nil, fmt.Errorf("create seed page: %w", err)
		}
	}

	seedIndexed := seed.Status == store.PageIndexed
	if in.WaitForSeed && !seedIndexed {
		if err := e.indexPage(ctx, d, seed); err != nil {
			e.log.Warn("seed_index_failed", slog.String("docset_id", d.ID), slog.String("error", err.Error()))
		}
		refreshed, err := e.metadata.GetPage(ctx, seed.ID)
		if err == nil {
			seedIndexed = refreshed.Status == store.PageIndexed
		}
	}

	e.startBackgroundCrawl(d)

	current, err := e.metadata.GetDocset(ctx, d.ID)
	if err != nil {
		current = d
	}
	return &IndexResult{DocsetID: current.ID, Status: current.Status, SeedIndexed: seedIndexed}, nil
}

// joinURL joins a base URL with a seed slug the way the spec's seed page
// location is defined: base + "/" + slug, normalised of duplicate slashes.
func joinURL(baseURL, seedSlug string) string {
	trimmedBase := strings.TrimSuffix(baseURL, "/")
	slug := "/" + strings.TrimPrefix(seedSlug, "/")
	return trimmedBase + path.Clean(slug)
}

// indexPage runs the single-page state machine described in 4.9.2.
func (e *Engine) indexPage(ctx context.Context, d *store.Docset, p *store.Page) error {
	fetching := store.PageFetching
	now := time.Now()
	if err := e.metadata.UpdatePage(ctx, p.ID, store.PageUpdate{Status: &fetching, LastAttemptAt: &now}); err != nil {
		return fmt.Errorf("transition to fetching: %w", err)
	}

	var overrides *fetch.Overrides
	if p.ETag != "" || p.LastModified != "" {
		overrides = &fetch.Overrides{ETag: p.ETag, LastModified: p.LastModified}
	}
	result, err := e.fetcher.Fetch(ctx, p.URL, overrides)
	if err != nil {
		return e.failPage(ctx, p, err)
	}

	if result.FromCache && result.Status == 304 && p.ContentHash != "" {
		indexed := store.PageIndexed
		fetchedAt := time.Now()
		return e.metadata.UpdatePage(ctx, p.ID, store.PageUpdate{Status: &indexed, FetchedAt: &fetchedAt})
	}

	hash := ids.ContentHash(result.Content)
	if hash == p.ContentHash && p.ContentHash != "" {
		indexed := store.PageIndexed
		fetchedAt := time.Now()
		return e.metadata.UpdatePage(ctx, p.ID, store.PageUpdate{Status: &indexed, FetchedAt: &fetchedAt})
	}

	fetched := store.PageFetched
	fetchedAt := time.Now()
	if err := e.metadata.UpdatePage(ctx, p.ID, store.PageUpdate{
		Status: &fetched, ContentHash: &hash, ETag: &result.ETag, LastModified: &result.LastModified, FetchedAt: &fetchedAt,
	}); err != nil {
		return fmt.Errorf("persist fetched state: %w", err)
	}

	doc, err := extract.Extract(p.URL, result.Content, result.ContentType)
	if err != nil {
		return e.failPage(ctx, p, err)
	}

	indexing := store.PageIndexing
	title := doc.Title
	if err := e.metadata.UpdatePage(ctx, p.ID, store.PageUpdate{Status: &indexing, Title: &title}); err != nil {
		return fmt.Errorf("transition to indexing: %w", err)
	}

	frontier := e.frontierFor(d)
	if err := frontier.DiscoverLinks(ctx, p.URL, doc.Links, p.Depth); err != nil {
		e.log.Warn("discover_links_failed", slog.String("page_id", p.ID), slog.String("error", err.Error()))
	}

	priorChunks, err := e.metadata.GetChunksByPage(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("load prior chunks: %w", err)
	}
	var priorVectorIDs []string
	for _, c := range priorChunks {
		if c.EmbeddingID != "" {
			priorVectorIDs = append(priorVectorIDs, c.EmbeddingID)
		}
	}
	if len(priorVectorIDs) > 0 {
		if err := e.vectors.Delete(ctx, d.ID, priorVectorIDs); err != nil {
			e.log.Warn("vector_delete_failed", slog.String("page_id", p.ID), slog.String("error", err.Error()))
		}
	}
	if err := e.metadata.DeleteChunks(ctx, p.ID); err != nil {
		return fmt.Errorf("delete prior chunks: %w", err)
	}

	chunks := e.chunkDocument(doc)
	if len(chunks) == 0 {
		indexed := store.PageIndexed
		indexedAt := time.Now()
		return e.metadata.UpdatePage(ctx, p.ID, store.PageUpdate{Status: &indexed, IndexedAt: &indexedAt})
	}

	if err := e.embedAndStoreChunks(ctx, d, p, chunks); err != nil {
		return e.failPage(ctx, p, err)
	}

	indexed := store.PageIndexed
	indexedAt := time.Now()
	return e.metadata.UpdatePage(ctx, p.ID, store.PageUpdate{Status: &indexed, IndexedAt: &indexedAt})
}

// failPage classifies err per 4.9.2's error-classification rule (401/403/404
// is an expected skip; everything else is a retryable error) and persists
// the terminal state.
func (e *Engine) failPage(ctx context.Context, p *store.Page, cause error) error {
	msg := cause.Error()
	var status store.PageStatus
	if engerr.KindOf(cause) == engerr.KindHTTPExpected {
		status = store.PageSkipped
	} else {
		status = store.PageError
	}

	update := store.PageUpdate{Status: &status, ErrorMessage: &msg}
	if status == store.PageError {
		retryCount := p.RetryCount + 1
		update.RetryCount = &retryCount
	}
	if err := e.metadata.UpdatePage(ctx, p.ID, update); err != nil {
		return fmt.Errorf("persist page failure: %w", err)
	}
	return cause
}
