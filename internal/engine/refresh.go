package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/JagjeevanAK/mem-oracle/internal/store"
)

// DefaultRefreshMaxAge is the age past which an indexed page is eligible
// for refresh when the caller doesn't override it, per spec §6.
const DefaultRefreshMaxAge = 24 * time.Hour

// Refresh implements the incremental-refresh sweep described in spec §6's
// /refresh and /refresh-all contract: indexed pages older than MaxAge are
// requeued to pending so the next crawl pass re-fetches them. In
// incremental mode (FullReindex=false) contentHash/etag/lastModified are
// preserved so indexPage's short-circuits (§4.9.2 steps 3-4) can still
// skip re-embedding byte-identical content; FullReindex clears them so
// every requeued page is unconditionally re-fetched and re-embedded.
func (e *Engine) Refresh(ctx context.Context, in RefreshInput) ([]RefreshPlan, error) {
	var docsets []*store.Docset
	if in.DocsetID != "" {
		d, err := e.metadata.GetDocset(ctx, in.DocsetID)
		if err != nil {
			return nil, fmt.Errorf("get docset: %w", err)
		}
		docsets = []*store.Docset{d}
	} else {
		var err error
		docsets, err = e.metadata.ListDocsets(ctx)
		if err != nil {
			return nil, fmt.Errorf("list docsets: %w", err)
		}
	}

	maxAge := in.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultRefreshMaxAge
	}

	plans := make([]RefreshPlan, 0, len(docsets))
	for _, d := range docsets {
		plan, err := e.refreshDocset(ctx, d, in.Force, maxAge, in.FullReindex)
		if err != nil {
			return nil, fmt.Errorf("refresh docset %s: %w", d.ID, err)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (e *Engine) refreshDocset(ctx context.Context, d *store.Docset, force bool, maxAge time.Duration, fullReindex bool) (RefreshPlan, error) {
	pages, err := e.metadata.ListPages(ctx, d.ID)
	if err != nil {
		return RefreshPlan{}, fmt.Errorf("list pages: %w", err)
	}

	plan := RefreshPlan{DocsetID: d.ID}
	requeued := false

	for _, p := range pages {
		if p.Status != store.PageIndexed {
			continue
		}
		if !force && time.Since(p.IndexedAt) < maxAge {
			continue
		}

		pending := store.PagePending
		update := store.PageUpdate{Status: &pending}
		if fullReindex {
			empty := ""
			update.ContentHash = &empty
			update.ETag = &empty
			update.LastModified = &empty
			plan.ClearedHashes++
		} else {
			plan.PreservedHashes++
		}
		if err := e.metadata.UpdatePage(ctx, p.ID, update); err != nil {
			return RefreshPlan{}, fmt.Errorf("requeue page %s: %w", p.ID, err)
		}
		plan.PagesRequeued++
		requeued = true
	}

	if requeued {
		if err := e.metadata.UpdateDocsetStatus(ctx, d.ID, store.DocsetIndexing); err != nil {
			return RefreshPlan{}, fmt.Errorf("set docset indexing: %w", err)
		}
		e.startBackgroundCrawl(d)
	}
	return plan, nil
}
