package engine

import (
	"context"
	"fmt"

	"github.com/JagjeevanAK/mem-oracle/internal/store"
)

// ListDocsets returns every known docset, for the HTTP worker's /status
// and JSON-RPC index_status surfaces.
func (e *Engine) ListDocsets(ctx context.Context) ([]*store.Docset, error) {
	return e.metadata.ListDocsets(ctx)
}

// GetDocset looks up a single docset by ID.
func (e *Engine) GetDocset(ctx context.Context, id string) (*store.Docset, error) {
	return e.metadata.GetDocset(ctx, id)
}

// GetIndexStatus returns the metadata store's per-docset page/chunk
// aggregation, including the stuckPages diagnostic (D.1), plus the vector
// store's size for that docset's namespace (D.3) — the same pairing the
// /status endpoint reports.
func (e *Engine) GetIndexStatus(ctx context.Context, docsetID string) (*store.IndexStatus, error) {
	status, err := e.metadata.GetIndexStatus(ctx, docsetID)
	if err != nil {
		return nil, err
	}
	status.VectorStats = e.vectors.Stats(docsetID)
	return status, nil
}

// ListPages returns every page known for a docset, for the
// `GET /docset/{id}/pages` endpoint's caller to filter/paginate.
func (e *Engine) ListPages(ctx context.Context, docsetID string) ([]*store.Page, error) {
	return e.metadata.ListPages(ctx, docsetID)
}

// DeleteDocset stops any running background crawl for the docset, then
// removes it (and its pages/chunks, cascading) from the metadata store
// and clears its vector namespace.
func (e *Engine) DeleteDocset(ctx context.Context, id string) error {
	e.stopBackgroundCrawl(id)

	if err := e.vectors.Clear(ctx, id); err != nil {
		return fmt.Errorf("clear vector namespace: %w", err)
	}
	if err := e.metadata.DeleteDocset(ctx, id); err != nil {
		return fmt.Errorf("delete docset: %w", err)
	}

	e.mu.Lock()
	delete(e.frontiers, id)
	delete(e.runners, id)
	e.mu.Unlock()
	return nil
}
