package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JagjeevanAK/mem-oracle/internal/store"
)

// RecoverFromCrash implements 4.9.4: on process start, for every docset,
// requeue pages stuck in an in-progress status, requeue error pages
// still under the retry budget, and resume background crawl for any
// docset left with pending work.
func (e *Engine) RecoverFromCrash(ctx context.Context) error {
	docsets, err := e.metadata.ListDocsets(ctx)
	if err != nil {
		return fmt.Errorf("list docsets: %w", err)
	}

	for _, d := range docsets {
		if err := e.recoverDocset(ctx, d); err != nil {
			e.log.Warn("docset_recovery_failed", slog.String("docset_id", d.ID), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (e *Engine) recoverDocset(ctx context.Context, d *store.Docset) error {
	pages, err := e.metadata.ListPages(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("list pages: %w", err)
	}

	now := time.Now()
	hasPending := false

	for _, p := range pages {
		switch p.Status {
		case store.PageFetching, store.PageFetched, store.PageIndexing:
			if p.LastAttemptAt.IsZero() || now.Sub(p.LastAttemptAt) >= StuckThreshold {
				pending := store.PagePending
				retryCount := p.RetryCount + 1
				if err := e.metadata.UpdatePage(ctx, p.ID, store.PageUpdate{Status: &pending, RetryCount: &retryCount}); err != nil {
					return fmt.Errorf("requeue stuck page %s: %w", p.ID, err)
				}
				hasPending = true
				continue
			}
		case store.PageError:
			if p.RetryCount < MaxRetries {
				pending := store.PagePending
				if err := e.metadata.UpdatePage(ctx, p.ID, store.PageUpdate{Status: &pending}); err != nil {
					return fmt.Errorf("requeue error page %s: %w", p.ID, err)
				}
				hasPending = true
				continue
			}
		case store.PagePending:
			hasPending = true
		}
	}

	if hasPending {
		if err := e.metadata.UpdateDocsetStatus(ctx, d.ID, store.DocsetIndexing); err != nil {
			return fmt.Errorf("set docset indexing: %w", err)
		}
		e.startBackgroundCrawl(d)
	}
	return nil
}

// CheckConsistency implements the D.2 cross-store consistency sweep: every
// chunk's embeddingId is checked against its docset's vector namespace, and
// every vector ID in that namespace is checked against the chunk table, so
// a crash between chunk creation and vector upsert (or vice versa) surfaces
// as an actionable diagnostic rather than a silent gap in retrieval.
func (e *Engine) CheckConsistency(ctx context.Context, docsetID string) (*ConsistencyReport, error) {
	chunks, err := e.metadata.ListChunksByDocset(ctx, docsetID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	chunkByVectorID := make(map[string]*store.Chunk, len(chunks))
	for _, c := range chunks {
		if c.EmbeddingID != "" {
			chunkByVectorID[c.EmbeddingID] = c
		}
	}

	vectorIDs, err := e.vectors.ListIDs(ctx, docsetID)
	if err != nil {
		return nil, fmt.Errorf("list vector ids: %w", err)
	}
	vectorIDSet := make(map[string]bool, len(vectorIDs))
	for _, id := range vectorIDs {
		vectorIDSet[id] = true
	}

	report := &ConsistencyReport{DocsetID: docsetID}
	for _, id := range vectorIDs {
		if _, ok := chunkByVectorID[id]; !ok {
			report.OrphanedVectorIDs = append(report.OrphanedVectorIDs, id)
		}
	}
	for _, c := range chunks {
		if c.EmbeddingID == "" || !vectorIDSet[c.EmbeddingID] {
			report.ChunksMissingVector = append(report.ChunksMissingVector, ChunkConsistencyIssue{ChunkID: c.ID, PageID: c.PageID})
		}
	}

	return report, nil
}
