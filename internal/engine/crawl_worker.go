package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/JagjeevanAK/mem-oracle/internal/store"
)

// runner is the per-docset background crawl state described in 4.9.3: a
// single logical runner that spawns a bounded pool of workers draining
// the docset's link frontier. limiter is the shared nextAllowedFetchAt
// gate: a single-token bucket refilling at 1/requestDelay, so host QPS
// never exceeds that rate regardless of worker count.
type runner struct {
	docsetID string

	inFlight      int32
	limiter       *rate.Limiter
	stopRequested atomic.Bool
	wg            sync.WaitGroup
}

// startBackgroundCrawl is a no-op if a runner is already active for d;
// otherwise it spawns Crawler.Concurrency workers and returns
// immediately, the crawl continuing in the background.
func (e *Engine) startBackgroundCrawl(d *store.Docset) {
	e.mu.Lock()
	if existing, ok := e.runners[d.ID]; ok && !existing.stopRequested.Load() {
		e.mu.Unlock()
		return
	}

	requestDelay := time.Duration(e.cfg.Crawler.RequestDelay) * time.Millisecond
	if requestDelay <= 0 {
		requestDelay = time.Millisecond
	}
	r := &runner{
		docsetID: d.ID,
		limiter:  rate.NewLimiter(rate.Every(requestDelay), 1),
	}
	e.runners[d.ID] = r
	e.mu.Unlock()

	concurrency := e.cfg.Crawler.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	r.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer r.wg.Done()
			e.crawlWorker(context.Background(), d, r)
		}()
	}

	go func() {
		r.wg.Wait()
		if !r.stopRequested.Load() {
			_ = e.metadata.UpdateDocsetStatus(context.Background(), d.ID, store.DocsetReady)
		}
	}()
}

// stopBackgroundCrawl requests the docset's runner to stop claiming new
// work; outstanding fetches are allowed to complete.
func (e *Engine) stopBackgroundCrawl(docsetID string) {
	e.mu.Lock()
	r, ok := e.runners[docsetID]
	e.mu.Unlock()
	if ok {
		r.stopRequested.Store(true)
	}
}

// isCrawling reports whether a runner is currently active for docsetID.
func (e *Engine) isCrawling(docsetID string) bool {
	e.mu.Lock()
	r, ok := e.runners[docsetID]
	e.mu.Unlock()
	return ok && !r.stopRequested.Load()
}

// crawlWorker is one of a runner's workers, looping per 4.9.3 until
// stopRequested or the frontier (plus its metadata-backed hydration) is
// exhausted.
func (e *Engine) crawlWorker(ctx context.Context, d *store.Docset, r *runner) {
	concurrency := int32(e.cfg.Crawler.Concurrency)
	if concurrency < 1 {
		concurrency = 1
	}

	for {
		if r.stopRequested.Load() {
			return
		}
		if atomic.LoadInt32(&r.inFlight) >= concurrency {
			time.Sleep(20 * time.Millisecond)
			continue
		}

		page, err := e.metadata.GetNextPendingPage(ctx, d.ID)
		if err != nil {
			if _, ok := err.(store.ErrNotFound); ok {
				frontier := e.frontierFor(d)
				// Metadata reports nothing pending, so every item still
				// queued in the frontier has already been claimed; drop
				// them before rehydrating so the emptiness check below
				// only sees pages that are genuinely pending.
				for {
					if _, ok := frontier.GetNext(); !ok {
						break
					}
				}
				if loadErr := frontier.LoadPendingPages(ctx); loadErr != nil {
					e.log.Warn("load_pending_pages_failed", slog.String("docset_id", d.ID), slog.String("error", loadErr.Error()))
				}
				if frontier.Len() == 0 {
					return
				}
				continue
			}
			e.log.Warn("get_next_pending_page_failed", slog.String("docset_id", d.ID), slog.String("error", err.Error()))
			return
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return
		}

		atomic.AddInt32(&r.inFlight, 1)
		func() {
			defer atomic.AddInt32(&r.inFlight, -1)
			if err := e.indexPage(ctx, d, page); err != nil {
				e.log.Debug("index_page_failed", slog.String("page_id", page.ID), slog.String("error", err.Error()))
			}
		}()
	}
}
