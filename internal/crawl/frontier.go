// Package crawl implements the link frontier: the per-docset queue of
// discovered-but-not-yet-fetched URLs that the orchestrator's crawl
// worker pool drains.
package crawl

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/JagjeevanAK/mem-oracle/internal/store"
)

// DefaultMaxPages is the page cap applied when a docset doesn't specify
// one.
const DefaultMaxPages = 1000

// Item is a single pending unit of crawl work: a URL discovered at a
// given link depth from whichever page referenced it.
type Item struct {
	URL   string
	Depth int
	From  string

	// order is the insertion sequence number, used only to break ties
	// between items of equal depth (FIFO within a depth level).
	order int64
}

// Frontier is the ordered queue plus visited set for a single docset.
// One Frontier per docset; the orchestrator keeps a map of these keyed
// by docset ID.
type Frontier struct {
	mu          sync.Mutex
	queue       itemHeap
	visited     map[string]bool
	nextOrder   int64
	maxPages    int
	pageCount   int
	docsetID    string
	baseHost    string
	allowedPfx  []string
	metadata    store.MetadataStore
	log         *slog.Logger
}

// New builds a Frontier for a docset. baseHost and allowedPrefixes come
// from the docset's base URL and AllowedPaths; maxPages <= 0 falls back
// to DefaultMaxPages.
func New(metadata store.MetadataStore, docset *store.Docset, maxPages int, log *slog.Logger) *Frontier {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if log == nil {
		log = slog.Default()
	}
	host := ""
	if u, err := url.Parse(docset.BaseURL); err == nil {
		host = u.Host
	}
	return &Frontier{
		queue:      itemHeap{},
		visited:    make(map[string]bool),
		maxPages:   maxPages,
		docsetID:   docset.ID,
		baseHost:   host,
		allowedPfx: docset.AllowedPaths,
		metadata:   metadata,
		log:        log.With(slog.String("docset_id", docset.ID)),
	}
}

// Len reports the number of items currently queued.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.Len()
}

// DiscoverLinks filters candidates against the visited set, host/prefix
// confinement, and existing Page records, then enqueues the survivors
// (and creates their pending Page rows) up to the docset's page cap.
// fromURL is the page the candidates were discovered on; depth is
// fromURL's own depth, so enqueued items carry depth+1.
func (f *Frontier) DiscoverLinks(ctx context.Context, fromURL string, candidates []string, depth int) error {
	for _, candidate := range candidates {
		if err := f.discoverOne(ctx, fromURL, candidate, depth); err != nil {
			f.log.Warn("discover_link_failed", slog.String("url", candidate), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (f *Frontier) discoverOne(ctx context.Context, fromURL, candidate string, depth int) error {
	f.mu.Lock()
	if f.visited[candidate] {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	parsed, err := url.Parse(candidate)
	if err != nil {
		return fmt.Errorf("parse candidate: %w", err)
	}
	if parsed.Host != f.baseHost {
		f.markVisited(candidate)
		return nil
	}
	if !hasAllowedPrefix(parsed.Path, f.allowedPfx) {
		f.markVisited(candidate)
		return nil
	}

	existing, err := f.metadata.GetPageByURL(ctx, f.docsetID, candidate)
	if err != nil {
		if _, ok := err.(store.ErrNotFound); !ok {
			return fmt.Errorf("lookup existing page: %w", err)
		}
	}
	if existing != nil {
		f.markVisited(candidate)
		return nil
	}

	f.mu.Lock()
	if f.pageCount >= f.maxPages {
		f.mu.Unlock()
		return nil
	}
	f.pageCount++
	f.mu.Unlock()

	if _, err := f.metadata.CreatePage(ctx, &store.Page{
		DocsetID: f.docsetID,
		URL:      candidate,
		Path:     parsed.Path,
		Status:   store.PagePending,
		Depth:    depth + 1,
	}); err != nil {
		return fmt.Errorf("create pending page: %w", err)
	}

	f.enqueue(Item{URL: candidate, Depth: depth + 1, From: fromURL})
	f.markVisited(candidate)
	return nil
}

func (f *Frontier) markVisited(rawURL string) {
	f.mu.Lock()
	f.visited[rawURL] = true
	f.mu.Unlock()
}

func (f *Frontier) enqueue(it Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it.order = f.nextOrder
	f.nextOrder++
	heap.Push(&f.queue, it)
}

// GetNext pops the item with the smallest depth, breaking ties by
// insertion order. Returns false if the frontier is empty.
func (f *Frontier) GetNext() (Item, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queue.Len() == 0 {
		return Item{}, false
	}
	return heap.Pop(&f.queue).(Item), true
}

// LoadPendingPages hydrates the queue from metadata-store pages still
// in pending state, used to resume a frontier after a restart without
// replaying discovery from scratch.
func (f *Frontier) LoadPendingPages(ctx context.Context) error {
	pages, err := f.metadata.ListPages(ctx, f.docsetID)
	if err != nil {
		return fmt.Errorf("list pages: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range pages {
		if p.Status != store.PagePending {
			continue
		}
		if f.visited[p.URL] {
			continue
		}
		it := Item{URL: p.URL, Depth: p.Depth, order: f.nextOrder}
		f.nextOrder++
		heap.Push(&f.queue, it)
		f.visited[p.URL] = true
	}
	return nil
}

// hasAllowedPrefix reports whether path starts with at least one of the
// allowed prefixes. An empty prefix list allows nothing, matching the
// "confined to seed directory" default established when a docset is
// created.
func hasAllowedPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
