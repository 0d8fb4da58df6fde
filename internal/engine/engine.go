package engine

import (
	"log/slog"
	"sync"

	"github.com/JagjeevanAK/mem-oracle/internal/cache"
	"github.com/JagjeevanAK/mem-oracle/internal/chunk"
	"github.com/JagjeevanAK/mem-oracle/internal/config"
	"github.com/JagjeevanAK/mem-oracle/internal/crawl"
	"github.com/JagjeevanAK/mem-oracle/internal/embedding"
	"github.com/JagjeevanAK/mem-oracle/internal/fetch"
	"github.com/JagjeevanAK/mem-oracle/internal/store"
)

// StuckThreshold is the age past which a page stuck in an in-progress
// status is assumed abandoned by a dead worker and requeued. Shared with
// store.StuckPageThreshold so GetIndexStatus's diagnostic and crash
// recovery's requeue agree on what "stuck" means.
const StuckThreshold = store.StuckPageThreshold

// MaxRetries bounds how many times an errored page is requeued before
// crash recovery stops retrying it automatically.
const MaxRetries = 3

// Engine is the Orchestrator (C9): it owns one crawl runner per actively
// crawling docset and drives the indexing state machine and the hybrid
// query path over the shared stores.
type Engine struct {
	metadata store.MetadataStore
	vectors  store.VectorStore
	cache    *cache.Store
	fetcher  *fetch.Fetcher
	embedder embedding.Embedder
	chunker  *chunk.Chunker
	cfg      *config.Config
	log      *slog.Logger

	mu        sync.Mutex
	frontiers map[string]*crawl.Frontier
	runners   map[string]*runner
}

// New wires an Engine from its already-constructed collaborators.
func New(
	metadata store.MetadataStore,
	vectors store.VectorStore,
	cacheStore *cache.Store,
	fetcher *fetch.Fetcher,
	embedder embedding.Embedder,
	cfg *config.Config,
	log *slog.Logger,
) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		metadata:  metadata,
		vectors:   vectors,
		cache:     cacheStore,
		fetcher:   fetcher,
		embedder:  embedder,
		chunker:   chunk.NewChunker(chunk.DefaultOptions()),
		cfg:       cfg,
		log:       log,
		frontiers: make(map[string]*crawl.Frontier),
		runners:   make(map[string]*runner),
	}
}

// frontierFor returns the Frontier for docsetID, constructing it from the
// docset record on first use.
func (e *Engine) frontierFor(d *store.Docset) *crawl.Frontier {
	e.mu.Lock()
	defer e.mu.Unlock()
	if f, ok := e.frontiers[d.ID]; ok {
		return f
	}
	f := crawl.New(e.metadata, d, e.cfg.Crawler.MaxPages, e.log)
	e.frontiers[d.ID] = f
	return f
}
