package engine

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JagjeevanAK/mem-oracle/internal/cache"
	"github.com/JagjeevanAK/mem-oracle/internal/config"
	"github.com/JagjeevanAK/mem-oracle/internal/embedding"
	"github.com/JagjeevanAK/mem-oracle/internal/fetch"
	"github.com/JagjeevanAK/mem-oracle/internal/store"
)

// newTestEngine wires an Engine over a real in-memory metadata store, a
// real flat vector store rooted in a temp dir, a real fetcher pointed at
// a throwaway cache dir, and the deterministic local embedder, matching
// how cmd/mem-oracled composes these collaborators in production.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	metadata, err := store.NewSQLiteStore("")
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = metadata.Close() })

	vectors := store.NewFlatVectorStore(t.TempDir())

	cacheStore := cache.New(t.TempDir())
	fetcher := fetch.New(cacheStore)

	embedder := embedding.NewLocalEmbedder()

	cfg := config.Default()
	cfg.Crawler.MaxPages = 50
	cfg.Crawler.Concurrency = 2
	cfg.Crawler.RequestDelay = 1

	log := slog.New(slog.NewTextHandler(newDiscard(), nil))

	return New(metadata, vectors, cacheStore, fetcher, embedder, cfg, log)
}

func newDiscard() *discardWriter { return &discardWriter{} }

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// newTestDocsetServer serves a tiny documentation site: a seed page
// linking to one child page, both same-host and under the allowed path.
func newTestDocsetServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/docs/intro":
			w.Write([]byte(`<html><head><title>Intro</title></head><body>
				<h1>Introduction</h1>
				<p>This is the introduction page for the documentation site, explaining the basics of the product in enough words to survive chunking.</p>
				<a href="/docs/guide">Guide</a>
			</body></html>`))
		case "/docs/guide":
			w.Write([]byte(`<html><head><title>Guide</title></head><body>
				<h1>Guide</h1>
				<p>This is the guide page, a second document reachable from the introduction page via a same-host link under the allowed path prefix.</p>
			</body></html>`))
		default:
			http.NotFound(w, r)
		}
	})
	return httptest.NewServer(mux)
}
