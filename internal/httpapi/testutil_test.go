package httpapi

import (
	"log/slog"
	"testing"

	"github.com/JagjeevanAK/mem-oracle/internal/cache"
	"github.com/JagjeevanAK/mem-oracle/internal/config"
	"github.com/JagjeevanAK/mem-oracle/internal/embedding"
	"github.com/JagjeevanAK/mem-oracle/internal/engine"
	"github.com/JagjeevanAK/mem-oracle/internal/fetch"
	"github.com/JagjeevanAK/mem-oracle/internal/store"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// newTestServer wires a Server over a real Engine, matching how
// cmd/mem-oracled composes the worker in production.
func newTestServer(t *testing.T) *Server {
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
	cfg.Worker.Host = "127.0.0.1"
	cfg.Worker.Port = 0
	cfg.Crawler.MaxPages = 10
	cfg.Crawler.Concurrency = 1
	cfg.Crawler.RequestDelay = 1

	log := slog.New(slog.NewTextHandler(discardWriter{}, nil))
	e := engine.New(metadata, vectors, cacheStore, fetcher, embedder, cfg, log)
	return New(e, cfg, log)
}
