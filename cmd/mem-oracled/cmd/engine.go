package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/JagjeevanAK/mem-oracle/internal/cache"
	"github.com/JagjeevanAK/mem-oracle/internal/config"
	"github.com/JagjeevanAK/mem-oracle/internal/embedding"
	"github.com/JagjeevanAK/mem-oracle/internal/engine"
	"github.com/JagjeevanAK/mem-oracle/internal/fetch"
	"github.com/JagjeevanAK/mem-oracle/internal/store"
)

// resolvedDataDir returns the --data-dir flag value, or the config
// package's own default when the flag was left empty.
func resolvedDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	return config.DefaultDataDir()
}

// buildEngine loads configuration from the data directory and wires a
// fully composed Engine over real stores, matching how mem-oracled's
// start/daemon commands and its test helpers wire the Orchestrator.
func buildEngine() (*engine.Engine, *config.Config, func(), error) {
	dir := resolvedDataDir()

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	metadata, err := store.NewSQLiteStore(filepath.Join(dir, "db", "metadata.db"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open metadata store: %w", err)
	}

	vectors := store.NewFlatVectorStore(filepath.Join(dir, "vectors"))
	cacheStore := cache.New(filepath.Join(dir, "cache"))
	fetcher := fetch.New(cacheStore)

	embedder, err := embedding.New(cfg.Embedding, cfg.Embedding.BatchSize*4)
	if err != nil {
		_ = metadata.Close()
		return nil, nil, nil, fmt.Errorf("build embedder: %w", err)
	}

	e := engine.New(metadata, vectors, cacheStore, fetcher, embedder, cfg, slog.Default())

	cleanup := func() { _ = metadata.Close() }
	return e, cfg, cleanup, nil
}
