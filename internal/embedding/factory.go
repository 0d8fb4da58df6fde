package embedding

import (
	"fmt"

	"github.com/JagjeevanAK/mem-oracle/internal/config"
)

// New builds the configured Embedder, wrapped with an LRU cache, from an
// embedding config section. The "local" provider requires no API key;
// every remote provider requires one.
func New(cfg config.EmbeddingConfig, cacheSize int) (Embedder, error) {
	var inner Embedder

	switch cfg.Provider {
	case "", "local":
		inner = NewLocalEmbedder()
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedding.apiKey is required for provider %q", cfg.Provider)
		}
		inner = NewOpenAIEmbedder(cfg.Model, cfg.APIBase, cfg.APIKey, cfg.BatchSize)
	case "voyage":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedding.apiKey is required for provider %q", cfg.Provider)
		}
		inner = NewVoyageEmbedder(cfg.Model, cfg.APIBase, cfg.APIKey, cfg.BatchSize)
	case "cohere":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedding.apiKey is required for provider %q", cfg.Provider)
		}
		inner = NewCohereEmbedder(cfg.Model, cfg.APIBase, cfg.APIKey, cfg.BatchSize)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	return NewCachedEmbedder(inner, cacheSize), nil
}
