package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config is the complete mem-oracle configuration.
type Config struct {
	DataDir   string          `json:"dataDir"`
	Embedding EmbeddingConfig `json:"embedding"`
	Vector    VectorConfig    `json:"vectorStore"`
	Worker    WorkerConfig    `json:"worker"`
	Crawler   CrawlerConfig   `json:"crawler"`
	Hybrid    HybridConfig    `json:"hybrid"`
	Retrieval RetrievalConfig `json:"retrieval"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string `json:"provider"` // local, openai, voyage, cohere
	Model     string `json:"model,omitempty"`
	APIKey    string `json:"apiKey,omitempty"`
	APIBase   string `json:"apiBase,omitempty"`
	BatchSize int    `json:"batchSize,omitempty"`
}

// VectorConfig selects and configures the vector store backend.
type VectorConfig struct {
	Provider         string `json:"provider"` // local, qdrant, pinecone
	URL              string `json:"url,omitempty"`
	APIKey           string `json:"apiKey,omitempty"`
	CollectionPrefix string `json:"collectionPrefix,omitempty"`
}

// WorkerConfig configures the HTTP worker listener.
type WorkerConfig struct {
	Port int    `json:"port"`
	Host string `json:"host"`
}

// CrawlerConfig configures crawl scheduling and politeness.
type CrawlerConfig struct {
	Concurrency  int    `json:"concurrency"`
	RequestDelay int    `json:"requestDelay"` // milliseconds
	Timeout      int    `json:"timeout"`      // milliseconds
	MaxPages     int    `json:"maxPages"`
	UserAgent    string `json:"userAgent"`
}

// HybridConfig configures dense+keyword score fusion.
type HybridConfig struct {
	Enabled         bool    `json:"enabled"`
	Alpha           float64 `json:"alpha"`
	VectorTopK      int     `json:"vectorTopK,omitempty"`
	KeywordTopK     int     `json:"keywordTopK,omitempty"`
	MinKeywordScore float64 `json:"minKeywordScore,omitempty"`
}

// RetrievalConfig configures result diversity and budget shaping.
type RetrievalConfig struct {
	MaxChunksPerPage int  `json:"maxChunksPerPage"`
	MaxTotalChars    int  `json:"maxTotalChars"`
	FormatSnippets   bool `json:"formatSnippets"`
	SnippetMaxChars  int  `json:"snippetMaxChars"`
}

// recognisedKeys is the closed set of top-level keys a config.json may set.
// Anything else is rejected: a typo in a key name should fail loudly rather
// than silently be ignored.
var recognisedKeys = map[string]bool{
	"dataDir":     true,
	"embedding":   true,
	"vectorStore": true,
	"worker":      true,
	"crawler":     true,
	"hybrid":      true,
	"retrieval":   true,
}

// Default returns the configuration with sensible defaults applied.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Embedding: EmbeddingConfig{
			Provider:  "local",
			BatchSize: 32,
		},
		Vector: VectorConfig{
			Provider: "local",
		},
		Worker: WorkerConfig{
			Port: 7432,
			Host: "127.0.0.1",
		},
		Crawler: CrawlerConfig{
			Concurrency:  4,
			RequestDelay: 250,
			Timeout:      30000,
			MaxPages:     1000,
			UserAgent:    "mem-oracle/1.0 (+https://github.com/JagjeevanAK/mem-oracle)",
		},
		Hybrid: HybridConfig{
			Enabled:         true,
			Alpha:           0.5,
			VectorTopK:      50,
			KeywordTopK:     50,
			MinKeywordScore: 0,
		},
		Retrieval: RetrievalConfig{
			MaxChunksPerPage: 3,
			MaxTotalChars:    8000,
			FormatSnippets:   true,
			SnippetMaxChars:  2000,
		},
	}
}

// DefaultDataDir returns $HOME/.mem-oracle, falling back to a temp directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".mem-oracle")
	}
	return filepath.Join(home, ".mem-oracle")
}

// Load builds a Config in order of increasing precedence:
//  1. Hardcoded defaults.
//  2. A config.json file in dir, if present.
//  3. MEMORACLE_* environment variable overrides.
//  4. Validation.
func Load(dir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(dir, "config.json")
	if fileExists(path) {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// mergeFile parses a config.json file and merges its values over cfg,
// rejecting any top-level key outside the recognised set.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	for key := range raw {
		if !recognisedKeys[key] {
			return fmt.Errorf("config file %s: unrecognised key %q", path, key)
		}
	}

	var parsed Config
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if _, ok := raw["dataDir"]; ok {
		c.DataDir = parsed.DataDir
	}
	if _, ok := raw["embedding"]; ok {
		c.Embedding = mergeEmbedding(c.Embedding, parsed.Embedding)
	}
	if _, ok := raw["vectorStore"]; ok {
		c.Vector = mergeVector(c.Vector, parsed.Vector)
	}
	if _, ok := raw["worker"]; ok {
		c.Worker = parsed.Worker
	}
	if _, ok := raw["crawler"]; ok {
		c.Crawler = parsed.Crawler
	}
	if _, ok := raw["hybrid"]; ok {
		c.Hybrid = parsed.Hybrid
	}
	if _, ok := raw["retrieval"]; ok {
		c.Retrieval = parsed.Retrieval
	}

	return nil
}

func mergeEmbedding(base, override EmbeddingConfig) EmbeddingConfig {
	if override.Provider != "" {
		base.Provider = override.Provider
	}
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.APIKey != "" {
		base.APIKey = override.APIKey
	}
	if override.APIBase != "" {
		base.APIBase = override.APIBase
	}
	if override.BatchSize != 0 {
		base.BatchSize = override.BatchSize
	}
	return base
}

func mergeVector(base, override VectorConfig) VectorConfig {
	if override.Provider != "" {
		base.Provider = override.Provider
	}
	if override.URL != "" {
		base.URL = override.URL
	}
	if override.APIKey != "" {
		base.APIKey = override.APIKey
	}
	if override.CollectionPrefix != "" {
		base.CollectionPrefix = override.CollectionPrefix
	}
	return base
}

// applyEnvOverrides applies MEMORACLE_* environment variable overrides,
// the highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MEMORACLE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("MEMORACLE_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("MEMORACLE_EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("MEMORACLE_EMBEDDING_API_KEY"); v != "" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv("MEMORACLE_EMBEDDING_API_BASE"); v != "" {
		c.Embedding.APIBase = v
	}
	if v := os.Getenv("MEMORACLE_VECTOR_PROVIDER"); v != "" {
		c.Vector.Provider = v
	}
	if v := os.Getenv("MEMORACLE_VECTOR_URL"); v != "" {
		c.Vector.URL = v
	}
	if v := os.Getenv("MEMORACLE_VECTOR_API_KEY"); v != "" {
		c.Vector.APIKey = v
	}
	if v := os.Getenv("MEMORACLE_WORKER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Worker.Port = n
		}
	}
	if v := os.Getenv("MEMORACLE_WORKER_HOST"); v != "" {
		c.Worker.Host = v
	}
	if v := os.Getenv("MEMORACLE_CRAWLER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Crawler.Concurrency = n
		}
	}
	if v := os.Getenv("MEMORACLE_CRAWLER_USER_AGENT"); v != "" {
		c.Crawler.UserAgent = v
	}
	if v := os.Getenv("MEMORACLE_HYBRID_ENABLED"); v != "" {
		c.Hybrid.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("MEMORACLE_HYBRID_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Hybrid.Alpha = f
		}
	}
}

// Validate checks every numeric range and enum named in the configuration
// surface, returning the first violation found.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("dataDir must not be empty")
	}

	validEmbedProviders := map[string]bool{"local": true, "openai": true, "voyage": true, "cohere": true}
	if !validEmbedProviders[c.Embedding.Provider] {
		return fmt.Errorf("embedding.provider must be one of local, openai, voyage, cohere, got %q", c.Embedding.Provider)
	}
	if c.Embedding.BatchSize != 0 && (c.Embedding.BatchSize < 1 || c.Embedding.BatchSize > 1000) {
		return fmt.Errorf("embedding.batchSize must be between 1 and 1000, got %d", c.Embedding.BatchSize)
	}
	if c.Embedding.APIBase != "" {
		if !strings.HasPrefix(c.Embedding.APIBase, "http://") && !strings.HasPrefix(c.Embedding.APIBase, "https://") {
			return fmt.Errorf("embedding.apiBase must be a URL, got %q", c.Embedding.APIBase)
		}
	}

	validVectorProviders := map[string]bool{"local": true, "qdrant": true, "pinecone": true}
	if !validVectorProviders[c.Vector.Provider] {
		return fmt.Errorf("vectorStore.provider must be one of local, qdrant, pinecone, got %q", c.Vector.Provider)
	}

	if c.Crawler.Concurrency < 1 || c.Crawler.Concurrency > 50 {
		return fmt.Errorf("crawler.concurrency must be between 1 and 50, got %d", c.Crawler.Concurrency)
	}
	if c.Crawler.RequestDelay < 0 || c.Crawler.RequestDelay > 60000 {
		return fmt.Errorf("crawler.requestDelay must be between 0 and 60000ms, got %d", c.Crawler.RequestDelay)
	}
	if c.Crawler.Timeout < 1000 || c.Crawler.Timeout > 120000 {
		return fmt.Errorf("crawler.timeout must be between 1000 and 120000ms, got %d", c.Crawler.Timeout)
	}
	if c.Crawler.MaxPages < 1 || c.Crawler.MaxPages > 100000 {
		return fmt.Errorf("crawler.maxPages must be between 1 and 100000, got %d", c.Crawler.MaxPages)
	}
	if c.Crawler.UserAgent == "" {
		return fmt.Errorf("crawler.userAgent must not be empty")
	}

	if c.Hybrid.Alpha < 0 || c.Hybrid.Alpha > 1 {
		return fmt.Errorf("hybrid.alpha must be between 0 and 1, got %f", c.Hybrid.Alpha)
	}
	if c.Hybrid.VectorTopK != 0 && (c.Hybrid.VectorTopK < 1 || c.Hybrid.VectorTopK > 1000) {
		return fmt.Errorf("hybrid.vectorTopK must be between 1 and 1000, got %d", c.Hybrid.VectorTopK)
	}
	if c.Hybrid.KeywordTopK != 0 && (c.Hybrid.KeywordTopK < 1 || c.Hybrid.KeywordTopK > 1000) {
		return fmt.Errorf("hybrid.keywordTopK must be between 1 and 1000, got %d", c.Hybrid.KeywordTopK)
	}
	if c.Hybrid.MinKeywordScore < 0 || c.Hybrid.MinKeywordScore > 1 {
		return fmt.Errorf("hybrid.minKeywordScore must be between 0 and 1, got %f", c.Hybrid.MinKeywordScore)
	}

	if c.Retrieval.MaxChunksPerPage < 1 || c.Retrieval.MaxChunksPerPage > 20 {
		return fmt.Errorf("retrieval.maxChunksPerPage must be between 1 and 20, got %d", c.Retrieval.MaxChunksPerPage)
	}
	if c.Retrieval.MaxTotalChars < 1000 || c.Retrieval.MaxTotalChars > 500000 {
		return fmt.Errorf("retrieval.maxTotalChars must be between 1000 and 500000, got %d", c.Retrieval.MaxTotalChars)
	}
	if c.Retrieval.SnippetMaxChars < 100 || c.Retrieval.SnippetMaxChars > 10000 {
		return fmt.Errorf("retrieval.snippetMaxChars must be between 100 and 10000, got %d", c.Retrieval.SnippetMaxChars)
	}

	return nil
}

// WriteJSON writes the configuration to path as indented JSON.
func (c *Config) WriteJSON(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
