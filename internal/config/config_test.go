package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_PassesValidation(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFilePresentUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 4, cfg.Crawler.Concurrency)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{
		"embedding": {"provider": "openai", "model": "text-embedding-3-small", "batchSize": 64},
		"crawler": {"concurrency": 10, "requestDelay": 500, "timeout": 20000, "maxPages": 200, "userAgent": "test-bot/1.0"}
	}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 64, cfg.Embedding.BatchSize)
	assert.Equal(t, 10, cfg.Crawler.Concurrency)
	assert.Equal(t, "test-bot/1.0", cfg.Crawler.UserAgent)
	// Untouched sections keep their defaults
	assert.Equal(t, "local", cfg.Vector.Provider)
}

func TestLoad_RejectsUnknownTopLevelKey(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"embeddding": {"provider": "openai"}}`)

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognised key")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"crawler": {"concurrency": 10, "requestDelay": 500, "timeout": 20000, "maxPages": 200, "userAgent": "test-bot/1.0"}}`)

	t.Setenv("MEMORACLE_CRAWLER_CONCURRENCY", "25")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Crawler.Concurrency)
}

func TestValidate_RejectsOutOfRangeCrawlerConcurrency(t *testing.T) {
	cfg := Default()
	cfg.Crawler.Concurrency = 0
	assert.Error(t, cfg.Validate())

	cfg.Crawler.Concurrency = 51
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownEmbeddingProvider(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Provider = "bedrock"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding.provider")
}

func TestValidate_RejectsAlphaOutsideUnitInterval(t *testing.T) {
	cfg := Default()
	cfg.Hybrid.Alpha = 1.5
	assert.Error(t, cfg.Validate())

	cfg.Hybrid.Alpha = -0.1
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsRetrievalBudgetsOutsideRange(t *testing.T) {
	cfg := Default()
	cfg.Retrieval.MaxTotalChars = 500
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Retrieval.MaxChunksPerPage = 0
	assert.Error(t, cfg.Validate())
}

func TestWriteJSON_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.Embedding.Provider = "voyage"
	require.NoError(t, cfg.WriteJSON(path))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "voyage", loaded.Embedding.Provider)
}

func writeConfig(t *testing.T, dir, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(contents), 0o644))
}
