// Package engine implements the Orchestrator: the indexing state
// machine, crash recovery, background crawl worker pools, and the
// hybrid query path that ties the cache, fetcher, extractor, chunker,
// embedding provider, metadata store, and vector store together.
package engine

import (
	"time"

	"github.com/JagjeevanAK/mem-oracle/internal/store"
)

// IndexInput describes a request to start (or resume) indexing a
// documentation site.
type IndexInput struct {
	BaseURL      string
	SeedSlug     string
	Name         string
	AllowedPaths []string
	WaitForSeed  bool
}

// IndexResult is the immediate response to an index request; the crawl
// itself continues in the background unless WaitForSeed blocked on the
// seed page.
type IndexResult struct {
	DocsetID     string
	Status       store.DocsetStatus
	SeedIndexed  bool
}

// Query carries the knobs of a retrieval request; zero values are
// replaced by configured defaults and then clamped.
type Query struct {
	Text             string
	DocsetIDs        []string
	TopK             int
	MinScore         float32
	MaxChunksPerPage int
	MaxTotalChars    int
	FormatSnippets   bool
}

// Snippet is the rendered, possibly-truncated presentation of a result
// chunk, built per spec §4.9.7.
type Snippet struct {
	Formatted  string
	Title      string
	URL        string
	Breadcrumb string
	Content    string
	CharCount  int
}

// Result is one admitted hit from a Search call.
type Result struct {
	ChunkID      string
	DocsetID     string
	PageID       string
	URL          string
	Title        string
	Heading      string
	Content      string
	VectorScore  float32
	KeywordScore float64
	Score        float64
	Snippet      *Snippet
}

// SearchResponse is the full answer to a Search call.
type SearchResponse struct {
	Results    []Result
	Query      string
	TotalChars int
	Truncated  bool
}

// RefreshInput configures a refresh sweep over one or all docsets.
type RefreshInput struct {
	DocsetID    string // empty means all docsets
	Force       bool
	MaxAge      time.Duration
	FullReindex bool
}

// RefreshPlan describes what a refresh did for a single docset.
type RefreshPlan struct {
	DocsetID        string
	PagesRequeued   int
	PreservedHashes int
	ClearedHashes   int
}

// ConsistencyReport is the Orchestrator-level view of store.ConsistencyReport:
// it additionally resolves each chunk missing a vector back to the page
// that owns it, for a more actionable diagnostic; orphaned vector IDs are
// reported as bare IDs.
type ConsistencyReport struct {
	DocsetID            string
	OrphanedVectorIDs   []string
	ChunksMissingVector []ChunkConsistencyIssue
}

// ChunkConsistencyIssue names a chunk whose embeddingId doesn't resolve to
// any record in its docset's vector namespace.
type ChunkConsistencyIssue struct {
	ChunkID string
	PageID  string
}
