// Package store provides the persistence layer for mem-oracle: a
// relational+FTS metadata store and a per-docset flat vector store.
package store

import (
	"context"
	"fmt"
	"time"
)

// DocsetStatus is the lifecycle state of a Docset.
type DocsetStatus string

const (
	DocsetPending  DocsetStatus = "pending"
	DocsetIndexing DocsetStatus = "indexing"
	DocsetReady    DocsetStatus = "ready"
	DocsetError    DocsetStatus = "error"
)

// PageStatus is the lifecycle state of a Page.
type PageStatus string

const (
	PagePending  PageStatus = "pending"
	PageFetching PageStatus = "fetching"
	PageFetched  PageStatus = "fetched"
	PageIndexing PageStatus = "indexing"
	PageIndexed  PageStatus = "indexed"
	PageError    PageStatus = "error"
	PageSkipped  PageStatus = "skipped"
)

// Docset is a single documentation source.
type Docset struct {
	ID           string
	Name         string
	BaseURL      string
	SeedPath     string
	AllowedPaths []string
	Status       DocsetStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Page is a single fetched URL under a Docset.
type Page struct {
	ID             string
	DocsetID       string
	URL            string
	Path           string
	Title          string
	ContentHash    string
	Status         PageStatus
	ErrorMessage   string
	ETag           string
	LastModified   string
	RetryCount     int
	LastAttemptAt  time.Time
	FetchedAt      time.Time
	IndexedAt      time.Time
	InsertionOrder int64
	// Depth is the link distance from the docset's seed page, used by
	// the link frontier to order crawl work breadth-first.
	Depth int
}

// Chunk is a contiguous text slice of a Page.
type Chunk struct {
	ID          string
	PageID      string
	DocsetID    string
	Body        string
	Heading     string
	StartOffset int
	EndOffset   int
	Index       int
	EmbeddingID string
	CreatedAt   time.Time
}

// VectorRecord is a dense vector plus the denormalised metadata needed to
// answer a query without a second lookup.
type VectorRecord struct {
	ID       string // equal to chunk ID
	DocsetID string
	PageID   string
	URL      string
	Title    string
	Heading  string
	Content  string
	Vector   []float32
}

// VectorResult is a single scored vector search hit.
type VectorResult struct {
	Record *VectorRecord
	Score  float32
}

// KeywordResult is a single scored keyword (FTS) search hit.
type KeywordResult struct {
	ChunkID      string
	DocsetID     string
	PageID       string
	URL          string
	Title        string
	Heading      string
	Content      string
	KeywordScore float64
}

// IndexStatus aggregates page counts per state and the total chunk count
// for a docset.
type IndexStatus struct {
	DocsetID     string
	PagesByState map[PageStatus]int
	ChunkCount   int
	StuckPages   []StuckPage
	VectorStats  VectorStats
}

// StuckPage flags a page that has sat in an in-progress status (fetching,
// fetched, indexing) past StuckPageThreshold without a crash-recovery pass
// having requeued it yet.
type StuckPage struct {
	ID            string
	URL           string
	Status        PageStatus
	LastAttemptAt time.Time
}

// StuckPageThreshold is the age past which an in-progress page is
// considered abandoned by a dead worker. Shared by GetIndexStatus's
// diagnostic and the Orchestrator's crash-recovery requeue so the two
// agree on what "stuck" means.
const StuckPageThreshold = 5 * time.Minute

// ConsistencyReport flags cross-store drift between the metadata store's
// chunk records and the vector store's records for one docset: vectors
// with no backing chunk row (orphaned on the vector side) and chunks
// whose embeddingId doesn't resolve to any vector (orphaned on the
// metadata side, e.g. after a crash between chunk creation and upsert).
type ConsistencyReport struct {
	DocsetID            string
	OrphanedVectorIDs   []string
	ChunksMissingVector []string
}

// MetadataStore persists docsets, pages, chunks, and a full-text mirror
// of chunk text, with serializable single-writer transactions.
type MetadataStore interface {
	CreateDocset(ctx context.Context, d *Docset) (*Docset, error)
	GetDocset(ctx context.Context, id string) (*Docset, error)
	ListDocsets(ctx context.Context) ([]*Docset, error)
	UpdateDocsetStatus(ctx context.Context, id string, status DocsetStatus) error
	DeleteDocset(ctx context.Context, id string) error

	GetPageByURL(ctx context.Context, docsetID, url string) (*Page, error)
	GetPage(ctx context.Context, id string) (*Page, error)
	CreatePage(ctx context.Context, p *Page) (*Page, error)
	UpdatePage(ctx context.Context, id string, fields PageUpdate) error
	GetNextPendingPage(ctx context.Context, docsetID string) (*Page, error)
	ListPages(ctx context.Context, docsetID string) ([]*Page, error)

	CreateChunks(ctx context.Context, chunks []*Chunk) error
	DeleteChunks(ctx context.Context, pageID string) error
	GetChunksByPage(ctx context.Context, pageID string) ([]*Chunk, error)
	ListChunksByDocset(ctx context.Context, docsetID string) ([]*Chunk, error)

	SearchKeyword(ctx context.Context, query string, docsetIDs []string, topK int) ([]*KeywordResult, error)
	GetIndexStatus(ctx context.Context, docsetID string) (*IndexStatus, error)

	Close() error
}

// PageUpdate carries a partial update to a Page; only non-nil fields are
// written, and the parent docset's updated_at is left untouched.
type PageUpdate struct {
	Status        *PageStatus
	Title         *string
	ContentHash   *string
	ErrorMessage  *string
	ETag          *string
	LastModified  *string
	RetryCount    *int
	LastAttemptAt *time.Time
	FetchedAt     *time.Time
	IndexedAt     *time.Time
}

// VectorStore is a per-namespace (per-docset) flat exact-cosine index.
// Non-goal: no approximate nearest-neighbor search; every query scans the
// full namespace.
type VectorStore interface {
	Init(ctx context.Context, namespace string) error
	Upsert(ctx context.Context, namespace string, records []*VectorRecord) error
	Search(ctx context.Context, namespace string, query []float32, topK int, minScore float32) ([]*VectorResult, error)
	Delete(ctx context.Context, namespace string, ids []string) error
	Clear(ctx context.Context, namespace string) error
	Dimensions(namespace string) (int, bool)
	ListIDs(ctx context.Context, namespace string) ([]string, error)
	Stats(namespace string) VectorStats
	Close() error
}

// ErrDimensionMismatch indicates a query or upsert vector's length doesn't
// match the namespace's locked dimensionality.
type ErrDimensionMismatch struct {
	Namespace string
	Expected  int
	Got       int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch in namespace %s: expected %d, got %d", e.Namespace, e.Expected, e.Got)
}

// ErrNotFound indicates a lookup by ID found nothing.
type ErrNotFound struct {
	Kind string
	ID   string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}
