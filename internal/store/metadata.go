package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/JagjeevanAK/mem-oracle/internal/ids"
	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO
)

// SQLiteStore implements MetadataStore over a single SQLite database,
// combining relational tables for docsets/pages/chunks with an FTS5
// mirror for keyword search. WAL mode is enabled, but the pool holds a
// single connection, so reads and writes are serialised through it.
type SQLiteStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

var _ MetadataStore = (*SQLiteStore)(nil)

// validateIntegrity checks an existing database file before opening it for
// real use, and reports corruption so the caller can decide to clear it.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// NewSQLiteStore opens (creating if necessary) a metadata store at path.
// An empty path opens an in-memory database, useful for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if err := validateIntegrity(path); err != nil {
			slog.Warn("metadata_store_corrupted", slog.String("path", path), slog.String("error", err.Error()))
			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("metadata store corrupted at %s and cannot remove: %w (original: %v)", path, removeErr, err)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
			slog.Info("metadata_store_cleared", slog.String("path", path), slog.String("reason", "corruption detected, reindex required"))
		}

		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -65536",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS docsets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		base_url TEXT NOT NULL,
		seed_path TEXT NOT NULL,
		allowed_paths TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pages (
		id TEXT PRIMARY KEY,
		docset_id TEXT NOT NULL REFERENCES docsets(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		path TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		etag TEXT NOT NULL DEFAULT '',
		last_modified TEXT NOT NULL DEFAULT '',
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_attempt_at DATETIME,
		fetched_at DATETIME,
		indexed_at DATETIME,
		insertion_order INTEGER NOT NULL,
		depth INTEGER NOT NULL DEFAULT 0,
		UNIQUE(docset_id, url)
	);
	CREATE INDEX IF NOT EXISTS idx_pages_docset_status ON pages(docset_id, status, insertion_order);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		page_id TEXT NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
		docset_id TEXT NOT NULL,
		body TEXT NOT NULL,
		heading TEXT NOT NULL DEFAULT '',
		start_offset INTEGER NOT NULL,
		end_offset INTEGER NOT NULL,
		chunk_index INTEGER NOT NULL,
		embedding_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_page ON chunks(page_id);

	CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
		chunk_id UNINDEXED,
		docset_id UNINDEXED,
		page_id UNINDEXED,
		url UNINDEXED,
		title,
		heading,
		content,
		tokenize='unicode61'
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// migrate inspects the pages table for columns introduced after the
// original schema and applies additive migrations, backfilling the FTS
// mirror from chunks when it's found empty but chunks exist.
func (s *SQLiteStore) migrate() error {
	rows, err := s.db.Query(`PRAGMA table_info(pages)`)
	if err != nil {
		return err
	}
	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			rows.Close()
			return err
		}
		cols[name] = true
	}
	rows.Close()

	if !cols["retry_count"] {
		if _, err := s.db.Exec(`ALTER TABLE pages ADD COLUMN retry_count INTEGER NOT NULL DEFAULT 0`); err != nil {
			return err
		}
	}
	if !cols["last_attempt_at"] {
		if _, err := s.db.Exec(`ALTER TABLE pages ADD COLUMN last_attempt_at DATETIME`); err != nil {
			return err
		}
	}
	if !cols["depth"] {
		if _, err := s.db.Exec(`ALTER TABLE pages ADD COLUMN depth INTEGER NOT NULL DEFAULT 0`); err != nil {
			return err
		}
	}

	return s.rebuildFTSIfEmpty()
}

// rebuildFTSIfEmpty repopulates the FTS mirror from chunks in a single
// transaction when the mirror is empty but chunk rows already exist (e.g.
// after a schema migration that dropped the mirror).
func (s *SQLiteStore) rebuildFTSIfEmpty() error {
	var ftsCount, chunkCount int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks_fts`).Scan(&ftsCount); err != nil {
		return err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&chunkCount); err != nil {
		return err
	}
	if ftsCount > 0 || chunkCount == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO chunks_fts(chunk_id, docset_id, page_id, url, title, heading, content)
		SELECT c.id, c.docset_id, c.page_id, p.url, p.title, c.heading, c.body
		FROM chunks c JOIN pages p ON p.id = c.page_id
	`)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// CreateDocset inserts a new docset. allowedPaths defaults to the
// directory of the seed path, and name defaults to the base URL host.
func (s *SQLiteStore) CreateDocset(ctx context.Context, d *Docset) (*Docset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = ids.Docset(d.BaseURL, d.SeedPath)
	}
	if len(d.AllowedPaths) == 0 {
		d.AllowedPaths = []string{defaultAllowedPath(d.SeedPath)}
	}
	if d.Name == "" {
		d.Name = hostOf(d.BaseURL)
	}
	if d.Status == "" {
		d.Status = DocsetPending
	}
	now := time.Now()
	d.CreatedAt, d.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO docsets (id, name, base_url, seed_path, allowed_paths, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.Name, d.BaseURL, d.SeedPath, strings.Join(d.AllowedPaths, "\n"), string(d.Status), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create docset: %w", err)
	}
	return d, nil
}

func defaultAllowedPath(seedPath string) string {
	idx := strings.LastIndex(strings.TrimSuffix(seedPath, "/"), "/")
	if idx <= 0 {
		return "/"
	}
	return seedPath[:idx]
}

func hostOf(baseURL string) string {
	u := strings.TrimPrefix(strings.TrimPrefix(baseURL, "https://"), "http://")
	if i := strings.IndexByte(u, '/'); i >= 0 {
		u = u[:i]
	}
	return u
}

func (s *SQLiteStore) GetDocset(ctx context.Context, id string) (*Docset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, base_url, seed_path, allowed_paths, status, created_at, updated_at
		FROM docsets WHERE id = ?
	`, id)
	return scanDocset(row)
}

func (s *SQLiteStore) ListDocsets(ctx context.Context) ([]*Docset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, base_url, seed_path, allowed_paths, status, created_at, updated_at
		FROM docsets ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Docset
	for rows.Next() {
		d, err := scanDocsetRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateDocsetStatus(ctx context.Context, id string, status DocsetStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE docsets SET status = ?, updated_at = ? WHERE id = ?`, string(status), time.Now(), id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound{Kind: "docset", ID: id}
	}
	return nil
}

func (s *SQLiteStore) DeleteDocset(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE docset_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM docsets WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func scanDocset(row *sql.Row) (*Docset, error) {
	var d Docset
	var allowed string
	if err := row.Scan(&d.ID, &d.Name, &d.BaseURL, &d.SeedPath, &allowed, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound{Kind: "docset", ID: ""}
		}
		return nil, err
	}
	d.AllowedPaths = strings.Split(allowed, "\n")
	return &d, nil
}

func scanDocsetRows(rows *sql.Rows) (*Docset, error) {
	var d Docset
	var allowed string
	if err := rows.Scan(&d.ID, &d.Name, &d.BaseURL, &d.SeedPath, &allowed, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.AllowedPaths = strings.Split(allowed, "\n")
	return &d, nil
}

func (s *SQLiteStore) GetPageByURL(ctx context.Context, docsetID, url string) (*Page, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, docset_id, url, path, title, content_hash, status, error_message, etag, last_modified,
		       retry_count, last_attempt_at, fetched_at, indexed_at, insertion_order, depth
		FROM pages WHERE docset_id = ? AND url = ?
	`, docsetID, url)
	return scanPage(row)
}

func (s *SQLiteStore) GetPage(ctx context.Context, id string) (*Page, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, docset_id, url, path, title, content_hash, status, error_message, etag, last_modified,
		       retry_count, last_attempt_at, fetched_at, indexed_at, insertion_order, depth
		FROM pages WHERE id = ?
	`, id)
	return scanPage(row)
}

func scanPage(row *sql.Row) (*Page, error) {
	var p Page
	var lastAttempt, fetchedAt, indexedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.DocsetID, &p.URL, &p.Path, &p.Title, &p.ContentHash, &p.Status, &p.ErrorMessage,
		&p.ETag, &p.LastModified, &p.RetryCount, &lastAttempt, &fetchedAt, &indexedAt, &p.InsertionOrder, &p.Depth); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound{Kind: "page", ID: ""}
		}
		return nil, err
	}
	if lastAttempt.Valid {
		p.LastAttemptAt = lastAttempt.Time
	}
	if fetchedAt.Valid {
		p.FetchedAt = fetchedAt.Time
	}
	if indexedAt.Valid {
		p.IndexedAt = indexedAt.Time
	}
	return &p, nil
}

func (s *SQLiteStore) CreatePage(ctx context.Context, p *Page) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = ids.Page(p.DocsetID, p.URL)
	}
	if p.Status == "" {
		p.Status = PagePending
	}

	var nextOrder int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(insertion_order), 0) + 1 FROM pages WHERE docset_id = ?`, p.DocsetID).Scan(&nextOrder); err != nil {
		return nil, err
	}
	p.InsertionOrder = nextOrder

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (id, docset_id, url, path, title, content_hash, status, error_message, etag, last_modified,
		                    retry_count, last_attempt_at, fetched_at, indexed_at, insertion_order, depth)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.DocsetID, p.URL, p.Path, p.Title, p.ContentHash, string(p.Status), p.ErrorMessage, p.ETag, p.LastModified,
		p.RetryCount, nullTime(p.LastAttemptAt), nullTime(p.FetchedAt), nullTime(p.IndexedAt), p.InsertionOrder, p.Depth)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return p, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// UpdatePage applies a partial update; only non-nil fields in fields are
// written. The parent docset's updated_at is deliberately left untouched.
func (s *SQLiteStore) UpdatePage(ctx context.Context, id string, fields PageUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sets []string
	var args []any

	if fields.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*fields.Status))
	}
	if fields.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *fields.Title)
	}
	if fields.ContentHash != nil {
		sets = append(sets, "content_hash = ?")
		args = append(args, *fields.ContentHash)
	}
	if fields.ErrorMessage != nil {
		sets = append(sets, "error_message = ?")
		args = append(args, *fields.ErrorMessage)
	}
	if fields.ETag != nil {
		sets = append(sets, "etag = ?")
		args = append(args, *fields.ETag)
	}
	if fields.LastModified != nil {
		sets = append(sets, "last_modified = ?")
		args = append(args, *fields.LastModified)
	}
	if fields.RetryCount != nil {
		sets = append(sets, "retry_count = ?")
		args = append(args, *fields.RetryCount)
	}
	if fields.LastAttemptAt != nil {
		sets = append(sets, "last_attempt_at = ?")
		args = append(args, *fields.LastAttemptAt)
	}
	if fields.FetchedAt != nil {
		sets = append(sets, "fetched_at = ?")
		args = append(args, *fields.FetchedAt)
	}
	if fields.IndexedAt != nil {
		sets = append(sets, "indexed_at = ?")
		args = append(args, *fields.IndexedAt)
	}

	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`UPDATE pages SET %s WHERE id = ?`, strings.Join(sets, ", ")), args...)
	if err != nil {
		return fmt.Errorf("update page: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound{Kind: "page", ID: id}
	}
	return nil
}

// GetNextPendingPage returns the shallowest pending page, breaking ties by
// insertion order, so the frontier drains breadth-first. It does not
// reserve the page; the caller must transition its status to fetching to
// claim it.
func (s *SQLiteStore) GetNextPendingPage(ctx context.Context, docsetID string) (*Page, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, docset_id, url, path, title, content_hash, status, error_message, etag, last_modified,
		       retry_count, last_attempt_at, fetched_at, indexed_at, insertion_order, depth
		FROM pages WHERE docset_id = ? AND status = ? ORDER BY depth, insertion_order LIMIT 1
	`, docsetID, string(PagePending))
	return scanPage(row)
}

func (s *SQLiteStore) ListPages(ctx context.Context, docsetID string) ([]*Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, docset_id, url, path, title, content_hash, status, error_message, etag, last_modified,
		       retry_count, last_attempt_at, fetched_at, indexed_at, insertion_order, depth
		FROM pages WHERE docset_id = ?
		ORDER BY (indexed_at IS NULL) ASC, indexed_at DESC
	`, docsetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Page
	for rows.Next() {
		var p Page
		var lastAttempt, fetchedAt, indexedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.DocsetID, &p.URL, &p.Path, &p.Title, &p.ContentHash, &p.Status, &p.ErrorMessage,
			&p.ETag, &p.LastModified, &p.RetryCount, &lastAttempt, &fetchedAt, &indexedAt, &p.InsertionOrder, &p.Depth); err != nil {
			return nil, err
		}
		if lastAttempt.Valid {
			p.LastAttemptAt = lastAttempt.Time
		}
		if fetchedAt.Valid {
			p.FetchedAt = fetchedAt.Time
		}
		if indexedAt.Valid {
			p.IndexedAt = indexedAt.Time
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// CreateChunks inserts chunks and their FTS mirror rows in one transaction.
func (s *SQLiteStore) CreateChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, page_id, docset_id, body, heading, start_offset, end_offset, chunk_index, embedding_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer chunkStmt.Close()

	ftsStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks_fts(chunk_id, docset_id, page_id, url, title, heading, content)
		SELECT ?, ?, ?, p.url, p.title, ?, ?
		FROM pages p WHERE p.id = ?
	`)
	if err != nil {
		return err
	}
	defer ftsStmt.Close()

	now := time.Now()
	for _, c := range chunks {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if _, err := chunkStmt.ExecContext(ctx, c.ID, c.PageID, c.DocsetID, c.Body, c.Heading, c.StartOffset, c.EndOffset, c.Index, c.EmbeddingID, c.CreatedAt); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
		if _, err := ftsStmt.ExecContext(ctx, c.ID, c.DocsetID, c.PageID, c.Heading, c.Body, c.PageID); err != nil {
			return fmt.Errorf("insert fts mirror for chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) DeleteChunks(ctx context.Context, pageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE page_id = ?`, pageID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE page_id = ?`, pageID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetChunksByPage(ctx context.Context, pageID string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, page_id, docset_id, body, heading, start_offset, end_offset, chunk_index, embedding_id, created_at
		FROM chunks WHERE page_id = ? ORDER BY chunk_index
	`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.PageID, &c.DocsetID, &c.Body, &c.Heading, &c.StartOffset, &c.EndOffset, &c.Index, &c.EmbeddingID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// ListChunksByDocset returns every chunk belonging to docsetID, across all
// of its pages, for the consistency sweep in D.2.
func (s *SQLiteStore) ListChunksByDocset(ctx context.Context, docsetID string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, page_id, docset_id, body, heading, start_offset, end_offset, chunk_index, embedding_id, created_at
		FROM chunks WHERE docset_id = ? ORDER BY page_id, chunk_index
	`, docsetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.PageID, &c.DocsetID, &c.Body, &c.Heading, &c.StartOffset, &c.EndOffset, &c.Index, &c.EmbeddingID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

var nonWordRun = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// normalizeKeywordQuery lowercases, strips punctuation, drops ≤1-char
// tokens, and appends * to each surviving token for FTS5 prefix matching.
func normalizeKeywordQuery(query string) string {
	lower := strings.ToLower(query)
	fields := nonWordRun.Split(lower, -1)
	var tokens []string
	for _, f := range fields {
		if len(f) <= 1 {
			continue
		}
		tokens = append(tokens, f+"*")
	}
	return strings.Join(tokens, " ")
}

// SearchKeyword runs a BM25 query over the FTS mirror and maps the raw
// bm25() value (lower is better) to a bounded [0,1] score, best match
// first.
func (s *SQLiteStore) SearchKeyword(ctx context.Context, query string, docsetIDs []string, topK int) ([]*KeywordResult, error) {
	ftsQuery := normalizeKeywordQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	sqlQuery := `
		SELECT chunk_id, docset_id, page_id, url, title, heading, content, bm25(chunks_fts) AS score
		FROM chunks_fts
		WHERE chunks_fts MATCH ?
	`
	args := []any{ftsQuery}

	if len(docsetIDs) > 0 {
		placeholders := make([]string, len(docsetIDs))
		for i, id := range docsetIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		sqlQuery += fmt.Sprintf(" AND docset_id IN (%s)", strings.Join(placeholders, ","))
	}

	sqlQuery += " ORDER BY score ASC LIMIT ?"
	args = append(args, topK)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	defer rows.Close()

	var out []*KeywordResult
	for rows.Next() {
		var r KeywordResult
		var bm25Score float64
		if err := rows.Scan(&r.ChunkID, &r.DocsetID, &r.PageID, &r.URL, &r.Title, &r.Heading, &r.Content, &bm25Score); err != nil {
			return nil, err
		}
		// FTS5 bm25() is negative; more negative is a better match, so
		// clamping at 0 (rather than negating) keeps the best matches at
		// the formula's maximum of 1 and only the weak/common-term tail
		// (bm25 >= 0) decays towards 0.
		if bm25Score < 0 {
			bm25Score = 0
		}
		r.KeywordScore = 1 / (1 + bm25Score)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetIndexStatus(ctx context.Context, docsetID string) (*IndexStatus, error) {
	status := &IndexStatus{DocsetID: docsetID, PagesByState: map[PageStatus]int{}}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM pages WHERE docset_id = ? GROUP BY status`, docsetID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var st string
		var count int
		if err := rows.Scan(&st, &count); err != nil {
			rows.Close()
			return nil, err
		}
		status.PagesByState[PageStatus(st)] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE docset_id = ?`, docsetID).Scan(&status.ChunkCount); err != nil {
		return nil, err
	}

	stuckBefore := time.Now().Add(-StuckPageThreshold)
	stuckRows, err := s.db.QueryContext(ctx, `
		SELECT id, url, status, last_attempt_at FROM pages
		WHERE docset_id = ? AND status IN ('fetching', 'fetched', 'indexing')
		  AND last_attempt_at IS NOT NULL AND last_attempt_at <= ?
	`, docsetID, stuckBefore)
	if err != nil {
		return nil, err
	}
	defer stuckRows.Close()

	for stuckRows.Next() {
		var sp StuckPage
		var st string
		var lastAttempt time.Time
		if err := stuckRows.Scan(&sp.ID, &sp.URL, &st, &lastAttempt); err != nil {
			return nil, err
		}
		sp.Status = PageStatus(st)
		sp.LastAttemptAt = lastAttempt
		status.StuckPages = append(status.StuckPages, sp)
	}
	if err := stuckRows.Err(); err != nil {
		return nil, err
	}

	return status, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
