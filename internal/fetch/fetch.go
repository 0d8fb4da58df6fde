// Package fetch implements the Fetcher (C4): a single HTTP GET per call,
// backed by the content cache for conditional requests and graceful
// degradation when a page is temporarily unreachable.
package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/JagjeevanAK/mem-oracle/internal/cache"
	"github.com/JagjeevanAK/mem-oracle/internal/engerr"
)

// DefaultTimeout is the per-call deadline absent an explicit override.
const DefaultTimeout = 30 * time.Second

// Result is what one Fetch call returns.
type Result struct {
	Content     []byte
	ContentType string
	Status      int
	FromCache   bool
	ETag        string
	LastModified string
}

// Overrides lets a caller supply known conditional-header values instead
// of consulting the cache (e.g. a re-fetch where the caller already has
// fresher metadata in hand).
type Overrides struct {
	ETag         string
	LastModified string
}

// Fetcher issues conditional GETs, writing fetched bodies through to a
// content cache and degrading gracefully to cached content on transport
// failure.
type Fetcher struct {
	client  *http.Client
	cache   *cache.Store
	timeout time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout overrides the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.timeout = d }
}

// WithHTTPClient overrides the transport, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// New creates a Fetcher backed by store, which may be nil to disable
// caching and graceful degradation entirely.
func New(store *cache.Store, opts ...Option) *Fetcher {
	f := &Fetcher{
		cache:   store,
		timeout: DefaultTimeout,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:     true,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 15 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.client.Timeout = f.timeout
	return f
}

// Fetch issues one GET against rawURL. If overrides is nil, known
// conditional-header values are read from the cache. Redirects are
// followed by the underlying client's default policy.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, overrides *Overrides) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var cached *cache.Entry
	if f.cache != nil {
		if e, err := f.cache.Get(rawURL); err == nil {
			cached = e
		}
	}

	etag, lastModified := "", ""
	if overrides != nil {
		etag, lastModified = overrides.ETag, overrides.LastModified
	} else if cached != nil {
		etag, lastModified = cached.ETag, cached.LastModified
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, engerr.Internal("build fetch request", err)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if cached != nil {
			return &Result{
				Content:      cached.Body,
				ContentType:  cached.ContentType,
				Status:       0,
				FromCache:    true,
				ETag:         cached.ETag,
				LastModified: cached.LastModified,
			}, nil
		}
		return nil, engerr.Transport("fetch: transport error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		return &Result{
			Content:      cached.Body,
			ContentType:  cached.ContentType,
			Status:       http.StatusNotModified,
			FromCache:    true,
			ETag:         cached.ETag,
			LastModified: cached.LastModified,
		}, nil
	}

	if resp.StatusCode >= 400 {
		return nil, engerr.HTTPStatus(resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, engerr.Transport("fetch: read body", err)
	}

	ct := resp.Header.Get("Content-Type")
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	ct = DetectContentType(rawURL, body, ct)
	newETag := resp.Header.Get("ETag")
	newLastModified := resp.Header.Get("Last-Modified")

	if f.cache != nil {
		_ = f.cache.Put(rawURL, &cache.Entry{
			Body:         body,
			ContentType:  ct,
			FetchedAt:    time.Now().UTC(),
			ETag:         newETag,
			LastModified: newLastModified,
		})
	}

	return &Result{
		Content:      body,
		ContentType:  ct,
		Status:       resp.StatusCode,
		FromCache:    false,
		ETag:         newETag,
		LastModified: newLastModified,
	}, nil
}
