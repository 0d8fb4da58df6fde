package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/JagjeevanAK/mem-oracle/internal/engine"
	"github.com/JagjeevanAK/mem-oracle/internal/store"
	"github.com/JagjeevanAK/mem-oracle/pkg/version"
)

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   version.Version,
	})
}

type indexRequest struct {
	BaseURL      string   `json:"baseUrl"`
	SeedSlug     string   `json:"seedSlug"`
	Name         string   `json:"name,omitempty"`
	AllowedPaths []string `json:"allowedPaths,omitempty"`
	WaitForSeed  bool     `json:"waitForSeed,omitempty"`
}

type indexResponse struct {
	DocsetID    string `json:"docsetId"`
	Status      string `json:"status"`
	SeedIndexed bool   `json:"seedIndexed"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, invalidf("invalid request body: %v", err))
		return
	}
	if req.BaseURL == "" || req.SeedSlug == "" {
		writeError(w, invalidf("baseUrl and seedSlug are required"))
		return
	}

	result, err := s.engine.IndexDocset(r.Context(), engine.IndexInput{
		BaseURL:      req.BaseURL,
		SeedSlug:     req.SeedSlug,
		Name:         req.Name,
		AllowedPaths: req.AllowedPaths,
		WaitForSeed:  req.WaitForSeed,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, indexResponse{
		DocsetID:    result.DocsetID,
		Status:      string(result.Status),
		SeedIndexed: result.SeedIndexed,
	})
}

type retrieveRequest struct {
	Query            string   `json:"query"`
	DocsetIDs        []string `json:"docsetIds,omitempty"`
	TopK             int      `json:"topK,omitempty"`
	MaxChunksPerPage int      `json:"maxChunksPerPage,omitempty"`
	MaxTotalChars    int      `json:"maxTotalChars,omitempty"`
	FormatSnippets   bool     `json:"formatSnippets,omitempty"`
}

type retrieveResponse struct {
	Results    []resultDTO `json:"results"`
	Query      string      `json:"query"`
	TotalChars int         `json:"totalChars"`
	Truncated  bool        `json:"truncated"`
}

type resultDTO struct {
	ChunkID      string      `json:"chunkId"`
	DocsetID     string      `json:"docsetId"`
	PageID       string      `json:"pageId"`
	URL          string      `json:"url"`
	Title        string      `json:"title"`
	Heading      string      `json:"heading,omitempty"`
	Content      string      `json:"content"`
	VectorScore  float32     `json:"vectorScore"`
	KeywordScore float64     `json:"keywordScore"`
	Score        float64     `json:"score"`
	Snippet      *snippetDTO `json:"snippet,omitempty"`
}

type snippetDTO struct {
	Formatted  string `json:"formatted"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Breadcrumb string `json:"breadcrumb,omitempty"`
	Content    string `json:"content"`
	CharCount  int    `json:"charCount"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, invalidf("invalid request body: %v", err))
		return
	}
	if req.Query == "" {
		writeError(w, invalidf("query is required"))
		return
	}

	resp, err := s.engine.Search(r.Context(), engine.Query{
		Text:             req.Query,
		DocsetIDs:        req.DocsetIDs,
		TopK:             req.TopK,
		MaxChunksPerPage: req.MaxChunksPerPage,
		MaxTotalChars:    req.MaxTotalChars,
		FormatSnippets:   req.FormatSnippets,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	out := retrieveResponse{Query: resp.Query, TotalChars: resp.TotalChars, Truncated: resp.Truncated}
	for _, res := range resp.Results {
		dto := resultDTO{
			ChunkID: res.ChunkID, DocsetID: res.DocsetID, PageID: res.PageID,
			URL: res.URL, Title: res.Title, Heading: res.Heading, Content: res.Content,
			VectorScore: res.VectorScore, KeywordScore: res.KeywordScore, Score: res.Score,
		}
		if res.Snippet != nil {
			dto.Snippet = &snippetDTO{
				Formatted: res.Snippet.Formatted, Title: res.Snippet.Title, URL: res.Snippet.URL,
				Breadcrumb: res.Snippet.Breadcrumb, Content: res.Snippet.Content, CharCount: res.Snippet.CharCount,
			}
		}
		out.Results = append(out.Results, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

type docsetStatusDTO struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	BaseURL      string            `json:"baseUrl"`
	SeedPath     string            `json:"seedPath"`
	AllowedPaths []string          `json:"allowedPaths"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	IndexStatus  indexStatusDTO    `json:"indexStatus"`
	StuckPages   []stuckPageDTO    `json:"stuckPages,omitempty"`
}

type indexStatusDTO struct {
	PagesByState map[string]int `json:"pagesByState"`
	ChunkCount   int            `json:"chunkCount"`
	VectorCount  int            `json:"vectorCount"`
	Dimensions   int            `json:"dimensions,omitempty"`
}

type stuckPageDTO struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	Status        string    `json:"status"`
	LastAttemptAt time.Time `json:"lastAttemptAt"`
}

type statusResponse struct {
	Docsets []docsetStatusDTO `json:"docsets"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	docsetID := r.URL.Query().Get("docsetId")
	includeStuck := r.URL.Query().Get("includeStuck") == "true"

	var docsets []*store.Docset
	if docsetID != "" {
		d, err := s.engine.GetDocset(r.Context(), docsetID)
		if err != nil {
			writeError(w, err)
			return
		}
		docsets = []*store.Docset{d}
	} else {
		var err error
		docsets, err = s.engine.ListDocsets(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
	}

	resp := statusResponse{}
	for _, d := range docsets {
		indexStatus, err := s.engine.GetIndexStatus(r.Context(), d.ID)
		if err != nil {
			writeError(w, err)
			return
		}

		pagesByState := make(map[string]int, len(indexStatus.PagesByState))
		for state, count := range indexStatus.PagesByState {
			pagesByState[string(state)] = count
		}

		dto := docsetStatusDTO{
			ID: d.ID, Name: d.Name, BaseURL: d.BaseURL, SeedPath: d.SeedPath,
			AllowedPaths: d.AllowedPaths, Status: string(d.Status),
			CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
			IndexStatus: indexStatusDTO{
				PagesByState: pagesByState, ChunkCount: indexStatus.ChunkCount,
				VectorCount: indexStatus.VectorStats.VectorCount, Dimensions: indexStatus.VectorStats.Dimensions,
			},
		}
		if includeStuck {
			for _, sp := range indexStatus.StuckPages {
				dto.StuckPages = append(dto.StuckPages, stuckPageDTO{
					ID: sp.ID, URL: sp.URL, Status: string(sp.Status), LastAttemptAt: sp.LastAttemptAt,
				})
			}
		}
		resp.Docsets = append(resp.Docsets, dto)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetDocset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, err := s.engine.GetDocset(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docsetStatusDTO{
		ID: d.ID, Name: d.Name, BaseURL: d.BaseURL, SeedPath: d.SeedPath,
		AllowedPaths: d.AllowedPaths, Status: string(d.Status),
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	})
}

func (s *Server) handleDeleteDocset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.engine.DeleteDocset(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type pageDTO struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	Path          string    `json:"path"`
	Title         string    `json:"title,omitempty"`
	Status        string    `json:"status"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	RetryCount    int       `json:"retryCount"`
	FetchedAt     time.Time `json:"fetchedAt,omitempty"`
	IndexedAt     time.Time `json:"indexedAt,omitempty"`
}

type listPagesResponse struct {
	Pages []pageDTO `json:"pages"`
	Total int       `json:"total"`
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	pages, err := s.engine.ListPages(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	statusFilter := store.PageStatus(r.URL.Query().Get("status"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = len(pages)
	}

	filtered := make([]*store.Page, 0, len(pages))
	for _, p := range pages {
		if statusFilter != "" && p.Status != statusFilter {
			continue
		}
		filtered = append(filtered, p)
	}

	total := len(filtered)
	if offset > len(filtered) {
		offset = len(filtered)
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	page := filtered[offset:end]

	resp := listPagesResponse{Total: total}
	for _, p := range page {
		resp.Pages = append(resp.Pages, pageDTO{
			ID: p.ID, URL: p.URL, Path: p.Path, Title: p.Title, Status: string(p.Status),
			ErrorMessage: p.ErrorMessage, RetryCount: p.RetryCount, FetchedAt: p.FetchedAt, IndexedAt: p.IndexedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type refreshRequest struct {
	DocsetID    string `json:"docsetId,omitempty"`
	Force       bool   `json:"force,omitempty"`
	MaxAge      int64  `json:"maxAge,omitempty"` // milliseconds
	FullReindex bool   `json:"fullReindex,omitempty"`
}

type refreshPlanDTO struct {
	DocsetID        string `json:"docsetId"`
	PagesRequeued   int    `json:"pagesRequeued"`
	PreservedHashes int    `json:"preservedHashes"`
	ClearedHashes   int    `json:"clearedHashes"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, invalidf("invalid request body: %v", err))
			return
		}
	}
	if req.DocsetID == "" {
		writeError(w, invalidf("docsetId is required for /refresh; use /refresh-all for every docset"))
		return
	}
	s.runRefresh(w, r, req)
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, invalidf("invalid request body: %v", err))
			return
		}
	}
	req.DocsetID = ""
	s.runRefresh(w, r, req)
}

func (s *Server) runRefresh(w http.ResponseWriter, r *http.Request, req refreshRequest) {
	in := engine.RefreshInput{
		DocsetID: req.DocsetID, Force: req.Force, FullReindex: req.FullReindex,
	}
	if req.MaxAge > 0 {
		in.MaxAge = time.Duration(req.MaxAge) * time.Millisecond
	}

	plans, err := s.engine.Refresh(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]refreshPlanDTO, 0, len(plans))
	for _, p := range plans {
		out = append(out, refreshPlanDTO{
			DocsetID: p.DocsetID, PagesRequeued: p.PagesRequeued,
			PreservedHashes: p.PreservedHashes, ClearedHashes: p.ClearedHashes,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"docsets": out})
}
