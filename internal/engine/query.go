package engine

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/JagjeevanAK/mem-oracle/internal/store"
)

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Search implements the query path, 4.9.5/4.9.6: clamp params, embed the
// query once, fan out vector+keyword search in parallel (errgroup,
// mirroring the teacher's hybrid fusion fan-out), fuse, then apply
// diversity and budget shaping.
func (e *Engine) Search(ctx context.Context, q Query) (*SearchResponse, error) {
	topK := clampInt(valueOr(q.TopK, 10), 1, 100)
	minScore := clampFloat32(q.MinScore, 0, 1)
	maxChunksPerPage := valueOr(q.MaxChunksPerPage, e.cfg.Retrieval.MaxChunksPerPage)
	maxTotalChars := valueOr(q.MaxTotalChars, e.cfg.Retrieval.MaxTotalChars)

	vectorTopK := clampInt(valueOr(e.cfg.Hybrid.VectorTopK, 50), 1, 1000)
	keywordTopK := clampInt(valueOr(e.cfg.Hybrid.KeywordTopK, 50), 1, 1000)
	alpha := clampFloat64(e.cfg.Hybrid.Alpha, 0, 1)
	minKeywordScore := clampFloat64(e.cfg.Hybrid.MinKeywordScore, 0, 1)

	queryVector, err := e.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	namespaces := q.DocsetIDs
	if len(namespaces) == 0 {
		namespaces, err = e.allDocsetIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list docsets: %w", err)
		}
	}

	var vectorResults []*store.VectorResult
	var keywordResults []*store.KeywordResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		merged, err := e.searchVectors(gctx, namespaces, queryVector, vectorTopK, minScore)
		if err != nil {
			return err
		}
		vectorResults = merged
		return nil
	})
	if e.cfg.Hybrid.Enabled {
		g.Go(func() error {
			kw, err := e.metadata.SearchKeyword(gctx, q.Text, namespaces, keywordTopK)
			if err != nil {
				return err
			}
			keywordResults = kw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var fused []Result
	if e.cfg.Hybrid.Enabled {
		fused = fuseResults(vectorResults, keywordResults, alpha, minKeywordScore)
	} else {
		fused = make([]Result, len(vectorResults))
		for i, v := range vectorResults {
			fused[i] = resultFromVector(v)
			fused[i].Score = float64(v.Score)
		}
	}

	sort.SliceStable(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })

	admitted := applyDiversityFilter(fused, topK, maxChunksPerPage)
	admitted, totalChars, truncated := e.applyBudgetFilter(admitted, maxTotalChars, q.FormatSnippets)

	return &SearchResponse{
		Results:    admitted,
		Query:      q.Text,
		TotalChars: totalChars,
		Truncated:  truncated,
	}, nil
}

func valueOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func (e *Engine) allDocsetIDs(ctx context.Context) ([]string, error) {
	docsets, err := e.metadata.ListDocsets(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(docsets))
	for i, d := range docsets {
		ids[i] = d.ID
	}
	return ids, nil
}

// searchVectors runs exact cosine search over each namespace and merges
// the results, sorted desc, cut to vectorTopK.
func (e *Engine) searchVectors(ctx context.Context, namespaces []string, query []float32, vectorTopK int, minScore float32) ([]*store.VectorResult, error) {
	var merged []*store.VectorResult
	for _, ns := range namespaces {
		results, err := e.vectors.Search(ctx, ns, query, vectorTopK, minScore)
		if err != nil {
			return nil, fmt.Errorf("search namespace %s: %w", ns, err)
		}
		merged = append(merged, results...)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > vectorTopK {
		merged = merged[:vectorTopK]
	}
	return merged, nil
}

func resultFromVector(v *store.VectorResult) Result {
	return Result{
		ChunkID:     v.Record.ID,
		DocsetID:    v.Record.DocsetID,
		PageID:      v.Record.PageID,
		URL:         v.Record.URL,
		Title:       v.Record.Title,
		Heading:     v.Record.Heading,
		Content:     v.Record.Content,
		VectorScore: v.Score,
	}
}

// fuseResults implements 4.9.6's convex combination: hybrid = alpha *
// clamp(vectorScore) + (1-alpha) * clamp(keywordScore), keyed by chunk id.
func fuseResults(vectorResults []*store.VectorResult, keywordResults []*store.KeywordResult, alpha, minKeywordScore float64) []Result {
	byID := make(map[string]*Result)
	var order []string

	for _, v := range vectorResults {
		r := resultFromVector(v)
		byID[r.ChunkID] = &r
		order = append(order, r.ChunkID)
	}

	for _, k := range keywordResults {
		if k.KeywordScore < minKeywordScore {
			continue
		}
		if existing, ok := byID[k.ChunkID]; ok {
			if k.KeywordScore > existing.KeywordScore {
				existing.KeywordScore = k.KeywordScore
			}
			continue
		}
		r := &Result{
			ChunkID:      k.ChunkID,
			DocsetID:     k.DocsetID,
			PageID:       k.PageID,
			URL:          k.URL,
			Title:        k.Title,
			Heading:      k.Heading,
			Content:      k.Content,
			KeywordScore: k.KeywordScore,
		}
		byID[r.ChunkID] = r
		order = append(order, r.ChunkID)
	}

	out := make([]Result, len(order))
	for i, id := range order {
		r := byID[id]
		vs := clampFloat64(float64(r.VectorScore), 0, 1)
		ks := clampFloat64(r.KeywordScore, 0, 1)
		r.Score = alpha*vs + (1-alpha)*ks
		out[i] = *r
	}
	return out
}

// applyDiversityFilter admits results in score order, allowing at most
// maxChunksPerPage per (docsetId, pageId), stopping once topK are
// admitted (P4).
func applyDiversityFilter(results []Result, topK, maxChunksPerPage int) []Result {
	perPage := make(map[string]int)
	var admitted []Result
	for _, r := range results {
		if len(admitted) >= topK {
			break
		}
		key := r.DocsetID + "\x00" + r.PageID
		if perPage[key] >= maxChunksPerPage {
			continue
		}
		perPage[key]++
		admitted = append(admitted, r)
	}
	return admitted
}
