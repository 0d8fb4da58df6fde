package jsonrpc

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/JagjeevanAK/mem-oracle/internal/engine"
)

func toolDescriptors() []ToolDescriptor {
	return []ToolDescriptor{
		{
			Name:        "search_docs",
			Description: "Hybrid dense+keyword search over indexed documentation, returning ranked results with scores.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":     map[string]any{"type": "string", "description": "Natural-language query"},
					"docsetIds": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Restrict search to these docsets; omit to search all"},
					"topK":      map[string]any{"type": "integer", "description": "Maximum results to return (default 10)"},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "get_snippets",
			Description: "Search indexed documentation and return formatted, budget-shaped text snippets ready to paste into a prompt.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":         map[string]any{"type": "string", "description": "Natural-language query"},
					"docsetIds":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Restrict search to these docsets; omit to search all"},
					"topK":          map[string]any{"type": "integer", "description": "Maximum results to consider (default 10)"},
					"maxTotalChars": map[string]any{"type": "integer", "description": "Overall character budget across all snippets"},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "index_docs",
			Description: "Crawl and index a documentation site starting from a seed page, creating a new docset.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"baseUrl":     map[string]any{"type": "string", "description": "Origin of the documentation site, e.g. https://docs.example.com"},
					"seedSlug":    map[string]any{"type": "string", "description": "Path of the first page to fetch, e.g. /intro"},
					"name":        map[string]any{"type": "string", "description": "Human-readable name for the docset"},
					"waitForSeed": map[string]any{"type": "boolean", "description": "Block until the seed page itself is indexed before returning"},
				},
				"required": []string{"baseUrl", "seedSlug"},
			},
		},
		{
			Name:        "index_status",
			Description: "Report crawl/index progress for one docset, or every docset when docsetId is omitted.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"docsetId": map[string]any{"type": "string", "description": "Docset to report on; omit for every docset"},
				},
			},
		},
	}
}

// dispatchTool calls into the Engine for the named tool and renders the
// result as the single text block tools/call is specified to return.
func (s *Server) dispatchTool(ctx context.Context, name string, args map[string]any) (CallToolResult, error) {
	switch name {
	case "search_docs":
		return s.callSearchDocs(ctx, args)
	case "get_snippets":
		return s.callGetSnippets(ctx, args)
	case "index_docs":
		return s.callIndexDocs(ctx, args)
	case "index_status":
		return s.callIndexStatus(ctx, args)
	default:
		return CallToolResult{}, fmt.Errorf("unknown tool %q", name)
	}
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argInt(args map[string]any, key string) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return 0
}

func argBool(args map[string]any, key string) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return false
}

func argStringSlice(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

func (s *Server) callSearchDocs(ctx context.Context, args map[string]any) (CallToolResult, error) {
	query := argString(args, "query")
	if query == "" {
		return CallToolResult{}, fmt.Errorf("query parameter is required and must be a non-empty string")
	}

	resp, err := s.engine.Search(ctx, engine.Query{
		Text:      query,
		DocsetIDs: argStringSlice(args, "docsetIds"),
		TopK:      argInt(args, "topK"),
	})
	if err != nil {
		return CallToolResult{}, err
	}
	return textResult(formatSearchResults(query, resp)), nil
}

func (s *Server) callGetSnippets(ctx context.Context, args map[string]any) (CallToolResult, error) {
	query := argString(args, "query")
	if query == "" {
		return CallToolResult{}, fmt.Errorf("query parameter is required and must be a non-empty string")
	}

	resp, err := s.engine.Search(ctx, engine.Query{
		Text:           query,
		DocsetIDs:      argStringSlice(args, "docsetIds"),
		TopK:           argInt(args, "topK"),
		MaxTotalChars:  argInt(args, "maxTotalChars"),
		FormatSnippets: true,
	})
	if err != nil {
		return CallToolResult{}, err
	}
	return textResult(formatSnippets(resp)), nil
}

func (s *Server) callIndexDocs(ctx context.Context, args map[string]any) (CallToolResult, error) {
	baseURL := argString(args, "baseUrl")
	seedSlug := argString(args, "seedSlug")
	if baseURL == "" || seedSlug == "" {
		return CallToolResult{}, fmt.Errorf("baseUrl and seedSlug parameters are required")
	}

	result, err := s.engine.IndexDocset(ctx, engine.IndexInput{
		BaseURL:     baseURL,
		SeedSlug:    seedSlug,
		Name:        argString(args, "name"),
		WaitForSeed: argBool(args, "waitForSeed"),
	})
	if err != nil {
		return CallToolResult{}, err
	}
	return textResult(fmt.Sprintf("Indexing started for docset %s (status: %s, seed indexed: %t)",
		result.DocsetID, result.Status, result.SeedIndexed)), nil
}

func (s *Server) callIndexStatus(ctx context.Context, args map[string]any) (CallToolResult, error) {
	docsetID := argString(args, "docsetId")

	var docsets []string
	if docsetID != "" {
		docsets = []string{docsetID}
	} else {
		all, err := s.engine.ListDocsets(ctx)
		if err != nil {
			return CallToolResult{}, err
		}
		for _, d := range all {
			docsets = append(docsets, d.ID)
		}
	}

	var sb strings.Builder
	for _, id := range docsets {
		status, err := s.engine.GetIndexStatus(ctx, id)
		if err != nil {
			return CallToolResult{}, err
		}
		fmt.Fprintf(&sb, "docset %s: %d chunks indexed, %d vectors stored\n", id, status.ChunkCount, status.VectorStats.VectorCount)
		byState := make(map[string]int, len(status.PagesByState))
		for state, count := range status.PagesByState {
			byState[string(state)] = count
		}
		states := make([]string, 0, len(byState))
		for state := range byState {
			states = append(states, state)
		}
		sort.Strings(states)
		for _, state := range states {
			fmt.Fprintf(&sb, "  %s: %d\n", state, byState[state])
		}
		if len(status.StuckPages) > 0 {
			fmt.Fprintf(&sb, "  stuck pages: %d\n", len(status.StuckPages))
		}
	}
	if sb.Len() == 0 {
		return textResult("no docsets indexed yet"), nil
	}
	return textResult(sb.String()), nil
}

func formatSearchResults(query string, resp *engine.SearchResponse) string {
	if resp == nil || len(resp.Results) == 0 {
		return fmt.Sprintf("No results for %q.", query)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Results for %q:\n\n", query)
	for i, r := range resp.Results {
		fmt.Fprintf(&sb, "%d. %s (%s)\n   score=%.4f\n   %s\n\n", i+1, r.Title, r.URL, r.Score, truncate(r.Content, 280))
	}
	return sb.String()
}

func formatSnippets(resp *engine.SearchResponse) string {
	if resp == nil || len(resp.Results) == 0 {
		return fmt.Sprintf("No snippets for %q.", resp.Query)
	}
	var sb strings.Builder
	for _, r := range resp.Results {
		if r.Snippet != nil {
			sb.WriteString(r.Snippet.Formatted)
			sb.WriteString("\n\n")
			continue
		}
		fmt.Fprintf(&sb, "## %s\n%s\n\n", r.Title, r.Content)
	}
	return sb.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
