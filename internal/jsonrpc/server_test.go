package jsonrpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"net/http"
	"testing"

	"github.com/JagjeevanAK/mem-oracle/internal/cache"
	"github.com/JagjeevanAK/mem-oracle/internal/config"
	"github.com/JagjeevanAK/mem-oracle/internal/embedding"
	"github.com/JagjeevanAK/mem-oracle/internal/engine"
	"github.com/JagjeevanAK/mem-oracle/internal/fetch"
	"github.com/JagjeevanAK/mem-oracle/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	metadata, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = metadata.Close() })

	vectors := store.NewFlatVectorStore(t.TempDir())
	cacheStore := cache.New(t.TempDir())
	fetcher := fetch.New(cacheStore)
	embedder := embedding.NewLocalEmbedder()
	cfg := config.Default()
	cfg.Crawler.MaxPages = 10
	cfg.Crawler.Concurrency = 1
	cfg.Crawler.RequestDelay = 1

	log := slog.New(slog.NewTextHandler(discardWriter{}, nil))
	e := engine.New(metadata, vectors, cacheStore, fetcher, embedder, cfg, log)
	return New(e, log)
}

func runRequests(t *testing.T, s *Server, lines ...string) []Response {
	t.Helper()
	in := bytes.NewBufferString("")
	for _, l := range lines {
		in.WriteString(l)
		in.WriteString("\n")
	}
	var out bytes.Buffer
	err := s.Serve(context.Background(), in, &out)
	require.NoError(t, err)

	var responses []Response
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp Response
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		responses = append(responses, resp)
	}
	return responses
}

func TestServe_Initialize_ReturnsServerInfo(t *testing.T) {
	s := newTestServer(t)
	responses := runRequests(t, s, `{"jsonrpc":"2.0","id":"1","method":"initialize"}`)
	require.Len(t, responses, 1)
	assert.Nil(t, responses[0].Error)

	resultBytes, err := json.Marshal(responses[0].Result)
	require.NoError(t, err)
	var result InitializeResult
	require.NoError(t, json.Unmarshal(resultBytes, &result))
	assert.Equal(t, "mem-oracle", result.ServerInfo.Name)
}

func TestServe_ToolsList_EnumeratesAllFourTools(t *testing.T) {
	s := newTestServer(t)
	responses := runRequests(t, s, `{"jsonrpc":"2.0","id":"1","method":"tools/list"}`)
	require.Len(t, responses, 1)

	resultBytes, err := json.Marshal(responses[0].Result)
	require.NoError(t, err)
	var result ListToolsResult
	require.NoError(t, json.Unmarshal(resultBytes, &result))

	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"search_docs", "get_snippets", "index_docs", "index_status"}, names)
}

func TestServe_UnknownMethod_ReturnsMethodNotFound(t *testing.T) {
	s := newTestServer(t)
	responses := runRequests(t, s, `{"jsonrpc":"2.0","id":"1","method":"bogus"}`)
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, ErrCodeMethodNotFound, responses[0].Error.Code)
}

func TestServe_ToolsCall_SearchDocsRejectsEmptyQuery(t *testing.T) {
	s := newTestServer(t)
	responses := runRequests(t, s, `{"jsonrpc":"2.0","id":"1","method":"tools/call","params":{"name":"search_docs","arguments":{}}}`)
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, ErrCodeInternalError, responses[0].Error.Code)
}

func TestServe_ToolsCall_IndexDocsThenSearchDocs_RoundTrips(t *testing.T) {
	s := newTestServer(t)

	docsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Intro</title></head><body>
			<h1>Introduction</h1>
			<p>This page explains the basics of the documentation oracle in enough prose to survive chunking.</p>
		</body></html>`))
	}))
	defer docsServer.Close()

	indexParams, err := json.Marshal(CallToolParams{
		Name: "index_docs",
		Arguments: map[string]any{
			"baseUrl":     docsServer.URL,
			"seedSlug":    "/intro",
			"waitForSeed": true,
		},
	})
	require.NoError(t, err)

	indexReq, err := json.Marshal(Request{JSONRPC: "2.0", ID: json.RawMessage(`"1"`), Method: "tools/call", Params: indexParams})
	require.NoError(t, err)

	searchParams, err := json.Marshal(CallToolParams{
		Name:      "search_docs",
		Arguments: map[string]any{"query": "documentation oracle basics"},
	})
	require.NoError(t, err)
	searchReq, err := json.Marshal(Request{JSONRPC: "2.0", ID: json.RawMessage(`"2"`), Method: "tools/call", Params: searchParams})
	require.NoError(t, err)

	responses := runRequests(t, s, string(indexReq), string(searchReq))
	require.Len(t, responses, 2)
	require.Nil(t, responses[0].Error)
	require.Nil(t, responses[1].Error)

	searchResultBytes, err := json.Marshal(responses[1].Result)
	require.NoError(t, err)
	var result CallToolResult
	require.NoError(t, json.Unmarshal(searchResultBytes, &result))
	require.Len(t, result.Content, 1)
	assert.Contains(t, result.Content[0].Text, "documentation oracle basics")
}
