package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/JagjeevanAK/mem-oracle/internal/engerr"
)

// DefaultBatchSize bounds how many texts a single remote call embeds,
// absent an explicit config override.
const DefaultBatchSize = 32

// requestBuilder produces the wire body for a batch of texts against a
// given model; each remote variant supplies its own.
type requestBuilder func(texts []string, model string) (body []byte, err error)

// responseParser extracts one vector per input text, in input order,
// from a remote provider's raw response body.
type responseParser func(respBody []byte, wantCount int) ([][]float32, error)

// remoteEmbedder is the shared core for openai/voyage/cohere: it posts a
// batch of texts as JSON with a bearer token, retries transient
// failures, and validates returned vector lengths.
type remoteEmbedder struct {
	name       string
	model      string
	apiBase    string
	apiKey     string
	dimensions int
	batchSize  int

	client      *http.Client
	buildReq    requestBuilder
	parseResp   responseParser
	path        string
	closed      bool
}

var _ Embedder = (*remoteEmbedder)(nil)

func newRemoteEmbedder(name, model, apiBase, apiKey, path string, dimensions, batchSize int, build requestBuilder, parse responseParser) *remoteEmbedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &remoteEmbedder{
		name:       name,
		model:      model,
		apiBase:    apiBase,
		apiKey:     apiKey,
		dimensions: dimensions,
		batchSize:  batchSize,
		client:     &http.Client{Timeout: 30 * time.Second},
		buildReq:   build,
		parseResp:  parse,
		path:       path,
	}
}

func (e *remoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *remoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if e.closed {
		return nil, engerr.ProviderError(fmt.Sprintf("%s embedder is closed", e.name), nil)
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vecs, err := e.embedBatchWithRetry(ctx, batch)
		if err != nil {
			return nil, err
		}
		results = append(results, vecs...)
	}
	return results, nil
}

// embedBatchWithRetry retries only transport failures and 429/5xx HTTP
// statuses (per engerr.IsRetryable); auth errors, other 4xx statuses,
// and bad-response/dimension errors fail fast since retrying them cannot
// succeed.
func (e *remoteEmbedder) embedBatchWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	cfg := engerr.DefaultRetryConfig()
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		vecs, err := e.doEmbedBatch(ctx, batch)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if !engerr.IsRetryable(err) || attempt >= cfg.MaxRetries {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return nil, lastErr
}

func (e *remoteEmbedder) doEmbedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	body, err := e.buildReq(batch, e.model)
	if err != nil {
		return nil, engerr.ProviderError(fmt.Sprintf("%s: build request", e.name), err)
	}

	url := e.apiBase + e.path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, engerr.ProviderError(fmt.Sprintf("%s: build HTTP request", e.name), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, engerr.Transport(fmt.Sprintf("%s: transport error", e.name), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, engerr.Transport(fmt.Sprintf("%s: read response", e.name), err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, engerr.HTTPStatus(resp.StatusCode, url).WithDetail("body", truncate(string(respBody), 500))
	}

	vecs, err := e.parseResp(respBody, len(batch))
	if err != nil {
		return nil, engerr.ProviderError(fmt.Sprintf("%s: parse response", e.name), err)
	}
	if len(vecs) != len(batch) {
		return nil, engerr.ProviderError(fmt.Sprintf("%s: expected %d vectors, got %d", e.name, len(batch), len(vecs)), nil)
	}
	for _, v := range vecs {
		if len(v) != e.dimensions {
			return nil, engerr.DimensionMismatch(e.dimensions, len(v))
		}
	}
	return vecs, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (e *remoteEmbedder) Dimensions() int   { return e.dimensions }
func (e *remoteEmbedder) ModelName() string { return e.name + ":" + e.model }
func (e *remoteEmbedder) Available(_ context.Context) bool {
	return !e.closed
}
func (e *remoteEmbedder) Close() error {
	e.closed = true
	return nil
}

// --- OpenAI ---

const openAIDefaultModel = "text-embedding-3-small"
const openAIDefaultDimensions = 1536
const openAIDefaultAPIBase = "https://api.openai.com/v1"

type openAIRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewOpenAIEmbedder builds an embedder backed by OpenAI's embeddings
// endpoint. Responses are re-sorted by their `index` field before being
// returned, since OpenAI does not guarantee response order matches
// request order.
func NewOpenAIEmbedder(model, apiBase, apiKey string, batchSize int) Embedder {
	if model == "" {
		model = openAIDefaultModel
	}
	if apiBase == "" {
		apiBase = openAIDefaultAPIBase
	}
	build := func(texts []string, model string) ([]byte, error) {
		return json.Marshal(openAIRequest{Model: model, Input: texts})
	}
	parse := func(raw []byte, wantCount int) ([][]float32, error) {
		var r openAIResponse
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		sort.Slice(r.Data, func(i, j int) bool { return r.Data[i].Index < r.Data[j].Index })
		out := make([][]float32, len(r.Data))
		for i, d := range r.Data {
			out[i] = d.Embedding
		}
		return out, nil
	}
	return newRemoteEmbedder("openai", model, apiBase, apiKey, "/embeddings", openAIDefaultDimensions, batchSize, build, parse)
}

// --- Voyage ---

const voyageDefaultModel = "voyage-3"
const voyageDefaultDimensions = 1024
const voyageDefaultAPIBase = "https://api.voyageai.com/v1"

type voyageRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type voyageResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewVoyageEmbedder builds an embedder backed by Voyage AI's embeddings
// endpoint.
func NewVoyageEmbedder(model, apiBase, apiKey string, batchSize int) Embedder {
	if model == "" {
		model = voyageDefaultModel
	}
	if apiBase == "" {
		apiBase = voyageDefaultAPIBase
	}
	build := func(texts []string, model string) ([]byte, error) {
		return json.Marshal(voyageRequest{Model: model, Input: texts})
	}
	parse := func(raw []byte, wantCount int) ([][]float32, error) {
		var r voyageResponse
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		out := make([][]float32, len(r.Data))
		for i, d := range r.Data {
			out[i] = d.Embedding
		}
		return out, nil
	}
	return newRemoteEmbedder("voyage", model, apiBase, apiKey, "/embeddings", voyageDefaultDimensions, batchSize, build, parse)
}

// --- Cohere ---

const cohereDefaultModel = "embed-english-v3.0"
const cohereDefaultDimensions = 1024
const cohereDefaultAPIBase = "https://api.cohere.com/v1"

type cohereRequest struct {
	Model     string   `json:"model"`
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
}

type cohereResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewCohereEmbedder builds an embedder backed by Cohere's embed endpoint.
func NewCohereEmbedder(model, apiBase, apiKey string, batchSize int) Embedder {
	if model == "" {
		model = cohereDefaultModel
	}
	if apiBase == "" {
		apiBase = cohereDefaultAPIBase
	}
	build := func(texts []string, model string) ([]byte, error) {
		return json.Marshal(cohereRequest{Model: model, Texts: texts, InputType: "search_document"})
	}
	parse := func(raw []byte, wantCount int) ([][]float32, error) {
		var r cohereResponse
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		return r.Embeddings, nil
	}
	return newRemoteEmbedder("cohere", model, apiBase, apiKey, "/embed", cohereDefaultDimensions, batchSize, build, parse)
}
