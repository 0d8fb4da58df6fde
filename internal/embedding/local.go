package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
)

// LocalDimensions is the fixed dimensionality of the local, deterministic
// embedding variant.
const LocalDimensions = 384

// LocalEmbedder is a deterministic, network-free embedder: it lowercases,
// strips punctuation, tokenizes on whitespace, drops short tokens,
// weights each surviving token by its term frequency, and projects it
// into a fixed-width vector by hashing the token's characters into an
// index and a sign bit.
type LocalEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*LocalEmbedder)(nil)

var tokenRegex = regexp.MustCompile(`[a-z0-9]+`)

// NewLocalEmbedder creates a local embedder.
func NewLocalEmbedder() *LocalEmbedder {
	return &LocalEmbedder{}
}

// Embed generates the embedding for a single text.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	vector := make([]float32, LocalDimensions)

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return vector, nil
	}

	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	total := float64(len(tokens))

	for token, count := range counts {
		tf := float64(count) / total
		index, sign := hashTokenToIndexAndSign(token, LocalDimensions)
		vector[index] += float32(tf) * sign
	}

	return normalizeVector(vector), nil
}

// tokenize lowercases, strips punctuation, and drops tokens of length <= 2.
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	words := tokenRegex.FindAllString(lower, -1)

	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) > 2 {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// hashTokenToIndexAndSign hashes a token's characters into a [0,size)
// index and a +1/-1 sign, using independent hash seeds so the index and
// sign bit don't collapse to a single degree of freedom.
func hashTokenToIndexAndSign(token string, size int) (int, float32) {
	indexHash := fnv.New64a()
	_, _ = indexHash.Write([]byte(token))
	index := int(indexHash.Sum64() % uint64(size))

	signHash := fnv.New64()
	_, _ = signHash.Write([]byte(token))
	if signHash.Sum64()%2 == 0 {
		return index, 1
	}
	return index, -1
}

// EmbedBatch generates embeddings for multiple texts, one per input.
func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns LocalDimensions.
func (e *LocalEmbedder) Dimensions() int { return LocalDimensions }

// ModelName identifies this provider.
func (e *LocalEmbedder) ModelName() string { return "local" }

// Available is always true until Close.
func (e *LocalEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close marks the embedder closed; subsequent Embed calls fail.
func (e *LocalEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
