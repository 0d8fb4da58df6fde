// Package embedding provides the C7 Embedding Provider: a polymorphic
// capability over a deterministic local variant and a shared remote core
// for openai/voyage/cohere, both producing unit-norm vectors.
package embedding

import (
	"context"
	"math"
)

// Embedder generates vector embeddings for text, preserving input order
// and failing with a *engerr.Error (KindProviderError) on auth, transport,
// or malformed-response conditions for remote variants.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, one per input,
	// in the same order as texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed embedding dimension this provider
	// declares.
	Dimensions() int

	// ModelName identifies the underlying model/provider combination.
	ModelName() string

	// Available reports whether the provider is currently usable.
	Available(ctx context.Context) bool

	// Close releases any resources held by the provider.
	Close() error
}

// normalizeVector L2-normalizes v in place into a new slice; a zero
// vector is returned unchanged (there is nothing to normalize).
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return v
	}

	magnitude := math.Sqrt(sumSquares)
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}
