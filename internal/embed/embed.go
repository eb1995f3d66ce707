// Package embed defines the embedding capability consumed by the retrieval
// core and provides the built-in backends: a deterministic hash-based
// embedder, an LRU-cached wrapper, and a retrying wrapper. Concrete
// embedders are swappable implementations behind the Embedder interface.
package embed

import (
	"context"
	"math"
)

// DefaultDimensions is the dimensionality of the static embedder.
const DefaultDimensions = 256

// Embedder maps text to a fixed-length dense vector.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimensionality D.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the embedder is ready to serve.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector scales a vector to unit length. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
