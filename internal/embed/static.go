package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
)

// Feature weights for vector generation. Tokens carry most of the signal;
// character trigrams add robustness to morphology ("learning" vs "learn").
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// wordRegex matches alphanumeric token runs.
var wordRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// StaticEmbedder generates embeddings by hashing tokens and character
// n-grams into a fixed number of buckets. It needs no network or model
// download, is fully deterministic, and trades semantic quality for speed.
// It serves as the default backend and as the test embedder.
type StaticEmbedder struct {
	dims   int
	mu     sync.RWMutex
	closed bool
}

// NewStaticEmbedder creates a static embedder with the given dimensionality.
// Non-positive dims falls back to DefaultDimensions.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed generates the embedding for a single text.
// Empty input yields the zero vector.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, e.dims), nil
	}
	return normalizeVector(e.generateVector(trimmed)), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimensions returns the embedding dimensionality.
func (e *StaticEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return fmt.Sprintf("static-%d", e.dims)
}

// Available reports whether the embedder is ready.
func (e *StaticEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Verify interface implementation
var _ Embedder = (*StaticEmbedder)(nil)

// generateVector accumulates hashed token and trigram features.
func (e *StaticEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, e.dims)

	for _, word := range wordRegex.FindAllString(text, -1) {
		token := strings.ToLower(word)
		vector[hashToIndex(token, e.dims)] += tokenWeight
	}

	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	for _, ngram := range extractNgrams(normalized, ngramSize) {
		vector[hashToIndex(ngram, e.dims)] += ngramWeight
	}

	return vector
}

// hashToIndex maps a feature to a bucket via FNV-1a.
func hashToIndex(s string, dims int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(dims))
}

// extractNgrams returns all character n-grams of the given size.
func extractNgrams(s string, n int) []string {
	if len(s) < n {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	ngrams := make([]string, 0, len(s)-n+1)
	for i := 0; i+n <= len(s); i++ {
		ngrams = append(ngrams, s[i:i+n])
	}
	return ngrams
}
