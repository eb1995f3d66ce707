package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// FlatIndex is an exact brute-force vector index. Every search scans all
// stored vectors, so results are ground truth for recall measurements.
// Suitable for corpora up to the low hundreds of thousands of chunks.
type FlatIndex struct {
	mu      sync.RWMutex
	dims    int
	vectors map[string][]float32
	closed  bool
}

// NewFlatIndex creates an exact vector index with dimensionality dims.
func NewFlatIndex(dims int) (*FlatIndex, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("flat index dimensions must be positive, got %d", dims)
	}
	return &FlatIndex{
		dims:    dims,
		vectors: make(map[string][]float32),
	}, nil
}

// Upsert inserts or replaces the vector for a chunk. The stored copy is
// unit-normalized so Search reduces to dot products.
func (f *FlatIndex) Upsert(id string, vector []float32) error {
	if len(vector) != f.dims {
		return dimensionError(f.dims, len(vector))
	}

	normalized := make([]float32, len(vector))
	copy(normalized, vector)
	normalizeInPlace(normalized)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("index is closed")
	}
	f.vectors[id] = normalized
	return nil
}

// Remove deletes the entry for a chunk. No-op when absent.
func (f *FlatIndex) Remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vectors, id)
}

// Search scans all vectors and returns the k most similar.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]VectorHit, error) {
	if len(query) != f.dims {
		return nil, dimensionError(f.dims, len(query))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, fmt.Errorf("index is closed")
	}

	hits := make([]VectorHit, 0, len(f.vectors))
	for id, vec := range f.vectors {
		hits = append(hits, VectorHit{ID: id, Similarity: cosineSimilarity(normalized, vec)})
	}
	sortVectorHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Dimensions returns the index dimensionality.
func (f *FlatIndex) Dimensions() int { return f.dims }

// Len returns the number of indexed vectors.
func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dump exports the stored (normalized) vectors for snapshotting.
func (f *FlatIndex) Dump() map[string][]float32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string][]float32, len(f.vectors))
	for id, vec := range f.vectors {
		cp := make([]float32, len(vec))
		copy(cp, vec)
		out[id] = cp
	}
	return out
}

// Close releases resources.
func (f *FlatIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.vectors = nil
	return nil
}

// Verify interface implementation
var _ VectorIndex = (*FlatIndex)(nil)

// cosineSimilarity computes similarity of two unit vectors, mapped from
// the dot product in [-1,1] to [0,1].
func cosineSimilarity(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return (dot + 1) / 2
}

// sortVectorHits orders hits by descending similarity, ties by ascending ID.
func sortVectorHits(hits []VectorHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})
}

// normalizeInPlace scales a vector to unit length in place.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
