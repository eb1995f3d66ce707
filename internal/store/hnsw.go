package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWConfig tunes the approximate vector index.
type HNSWConfig struct {
	// Dimensions is the vector dimensionality D.
	Dimensions int

	// M is the maximum connections per graph layer (default 16).
	M int

	// EfSearch is the query-time search width (default 40).
	EfSearch int

	// RecallThreshold is the minimum expected recall against a
	// brute-force scan (default 0.95). Recorded for verification, not
	// enforced at query time.
	RecallThreshold float64
}

// DefaultHNSWConfig returns defaults for the given dimensionality.
func DefaultHNSWConfig(dims int) HNSWConfig {
	return HNSWConfig{
		Dimensions:      dims,
		M:               16,
		EfSearch:        40,
		RecallThreshold: 0.95,
	}
}

// HNSWIndex is an approximate vector index backed by a coder/hnsw graph.
//
// The graph keys nodes by uint64, so the index maintains a string-to-key
// mapping. Deletion is lazy: the node stays in the graph but is dropped
// from the mapping and filtered out of results, which sidesteps graph
// repair on removal of the most recent node.
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config HNSWConfig

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

// NewHNSWIndex creates an approximate vector index.
func NewHNSWIndex(cfg HNSWConfig) (*HNSWIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("hnsw dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 40
	}
	if cfg.RecallThreshold == 0 {
		cfg.RecallThreshold = 0.95
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch

	return &HNSWIndex{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}, nil
}

// Upsert inserts or replaces the vector for a chunk. Replacement orphans
// the old graph node (lazy deletion) and inserts a fresh one.
func (h *HNSWIndex) Upsert(id string, vector []float32) error {
	if len(vector) != h.config.Dimensions {
		return dimensionError(h.config.Dimensions, len(vector))
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)
	normalizeInPlace(vec)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("index is closed")
	}

	if oldKey, exists := h.idMap[id]; exists {
		delete(h.keyMap, oldKey)
		delete(h.idMap, id)
	}

	key := h.nextKey
	h.nextKey++
	h.graph.Add(hnsw.MakeNode(key, vec))
	h.idMap[id] = key
	h.keyMap[key] = id
	return nil
}

// Remove lazily deletes the entry for a chunk. No-op when absent.
func (h *HNSWIndex) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if key, exists := h.idMap[id]; exists {
		delete(h.keyMap, key)
		delete(h.idMap, id)
	}
}

// Search returns up to k approximate nearest neighbors. Orphaned nodes are
// filtered, so the graph is oversearched to compensate.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int) ([]VectorHit, error) {
	if len(query) != h.config.Dimensions {
		return nil, dimensionError(h.config.Dimensions, len(query))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if h.graph.Len() == 0 || len(h.idMap) == 0 {
		return []VectorHit{}, nil
	}

	// Oversearch by the orphan count so lazy deletions cannot starve
	// the result list.
	orphans := h.graph.Len() - len(h.idMap)
	nodes := h.graph.Search(normalized, k+orphans)

	hits := make([]VectorHit, 0, len(nodes))
	for _, node := range nodes {
		id, live := h.keyMap[node.Key]
		if !live {
			continue
		}
		distance := h.graph.Distance(normalized, node.Value)
		hits = append(hits, VectorHit{
			ID:         id,
			Similarity: 1 - float64(distance)/2,
		})
	}
	sortVectorHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Dimensions returns the index dimensionality.
func (h *HNSWIndex) Dimensions() int { return h.config.Dimensions }

// Len returns the number of live vectors (orphans excluded).
func (h *HNSWIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idMap)
}

// Orphans returns the count of lazily deleted graph nodes, used to decide
// when a rebuild is worthwhile.
func (h *HNSWIndex) Orphans() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0
	}
	return h.graph.Len() - len(h.idMap)
}

// Dump exports the live (normalized) vectors for snapshotting. Orphaned
// graph nodes are excluded.
func (h *HNSWIndex) Dump() map[string][]float32 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string][]float32, len(h.idMap))
	for id, key := range h.idMap {
		vec, ok := h.graph.Lookup(key)
		if !ok {
			continue
		}
		cp := make([]float32, len(vec))
		copy(cp, vec)
		out[id] = cp
	}
	return out
}

// Close releases resources.
func (h *HNSWIndex) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.graph = nil
	return nil
}

// Verify interface implementation
var _ VectorIndex = (*HNSWIndex)(nil)
