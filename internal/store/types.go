// Package store provides the two retrieval indices: a dense vector index
// (exact flat scan or approximate HNSW graph) and a lexical inverted index
// with BM25 scoring (in-memory postings or Bleve-backed). Both are keyed by
// chunk ID, safe for concurrent use, and atomic per chunk: a reader never
// observes a partially written vector or posting set.
package store

import (
	"context"

	perrors "github.com/pinpoint-search/pinpoint/internal/errors"
)

// VectorHit is a single vector search result.
type VectorHit struct {
	ID         string  // Chunk ID
	Similarity float64 // Normalized cosine similarity in [0,1]
}

// LexicalHit is a single lexical search result.
type LexicalHit struct {
	ID    string  // Chunk ID
	Score float64 // BM25 score (unbounded, higher is better)
}

// VectorIndex stores chunk embeddings and answers nearest-neighbor queries.
//
// Vectors are unit-normalized at insertion so cosine similarity reduces to
// a dot product. Upserts replace the entry under the same chunk ID; entries
// are never mutated in place. Mutations to the same chunk ID serialize by
// arrival order (last write wins).
type VectorIndex interface {
	// Upsert inserts or replaces the vector for a chunk. Returns a
	// DimensionMismatchError and leaves the index unchanged when
	// len(vector) differs from the index dimensionality.
	Upsert(id string, vector []float32) error

	// Remove deletes the entry for a chunk. No-op when absent.
	Remove(id string)

	// Search returns up to k hits sorted by descending similarity,
	// ties broken by ascending chunk ID.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Dimensions returns the index dimensionality D.
	Dimensions() int

	// Len returns the number of indexed vectors.
	Len() int

	// Close releases resources.
	Close() error
}

// LexicalIndex is an inverted index over normalized tokens with term
// frequencies, answering BM25-ranked keyword lookups.
//
// Upserting a chunk replaces any prior postings for that chunk ID; a chunk
// never accumulates duplicate postings across re-ingestions.
type LexicalIndex interface {
	// Upsert replaces the postings for a chunk with the given token
	// frequency map.
	Upsert(id string, tokens map[string]int) error

	// Remove deletes all postings for a chunk. No-op when absent.
	Remove(id string)

	// Search returns up to k hits for the query tokens, sorted by
	// descending score, ties broken by ascending chunk ID. Chunks
	// sharing no token with the query are excluded, not scored zero.
	Search(ctx context.Context, queryTokens []string, k int) ([]LexicalHit, error)

	// Len returns the number of indexed chunks.
	Len() int

	// Close releases resources.
	Close() error
}

// BM25Params are the standard BM25 tuning parameters.
type BM25Params struct {
	// K1 controls term frequency saturation (default 1.2).
	K1 float64

	// B controls document length normalization (default 0.75).
	B float64
}

// DefaultBM25Params returns the conventional BM25 defaults.
func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.2, B: 0.75}
}

// dimensionError builds the shared dimension mismatch error.
func dimensionError(expected, got int) error {
	return &perrors.DimensionMismatchError{Expected: expected, Got: got}
}
