package store

import (
	"fmt"
)

// Vector index backends.
const (
	VectorBackendFlat = "flat"
	VectorBackendHNSW = "hnsw"
)

// Lexical index backends.
const (
	LexicalBackendMemory = "memory"
	LexicalBackendBleve  = "bleve"
)

// VectorOptions selects and tunes the vector index backend.
type VectorOptions struct {
	Backend    string
	Dimensions int

	// HNSW applies only to the hnsw backend. Zero values take defaults.
	HNSW HNSWConfig
}

// LexicalOptions selects and tunes the lexical index backend.
type LexicalOptions struct {
	Backend string
	Params  BM25Params

	// Path is the on-disk location for the bleve backend. Empty means
	// in-memory.
	Path string
}

// NewVectorIndex creates the configured vector index backend. An empty
// backend name selects flat.
func NewVectorIndex(opts VectorOptions) (VectorIndex, error) {
	switch opts.Backend {
	case "", VectorBackendFlat:
		return NewFlatIndex(opts.Dimensions)
	case VectorBackendHNSW:
		cfg := opts.HNSW
		cfg.Dimensions = opts.Dimensions
		return NewHNSWIndex(cfg)
	default:
		return nil, fmt.Errorf("unknown vector backend %q (want %q or %q)",
			opts.Backend, VectorBackendFlat, VectorBackendHNSW)
	}
}

// NewLexicalIndex creates the configured lexical index backend. An empty
// backend name selects memory.
func NewLexicalIndex(opts LexicalOptions) (LexicalIndex, error) {
	switch opts.Backend {
	case "", LexicalBackendMemory:
		return NewMemoryLexicalIndex(opts.Params), nil
	case LexicalBackendBleve:
		return NewBleveLexicalIndex(opts.Path)
	default:
		return nil, fmt.Errorf("unknown lexical backend %q (want %q or %q)",
			opts.Backend, LexicalBackendMemory, LexicalBackendBleve)
	}
}
