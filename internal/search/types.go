// Package search implements hybrid query execution: concurrent vector and
// lexical sub-searches fused into a single ranked result list.
package search

import (
	"time"

	perrors "github.com/pinpoint-search/pinpoint/internal/errors"
)

// Default search parameters.
const (
	DefaultK             = 10
	DefaultVectorWeight  = 0.5
	DefaultLexicalWeight = 0.5
	DefaultTimeout       = 2 * time.Second
	DefaultTTL           = 60 * time.Second
)

// Weights balances the two retrieval modes in fusion. They need not sum
// to 1; (1,0) degrades to pure vector search, (0,1) to pure keyword search.
type Weights struct {
	Vector  float64 `yaml:"vector"`
	Lexical float64 `yaml:"lexical"`
}

// Params controls a single search call.
type Params struct {
	// K is the maximum number of fused results to return.
	K int

	// Weights balances vector and lexical scores in fusion.
	Weights Weights

	// TTL bounds how long the response may be served from cache.
	TTL time.Duration

	// Timeout bounds the whole query including both sub-searches.
	Timeout time.Duration
}

// DefaultParams returns the default search parameters.
func DefaultParams() Params {
	return Params{
		K:       DefaultK,
		Weights: Weights{Vector: DefaultVectorWeight, Lexical: DefaultLexicalWeight},
		TTL:     DefaultTTL,
		Timeout: DefaultTimeout,
	}
}

// withDefaults fills zero fields from DefaultParams.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.K == 0 {
		p.K = d.K
	}
	if p.Weights.Vector == 0 && p.Weights.Lexical == 0 {
		p.Weights = d.Weights
	}
	if p.TTL == 0 {
		p.TTL = d.TTL
	}
	if p.Timeout == 0 {
		p.Timeout = d.Timeout
	}
	return p
}

// Validate rejects parameters outside the supported ranges.
func (p Params) Validate() error {
	if p.K <= 0 {
		return perrors.InvalidConfig("k must be positive, got %d", p.K)
	}
	if p.Weights.Vector < 0 || p.Weights.Lexical < 0 {
		return perrors.InvalidConfig("weights must be non-negative, got vector=%g lexical=%g",
			p.Weights.Vector, p.Weights.Lexical)
	}
	if p.Weights.Vector == 0 && p.Weights.Lexical == 0 {
		return perrors.InvalidConfig("at least one weight must be positive")
	}
	if p.Timeout <= 0 {
		return perrors.InvalidConfig("timeout must be positive, got %s", p.Timeout)
	}
	return nil
}

// Result is one fused search hit. VectorScore and LexicalScore are the
// per-list normalized scores that entered fusion; a side the chunk was
// absent from reports 0.
type Result struct {
	ChunkID      string  `json:"chunk_id"`
	FusedScore   float64 `json:"fused_score"`
	VectorScore  float64 `json:"vector_score"`
	LexicalScore float64 `json:"lexical_score"`
	Rank         int     `json:"rank"`
	Text         string  `json:"text,omitempty"`
}

// Response is a complete answer to one search call.
type Response struct {
	Results []Result `json:"results"`

	// Partial marks a response fused from fewer sub-searches than
	// configured because the query timeout fired.
	Partial bool `json:"partial"`

	// Degraded marks a response produced while one backend was
	// unavailable (single-mode fallback).
	Degraded bool `json:"degraded"`

	// Cached marks a response served from the query cache.
	Cached bool `json:"cached"`

	// Took is the wall-clock duration of the query.
	Took time.Duration `json:"took"`
}
