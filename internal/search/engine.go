package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pinpoint-search/pinpoint/internal/cache"
	"github.com/pinpoint-search/pinpoint/internal/embed"
	perrors "github.com/pinpoint-search/pinpoint/internal/errors"
	"github.com/pinpoint-search/pinpoint/internal/store"
)

// TextResolver looks up display text for a chunk ID. Resolution is an
// external lookup and never participates in scoring.
type TextResolver interface {
	ChunkText(ctx context.Context, chunkID string) (string, error)
}

// Engine is the search orchestrator. It owns cache lookup, the concurrent
// sub-search fan-out, timeout policy, fusion, and result shaping.
type Engine struct {
	embedder embed.Embedder
	vector   store.VectorIndex
	lexical  store.LexicalIndex
	fuser    Fuser
	cache    *cache.QueryCache[Response]
	version  *cache.Version
	resolver TextResolver
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFuser overrides the fusion scheme (default WeightedFuser).
func WithFuser(f Fuser) Option {
	return func(e *Engine) { e.fuser = f }
}

// WithCache attaches a query cache. Without one every query recomputes.
func WithCache(c *cache.QueryCache[Response]) Option {
	return func(e *Engine) { e.cache = c }
}

// WithResolver attaches a chunk text resolver for result display.
func WithResolver(r TextResolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a search engine over the given backends. The version
// counter must be the one bumped by ingestion so cached responses are
// scoped to the corpus snapshot they were computed against.
func NewEngine(embedder embed.Embedder, vector store.VectorIndex, lexical store.LexicalIndex, version *cache.Version, opts ...Option) *Engine {
	e := &Engine{
		embedder: embedder,
		vector:   vector,
		lexical:  lexical,
		fuser:    WeightedFuser{},
		version:  version,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// legResult carries one sub-search's outcome across the join.
type legResult[T any] struct {
	hits T
	err  error
}

// Search executes a hybrid query.
//
// The two sub-searches run concurrently and are joined under the query
// timeout. A single unavailable backend degrades the query to the other
// mode with the Degraded marker; a timeout with one side finished fuses
// what completed and sets Partial. Only complete, non-degraded responses
// are cached.
func (e *Engine) Search(ctx context.Context, query string, params Params) (Response, error) {
	start := time.Now()
	params = params.withDefaults()
	if err := params.Validate(); err != nil {
		return Response{}, err
	}

	// Snapshot the corpus version before the cache lookup so a mutation
	// committing mid-query can only cause a miss, never a stale hit.
	version := e.version.Current()
	key := cache.Key(query, version, fmt.Sprintf("k=%d wv=%g wl=%g", params.K, params.Weights.Vector, params.Weights.Lexical))
	if e.cache != nil {
		if resp, ok := e.cache.Get(key); ok {
			resp.Cached = true
			resp.Took = time.Since(start)
			return resp, nil
		}
	}

	queryCtx, cancel := context.WithTimeout(ctx, params.Timeout)
	defer cancel()

	// Fetch more than K per leg so fusion has candidates that rank well
	// on one side only.
	legK := params.K * 2

	vectorCh := make(chan legResult[[]store.VectorHit], 1)
	lexicalCh := make(chan legResult[[]store.LexicalHit], 1)

	go func() {
		hits, err := e.vectorSearch(queryCtx, query, legK)
		vectorCh <- legResult[[]store.VectorHit]{hits: hits, err: err}
	}()
	go func() {
		hits, err := e.lexicalSearch(queryCtx, query, legK)
		lexicalCh <- legResult[[]store.LexicalHit]{hits: hits, err: err}
	}()

	var (
		vectorRes   legResult[[]store.VectorHit]
		lexicalRes  legResult[[]store.LexicalHit]
		vectorDone  bool
		lexicalDone bool
		timedOut    bool
	)
	for !(vectorDone && lexicalDone) && !timedOut {
		select {
		case vectorRes = <-vectorCh:
			vectorDone = true
		case lexicalRes = <-lexicalCh:
			lexicalDone = true
		case <-queryCtx.Done():
			timedOut = true
		}
	}

	vectorOK := vectorDone && vectorRes.err == nil
	lexicalOK := lexicalDone && lexicalRes.err == nil

	switch {
	case !vectorOK && !lexicalOK:
		if timedOut {
			return Response{}, fmt.Errorf("%w: %w before any sub-search completed (%s)",
				perrors.ErrSearchUnavailable, perrors.ErrSearchTimeout, params.Timeout)
		}
		return Response{}, fmt.Errorf("%w: vector: %v; lexical: %v",
			perrors.ErrSearchUnavailable, vectorRes.err, lexicalRes.err)
	case !vectorOK:
		if vectorDone {
			e.logger.Warn("vector search unavailable, serving lexical only",
				"error", vectorRes.err)
		}
		vectorRes.hits = nil
	case !lexicalOK:
		if lexicalDone {
			e.logger.Warn("lexical search unavailable, serving vector only",
				"error", lexicalRes.err)
		}
		lexicalRes.hits = nil
	}

	resp := Response{
		Results: e.fuser.Fuse(vectorRes.hits, lexicalRes.hits, params.Weights, params.K),
		// Partial means a leg was cut off by the timeout; Degraded means
		// a leg completed but reported its backend down.
		Partial:  timedOut && (!vectorDone || !lexicalDone),
		Degraded: (vectorDone && vectorRes.err != nil) || (lexicalDone && lexicalRes.err != nil),
	}

	e.resolveTexts(ctx, resp.Results)

	if e.cache != nil && !resp.Partial && !resp.Degraded {
		e.cache.Put(key, resp, params.TTL, version)
	}

	resp.Took = time.Since(start)
	e.logger.Debug("search complete",
		"query", query,
		"results", len(resp.Results),
		"partial", resp.Partial,
		"degraded", resp.Degraded,
		"took", resp.Took)
	return resp, nil
}

// vectorSearch embeds the query and searches the vector index.
func (e *Engine) vectorSearch(ctx context.Context, query string, k int) ([]store.VectorHit, error) {
	if !e.embedder.Available(ctx) {
		return nil, perrors.ErrEmbeddingUnavailable
	}
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", perrors.ErrEmbeddingUnavailable, err)
	}
	return e.vector.Search(ctx, vec, k)
}

// lexicalSearch tokenizes the query and searches the lexical index.
func (e *Engine) lexicalSearch(ctx context.Context, query string, k int) ([]store.LexicalHit, error) {
	tokens := store.TokenizeQuery(query)
	hits, err := e.lexical.Search(ctx, tokens, k)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", perrors.ErrLexicalUnavailable, err)
	}
	return hits, nil
}

// resolveTexts fills display text from the resolver when one is attached.
// Uses the caller's context, not the query context, so resolution still
// works for a partial response whose query deadline already fired.
func (e *Engine) resolveTexts(ctx context.Context, results []Result) {
	if e.resolver == nil {
		return
	}
	for i := range results {
		text, err := e.resolver.ChunkText(ctx, results[i].ChunkID)
		if err != nil {
			e.logger.Debug("chunk text resolution failed",
				"chunk_id", results[i].ChunkID, "error", err)
			continue
		}
		results[i].Text = text
	}
}

// Stats reports index and cache counters for the stats surface.
type Stats struct {
	Vectors int
	Chunks  int
	Cache   cache.Stats
}

// Stats returns current index sizes and cache effectiveness.
func (e *Engine) Stats() Stats {
	s := Stats{
		Vectors: e.vector.Len(),
		Chunks:  e.lexical.Len(),
	}
	if e.cache != nil {
		s.Cache = e.cache.Stats()
	}
	return s
}
