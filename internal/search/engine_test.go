package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinpoint-search/pinpoint/internal/cache"
	"github.com/pinpoint-search/pinpoint/internal/embed"
	perrors "github.com/pinpoint-search/pinpoint/internal/errors"
	"github.com/pinpoint-search/pinpoint/internal/store"
)

// --- Test doubles ---

// downEmbedder reports itself unavailable.
type downEmbedder struct {
	embed.Embedder
}

func (d *downEmbedder) Available(ctx context.Context) bool { return false }

func (d *downEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, perrors.ErrEmbeddingUnavailable
}

// failingLexical errors on every search.
type failingLexical struct {
	store.LexicalIndex
}

func (f *failingLexical) Search(ctx context.Context, tokens []string, k int) ([]store.LexicalHit, error) {
	return nil, perrors.ErrLexicalUnavailable
}

// slowLexical delays every search, honoring cancellation.
type slowLexical struct {
	store.LexicalIndex
	delay time.Duration
}

func (s *slowLexical) Search(ctx context.Context, tokens []string, k int) ([]store.LexicalHit, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
	}
	return s.LexicalIndex.Search(ctx, tokens, k)
}

// slowVector delays every search, honoring cancellation.
type slowVector struct {
	store.VectorIndex
	delay time.Duration
}

func (s *slowVector) Search(ctx context.Context, query []float32, k int) ([]store.VectorHit, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
	}
	return s.VectorIndex.Search(ctx, query, k)
}

// --- Fixture ---

type fixture struct {
	embedder embed.Embedder
	vector   *store.FlatIndex
	lexical  *store.MemoryLexicalIndex
	version  *cache.Version
}

// newFixture indexes the canonical three-chunk corpus.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	embedder := embed.NewStaticEmbedder(64)
	vector, err := store.NewFlatIndex(64)
	require.NoError(t, err)
	lexical := store.NewMemoryLexicalIndex(store.DefaultBM25Params())

	corpus := map[string]string{
		"A": "machine learning basics",
		"B": "deep learning networks",
		"C": "cooking recipes",
	}
	ctx := context.Background()
	for id, text := range corpus {
		vec, err := embedder.Embed(ctx, text)
		require.NoError(t, err)
		require.NoError(t, vector.Upsert(id, vec))
		require.NoError(t, lexical.Upsert(id, store.Tokenize(text)))
	}

	return &fixture{
		embedder: embedder,
		vector:   vector,
		lexical:  lexical,
		version:  &cache.Version{},
	}
}

func testParams() Params {
	return Params{
		K:       2,
		Weights: Weights{Vector: 0.5, Lexical: 0.5},
		Timeout: 2 * time.Second,
		TTL:     time.Minute,
	}
}

// --- Tests ---

func TestEngineHybridScenario(t *testing.T) {
	// Given: chunks about learning (A, B) and cooking (C)
	f := newFixture(t)
	engine := NewEngine(f.embedder, f.vector, f.lexical, f.version)

	// When: querying for "learning algorithms" with balanced weights
	resp, err := engine.Search(context.Background(), "learning algorithms", testParams())
	require.NoError(t, err)

	// Then: the top results are the learning chunks, never C
	require.Len(t, resp.Results, 2)
	top := []string{resp.Results[0].ChunkID, resp.Results[1].ChunkID}
	assert.ElementsMatch(t, []string{"A", "B"}, top)
	assert.False(t, resp.Partial)
	assert.False(t, resp.Degraded)
	assert.False(t, resp.Cached)
}

func TestEngineDegradesToLexicalOnly(t *testing.T) {
	// Given: an unavailable embedder
	f := newFixture(t)
	engine := NewEngine(&downEmbedder{Embedder: f.embedder}, f.vector, f.lexical, f.version)

	resp, err := engine.Search(context.Background(), "learning algorithms", testParams())

	// Then: lexical-only results with the degraded marker, not an error
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.True(t, resp.Degraded)
	assert.False(t, resp.Partial)
	for _, r := range resp.Results {
		assert.Zero(t, r.VectorScore)
	}
}

func TestEngineDegradesToVectorOnly(t *testing.T) {
	f := newFixture(t)
	engine := NewEngine(f.embedder, f.vector, &failingLexical{LexicalIndex: f.lexical}, f.version)

	resp, err := engine.Search(context.Background(), "learning algorithms", testParams())
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.True(t, resp.Degraded)
	for _, r := range resp.Results {
		assert.Zero(t, r.LexicalScore)
	}
}

func TestEngineBothBackendsDown(t *testing.T) {
	f := newFixture(t)
	engine := NewEngine(&downEmbedder{Embedder: f.embedder}, f.vector,
		&failingLexical{LexicalIndex: f.lexical}, f.version)

	_, err := engine.Search(context.Background(), "anything", testParams())
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrSearchUnavailable)
}

func TestEngineTimeoutReturnsPartial(t *testing.T) {
	// Given: a lexical backend slower than the query timeout
	f := newFixture(t)
	engine := NewEngine(f.embedder, f.vector,
		&slowLexical{LexicalIndex: f.lexical, delay: 500 * time.Millisecond}, f.version)

	params := testParams()
	params.Timeout = 50 * time.Millisecond

	resp, err := engine.Search(context.Background(), "learning algorithms", params)

	// Then: the vector side's results come back marked partial
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.True(t, resp.Partial)
	for _, r := range resp.Results {
		assert.Zero(t, r.LexicalScore)
	}
}

func TestEngineTimeoutWithNothingComplete(t *testing.T) {
	f := newFixture(t)
	engine := NewEngine(f.embedder,
		&slowVector{VectorIndex: f.vector, delay: 500 * time.Millisecond},
		&slowLexical{LexicalIndex: f.lexical, delay: 500 * time.Millisecond},
		f.version)

	params := testParams()
	params.Timeout = 50 * time.Millisecond

	_, err := engine.Search(context.Background(), "learning algorithms", params)
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrSearchTimeout)
	assert.ErrorIs(t, err, perrors.ErrSearchUnavailable)
}

func TestEngineCacheHit(t *testing.T) {
	f := newFixture(t)
	qc, err := cache.NewQueryCache[Response](16, time.Minute, f.version)
	require.NoError(t, err)
	engine := NewEngine(f.embedder, f.vector, f.lexical, f.version, WithCache(qc))

	first, err := engine.Search(context.Background(), "learning algorithms", testParams())
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := engine.Search(context.Background(), "learning algorithms", testParams())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Results, second.Results)
}

func TestEngineCacheHonorsQueryTTL(t *testing.T) {
	// Given: a search whose params carry a tiny TTL
	f := newFixture(t)
	qc, err := cache.NewQueryCache[Response](16, time.Minute, f.version)
	require.NoError(t, err)
	engine := NewEngine(f.embedder, f.vector, f.lexical, f.version, WithCache(qc))

	params := testParams()
	params.TTL = time.Nanosecond

	_, err = engine.Search(context.Background(), "learning algorithms", params)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	// Then: the entry has expired even though the cache default is a minute
	resp, err := engine.Search(context.Background(), "learning algorithms", params)
	require.NoError(t, err)
	assert.False(t, resp.Cached, "entry stored under the query's own TTL must expire with it")
}

func TestEngineCacheInvalidatedByCorpusMutation(t *testing.T) {
	f := newFixture(t)
	qc, err := cache.NewQueryCache[Response](16, time.Minute, f.version)
	require.NoError(t, err)
	engine := NewEngine(f.embedder, f.vector, f.lexical, f.version, WithCache(qc))

	_, err = engine.Search(context.Background(), "learning algorithms", testParams())
	require.NoError(t, err)

	// A corpus mutation commits and bumps the version.
	f.version.Bump()

	resp, err := engine.Search(context.Background(), "learning algorithms", testParams())
	require.NoError(t, err)
	assert.False(t, resp.Cached, "pre-mutation entries must not serve post-mutation queries")
}

func TestEngineDoesNotCacheDegradedResponses(t *testing.T) {
	f := newFixture(t)
	qc, err := cache.NewQueryCache[Response](16, time.Minute, f.version)
	require.NoError(t, err)
	engine := NewEngine(&downEmbedder{Embedder: f.embedder}, f.vector, f.lexical,
		f.version, WithCache(qc))

	first, err := engine.Search(context.Background(), "learning algorithms", testParams())
	require.NoError(t, err)
	require.True(t, first.Degraded)

	second, err := engine.Search(context.Background(), "learning algorithms", testParams())
	require.NoError(t, err)
	assert.False(t, second.Cached)
}

func TestEngineRejectsInvalidParams(t *testing.T) {
	f := newFixture(t)
	engine := NewEngine(f.embedder, f.vector, f.lexical, f.version)

	params := testParams()
	params.K = -1
	_, err := engine.Search(context.Background(), "query", params)
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrInvalidConfig)

	params = testParams()
	params.Weights = Weights{Vector: -0.5, Lexical: 0.5}
	_, err = engine.Search(context.Background(), "query", params)
	assert.ErrorIs(t, err, perrors.ErrInvalidConfig)
}

func TestEngineDefaultsZeroParams(t *testing.T) {
	f := newFixture(t)
	engine := NewEngine(f.embedder, f.vector, f.lexical, f.version)

	resp, err := engine.Search(context.Background(), "learning", Params{})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
}

func TestEngineStats(t *testing.T) {
	f := newFixture(t)
	engine := NewEngine(f.embedder, f.vector, f.lexical, f.version)

	stats := engine.Stats()
	assert.Equal(t, 3, stats.Vectors)
	assert.Equal(t, 3, stats.Chunks)
}
