package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps an Embedder and counts inner Embed calls.
type countingEmbedder struct {
	Embedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.Embedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int64(len(texts)))
	return c.Embedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedderHitsCache(t *testing.T) {
	inner := &countingEmbedder{Embedder: NewStaticEmbedder(32)}
	cached := NewCachedEmbedder(inner, 16)
	defer cached.Close()
	ctx := context.Background()

	first, err := cached.Embed(ctx, "repeated query")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "repeated query")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), inner.calls.Load())
}

func TestCachedEmbedderDistinctTexts(t *testing.T) {
	inner := &countingEmbedder{Embedder: NewStaticEmbedder(32)}
	cached := NewCachedEmbedder(inner, 16)
	defer cached.Close()
	ctx := context.Background()

	_, err := cached.Embed(ctx, "first")
	require.NoError(t, err)
	_, err = cached.Embed(ctx, "second")
	require.NoError(t, err)

	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestCachedEmbedderBatchMixesHitsAndMisses(t *testing.T) {
	inner := &countingEmbedder{Embedder: NewStaticEmbedder(32)}
	cached := NewCachedEmbedder(inner, 16)
	defer cached.Close()
	ctx := context.Background()

	_, err := cached.Embed(ctx, "warm")
	require.NoError(t, err)
	before := inner.calls.Load()

	vecs, err := cached.EmbedBatch(ctx, []string{"warm", "cold"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	// Only the miss reached the inner embedder.
	assert.Equal(t, before+1, inner.calls.Load())

	warm, err := cached.Embed(ctx, "warm")
	require.NoError(t, err)
	assert.Equal(t, warm, vecs[0])
}

func TestCachedEmbedderPassthrough(t *testing.T) {
	cached := NewCachedEmbedder(NewStaticEmbedder(48), 8)
	defer cached.Close()

	assert.Equal(t, 48, cached.Dimensions())
	assert.True(t, cached.Available(context.Background()))
}
