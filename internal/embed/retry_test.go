package embed

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/pinpoint-search/pinpoint/internal/errors"
)

// flakyEmbedder fails the first failures calls, then succeeds.
type flakyEmbedder struct {
	Embedder
	failures int64
	calls    atomic.Int64
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, fmt.Errorf("transient backend failure")
	}
	return f.Embedder.Embed(ctx, text)
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetryEmbedderRecoversFromTransientFailures(t *testing.T) {
	inner := &flakyEmbedder{Embedder: NewStaticEmbedder(32), failures: 2}
	r := NewRetryEmbedder(inner, fastRetryConfig())
	defer r.Close()

	vec, err := r.Embed(context.Background(), "eventually works")
	require.NoError(t, err)
	assert.Len(t, vec, 32)
	assert.Equal(t, int64(3), inner.calls.Load())
}

func TestRetryEmbedderExhaustionSurfacesUnavailable(t *testing.T) {
	inner := &flakyEmbedder{Embedder: NewStaticEmbedder(32), failures: 100}
	r := NewRetryEmbedder(inner, fastRetryConfig())
	defer r.Close()

	_, err := r.Embed(context.Background(), "never works")
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrEmbeddingUnavailable)
	// Initial call plus MaxRetries attempts.
	assert.Equal(t, int64(4), inner.calls.Load())
}

func TestRetryEmbedderHonorsContext(t *testing.T) {
	inner := &flakyEmbedder{Embedder: NewStaticEmbedder(32), failures: 100}
	r := NewRetryEmbedder(inner, RetryConfig{
		MaxRetries:   5,
		InitialDelay: time.Hour,
		Multiplier:   2.0,
	})
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := r.Embed(ctx, "cancelled mid-backoff")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRetryEmbedderNoRetriesOnSuccess(t *testing.T) {
	inner := &flakyEmbedder{Embedder: NewStaticEmbedder(32), failures: 0}
	r := NewRetryEmbedder(inner, fastRetryConfig())
	defer r.Close()

	_, err := r.Embed(context.Background(), "works first time")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.calls.Load())
}
