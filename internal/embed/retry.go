package embed

import (
	"context"
	"fmt"
	"time"

	perrors "github.com/pinpoint-search/pinpoint/internal/errors"
)

// RetryConfig configures exponential backoff for embedding calls.
type RetryConfig struct {
	MaxRetries   int           // Retry attempts beyond the initial call
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Cap on the delay between retries
	Multiplier   float64       // Backoff multiplier
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryEmbedder wraps an Embedder with backoff retries. Once retries are
// exhausted the failure surfaces as ErrEmbeddingUnavailable so the search
// path can degrade to lexical-only instead of failing the query.
type RetryEmbedder struct {
	inner Embedder
	cfg   RetryConfig
}

// NewRetryEmbedder creates a retrying embedder wrapping inner.
func NewRetryEmbedder(inner Embedder, cfg RetryConfig) *RetryEmbedder {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	return &RetryEmbedder{inner: inner, cfg: cfg}
}

// Embed embeds a single text with retries.
func (r *RetryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := r.withRetry(ctx, func() error {
		var embedErr error
		vec, embedErr = r.inner.Embed(ctx, text)
		return embedErr
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedBatch embeds texts with retries.
func (r *RetryEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := r.withRetry(ctx, func() error {
		var embedErr error
		vecs, embedErr = r.inner.EmbedBatch(ctx, texts)
		return embedErr
	})
	if err != nil {
		return nil, err
	}
	return vecs, nil
}

// withRetry runs fn with exponential backoff. Context cancellation is
// honored between attempts and returned as-is.
func (r *RetryEmbedder) withRetry(ctx context.Context, fn func() error) error {
	delay := r.cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt >= r.cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * r.cfg.Multiplier)
		if r.cfg.MaxDelay > 0 && delay > r.cfg.MaxDelay {
			delay = r.cfg.MaxDelay
		}
	}

	return fmt.Errorf("%w: %v", perrors.ErrEmbeddingUnavailable, lastErr)
}

// Dimensions returns the embedding dimensionality (passthrough).
func (r *RetryEmbedder) Dimensions() int { return r.inner.Dimensions() }

// ModelName returns the model identifier (passthrough).
func (r *RetryEmbedder) ModelName() string { return r.inner.ModelName() }

// Available reports readiness (passthrough).
func (r *RetryEmbedder) Available(ctx context.Context) bool {
	return r.inner.Available(ctx)
}

// Close closes the inner embedder.
func (r *RetryEmbedder) Close() error { return r.inner.Close() }

// Verify interface implementation
var _ Embedder = (*RetryEmbedder)(nil)
