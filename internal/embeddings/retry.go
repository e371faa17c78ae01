package embeddings

import (
	"context"
	"time"

	"github.com/hireloop/portalchat/internal/apperr"
)

// RetryPolicy bounds how often a failed embedding call is retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy retries twice after the initial attempt with short backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// RetryingEmbedder wraps an Embedder with bounded exponential backoff.
// This is the only place embedding calls are retried; callers above it
// surface apperr.ErrEmbeddingProvider without retrying again.
type RetryingEmbedder struct {
	inner  Embedder
	policy RetryPolicy
}

// WithRetry wraps the given embedder with the given retry policy.
func WithRetry(inner Embedder, policy RetryPolicy) *RetryingEmbedder {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return &RetryingEmbedder{inner: inner, policy: policy}
}

func (r *RetryingEmbedder) Name() string { return r.inner.Name() }

func (r *RetryingEmbedder) Dimensions() int { return r.inner.Dimensions() }

func (r *RetryingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	delay := r.policy.BaseDelay

	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, apperr.New(apperr.CodeEmbeddingProvider, "embedding provider failed", ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
			if delay > r.policy.MaxDelay {
				delay = r.policy.MaxDelay
			}
		}

		result, err := r.inner.Embed(ctx, texts)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Context cancellation will not succeed on retry.
		if ctx.Err() != nil {
			break
		}
	}

	return nil, apperr.New(apperr.CodeEmbeddingProvider, "embedding provider failed", lastErr)
}
