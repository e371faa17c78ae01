package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hireloop/portalchat/internal/apperr"
)

// flakyEmbedder fails the first failCount calls, then succeeds.
type flakyEmbedder struct {
	failCount int
	calls     int
}

func (f *flakyEmbedder) Name() string    { return "flaky-test-model" }
func (f *flakyEmbedder) Dimensions() int { return 4 }

func (f *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failCount {
		return nil, errors.New("transient failure")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	inner := &flakyEmbedder{failCount: 2}
	e := WithRetry(inner, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	result, err := e.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected 1 embedding, got %d", len(result))
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls)
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	inner := &flakyEmbedder{failCount: 10}
	e := WithRetry(inner, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	_, err := e.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, apperr.ErrEmbeddingProvider) {
		t.Errorf("expected ErrEmbeddingProvider, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	inner := &flakyEmbedder{failCount: 10}
	e := WithRetry(inner, RetryPolicy{MaxAttempts: 5, BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Embed(ctx, []string{"hello"})
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls > 1 {
		t.Errorf("expected at most 1 call after cancellation, got %d", inner.calls)
	}
}
