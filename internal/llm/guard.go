package llm

import (
	"context"
	"errors"
	"time"

	"github.com/hireloop/portalchat/internal/apperr"
)

// GuardedProvider bounds every completion with a deadline and maps
// failures onto the generation-provider error code, so callers can
// decide on a fallback with a single errors.Is check.
type GuardedProvider struct {
	provider Provider
	timeout  time.Duration
}

// NewGuardedProvider wraps a provider. A non-positive timeout disables
// the deadline.
func NewGuardedProvider(provider Provider, timeout time.Duration) *GuardedProvider {
	return &GuardedProvider{provider: provider, timeout: timeout}
}

func (g *GuardedProvider) Name() string {
	return g.provider.Name()
}

func (g *GuardedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.provider.Complete(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.New(apperr.CodeGenerationProvider, "completion timed out", err)
		}
		return nil, apperr.New(apperr.CodeGenerationProvider, "completion failed", err)
	}
	if resp.Content == "" {
		return nil, apperr.New(apperr.CodeGenerationProvider, "provider returned empty completion", nil)
	}
	return resp, nil
}
