// Package llm abstracts chat completion providers behind a single
// interface so the chat engine does not care which backend answers.
package llm

import "context"

// Provider produces chat completions.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}
