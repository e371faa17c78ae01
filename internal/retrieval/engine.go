// Package retrieval turns a natural-language query into a bounded,
// attributed context block for the language model.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hireloop/portalchat/internal/apperr"
	"github.com/hireloop/portalchat/internal/embeddings"
	"github.com/hireloop/portalchat/internal/vectordb"
)

// Options control chunk selection and context assembly. Validated once at
// engine construction; call sites trust them afterwards.
type Options struct {
	TopK                int
	SimilarityThreshold float64
	MaxContextChars     int
}

// Result is the outcome of one retrieval. Ephemeral, never persisted.
type Result struct {
	Chunks        []vectordb.ScoredChunk
	Context       string
	Sources       []string // distinct source sections, in inclusion order
	TopScore      float64
	LowConfidence bool
}

// Engine embeds queries and assembles retrieval context.
type Engine struct {
	embedder embeddings.Embedder
	store    vectordb.SubjectStore
	opts     Options
}

// NewEngine creates a retrieval engine. The embedder must be the same
// model used at indexing time; Retrieve enforces this per subject.
func NewEngine(embedder embeddings.Embedder, store vectordb.SubjectStore, opts Options) (*Engine, error) {
	if opts.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}
	if opts.SimilarityThreshold < 0 || opts.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("similarity threshold must be in [0, 1]")
	}
	if opts.MaxContextChars <= 0 {
		return nil, fmt.Errorf("max context chars must be positive")
	}
	return &Engine{embedder: embedder, store: store, opts: opts}, nil
}

// Retrieve embeds the query and builds a context block from the subject's
// best-matching chunks. When nothing clears the threshold the result is
// flagged LowConfidence with an empty context; callers must fall back to
// a generic persona response instead of answering from nothing.
func (e *Engine) Retrieve(ctx context.Context, subjectID, query string) (*Result, error) {
	// Similarity scores are only meaningful within one embedding space.
	if indexModel, ok := e.store.IndexModel(subjectID); ok && indexModel != e.embedder.Name() {
		return nil, apperr.New(apperr.CodeModelMismatch,
			fmt.Sprintf("index for %s was built with %s, retrieval uses %s", subjectID, indexModel, e.embedder.Name()), nil)
	}

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		if errors.Is(err, apperr.ErrEmbeddingProvider) {
			return nil, err
		}
		return nil, apperr.New(apperr.CodeEmbeddingProvider, "embedding provider failed", err)
	}
	if len(vectors) != 1 {
		return nil, apperr.New(apperr.CodeEmbeddingProvider,
			fmt.Sprintf("embedder returned %d vectors for one query", len(vectors)), nil)
	}

	scored, err := e.store.Query(ctx, subjectID, vectors[0], e.opts.TopK, e.opts.SimilarityThreshold)
	if err != nil {
		return nil, fmt.Errorf("querying index for %s: %w", subjectID, err)
	}

	if len(scored) == 0 {
		return &Result{LowConfidence: true}, nil
	}

	return e.assemble(scored), nil
}

// assemble builds the context block in descending-similarity order,
// including whole chunks only and stopping before MaxContextChars.
func (e *Engine) assemble(scored []vectordb.ScoredChunk) *Result {
	result := &Result{TopScore: scored[0].Similarity}

	var b strings.Builder
	seenSections := map[string]bool{}
	for _, sc := range scored {
		entry := fmt.Sprintf("[%s] %s\n", sc.Chunk.SourceSection, sc.Chunk.Text)
		if b.Len()+len(entry) > e.opts.MaxContextChars {
			break
		}
		b.WriteString(entry)
		result.Chunks = append(result.Chunks, sc)
		section := string(sc.Chunk.SourceSection)
		if !seenSections[section] {
			seenSections[section] = true
			result.Sources = append(result.Sources, section)
		}
	}

	// Every candidate chunk was too large for the budget: treat as no context.
	if len(result.Chunks) == 0 {
		return &Result{LowConfidence: true}
	}

	result.Context = b.String()
	return result
}
