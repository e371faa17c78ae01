// Package indexer turns a subject's structured CV content into embedded
// chunks and publishes them to the vector store as an atomic replacement
// of that subject's index.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/hireloop/portalchat/internal/apperr"
	"github.com/hireloop/portalchat/internal/contentstore"
	"github.com/hireloop/portalchat/internal/embeddings"
	"github.com/hireloop/portalchat/internal/vectordb"
)

// Indexer builds per-subject vector indexes.
type Indexer struct {
	embedder embeddings.Embedder
	store    vectordb.SubjectStore
	content  contentstore.Store
}

// New creates an Indexer. content may be nil if only BuildIndex is used.
func New(embedder embeddings.Embedder, store vectordb.SubjectStore, content contentstore.Store) *Indexer {
	return &Indexer{
		embedder: embedder,
		store:    store,
		content:  content,
	}
}

// BuildIndex chunks the given content, embeds every chunk, and atomically
// swaps the subject's index. The old index stays queryable until the new
// one is complete.
func (ix *Indexer) BuildIndex(ctx context.Context, subjectID string, content *contentstore.Content) (*BuildResult, error) {
	if content == nil || len(content.Sections) == 0 {
		return nil, apperr.New(apperr.CodeInvalidContent, "structured content is empty", nil)
	}

	result := &BuildResult{
		SubjectID: subjectID,
		Model:     ix.embedder.Name(),
	}

	var chunks []vectordb.Chunk
	position := 0
	for _, section := range content.Sections {
		if section.Kind == "" {
			return nil, apperr.New(apperr.CodeInvalidContent, "section without a kind", nil)
		}
		for _, item := range section.Items {
			for _, text := range splitItem(item) {
				if tokenCount(text) < minChunkTokens {
					result.Skipped = append(result.Skipped, SkippedItem{
						Text:   text,
						Reason: "too short to index meaningfully",
					})
					continue
				}
				chunks = append(chunks, vectordb.Chunk{
					ID:            fmt.Sprintf("%s:%s:%d", subjectID, section.Kind, position),
					SourceSection: section.Kind,
					Text:          text,
					Position:      position,
					Tags:          section.Tags,
				})
				position++
			}
		}
	}

	if len(chunks) == 0 {
		return nil, apperr.New(apperr.CodeInvalidContent, "no indexable content after chunking", nil)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		if errors.Is(err, apperr.ErrEmbeddingProvider) {
			return nil, err
		}
		return nil, apperr.New(apperr.CodeEmbeddingProvider, "embedding provider failed", err)
	}
	if len(vectors) != len(chunks) {
		return nil, apperr.New(apperr.CodeEmbeddingProvider,
			fmt.Sprintf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks)), nil)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := ix.store.UpsertIndex(ctx, subjectID, ix.embedder.Name(), chunks); err != nil {
		return nil, fmt.Errorf("publishing index for %s: %w", subjectID, err)
	}

	result.ChunkCount = len(chunks)
	log.Printf("indexer: built index for %s: %d chunks, %d skipped", subjectID, result.ChunkCount, len(result.Skipped))
	return result, nil
}

// Reindex pulls the subject's content from the content store and rebuilds
// the index.
func (ix *Indexer) Reindex(ctx context.Context, subjectID string) (*BuildResult, error) {
	if ix.content == nil {
		return nil, fmt.Errorf("no content store configured")
	}
	content, err := ix.content.GetStructuredContent(ctx, subjectID)
	if err != nil {
		return nil, apperr.New(apperr.CodeInvalidContent, "loading structured content failed", err)
	}
	return ix.BuildIndex(ctx, subjectID, content)
}

// Delete removes a subject's index entirely (account deletion, privacy requests).
func (ix *Indexer) Delete(ctx context.Context, subjectID string) error {
	return ix.store.DeleteIndex(ctx, subjectID)
}
