package vectordb

import "context"

// SubjectStore persists per-subject chunk collections and answers
// nearest-neighbor queries.
//
// Implementations must replace a subject's index atomically: concurrent
// readers see either the whole old index or the whole new one, never a mix.
type SubjectStore interface {
	// UpsertIndex atomically replaces the subject's index with the given
	// chunks. model records which embedding model produced the vectors.
	// All chunks must share one embedding dimensionality.
	UpsertIndex(ctx context.Context, subjectID, model string, chunks []Chunk) error

	// Query returns up to topK chunks with cosine similarity >= threshold,
	// ordered by descending similarity; ties broken by document position.
	// A missing index or an empty match set yields an empty slice, not an error.
	Query(ctx context.Context, subjectID string, queryEmbedding []float32, topK int, threshold float64) ([]ScoredChunk, error)

	// DeleteIndex removes a subject's data entirely.
	DeleteIndex(ctx context.Context, subjectID string) error

	// IndexModel reports which embedding model built the subject's index.
	// ok is false when the subject has no index.
	IndexModel(subjectID string) (model string, ok bool)

	// Count returns the number of chunks indexed for the subject.
	Count(subjectID string) int
}
