package vectordb

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// subjectIndex is one immutable generation of a subject's chunks.
// A rebuild creates a fresh subjectIndex and swaps the map entry, so
// readers holding a reference keep a fully consistent view.
type subjectIndex struct {
	model     string
	dimension int
	chunks    []Chunk
	vectors   [][]float64 // L2-normalized, parallel to chunks
}

// MemoryStore is an in-memory SubjectStore using brute-force cosine similarity.
type MemoryStore struct {
	mu      sync.RWMutex
	indexes map[string]*subjectIndex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{indexes: make(map[string]*subjectIndex)}
}

func (s *MemoryStore) UpsertIndex(ctx context.Context, subjectID, model string, chunks []Chunk) error {
	if subjectID == "" {
		return fmt.Errorf("subject id is required")
	}
	if len(chunks) == 0 {
		return fmt.Errorf("refusing to build an empty index for subject %s", subjectID)
	}

	dim := len(chunks[0].Embedding)
	if dim == 0 {
		return fmt.Errorf("chunk %s has no embedding", chunks[0].ID)
	}

	// Build the new generation fully before touching the shared map.
	idx := &subjectIndex{
		model:     model,
		dimension: dim,
		chunks:    make([]Chunk, len(chunks)),
		vectors:   make([][]float64, len(chunks)),
	}
	for i, c := range chunks {
		if len(c.Embedding) != dim {
			return fmt.Errorf("chunk %s has dimension %d, index dimension is %d", c.ID, len(c.Embedding), dim)
		}
		idx.chunks[i] = c
		idx.vectors[i] = normalize(c.Embedding)
	}

	s.mu.Lock()
	s.indexes[subjectID] = idx
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, subjectID string, queryEmbedding []float32, topK int, threshold float64) ([]ScoredChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}

	s.mu.RLock()
	idx := s.indexes[subjectID]
	s.mu.RUnlock()

	// No index for this subject is an empty result, not an error.
	if idx == nil {
		return []ScoredChunk{}, nil
	}
	if len(queryEmbedding) != idx.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(queryEmbedding), idx.dimension)
	}

	q := normalize(queryEmbedding)

	results := make([]ScoredChunk, 0, len(idx.chunks))
	for i := range idx.chunks {
		score := dot(idx.vectors[i], q)
		if score >= threshold {
			results = append(results, ScoredChunk{Chunk: idx.chunks[i], Similarity: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Chunk.Position < results[j].Chunk.Position
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *MemoryStore) DeleteIndex(ctx context.Context, subjectID string) error {
	s.mu.Lock()
	delete(s.indexes, subjectID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) IndexModel(subjectID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexes[subjectID]
	if idx == nil {
		return "", false
	}
	return idx.model, true
}

func (s *MemoryStore) Count(subjectID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexes[subjectID]
	if idx == nil {
		return 0
	}
	return len(idx.chunks)
}
