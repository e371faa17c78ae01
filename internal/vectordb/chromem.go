package vectordb

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// collection names encode the subject, model, generation and dimension so
// the mapping survives an export/import round trip:
// "subject::<id>::<model>::g<n>::d<dim>".
const collectionSep = "::"

// ChromemStore implements SubjectStore on chromem-go. Each index rebuild
// creates a fresh generation collection, then swaps the subject's entry and
// drops the old collection, so readers never observe a half-built index.
type ChromemStore struct {
	db *chromem.DB

	mu      sync.RWMutex
	current map[string]*chromemIndex
}

type chromemIndex struct {
	collection *chromem.Collection
	name       string
	model      string
	generation uint64
	dimension  int
}

// NewChromemStore creates a new in-memory ChromemStore.
func NewChromemStore() *ChromemStore {
	return &ChromemStore{
		db:      chromem.NewDB(),
		current: make(map[string]*chromemIndex),
	}
}

func collectionName(subjectID, model string, gen uint64, dim int) string {
	return strings.Join([]string{
		"subject", subjectID, model,
		"g" + strconv.FormatUint(gen, 10),
		"d" + strconv.Itoa(dim),
	}, collectionSep)
}

func parseCollectionName(name string) (subjectID, model string, gen uint64, dim int, ok bool) {
	parts := strings.Split(name, collectionSep)
	if len(parts) != 5 || parts[0] != "subject" ||
		!strings.HasPrefix(parts[3], "g") || !strings.HasPrefix(parts[4], "d") {
		return "", "", 0, 0, false
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(parts[3], "g"), 10, 64)
	if err != nil {
		return "", "", 0, 0, false
	}
	d, err := strconv.Atoi(strings.TrimPrefix(parts[4], "d"))
	if err != nil {
		return "", "", 0, 0, false
	}
	return parts[1], parts[2], n, d, true
}

func (s *ChromemStore) UpsertIndex(ctx context.Context, subjectID, model string, chunks []Chunk) error {
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

	s.mu.RLock()
	var gen uint64 = 1
	if prev := s.current[subjectID]; prev != nil {
		gen = prev.generation + 1
	}
	s.mu.RUnlock()

	name := collectionName(subjectID, model, gen, dim)
	col, err := s.db.CreateCollection(name, nil, nil)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		if len(c.Embedding) != dim {
			_ = s.db.DeleteCollection(name)
			return fmt.Errorf("chunk %s has dimension %d, index dimension is %d", c.ID, len(c.Embedding), dim)
		}
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Embedding: c.Embedding,
			Metadata:  chunkMetadata(c),
		}
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		_ = s.db.DeleteCollection(name)
		return fmt.Errorf("add documents: %w", err)
	}

	// New generation is complete; swap it in and drop the old one.
	s.mu.Lock()
	old := s.current[subjectID]
	s.current[subjectID] = &chromemIndex{
		collection: col,
		name:       name,
		model:      model,
		generation: gen,
		dimension:  dim,
	}
	s.mu.Unlock()

	if old != nil {
		_ = s.db.DeleteCollection(old.name)
	}
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, subjectID string, queryEmbedding []float32, topK int, threshold float64) ([]ScoredChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}

	s.mu.RLock()
	idx := s.current[subjectID]
	s.mu.RUnlock()

	if idx == nil {
		return []ScoredChunk{}, nil
	}
	if len(queryEmbedding) != idx.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(queryEmbedding), idx.dimension)
	}

	// Fetch the whole collection so the threshold filter and position
	// tiebreak run on our side with float64 scores.
	n := idx.collection.Count()
	if n == 0 {
		return []ScoredChunk{}, nil
	}
	raw, err := idx.collection.QueryEmbedding(ctx, queryEmbedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	// Rescore in float64 against the normalized query; chromem ranks on
	// float32 similarity, which can reorder near-tied chunks.
	query := normalize(queryEmbedding)
	results := make([]ScoredChunk, 0, len(raw))
	for _, r := range raw {
		score := dot(query, normalize(r.Embedding))
		if score < threshold {
			continue
		}
		results = append(results, ScoredChunk{
			Chunk:      chunkFromResult(r),
			Similarity: score,
		})
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

func (s *ChromemStore) DeleteIndex(ctx context.Context, subjectID string) error {
	s.mu.Lock()
	idx := s.current[subjectID]
	delete(s.current, subjectID)
	s.mu.Unlock()

	if idx != nil {
		return s.db.DeleteCollection(idx.name)
	}
	return nil
}

func (s *ChromemStore) IndexModel(subjectID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.current[subjectID]
	if idx == nil {
		return "", false
	}
	return idx.model, true
}

func (s *ChromemStore) Count(subjectID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.current[subjectID]
	if idx == nil {
		return 0
	}
	return idx.collection.Count()
}

// Persist saves the store's data to the given directory.
func (s *ChromemStore) Persist(ctx context.Context, dir string) error {
	return s.db.ExportToFile(dir+"/portalchat.gob.gz", true, "")
}

// Load restores the store's data from the given directory, rebuilding the
// subject mapping from collection names.
func (s *ChromemStore) Load(ctx context.Context, dir string) error {
	if err := s.db.ImportFromFile(dir+"/portalchat.gob.gz", ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = make(map[string]*chromemIndex)
	for name, col := range s.db.ListCollections() {
		subjectID, model, gen, dim, ok := parseCollectionName(name)
		if !ok {
			continue
		}
		// Keep only the newest generation per subject.
		if prev := s.current[subjectID]; prev != nil && prev.generation >= gen {
			continue
		}
		s.current[subjectID] = &chromemIndex{
			collection: col,
			name:       name,
			model:      model,
			generation: gen,
			dimension:  dim,
		}
	}
	return nil
}

func chunkMetadata(c Chunk) map[string]string {
	return map[string]string{
		"section":  string(c.SourceSection),
		"position": strconv.Itoa(c.Position),
		"tags":     strings.Join(c.Tags, ","),
	}
}

func chunkFromResult(r chromem.Result) Chunk {
	position, _ := strconv.Atoi(r.Metadata["position"])
	var tags []string
	if r.Metadata["tags"] != "" {
		tags = strings.Split(r.Metadata["tags"], ",")
	}
	return Chunk{
		ID:            r.ID,
		SourceSection: SourceSection(r.Metadata["section"]),
		Text:          r.Content,
		Embedding:     r.Embedding,
		Position:      position,
		Tags:          tags,
	}
}
