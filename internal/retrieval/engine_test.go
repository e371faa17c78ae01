package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hireloop/portalchat/internal/apperr"
	"github.com/hireloop/portalchat/internal/vectordb"
)

type stubEmbedder struct {
	vector []float32
	fail   bool
	name   string
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.fail {
		return nil, errors.New("boom")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return len(s.vector) }

func (s *stubEmbedder) Name() string {
	if s.name == "" {
		return "stub-model"
	}
	return s.name
}

func seedStore(t *testing.T, chunks []vectordb.Chunk) *vectordb.MemoryStore {
	t.Helper()
	store := vectordb.NewMemoryStore()
	if err := store.UpsertIndex(context.Background(), "subject-1", "stub-model", chunks); err != nil {
		t.Fatalf("UpsertIndex: %v", err)
	}
	return store
}

func chunk(id string, section vectordb.SourceSection, text string, pos int, vec []float32) vectordb.Chunk {
	return vectordb.Chunk{ID: id, SourceSection: section, Text: text, Position: pos, Embedding: vec}
}

func TestNewEngineRejectsBadOptions(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{1, 0}}
	store := vectordb.NewMemoryStore()

	cases := []struct {
		name string
		opts Options
	}{
		{"zero topK", Options{TopK: 0, SimilarityThreshold: 0.7, MaxContextChars: 4000}},
		{"negative threshold", Options{TopK: 5, SimilarityThreshold: -0.1, MaxContextChars: 4000}},
		{"threshold above one", Options{TopK: 5, SimilarityThreshold: 1.1, MaxContextChars: 4000}},
		{"zero context budget", Options{TopK: 5, SimilarityThreshold: 0.7, MaxContextChars: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewEngine(embedder, store, tc.opts); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestRetrieveAssemblesContext(t *testing.T) {
	store := seedStore(t, []vectordb.Chunk{
		chunk("c1", vectordb.SectionExperience, "Led the payments team.", 0, []float32{1, 0, 0}),
		chunk("c2", vectordb.SectionSkills, "Go, Postgres, Kubernetes.", 1, []float32{1, 0.3, 0}),
		chunk("c3", vectordb.SectionEducation, "BSc Computer Science.", 2, []float32{0, 1, 0}),
	})
	embedder := &stubEmbedder{vector: []float32{1, 0, 0}}

	eng, err := NewEngine(embedder, store, Options{TopK: 5, SimilarityThreshold: 0.7, MaxContextChars: 4000})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	res, err := eng.Retrieve(context.Background(), "subject-1", "what did they work on?")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.LowConfidence {
		t.Fatal("expected confident result")
	}
	if len(res.Chunks) != 2 {
		t.Fatalf("expected 2 chunks above threshold, got %d", len(res.Chunks))
	}
	if res.Chunks[0].Chunk.ID != "c1" || res.Chunks[1].Chunk.ID != "c2" {
		t.Fatalf("unexpected chunk order: %s, %s", res.Chunks[0].Chunk.ID, res.Chunks[1].Chunk.ID)
	}
	if res.TopScore != 1.0 {
		t.Fatalf("expected top score 1.0, got %f", res.TopScore)
	}
	if !strings.Contains(res.Context, "[experience] Led the payments team.") {
		t.Fatalf("context missing experience chunk: %q", res.Context)
	}
	if got, want := strings.Join(res.Sources, ","), "experience,skills"; got != want {
		t.Fatalf("sources = %s, want %s", got, want)
	}
}

func TestRetrieveNoMatchesIsLowConfidence(t *testing.T) {
	store := seedStore(t, []vectordb.Chunk{
		chunk("c1", vectordb.SectionSkills, "Cooking.", 0, []float32{0, 1, 0}),
	})
	embedder := &stubEmbedder{vector: []float32{1, 0, 0}}

	eng, err := NewEngine(embedder, store, Options{TopK: 5, SimilarityThreshold: 0.7, MaxContextChars: 4000})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	res, err := eng.Retrieve(context.Background(), "subject-1", "irrelevant")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !res.LowConfidence {
		t.Fatal("expected low-confidence result")
	}
	if res.Context != "" || len(res.Chunks) != 0 {
		t.Fatalf("expected empty result, got context %q with %d chunks", res.Context, len(res.Chunks))
	}
}

func TestRetrieveUnknownSubjectIsLowConfidence(t *testing.T) {
	store := vectordb.NewMemoryStore()
	embedder := &stubEmbedder{vector: []float32{1, 0, 0}}

	eng, err := NewEngine(embedder, store, Options{TopK: 5, SimilarityThreshold: 0.7, MaxContextChars: 4000})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	res, err := eng.Retrieve(context.Background(), "nobody", "hello")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !res.LowConfidence {
		t.Fatal("expected low-confidence result for unknown subject")
	}
}

func TestRetrieveRejectsModelMismatch(t *testing.T) {
	store := seedStore(t, []vectordb.Chunk{
		chunk("c1", vectordb.SectionSummary, "Engineer.", 0, []float32{1, 0, 0}),
	})
	embedder := &stubEmbedder{vector: []float32{1, 0, 0}, name: "other-model"}

	eng, err := NewEngine(embedder, store, Options{TopK: 5, SimilarityThreshold: 0.7, MaxContextChars: 4000})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	_, err = eng.Retrieve(context.Background(), "subject-1", "hello")
	if !errors.Is(err, apperr.ErrModelMismatch) {
		t.Fatalf("expected model mismatch error, got %v", err)
	}
}

func TestRetrieveEmbedderFailure(t *testing.T) {
	store := seedStore(t, []vectordb.Chunk{
		chunk("c1", vectordb.SectionSummary, "Engineer.", 0, []float32{1, 0, 0}),
	})
	embedder := &stubEmbedder{vector: []float32{1, 0, 0}, fail: true}

	eng, err := NewEngine(embedder, store, Options{TopK: 5, SimilarityThreshold: 0.7, MaxContextChars: 4000})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	_, err = eng.Retrieve(context.Background(), "subject-1", "hello")
	if !errors.Is(err, apperr.ErrEmbeddingProvider) {
		t.Fatalf("expected embedding provider error, got %v", err)
	}
}

func TestRetrieveContextBudgetCutsWholeChunks(t *testing.T) {
	long := strings.Repeat("x", 120)
	store := seedStore(t, []vectordb.Chunk{
		chunk("c1", vectordb.SectionExperience, long, 0, []float32{1, 0, 0}),
		chunk("c2", vectordb.SectionSkills, long, 1, []float32{1, 0.1, 0}),
		chunk("c3", vectordb.SectionProjects, long, 2, []float32{1, 0.2, 0}),
	})
	embedder := &stubEmbedder{vector: []float32{1, 0, 0}}

	// Budget fits one formatted entry but not two.
	eng, err := NewEngine(embedder, store, Options{TopK: 5, SimilarityThreshold: 0.5, MaxContextChars: 200})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	res, err := eng.Retrieve(context.Background(), "subject-1", "hello")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res.Chunks) != 1 {
		t.Fatalf("expected 1 chunk within budget, got %d", len(res.Chunks))
	}
	if res.Chunks[0].Chunk.ID != "c1" {
		t.Fatalf("expected best-scoring chunk kept, got %s", res.Chunks[0].Chunk.ID)
	}
	if len(res.Context) > 200 {
		t.Fatalf("context exceeds budget: %d chars", len(res.Context))
	}
}
