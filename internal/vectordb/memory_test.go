package vectordb

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
)

func chunk(id string, section SourceSection, position int, embedding []float32) Chunk {
	return Chunk{
		ID:            id,
		SourceSection: section,
		Text:          "text for " + id,
		Embedding:     embedding,
		Position:      position,
	}
}

func TestMemoryQueryOrderingAndThreshold(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	chunks := []Chunk{
		chunk("exact", SectionSkills, 0, []float32{1, 0, 0, 0}),      // sim 1.0
		chunk("close", SectionExperience, 1, []float32{1, 0.5, 0, 0}), // sim ~0.894
		chunk("diag", SectionEducation, 2, []float32{1, 1, 0, 0}),     // sim ~0.707
		chunk("orth", SectionSummary, 3, []float32{0, 1, 0, 0}),       // sim 0
	}
	if err := s.UpsertIndex(ctx, "subj", "test-model", chunks); err != nil {
		t.Fatalf("UpsertIndex: %v", err)
	}

	results, err := s.Query(ctx, "subj", []float32{1, 0, 0, 0}, 10, 0.7)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results above threshold, got %d", len(results))
	}
	wantOrder := []string{"exact", "close", "diag"}
	for i, want := range wantOrder {
		if results[i].Chunk.ID != want {
			t.Errorf("result[%d]: got %s, want %s", i, results[i].Chunk.ID, want)
		}
	}

	// Scores are non-increasing and all clear the threshold.
	for i, r := range results {
		if r.Similarity < 0.7 {
			t.Errorf("result[%d] similarity %f below threshold", i, r.Similarity)
		}
		if i > 0 && r.Similarity > results[i-1].Similarity {
			t.Errorf("similarity increased at position %d", i)
		}
	}

	if got := results[0].Similarity; math.Abs(got-1.0) > 1e-9 {
		t.Errorf("exact match similarity: got %f, want 1.0", got)
	}
}

func TestMemoryQueryTopKCut(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var chunks []Chunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, chunk(fmt.Sprintf("c%d", i), SectionSkills, i, []float32{1, 0, 0, 0}))
	}
	if err := s.UpsertIndex(ctx, "subj", "m", chunks); err != nil {
		t.Fatalf("UpsertIndex: %v", err)
	}

	results, err := s.Query(ctx, "subj", []float32{1, 0, 0, 0}, 3, 0.5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected topK=3 results, got %d", len(results))
	}
}

func TestMemoryTiesBrokenByPosition(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Identical embeddings, deliberately out of order.
	chunks := []Chunk{
		chunk("later", SectionSkills, 5, []float32{1, 0, 0, 0}),
		chunk("earlier", SectionSkills, 1, []float32{1, 0, 0, 0}),
		chunk("middle", SectionSkills, 3, []float32{1, 0, 0, 0}),
	}
	if err := s.UpsertIndex(ctx, "subj", "m", chunks); err != nil {
		t.Fatalf("UpsertIndex: %v", err)
	}

	results, err := s.Query(ctx, "subj", []float32{1, 0, 0, 0}, 10, 0.5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	wantOrder := []string{"earlier", "middle", "later"}
	for i, want := range wantOrder {
		if results[i].Chunk.ID != want {
			t.Errorf("result[%d]: got %s, want %s", i, results[i].Chunk.ID, want)
		}
	}
}

func TestMemoryQueryMissingSubject(t *testing.T) {
	s := NewMemoryStore()

	results, err := s.Query(context.Background(), "nobody", []float32{1, 0}, 5, 0.7)
	if err != nil {
		t.Fatalf("Query on missing subject should not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty results, got %d", len(results))
	}
}

func TestMemoryUpsertRejectsMixedDimensions(t *testing.T) {
	s := NewMemoryStore()
	chunks := []Chunk{
		chunk("a", SectionSkills, 0, []float32{1, 0, 0}),
		chunk("b", SectionSkills, 1, []float32{1, 0}),
	}
	if err := s.UpsertIndex(context.Background(), "subj", "m", chunks); err == nil {
		t.Fatal("expected error for mixed dimensions")
	}
}

func TestMemoryDeleteIndex(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.UpsertIndex(ctx, "subj", "m", []Chunk{chunk("a", SectionSkills, 0, []float32{1, 0})}); err != nil {
		t.Fatalf("UpsertIndex: %v", err)
	}
	if err := s.DeleteIndex(ctx, "subj"); err != nil {
		t.Fatalf("DeleteIndex: %v", err)
	}

	if _, ok := s.IndexModel("subj"); ok {
		t.Error("expected no index model after delete")
	}
	results, err := s.Query(ctx, "subj", []float32{1, 0}, 5, 0.1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty results after delete, got %d", len(results))
	}
}

func TestMemoryIndexModel(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.UpsertIndex(ctx, "subj", "text-embedding-3-small", []Chunk{chunk("a", SectionSkills, 0, []float32{1, 0})}); err != nil {
		t.Fatalf("UpsertIndex: %v", err)
	}
	model, ok := s.IndexModel("subj")
	if !ok || model != "text-embedding-3-small" {
		t.Errorf("IndexModel: got (%q, %v)", model, ok)
	}
}

// TestMemoryAtomicSwap rebuilds an index from 5 to 50 chunks while 50
// concurrent queries run. Every query must see one whole generation.
func TestMemoryAtomicSwap(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	genChunks := func(prefix string, n int) []Chunk {
		out := make([]Chunk, n)
		for i := range out {
			out[i] = chunk(fmt.Sprintf("%s-%d", prefix, i), SectionSkills, i, []float32{1, 0, 0, 0})
		}
		return out
	}

	if err := s.UpsertIndex(ctx, "subj", "m", genChunks("old", 5)); err != nil {
		t.Fatalf("UpsertIndex: %v", err)
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan string, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results, err := s.Query(ctx, "subj", []float32{1, 0, 0, 0}, 100, 0.5)
			if err != nil {
				errs <- err.Error()
				return
			}
			var old, new_ int
			for _, r := range results {
				if strings.HasPrefix(r.Chunk.ID, "old-") {
					old++
				} else {
					new_++
				}
			}
			if old > 0 && new_ > 0 {
				errs <- fmt.Sprintf("mixed generations: %d old, %d new", old, new_)
				return
			}
			if old != 5 && new_ != 50 {
				errs <- fmt.Sprintf("inconsistent result set: %d old, %d new", old, new_)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		if err := s.UpsertIndex(ctx, "subj", "m", genChunks("new", 50)); err != nil {
			errs <- err.Error()
		}
	}()

	close(start)
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}
