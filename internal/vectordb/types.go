package vectordb

// SourceSection is the semantic category a chunk was drawn from.
type SourceSection string

const (
	SectionSummary    SourceSection = "summary"
	SectionExperience SourceSection = "experience"
	SectionSkills     SourceSection = "skills"
	SectionEducation  SourceSection = "education"
	SectionProjects   SourceSection = "projects"
)

// Chunk is a bounded unit of subject content stored with its embedding.
// Chunks are immutable once created; a content update replaces the whole index.
type Chunk struct {
	ID            string
	SourceSection SourceSection
	Text          string
	Embedding     []float32
	Position      int      // order within the source document, used as tiebreaker
	Tags          []string // optional entity tags (company, skill, ...)
}

// ScoredChunk pairs a chunk with its similarity score for one query.
type ScoredChunk struct {
	Chunk      Chunk
	Similarity float64
}
