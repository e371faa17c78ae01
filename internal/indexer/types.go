package indexer

// SkippedItem records content that was not indexed and why.
type SkippedItem struct {
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// BuildResult summarizes one index build.
type BuildResult struct {
	SubjectID  string        `json:"subject_id"`
	Model      string        `json:"model"`
	ChunkCount int           `json:"chunk_count"`
	Skipped    []SkippedItem `json:"skipped,omitempty"`
}
