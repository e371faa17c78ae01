// Package contentstore provides access to a subject's structured CV content.
// The chat core only reads from it; producing the structured content is the
// ingestion pipeline's job and out of scope here.
package contentstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hireloop/portalchat/internal/vectordb"
)

// Section is one semantic block of a subject's CV.
type Section struct {
	Kind  vectordb.SourceSection `json:"kind"`
	Title string                 `json:"title,omitempty"`
	Items []string               `json:"items"` // bullets/paragraphs in document order
	Tags  []string               `json:"tags,omitempty"`
}

// Content is the structured CV content for one subject.
type Content struct {
	SubjectID string    `json:"subject_id"`
	Sections  []Section `json:"sections"`
}

// Store returns structured CV content for a subject.
type Store interface {
	GetStructuredContent(ctx context.Context, subjectID string) (*Content, error)
}

// FileStore reads content from JSON files named <subjectID>.json in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) GetStructuredContent(ctx context.Context, subjectID string) (*Content, error) {
	// Subject IDs come from URLs; keep them from escaping the content dir.
	if subjectID == "" || subjectID != filepath.Base(subjectID) {
		return nil, fmt.Errorf("invalid subject id %q", subjectID)
	}

	path := filepath.Join(s.dir, subjectID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading content for %s: %w", subjectID, err)
	}

	var content Content
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("parsing content for %s: %w", subjectID, err)
	}
	if content.SubjectID == "" {
		content.SubjectID = subjectID
	}
	return &content, nil
}
