package indexer

import (
	"regexp"
	"strings"
)

// maxChunkChars bounds a single chunk. Roughly 500 tokens at the usual
// 4-chars-per-token estimate.
const maxChunkChars = 2000

// minChunkTokens is the smallest item worth indexing; shorter fragments
// carry no retrievable meaning.
const minChunkTokens = 3

var sentenceSplitter = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// splitItem breaks one content item into chunk-sized texts. Items under the
// limit pass through whole; longer items are split at sentence boundaries
// so a chunk never ends mid-sentence where avoidable.
func splitItem(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxChunkChars {
		return []string{text}
	}

	sentences := sentenceSplitter.FindAllString(text, -1)
	if len(sentences) == 0 {
		// No sentence boundaries at all: fall back to a hard cut.
		return hardSplit(text)
	}

	var chunks []string
	var current []string
	currentLen := 0
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if currentLen+len(s)+1 > maxChunkChars && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = nil
			currentLen = 0
		}
		// A single sentence longer than the limit still gets hard-cut.
		if len(s) > maxChunkChars {
			chunks = append(chunks, hardSplit(s)...)
			continue
		}
		current = append(current, s)
		currentLen += len(s) + 1
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

func hardSplit(text string) []string {
	var chunks []string
	for len(text) > maxChunkChars {
		chunks = append(chunks, text[:maxChunkChars])
		text = text[maxChunkChars:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// tokenCount is a cheap whitespace token estimate.
func tokenCount(text string) int {
	return len(strings.Fields(text))
}
