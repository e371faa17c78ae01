// Package safety guards the chat entrypoint: input sanitization,
// prompt-injection screening, and per-session rate limiting.
package safety

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hireloop/portalchat/internal/apperr"
)

// injectionPatterns are matched case-insensitively against the whole
// message. Matching input is rejected before it can reach retrieval or
// the language model.
var injectionPatterns = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"disregard previous instructions",
	"disregard your instructions",
	"reveal your system prompt",
	"show your system prompt",
	"print your system prompt",
	"repeat your instructions",
	"you are now",
	"act as if",
	"pretend you are",
	"new instructions:",
	"system prompt:",
	"[system]",
	"<|im_start|>",
}

// Sanitizer validates and normalizes visitor messages.
type Sanitizer struct {
	maxChars int
}

// NewSanitizer creates a sanitizer with the given message length cap.
func NewSanitizer(maxChars int) *Sanitizer {
	if maxChars <= 0 {
		maxChars = 1000
	}
	return &Sanitizer{maxChars: maxChars}
}

// Sanitize strips control characters, trims whitespace, and rejects
// messages that are empty, over the length cap, or match an injection
// pattern. The returned string is what downstream components see.
func (s *Sanitizer) Sanitize(message string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, message)
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return "", apperr.New(apperr.CodeRejectedInput, "message is empty", nil)
	}
	if utf8.RuneCountInString(cleaned) > s.maxChars {
		return "", apperr.New(apperr.CodeRejectedInput,
			fmt.Sprintf("message exceeds %d characters", s.maxChars), nil)
	}

	lower := strings.ToLower(cleaned)
	for _, pattern := range injectionPatterns {
		if strings.Contains(lower, pattern) {
			return "", apperr.New(apperr.CodeRejectedInput, "message contains disallowed instructions", nil)
		}
	}

	return cleaned, nil
}

// ScanOutput checks a generated reply for leaked prompt scaffolding.
// It reports whether the text is safe to return to the visitor.
func ScanOutput(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range []string{"system prompt", "<|im_start|>", "[system]"} {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}
