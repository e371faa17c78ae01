// Package events records operational chat events for auditing and
// webhook notification. Events carry identifiers and short detail
// strings only, never message content.
package events

import "time"

// Type classifies an event.
type Type string

const (
	TypeSessionCreated Type = "session_created"
	TypeSessionEnded   Type = "session_ended"
	TypeMessageSent    Type = "message_sent"
	TypeThrottled      Type = "throttled"
	TypeRejected       Type = "rejected"
	TypeProviderError  Type = "provider_error"
	TypeIndexBuilt     Type = "index_built"
	TypeIndexDeleted   Type = "index_deleted"
)

// Event is one recorded occurrence. Detail is a short operator-facing
// note (an error class, a counter), not conversation text.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	SubjectID string    `json:"subject_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	VisitorID string    `json:"visitor_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
