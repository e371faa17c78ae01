// Package session manages chat session lifecycle and append-only
// conversation history.
package session

import "time"

// State is the lifecycle state of a session.
type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
	StateEnded   State = "ended"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session is one visitor conversation about one subject.
type Session struct {
	ID             string
	SubjectID      string
	VisitorID      string
	State          State
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// Turn is a single message in a session's history. Seq is assigned on
// append and is contiguous per session; history is append-only.
type Turn struct {
	ID         string
	SessionID  string
	Seq        int
	Role       Role
	Content    string
	Sources    []string // source sections behind an assistant turn
	Confidence *float64 // nil for user turns
	CreatedAt  time.Time
}
