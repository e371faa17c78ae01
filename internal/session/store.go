package session

import (
	"context"
	"time"
)

// Store persists sessions and their turns. Implementations must make
// AppendTurns atomic: either every turn in the batch is visible or none
// is. The Manager layers state checks and locking on top.
type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateState(ctx context.Context, id string, state State) error
	Touch(ctx context.Context, id string, at time.Time) error

	AppendTurns(ctx context.Context, sessionID string, turns []Turn) error
	ListTurns(ctx context.Context, sessionID string) ([]Turn, error)
	CountTurns(ctx context.Context, sessionID string) (int, error)

	CountActiveByVisitor(ctx context.Context, visitorID string) (int, error)
	// ExpireIdle moves active sessions with no activity since the cutoff
	// to the expired state and returns the IDs that changed.
	ExpireIdle(ctx context.Context, cutoff time.Time) ([]string, error)
}
