package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hireloop/portalchat/internal/apperr"
)

// Manager enforces session lifecycle rules on top of a Store: idle
// expiry, per-visitor caps, and serialized appends per session.
type Manager struct {
	store         Store
	ttl           time.Duration
	maxPerVisitor int
	now           func() time.Time

	mu           sync.Mutex
	locks        map[string]*sync.Mutex
	visitorLocks map[string]*sync.Mutex
}

// NewManager creates a manager. maxPerVisitor caps concurrently active
// sessions per visitor; zero or negative means unlimited.
func NewManager(store Store, ttl time.Duration, maxPerVisitor int) *Manager {
	return &Manager{
		store:         store,
		ttl:           ttl,
		maxPerVisitor: maxPerVisitor,
		now:           time.Now,
		locks:         make(map[string]*sync.Mutex),
		visitorLocks:  make(map[string]*sync.Mutex),
	}
}

// Create opens a new active session for a visitor. Visitors at their
// concurrent-session cap get a resource-exhausted error; they must end
// or let expire an existing session first.
func (m *Manager) Create(ctx context.Context, subjectID, visitorID string) (*Session, error) {
	if subjectID == "" {
		return nil, apperr.New(apperr.CodeRejectedInput, "subject id is required", nil)
	}
	if m.maxPerVisitor > 0 && visitorID != "" {
		// Count and insert under the visitor's lock so concurrent creates
		// cannot all pass the cap check before any of them commits.
		lock := m.visitorLock(visitorID)
		lock.Lock()
		defer lock.Unlock()

		active, err := m.store.CountActiveByVisitor(ctx, visitorID)
		if err != nil {
			return nil, fmt.Errorf("counting visitor sessions: %w", err)
		}
		if active >= m.maxPerVisitor {
			return nil, apperr.New(apperr.CodeResourceExhausted,
				fmt.Sprintf("visitor already has %d active sessions", active), nil)
		}
	}

	now := m.now()
	sess := &Session{
		ID:             uuid.NewString(),
		SubjectID:      subjectID,
		VisitorID:      visitorID,
		State:          StateActive,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return sess, nil
}

// Get returns an active session, applying idle expiry lazily: an active
// session whose idle time exceeds the TTL is marked expired on read and
// reported as expired, even if no sweeper ran.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	switch sess.State {
	case StateActive:
		if m.expired(sess) {
			if err := m.store.UpdateState(ctx, id, StateExpired); err != nil && !errors.Is(err, apperr.ErrNotFound) {
				return nil, err
			}
			m.dropLock(id)
			return nil, apperr.New(apperr.CodeExpired, "session expired", nil)
		}
		return sess, nil
	case StateExpired:
		m.dropLock(id)
		return nil, apperr.New(apperr.CodeExpired, "session expired", nil)
	default:
		return nil, apperr.New(apperr.CodeInvalidState, "session has ended", nil)
	}
}

// AppendExchange appends a user turn and the assistant reply as one
// atomic unit and refreshes the session's activity timestamp. Appends
// to the same session are serialized, so concurrent exchanges interleave
// at exchange granularity and Seq stays contiguous.
func (m *Manager) AppendExchange(ctx context.Context, sessionID string, user, assistant Turn) error {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := m.Get(ctx, sessionID); err != nil {
		return err
	}

	seq, err := m.store.CountTurns(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("counting turns: %w", err)
	}

	now := m.now()
	user.ID = uuid.NewString()
	user.SessionID = sessionID
	user.Seq = seq
	user.Role = RoleUser
	user.CreatedAt = now

	assistant.ID = uuid.NewString()
	assistant.SessionID = sessionID
	assistant.Seq = seq + 1
	assistant.Role = RoleAssistant
	assistant.CreatedAt = now

	if err := m.store.AppendTurns(ctx, sessionID, []Turn{user, assistant}); err != nil {
		return fmt.Errorf("appending exchange: %w", err)
	}
	return m.store.Touch(ctx, sessionID, now)
}

// End moves a session to the ended state. Ending an already ended or
// expired session is a no-op; only a missing session is an error.
func (m *Manager) End(ctx context.Context, id string) error {
	lock := m.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if sess.State != StateActive {
		return nil
	}
	if err := m.store.UpdateState(ctx, id, StateEnded); err != nil {
		return err
	}

	m.dropLock(id)
	return nil
}

// History returns the full ordered history of a session in any state.
// Ended and expired sessions stay readable.
func (m *Manager) History(ctx context.Context, id string) ([]Turn, error) {
	if _, err := m.store.GetSession(ctx, id); err != nil {
		return nil, err
	}
	return m.store.ListTurns(ctx, id)
}

// RecentTurns returns the last n turns, oldest first.
func (m *Manager) RecentTurns(ctx context.Context, id string, n int) ([]Turn, error) {
	turns, err := m.History(ctx, id)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns, nil
}

// Sweep expires every session idle past the TTL and releases their
// append locks.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	ids, err := m.store.ExpireIdle(ctx, m.now().Add(-m.ttl))
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		m.dropLock(id)
	}
	return len(ids), nil
}

// StartSweeper runs Sweep on the given interval until the context is
// cancelled. Lazy expiry in Get makes the sweeper an optimization, not
// a correctness requirement.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := m.Sweep(ctx); err != nil {
					log.Printf("session: sweep failed: %v", err)
				} else if n > 0 {
					log.Printf("session: expired %d idle sessions", n)
				}
			}
		}
	}()
}

func (m *Manager) expired(s *Session) bool {
	return m.now().Sub(s.LastActivityAt) > m.ttl
}

func (m *Manager) sessionLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	return lock
}

// dropLock forgets a session's append lock once no further appends can
// succeed (the session ended or expired).
func (m *Manager) dropLock(id string) {
	m.mu.Lock()
	delete(m.locks, id)
	m.mu.Unlock()
}

func (m *Manager) visitorLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.visitorLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.visitorLocks[id] = lock
	}
	return lock
}
