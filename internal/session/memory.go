package session

import (
	"context"
	"sync"
	"time"

	"github.com/hireloop/portalchat/internal/apperr"
)

// MemoryStore keeps sessions in process memory. State is lost on
// restart; use the SQLite store when history must survive.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memSession
}

type memSession struct {
	session Session
	turns   []Turn
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memSession)}
}

func (m *MemoryStore) CreateSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return apperr.New(apperr.CodeInvalidState, "session already exists", nil)
	}
	m.sessions[s.ID] = &memSession{session: *s}
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.sessions[id]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "session not found", nil)
	}
	s := ms.session
	return &s, nil
}

func (m *MemoryStore) UpdateState(_ context.Context, id string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.sessions[id]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "session not found", nil)
	}
	ms.session.State = state
	return nil
}

func (m *MemoryStore) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.sessions[id]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "session not found", nil)
	}
	ms.session.LastActivityAt = at
	return nil
}

func (m *MemoryStore) AppendTurns(_ context.Context, sessionID string, turns []Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.sessions[sessionID]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "session not found", nil)
	}
	ms.turns = append(ms.turns, turns...)
	return nil
}

func (m *MemoryStore) ListTurns(_ context.Context, sessionID string) ([]Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.sessions[sessionID]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "session not found", nil)
	}
	out := make([]Turn, len(ms.turns))
	copy(out, ms.turns)
	return out, nil
}

func (m *MemoryStore) CountTurns(_ context.Context, sessionID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.sessions[sessionID]
	if !ok {
		return 0, apperr.New(apperr.CodeNotFound, "session not found", nil)
	}
	return len(ms.turns), nil
}

func (m *MemoryStore) CountActiveByVisitor(_ context.Context, visitorID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, ms := range m.sessions {
		if ms.session.VisitorID == visitorID && ms.session.State == StateActive {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ExpireIdle(_ context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, ms := range m.sessions {
		if ms.session.State == StateActive && ms.session.LastActivityAt.Before(cutoff) {
			ms.session.State = StateExpired
			ids = append(ids, id)
		}
	}
	return ids, nil
}
