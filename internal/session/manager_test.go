package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hireloop/portalchat/internal/apperr"
	"github.com/hireloop/portalchat/internal/db"
)

func newTestManager(t *testing.T, store Store) (*Manager, *time.Time) {
	t.Helper()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(store, 30*time.Minute, 5)
	m.now = func() time.Time { return now }
	return m, &now
}

// runStoreTests exercises the manager against every store backend.
func runStoreTests(t *testing.T, name string, newStore func(t *testing.T) Store) {
	t.Run(name+"/create and get", func(t *testing.T) {
		m, _ := newTestManager(t, newStore(t))
		sess, err := m.Create(context.Background(), "subject-1", "visitor-1")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if sess.State != StateActive {
			t.Fatalf("state = %s, want active", sess.State)
		}

		got, err := m.Get(context.Background(), sess.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.SubjectID != "subject-1" || got.VisitorID != "visitor-1" {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run(name+"/get missing", func(t *testing.T) {
		m, _ := newTestManager(t, newStore(t))
		_, err := m.Get(context.Background(), "nope")
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run(name+"/visitor cap", func(t *testing.T) {
		m, _ := newTestManager(t, newStore(t))
		for i := 0; i < 5; i++ {
			if _, err := m.Create(context.Background(), "subject-1", "visitor-1"); err != nil {
				t.Fatalf("Create %d: %v", i, err)
			}
		}
		_, err := m.Create(context.Background(), "subject-1", "visitor-1")
		if !errors.Is(err, apperr.ErrResourceExhausted) {
			t.Fatalf("expected resource exhausted, got %v", err)
		}
		// A different visitor is unaffected.
		if _, err := m.Create(context.Background(), "subject-1", "visitor-2"); err != nil {
			t.Fatalf("Create for other visitor: %v", err)
		}
	})

	t.Run(name+"/visitor cap holds under concurrency", func(t *testing.T) {
		// The store delay widens the window between the cap check and
		// the insert; without serialization every create would pass.
		m, _ := newTestManager(t, &slowCreateStore{Store: newStore(t), delay: 5 * time.Millisecond})

		var wg sync.WaitGroup
		var mu sync.Mutex
		created, rejected := 0, 0
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := m.Create(context.Background(), "subject-1", "visitor-1")
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					created++
				case errors.Is(err, apperr.ErrResourceExhausted):
					rejected++
				default:
					t.Errorf("Create: %v", err)
				}
			}()
		}
		wg.Wait()

		if created != 5 || rejected != 15 {
			t.Fatalf("created %d, rejected %d; want 5 and 15", created, rejected)
		}
	})

	t.Run(name+"/ending a session frees the cap", func(t *testing.T) {
		m, _ := newTestManager(t, newStore(t))
		var last *Session
		for i := 0; i < 5; i++ {
			sess, err := m.Create(context.Background(), "subject-1", "visitor-1")
			if err != nil {
				t.Fatalf("Create %d: %v", i, err)
			}
			last = sess
		}
		if err := m.End(context.Background(), last.ID); err != nil {
			t.Fatalf("End: %v", err)
		}
		if _, err := m.Create(context.Background(), "subject-1", "visitor-1"); err != nil {
			t.Fatalf("Create after End: %v", err)
		}
	})

	t.Run(name+"/lazy expiry", func(t *testing.T) {
		m, now := newTestManager(t, newStore(t))
		sess, err := m.Create(context.Background(), "subject-1", "visitor-1")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		*now = now.Add(31 * time.Minute)
		_, err = m.Get(context.Background(), sess.ID)
		if !errors.Is(err, apperr.ErrExpired) {
			t.Fatalf("expected expired, got %v", err)
		}

		// The transition persisted: subsequent reads see expired too.
		_, err = m.Get(context.Background(), sess.ID)
		if !errors.Is(err, apperr.ErrExpired) {
			t.Fatalf("expected expired on reread, got %v", err)
		}
	})

	t.Run(name+"/append to idle session expires it", func(t *testing.T) {
		m, now := newTestManager(t, newStore(t))
		sess, err := m.Create(context.Background(), "subject-1", "visitor-1")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		*now = now.Add(31 * time.Minute)
		err = m.AppendExchange(context.Background(), sess.ID,
			Turn{Content: "hi"}, Turn{Content: "hello"})
		if !errors.Is(err, apperr.ErrExpired) {
			t.Fatalf("expected expired, got %v", err)
		}
		turns, err := m.History(context.Background(), sess.ID)
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(turns) != 0 {
			t.Fatalf("expired append left %d turns", len(turns))
		}
	})

	t.Run(name+"/append exchange", func(t *testing.T) {
		m, _ := newTestManager(t, newStore(t))
		sess, err := m.Create(context.Background(), "subject-1", "visitor-1")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		confidence := 0.92
		err = m.AppendExchange(context.Background(), sess.ID,
			Turn{Content: "what do they do?"},
			Turn{Content: "They build payment systems.", Sources: []string{"experience"}, Confidence: &confidence})
		if err != nil {
			t.Fatalf("AppendExchange: %v", err)
		}

		turns, err := m.History(context.Background(), sess.ID)
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(turns) != 2 {
			t.Fatalf("expected 2 turns, got %d", len(turns))
		}
		if turns[0].Role != RoleUser || turns[0].Seq != 0 {
			t.Fatalf("user turn = %+v", turns[0])
		}
		if turns[1].Role != RoleAssistant || turns[1].Seq != 1 {
			t.Fatalf("assistant turn = %+v", turns[1])
		}
		if turns[1].Confidence == nil || *turns[1].Confidence != 0.92 {
			t.Fatalf("confidence not preserved: %+v", turns[1].Confidence)
		}
		if len(turns[1].Sources) != 1 || turns[1].Sources[0] != "experience" {
			t.Fatalf("sources not preserved: %+v", turns[1].Sources)
		}
	})

	t.Run(name+"/append refreshes activity", func(t *testing.T) {
		m, now := newTestManager(t, newStore(t))
		sess, err := m.Create(context.Background(), "subject-1", "visitor-1")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		*now = now.Add(20 * time.Minute)
		if err := m.AppendExchange(context.Background(), sess.ID,
			Turn{Content: "still there?"}, Turn{Content: "yes"}); err != nil {
			t.Fatalf("AppendExchange: %v", err)
		}

		// 20 more minutes is under the TTL relative to the exchange.
		*now = now.Add(20 * time.Minute)
		if _, err := m.Get(context.Background(), sess.ID); err != nil {
			t.Fatalf("session should still be active: %v", err)
		}
	})

	t.Run(name+"/concurrent exchanges stay contiguous", func(t *testing.T) {
		m, _ := newTestManager(t, newStore(t))
		sess, err := m.Create(context.Background(), "subject-1", "visitor-1")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := m.AppendExchange(context.Background(), sess.ID,
					Turn{Content: fmt.Sprintf("q%d", i)},
					Turn{Content: fmt.Sprintf("a%d", i)})
				if err != nil {
					t.Errorf("AppendExchange %d: %v", i, err)
				}
			}(i)
		}
		wg.Wait()

		turns, err := m.History(context.Background(), sess.ID)
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(turns) != 20 {
			t.Fatalf("expected 20 turns, got %d", len(turns))
		}
		for i, turn := range turns {
			if turn.Seq != i {
				t.Fatalf("turn %d has seq %d", i, turn.Seq)
			}
			want := RoleUser
			if i%2 == 1 {
				want = RoleAssistant
			}
			if turn.Role != want {
				t.Fatalf("turn %d role = %s, want %s", i, turn.Role, want)
			}
		}
	})

	t.Run(name+"/end is idempotent", func(t *testing.T) {
		m, _ := newTestManager(t, newStore(t))
		sess, err := m.Create(context.Background(), "subject-1", "visitor-1")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := m.End(context.Background(), sess.ID); err != nil {
			t.Fatalf("End: %v", err)
		}
		if err := m.End(context.Background(), sess.ID); err != nil {
			t.Fatalf("second End: %v", err)
		}
		if err := m.End(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("End on missing session: %v", err)
		}
	})

	t.Run(name+"/append after end rejected", func(t *testing.T) {
		m, _ := newTestManager(t, newStore(t))
		sess, err := m.Create(context.Background(), "subject-1", "visitor-1")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := m.End(context.Background(), sess.ID); err != nil {
			t.Fatalf("End: %v", err)
		}
		err = m.AppendExchange(context.Background(), sess.ID,
			Turn{Content: "hi"}, Turn{Content: "hello"})
		if !errors.Is(err, apperr.ErrInvalidState) {
			t.Fatalf("expected invalid state, got %v", err)
		}
	})

	t.Run(name+"/history readable after end", func(t *testing.T) {
		m, _ := newTestManager(t, newStore(t))
		sess, err := m.Create(context.Background(), "subject-1", "visitor-1")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := m.AppendExchange(context.Background(), sess.ID,
			Turn{Content: "hi"}, Turn{Content: "hello"}); err != nil {
			t.Fatalf("AppendExchange: %v", err)
		}
		if err := m.End(context.Background(), sess.ID); err != nil {
			t.Fatalf("End: %v", err)
		}
		turns, err := m.History(context.Background(), sess.ID)
		if err != nil {
			t.Fatalf("History after end: %v", err)
		}
		if len(turns) != 2 {
			t.Fatalf("expected 2 turns, got %d", len(turns))
		}
	})

	t.Run(name+"/sweep", func(t *testing.T) {
		m, now := newTestManager(t, newStore(t))
		old, err := m.Create(context.Background(), "subject-1", "visitor-1")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		*now = now.Add(31 * time.Minute)
		fresh, err := m.Create(context.Background(), "subject-1", "visitor-2")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		n, err := m.Sweep(context.Background())
		if err != nil {
			t.Fatalf("Sweep: %v", err)
		}
		if n != 1 {
			t.Fatalf("swept %d sessions, want 1", n)
		}
		if _, err := m.Get(context.Background(), old.ID); !errors.Is(err, apperr.ErrExpired) {
			t.Fatalf("old session: %v", err)
		}
		if _, err := m.Get(context.Background(), fresh.ID); err != nil {
			t.Fatalf("fresh session: %v", err)
		}
	})

	t.Run(name+"/expiry releases append locks", func(t *testing.T) {
		m, now := newTestManager(t, newStore(t))
		lazy, err := m.Create(context.Background(), "subject-1", "visitor-1")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		swept, err := m.Create(context.Background(), "subject-1", "visitor-2")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		for _, id := range []string{lazy.ID, swept.ID} {
			if err := m.AppendExchange(context.Background(), id,
				Turn{Content: "hi"}, Turn{Content: "hello"}); err != nil {
				t.Fatalf("AppendExchange: %v", err)
			}
		}

		*now = now.Add(31 * time.Minute)
		if _, err := m.Get(context.Background(), lazy.ID); !errors.Is(err, apperr.ErrExpired) {
			t.Fatalf("expected expired, got %v", err)
		}
		if _, err := m.Sweep(context.Background()); err != nil {
			t.Fatalf("Sweep: %v", err)
		}

		m.mu.Lock()
		held := len(m.locks)
		m.mu.Unlock()
		if held != 0 {
			t.Fatalf("%d append locks still held after expiry", held)
		}
	})

	t.Run(name+"/recent turns", func(t *testing.T) {
		m, _ := newTestManager(t, newStore(t))
		sess, err := m.Create(context.Background(), "subject-1", "visitor-1")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		for i := 0; i < 4; i++ {
			if err := m.AppendExchange(context.Background(), sess.ID,
				Turn{Content: fmt.Sprintf("q%d", i)},
				Turn{Content: fmt.Sprintf("a%d", i)}); err != nil {
				t.Fatalf("AppendExchange: %v", err)
			}
		}
		turns, err := m.RecentTurns(context.Background(), sess.ID, 4)
		if err != nil {
			t.Fatalf("RecentTurns: %v", err)
		}
		if len(turns) != 4 {
			t.Fatalf("expected 4 turns, got %d", len(turns))
		}
		if turns[0].Content != "q2" || turns[3].Content != "a3" {
			t.Fatalf("unexpected window: %q .. %q", turns[0].Content, turns[3].Content)
		}
	})
}

// slowCreateStore adds latency to session inserts, mimicking a store
// backed by disk.
type slowCreateStore struct {
	Store
	delay time.Duration
}

func (s *slowCreateStore) CreateSession(ctx context.Context, sess *Session) error {
	time.Sleep(s.delay)
	return s.Store.CreateSession(ctx, sess)
}

func TestManagerMemoryStore(t *testing.T) {
	runStoreTests(t, "memory", func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestManagerSQLiteStore(t *testing.T) {
	runStoreTests(t, "sqlite", func(t *testing.T) Store {
		database, err := db.OpenMemory()
		if err != nil {
			t.Fatalf("OpenMemory: %v", err)
		}
		t.Cleanup(func() { database.Close() })
		return NewSQLiteStore(database)
	})
}
