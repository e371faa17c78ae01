package safety

import (
	"sync"
	"time"
)

// Decision is the outcome of a rate-limit check. When Allowed is false,
// RetryAfter says how long the caller should wait before the oldest
// counted message falls out of the window.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int       // messages left in the tighter window
	ResetAt    time.Time // when the tighter window next frees a slot
}

// Limiter enforces sliding-window message limits per session. Two
// windows run in parallel (per minute and per hour); a message must
// clear both to be allowed.
type Limiter struct {
	perMinute int
	perHour   int
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionWindow
}

type sessionWindow struct {
	minute []time.Time
	hour   []time.Time
}

// NewLimiter creates a limiter with the given per-session budgets.
func NewLimiter(perMinute, perHour int) *Limiter {
	return &Limiter{
		perMinute: perMinute,
		perHour:   perHour,
		now:       time.Now,
		sessions:  make(map[string]*sessionWindow),
	}
}

// Allow records one message against the session if both windows have
// room, and returns the decision. A denied message is not counted.
func (l *Limiter) Allow(sessionID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.sessions[sessionID]
	if w == nil {
		w = &sessionWindow{}
		l.sessions[sessionID] = w
	}
	w.minute = prune(w.minute, now.Add(-time.Minute))
	w.hour = prune(w.hour, now.Add(-time.Hour))

	if len(w.minute) >= l.perMinute {
		reset := w.minute[0].Add(time.Minute)
		return Decision{RetryAfter: reset.Sub(now), ResetAt: reset}
	}
	if len(w.hour) >= l.perHour {
		reset := w.hour[0].Add(time.Hour)
		return Decision{RetryAfter: reset.Sub(now), ResetAt: reset}
	}

	w.minute = append(w.minute, now)
	w.hour = append(w.hour, now)

	remaining := l.perMinute - len(w.minute)
	if hourRemaining := l.perHour - len(w.hour); hourRemaining < remaining {
		remaining = hourRemaining
	}
	return Decision{
		Allowed:   true,
		Remaining: remaining,
		ResetAt:   w.minute[0].Add(time.Minute),
	}
}

// Forget drops all window state for a session. Called when the session
// ends so the map does not grow without bound.
func (l *Limiter) Forget(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sessions, sessionID)
}

// prune drops timestamps at or before the cutoff. Slices are
// append-only and ordered, so a single scan from the front suffices.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}
