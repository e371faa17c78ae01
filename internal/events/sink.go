package events

import "context"

// Sink receives events. Implementations must not block the caller for
// long; the dispatcher already moves slow delivery off the hot path.
type Sink interface {
	Record(ctx context.Context, e Event)
}

// NopSink discards every event. Used when auditing is disabled and in
// tests that do not care about events.
type NopSink struct{}

func (NopSink) Record(context.Context, Event) {}
