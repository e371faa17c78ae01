package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Dispatcher persists events and forwards them to an optional webhook.
// Record returns immediately; persistence and delivery happen on a
// worker goroutine so the chat path never waits on the audit trail.
type Dispatcher struct {
	store      *Store
	webhookURL string
	client     *http.Client
	now        func() time.Time

	queue chan Event
	wg    sync.WaitGroup
	once  sync.Once
}

// NewDispatcher creates a dispatcher. store may be nil (no audit trail)
// and webhookURL may be empty (no webhook delivery).
func NewDispatcher(store *Store, webhookURL string) *Dispatcher {
	d := &Dispatcher{
		store:      store,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
		queue:      make(chan Event, 256),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Record queues an event for persistence and delivery. A full queue
// drops the event with a log line rather than blocking the caller.
func (d *Dispatcher) Record(_ context.Context, e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = d.now()
	}
	select {
	case d.queue <- e:
	default:
		log.Printf("events: queue full, dropping %s event", e.Type)
	}
}

// Close drains the queue and stops the worker.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.queue) })
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for e := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if d.store != nil {
			if err := d.store.Create(ctx, e); err != nil {
				log.Printf("events: persisting %s event: %v", e.Type, err)
			}
		}
		if d.webhookURL != "" {
			if err := d.sendWebhook(ctx, e); err != nil {
				log.Printf("events: webhook delivery: %v", err)
			}
		}
		cancel()
	}
}

func (d *Dispatcher) sendWebhook(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
