// Package broadcast fans out pipeline events to connected observers.
package broadcast

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"

	"solaris-cloud/internal/observability/metrics"
)

// EventType discriminates the two broadcast event kinds.
type EventType string

const (
	// EventNewSample carries a freshly persisted telemetry sample.
	EventNewSample EventType = "new-sample"
	// EventAlert carries an admitted alert.
	EventAlert EventType = "alert"
)

// Event is the envelope delivered to every observer.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// Observer is one connected broadcast recipient. Events arrive on Events()
// in publish order until the hub drops the observer or Unsubscribe runs.
type Observer struct {
	id string
	ch chan []byte
}

// Events returns the observer's delivery channel. It is closed when the
// observer is unsubscribed or dropped.
func (o *Observer) Events() <-chan []byte { return o.ch }

// ID returns the observer's session id.
func (o *Observer) ID() string { return o.id }

// Hub maintains the observer set and delivers events best-effort. Publish
// never blocks: an observer whose buffer is full is dropped so a slow
// client cannot stall the ingestion path or its peers.
type Hub struct {
	logger *log.Logger
	buffer int

	mu        sync.Mutex
	observers map[*Observer]struct{}
}

// HubOption configures the hub.
type HubOption func(*Hub)

// WithBuffer sets the per-observer event buffer.
func WithBuffer(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.buffer = size
		}
	}
}

// NewHub constructs a hub.
func NewHub(logger *log.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	h := &Hub{
		logger:    logger,
		buffer:    32,
		observers: make(map[*Observer]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a new observer session.
func (h *Hub) Subscribe() *Observer {
	observer := &Observer{
		id: "observer-" + uuid.NewString(),
		ch: make(chan []byte, h.buffer),
	}
	h.mu.Lock()
	h.observers[observer] = struct{}{}
	count := len(h.observers)
	h.mu.Unlock()
	metrics.SetObservers(count)
	return observer
}

// Unsubscribe removes an observer and closes its channel. Safe to call for
// an observer the hub already dropped.
func (h *Hub) Unsubscribe(observer *Observer) {
	if observer == nil {
		return
	}
	h.mu.Lock()
	_, live := h.observers[observer]
	if live {
		delete(h.observers, observer)
		close(observer.ch)
	}
	count := len(h.observers)
	h.mu.Unlock()
	metrics.SetObservers(count)
}

// Publish marshals the event once and delivers it to every live observer.
// Delivery per observer is independent: a full buffer drops only that
// observer. Publish never blocks the caller.
func (h *Hub) Publish(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Printf("broadcast: marshal %s event: %v", event.Type, err)
		return
	}
	metrics.IncBroadcastEvent(string(event.Type))

	h.mu.Lock()
	for observer := range h.observers {
		select {
		case observer.ch <- payload:
		default:
			delete(h.observers, observer)
			close(observer.ch)
			metrics.IncObserverDropped()
			h.logger.Printf("broadcast: dropped slow observer %s", observer.id)
		}
	}
	count := len(h.observers)
	h.mu.Unlock()
	metrics.SetObservers(count)
}

// Len reports the number of live observers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}
