// Package events provides the fire-and-forget notification bus. Subscriber
// failures never propagate back into the dialog engine.
package events

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Handler is the subscriber callback type. A returned error is logged and
// swallowed.
type Handler func(event Event) error

// Event is one published notification.
type Event struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload"`
	Source  string    `json:"source"`
	At      time.Time `json:"at"`
}

// Bus is an in-process publish/subscribe hub. Publish is synchronous but
// isolated: a panicking or failing subscriber cannot affect the publisher.
type Bus struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
	all      []Handler
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger, handlers: map[string][]Handler{}}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish delivers the event to the matching handlers. Handler errors and
// panics are logged and swallowed.
func (b *Bus) Publish(eventType string, payload any, source string) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[eventType])+len(b.all))
	handlers = append(handlers, b.handlers[eventType]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	event := Event{Type: eventType, Payload: payload, Source: source, At: time.Now()}
	for _, h := range handlers {
		b.deliver(h, event)
	}
}

func (b *Bus) deliver(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("event handler panicked (swallowed)",
				"event_type", event.Type,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	if err := h(event); err != nil {
		b.logger.Warn("event handler error (swallowed)",
			"event_type", event.Type,
			"error", err)
	}
}
