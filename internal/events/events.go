package events

import (
	"sync"
	"time"
)

// Event types published by the session, inventory and reservation layers.
const (
	SessionLoggedIn      = "session.logged_in"
	SessionLoggedOut     = "session.logged_out"
	SessionLoginRequired = "session.login_required"
	LikeToggled          = "inventory.like_toggled"
	ReservationCompleted = "reservation.completed"
)

// Event is a lightweight in-process notification.
type Event struct {
	Type      string
	Payload   any
	CreatedAt time.Time
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus provides in-process pub/sub for events.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type. A nil bus drops the event.
func (b *Bus) Publish(eventType string, payload any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[eventType]...)
	b.mu.RUnlock()

	event := Event{Type: eventType, Payload: payload, CreatedAt: time.Now()}
	// Handlers run synchronously; caller decides concurrency model.
	for _, handler := range handlers {
		handler(event)
	}
}
