// Package events carries shift transition notifications to observers,
// keeping live-update subscribers out of the mutation path.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"punchcard/internal/model"
)

// Event types published by the shift lifecycle.
const (
	TypeClockIn     = "clock_in"
	TypeClockOut    = "clock_out"
	TypeLunchIn     = "lunch_in"
	TypeLunchOut    = "lunch_out"
	TypeWeeklyReset = "weekly_reset"
)

// Event is one shift lifecycle notification.
type Event struct {
	ID     string
	Type   string
	UserID string
	At     time.Time
	Record model.AttendanceRecord
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus provides in-process pub/sub for transition events.
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

// Publish notifies subscribers of the event type.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		handler(event)
	}
}
