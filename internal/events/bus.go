// Package events provides an in-process publish/subscribe bus for run events.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler receives published events. Handlers run on the publisher's
// goroutine and must not block.
type Handler func(event *Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus delivers events to the handlers subscribed to their type.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]subscription
	all      []subscription
	nextID   uint64
	now      func() time.Time
	log      zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]subscription),
		now:      time.Now,
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers handler for one event type and returns a function
// removing it.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[eventType] = remove(b.handlers[eventType], id)
	}
}

// SubscribeAll registers handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = remove(b.all, id)
	}
}

func remove(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Publish delivers data to the subscribers of its event type.
func (b *Bus) Publish(module string, data EventData) {
	event := &Event{
		Type:      data.EventType(),
		Timestamp: b.now(),
		Module:    module,
		Data:      data,
	}

	b.mu.RLock()
	targets := make([]subscription, 0, len(b.handlers[event.Type])+len(b.all))
	targets = append(targets, b.handlers[event.Type]...)
	targets = append(targets, b.all...)
	b.mu.RUnlock()

	b.log.Debug().Str("type", string(event.Type)).Int("subscribers", len(targets)).Msg("Event published")
	for _, s := range targets {
		s.handler(event)
	}
}

// Emit publishes data under the given event name. Data that is not an
// EventData is wrapped as generic data when it is a map, and dropped
// otherwise.
func (b *Bus) Emit(event string, data any) {
	switch d := data.(type) {
	case EventData:
		b.Publish("work", d)
	case map[string]interface{}:
		b.Publish("work", &GenericEventData{Type: EventType(event), Data: d})
	default:
		b.log.Warn().Str("type", event).Msg("Dropping event with unsupported data")
	}
}
