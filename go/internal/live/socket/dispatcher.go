package socket

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Handler receives an event payload. Wire events arrive as json.RawMessage;
// local lifecycle events arrive as their typed payload structs.
type Handler func(payload interface{})

// Subscription is the disposer token returned by Dispatcher.On. Dropping a
// handler only requires the token, not the original function reference.
type Subscription struct {
	dispatcher *Dispatcher
	eventType  EventType
	id         uint64
	handler    Handler
}

// Off unregisters the handler. Safe to call more than once.
func (s *Subscription) Off() {
	if s == nil || s.dispatcher == nil {
		return
	}
	s.dispatcher.remove(s)
	s.dispatcher = nil
}

// Dispatcher decouples the connection manager from state consumers.
// Handlers for one event type run in registration order; no ordering is
// guaranteed between different event types.
type Dispatcher struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[EventType][]*Subscription
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[EventType][]*Subscription),
	}
}

// On registers a handler for an event type and returns its disposer token.
func (d *Dispatcher) On(eventType EventType, handler Handler) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	sub := &Subscription{
		dispatcher: d,
		eventType:  eventType,
		id:         d.nextID,
		handler:    handler,
	}
	d.handlers[eventType] = append(d.handlers[eventType], sub)
	return sub
}

// Emit invokes every handler registered for the event type. A panicking
// handler is isolated and logged so the remaining handlers still run.
func (d *Dispatcher) Emit(eventType EventType, payload interface{}) {
	d.mu.RLock()
	subs := make([]*Subscription, len(d.handlers[eventType]))
	copy(subs, d.handlers[eventType])
	d.mu.RUnlock()

	for _, sub := range subs {
		invoke(sub, eventType, payload)
	}
}

func invoke(sub *Subscription, eventType EventType, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("event_type", string(eventType)).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	sub.handler(payload)
}

func (d *Dispatcher) remove(sub *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs := d.handlers[sub.eventType]
	for i, s := range subs {
		if s.id == sub.id {
			d.handlers[sub.eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}
