package gqlduplex

import (
	"sync"
)

// EventType names an externally observable client event.
type EventType string

const (
	// EventSubscriptionData fires after a data frame was routed to its
	// subscription handler.
	EventSubscriptionData EventType = "subscription.data"

	// EventSubscriptionComplete fires after the server completed a
	// subscription and its handler received the completion signal.
	EventSubscriptionComplete EventType = "subscription.complete"

	// EventCallbackFired fires after an HTTP operation invoked its
	// callback with the raw or normalized payload.
	EventCallbackFired EventType = "callback"

	// EventConnected and EventDisconnected track the websocket lifecycle.
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
)

// Event carries the id of the operation it concerns and the payload the
// operation's own callback received, if any.
type Event struct {
	Type    EventType
	ID      string
	Payload interface{}
}

// EventSink receives every event the client dispatches, after the
// operation's own callback ran. Implementations bridge the client into
// the host application's dispatch mechanism and must not block.
type EventSink interface {
	Dispatch(Event)
}

// NopSink discards every event. It is the default sink.
type NopSink struct{}

func (NopSink) Dispatch(Event) {}

// SinkFunc adapts a plain function to the EventSink interface.
type SinkFunc func(Event)

func (f SinkFunc) Dispatch(ev Event) { f(ev) }

// EmitterSink fans each event out to the listeners registered for its
// type, synchronously and in registration order.
type EmitterSink struct {
	mu        sync.RWMutex
	listeners map[EventType][]func(Event)
}

func NewEmitterSink() *EmitterSink {
	return &EmitterSink{
		listeners: make(map[EventType][]func(Event)),
	}
}

// On registers a listener for the given event type.
func (e *EmitterSink) On(typ EventType, fn func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners[typ] = append(e.listeners[typ], fn)
}

func (e *EmitterSink) Dispatch(ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, fn := range e.listeners[ev.Type] {
		fn(ev)
	}
}

// Close removes all listeners. Events dispatched afterwards go nowhere.
func (e *EmitterSink) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners = make(map[EventType][]func(Event))
}
