package gqlduplex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// recordingSink collects every dispatched event for later inspection.
// Shared by the websocket and HTTP tests.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Dispatch(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recordingSink) byType(typ EventType) []Event {
	var out []Event
	for _, ev := range r.snapshot() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestEmitterSinkSingleListener(t *testing.T) {
	sink := NewEmitterSink()
	var got []Event
	sink.On(EventSubscriptionData, func(ev Event) {
		got = append(got, ev)
	})

	sink.Dispatch(Event{Type: EventSubscriptionData, ID: "abc"})

	if assert.Len(t, got, 1) {
		assert.Equal(t, "abc", got[0].ID)
	}
}

func TestEmitterSinkMultipleListeners(t *testing.T) {
	sink := NewEmitterSink()
	var order []int
	sink.On(EventConnected, func(Event) { order = append(order, 1) })
	sink.On(EventConnected, func(Event) { order = append(order, 2) })

	sink.Dispatch(Event{Type: EventConnected})

	assert.Equal(t, []int{1, 2}, order)
}

func TestEmitterSinkTypeIsolation(t *testing.T) {
	sink := NewEmitterSink()
	var calls int
	sink.On(EventSubscriptionComplete, func(Event) { calls++ })

	sink.Dispatch(Event{Type: EventSubscriptionData, ID: "x"})
	sink.Dispatch(Event{Type: EventSubscriptionComplete, ID: "x"})

	assert.Equal(t, 1, calls)
}

func TestEmitterSinkNoListeners(t *testing.T) {
	sink := NewEmitterSink()
	assert.NotPanics(t, func() {
		sink.Dispatch(Event{Type: EventCallbackFired})
	})
}

func TestEmitterSinkClose(t *testing.T) {
	sink := NewEmitterSink()
	var calls int
	sink.On(EventDisconnected, func(Event) { calls++ })

	sink.Close()
	sink.Dispatch(Event{Type: EventDisconnected})

	assert.Zero(t, calls)
}

func TestSinkFunc(t *testing.T) {
	var got Event
	var sink EventSink = SinkFunc(func(ev Event) { got = ev })

	sink.Dispatch(Event{Type: EventCallbackFired, ID: "cb-1"})

	assert.Equal(t, EventCallbackFired, got.Type)
	assert.Equal(t, "cb-1", got.ID)
}
