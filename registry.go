package gqlduplex

import (
	"github.com/pkg/errors"
)

// subscription is one tracked operation. An entry stays tracked across
// disconnects: active means its start frame was sent on the current
// connection, started that it was ever sent on any connection. Inactive
// entries only preserve resumable state, they never receive messages.
type subscription struct {
	id      string
	req     Request
	handler SubscriptionHandler
	active  bool
	started bool
}

// subscriptionRegistry tracks operations in registration order so a
// resume replays start frames in the order the application subscribed.
// Owned by WSClient and only touched under the client's mutex.
type subscriptionRegistry struct {
	subs  map[string]*subscription
	order []string
}

func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{
		subs: make(map[string]*subscription),
	}
}

func (r *subscriptionRegistry) add(id string, req Request, handler SubscriptionHandler) error {
	if _, ok := r.subs[id]; ok {
		return errors.Wrap(ErrDuplicateSubscription, id)
	}
	r.subs[id] = &subscription{
		id:      id,
		req:     req,
		handler: handler,
	}
	r.order = append(r.order, id)
	return nil
}

func (r *subscriptionRegistry) get(id string) (*subscription, bool) {
	s, ok := r.subs[id]
	return s, ok
}

func (r *subscriptionRegistry) remove(id string) (*subscription, bool) {
	s, ok := r.subs[id]
	if !ok {
		return nil, false
	}
	delete(r.subs, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return s, true
}

// ordered returns the tracked subscriptions in registration order.
func (r *subscriptionRegistry) ordered() []*subscription {
	out := make([]*subscription, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.subs[id])
	}
	return out
}

// deactivateAll marks every entry inactive without removing any. Called
// on every transport close so a later resume knows what to replay.
func (r *subscriptionRegistry) deactivateAll() {
	for _, s := range r.subs {
		s.active = false
	}
}

// pruneInactive drops entries that are not active on the current
// connection and reports how many were dropped.
func (r *subscriptionRegistry) pruneInactive() int {
	removed := 0
	keep := r.order[:0]
	for _, id := range r.order {
		if s := r.subs[id]; s != nil && !s.active {
			delete(r.subs, id)
			removed++
			continue
		}
		keep = append(keep, id)
	}
	r.order = keep
	return removed
}

// outgoingQueue buffers marshalled frames sent while the connection was
// not ready. Owned by WSClient, same locking rule as the registry.
type outgoingQueue struct {
	frames [][]byte
}

func (q *outgoingQueue) enqueue(frame []byte) {
	q.frames = append(q.frames, frame)
}

// drainAll empties the queue and returns its frames in FIFO order.
func (q *outgoingQueue) drainAll() [][]byte {
	frames := q.frames
	q.frames = nil
	return frames
}
