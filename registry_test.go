package gqlduplex

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderedIDs(r *subscriptionRegistry) []string {
	var ids []string
	for _, s := range r.ordered() {
		ids = append(ids, s.id)
	}
	return ids
}

func TestRegistryAddDuplicate(t *testing.T) {
	r := newSubscriptionRegistry()

	require.NoError(t, r.add("abc", Request{Query: "subscription { a }"}, nil))
	err := r.add("abc", Request{Query: "subscription { b }"}, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateSubscription))
}

func TestRegistryRegistrationOrder(t *testing.T) {
	r := newSubscriptionRegistry()

	require.NoError(t, r.add("c", Request{}, nil))
	require.NoError(t, r.add("a", Request{}, nil))
	require.NoError(t, r.add("b", Request{}, nil))
	assert.Equal(t, []string{"c", "a", "b"}, orderedIDs(r))

	_, ok := r.remove("a")
	require.True(t, ok)
	assert.Equal(t, []string{"c", "b"}, orderedIDs(r))

	require.NoError(t, r.add("a", Request{}, nil))
	assert.Equal(t, []string{"c", "b", "a"}, orderedIDs(r))
}

func TestRegistryRemoveUnknown(t *testing.T) {
	r := newSubscriptionRegistry()

	_, ok := r.remove("missing")
	assert.False(t, ok)
}

func TestRegistryDeactivateAllKeepsEntries(t *testing.T) {
	r := newSubscriptionRegistry()
	require.NoError(t, r.add("a", Request{}, nil))
	require.NoError(t, r.add("b", Request{}, nil))
	for _, s := range r.ordered() {
		s.active = true
		s.started = true
	}

	r.deactivateAll()

	require.Len(t, r.ordered(), 2)
	for _, s := range r.ordered() {
		assert.False(t, s.active)
		assert.True(t, s.started, "started must survive a disconnect")
	}
}

func TestRegistryPruneInactive(t *testing.T) {
	r := newSubscriptionRegistry()
	require.NoError(t, r.add("dead1", Request{}, nil))
	require.NoError(t, r.add("live", Request{}, nil))
	require.NoError(t, r.add("dead2", Request{}, nil))
	s, _ := r.get("live")
	s.active = true

	assert.Equal(t, 2, r.pruneInactive())
	assert.Equal(t, []string{"live"}, orderedIDs(r))

	_, ok := r.get("dead1")
	assert.False(t, ok)
}

func TestQueueFIFO(t *testing.T) {
	q := &outgoingQueue{}
	q.enqueue([]byte("one"))
	q.enqueue([]byte("two"))
	q.enqueue([]byte("three"))

	frames := q.drainAll()
	require.Len(t, frames, 3)
	assert.Equal(t, "one", string(frames[0]))
	assert.Equal(t, "two", string(frames[1]))
	assert.Equal(t, "three", string(frames[2]))

	assert.Empty(t, q.drainAll())
}
