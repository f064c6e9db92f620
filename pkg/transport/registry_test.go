package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryDeliveryOrder(t *testing.T) {
	r := newRegistry()

	var order []string
	idA := r.add("x", func(event string, payload json.RawMessage) {
		order = append(order, "A")
	})
	idB := r.add("x", func(event string, payload json.RawMessage) {
		order = append(order, "B")
	})

	assert.NotEqual(t, idA, idB)

	for _, h := range r.handlers("x") {
		h("x", nil)
	}
	assert.Equal(t, []string{"A", "B"}, order)
}

func TestRegistryDuplicateHandlerDeliversTwice(t *testing.T) {
	r := newRegistry()

	calls := 0
	handler := func(event string, payload json.RawMessage) { calls++ }

	id1 := r.add("x", handler)
	id2 := r.add("x", handler)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, r.count("x"))

	for _, h := range r.handlers("x") {
		h("x", nil)
	}
	assert.Equal(t, 2, calls)

	// Each registration is removable independently.
	assert.True(t, r.remove("x", id1))
	assert.Equal(t, 1, r.count("x"))
}

func TestRegistryRemove(t *testing.T) {
	r := newRegistry()

	var order []string
	idA := r.add("x", func(event string, payload json.RawMessage) {
		order = append(order, "A")
	})
	r.add("x", func(event string, payload json.RawMessage) {
		order = append(order, "B")
	})

	assert.True(t, r.remove("x", idA))

	for _, h := range r.handlers("x") {
		h("x", nil)
	}
	assert.Equal(t, []string{"B"}, order)
}

func TestRegistryRemoveAbsentIsNoop(t *testing.T) {
	r := newRegistry()

	assert.False(t, r.remove("x", "nope"))

	id := r.add("x", func(event string, payload json.RawMessage) {})
	assert.False(t, r.remove("y", id), "wrong event name must not match")
	assert.True(t, r.remove("x", id))
	assert.False(t, r.remove("x", id), "second removal of the same id")
}

func TestRegistryEmptyEventHasNoHandlers(t *testing.T) {
	r := newRegistry()

	id := r.add("x", func(event string, payload json.RawMessage) {})
	r.remove("x", id)

	assert.Nil(t, r.handlers("x"))
	assert.Equal(t, 0, r.count("x"))
}
