package transport

import (
	"sync"

	"github.com/google/uuid"
)

// registration is one subscribed handler. Go function values are not
// comparable, so removal goes through the per-registration ID rather than
// handler identity.
type registration struct {
	id      SubscriptionID
	handler EventHandler
}

// registry maps event names to ordered handler registrations. Insertion
// order is delivery order; duplicate registrations of one handler are kept
// and each delivers independently.
type registry struct {
	mu      sync.RWMutex
	entries map[string][]registration
}

func newRegistry() *registry {
	return &registry{
		entries: make(map[string][]registration),
	}
}

func (r *registry) add(event string, handler EventHandler) SubscriptionID {
	id := SubscriptionID(uuid.NewString())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[event] = append(r.entries[event], registration{id: id, handler: handler})
	return id
}

func (r *registry) remove(event string, id SubscriptionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	regs, ok := r.entries[event]
	if !ok {
		return false
	}

	for i, reg := range regs {
		if reg.id == id {
			r.entries[event] = append(regs[:i:i], regs[i+1:]...)
			if len(r.entries[event]) == 0 {
				delete(r.entries, event)
			}
			return true
		}
	}
	return false
}

// handlers returns a snapshot of the registrations for an event in delivery
// order. The snapshot keeps dispatch stable while handlers subscribe or
// unsubscribe concurrently.
func (r *registry) handlers(event string) []EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := r.entries[event]
	if len(regs) == 0 {
		return nil
	}

	snapshot := make([]EventHandler, len(regs))
	for i, reg := range regs {
		snapshot[i] = reg.handler
	}
	return snapshot
}

func (r *registry) count(event string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[event])
}
