package transport

import (
	"context"
	"encoding/json"

	"github.com/agentdeck/realtime-go/pkg/logging"
)

var _ Transport = (*DegradedTransport)(nil)

// DegradedTransport satisfies the Transport contract with no network access.
// It exists so the lifecycle manager always has something safe to hand to
// the subscription façade when a live connection cannot be established:
// subscriptions are kept in a real registry, sends are discarded, and the
// connection status is permanently false.
//
// A degraded transport is never promoted to a live one; a fresh initialize
// cycle builds a new transport with a new registry.
type DegradedTransport struct {
	registry *registry
	logger   logging.Logger
}

// NewDegradedTransport creates a degraded transport.
func NewDegradedTransport(opts ...Option) *DegradedTransport {
	o := newOptions(opts...)
	return &DegradedTransport{
		registry: newRegistry(),
		logger:   o.logger.WithComponent("transport.degraded"),
	}
}

// Initialize succeeds trivially; there is nothing to establish.
func (t *DegradedTransport) Initialize(ctx context.Context) error {
	t.logger.Debug("initialized without connection")
	return nil
}

// Subscribe registers a handler. Registrations are retained even though no
// frames will ever arrive, so consumer code behaves identically in degraded
// mode.
func (t *DegradedTransport) Subscribe(event string, handler EventHandler) SubscriptionID {
	return t.registry.add(event, handler)
}

// Unsubscribe removes one registration; absent registrations are a no-op.
func (t *DegradedTransport) Unsubscribe(event string, id SubscriptionID) bool {
	return t.registry.remove(event, id)
}

// Emit discards the payload. Degraded mode has no peer to deliver to.
func (t *DegradedTransport) Emit(ctx context.Context, event string, payload json.RawMessage) error {
	t.logger.Debug("emit discarded in degraded mode", logging.String("event", event))
	return nil
}

// Connected always reports false.
func (t *DegradedTransport) Connected() bool {
	return false
}

// Close is a no-op; there are no resources to release.
func (t *DegradedTransport) Close(ctx context.Context) error {
	return nil
}
