package client

import (
	"context"
	"encoding/json"

	"github.com/agentdeck/realtime-go/pkg/logging"
	"github.com/agentdeck/realtime-go/pkg/transport"
)

// DefaultEvent is the event name used by Send, for consumers that do not
// care about named events.
const DefaultEvent = "message"

// Events is the subscription façade: the stable surface consumer code uses
// regardless of which transport is currently active. Every operation
// delegates to the manager's current transport; when none exists yet (the
// process just started and initialization has not run) the operations are
// silent no-ops rather than errors, so consumers never have to coordinate
// startup ordering with the lifecycle manager.
type Events struct {
	manager *Manager
	logger  logging.Logger
}

// Events returns the subscription façade for this manager.
func (m *Manager) Events() *Events {
	return &Events{
		manager: m,
		logger:  m.logger.WithComponent("client.events"),
	}
}

// Subscribe registers a handler for an event name on the current transport.
// With no transport present it returns an empty SubscriptionID and delivers
// nothing; subscribe again after initialization to receive events.
func (e *Events) Subscribe(event string, handler transport.EventHandler) transport.SubscriptionID {
	tr := e.manager.Transport()
	if tr == nil {
		e.logger.Debug("subscribe ignored, no transport yet", logging.String("event", event))
		return ""
	}
	return tr.Subscribe(event, handler)
}

// Unsubscribe removes one registration. Absent registrations, empty IDs and
// a missing transport are all silent no-ops.
func (e *Events) Unsubscribe(event string, id transport.SubscriptionID) bool {
	if id == "" {
		return false
	}
	tr := e.manager.Transport()
	if tr == nil {
		e.logger.Debug("unsubscribe ignored, no transport yet", logging.String("event", event))
		return false
	}
	return tr.Unsubscribe(event, id)
}

// Emit sends a payload tagged with an event name. Sends are fire-and-forget
// at this surface: failures (including a disconnected or absent transport)
// are logged, never returned, and nothing is buffered for retry. Consumers
// that need guaranteed delivery re-send after observing a reconnect.
func (e *Events) Emit(ctx context.Context, event string, payload json.RawMessage) {
	tr := e.manager.Transport()
	if tr == nil {
		e.logger.Debug("emit ignored, no transport yet", logging.String("event", event))
		return
	}
	if err := tr.Emit(ctx, event, payload); err != nil {
		e.logger.WithError(err).Debug("emit dropped", logging.String("event", event))
	}
}

// Send emits a payload under the default event name.
func (e *Events) Send(ctx context.Context, payload json.RawMessage) {
	e.Emit(ctx, DefaultEvent, payload)
}

// Connected reports the manager's externally observable connection state.
func (e *Events) Connected() bool {
	return e.manager.Status().Connected
}
