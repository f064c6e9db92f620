package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdeck/realtime-go/pkg/transport"
)

func newFacadeFixture(t *testing.T) (*Events, *fakeTransport, *Manager) {
	t.Helper()

	fake := newFakeTransport()
	m := NewManager(testManagerConfig(), WithLiveFactory(
		func(cfg transport.Config, opts ...transport.Option) (transport.Transport, error) {
			return fake, nil
		}))

	ctx := context.Background()
	m.Initialize(ctx)
	t.Cleanup(func() { _ = m.Close(ctx) })

	return m.Events(), fake, m
}

func TestEventsDelegatesToCurrentTransport(t *testing.T) {
	events, fake, _ := newFacadeFixture(t)

	id := events.Subscribe("task.update", func(event string, payload json.RawMessage) {})
	assert.Equal(t, transport.SubscriptionID("sub-task.update"), id)
	assert.Equal(t, int32(1), fake.subs.Load())

	assert.True(t, events.Unsubscribe("task.update", id))
	assert.Equal(t, int32(0), fake.subs.Load())

	assert.True(t, events.Connected())
}

func TestEventsEmitIsFireAndForget(t *testing.T) {
	events, fake, _ := newFacadeFixture(t)
	ctx := context.Background()

	events.Emit(ctx, "task.start", json.RawMessage(`{"id":"t1"}`))
	select {
	case event := <-fake.emits:
		assert.Equal(t, "task.start", event)
	case <-time.After(time.Second):
		t.Fatal("emit never reached the transport")
	}

	// A failing transport emit is logged and dropped, never surfaced.
	fake.emitErr = errors.New("wire down")
	require.NotPanics(t, func() {
		events.Emit(ctx, "task.start", json.RawMessage(`{}`))
	})
}

func TestEventsSendUsesDefaultEvent(t *testing.T) {
	events, fake, _ := newFacadeFixture(t)

	events.Send(context.Background(), json.RawMessage(`"ping"`))
	select {
	case event := <-fake.emits:
		assert.Equal(t, DefaultEvent, event)
	case <-time.After(time.Second):
		t.Fatal("send never reached the transport")
	}
}

func TestEventsWithoutTransportAreNoops(t *testing.T) {
	// A manager that has never initialized has no transport.
	m := NewManager(testManagerConfig())
	events := m.Events()
	ctx := context.Background()

	assert.Empty(t, events.Subscribe("x", func(event string, payload json.RawMessage) {}))
	assert.False(t, events.Unsubscribe("x", "id-1"))
	assert.False(t, events.Unsubscribe("x", ""))
	require.NotPanics(t, func() {
		events.Emit(ctx, "x", nil)
		events.Send(ctx, nil)
	})
	assert.False(t, events.Connected())
}
