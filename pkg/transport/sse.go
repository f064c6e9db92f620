package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	rterrors "github.com/agentdeck/realtime-go/pkg/errors"
	"github.com/agentdeck/realtime-go/pkg/logging"
	"github.com/agentdeck/realtime-go/pkg/observability"
)

var _ Transport = (*SSETransport)(nil)

// frame is one inbound event unit: a name tag and an opaque payload.
type frame struct {
	event   string
	payload []byte
}

// emitEnvelope is the outbound wire shape. The payload schema is owned by
// producers and consumers, not by this layer.
type emitEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SSETransport is the live transport: a single streaming GET connection
// carrying server-sent events inbound, with outbound emits POSTed to the
// same endpoint.
//
// The transport performs its own bounded reconnection: after an unexpected
// disconnect it waits ReconnectInterval and re-dials, up to
// MaxReconnectAttempts consecutive failures. A successful re-dial resets the
// failure count and replays the Last-Event-ID so the server can resume the
// stream. Exhausting the cap parks the transport in a terminal disconnected
// status without raising; the lifecycle manager observes the status and
// decides what to do next.
type SSETransport struct {
	config   Config
	client   *http.Client
	registry *registry
	logger   logging.Logger
	metrics  observability.MetricsProvider
	connID   string

	state  atomic.Int32
	closed atomic.Bool

	mu     sync.Mutex
	body   io.ReadCloser
	cancel context.CancelFunc
	done   chan struct{}

	lastEventID atomic.Value // string
}

// NewSSETransport creates a live transport for the configured endpoint.
// The connection is not established until Initialize.
func NewSSETransport(config Config, opts ...Option) (*SSETransport, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := newOptions(opts...)
	client := o.httpClient
	if client == nil {
		// No client-level timeout: it would cut the long-lived stream.
		// Emit and dial deadlines come from per-request contexts.
		client = &http.Client{}
	}

	t := &SSETransport{
		config:   config,
		client:   client,
		registry: newRegistry(),
		logger:   o.logger.WithComponent("transport.sse"),
		metrics:  o.metrics,
		connID:   uuid.NewString(),
	}
	t.state.Store(int32(StateDisconnected))
	t.lastEventID.Store("")
	return t, nil
}

// Initialize establishes the streaming connection and starts the read and
// dispatch loops. Cancelling ctx aborts the handshake; once Initialize has
// returned, the connection's lifetime is governed by Close, not ctx.
func (t *SSETransport) Initialize(ctx context.Context) error {
	if t.closed.Load() {
		return rterrors.TransportClosed(string(KindSSE))
	}

	t.mu.Lock()
	if t.done != nil {
		t.mu.Unlock()
		return nil // already initialized
	}

	runCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.mu.Unlock()

	t.setState(StateConnecting)

	stop := context.AfterFunc(ctx, cancel)
	body, err := t.dial(runCtx)
	stop()
	if err != nil {
		cancel()
		t.setState(StateDisconnected)
		t.mu.Lock()
		t.cancel = nil
		t.mu.Unlock()
		return rterrors.ConnectionFailed(string(KindSSE), t.config.Endpoint, err)
	}

	frames := make(chan frame, 64)
	done := make(chan struct{})

	t.mu.Lock()
	t.body = body
	t.done = done
	t.mu.Unlock()

	t.setState(StateConnected)
	t.logger.Info("connected",
		logging.String("endpoint", t.config.Endpoint),
		logging.String("conn_id", t.connID))

	go t.run(runCtx, frames, done)

	return nil
}

// run supervises the read and dispatch loops until close or retry
// exhaustion.
func (t *SSETransport) run(ctx context.Context, frames chan frame, done chan struct{}) {
	defer close(done)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(frames)
		return t.readLoop(gctx, frames)
	})

	g.Go(func() error {
		t.dispatchLoop(frames)
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		t.logger.Debug("run loop ended", logging.ErrorField(err))
	}

	if !t.closed.Load() {
		t.setState(StateDisconnected)
	}
}

// readLoop reads the current stream and re-dials on loss, bounded by
// MaxReconnectAttempts consecutive failures.
func (t *SSETransport) readLoop(ctx context.Context, frames chan<- frame) error {
	for {
		err := t.readStream(ctx, frames)
		if ctx.Err() != nil || t.closed.Load() {
			return nil
		}

		t.setState(StateDisconnected)
		t.metrics.RecordConnectionState(string(KindSSE), false)
		t.logger.Warn("connection lost",
			logging.String("conn_id", t.connID),
			logging.ErrorField(rterrors.ConnectionLost(string(KindSSE), t.config.Endpoint, err)))

		if !t.reconnect(ctx) {
			return nil
		}
	}
}

// reconnect re-dials with a fixed interval between attempts. It reports
// false when the retry budget is exhausted or the transport is shutting
// down; true means a fresh stream is installed and reading may resume.
func (t *SSETransport) reconnect(ctx context.Context) bool {
	var lastErr error

	for attempt := 1; attempt <= t.config.MaxReconnectAttempts; attempt++ {
		select {
		case <-time.After(t.config.ReconnectInterval):
		case <-ctx.Done():
			return false
		}

		t.setState(StateConnecting)
		t.logger.Debug("reconnecting",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", t.config.MaxReconnectAttempts))

		body, err := t.dial(ctx)
		if err != nil {
			lastErr = err
			t.setState(StateDisconnected)
			t.metrics.RecordReconnectAttempt(string(KindSSE), "failure")
			t.logger.Warn("reconnect attempt failed",
				logging.Int("attempt", attempt),
				logging.ErrorField(err))
			continue
		}

		t.swapBody(body)
		t.setState(StateConnected)
		t.metrics.RecordReconnectAttempt(string(KindSSE), "success")
		t.metrics.RecordConnectionState(string(KindSSE), true)
		t.logger.Info("reconnected", logging.Int("attempt", attempt))
		return true
	}

	err := rterrors.RetriesExhausted(string(KindSSE), t.config.Endpoint, t.config.MaxReconnectAttempts, lastErr)
	t.logger.Error("reconnect budget exhausted", logging.ErrorField(err))
	return false
}

// dial opens the streaming GET connection.
func (t *SSETransport) dial(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.config.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if last := t.lastEventID.Load().(string); last != "" {
		req.Header.Set("Last-Event-ID", last)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to event source: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.logger.Debug("error closing response body after non-OK status", logging.ErrorField(closeErr))
		}
		return nil, fmt.Errorf("event source returned %s: %s", resp.Status, bytes.TrimSpace(snippet))
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.logger.Debug("error closing response body", logging.ErrorField(closeErr))
		}
		return nil, fmt.Errorf("event source did not return text/event-stream, got %q", ct)
	}

	return resp.Body, nil
}

// readStream parses server-sent events from the current stream body until
// the connection fails, stalls, or the transport shuts down.
func (t *SSETransport) readStream(ctx context.Context, frames chan<- frame) error {
	t.mu.Lock()
	body := t.body
	t.mu.Unlock()
	if body == nil {
		return io.EOF
	}

	reader := bufio.NewReaderSize(body, 4096)
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		for {
			line, err := reader.ReadString('\n')
			if len(line) > 0 {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	var eventName, eventID string
	var data strings.Builder

	stall := time.NewTimer(t.config.ReadStallTimeout)
	defer stall.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErr:
			return err

		case <-stall.C:
			return fmt.Errorf("no data on stream for %s", t.config.ReadStallTimeout)

		case line := <-lines:
			if !stall.Stop() {
				select {
				case <-stall.C:
				default:
				}
			}
			stall.Reset(t.config.ReadStallTimeout)

			line = strings.TrimRight(line, "\r\n")

			switch {
			case line == "":
				if data.Len() == 0 {
					eventName, eventID = "", ""
					continue
				}
				if eventID != "" {
					t.lastEventID.Store(eventID)
				}
				name := eventName
				if name == "" {
					name = "message" // SSE default event name
				}
				f := frame{event: name, payload: []byte(data.String())}
				select {
				case frames <- f:
				case <-ctx.Done():
					return ctx.Err()
				}
				eventName, eventID = "", ""
				data.Reset()

			case strings.HasPrefix(line, ":"):
				// Heartbeat comment; it already reset the stall timer.

			case strings.HasPrefix(line, "data:"):
				chunk := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(chunk)

			case strings.HasPrefix(line, "event:"):
				eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))

			case strings.HasPrefix(line, "id:"):
				eventID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))

			case strings.HasPrefix(line, "retry:"):
				// Server-suggested retry interval; this transport keeps its
				// configured fixed interval.

			default:
				t.logger.Debug("unknown SSE line", logging.String("line", line))
			}
		}
	}
}

// dispatchLoop delivers frames to subscribers one at a time, in frame
// arrival order. No two frames are ever delivered concurrently.
func (t *SSETransport) dispatchLoop(frames <-chan frame) {
	for f := range frames {
		if t.closed.Load() {
			continue // closed transports deliver nothing
		}

		handlers := t.registry.handlers(f.event)
		for _, h := range handlers {
			t.invoke(h, f)
		}
		t.metrics.RecordEventDispatched(f.event, len(handlers))
	}
}

// invoke runs one handler, isolating panics so a failing callback cannot
// block delivery to the handlers after it.
func (t *SSETransport) invoke(handler EventHandler, f frame) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("subscriber panicked",
				logging.String("event", f.event),
				logging.Any("panic", r))
		}
	}()
	handler(f.event, json.RawMessage(f.payload))
}

// swapBody installs a fresh stream body, closing the previous one.
func (t *SSETransport) swapBody(body io.ReadCloser) {
	t.mu.Lock()
	old := t.body
	t.body = body
	t.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			t.logger.Debug("error closing previous stream body", logging.ErrorField(err))
		}
	}
}

// Subscribe registers a handler for an event name.
func (t *SSETransport) Subscribe(event string, handler EventHandler) SubscriptionID {
	return t.registry.add(event, handler)
}

// Unsubscribe removes one registration; absent registrations are a no-op.
func (t *SSETransport) Unsubscribe(event string, id SubscriptionID) bool {
	return t.registry.remove(event, id)
}

// Emit POSTs a payload tagged with an event name to the endpoint. Sends
// while disconnected fail immediately; nothing is buffered.
func (t *SSETransport) Emit(ctx context.Context, event string, payload json.RawMessage) error {
	if t.closed.Load() {
		t.metrics.RecordEmit(event, "closed")
		return rterrors.TransportClosed(string(KindSSE))
	}
	if !t.Connected() {
		t.metrics.RecordEmit(event, "disconnected")
		return rterrors.EmitFailed(string(KindSSE), event, rterrors.TransportNotInitialized(string(KindSSE)))
	}

	data, err := json.Marshal(emitEnvelope{Event: event, Payload: payload})
	if err != nil {
		t.metrics.RecordEmit(event, "error")
		return rterrors.EmitFailed(string(KindSSE), event, err)
	}

	emitCtx, cancel := context.WithTimeout(ctx, t.config.EmitTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(emitCtx, http.MethodPost, t.config.Endpoint, bytes.NewReader(data))
	if err != nil {
		t.metrics.RecordEmit(event, "error")
		return rterrors.EmitFailed(string(KindSSE), event, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.metrics.RecordEmit(event, "error")
		return rterrors.EmitFailed(string(KindSSE), event, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.logger.Debug("error closing emit response body", logging.ErrorField(closeErr))
		}
	}()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		t.metrics.RecordEmit(event, "error")
		return rterrors.EmitFailed(string(KindSSE), event,
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(snippet)))
	}

	t.metrics.RecordEmit(event, "ok")
	return nil
}

// Connected reports whether the stream is currently up.
func (t *SSETransport) Connected() bool {
	return State(t.state.Load()) == StateConnected && !t.closed.Load()
}

// State returns the current connection state.
func (t *SSETransport) State() State {
	return State(t.state.Load())
}

// Close terminates the connection and both loops. It is idempotent.
func (t *SSETransport) Close(ctx context.Context) error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.setState(StateClosed)

	t.mu.Lock()
	cancel := t.cancel
	body := t.body
	done := t.done
	t.body = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if body != nil {
		if err := body.Close(); err != nil {
			t.logger.Debug("error closing stream body", logging.ErrorField(err))
		}
	}

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	t.metrics.RecordConnectionState(string(KindSSE), false)
	t.logger.Info("closed", logging.String("conn_id", t.connID))
	return nil
}

func (t *SSETransport) setState(s State) {
	t.state.Store(int32(s))
}
