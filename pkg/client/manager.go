// Package client provides the connection lifecycle manager and the
// subscription façade of the realtime SDK.
//
// The Manager is the sole owner of "the current transport": it creates
// exactly one live transport per initialization cycle, falls back to a
// degraded transport when the live one cannot be established, and replaces
// the instance on reconnect. All other code reaches the transport through
// the Events façade and never replaces it directly.
package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentdeck/realtime-go/pkg/logging"
	"github.com/agentdeck/realtime-go/pkg/observability"
	"github.com/agentdeck/realtime-go/pkg/transport"
)

// Status is the externally observable connection state.
type Status struct {
	Connected  bool
	Connecting bool
	Err        string
}

// LiveFactory builds the live transport for one initialization cycle.
type LiveFactory func(config transport.Config, opts ...transport.Option) (transport.Transport, error)

// DegradedFactory builds the fallback transport.
type DegradedFactory func(opts ...transport.Option) transport.Transport

// Manager owns the current transport instance and its lifecycle.
type Manager struct {
	config        transport.Config
	logger        logging.Logger
	metrics       observability.MetricsProvider
	tracing       *observability.TracingProvider
	liveFactory   LiveFactory
	degraded      DegradedFactory
	transportOpts []transport.Option

	// initializing is the reentrancy guard: at most one initialization
	// cycle is in flight per manager. A concurrent Initialize is a silent
	// no-op, not queued.
	initializing atomic.Bool
	closed       atomic.Bool

	mu         sync.Mutex
	current    transport.Transport
	generation uint64
	connected  bool
	connecting bool
	lastErr    error

	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger. Transports built by the manager
// inherit it.
func WithLogger(logger logging.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics sets the metrics provider.
func WithMetrics(metrics observability.MetricsProvider) ManagerOption {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// WithTracing sets the tracing provider. Without it no spans are recorded.
func WithTracing(tracing *observability.TracingProvider) ManagerOption {
	return func(m *Manager) {
		m.tracing = tracing
	}
}

// WithLiveFactory overrides how the live transport is built. Tests use this
// to substitute fakes.
func WithLiveFactory(factory LiveFactory) ManagerOption {
	return func(m *Manager) {
		if factory != nil {
			m.liveFactory = factory
		}
	}
}

// WithDegradedFactory overrides how the fallback transport is built.
func WithDegradedFactory(factory DegradedFactory) ManagerOption {
	return func(m *Manager) {
		if factory != nil {
			m.degraded = factory
		}
	}
}

// NewManager creates a lifecycle manager. No connection is attempted until
// Initialize.
func NewManager(config transport.Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		config:  config,
		logger:  logging.NewNop(),
		metrics: observability.NopMetrics(),
		liveFactory: func(cfg transport.Config, topts ...transport.Option) (transport.Transport, error) {
			return transport.NewSSETransport(cfg, topts...)
		},
		degraded: func(topts ...transport.Option) transport.Transport {
			return transport.NewDegradedTransport(topts...)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("client.manager")
	m.transportOpts = []transport.Option{
		transport.WithLogger(m.logger),
		transport.WithMetrics(m.metrics),
	}
	return m
}

// Initialize runs one initialization cycle: build and initialize a live
// transport, or fall back to a degraded one. It never returns an error to
// the caller; failure is surfaced through Status. A call made while another
// cycle is in flight returns immediately without queuing.
func (m *Manager) Initialize(ctx context.Context) {
	if m.closed.Load() {
		return
	}
	if !m.initializing.CompareAndSwap(false, true) {
		m.logger.Debug("initialize already in progress")
		return
	}
	defer m.initializing.Store(false)

	m.mu.Lock()
	gen := m.generation
	m.connecting = true
	m.mu.Unlock()

	ctx, span := m.startSpan(ctx, "realtime.initialize")

	start := time.Now()
	tr, err := m.buildLive(ctx)
	outcome := "connected"

	if err != nil {
		outcome = "degraded"
		m.logger.WithError(err).Warn("live transport unavailable, falling back to degraded mode")

		tr = m.buildDegraded(ctx)
		if tr == nil {
			// Even the fallback failed: no transport is installed and the
			// façade stays in safe no-op mode.
			outcome = "failed"
		}
	}

	installed := m.install(ctx, gen, tr, err)
	if !installed {
		outcome = "stale"
	}

	m.metrics.RecordInitialize(outcome, time.Since(start))
	m.endSpan(span, err)
	m.ensurePolling()
}

// buildLive constructs and initializes a live transport. A transport that
// fails to initialize is closed before the error is returned.
func (m *Manager) buildLive(ctx context.Context) (transport.Transport, error) {
	tr, err := m.liveFactory(m.config, m.transportOpts...)
	if err != nil {
		return nil, err
	}
	if err := tr.Initialize(ctx); err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if closeErr := tr.Close(closeCtx); closeErr != nil {
			m.logger.Debug("error closing failed transport", logging.ErrorField(closeErr))
		}
		return nil, err
	}
	return tr, nil
}

// buildDegraded constructs and initializes the fallback transport, or nil
// when even that fails.
func (m *Manager) buildDegraded(ctx context.Context) transport.Transport {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("degraded transport construction panicked", logging.Any("panic", r))
		}
	}()

	tr := m.degraded(m.transportOpts...)
	if tr == nil {
		return nil
	}
	if err := tr.Initialize(ctx); err != nil {
		m.logger.Error("degraded transport failed to initialize", logging.ErrorField(err))
		return nil
	}
	return tr
}

// install makes a cycle's transport current, unless a newer cycle started
// in the meantime. A stale result's transport is closed and discarded so it
// can never overwrite a newer one.
func (m *Manager) install(ctx context.Context, gen uint64, tr transport.Transport, cycleErr error) bool {
	m.mu.Lock()
	if m.generation != gen || m.closed.Load() {
		m.mu.Unlock()
		if tr != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := tr.Close(closeCtx); err != nil {
				m.logger.Debug("error closing stale transport", logging.ErrorField(err))
			}
		}
		m.logger.Debug("discarding stale initialization result")
		return false
	}

	m.current = tr
	m.lastErr = cycleErr
	m.connecting = false
	// A degraded transport initializes successfully yet still reports
	// disconnected; the observable flag follows the transport, not the
	// cycle outcome.
	m.connected = tr != nil && tr.Connected()
	connected := m.connected
	m.mu.Unlock()

	m.logger.Info("transport installed", logging.Bool("connected", connected))
	return true
}

// Reconnect closes and discards the current transport, then starts a fresh
// initialization cycle after a short debounce. Concurrent reconnect
// requests collapse into one cycle; a reconnect issued while an
// initialization is in flight is a no-op.
func (m *Manager) Reconnect(ctx context.Context) {
	if m.closed.Load() {
		return
	}
	if m.initializing.Load() {
		m.logger.Debug("reconnect ignored, initialization in progress")
		return
	}

	ctx, span := m.startSpan(ctx, "realtime.reconnect")
	defer m.endSpan(span, nil)

	m.mu.Lock()
	m.generation++
	gen := m.generation
	old := m.current
	m.current = nil
	m.connected = false
	m.connecting = false
	m.lastErr = nil
	m.mu.Unlock()

	if old != nil {
		if err := old.Close(ctx); err != nil {
			m.logger.Warn("error closing transport during reconnect", logging.ErrorField(err))
		}
	}

	// Debounce absorbs a burst of reconnect requests from consumers that
	// all observed the same failure.
	select {
	case <-time.After(m.config.ReconnectDebounce):
	case <-ctx.Done():
		return
	}

	m.mu.Lock()
	stale := m.generation != gen
	m.mu.Unlock()
	if stale || m.initializing.Load() || m.closed.Load() {
		m.logger.Debug("skipping reinitialize, another cycle took over")
		return
	}

	m.Initialize(ctx)
}

// Transport returns the current transport, or nil when no cycle has
// produced one yet. The façade is the only intended caller.
func (m *Manager) Transport() transport.Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Status returns the externally observable connection state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{
		Connected:  m.connected,
		Connecting: m.connecting || m.initializing.Load(),
	}
	if m.lastErr != nil {
		s.Err = m.lastErr.Error()
	}
	return s
}

// ensurePolling starts the status reconciliation loop once. The loop
// bridges transports that change state on their own (the live transport's
// internal reconnect) into the manager's observable state without the
// transport pushing notifications.
func (m *Manager) ensurePolling() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pollDone != nil || m.closed.Load() {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.pollCancel = cancel
	m.pollDone = done

	go m.pollLoop(ctx, done)
}

func (m *Manager) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.config.StatusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reconcile()
		}
	}
}

// reconcile updates the observable connected flag when it drifts from the
// transport's own report.
func (m *Manager) reconcile() {
	m.mu.Lock()
	cur := m.current
	was := m.connected
	m.mu.Unlock()

	now := cur != nil && cur.Connected()
	if now == was {
		return
	}

	m.mu.Lock()
	if m.current == cur {
		m.connected = now
	}
	m.mu.Unlock()

	m.logger.Info("connection status changed", logging.Bool("connected", now))
	m.metrics.RecordConnectionState("observed", now)
}

// Close tears the manager down: the poll loop stops, the current transport
// is closed, and further operations become no-ops.
func (m *Manager) Close(ctx context.Context) error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	m.mu.Lock()
	cancel := m.pollCancel
	done := m.pollDone
	cur := m.current
	m.current = nil
	m.generation++
	m.connected = false
	m.connecting = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	var err error
	if cur != nil {
		err = cur.Close(ctx)
	}

	m.initializing.Store(false)
	m.logger.Info("manager closed")
	return err
}

func (m *Manager) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if m.tracing == nil {
		return ctx, nil
	}
	return m.tracing.StartSpan(ctx, operation,
		attribute.String("realtime.endpoint", m.config.Endpoint))
}

func (m *Manager) endSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	observability.EndSpan(span, err)
}
