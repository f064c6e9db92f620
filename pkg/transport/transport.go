// Package transport provides the event-stream transport layer for the
// realtime SDK.
//
// Two implementations satisfy the Transport contract: SSETransport, backed by
// a streaming HTTP connection with bounded internal reconnection, and
// DegradedTransport, a no-I/O stand-in that keeps the consumer-facing surface
// safe when no real connection can be established.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	rterrors "github.com/agentdeck/realtime-go/pkg/errors"
	"github.com/agentdeck/realtime-go/pkg/logging"
	"github.com/agentdeck/realtime-go/pkg/observability"
)

// EventHandler receives the payload of one inbound frame for a subscribed
// event. Handlers run on the transport's dispatch loop; a panicking handler
// is isolated and does not affect delivery to later handlers.
type EventHandler func(event string, payload json.RawMessage)

// SubscriptionID identifies a single registration. Registering the same
// handler twice yields two IDs and two deliveries per frame.
type SubscriptionID string

// Transport is the contract every transport implementation satisfies.
// Both variants declare the full operation set; the degraded variant
// implements the connection-dependent operations as true no-ops.
type Transport interface {
	// Initialize establishes the underlying connection. The caller decides
	// fallback behavior on failure; a transport never swaps itself for
	// another implementation.
	Initialize(ctx context.Context) error

	// Subscribe registers a handler for an event name. It never fails and
	// places no constraint on the event name format.
	Subscribe(event string, handler EventHandler) SubscriptionID

	// Unsubscribe removes one registration. It reports false, not an error,
	// when no matching registration exists.
	Unsubscribe(event string, id SubscriptionID) bool

	// Emit sends a payload to the remote peer tagged with an event name.
	// Sends are fire-and-forget: there is no buffering, and a send while
	// disconnected fails immediately.
	Emit(ctx context.Context, event string, payload json.RawMessage) error

	// Connected reports the transport's best current knowledge of the
	// connection, synchronously and without I/O.
	Connected() bool

	// Close releases the connection and timers. Afterwards Connected
	// reports false and no further handler delivery occurs.
	Close(ctx context.Context) error
}

// Kind identifies a transport implementation.
type Kind string

const (
	KindSSE      Kind = "sse"
	KindDegraded Kind = "degraded"
)

// State is the connection state of a live transport.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config holds the immutable transport settings. It is created once at
// lifecycle startup and never mutated afterwards.
type Config struct {
	// Endpoint is the URL of the event stream (scheme + host + path).
	Endpoint string

	// ReconnectInterval is the fixed wait between internal reconnect
	// attempts after an unexpected disconnect.
	ReconnectInterval time.Duration

	// MaxReconnectAttempts bounds consecutive internal reconnect failures.
	// Exceeding the cap parks the transport in a terminal disconnected
	// status; it does not raise.
	MaxReconnectAttempts int

	// StatusPollInterval is how often the lifecycle manager reconciles the
	// externally observable connection status.
	StatusPollInterval time.Duration

	// ReconnectDebounce is the delay applied by the lifecycle manager
	// before a caller-driven reconnect, absorbing simultaneous requests
	// from multiple consumers.
	ReconnectDebounce time.Duration

	// EmitTimeout bounds a single outbound send.
	EmitTimeout time.Duration

	// ReadStallTimeout bounds the wait for a single line on the inbound
	// stream before the connection is treated as lost.
	ReadStallTimeout time.Duration
}

// DefaultConfig returns the configuration defaults for an endpoint.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:             endpoint,
		ReconnectInterval:    3 * time.Second,
		MaxReconnectAttempts: 10,
		StatusPollInterval:   5 * time.Second,
		ReconnectDebounce:    500 * time.Millisecond,
		EmitTimeout:          10 * time.Second,
		ReadStallTimeout:     60 * time.Second,
	}
}

// Validate checks the configuration for a live transport.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return rterrors.InvalidConfig("endpoint", "endpoint is required")
	}
	if c.ReconnectInterval <= 0 {
		return rterrors.InvalidConfig("reconnect_interval", "must be positive")
	}
	if c.MaxReconnectAttempts < 0 {
		return rterrors.InvalidConfig("max_reconnect_attempts", "must not be negative")
	}
	return nil
}

// Option configures a transport at construction time.
type Option func(*options)

type options struct {
	logger     logging.Logger
	metrics    observability.MetricsProvider
	httpClient *http.Client
}

func newOptions(opts ...Option) options {
	o := options{
		logger:  logging.NewNop(),
		metrics: observability.NopMetrics(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used by the transport.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics provider used by the transport.
func WithMetrics(metrics observability.MetricsProvider) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithHTTPClient overrides the HTTP client used by the live transport.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}
