// Package realtime provides a client-side real-time event distribution
// layer: one streaming connection per process, multiplexed to any number of
// logical subscribers, with bounded reconnection and a degraded fallback
// that keeps the consumer surface safe when no connection can be
// established.
package realtime

import (
	"github.com/agentdeck/realtime-go/pkg/client"
	"github.com/agentdeck/realtime-go/pkg/transport"
)

// Version is the current version of the SDK.
const Version = "1.0.0"

// These exports provide direct access to the core SDK components.
var (
	// NewManager creates a connection lifecycle manager.
	NewManager = client.NewManager

	// NewSSETransport creates a live streaming transport.
	NewSSETransport = transport.NewSSETransport

	// NewDegradedTransport creates the no-I/O fallback transport.
	NewDegradedTransport = transport.NewDegradedTransport

	// DefaultConfig returns transport configuration defaults for an endpoint.
	DefaultConfig = transport.DefaultConfig
)

// Manager options.
var (
	WithLogger          = client.WithLogger
	WithMetrics         = client.WithMetrics
	WithTracing         = client.WithTracing
	WithLiveFactory     = client.WithLiveFactory
	WithDegradedFactory = client.WithDegradedFactory
)

// Transport options.
var (
	WithTransportLogger  = transport.WithLogger
	WithTransportMetrics = transport.WithMetrics
	WithHTTPClient       = transport.WithHTTPClient
)
