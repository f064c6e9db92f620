// Package observability provides metrics and tracing for the realtime SDK.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the Prometheus metrics provider.
type MetricsConfig struct {
	// Service identification
	ServiceName string
	Environment string

	// Namespace is the Prometheus namespace (default: realtime).
	Namespace string

	// MetricsPath and MetricsPort configure the optional scrape endpoint.
	// The endpoint is only started when Serve is true.
	Serve       bool
	MetricsPath string
	MetricsPort int

	// ConstLabels are added to every metric.
	ConstLabels prometheus.Labels

	// Registry overrides the default registry. Tests use a private registry
	// so repeated provider construction does not collide.
	Registry *prometheus.Registry
}

// MetricsProvider records the SDK's connection and delivery metrics.
type MetricsProvider interface {
	// RecordConnectionState sets the connection gauge for a transport kind
	// (1 connected, 0 disconnected).
	RecordConnectionState(transport string, connected bool)

	// RecordInitialize observes one lifecycle initialization cycle.
	RecordInitialize(outcome string, duration time.Duration)

	// RecordReconnectAttempt counts one internal reconnect attempt.
	RecordReconnectAttempt(transport, outcome string)

	// RecordEventDispatched counts one inbound frame delivered for an event.
	RecordEventDispatched(event string, handlers int)

	// RecordEmit counts one outbound emit.
	RecordEmit(event, outcome string)

	// Start serves the scrape endpoint when configured.
	Start(ctx context.Context) error

	// Shutdown stops the scrape endpoint.
	Shutdown(ctx context.Context) error
}

type prometheusProvider struct {
	config MetricsConfig
	server *http.Server

	connectionState    *prometheus.GaugeVec
	initializeDuration *prometheus.HistogramVec
	reconnectAttempts  *prometheus.CounterVec
	eventsDispatched   *prometheus.CounterVec
	handlersPerFrame   prometheus.Histogram
	emitsTotal         *prometheus.CounterVec
}

// NewMetricsProvider creates a Prometheus-backed metrics provider.
func NewMetricsProvider(config MetricsConfig) (MetricsProvider, error) {
	if config.Namespace == "" {
		config.Namespace = "realtime"
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if config.MetricsPort == 0 {
		config.MetricsPort = 9090
	}

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if config.Registry != nil {
		registerer = config.Registry
		gatherer = config.Registry
	}

	p := &prometheusProvider{
		config: config,
		connectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "connection_state",
			Help:        "Current connection state per transport (1 connected, 0 disconnected)",
			ConstLabels: config.ConstLabels,
		}, []string{"transport"}),
		initializeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "initialize_duration_seconds",
			Help:        "Duration of lifecycle initialization cycles",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),
		reconnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "reconnect_attempts_total",
			Help:        "Internal transport reconnect attempts by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"transport", "outcome"}),
		eventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "events_dispatched_total",
			Help:        "Inbound frames delivered to subscribers, by event name",
			ConstLabels: config.ConstLabels,
		}, []string{"event"}),
		handlersPerFrame: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "handlers_per_frame",
			Help:        "Number of handlers invoked per delivered frame",
			Buckets:     []float64{0, 1, 2, 5, 10, 25, 100},
			ConstLabels: config.ConstLabels,
		}),
		emitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "emits_total",
			Help:        "Outbound emits by event name and outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"event", "outcome"}),
	}

	collectors := []prometheus.Collector{
		p.connectionState,
		p.initializeDuration,
		p.reconnectAttempts,
		p.eventsDispatched,
		p.handlersPerFrame,
		p.emitsTotal,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			// Already-registered collectors are reused, anything else is fatal.
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	if config.Serve {
		mux := http.NewServeMux()
		mux.Handle(config.MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
		p.server = &http.Server{
			Addr:    fmt.Sprintf(":%d", config.MetricsPort),
			Handler: mux,
		}
	}

	return p, nil
}

func (p *prometheusProvider) RecordConnectionState(transport string, connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	p.connectionState.WithLabelValues(transport).Set(value)
}

func (p *prometheusProvider) RecordInitialize(outcome string, duration time.Duration) {
	p.initializeDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (p *prometheusProvider) RecordReconnectAttempt(transport, outcome string) {
	p.reconnectAttempts.WithLabelValues(transport, outcome).Inc()
}

func (p *prometheusProvider) RecordEventDispatched(event string, handlers int) {
	p.eventsDispatched.WithLabelValues(event).Inc()
	p.handlersPerFrame.Observe(float64(handlers))
}

func (p *prometheusProvider) RecordEmit(event, outcome string) {
	p.emitsTotal.WithLabelValues(event, outcome).Inc()
}

func (p *prometheusProvider) Start(ctx context.Context) error {
	if p.server == nil {
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *prometheusProvider) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}
	return p.server.Shutdown(ctx)
}

// NopMetrics returns a provider that records nothing. It backs components
// whose callers did not configure metrics.
func NopMetrics() MetricsProvider {
	return nopMetrics{}
}

type nopMetrics struct{}

func (nopMetrics) RecordConnectionState(string, bool)     {}
func (nopMetrics) RecordInitialize(string, time.Duration) {}
func (nopMetrics) RecordReconnectAttempt(string, string)  {}
func (nopMetrics) RecordEventDispatched(string, int)      {}
func (nopMetrics) RecordEmit(string, string)              {}
func (nopMetrics) Start(context.Context) error            { return nil }
func (nopMetrics) Shutdown(context.Context) error         { return nil }
