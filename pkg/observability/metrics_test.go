package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) (MetricsProvider, *prometheus.Registry) {
	t.Helper()

	registry := prometheus.NewRegistry()
	provider, err := NewMetricsProvider(MetricsConfig{
		ServiceName: "realtime-test",
		Registry:    registry,
	})
	require.NoError(t, err)
	return provider, registry
}

func TestMetricsProviderConnectionState(t *testing.T) {
	provider, registry := newTestProvider(t)

	provider.RecordConnectionState("sse", true)
	assert.Equal(t, 1, testutil.CollectAndCount(registry, "realtime_connection_state"))

	gauge := testutil.ToFloat64(
		provider.(*prometheusProvider).connectionState.WithLabelValues("sse"))
	assert.Equal(t, 1.0, gauge)

	provider.RecordConnectionState("sse", false)
	gauge = testutil.ToFloat64(
		provider.(*prometheusProvider).connectionState.WithLabelValues("sse"))
	assert.Equal(t, 0.0, gauge)
}

func TestMetricsProviderCounters(t *testing.T) {
	provider, _ := newTestProvider(t)
	p := provider.(*prometheusProvider)

	provider.RecordReconnectAttempt("sse", "failure")
	provider.RecordReconnectAttempt("sse", "failure")
	provider.RecordReconnectAttempt("sse", "success")
	assert.Equal(t, 2.0, testutil.ToFloat64(p.reconnectAttempts.WithLabelValues("sse", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.reconnectAttempts.WithLabelValues("sse", "success")))

	provider.RecordEventDispatched("task.update", 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.eventsDispatched.WithLabelValues("task.update")))

	provider.RecordEmit("task.start", "ok")
	provider.RecordEmit("task.start", "error")
	assert.Equal(t, 1.0, testutil.ToFloat64(p.emitsTotal.WithLabelValues("task.start", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.emitsTotal.WithLabelValues("task.start", "error")))
}

func TestMetricsProviderInitializeHistogram(t *testing.T) {
	provider, registry := newTestProvider(t)

	provider.RecordInitialize("connected", 42*time.Millisecond)
	provider.RecordInitialize("degraded", 100*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(registry, "realtime_initialize_duration_seconds"))
}

func TestMetricsProviderReuseOnPrivateRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()

	_, err := NewMetricsProvider(MetricsConfig{Registry: registry})
	require.NoError(t, err)

	// A second provider on the same registry reuses the collectors.
	_, err = NewMetricsProvider(MetricsConfig{Registry: registry})
	require.NoError(t, err)
}

func TestNopMetricsIsSafe(t *testing.T) {
	m := NopMetrics()
	m.RecordConnectionState("sse", true)
	m.RecordInitialize("connected", time.Second)
	m.RecordReconnectAttempt("sse", "success")
	m.RecordEventDispatched("x", 1)
	m.RecordEmit("x", "ok")
}
