// Package realtime is the root of the realtime SDK for Go, providing
// convenient exports of the core components from the sub-packages.
//
// # Overview
//
// The SDK consists of several sub-packages:
//
//   - pkg/client: connection lifecycle manager and subscription façade
//   - pkg/transport: the live streaming transport and its degraded fallback
//   - pkg/errors: structured error types
//   - pkg/logging: structured, leveled logging
//   - pkg/observability: Prometheus metrics and OpenTelemetry tracing
//
// # Connecting
//
// Construct one Manager at the application root and thread it down to
// consumers; the Manager owns the single physical connection for the
// process:
//
//	import (
//	    "context"
//	    "github.com/agentdeck/realtime-go"
//	)
//
//	func main() {
//	    cfg := realtime.DefaultConfig("http://localhost:8080/events")
//	    manager := realtime.NewManager(cfg)
//
//	    ctx := context.Background()
//	    manager.Initialize(ctx)
//	    defer manager.Close(ctx)
//
//	    events := manager.Events()
//	    id := events.Subscribe("task.update", func(event string, payload json.RawMessage) {
//	        // handle payload
//	    })
//	    defer events.Unsubscribe("task.update", id)
//	}
//
// Initialize never fails from the caller's point of view: when the live
// transport cannot be established the manager installs a degraded
// transport, the façade keeps accepting calls, and Status reports the
// triggering error together with a false connected flag. Consumers that
// observe a persistent disconnect may call Reconnect to replace the
// transport.
package realtime
