package errors

import (
	"fmt"
	"net/url"
	"time"
)

// TransportErrorData carries structured detail for transport failures.
type TransportErrorData struct {
	Transport string        `json:"transport"`
	Operation string        `json:"operation,omitempty"`
	Endpoint  string        `json:"endpoint,omitempty"`
	Connected bool          `json:"connected"`
	Retryable bool          `json:"retryable"`
	Attempts  int           `json:"attempts,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// ConnectionFailed reports a failure to establish the initial connection.
func ConnectionFailed(transport, endpoint string, cause error) Error {
	message := fmt.Sprintf("failed to connect via %s", transport)
	if endpoint != "" {
		message = fmt.Sprintf("failed to connect to %s via %s", hostOf(endpoint), transport)
	}

	return Wrap(cause, CodeConnectionFailed, message, CategoryTransport, SeverityCritical).
		WithData(&TransportErrorData{
			Transport: transport,
			Operation: "initialize",
			Endpoint:  hostOf(endpoint),
			Connected: false,
			Retryable: true,
			Reason:    reasonOf(cause),
		})
}

// ConnectionLost reports a connection that dropped after having been up.
func ConnectionLost(transport, endpoint string, cause error) Error {
	message := fmt.Sprintf("lost connection via %s", transport)
	if endpoint != "" {
		message = fmt.Sprintf("lost connection to %s via %s", hostOf(endpoint), transport)
	}

	return Wrap(cause, CodeConnectionLost, message, CategoryTransport, SeverityError).
		WithData(&TransportErrorData{
			Transport: transport,
			Operation: "stream",
			Endpoint:  hostOf(endpoint),
			Connected: false,
			Retryable: true,
			Reason:    reasonOf(cause),
		})
}

// RetriesExhausted reports that the transport gave up reconnecting after the
// configured number of consecutive failures.
func RetriesExhausted(transport, endpoint string, attempts int, cause error) Error {
	message := fmt.Sprintf("%s reconnect gave up after %d attempts", transport, attempts)

	return Wrap(cause, CodeRetriesExhausted, message, CategoryTransport, SeverityError).
		WithData(&TransportErrorData{
			Transport: transport,
			Operation: "reconnect",
			Endpoint:  hostOf(endpoint),
			Connected: false,
			Retryable: false,
			Attempts:  attempts,
			Reason:    reasonOf(cause),
		})
}

// EmitFailed reports an outbound send that could not be delivered. Sends are
// fire-and-forget, so callers typically log this rather than propagate it.
func EmitFailed(transport, event string, cause error) Error {
	message := fmt.Sprintf("failed to emit %q via %s", event, transport)

	return Wrap(cause, CodeEmitFailed, message, CategoryTransport, SeverityWarning).
		WithData(&TransportErrorData{
			Transport: transport,
			Operation: "emit",
			Connected: false,
			Retryable: true,
			Reason:    reasonOf(cause),
		})
}

// TransportClosed reports an operation against a transport that has been
// closed.
func TransportClosed(transport string) Error {
	return New(CodeTransportClosed,
		fmt.Sprintf("%s transport is closed", transport),
		CategoryTransport, SeverityWarning).
		WithData(&TransportErrorData{
			Transport: transport,
			Connected: false,
			Retryable: false,
			Reason:    "closed",
		})
}

// TransportNotInitialized reports an operation that requires an established
// connection before Initialize has succeeded.
func TransportNotInitialized(transport string) Error {
	return New(CodeNotInitialized,
		fmt.Sprintf("%s transport is not initialized", transport),
		CategoryTransport, SeverityError).
		WithData(&TransportErrorData{
			Transport: transport,
			Operation: "check_initialization",
			Connected: false,
			Retryable: false,
			Reason:    "not initialized",
		})
}

// InvalidConfig reports an invalid configuration parameter.
func InvalidConfig(parameter, reason string) Error {
	return New(CodeInvalidConfig,
		fmt.Sprintf("invalid configuration for %q: %s", parameter, reason),
		CategoryConfig, SeverityError)
}

func hostOf(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Host
	}
	return endpoint
}

func reasonOf(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}
