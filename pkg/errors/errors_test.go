package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	err := ConnectionFailed("sse", "http://localhost:9100/events", cause)

	assert.Equal(t, CodeConnectionFailed, err.Code())
	assert.Equal(t, CategoryTransport, err.Category())
	assert.Equal(t, SeverityCritical, err.Severity())
	assert.True(t, stderrors.Is(err, cause))
	assert.Contains(t, err.Error(), "localhost:9100")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestTransportErrorData(t *testing.T) {
	err := RetriesExhausted("sse", "http://example.com/events", 10, stderrors.New("EOF"))

	data, ok := err.Data().(*TransportErrorData)
	require.True(t, ok, "expected *TransportErrorData")
	assert.Equal(t, "sse", data.Transport)
	assert.Equal(t, 10, data.Attempts)
	assert.False(t, data.Retryable)
	assert.Equal(t, "example.com", data.Endpoint)
}

func TestWithDataReturnsCopy(t *testing.T) {
	base := New(CodeEmitFailed, "emit failed", CategoryTransport, SeverityWarning)
	withData := base.WithData("detail")

	assert.Nil(t, base.Data())
	assert.Equal(t, "detail", withData.Data())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeTransportClosed, CodeOf(TransportClosed("sse")))
	assert.Equal(t, 0, CodeOf(stderrors.New("plain")))
	assert.Equal(t, 0, CodeOf(nil))
}

func TestNilCause(t *testing.T) {
	err := ConnectionLost("sse", "", nil)
	assert.Equal(t, "lost connection via sse", err.Error())
	assert.Nil(t, stderrors.Unwrap(err))
}
