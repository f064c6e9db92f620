package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rterrors "github.com/agentdeck/realtime-go/pkg/errors"
)

func newTestLogger() (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	formatter := NewTextFormatter()
	formatter.DisableTimestamp = true
	return New(&buf, formatter), &buf
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newTestLogger()

	logger.Debug("hidden")
	logger.Info("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")

	logger.SetLevel(DebugLevel)
	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestWithComponent(t *testing.T) {
	logger, buf := newTestLogger()

	logger.WithComponent("transport").Info("connected", String("endpoint", "http://x/events"))

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "[INFO] transport: connected"), "got: %s", line)
	assert.Contains(t, line, "endpoint=http://x/events")
}

func TestFieldsAreSorted(t *testing.T) {
	logger, buf := newTestLogger()

	logger.Info("msg", String("zebra", "1"), String("alpha", "2"))

	line := buf.String()
	assert.Less(t, strings.Index(line, "alpha="), strings.Index(line, "zebra="))
}

func TestWithErrorExtractsStructuredContext(t *testing.T) {
	logger, buf := newTestLogger()

	err := rterrors.ConnectionFailed("sse", "http://example.com/events", errors.New("refused"))
	logger.WithError(err).Warn("falling back")

	line := buf.String()
	assert.Contains(t, line, "error_category=transport")
	assert.Contains(t, line, "error_severity=critical")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewJSONFormatter())

	logger.Info("hello", Int("attempt", 3), ErrorField(errors.New("boom")))

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, float64(3), record["attempt"])
	assert.Equal(t, "boom", record["error"])
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("never seen")
	assert.Greater(t, int(logger.GetLevel()), int(ErrorLevel))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, InfoLevel, ParseLevel("bogus"))
}
