package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestRelayLogger_ScopedAttributes(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf})

	l := base.WithComponent("runner").WithRun("run-1", "Triage").With("tenant", "acme")
	l.Info("run.start", "max_turns", 10)
	base.Info("plain")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "run.start", lines[0]["msg"])
	assert.Equal(t, "runner", lines[0]["component"])
	assert.Equal(t, "run-1", lines[0]["run_id"])
	assert.Equal(t, "Triage", lines[0]["agent"])
	assert.Equal(t, "acme", lines[0]["tenant"])
	assert.Equal(t, float64(10), lines[0]["max_turns"])

	// With* never mutates the receiver.
	assert.NotContains(t, lines[1], "run_id")
	assert.NotContains(t, lines[1], "tenant")
}

func TestRelayLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Output: &buf})

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.LogToolCall("get_weather", time.Millisecond, nil)
	l.LogToolCall("get_weather", time.Millisecond, errors.New("boom"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "shown", lines[0]["msg"])
	assert.Equal(t, "tool.call.failed", lines[1]["msg"])
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestRelayLogger_DomainHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Output: &buf})

	l.LogModelCall("gpt-4o-mini", 42, 2*time.Millisecond, nil)
	l.LogRun(3, time.Second, "completed", nil)
	l.LogRun(1, time.Second, "error", errors.New("no model"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "model.call.completed", lines[0]["msg"])
	assert.Equal(t, float64(42), lines[0]["tokens"])
	assert.Equal(t, "run.finished", lines[1]["msg"])
	assert.Equal(t, "completed", lines[1]["status"])
	assert.Equal(t, "run.failed", lines[2]["msg"])
	assert.Equal(t, "no model", lines[2]["error"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LogLevelDebug,
		" INFO ":  LogLevelInfo,
		"warning": LogLevelWarn,
		"error":   LogLevelError,
		"bogus":   LogLevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	assert.Equal(t, "WARN", LogLevelWarn.String())
}

func TestNoOpAndSlogAdapterSatisfyLogger(t *testing.T) {
	var _ Logger = NoOpLogger{}
	var _ Logger = NewDefaultSlogLogger()
	var _ Logger = NewLogger(nil)
}
