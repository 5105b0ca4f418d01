package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	cblog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSONWithComponentAndTaskID(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l, err := New(Options{Writer: &buf, Formatter: cblog.JSONFormatter, Component: "engine"})
	require.NoError(t, err)

	ctx := WithTaskID(context.Background(), "task-1")
	l.Info(ctx, "step started", "step", "a")

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	require.Equal(t, "engine", payload["component"])
	require.Equal(t, "task-1", payload["task_id"])
	require.Equal(t, "a", payload["step"])
	require.Equal(t, "step started", payload["msg"])
}

func TestLoggerWithAppendsPersistentFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l, err := New(Options{Writer: &buf, Formatter: cblog.JSONFormatter})
	require.NoError(t, err)

	derived := l.With("pipeline_id", "p1")
	derived.Info(context.Background(), "running")

	require.Contains(t, buf.String(), `"pipeline_id":"p1"`)
}

func TestLoggerRejectsUnknownLevel(t *testing.T) {
	t.Parallel()
	_, err := New(Options{Level: "not-a-level"})
	require.Error(t, err)
}

func TestMergeFieldsKeepsFirstSeenOrderAndLatestValue(t *testing.T) {
	t.Parallel()
	out := mergeFields(
		[]interface{}{"a", 1, "b", 2},
		[]interface{}{"b", 3, "c", 4},
		map[string]interface{}{"d": "x", "empty": ""},
	)
	require.Equal(t, []interface{}{"a", 1, "b", 3, "c", 4, "d", "x"}, out)
}

func TestNilLoggerMethodsDoNotPanic(t *testing.T) {
	t.Parallel()
	var l *Logger
	require.NotPanics(t, func() {
		l.Info(context.Background(), "noop")
		_ = l.With("x", 1)
	})
}

func TestTaskIDFromContextIgnoresNilContext(t *testing.T) {
	t.Parallel()
	require.Equal(t, "", taskIDFromContext(nil))
}
