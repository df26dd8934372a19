package events

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombine(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()

	assert.NotPanics(t, func() { Combine().OnEvent(Event{Type: WorkflowStarted}) })
	assert.Same(t, a, Combine(nil, a))

	obs := Combine(a, nil, b)
	obs.OnEvent(Event{Type: WorkflowStarted, ExecutionID: "e1"})
	obs.OnEvent(Event{Type: NodeStarted, ExecutionID: "e1", NodeID: "n1"})

	assert.Equal(t, []Type{WorkflowStarted, NodeStarted}, a.Types())
	assert.Equal(t, a.Types(), b.Types())
	assert.Equal(t, 1, a.Count(NodeStarted))
}

func TestType_IsWorkflow(t *testing.T) {
	assert.True(t, WorkflowStopped.IsWorkflow())
	assert.False(t, NodeFailed.IsWorkflow())
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	obs := NewLogObserver(logger)

	obs.OnEvent(Event{Type: NodeCompleted, ExecutionID: "e1", NodeID: "n1"})
	assert.Empty(t, buf.String(), "node events are logged at debug level")

	obs.OnEvent(Event{Type: NodeFailed, ExecutionID: "e1", NodeID: "n1", Error: "boom"})
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "error=boom")

	buf.Reset()
	obs.OnEvent(Event{Type: WorkflowCompleted, ExecutionID: "e1"})
	assert.Contains(t, buf.String(), "event=workflow:completed")
}
