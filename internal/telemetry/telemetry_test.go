package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/shaiso/Nodeflow/internal/events"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "INFO", "json").Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	NewLogger(&buf, "INFO", "text").Info("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")

	buf.Reset()
	NewLogger(&buf, "ERROR", "text").Info("hidden")
	assert.Empty(t, buf.String())
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "INFO", "text")

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	WithNodeID(WithExecutionID(logger, "e1"), "n1", "transform").Info("x")
	assert.Contains(t, buf.String(), "execution_id=e1")
	assert.Contains(t, buf.String(), "node_id=n1")
	assert.Contains(t, buf.String(), "node_type=transform")
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetricsObserver()

	completedBefore := testutil.ToFloat64(NodeExecutionsTotal.WithLabelValues("metrics_test", "completed"))
	cachedBefore := testutil.ToFloat64(NodeExecutionsTotal.WithLabelValues("metrics_test", "cached"))
	failedRunsBefore := testutil.ToFloat64(WorkflowRunsTotal.WithLabelValues("failed"))
	running := testutil.ToFloat64(RunningNodes)

	m.OnEvent(events.Event{Type: events.NodeStarted, NodeType: "metrics_test"})
	assert.Equal(t, running+1, testutil.ToFloat64(RunningNodes))

	m.OnEvent(events.Event{Type: events.NodeCompleted, NodeType: "metrics_test", Duration: time.Millisecond})
	m.OnEvent(events.Event{Type: events.NodeStarted, NodeType: "metrics_test"})
	m.OnEvent(events.Event{Type: events.NodeCompleted, NodeType: "metrics_test", FromCache: true})
	m.OnEvent(events.Event{Type: events.WorkflowFailed, Duration: time.Second})

	assert.Equal(t, running, testutil.ToFloat64(RunningNodes))
	assert.Equal(t, completedBefore+1, testutil.ToFloat64(NodeExecutionsTotal.WithLabelValues("metrics_test", "completed")))
	assert.Equal(t, cachedBefore+1, testutil.ToFloat64(NodeExecutionsTotal.WithLabelValues("metrics_test", "cached")))
	assert.Equal(t, failedRunsBefore+1, testutil.ToFloat64(WorkflowRunsTotal.WithLabelValues("failed")))
}

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("hit"))
	misses := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("miss"))

	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordCacheLookup(false)

	assert.Equal(t, hits+1, testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("miss")))
}
