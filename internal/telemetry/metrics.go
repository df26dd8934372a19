package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/Nodeflow/internal/events"
)

var (
	// WorkflowRunsTotal — завершённые run'ы по итоговому статусу.
	WorkflowRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodeflow_workflow_runs_total",
			Help: "Total number of finished workflow executions by status",
		},
		[]string{"status"},
	)

	// WorkflowDuration — длительность run'ов.
	WorkflowDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nodeflow_workflow_duration_seconds",
			Help:    "Duration of workflow executions in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// NodeExecutionsTotal — выполнения узлов по типу и статусу.
	NodeExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodeflow_node_executions_total",
			Help: "Total number of node executions by type and status",
		},
		[]string{"node_type", "status"},
	)

	// NodeDuration — длительность выполнения узлов.
	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nodeflow_node_duration_seconds",
			Help:    "Duration of node executions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"node_type"},
	)

	// RunningNodes — узлы, выполняющиеся в данный момент.
	RunningNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodeflow_running_nodes",
			Help: "Number of nodes currently executing",
		},
	)

	// CacheLookupsTotal — обращения к кэшу результатов (hit/miss).
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodeflow_cache_lookups_total",
			Help: "Total number of result cache lookups by outcome",
		},
		[]string{"result"},
	)
)

// RecordCacheLookup учитывает обращение к кэшу.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	CacheLookupsTotal.WithLabelValues("miss").Inc()
}

// MetricsObserver обновляет Prometheus метрики по событиям выполнения.
type MetricsObserver struct{}

// NewMetricsObserver создаёт MetricsObserver.
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent реализует events.Observer.
func (m *MetricsObserver) OnEvent(e events.Event) {
	switch e.Type {
	case events.NodeStarted:
		RunningNodes.Inc()

	case events.NodeCompleted:
		RunningNodes.Dec()
		status := "completed"
		if e.FromCache {
			status = "cached"
		}
		NodeExecutionsTotal.WithLabelValues(e.NodeType, status).Inc()
		NodeDuration.WithLabelValues(e.NodeType).Observe(e.Duration.Seconds())

	case events.NodeFailed:
		RunningNodes.Dec()
		NodeExecutionsTotal.WithLabelValues(e.NodeType, "failed").Inc()
		NodeDuration.WithLabelValues(e.NodeType).Observe(e.Duration.Seconds())

	case events.WorkflowCompleted:
		WorkflowRunsTotal.WithLabelValues("completed").Inc()
		WorkflowDuration.Observe(e.Duration.Seconds())

	case events.WorkflowFailed:
		WorkflowRunsTotal.WithLabelValues("failed").Inc()
		WorkflowDuration.Observe(e.Duration.Seconds())

	case events.WorkflowStopped:
		WorkflowRunsTotal.WithLabelValues("stopped").Inc()
		WorkflowDuration.Observe(e.Duration.Seconds())
	}
}
