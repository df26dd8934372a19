package worker

import (
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/shaiso/Nodeflow/internal/events"
	"github.com/shaiso/Nodeflow/internal/invoker"
	"github.com/shaiso/Nodeflow/internal/nodes"
)

// Default configuration values.
const (
	defaultMaxConcurrent = 16
	defaultQueueTimeout  = 30 * time.Second
	maxRequestBody       = 10 << 20
)

// Worker выполняет узлы по запросам remote execution API.
type Worker struct {
	registry *nodes.Registry
	invoker  *invoker.Invoker
	limiter  *semaphore.Weighted
	observer events.Observer

	queueTimeout time.Duration
	logger       *slog.Logger
}

// Config — конфигурация Worker.
type Config struct {
	// Registry — локальные обработчики (default: nodes.DefaultRegistry()).
	Registry *nodes.Registry

	// NodeTimeout — таймаут выполнения узла (default: 5m).
	NodeTimeout time.Duration

	// MaxConcurrent — лимит одновременно выполняемых узлов (default: 16).
	MaxConcurrent int

	// QueueTimeout — сколько ждать свободного слота (default: 30s).
	QueueTimeout time.Duration

	// Observer получает события node:* для выполненных узлов.
	Observer events.Observer

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	registry := cfg.Registry
	if registry == nil {
		registry = nodes.DefaultRegistry()
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	queueTimeout := cfg.QueueTimeout
	if queueTimeout <= 0 {
		queueTimeout = defaultQueueTimeout
	}

	observer := cfg.Observer
	if observer == nil {
		observer = events.Nop
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		registry: registry,
		invoker: invoker.New(invoker.Config{
			DefaultTimeout: cfg.NodeTimeout,
			Logger:         logger,
		}),
		limiter:      semaphore.NewWeighted(int64(maxConcurrent)),
		observer:     observer,
		queueTimeout: queueTimeout,
		logger:       logger,
	}
}
