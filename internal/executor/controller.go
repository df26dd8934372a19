package executor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/shaiso/Nodeflow/internal/cache"
	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/events"
	"github.com/shaiso/Nodeflow/internal/invoker"
	"github.com/shaiso/Nodeflow/internal/nodes"
	"github.com/shaiso/Nodeflow/internal/scheduler"
	"github.com/shaiso/Nodeflow/internal/telemetry"
)

// Значения конфигурации по умолчанию.
const (
	DefaultMaxConcurrentNodes = 4
	defaultArchiveTimeout     = 5 * time.Second
)

// Archive сохраняет финализированные выполнения.
type Archive interface {
	Save(ctx context.Context, exec *domain.Execution) error
}

// Config — конфигурация Controller.
type Config struct {
	// Registry — обработчики узлов (default: nodes.DefaultRegistry()).
	Registry *nodes.Registry

	// Cache — хранилище результатов узлов (default: in-memory без ограничения).
	Cache cache.Store

	// DisableCache отключает кэширование результатов.
	DisableCache bool

	// MaxConcurrentNodes — лимит одновременно выполняемых узлов
	// по всем run'ам (default: 4).
	MaxConcurrentNodes int

	// NodeTimeout — таймаут узла без собственного timeoutMs (default: 5m).
	NodeTimeout time.Duration

	// AllowConcurrentRuns разрешает Execute, пока предыдущий run не завершён.
	AllowConcurrentRuns bool

	// HistorySize — ёмкость истории (default: 100).
	HistorySize int

	Observer events.Observer

	// Archive — необязательное хранилище финализированных выполнений.
	Archive Archive

	Logger *slog.Logger
}

// ExecuteOptions — параметры одного run.
type ExecuteOptions struct {
	// StartNodeID ограничивает run узлом и его потомками.
	StartNodeID string

	// Inputs — начальные входы, доступные каждому узлу.
	Inputs map[string]any
}

// Status — текущее состояние контроллера.
type Status struct {
	IsRunning        bool     `json:"isRunning"`
	IsPaused         bool     `json:"isPaused"`
	RunningNodeIDs   []string `json:"runningNodeIds"`
	ActiveExecutions []string `json:"activeExecutions"`
}

// Controller управляет выполнением workflow.
type Controller struct {
	registry  *nodes.Registry
	cache     cache.Store
	scheduler *scheduler.Scheduler
	observer  events.Observer
	archive   Archive
	allowConc bool

	gate    *gate
	running *runningSet
	history *history

	// active — выполняющиеся run'ы по ID. Под mu также меняется gate:
	// finish сбрасывает его после последнего run.
	active map[uuid.UUID]*domain.Execution
	mu     sync.RWMutex

	logger *slog.Logger
}

// New создаёт Controller.
func New(cfg Config) (*Controller, error) {
	registry := cfg.Registry
	if registry == nil {
		registry = nodes.DefaultRegistry()
	}

	store := cfg.Cache
	if store == nil && !cfg.DisableCache {
		m, err := cache.NewMemory(0)
		if err != nil {
			return nil, err
		}
		store = m
	}

	maxConcurrent := cfg.MaxConcurrentNodes
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentNodes
	}

	observer := cfg.Observer
	if observer == nil {
		observer = events.Nop
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		registry:  registry,
		cache:     store,
		observer:  observer,
		archive:   cfg.Archive,
		allowConc: cfg.AllowConcurrentRuns,
		running:   newRunningSet(),
		history:   newHistory(cfg.HistorySize),
		active:    make(map[uuid.UUID]*domain.Execution),
		logger:    logger,
	}

	c.gate = &gate{
		onPause: func(exec *domain.Execution) {
			exec.MarkPaused()
			c.emit(exec, events.WorkflowPaused, nil)
		},
		onResume: func(exec *domain.Execution) {
			exec.MarkResumed()
			c.emit(exec, events.WorkflowResumed, nil)
		},
	}

	c.scheduler = scheduler.New(scheduler.Config{
		Invoker: invoker.New(invoker.Config{
			DefaultTimeout: cfg.NodeTimeout,
			Remote:         registry.Remote(),
			Logger:         logger,
		}),
		Cache:    store,
		Limiter:  semaphore.NewWeighted(int64(maxConcurrent)),
		Gate:     c.gate,
		Tracker:  c.running,
		Observer: observer,
		Logger:   logger,
	})

	return c, nil
}

// Registry возвращает реестр обработчиков.
func (c *Controller) Registry() *nodes.Registry {
	return c.registry
}

// Execute выполняет workflow и возвращает финализированный Execution.
//
// Возвращает nil Execution только при engine.ErrAlreadyRunning.
// В остальных случаях Execution содержит полную информацию о run,
// включая ошибки узлов, даже если возвращена ошибка.
func (c *Controller) Execute(ctx context.Context, spec *domain.WorkflowSpec, opts ExecuteOptions) (*domain.Execution, error) {
	exec := domain.NewExecution(spec, opts.StartNodeID, opts.Inputs)
	if err := c.addActive(exec); err != nil {
		return nil, err
	}
	defer c.finish(exec)

	logger := telemetry.WithExecutionID(c.logger, exec.ID.String())
	if spec != nil {
		logger = telemetry.WithWorkflow(logger, spec.Name)
	}

	g, err := engine.Build(spec, engine.BuildOptions{
		StartNodeID: opts.StartNodeID,
		Registry:    c.registry,
	})
	if err != nil {
		logger.Warn("workflow rejected", "error", err)
		exec.MarkFailed(err)
		c.emit(exec, events.WorkflowFailed, err)
		return exec, err
	}

	exec.MarkRunning(g.Size())
	logger.Info("workflow started", "nodes", g.Size(), "levels", len(g.Levels()))
	c.emit(exec, events.WorkflowStarted, nil)

	output, err := c.scheduler.Run(ctx, g, exec.Inputs, exec)
	switch {
	case errors.Is(err, engine.ErrExecutionStopped):
		exec.MarkStopped(err)
		logger.Info("workflow stopped", "completed_nodes", exec.Metadata.CompletedNodes)
		c.emit(exec, events.WorkflowStopped, err)
		return exec, err

	case err != nil:
		exec.MarkFailed(err)
		logger.Error("workflow failed", "error", err)
		c.emit(exec, events.WorkflowFailed, err)
		return exec, err
	}

	exec.MarkCompleted(output)
	logger.Info("workflow completed", "duration_ms", exec.DurationMs)
	c.emit(exec, events.WorkflowCompleted, nil)
	return exec, nil
}

// Pause приостанавливает активные run'ы на следующей границе уровней.
func (c *Controller) Pause() error {
	return c.whileActive(func() {
		if c.gate.pause() {
			c.logger.Info("execution pause requested")
		}
	})
}

// Resume снимает паузу.
func (c *Controller) Resume() error {
	return c.whileActive(func() {
		if c.gate.unpause() {
			c.logger.Info("execution resumed")
		}
	})
}

// Stop останавливает активные run'ы на следующей границе уровней.
// Уже запущенные узлы доработают до конца.
func (c *Controller) Stop() error {
	return c.whileActive(func() {
		c.gate.stop()
		c.logger.Info("execution stop requested")
	})
}

// whileActive вызывает fn, если есть активные run'ы. Проверка и fn
// выполняются под c.mu, поэтому finish не сбросит gate между ними.
func (c *Controller) whileActive(fn func()) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.active) == 0 {
		return engine.ErrNotRunning
	}
	fn()
	return nil
}

// IsRunning возвращает true, если есть активные run'ы.
func (c *Controller) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.active) > 0
}

// Status возвращает текущее состояние контроллера.
func (c *Controller) Status() Status {
	c.mu.RLock()
	ids := make([]string, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id.String())
	}
	c.mu.RUnlock()

	return Status{
		IsRunning:        len(ids) > 0,
		IsPaused:         c.gate.isPaused(),
		RunningNodeIDs:   c.running.IDs(),
		ActiveExecutions: ids,
	}
}

// History возвращает до limit последних выполнений, новые первыми.
func (c *Controller) History(limit int) []*domain.Execution {
	return c.history.list(limit)
}

// Stats возвращает статистику по истории.
func (c *Controller) Stats() Stats {
	return c.history.stats()
}

// ClearCache очищает кэш результатов узлов.
func (c *Controller) ClearCache(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	if err := c.cache.Clear(ctx); err != nil {
		return err
	}
	c.logger.Info("node result cache cleared")
	return nil
}

// addActive регистрирует run или возвращает ErrAlreadyRunning.
func (c *Controller) addActive(exec *domain.Execution) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.allowConc && len(c.active) > 0 {
		return engine.ErrAlreadyRunning
	}
	c.active[exec.ID] = exec
	return nil
}

// finish снимает run с учёта, сбрасывает флаги паузы и остановки
// после последнего активного run и сохраняет Execution в историю.
func (c *Controller) finish(exec *domain.Execution) {
	c.mu.Lock()
	delete(c.active, exec.ID)
	if len(c.active) == 0 {
		c.gate.reset()
	}
	c.mu.Unlock()

	c.history.add(exec)

	if c.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultArchiveTimeout)
	defer cancel()
	if err := c.archive.Save(ctx, exec); err != nil {
		c.logger.Warn("failed to archive execution",
			"execution_id", exec.ID,
			"error", err,
		)
	}
}

func (c *Controller) emit(exec *domain.Execution, t events.Type, err error) {
	e := events.Event{
		Type:         t,
		ExecutionID:  exec.ID.String(),
		WorkflowName: exec.WorkflowName,
		Duration:     exec.Duration(),
		Timestamp:    time.Now(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	c.observer.OnEvent(e)
}
