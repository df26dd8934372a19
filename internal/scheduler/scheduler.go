// Package scheduler выполняет граф уровень за уровнем.
//
// Узлы одного уровня запускаются параллельно, общее число одновременно
// выполняемых узлов ограничено семафором. Следующий уровень начинается
// только после завершения всех узлов текущего. Пауза и остановка
// проверяются на границе уровней.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/shaiso/Nodeflow/internal/cache"
	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/events"
	"github.com/shaiso/Nodeflow/internal/telemetry"
)

// NodeInvoker выполняет один узел.
type NodeInvoker interface {
	Invoke(ctx context.Context, node *engine.GraphNode, inputs map[string]any, executionID string) (any, error)
}

// Gate блокирует переход к следующему уровню.
//
// Wait возвращает nil, когда можно продолжать, и
// engine.ErrExecutionStopped, если run остановлен.
type Gate interface {
	Wait(ctx context.Context, exec *domain.Execution) error
}

// Tracker получает уведомления о начале и конце выполнения узлов.
type Tracker interface {
	NodeStarted(nodeID string)
	NodeFinished(nodeID string)
}

// Config — зависимости Scheduler.
type Config struct {
	// Invoker — обязательный.
	Invoker NodeInvoker

	// Cache — хранилище результатов. nil отключает кэширование.
	Cache cache.Store

	// Limiter — общий для всех run'ов лимит одновременно выполняемых узлов.
	// nil — без ограничения.
	Limiter *semaphore.Weighted

	Gate     Gate
	Tracker  Tracker
	Observer events.Observer
	Logger   *slog.Logger
}

// Scheduler выполняет граф по уровням.
type Scheduler struct {
	invoker  NodeInvoker
	cache    cache.Store
	limiter  *semaphore.Weighted
	gate     Gate
	tracker  Tracker
	observer events.Observer
	logger   *slog.Logger
}

// New создаёт Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Observer == nil {
		cfg.Observer = events.Nop
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		invoker:  cfg.Invoker,
		cache:    cfg.Cache,
		limiter:  cfg.Limiter,
		gate:     cfg.Gate,
		tracker:  cfg.Tracker,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}
}

// Run выполняет граф и возвращает итоговый результат.
//
// Итоговый результат — результат единственного листа или
// map[leafID]result, если листьев несколько. Фатальная ошибка узла
// прерывает run после завершения текущего уровня.
func (s *Scheduler) Run(ctx context.Context, g *engine.Graph, initialInputs map[string]any, exec *domain.Execution) (any, error) {
	logger := telemetry.WithExecutionID(s.logger, exec.ID.String())

	for levelIdx, level := range g.Levels() {
		if s.gate != nil {
			if err := s.gate.Wait(ctx, exec); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		logger.Debug("executing level", "level", levelIdx, "nodes", len(level))

		var eg errgroup.Group
		for _, id := range level {
			node := g.Node(id)
			eg.Go(func() error {
				return s.runNode(ctx, g, node, initialInputs, exec)
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	return Output(g), nil
}

// Output собирает итоговый результат из листьев графа.
func Output(g *engine.Graph) any {
	if len(g.Leaves) == 1 {
		return g.Node(g.Leaves[0]).Result
	}

	out := make(map[string]any, len(g.Leaves))
	for _, id := range g.Leaves {
		out[id] = g.Node(id).Result
	}
	return out
}

func (s *Scheduler) runNode(ctx context.Context, g *engine.Graph, node *engine.GraphNode, initialInputs map[string]any, exec *domain.Execution) error {
	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx, 1); err != nil {
			return err
		}
		defer s.limiter.Release(1)
	}

	logger := telemetry.WithNodeID(telemetry.WithExecutionID(s.logger, exec.ID.String()), node.ID, node.Spec.Type)
	inputs := GatherInputs(g, node, initialInputs)

	node.Status = domain.NodeStatusRunning
	node.StartTime = time.Now()
	if s.tracker != nil {
		s.tracker.NodeStarted(node.ID)
		defer s.tracker.NodeFinished(node.ID)
	}
	s.emit(exec, node, events.NodeStarted, nil)

	cacheable := s.cache != nil && !node.Spec.CacheDisabled && node.Binding.Cacheable
	var key string
	if cacheable {
		k, err := cache.Key(node.Spec.Type, node.ID, node.Spec.Data, inputs)
		if err != nil {
			logger.Debug("node result is not cacheable", "error", err)
			cacheable = false
		}
		key = k
	}

	if cacheable {
		v, found, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			logger.Warn("cache lookup failed", "error", err)
		case found:
			telemetry.RecordCacheLookup(true)
			node.FromCache = true
			s.succeed(exec, node, v)
			return nil
		default:
			telemetry.RecordCacheLookup(false)
		}
	}

	out, err := s.invoker.Invoke(ctx, node, inputs, exec.ID.String())
	if err != nil {
		return s.fail(exec, node, err, logger)
	}

	if cacheable {
		if err := s.cache.Set(ctx, key, out); err != nil {
			logger.Warn("cache store failed", "error", err)
		}
	}

	s.succeed(exec, node, out)
	return nil
}

func (s *Scheduler) succeed(exec *domain.Execution, node *engine.GraphNode, out any) {
	node.Result = out
	node.Status = domain.NodeStatusCompleted
	node.EndTime = time.Now()

	exec.RecordSuccess(node.ID, out)
	s.emit(exec, node, events.NodeCompleted, nil)
}

func (s *Scheduler) fail(exec *domain.Execution, node *engine.GraphNode, err error, logger *slog.Logger) error {
	node.Err = err
	node.Status = domain.NodeStatusFailed
	node.EndTime = time.Now()

	var stack string
	var nodeErr *engine.NodeExecutionError
	if errors.As(err, &nodeErr) {
		stack = nodeErr.Stack
	}

	if node.Spec.ContinueOnError {
		result := map[string]any{"error": ErrorMessage(err)}
		node.Result = result
		exec.RecordFailure(node.ID, err, stack, result)
		s.emit(exec, node, events.NodeFailed, err)
		logger.Warn("node failed, continuing", "error", err)
		return nil
	}

	exec.RecordFailure(node.ID, err, stack, nil)
	s.emit(exec, node, events.NodeFailed, err)
	logger.Error("node failed", "error", err)
	return engine.WrapNodeError(node.ID, err)
}

func (s *Scheduler) emit(exec *domain.Execution, node *engine.GraphNode, t events.Type, err error) {
	e := events.Event{
		Type:         t,
		ExecutionID:  exec.ID.String(),
		WorkflowName: exec.WorkflowName,
		NodeID:       node.ID,
		NodeType:     node.Spec.Type,
		FromCache:    node.FromCache,
		Timestamp:    time.Now(),
	}
	if !node.EndTime.IsZero() {
		e.Duration = node.EndTime.Sub(node.StartTime)
	}
	if err != nil {
		e.Error = err.Error()
	}
	s.observer.OnEvent(e)
}

// GatherInputs собирает входы узла: копия начальных входов плюс
// значение по каждому входящему ребру.
//
// Значение ребра — результат предшественника или, если задан SourceSocket,
// поле результата по gjson-пути. Ключ — TargetSocket или ID предшественника.
func GatherInputs(g *engine.Graph, node *engine.GraphNode, initialInputs map[string]any) map[string]any {
	inputs := make(map[string]any, len(initialInputs)+len(node.Dependencies))
	for k, v := range initialInputs {
		inputs[k] = v
	}

	for _, e := range g.Incoming(node.ID) {
		src := g.Node(e.Source)
		if src == nil {
			continue
		}

		value := src.Result
		if e.SourceSocket != "" {
			value = extractSocket(src.Result, e.SourceSocket)
		}

		key := e.TargetSocket
		if key == "" {
			key = e.Source
		}
		inputs[key] = value
	}

	return inputs
}

// extractSocket извлекает именованный выход из результата.
// Прямой ключ map сохраняет исходный тип значения; иначе путь
// вычисляется gjson по JSON-представлению результата.
func extractSocket(result any, socket string) any {
	if m, ok := result.(map[string]any); ok {
		if v, ok := m[socket]; ok {
			return v
		}
	}

	b, err := json.Marshal(result)
	if err != nil {
		return nil
	}
	r := gjson.GetBytes(b, socket)
	if !r.Exists() {
		return nil
	}
	return r.Value()
}

// ErrorMessage возвращает сообщение исходной ошибки обработчика.
func ErrorMessage(err error) string {
	var nodeErr *engine.NodeExecutionError
	if errors.As(err, &nodeErr) && nodeErr.Cause != nil {
		return nodeErr.Cause.Error()
	}
	return err.Error()
}
