// Package invoker вызывает обработчик узла с таймаутом.
//
// Обработчик выполняется в отдельной горутине с контекстом, который
// отменяется по истечении таймаута. Если обработчик игнорирует контекст,
// он продолжает работу в фоне, а его поздний результат отбрасывается.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/nodes"
)

// DefaultTimeout — таймаут узла по умолчанию.
const DefaultTimeout = 5 * time.Minute

// Config — параметры Invoker.
type Config struct {
	// DefaultTimeout — таймаут для узлов без TimeoutMs.
	DefaultTimeout time.Duration

	// Remote — обработчик для узлов, локальный обработчик которых
	// вернул nodes.ErrNotProcessed. Может быть nil.
	Remote nodes.Handler

	Logger *slog.Logger
}

// Invoker вызывает обработчики узлов.
type Invoker struct {
	defaultTimeout time.Duration
	remote         nodes.Handler
	logger         *slog.Logger
}

// New создаёт Invoker.
func New(cfg Config) *Invoker {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Invoker{
		defaultTimeout: cfg.DefaultTimeout,
		remote:         cfg.Remote,
		logger:         cfg.Logger,
	}
}

type outcome struct {
	value any
	err   error
	stack string
}

// Invoke выполняет узел с разрешёнными входами.
//
// Ошибки:
//   - *engine.TimeoutError — узел не завершился за отведённое время
//   - *engine.NodeExecutionError — обработчик вернул ошибку или запаниковал
//   - ctx.Err() — run отменён вызывающей стороной
func (i *Invoker) Invoke(ctx context.Context, node *engine.GraphNode, inputs map[string]any, executionID string) (any, error) {
	timeout := node.Spec.Timeout(i.defaultTimeout)

	handler := node.Binding.Handler
	if handler == nil {
		return nil, &engine.NodeExecutionError{
			NodeID: node.ID,
			Cause:  fmt.Errorf("%w: %s", nodes.ErrUnknownType, node.Spec.Type),
		}
	}

	req := nodes.NewRequest(node.ID, node.Spec.Type, node.Spec.Data, inputs, executionID)

	// Один дедлайн на узел: remote получает только остаток времени.
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := i.call(ctx, callCtx, node.ID, timeout, handler, req)
	if errors.Is(out.err, nodes.ErrNotProcessed) && i.remote != nil && node.Binding.Kind == nodes.BindingLocal {
		i.logger.Debug("node delegated to remote", "node_id", node.ID, "node_type", node.Spec.Type)
		out = i.call(ctx, callCtx, node.ID, timeout, i.remote, req)
	}

	if out.err != nil {
		var timeoutErr *engine.TimeoutError
		if errors.As(out.err, &timeoutErr) {
			return nil, out.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(out.err, ctxErr) {
			return nil, out.err
		}
		return nil, &engine.NodeExecutionError{NodeID: node.ID, Cause: out.err, Stack: out.stack}
	}
	return out.value, nil
}

// call запускает обработчик с callCtx и ждёт результата, дедлайна
// callCtx или отмены ctx.
func (i *Invoker) call(ctx, callCtx context.Context, nodeID string, timeout time.Duration, h nodes.Handler, req *nodes.Request) outcome {
	if callCtx.Err() != nil {
		if ctx.Err() != nil {
			return outcome{err: ctx.Err()}
		}
		return outcome{err: &engine.TimeoutError{NodeID: nodeID, Timeout: timeout}}
	}

	// Буфер 1: поздний результат не блокирует брошенную горутину.
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				i.logger.Error("node handler panic",
					"node_id", nodeID,
					"panic", r,
					"stack", stack,
				)
				done <- outcome{err: fmt.Errorf("panic: %v", r), stack: stack}
			}
		}()

		v, err := h.Process(callCtx, req)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return outcome{err: &engine.TimeoutError{NodeID: nodeID, Timeout: timeout}}
		}
		return out
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return outcome{err: ctx.Err()}
		}
		return outcome{err: &engine.TimeoutError{NodeID: nodeID, Timeout: timeout}}
	}
}
