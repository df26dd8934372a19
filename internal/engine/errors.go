package engine

import (
	"errors"
	"fmt"
	"time"
)

// Ошибки валидации WorkflowSpec.
var (
	// ErrEmptySpec — спецификация отсутствует.
	ErrEmptySpec = errors.New("workflow spec is nil")

	// ErrEmptyNodeID — узел не имеет ID.
	ErrEmptyNodeID = errors.New("node has empty ID")

	// ErrEmptyNodeType — узел не имеет типа.
	ErrEmptyNodeType = errors.New("node has empty type")

	// ErrDuplicateNodeID — несколько узлов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownNode — соединение ссылается на несуществующий узел.
	ErrUnknownNode = errors.New("connection references unknown node")

	// ErrUnknownNodeType — для типа узла нет обработчика.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrUnknownStartNode — стартовый узел отсутствует в workflow.
	ErrUnknownStartNode = errors.New("unknown start node")

	// ErrCircularDependency — обнаружен цикл в зависимостях.
	ErrCircularDependency = errors.New("circular dependency detected")
)

// Ошибки выполнения.
var (
	// ErrExecutionStopped — run остановлен через Stop() до следующего уровня.
	ErrExecutionStopped = errors.New("execution stopped")

	// ErrAlreadyRunning — предыдущий run ещё не завершён.
	ErrAlreadyRunning = errors.New("workflow execution already running")

	// ErrNotRunning — нет активного run для pause/resume/stop.
	ErrNotRunning = errors.New("no workflow execution is running")

	// ErrNodeTimeout — узел превысил таймаут.
	ErrNodeTimeout = errors.New("node execution timeout")

	// ErrNodeFailed — обработчик узла вернул ошибку.
	ErrNodeFailed = errors.New("node execution failed")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	NodeID  string // ID узла, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(nodeID, field, message string, err error) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// CircularDependencyError — цикл в графе, NodeID лежит на цикле.
type CircularDependencyError struct {
	NodeID string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected at node %s", e.NodeID)
}

// Is позволяет сравнивать с ErrCircularDependency.
func (e *CircularDependencyError) Is(target error) bool {
	return target == ErrCircularDependency
}

// TimeoutError — узел не уложился в отведённое время.
type TimeoutError struct {
	NodeID  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("node %s timed out after %s", e.NodeID, e.Timeout)
}

// Is позволяет сравнивать с ErrNodeTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrNodeTimeout
}

// NodeExecutionError — ошибка обработчика узла с контекстом узла.
type NodeExecutionError struct {
	NodeID string
	Cause  error

	// Stack — стек паники обработчика, если она была.
	Stack string
}

func (e *NodeExecutionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("node %s: %s", e.NodeID, ErrNodeFailed)
	}
	return fmt.Sprintf("node %s: %v", e.NodeID, e.Cause)
}

// Unwrap возвращает исходную ошибку обработчика.
func (e *NodeExecutionError) Unwrap() error {
	return e.Cause
}

// Is позволяет сравнивать с ErrNodeFailed.
func (e *NodeExecutionError) Is(target error) bool {
	return target == ErrNodeFailed
}

// WrapNodeError оборачивает err в NodeExecutionError, если он ещё не обёрнут
// для того же узла.
func WrapNodeError(nodeID string, err error) error {
	if err == nil {
		return nil
	}
	var nodeErr *NodeExecutionError
	if errors.As(err, &nodeErr) && nodeErr.NodeID == nodeID {
		return err
	}
	return &NodeExecutionError{NodeID: nodeID, Cause: err}
}
