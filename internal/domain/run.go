package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Execution — запись об одном выполнении workflow.
//
// Execution создаётся на входе в Execute(), заполняется scheduler'ом
// по мере выполнения узлов и финализируется на выходе. После финализации
// запись попадает в историю контроллера и больше не изменяется.
//
// Методы Record* потокобезопасны: узлы одного уровня пишут в Execution
// параллельно.
type Execution struct {
	// ID — уникальный идентификатор выполнения.
	ID uuid.UUID `json:"id"`

	// WorkflowName — имя workflow (из WorkflowSpec.Name).
	WorkflowName string `json:"workflowName,omitempty"`

	// Workflow — спецификация, которая выполнялась.
	Workflow *WorkflowSpec `json:"workflow,omitempty"`

	// StartNodeID — узел, с которого начат частичный run (пусто = весь граф).
	StartNodeID string `json:"startNodeId,omitempty"`

	// Status — текущий статус выполнения.
	Status ExecutionStatus `json:"status"`

	// Inputs — начальные входные данные run.
	Inputs map[string]any `json:"inputs,omitempty"`

	// Results — результаты узлов (nodeID → output).
	Results map[string]any `json:"results"`

	// Errors — ошибки узлов (фатальные и нефатальные).
	Errors []NodeError `json:"errors"`

	// NodeOrder — порядок завершения узлов.
	NodeOrder []string `json:"nodeOrder"`

	// Metadata — счётчики узлов.
	Metadata ExecutionMetadata `json:"metadata"`

	// Output — итоговый результат (результат листа или map листьев).
	Output any `json:"output,omitempty"`

	// Error — текст фатальной ошибки, если run завершился неуспешно.
	Error string `json:"error,omitempty"`

	// StartTime — время создания execution.
	StartTime time.Time `json:"startTime"`

	// EndTime — время финализации. Nil, пока run выполняется.
	EndTime *time.Time `json:"endTime,omitempty"`

	// DurationMs — продолжительность выполнения в миллисекундах.
	DurationMs int64 `json:"durationMs"`

	mu sync.Mutex
}

// ExecutionMetadata — агрегированные счётчики узлов.
type ExecutionMetadata struct {
	TotalNodes     int `json:"totalNodes"`
	CompletedNodes int `json:"completedNodes"`
	FailedNodes    int `json:"failedNodes"`
}

// NodeError — ошибка узла для postmortem-анализа.
type NodeError struct {
	NodeID    string    `json:"nodeId"`
	Message   string    `json:"message"`
	Stack     string    `json:"stack,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExecution создаёт execution в статусе PENDING.
func NewExecution(spec *WorkflowSpec, startNodeID string, inputs map[string]any) *Execution {
	if inputs == nil {
		inputs = make(map[string]any)
	}

	exec := &Execution{
		ID:          uuid.New(),
		Workflow:    spec,
		StartNodeID: startNodeID,
		Status:      ExecutionStatusPending,
		Inputs:      inputs,
		Results:     make(map[string]any),
		Errors:      make([]NodeError, 0),
		NodeOrder:   make([]string, 0),
		StartTime:   time.Now(),
	}
	if spec != nil {
		exec.WorkflowName = spec.Name
	}
	return exec
}

// MarkRunning переводит execution в статус RUNNING.
func (e *Execution) MarkRunning(totalNodes int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Status = ExecutionStatusRunning
	e.Metadata.TotalNodes = totalNodes
}

// MarkPaused переводит execution в статус PAUSED.
func (e *Execution) MarkPaused() {
	e.setStatus(ExecutionStatusPaused)
}

// MarkResumed возвращает execution в статус RUNNING после паузы.
func (e *Execution) MarkResumed() {
	e.setStatus(ExecutionStatusRunning)
}

// MarkCompleted финализирует execution как успешный.
func (e *Execution) MarkCompleted(output any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Output = output
	e.finish(ExecutionStatusCompleted, "")
}

// MarkFailed финализирует execution как упавший.
func (e *Execution) MarkFailed(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.finish(ExecutionStatusFailed, errorText(err))
}

// MarkStopped финализирует execution как остановленный.
func (e *Execution) MarkStopped(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.finish(ExecutionStatusStopped, errorText(err))
}

// finish выставляет финальный статус. Вызывается под e.mu.
func (e *Execution) finish(status ExecutionStatus, errMsg string) {
	now := time.Now()
	e.Status = status
	e.Error = errMsg
	e.EndTime = &now
	e.DurationMs = now.Sub(e.StartTime).Milliseconds()
}

// RecordSuccess записывает результат успешно выполненного узла.
func (e *Execution) RecordSuccess(nodeID string, output any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Results[nodeID] = output
	e.NodeOrder = append(e.NodeOrder, nodeID)
	e.Metadata.CompletedNodes++
}

// RecordFailure записывает ошибку узла.
//
// result — значение, которое подставляется вместо результата
// (для continueOnError); nil означает, что результата нет.
func (e *Execution) RecordFailure(nodeID string, err error, stack string, result any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Errors = append(e.Errors, NodeError{
		NodeID:    nodeID,
		Message:   errorText(err),
		Stack:     stack,
		Timestamp: time.Now(),
	})
	if result != nil {
		e.Results[nodeID] = result
	}
	e.NodeOrder = append(e.NodeOrder, nodeID)
	e.Metadata.FailedNodes++
}

// Result возвращает результат узла.
func (e *Execution) Result(nodeID string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, ok := e.Results[nodeID]
	return v, ok
}

// CurrentStatus возвращает статус под блокировкой.
func (e *Execution) CurrentStatus() ExecutionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Status
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если execution ещё не финализирован.
func (e *Execution) Duration() time.Duration {
	return time.Duration(e.DurationMs) * time.Millisecond
}

// IsFinished возвращает true, если execution финализирован.
func (e *Execution) IsFinished() bool {
	return e.CurrentStatus().IsTerminal()
}

func (e *Execution) setStatus(status ExecutionStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Status.IsTerminal() {
		return
	}
	e.Status = status
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
