// Package events описывает события жизненного цикла выполнения
// и наблюдателей, которые их получают.
//
// События отправляются fire-and-forget: наблюдатель не может
// повлиять на выполнение и не должен блокировать вызывающую горутину.
package events

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Type — тип события.
type Type string

// События workflow.
const (
	WorkflowStarted   Type = "workflow:started"
	WorkflowCompleted Type = "workflow:completed"
	WorkflowFailed    Type = "workflow:failed"
	WorkflowPaused    Type = "workflow:paused"
	WorkflowResumed   Type = "workflow:resumed"
	WorkflowStopped   Type = "workflow:stopped"
)

// События узлов.
const (
	NodeStarted   Type = "node:executionStarted"
	NodeCompleted Type = "node:executionCompleted"
	NodeFailed    Type = "node:executionFailed"
)

// IsWorkflow возвращает true для событий уровня workflow.
func (t Type) IsWorkflow() bool {
	return strings.HasPrefix(string(t), "workflow:")
}

// Event — событие выполнения.
type Event struct {
	Type         Type          `json:"type"`
	ExecutionID  string        `json:"executionId"`
	WorkflowName string        `json:"workflowName,omitempty"`
	NodeID       string        `json:"nodeId,omitempty"`
	NodeType     string        `json:"nodeType,omitempty"`
	Error        string        `json:"error,omitempty"`
	FromCache    bool          `json:"fromCache,omitempty"`
	Duration     time.Duration `json:"durationNs,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Observer получает события выполнения.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc — адаптер функции к Observer.
type ObserverFunc func(Event)

// OnEvent вызывает f(e).
func (f ObserverFunc) OnEvent(e Event) {
	f(e)
}

// Nop — наблюдатель, игнорирующий события.
var Nop Observer = ObserverFunc(func(Event) {})

// Multi — fan-out на несколько наблюдателей.
type Multi []Observer

// OnEvent передаёт событие каждому наблюдателю по порядку.
func (m Multi) OnEvent(e Event) {
	for _, o := range m {
		if o != nil {
			o.OnEvent(e)
		}
	}
}

// Combine объединяет наблюдателей, пропуская nil.
func Combine(observers ...Observer) Observer {
	out := make(Multi, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	switch len(out) {
	case 0:
		return Nop
	case 1:
		return out[0]
	default:
		return out
	}
}

// LogObserver пишет события в slog.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver создаёт LogObserver.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

// OnEvent логирует событие. Ошибки — WARN, узлы — DEBUG, остальное — INFO.
func (o *LogObserver) OnEvent(e Event) {
	attrs := []any{"event", string(e.Type), "execution_id", e.ExecutionID}
	if e.NodeID != "" {
		attrs = append(attrs, "node_id", e.NodeID, "node_type", e.NodeType)
	}
	if e.Duration > 0 {
		attrs = append(attrs, "duration", e.Duration)
	}
	if e.FromCache {
		attrs = append(attrs, "from_cache", true)
	}

	switch {
	case e.Error != "":
		o.logger.Warn("execution event", append(attrs, "error", e.Error)...)
	case e.Type.IsWorkflow():
		o.logger.Info("execution event", attrs...)
	default:
		o.logger.Debug("execution event", attrs...)
	}
}

// Recorder накапливает события в памяти.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder создаёт пустой Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// OnEvent сохраняет событие.
func (r *Recorder) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events возвращает копию накопленных событий.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count возвращает число событий заданного типа.
func (r *Recorder) Count(t Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// Types возвращает типы событий в порядке поступления.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
