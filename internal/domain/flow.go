package domain

import (
	"time"
)

// WorkflowSpec — декларативное описание workflow.
//
// WorkflowSpec — это "программа" для движка: набор узлов и направленных
// соединений между ними. Спецификация передаётся в каждый вызов Execute
// и никогда не модифицируется движком.
type WorkflowSpec struct {
	// Name — человекочитаемое имя workflow (необязательно).
	Name string `json:"name,omitempty"`

	// Description — описание назначения workflow.
	Description string `json:"description,omitempty"`

	// Nodes — узлы workflow.
	Nodes []NodeSpec `json:"nodes"`

	// Connections — рёбра данных между узлами.
	Connections []ConnectionSpec `json:"connections"`
}

// NodeSpec — определение узла в workflow.
type NodeSpec struct {
	// ID — уникальный идентификатор узла в рамках workflow.
	ID string `json:"id"`

	// Type — тип узла, по нему выбирается обработчик (Node Processor).
	Type string `json:"type"`

	// Data — непрозрачная конфигурация узла, интерпретируется обработчиком.
	Data map[string]any `json:"data,omitempty"`

	// ContinueOnError — ошибка узла не прерывает run,
	// вместо результата записывается {"error": message}.
	ContinueOnError bool `json:"continueOnError,omitempty"`

	// CacheDisabled — результат узла не кэшируется.
	CacheDisabled bool `json:"cacheDisabled,omitempty"`

	// TimeoutMs — таймаут выполнения узла в миллисекундах.
	// Если 0, используется таймаут по умолчанию контроллера.
	TimeoutMs int `json:"timeoutMs,omitempty"`
}

// Timeout возвращает таймаут узла или fallback, если таймаут не задан.
func (n *NodeSpec) Timeout(fallback time.Duration) time.Duration {
	if n.TimeoutMs > 0 {
		return time.Duration(n.TimeoutMs) * time.Millisecond
	}
	return fallback
}

// ConnectionSpec — соединение (ребро данных) между двумя узлами.
type ConnectionSpec struct {
	// SourceID — узел-источник.
	SourceID string `json:"sourceId"`

	// TargetID — узел-получатель.
	TargetID string `json:"targetId"`

	// SourceSocket — именованный выход источника.
	// Пустой означает "весь результат".
	SourceSocket string `json:"sourceSocket,omitempty"`

	// TargetSocket — именованный вход получателя.
	// Пустой означает "ключ = ID источника".
	TargetSocket string `json:"targetSocket,omitempty"`
}

// NodeIndex возвращает map ID → NodeSpec.
// Для дублирующихся ID побеждает последний узел.
func (s *WorkflowSpec) NodeIndex() map[string]*NodeSpec {
	index := make(map[string]*NodeSpec, len(s.Nodes))
	for i := range s.Nodes {
		index[s.Nodes[i].ID] = &s.Nodes[i]
	}
	return index
}
