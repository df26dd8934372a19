package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// ExecuteRequest — запрос на запуск workflow.
type ExecuteRequest struct {
	Workflow    *domain.WorkflowSpec `json:"workflow"`
	StartNodeID string               `json:"startNodeId,omitempty"`
	Inputs      map[string]any       `json:"inputs,omitempty"`
}

// ExecutionSummary — краткое описание выполнения для списков.
type ExecutionSummary struct {
	ID           uuid.UUID                `json:"id"`
	WorkflowName string                   `json:"workflowName,omitempty"`
	Status       domain.ExecutionStatus   `json:"status"`
	Metadata     domain.ExecutionMetadata `json:"metadata"`
	Error        string                   `json:"error,omitempty"`
	StartTime    time.Time                `json:"startTime"`
	EndTime      *time.Time               `json:"endTime,omitempty"`
	DurationMs   int64                    `json:"durationMs"`
}

// SummaryFromDomain преобразует domain.Execution в ExecutionSummary.
func SummaryFromDomain(e *domain.Execution) ExecutionSummary {
	return ExecutionSummary{
		ID:           e.ID,
		WorkflowName: e.WorkflowName,
		Status:       e.CurrentStatus(),
		Metadata:     e.Metadata,
		Error:        e.Error,
		StartTime:    e.StartTime,
		EndTime:      e.EndTime,
		DurationMs:   e.DurationMs,
	}
}

// ValidateResponse — результат проверки workflow.
type ValidateResponse struct {
	Valid  bool       `json:"valid"`
	Name   string     `json:"name,omitempty"`
	Nodes  int        `json:"nodes"`
	Levels [][]string `json:"levels,omitempty"`
	Roots  []string   `json:"roots,omitempty"`
	Leaves []string   `json:"leaves,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// ControlResponse — ответ на pause/resume/stop.
type ControlResponse struct {
	Status string `json:"status"`
}

// NodeTypesResponse — зарегистрированные типы узлов.
type NodeTypesResponse struct {
	Types  []string `json:"types"`
	Remote bool     `json:"remote"`
}
