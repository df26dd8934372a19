package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// ParseJSON парсит WorkflowSpec из JSON и валидирует структуру.
//
// Неизвестные поля (например, позиции узлов редактора) игнорируются.
// Числа внутри data декодируются как float64.
func ParseJSON(data []byte) (*domain.WorkflowSpec, error) {
	var spec domain.WorkflowSpec

	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse workflow json: %w", err)
	}

	if err := Validate(&spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// LoadFile читает WorkflowSpec из файла.
// Формат определяется по расширению: .hcl — HCL, иначе JSON.
func LoadFile(path string) (*domain.WorkflowSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		return ParseHCL(data, filepath.Base(path))
	}
	return ParseJSON(data)
}

// Validate выполняет структурную валидацию WorkflowSpec.
//
// Проверяет:
//   - ID узлов непустые и уникальные
//   - типы узлов непустые
//   - соединения ссылаются на существующие узлы
//
// Циклы обнаруживаются при построении графа (Build).
func Validate(spec *domain.WorkflowSpec) error {
	if spec == nil {
		return ErrEmptySpec
	}

	ids := make(map[string]bool, len(spec.Nodes))
	for i := range spec.Nodes {
		node := &spec.Nodes[i]

		if node.ID == "" {
			return NewValidationError("", "id",
				fmt.Sprintf("node %d has empty ID", i), ErrEmptyNodeID)
		}
		if ids[node.ID] {
			return NewValidationError(node.ID, "id",
				fmt.Sprintf("duplicate node ID: %s", node.ID), ErrDuplicateNodeID)
		}
		ids[node.ID] = true

		if node.Type == "" {
			return NewValidationError(node.ID, "type",
				"node has empty type", ErrEmptyNodeType)
		}
		if node.TimeoutMs < 0 {
			return NewValidationError(node.ID, "timeoutMs",
				"timeout must not be negative", nil)
		}
	}

	for i, conn := range spec.Connections {
		if !ids[conn.SourceID] {
			return NewValidationError(conn.TargetID, "sourceId",
				fmt.Sprintf("connection %d references unknown source node: %s", i, conn.SourceID), ErrUnknownNode)
		}
		if !ids[conn.TargetID] {
			return NewValidationError(conn.SourceID, "targetId",
				fmt.Sprintf("connection %d references unknown target node: %s", i, conn.TargetID), ErrUnknownNode)
		}
	}

	return nil
}
