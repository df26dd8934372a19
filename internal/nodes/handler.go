package nodes

import (
	"context"
	"errors"
	"sort"
)

// Ошибки обработчиков узлов.
var (
	// ErrUnknownType — тип узла не найден в реестре и remote не настроен.
	ErrUnknownType = errors.New("node type not found")

	// ErrInvalidConfig — невалидная конфигурация узла (Data).
	ErrInvalidConfig = errors.New("invalid node config")

	// ErrInvalidInput — входные данные узла не подходят обработчику.
	ErrInvalidInput = errors.New("invalid node input")

	// ErrCancelled — выполнение узла отменено (таймаут или остановка).
	ErrCancelled = errors.New("node execution cancelled")

	// ErrNotProcessed — локальный обработчик отказался от узла,
	// выполнение делегируется remote API.
	ErrNotProcessed = errors.New("node not processed locally")

	// ErrRemoteCall — ошибка вызова remote API.
	ErrRemoteCall = errors.New("remote node call failed")
)

// Handler — обработчик узла (Node Processor).
//
// Обработчик получает данные узла и разрешённые входы и возвращает
// непрозрачный результат. Обработчик должен уважать ctx.Done():
// при таймауте контекст отменяется.
type Handler interface {
	Process(ctx context.Context, req *Request) (any, error)
}

// HandlerFunc — адаптер функции к Handler.
type HandlerFunc func(ctx context.Context, req *Request) (any, error)

// Process вызывает f(ctx, req).
func (f HandlerFunc) Process(ctx context.Context, req *Request) (any, error) {
	return f(ctx, req)
}

// Request — входные данные для выполнения узла.
type Request struct {
	// NodeID — идентификатор узла.
	NodeID string

	// NodeType — тип узла.
	NodeType string

	// Data — конфигурация узла из NodeSpec.
	Data map[string]any

	// Inputs — входы: начальные inputs + результаты предшественников.
	// Значения разделяются с другими узлами run, обработчик их не меняет.
	Inputs map[string]any

	// ExecutionID — идентификатор выполнения workflow.
	ExecutionID string
}

// NewRequest создаёт новый Request.
func NewRequest(nodeID, nodeType string, data, inputs map[string]any, executionID string) *Request {
	if data == nil {
		data = make(map[string]any)
	}
	if inputs == nil {
		inputs = make(map[string]any)
	}
	return &Request{
		NodeID:      nodeID,
		NodeType:    nodeType,
		Data:        data,
		Inputs:      inputs,
		ExecutionID: executionID,
	}
}

// InputKeys возвращает отсортированные ключи входов.
func (r *Request) InputKeys() []string {
	keys := make([]string, 0, len(r.Inputs))
	for k := range r.Inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetString извлекает строковое значение из конфига.
func GetString(data map[string]any, key string) string {
	if v, ok := data[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetInt извлекает числовое значение из конфига.
func GetInt(data map[string]any, key string) int {
	if f, ok := ToFloat(data[key]); ok {
		return int(f)
	}
	return 0
}

// GetFloat извлекает число из конфига.
func GetFloat(data map[string]any, key string, defaultVal float64) float64 {
	if f, ok := ToFloat(data[key]); ok {
		return f
	}
	return defaultVal
}

// GetBool извлекает булево значение из конфига.
func GetBool(data map[string]any, key string, defaultVal bool) bool {
	if v, ok := data[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetMapString извлекает map[string]string из конфига.
func GetMapString(data map[string]any, key string) map[string]string {
	if v, ok := data[key]; ok {
		switch m := v.(type) {
		case map[string]string:
			return m
		case map[string]any:
			result := make(map[string]string)
			for k, val := range m {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}

// ToFloat приводит числовые значения к float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
