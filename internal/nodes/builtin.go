package nodes

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Встроенные типы узлов.
const (
	TypeInput     = "input"
	TypeTransform = "transform"
	TypeCombine   = "combine"
	TypeOutput    = "output"
	TypeDelay     = "delay"
	TypeHTTP      = "http"
	TypeRandom    = "random"
	TypeTimestamp = "timestamp"
)

// InputNode — источник значения.
//
// Конфигурация:
//
//	{"key": "x"}     — значение берётся из начальных inputs по ключу
//	{"value": 10}    — литерал, если key не задан или не найден
type InputNode struct{}

// NewInputNode создаёт новый InputNode.
func NewInputNode() *InputNode {
	return &InputNode{}
}

// Process возвращает значение входа.
func (n *InputNode) Process(_ context.Context, req *Request) (any, error) {
	if key := GetString(req.Data, "key"); key != "" {
		if v, ok := req.Inputs[key]; ok {
			return v, nil
		}
	}
	if v, ok := req.Data["value"]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s: value or key is required", ErrInvalidConfig, TypeInput)
}

// TransformNode — арифметическое преобразование числа.
//
// Конфигурация:
//
//	{"operation": "multiply", "operand": 2, "input": "a"}
//
// Поддерживаемые операции: multiply, add, subtract, divide,
// double, square, negate, identity. Если input не задан,
// берётся первый числовой вход по отсортированному ключу.
type TransformNode struct{}

// NewTransformNode создаёт новый TransformNode.
func NewTransformNode() *TransformNode {
	return &TransformNode{}
}

// Process применяет операцию к входу.
func (n *TransformNode) Process(_ context.Context, req *Request) (any, error) {
	x, err := numericInput(req)
	if err != nil {
		return nil, err
	}

	op := strings.ToLower(GetString(req.Data, "operation"))
	operand := GetFloat(req.Data, "operand", 0)

	switch op {
	case "multiply":
		return x * operand, nil
	case "add":
		return x + operand, nil
	case "subtract":
		return x - operand, nil
	case "divide":
		if operand == 0 {
			return nil, fmt.Errorf("%w: %s: division by zero", ErrInvalidConfig, TypeTransform)
		}
		return x / operand, nil
	case "double":
		return x * 2, nil
	case "square":
		return x * x, nil
	case "negate":
		return -x, nil
	case "", "identity":
		return x, nil
	default:
		return nil, fmt.Errorf("%w: %s: unknown operation %q", ErrInvalidConfig, TypeTransform, op)
	}
}

// numericInput выбирает числовой вход узла.
func numericInput(req *Request) (float64, error) {
	if key := GetString(req.Data, "input"); key != "" {
		v, ok := req.Inputs[key]
		if !ok {
			return 0, fmt.Errorf("%w: input %q not found", ErrInvalidInput, key)
		}
		f, ok := ToFloat(v)
		if !ok {
			return 0, fmt.Errorf("%w: input %q is not a number", ErrInvalidInput, key)
		}
		return f, nil
	}

	for _, key := range req.InputKeys() {
		if f, ok := ToFloat(req.Inputs[key]); ok {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: no numeric input", ErrInvalidInput)
}

// CombineNode — объединение входов.
//
// Конфигурация:
//
//	{"operation": "sum"}
//
// Операции: sum (по умолчанию), product, concat, merge, list.
// Входы обходятся в порядке отсортированных ключей.
type CombineNode struct{}

// NewCombineNode создаёт новый CombineNode.
func NewCombineNode() *CombineNode {
	return &CombineNode{}
}

// Process объединяет входы.
func (n *CombineNode) Process(_ context.Context, req *Request) (any, error) {
	keys := req.InputKeys()
	op := strings.ToLower(GetString(req.Data, "operation"))

	switch op {
	case "", "sum":
		var sum float64
		for _, k := range keys {
			if f, ok := ToFloat(req.Inputs[k]); ok {
				sum += f
			}
		}
		return sum, nil

	case "product":
		product := 1.0
		found := false
		for _, k := range keys {
			if f, ok := ToFloat(req.Inputs[k]); ok {
				product *= f
				found = true
			}
		}
		if !found {
			return 0.0, nil
		}
		return product, nil

	case "concat":
		sep := GetString(req.Data, "separator")
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprint(req.Inputs[k]))
		}
		return strings.Join(parts, sep), nil

	case "merge":
		merged := make(map[string]any)
		for _, k := range keys {
			if m, ok := req.Inputs[k].(map[string]any); ok {
				for mk, mv := range m {
					merged[mk] = mv
				}
				continue
			}
			merged[k] = req.Inputs[k]
		}
		return merged, nil

	case "list":
		list := make([]any, 0, len(keys))
		for _, k := range keys {
			list = append(list, req.Inputs[k])
		}
		return list, nil

	default:
		return nil, fmt.Errorf("%w: %s: unknown operation %q", ErrInvalidConfig, TypeCombine, op)
	}
}

// OutputNode — сток workflow.
//
// С data.key возвращает соответствующий вход; с единственным входом
// возвращает его без изменений; иначе возвращает все входы как map.
type OutputNode struct{}

// NewOutputNode создаёт новый OutputNode.
func NewOutputNode() *OutputNode {
	return &OutputNode{}
}

// Process возвращает результат workflow.
func (n *OutputNode) Process(_ context.Context, req *Request) (any, error) {
	if key := GetString(req.Data, "key"); key != "" {
		v, ok := req.Inputs[key]
		if !ok {
			return nil, fmt.Errorf("%w: input %q not found", ErrInvalidInput, key)
		}
		return v, nil
	}

	switch len(req.Inputs) {
	case 0:
		return nil, nil
	case 1:
		for _, v := range req.Inputs {
			return v, nil
		}
	}

	out := make(map[string]any, len(req.Inputs))
	for k, v := range req.Inputs {
		out[k] = v
	}
	return out, nil
}

// round округляет до заданного числа знаков.
func round(x float64, digits int) float64 {
	if digits < 0 {
		return x
	}
	p := math.Pow(10, float64(digits))
	return math.Round(x*p) / p
}
