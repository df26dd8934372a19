package engine

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// hclWorkflowFile — структура HCL файла workflow.
//
//	name = "pipeline"
//
//	node "a" {
//	  type = "input"
//	  data = { value = 10 }
//	}
//
//	node "b" {
//	  type       = "transform"
//	  timeout_ms = 1000
//	  data       = { operation = "double" }
//	}
//
//	connection {
//	  source = "a"
//	  target = "b"
//	}
type hclWorkflowFile struct {
	Name        string           `hcl:"name,optional"`
	Description string           `hcl:"description,optional"`
	Nodes       []*hclNode       `hcl:"node,block"`
	Connections []*hclConnection `hcl:"connection,block"`
}

type hclNode struct {
	ID              string         `hcl:"id,label"`
	Type            string         `hcl:"type"`
	ContinueOnError bool           `hcl:"continue_on_error,optional"`
	CacheDisabled   bool           `hcl:"cache_disabled,optional"`
	TimeoutMs       int            `hcl:"timeout_ms,optional"`
	Data            hcl.Expression `hcl:"data,optional"`
}

type hclConnection struct {
	Source       string `hcl:"source"`
	Target       string `hcl:"target"`
	SourceSocket string `hcl:"source_socket,optional"`
	TargetSocket string `hcl:"target_socket,optional"`
}

// ParseHCL парсит WorkflowSpec из HCL и валидирует структуру.
// filename используется только в диагностике.
func ParseHCL(src []byte, filename string) (*domain.WorkflowSpec, error) {
	parser := hclparse.NewParser()

	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse workflow hcl %s: %w", filename, diags)
	}

	var parsed hclWorkflowFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("decode workflow hcl %s: %w", filename, diags)
	}

	spec := &domain.WorkflowSpec{
		Name:        parsed.Name,
		Description: parsed.Description,
		Nodes:       make([]domain.NodeSpec, 0, len(parsed.Nodes)),
		Connections: make([]domain.ConnectionSpec, 0, len(parsed.Connections)),
	}

	for _, n := range parsed.Nodes {
		data, err := decodeNodeData(n.Data)
		if err != nil {
			return nil, NewValidationError(n.ID, "data", err.Error(), err)
		}
		spec.Nodes = append(spec.Nodes, domain.NodeSpec{
			ID:              n.ID,
			Type:            n.Type,
			Data:            data,
			ContinueOnError: n.ContinueOnError,
			CacheDisabled:   n.CacheDisabled,
			TimeoutMs:       n.TimeoutMs,
		})
	}

	for _, c := range parsed.Connections {
		spec.Connections = append(spec.Connections, domain.ConnectionSpec{
			SourceID:     c.Source,
			TargetID:     c.Target,
			SourceSocket: c.SourceSocket,
			TargetSocket: c.TargetSocket,
		})
	}

	if err := Validate(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// decodeNodeData вычисляет атрибут data без контекста переменных.
func decodeNodeData(expr hcl.Expression) (map[string]any, error) {
	if expr == nil {
		return map[string]any{}, nil
	}

	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return map[string]any{}, nil
	}

	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("data must be an object, got %s", ty.FriendlyName())
	}

	native, err := ctyToNative(val)
	if err != nil {
		return nil, err
	}
	return native.(map[string]any), nil
}

// ctyToNative рекурсивно приводит cty.Value к значениям Go,
// совместимым с результатом декодирования JSON.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		list := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			list = append(list, native)
		}
		return list, nil

	case ty.IsObjectType() || ty.IsMapType():
		m := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			m[key.AsString()] = native
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
