package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Nodeflow/internal/domain"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    *domain.WorkflowSpec
		wantErr error
	}{
		{
			name:    "nil spec",
			spec:    nil,
			wantErr: ErrEmptySpec,
		},
		{
			name:    "empty node id",
			spec:    &domain.WorkflowSpec{Nodes: []domain.NodeSpec{{Type: "input"}}},
			wantErr: ErrEmptyNodeID,
		},
		{
			name: "duplicate node id",
			spec: &domain.WorkflowSpec{Nodes: []domain.NodeSpec{
				{ID: "a", Type: "input"},
				{ID: "a", Type: "output"},
			}},
			wantErr: ErrDuplicateNodeID,
		},
		{
			name:    "empty type",
			spec:    &domain.WorkflowSpec{Nodes: []domain.NodeSpec{{ID: "a"}}},
			wantErr: ErrEmptyNodeType,
		},
		{
			name: "unknown source",
			spec: &domain.WorkflowSpec{
				Nodes:       []domain.NodeSpec{{ID: "a", Type: "input"}},
				Connections: []domain.ConnectionSpec{{SourceID: "x", TargetID: "a"}},
			},
			wantErr: ErrUnknownNode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.spec)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidate_ValidationErrorContext(t *testing.T) {
	err := Validate(&domain.WorkflowSpec{Nodes: []domain.NodeSpec{
		{ID: "a", Type: "input"},
		{ID: "a", Type: "input"},
	}})

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "a", vErr.NodeID)
	assert.Equal(t, "id", vErr.Field)
	assert.Contains(t, vErr.Error(), "node a:")
}

func TestParseJSON(t *testing.T) {
	data := []byte(`{
		"name": "diamond",
		"nodes": [
			{"id": "src", "type": "input", "data": {"value": 5}, "position": {"x": 1, "y": 2}},
			{"id": "double", "type": "transform", "data": {"operation": "double"}, "continueOnError": true},
			{"id": "square", "type": "transform", "data": {"operation": "square"}, "timeoutMs": 250}
		],
		"connections": [
			{"sourceId": "src", "targetId": "double"},
			{"sourceId": "src", "targetId": "square", "sourceSocket": "value", "targetSocket": "x"}
		]
	}`)

	spec, err := ParseJSON(data)
	require.NoError(t, err)

	assert.Equal(t, "diamond", spec.Name)
	require.Len(t, spec.Nodes, 3)
	assert.Equal(t, 5.0, spec.Nodes[0].Data["value"])
	assert.True(t, spec.Nodes[1].ContinueOnError)
	assert.Equal(t, 250, spec.Nodes[2].TimeoutMs)
	require.Len(t, spec.Connections, 2)
	assert.Equal(t, "x", spec.Connections[1].TargetSocket)
}

func TestParseJSON_Invalid(t *testing.T) {
	_, err := ParseJSON([]byte(`{"nodes": [`))
	assert.Error(t, err)

	_, err = ParseJSON([]byte(`{"nodes": [{"id": "a"}]}`))
	assert.ErrorIs(t, err, ErrEmptyNodeType)
}

const diamondHCL = `
name = "diamond"

node "src" {
  type = "input"
  data = {
    value = 5
    tags  = ["a", "b"]
  }
}

node "double" {
  type              = "transform"
  continue_on_error = true
  data              = { operation = "double" }
}

node "sink" {
  type           = "output"
  cache_disabled = true
  timeout_ms     = 1000
}

connection {
  source = "src"
  target = "double"
}

connection {
  source        = "double"
  target        = "sink"
  target_socket = "result"
}
`

func TestParseHCL(t *testing.T) {
	spec, err := ParseHCL([]byte(diamondHCL), "diamond.hcl")
	require.NoError(t, err)

	assert.Equal(t, "diamond", spec.Name)
	require.Len(t, spec.Nodes, 3)

	src := spec.Nodes[0]
	assert.Equal(t, "src", src.ID)
	assert.Equal(t, "input", src.Type)
	assert.Equal(t, 5.0, src.Data["value"])
	assert.Equal(t, []any{"a", "b"}, src.Data["tags"])

	assert.True(t, spec.Nodes[1].ContinueOnError)
	assert.Equal(t, "double", spec.Nodes[1].Data["operation"])

	sink := spec.Nodes[2]
	assert.True(t, sink.CacheDisabled)
	assert.Equal(t, 1000, sink.TimeoutMs)
	assert.Empty(t, sink.Data)

	require.Len(t, spec.Connections, 2)
	assert.Equal(t, "result", spec.Connections[1].TargetSocket)
}

func TestParseHCL_Errors(t *testing.T) {
	_, err := ParseHCL([]byte(`node "a" {`), "broken.hcl")
	assert.Error(t, err)

	_, err = ParseHCL([]byte(`node "a" { data = {} }`), "notype.hcl")
	assert.Error(t, err)

	_, err = ParseHCL([]byte(`
node "a" {
  type = "input"
  data = "scalar"
}`), "scalar.hcl")
	assert.Error(t, err)

	_, err = ParseHCL([]byte(`
node "a" { type = "input" }
connection {
  source = "a"
  target = "b"
}`), "dangling.hcl")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	hclPath := filepath.Join(dir, "flow.hcl")
	require.NoError(t, os.WriteFile(hclPath, []byte(diamondHCL), 0o600))
	spec, err := LoadFile(hclPath)
	require.NoError(t, err)
	assert.Len(t, spec.Nodes, 3)

	jsonPath := filepath.Join(dir, "flow.json")
	require.NoError(t, os.WriteFile(jsonPath,
		[]byte(`{"nodes":[{"id":"a","type":"input","data":{"value":1}}]}`), 0o600))
	spec, err = LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Len(t, spec.Nodes, 1)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
