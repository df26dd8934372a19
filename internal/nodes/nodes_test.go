package nodes

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Registry Tests

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Count())

	r.Register("echo", HandlerFunc(func(_ context.Context, req *Request) (any, error) {
		return req.Inputs, nil
	}))
	assert.Equal(t, 1, r.Count())
	assert.True(t, r.Has("echo"))

	b, err := r.Resolve("echo")
	require.NoError(t, err)
	assert.Equal(t, BindingLocal, b.Kind)
	assert.True(t, b.Cacheable)

	_, err = r.Resolve("unknown")
	assert.ErrorIs(t, err, ErrUnknownType)

	r.Unregister("echo")
	assert.False(t, r.Has("echo"))
}

func TestRegistry_RemoteFallback(t *testing.T) {
	r := NewRegistry()
	remote := NewRemote("http://localhost:1/execute")
	r.SetRemote(remote)
	r.MarkNonCacheable("llm")

	b, err := r.Resolve("custom")
	require.NoError(t, err)
	assert.Equal(t, BindingRemote, b.Kind)
	assert.True(t, b.Cacheable)
	assert.Same(t, remote, b.Handler)

	b, err = r.Resolve("llm")
	require.NoError(t, err)
	assert.False(t, b.Cacheable)
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	assert.Equal(t, []string{"combine", "delay", "http", "input", "output", "random", "timestamp", "transform"}, r.Types())

	for _, typ := range []string{TypeDelay, TypeHTTP, TypeRandom, TypeTimestamp} {
		b, err := r.Resolve(typ)
		require.NoError(t, err)
		assert.False(t, b.Cacheable, typ)
	}
	for _, typ := range []string{TypeInput, TypeTransform, TypeCombine, TypeOutput} {
		b, err := r.Resolve(typ)
		require.NoError(t, err)
		assert.True(t, b.Cacheable, typ)
	}
}

// Builtin Tests

func TestInputNode(t *testing.T) {
	n := NewInputNode()
	ctx := context.Background()

	out, err := n.Process(ctx, NewRequest("a", TypeInput, map[string]any{"value": 10}, nil, ""))
	require.NoError(t, err)
	assert.Equal(t, 10, out)

	out, err = n.Process(ctx, NewRequest("a", TypeInput,
		map[string]any{"key": "x", "value": 1}, map[string]any{"x": 7.0}, ""))
	require.NoError(t, err)
	assert.Equal(t, 7.0, out)

	_, err = n.Process(ctx, NewRequest("a", TypeInput, nil, nil, ""))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTransformNode(t *testing.T) {
	n := NewTransformNode()
	ctx := context.Background()

	tests := []struct {
		name    string
		data    map[string]any
		inputs  map[string]any
		want    any
		wantErr error
	}{
		{"multiply", map[string]any{"operation": "multiply", "operand": 2}, map[string]any{"a": 10}, 20.0, nil},
		{"add", map[string]any{"operation": "add", "operand": 5}, map[string]any{"a": 1.5}, 6.5, nil},
		{"square", map[string]any{"operation": "square"}, map[string]any{"a": 10}, 100.0, nil},
		{"identity", map[string]any{}, map[string]any{"a": 3}, 3.0, nil},
		{"explicit input", map[string]any{"operation": "double", "input": "b"}, map[string]any{"a": 1, "b": 4}, 8.0, nil},
		{"first sorted key", map[string]any{"operation": "negate"}, map[string]any{"z": 1, "b": 4}, -4.0, nil},
		{"divide by zero", map[string]any{"operation": "divide", "operand": 0}, map[string]any{"a": 1}, nil, ErrInvalidConfig},
		{"no numeric input", map[string]any{"operation": "double"}, map[string]any{"a": "x"}, nil, ErrInvalidInput},
		{"unknown op", map[string]any{"operation": "pow"}, map[string]any{"a": 1}, nil, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := n.Process(ctx, NewRequest("t", TypeTransform, tt.data, tt.inputs, ""))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCombineNode(t *testing.T) {
	n := NewCombineNode()
	ctx := context.Background()
	inputs := map[string]any{"b": 25.0, "a": 10.0}

	out, err := n.Process(ctx, NewRequest("c", TypeCombine, nil, inputs, ""))
	require.NoError(t, err)
	assert.Equal(t, 35.0, out)

	out, err = n.Process(ctx, NewRequest("c", TypeCombine, map[string]any{"operation": "product"}, inputs, ""))
	require.NoError(t, err)
	assert.Equal(t, 250.0, out)

	out, err = n.Process(ctx, NewRequest("c", TypeCombine,
		map[string]any{"operation": "concat", "separator": "-"}, map[string]any{"b": "y", "a": "x"}, ""))
	require.NoError(t, err)
	assert.Equal(t, "x-y", out)

	out, err = n.Process(ctx, NewRequest("c", TypeCombine, map[string]any{"operation": "list"}, inputs, ""))
	require.NoError(t, err)
	assert.Equal(t, []any{10.0, 25.0}, out)

	out, err = n.Process(ctx, NewRequest("c", TypeCombine, map[string]any{"operation": "merge"},
		map[string]any{"a": map[string]any{"k": 1}, "b": 2}, ""))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": 1, "b": 2}, out)
}

func TestOutputNode(t *testing.T) {
	n := NewOutputNode()
	ctx := context.Background()

	out, err := n.Process(ctx, NewRequest("o", TypeOutput, nil, map[string]any{"x": 20.0}, ""))
	require.NoError(t, err)
	assert.Equal(t, 20.0, out)

	out, err = n.Process(ctx, NewRequest("o", TypeOutput, nil, map[string]any{"x": 1, "y": 2}, ""))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1, "y": 2}, out)

	out, err = n.Process(ctx, NewRequest("o", TypeOutput, map[string]any{"key": "y"}, map[string]any{"x": 1, "y": 2}, ""))
	require.NoError(t, err)
	assert.Equal(t, 2, out)
}

func TestDelayNode(t *testing.T) {
	n := NewDelayNode()

	start := time.Now()
	out, err := n.Process(context.Background(),
		NewRequest("d", TypeDelay, map[string]any{"duration_ms": 20}, map[string]any{"a": 5}, ""))
	require.NoError(t, err)
	assert.Equal(t, 5, out)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestDelayNode_Cancelled(t *testing.T) {
	n := NewDelayNode()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := n.Process(ctx, NewRequest("d", TypeDelay, map[string]any{"duration_sec": 10}, nil, ""))
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestRandomNode(t *testing.T) {
	n := NewRandomNode()

	for i := 0; i < 50; i++ {
		out, err := n.Process(context.Background(),
			NewRequest("r", TypeRandom, map[string]any{"min": 5, "max": 6}, nil, ""))
		require.NoError(t, err)
		f, ok := out.(float64)
		require.True(t, ok)
		assert.GreaterOrEqual(t, f, 5.0)
		assert.LessOrEqual(t, f, 6.0)
	}

	_, err := n.Process(context.Background(),
		NewRequest("r", TypeRandom, map[string]any{"min": 2, "max": 1}, nil, ""))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRandomNode_Precision(t *testing.T) {
	n := NewRandomNode()

	for i := 0; i < 20; i++ {
		out, err := n.Process(context.Background(),
			NewRequest("r", TypeRandom, map[string]any{"min": 0, "max": 10, "precision": 2}, nil, ""))
		require.NoError(t, err)
		f := out.(float64)
		assert.InDelta(t, math.Round(f*100), f*100, 1e-6)
	}

	assert.Equal(t, 1.23, round(1.23456, 2))
	assert.Equal(t, 2.0, round(1.5, 0))
	assert.Equal(t, 1.23456, round(1.23456, -1))
}

func TestTimestampNode(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	n := &TimestampNode{now: func() time.Time { return fixed }}

	out, err := n.Process(context.Background(), NewRequest("ts", TypeTimestamp, map[string]any{"format": "unix"}, nil, ""))
	require.NoError(t, err)
	assert.Equal(t, fixed.Unix(), out)

	out, err = n.Process(context.Background(), NewRequest("ts", TypeTimestamp, nil, nil, ""))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T03:04:05Z", out)
}

// HTTP Tests

func TestHTTPNode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"echo": body["a"]})
	}))
	defer server.Close()

	out, err := NewHTTPNode().Process(context.Background(), NewRequest("h", TypeHTTP,
		map[string]any{"method": "post", "url": server.URL, "body_from_inputs": true},
		map[string]any{"a": 1.0}, ""))
	require.NoError(t, err)

	result := out.(map[string]any)
	assert.Equal(t, http.StatusOK, result["status_code"])
	assert.Equal(t, map[string]any{"echo": 1.0}, result["body"])
}

func TestHTTPNode_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewHTTPNode().Process(context.Background(),
		NewRequest("h", TypeHTTP, map[string]any{"url": server.URL}, nil, ""))

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
}

func TestHTTPNode_MissingURL(t *testing.T) {
	_, err := NewHTTPNode().Process(context.Background(), NewRequest("h", TypeHTTP, nil, nil, ""))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// Remote Tests

func TestRemote_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RemoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "n1", req.NodeID)
		assert.Equal(t, "custom", req.NodeType)
		assert.Equal(t, "exec-1", req.ExecutionID)

		_ = json.NewEncoder(w).Encode(RemoteResponse{Output: req.Inputs["x"]})
	}))
	defer server.Close()

	out, err := NewRemote(server.URL).Process(context.Background(),
		NewRequest("n1", "custom", map[string]any{"k": "v"}, map[string]any{"x": 42.0}, "exec-1"))
	require.NoError(t, err)
	assert.Equal(t, 42.0, out)
}

func TestRemote_ErrorField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(RemoteResponse{Error: "model unavailable"})
	}))
	defer server.Close()

	_, err := NewRemote(server.URL).Process(context.Background(), NewRequest("n1", "custom", nil, nil, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestRemote_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	_, err := NewRemote(server.URL).Process(context.Background(), NewRequest("n1", "custom", nil, nil, ""))
	assert.ErrorIs(t, err, ErrRemoteCall)
	assert.Contains(t, err.Error(), "502")
}

func TestToFloat(t *testing.T) {
	f, ok := ToFloat(json.Number("1.5"))
	assert.True(t, ok)
	assert.Equal(t, 1.5, f)

	_, ok = ToFloat("1.5")
	assert.False(t, ok)
}
