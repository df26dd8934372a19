package invoker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/nodes"
)

func graphNode(id string, timeoutMs int, h nodes.Handler) *engine.GraphNode {
	return &engine.GraphNode{
		ID:   id,
		Spec: &domain.NodeSpec{ID: id, Type: "test", TimeoutMs: timeoutMs},
		Binding: nodes.Binding{
			Kind:      nodes.BindingLocal,
			Type:      "test",
			Handler:   h,
			Cacheable: true,
		},
	}
}

func TestInvoke_Success(t *testing.T) {
	inv := New(Config{})
	node := graphNode("n1", 0, nodes.HandlerFunc(func(_ context.Context, req *nodes.Request) (any, error) {
		assert.Equal(t, "exec-1", req.ExecutionID)
		return req.Inputs["x"], nil
	}))

	out, err := inv.Invoke(context.Background(), node, map[string]any{"x": 7}, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, 7, out)
}

func TestInvoke_Timeout(t *testing.T) {
	inv := New(Config{})

	var cancelled atomic.Bool
	node := graphNode("slow", 100, nodes.HandlerFunc(func(ctx context.Context, _ *nodes.Request) (any, error) {
		select {
		case <-time.After(10 * time.Second):
			return "late", nil
		case <-ctx.Done():
			cancelled.Store(true)
			return nil, ctx.Err()
		}
	}))

	start := time.Now()
	_, err := inv.Invoke(context.Background(), node, nil, "")
	elapsed := time.Since(start)

	var timeoutErr *engine.TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, "slow", timeoutErr.NodeID)
	assert.Equal(t, 100*time.Millisecond, timeoutErr.Timeout)
	assert.ErrorIs(t, err, engine.ErrNodeTimeout)
	assert.Less(t, elapsed, 2*time.Second)

	assert.Eventually(t, cancelled.Load, time.Second, 5*time.Millisecond,
		"handler context is cancelled on timeout")
}

func TestInvoke_TimeoutIgnoringContext(t *testing.T) {
	inv := New(Config{DefaultTimeout: 50 * time.Millisecond})
	node := graphNode("stubborn", 0, nodes.HandlerFunc(func(context.Context, *nodes.Request) (any, error) {
		time.Sleep(300 * time.Millisecond)
		return "late", nil
	}))

	_, err := inv.Invoke(context.Background(), node, nil, "")
	assert.ErrorIs(t, err, engine.ErrNodeTimeout)
}

func TestInvoke_HandlerError(t *testing.T) {
	inv := New(Config{})
	cause := errors.New("boom")
	node := graphNode("bad", 0, nodes.HandlerFunc(func(context.Context, *nodes.Request) (any, error) {
		return nil, cause
	}))

	_, err := inv.Invoke(context.Background(), node, nil, "")

	var nodeErr *engine.NodeExecutionError
	require.True(t, errors.As(err, &nodeErr))
	assert.Equal(t, "bad", nodeErr.NodeID)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, engine.ErrNodeFailed)
}

func TestInvoke_Panic(t *testing.T) {
	inv := New(Config{})
	node := graphNode("panicky", 0, nodes.HandlerFunc(func(context.Context, *nodes.Request) (any, error) {
		panic("unexpected")
	}))

	_, err := inv.Invoke(context.Background(), node, nil, "")

	var nodeErr *engine.NodeExecutionError
	require.True(t, errors.As(err, &nodeErr))
	assert.Contains(t, nodeErr.Error(), "panic: unexpected")
	assert.NotEmpty(t, nodeErr.Stack)
}

func TestInvoke_DelegatesNotProcessed(t *testing.T) {
	remote := nodes.HandlerFunc(func(_ context.Context, req *nodes.Request) (any, error) {
		return "remote:" + req.NodeID, nil
	})
	inv := New(Config{Remote: remote})
	node := graphNode("n1", 0, nodes.HandlerFunc(func(context.Context, *nodes.Request) (any, error) {
		return nil, nodes.ErrNotProcessed
	}))

	out, err := inv.Invoke(context.Background(), node, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "remote:n1", out)

	_, err = New(Config{}).Invoke(context.Background(), node, nil, "")
	assert.ErrorIs(t, err, nodes.ErrNotProcessed)
}

func TestInvoke_RemoteSharesNodeDeadline(t *testing.T) {
	var remoteCancelled atomic.Bool
	remote := nodes.HandlerFunc(func(ctx context.Context, _ *nodes.Request) (any, error) {
		select {
		case <-time.After(80 * time.Millisecond):
			return "late", nil
		case <-ctx.Done():
			remoteCancelled.Store(true)
			return nil, ctx.Err()
		}
	})
	inv := New(Config{Remote: remote})
	node := graphNode("split", 100, nodes.HandlerFunc(func(context.Context, *nodes.Request) (any, error) {
		time.Sleep(80 * time.Millisecond)
		return nil, nodes.ErrNotProcessed
	}))

	start := time.Now()
	out, err := inv.Invoke(context.Background(), node, nil, "")
	elapsed := time.Since(start)

	assert.Nil(t, out)
	var timeoutErr *engine.TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, 100*time.Millisecond, timeoutErr.Timeout)
	assert.Less(t, elapsed, 150*time.Millisecond)
	assert.Eventually(t, remoteCancelled.Load, time.Second, 5*time.Millisecond)
}

func TestInvoke_NoRemoteAfterDeadline(t *testing.T) {
	var remoteCalled atomic.Bool
	remote := nodes.HandlerFunc(func(context.Context, *nodes.Request) (any, error) {
		remoteCalled.Store(true)
		return "remote", nil
	})
	inv := New(Config{Remote: remote})
	node := graphNode("overdue", 50, nodes.HandlerFunc(func(context.Context, *nodes.Request) (any, error) {
		time.Sleep(80 * time.Millisecond)
		return nil, nodes.ErrNotProcessed
	}))

	_, err := inv.Invoke(context.Background(), node, nil, "")
	assert.ErrorIs(t, err, engine.ErrNodeTimeout)
	assert.False(t, remoteCalled.Load())
}

func TestInvoke_ParentCancelled(t *testing.T) {
	inv := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	node := graphNode("n1", 0, nodes.HandlerFunc(func(ctx context.Context, _ *nodes.Request) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := inv.Invoke(ctx, node, nil, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, engine.ErrNodeTimeout)
}

func TestInvoke_NoHandler(t *testing.T) {
	node := graphNode("n1", 0, nil)

	_, err := New(Config{}).Invoke(context.Background(), node, nil, "")
	assert.ErrorIs(t, err, nodes.ErrUnknownType)
}
