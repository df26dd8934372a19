package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/nodes"
)

func workflow(nodeIDs []string, edges ...[2]string) *domain.WorkflowSpec {
	spec := &domain.WorkflowSpec{}
	for _, id := range nodeIDs {
		spec.Nodes = append(spec.Nodes, domain.NodeSpec{ID: id, Type: "transform"})
	}
	for _, e := range edges {
		spec.Connections = append(spec.Connections, domain.ConnectionSpec{SourceID: e[0], TargetID: e[1]})
	}
	return spec
}

func TestBuild_Chain(t *testing.T) {
	g, err := Build(workflow([]string{"A", "B", "C"}, [2]string{"A", "B"}, [2]string{"B", "C"}), BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, g.Size())
	assert.Equal(t, [][]string{{"A"}, {"B"}, {"C"}}, g.Levels())
	assert.Equal(t, []string{"A"}, g.Roots)
	assert.Equal(t, []string{"C"}, g.Leaves)
	assert.Equal(t, []string{"A"}, g.Node("B").DependencyIDs())
	assert.Equal(t, []string{"C"}, g.Node("B").DependentIDs())
	assert.Equal(t, domain.NodeStatusPending, g.Node("A").Status)
}

func TestBuild_Diamond(t *testing.T) {
	// A → B → D
	// A → C → D
	g, err := Build(workflow([]string{"A", "B", "C", "D"},
		[2]string{"A", "B"}, [2]string{"A", "C"}, [2]string{"B", "D"}, [2]string{"C", "D"}), BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"A"}, {"B", "C"}, {"D"}}, g.Levels())
	assert.Equal(t, 2, g.Node("D").Level)
	assert.Len(t, g.Incoming("D"), 2)
}

func TestBuild_LevelIsLongestPath(t *testing.T) {
	// A → B → C, A → C: C на уровне 2, а не 1
	g, err := Build(workflow([]string{"A", "B", "C"},
		[2]string{"A", "B"}, [2]string{"B", "C"}, [2]string{"A", "C"}), BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, g.Node("C").Level)
	for id, node := range g.Nodes {
		for dep := range node.Dependencies {
			assert.Greater(t, node.Level, g.Node(dep).Level, "node %s", id)
		}
	}
}

func TestBuild_Wide(t *testing.T) {
	ids := []string{"n1", "n2", "n3", "n4", "n5"}
	g, err := Build(workflow(ids), BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, [][]string{ids}, g.Levels())
	assert.Equal(t, ids, g.Roots)
	assert.Equal(t, ids, g.Leaves)
}

func TestBuild_Empty(t *testing.T) {
	g, err := Build(&domain.WorkflowSpec{}, BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, g.Size())
	assert.Empty(t, g.Levels())
}

func TestBuild_Cycle(t *testing.T) {
	_, err := Build(workflow([]string{"node1", "node2", "node3"},
		[2]string{"node1", "node2"}, [2]string{"node2", "node3"}, [2]string{"node3", "node1"}), BuildOptions{})
	require.Error(t, err)

	var cycleErr *CircularDependencyError
	require.True(t, errors.As(err, &cycleErr))
	assert.Contains(t, []string{"node1", "node2", "node3"}, cycleErr.NodeID)
	assert.ErrorIs(t, err, ErrCircularDependency)
}

func TestBuild_SelfLoop(t *testing.T) {
	_, err := Build(workflow([]string{"A"}, [2]string{"A", "A"}), BuildOptions{})
	assert.ErrorIs(t, err, ErrCircularDependency)
}

func TestBuild_DuplicateEdgeIgnored(t *testing.T) {
	g, err := Build(workflow([]string{"A", "B"}, [2]string{"A", "B"}, [2]string{"A", "B"}), BuildOptions{})
	require.NoError(t, err)

	assert.Len(t, g.Edges["A"], 1)
	assert.Len(t, g.Incoming("B"), 1)
}

func TestBuild_SocketEdgesKept(t *testing.T) {
	spec := workflow([]string{"A", "B"})
	spec.Connections = []domain.ConnectionSpec{
		{SourceID: "A", TargetID: "B", SourceSocket: "x", TargetSocket: "left"},
		{SourceID: "A", TargetID: "B", SourceSocket: "y", TargetSocket: "right"},
	}

	g, err := Build(spec, BuildOptions{})
	require.NoError(t, err)

	incoming := g.Incoming("B")
	require.Len(t, incoming, 2)
	assert.Equal(t, "left", incoming[0].TargetSocket)
	assert.Equal(t, "right", incoming[1].TargetSocket)
	assert.Len(t, g.Node("B").Dependencies, 1)
}

func TestBuild_DanglingConnection(t *testing.T) {
	_, err := Build(workflow([]string{"A"}, [2]string{"A", "missing"}), BuildOptions{})

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.ErrorIs(t, err, ErrUnknownNode)
	assert.Equal(t, "targetId", vErr.Field)
}

func TestBuild_StartNode(t *testing.T) {
	// A → B → D, C → D, D → E
	spec := workflow([]string{"A", "B", "C", "D", "E"},
		[2]string{"A", "B"}, [2]string{"B", "D"}, [2]string{"C", "D"}, [2]string{"D", "E"})

	g, err := Build(spec, BuildOptions{StartNodeID: "B"})
	require.NoError(t, err)

	assert.Equal(t, 3, g.Size())
	assert.Nil(t, g.Node("A"))
	assert.Nil(t, g.Node("C"))
	assert.Equal(t, [][]string{{"B"}, {"D"}, {"E"}}, g.Levels())
	assert.Equal(t, []string{"B"}, g.Roots)
	assert.Equal(t, []string{"E"}, g.Leaves)
	assert.Equal(t, []string{"B"}, g.Node("D").DependencyIDs())
	assert.Len(t, g.Incoming("D"), 1)
	assert.Empty(t, g.Edges["C"])
}

func TestBuild_UnknownStartNode(t *testing.T) {
	_, err := Build(workflow([]string{"A"}), BuildOptions{StartNodeID: "Z"})
	assert.ErrorIs(t, err, ErrUnknownStartNode)
}

func TestBuild_ResolvesBindings(t *testing.T) {
	spec := &domain.WorkflowSpec{Nodes: []domain.NodeSpec{
		{ID: "a", Type: nodes.TypeInput},
		{ID: "r", Type: nodes.TypeRandom},
	}}

	g, err := Build(spec, BuildOptions{Registry: nodes.DefaultRegistry()})
	require.NoError(t, err)

	assert.Equal(t, nodes.BindingLocal, g.Node("a").Binding.Kind)
	assert.True(t, g.Node("a").Binding.Cacheable)
	assert.False(t, g.Node("r").Binding.Cacheable)
}

func TestBuild_UnknownNodeType(t *testing.T) {
	spec := &domain.WorkflowSpec{Nodes: []domain.NodeSpec{{ID: "a", Type: "llm"}}}

	_, err := Build(spec, BuildOptions{Registry: nodes.DefaultRegistry()})
	assert.ErrorIs(t, err, ErrUnknownNodeType)

	reg := nodes.DefaultRegistry()
	reg.SetRemote(nodes.NewRemote("http://localhost:1"))
	g, err := Build(spec, BuildOptions{Registry: reg})
	require.NoError(t, err)
	assert.Equal(t, nodes.BindingRemote, g.Node("a").Binding.Kind)
}
