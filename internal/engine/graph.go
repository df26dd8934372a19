package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/nodes"
)

// GraphNode — узел графа выполнения.
//
// GraphNode создаётся на каждый Execute и не разделяется между run'ами.
// Поля статуса и результата пишет только горутина, выполняющая узел.
type GraphNode struct {
	// Spec — определение узла из WorkflowSpec.
	Spec *domain.NodeSpec

	// ID — идентификатор узла.
	ID string

	// Dependencies — ID узлов, от которых зависит этот узел.
	Dependencies map[string]struct{}

	// Dependents — ID узлов, которые зависят от этого узла.
	Dependents map[string]struct{}

	// Level — 0 для узлов без зависимостей, иначе 1 + max(level зависимостей).
	Level int

	// Binding — обработчик, разрешённый при построении графа.
	Binding nodes.Binding

	Status    domain.NodeStatus
	Result    any
	Err       error
	FromCache bool
	StartTime time.Time
	EndTime   time.Time
}

// DependencyIDs возвращает отсортированные ID зависимостей.
func (n *GraphNode) DependencyIDs() []string {
	return sortedSet(n.Dependencies)
}

// DependentIDs возвращает отсортированные ID зависимых узлов.
func (n *GraphNode) DependentIDs() []string {
	return sortedSet(n.Dependents)
}

// Edge — направленное ребро данных.
type Edge struct {
	Source       string
	Target       string
	SourceSocket string
	TargetSocket string
}

// Graph — граф выполнения workflow.
type Graph struct {
	// Nodes — все узлы графа (nodeID → GraphNode).
	Nodes map[string]*GraphNode

	// Edges — исходящие рёбра (sourceID → рёбра).
	Edges map[string][]Edge

	// Roots — узлы без зависимостей, отсортированы по ID.
	Roots []string

	// Leaves — узлы без зависимых, отсортированы по ID.
	Leaves []string
}

// BuildOptions — параметры построения графа.
type BuildOptions struct {
	// StartNodeID — если задан, граф ограничивается этим узлом
	// и всеми узлами, достижимыми из него.
	StartNodeID string

	// Registry — реестр обработчиков. Если задан, тип каждого узла
	// разрешается в Binding; неизвестный тип — ошибка валидации.
	Registry *nodes.Registry
}

// Build строит граф из WorkflowSpec.
//
// Этапы:
//  1. Валидация спецификации и соединений
//  2. Создание узлов и рёбер
//  3. Вычисление уровней (DFS с мемоизацией), обнаружение циклов
//  4. Фильтрация по стартовому узлу
func Build(spec *domain.WorkflowSpec, opts BuildOptions) (*Graph, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}

	g := &Graph{
		Nodes: make(map[string]*GraphNode, len(spec.Nodes)),
		Edges: make(map[string][]Edge),
	}

	for i := range spec.Nodes {
		ns := &spec.Nodes[i]
		node := &GraphNode{
			Spec:         ns,
			ID:           ns.ID,
			Dependencies: make(map[string]struct{}),
			Dependents:   make(map[string]struct{}),
			Status:       domain.NodeStatusPending,
		}

		if opts.Registry != nil {
			binding, err := opts.Registry.Resolve(ns.Type)
			if err != nil {
				return nil, NewValidationError(ns.ID, "type",
					fmt.Sprintf("unknown node type: %s", ns.Type), ErrUnknownNodeType)
			}
			node.Binding = binding
		}

		g.Nodes[ns.ID] = node
	}

	for _, conn := range spec.Connections {
		g.addEdge(Edge{
			Source:       conn.SourceID,
			Target:       conn.TargetID,
			SourceSocket: conn.SourceSocket,
			TargetSocket: conn.TargetSocket,
		})
	}

	if err := g.computeLevels(); err != nil {
		return nil, err
	}
	g.findRootsAndLeaves()

	if opts.StartNodeID != "" {
		if _, ok := g.Nodes[opts.StartNodeID]; !ok {
			return nil, NewValidationError(opts.StartNodeID, "startNodeId",
				fmt.Sprintf("start node not found: %s", opts.StartNodeID), ErrUnknownStartNode)
		}
		return g.filterFrom(opts.StartNodeID)
	}

	return g, nil
}

// addEdge добавляет ребро. Точные дубликаты игнорируются.
func (g *Graph) addEdge(e Edge) {
	for _, existing := range g.Edges[e.Source] {
		if existing == e {
			return
		}
	}

	g.Nodes[e.Target].Dependencies[e.Source] = struct{}{}
	g.Nodes[e.Source].Dependents[e.Target] = struct{}{}
	g.Edges[e.Source] = append(g.Edges[e.Source], e)
}

// computeLevels вычисляет уровни узлов DFS с мемоизацией.
// Повторный вход в узел, который ещё вычисляется, означает цикл.
func (g *Graph) computeLevels() error {
	const (
		unvisited = iota
		calculating
		done
	)

	state := make(map[string]int, len(g.Nodes))

	var visit func(id string) (int, error)
	visit = func(id string) (int, error) {
		switch state[id] {
		case done:
			return g.Nodes[id].Level, nil
		case calculating:
			return 0, &CircularDependencyError{NodeID: id}
		}

		state[id] = calculating
		node := g.Nodes[id]

		level := 0
		for _, dep := range node.DependencyIDs() {
			depLevel, err := visit(dep)
			if err != nil {
				return 0, err
			}
			if depLevel+1 > level {
				level = depLevel + 1
			}
		}

		node.Level = level
		state[id] = done
		return level, nil
	}

	for _, id := range g.sortedIDs() {
		if _, err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// findRootsAndLeaves находит узлы без входящих и без исходящих рёбер.
func (g *Graph) findRootsAndLeaves() {
	g.Roots = make([]string, 0)
	g.Leaves = make([]string, 0)

	for _, id := range g.sortedIDs() {
		node := g.Nodes[id]
		if len(node.Dependencies) == 0 {
			g.Roots = append(g.Roots, id)
		}
		if len(node.Dependents) == 0 {
			g.Leaves = append(g.Leaves, id)
		}
	}
}

// filterFrom возвращает подграф из startID и всех достижимых из него узлов.
func (g *Graph) filterFrom(startID string) (*Graph, error) {
	reachable := map[string]struct{}{startID: {}}
	queue := []string{startID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dep := range g.Nodes[id].DependentIDs() {
			if _, seen := reachable[dep]; !seen {
				reachable[dep] = struct{}{}
				queue = append(queue, dep)
			}
		}
	}

	filtered := &Graph{
		Nodes: make(map[string]*GraphNode, len(reachable)),
		Edges: make(map[string][]Edge),
	}

	for id := range reachable {
		orig := g.Nodes[id]
		filtered.Nodes[id] = &GraphNode{
			Spec:         orig.Spec,
			ID:           id,
			Dependencies: restrict(orig.Dependencies, reachable),
			Dependents:   restrict(orig.Dependents, reachable),
			Binding:      orig.Binding,
			Status:       domain.NodeStatusPending,
		}
	}

	for src, edges := range g.Edges {
		if _, ok := reachable[src]; !ok {
			continue
		}
		for _, e := range edges {
			if _, ok := reachable[e.Target]; ok {
				filtered.Edges[src] = append(filtered.Edges[src], e)
			}
		}
	}

	if err := filtered.computeLevels(); err != nil {
		return nil, err
	}
	filtered.findRootsAndLeaves()

	return filtered, nil
}

// Levels возвращает ID узлов, сгруппированные по уровню (по возрастанию),
// внутри уровня — отсортированные.
func (g *Graph) Levels() [][]string {
	maxLevel := -1
	for _, node := range g.Nodes {
		if node.Level > maxLevel {
			maxLevel = node.Level
		}
	}

	levels := make([][]string, maxLevel+1)
	for _, id := range g.sortedIDs() {
		lvl := g.Nodes[id].Level
		levels[lvl] = append(levels[lvl], id)
	}
	return levels
}

// Incoming возвращает входящие рёбра узла, отсортированные по источнику.
func (g *Graph) Incoming(id string) []Edge {
	node, ok := g.Nodes[id]
	if !ok {
		return nil
	}

	incoming := make([]Edge, 0, len(node.Dependencies))
	for _, src := range node.DependencyIDs() {
		for _, e := range g.Edges[src] {
			if e.Target == id {
				incoming = append(incoming, e)
			}
		}
	}
	return incoming
}

// Node возвращает узел по ID.
func (g *Graph) Node(id string) *GraphNode {
	return g.Nodes[id]
}

// Size возвращает количество узлов в графе.
func (g *Graph) Size() int {
	return len(g.Nodes)
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func restrict(set, allowed map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	for id := range set {
		if _, ok := allowed[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func sortedSet(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
