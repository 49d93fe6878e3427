package engine

import (
	"fmt"

	"github.com/shaiso/flowgraph/internal/domain"
)

// GraphWarning — некорректная связь, которую граф пропустил.
type GraphWarning struct {
	EdgeID  string
	Message string
	Err     error
	Data    map[string]any
}

// Graph — граф шагов workflow, по которому идёт run.
//
// Строится один раз на старте run и дальше только читается.
// Self-loops и связи на несуществующие шаги в граф не попадают,
// вместо этого они собираются в Warnings.
type Graph struct {
	// nodes — шаги в порядке объявления.
	nodes []*domain.Node

	byID map[string]*domain.Node
	out  map[string][]domain.Edge
	in   map[string][]domain.Edge

	// Warnings — пропущенные связи.
	Warnings []GraphWarning
}

// NewGraph строит граф из workflow.
//
// Пустой или повторяющийся ID шага — структурная ошибка: по такому
// графу нельзя однозначно адресовать outputs.
func NewGraph(wf *domain.Workflow) (*Graph, error) {
	if wf == nil {
		return nil, ErrNilWorkflow
	}

	g := &Graph{
		nodes: make([]*domain.Node, 0, len(wf.Nodes)),
		byID:  make(map[string]*domain.Node, len(wf.Nodes)),
		out:   make(map[string][]domain.Edge),
		in:    make(map[string][]domain.Edge),
	}

	// Первый проход: шаги
	for i := range wf.Nodes {
		node := &wf.Nodes[i]
		if node.ID == "" {
			return nil, NewValidationError("", "id", fmt.Sprintf("node %d has empty ID", i), ErrEmptyNodeID)
		}
		if _, exists := g.byID[node.ID]; exists {
			return nil, NewValidationError(node.ID, "id",
				fmt.Sprintf("duplicate node ID: %s", node.ID), ErrDuplicateNodeID)
		}
		g.byID[node.ID] = node
		g.nodes = append(g.nodes, node)
	}

	// Второй проход: связи
	for _, edge := range wf.Edges {
		if w, ok := g.checkEdge(edge); !ok {
			g.Warnings = append(g.Warnings, w)
			continue
		}
		g.out[edge.Source] = append(g.out[edge.Source], edge)
		g.in[edge.Target] = append(g.in[edge.Target], edge)
	}

	return g, nil
}

// checkEdge проверяет, что связь можно добавить в граф.
func (g *Graph) checkEdge(edge domain.Edge) (GraphWarning, bool) {
	data := map[string]any{
		"edgeId": edge.ID,
		"source": edge.Source,
		"target": edge.Target,
	}

	if edge.IsSelfLoop() {
		return GraphWarning{
			EdgeID:  edge.ID,
			Message: fmt.Sprintf("skipping self-loop edge on node %s", edge.Source),
			Err:     ErrSelfLoop,
			Data:    data,
		}, false
	}
	if _, ok := g.byID[edge.Source]; !ok {
		return GraphWarning{
			EdgeID:  edge.ID,
			Message: fmt.Sprintf("skipping edge from unknown node %s", edge.Source),
			Err:     ErrDanglingEdge,
			Data:    data,
		}, false
	}
	if _, ok := g.byID[edge.Target]; !ok {
		return GraphWarning{
			EdgeID:  edge.ID,
			Message: fmt.Sprintf("skipping edge to unknown node %s", edge.Target),
			Err:     ErrDanglingEdge,
			Data:    data,
		}, false
	}
	return GraphWarning{}, true
}

// Node возвращает шаг по ID.
func (g *Graph) Node(id string) (*domain.Node, bool) {
	node, ok := g.byID[id]
	return node, ok
}

// Nodes возвращает шаги в порядке объявления.
func (g *Graph) Nodes() []*domain.Node {
	return g.nodes
}

// Size возвращает количество шагов.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// Outgoing возвращает исходящие связи шага в порядке объявления.
func (g *Graph) Outgoing(id string) []domain.Edge {
	return g.out[id]
}

// Incoming возвращает входящие связи шага.
func (g *Graph) Incoming(id string) []domain.Edge {
	return g.in[id]
}

// Triggers возвращает триггеры без входящих связей — точки входа run.
func (g *Graph) Triggers() []*domain.Node {
	var triggers []*domain.Node
	for _, node := range g.nodes {
		if node.Category == domain.CategoryTrigger && len(g.in[node.ID]) == 0 {
			triggers = append(triggers, node)
		}
	}
	return triggers
}

// Reaches проверяет, достижим ли to из from по связям графа.
func (g *Graph) Reaches(from, to string) bool {
	if from == to {
		return true
	}

	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, edge := range g.out[id] {
			if edge.Target == to {
				return true
			}
			if !seen[edge.Target] {
				seen[edge.Target] = true
				queue = append(queue, edge.Target)
			}
		}
	}
	return false
}

// FindCycle возвращает первый найденный цикл в виде пути
// [a, b, c, a] или nil, если граф ацикличен.
//
// Обход в глубину с раскраской вершин, шаги и связи берутся
// в порядке объявления, поэтому результат детерминирован.
func (g *Graph) FindCycle() []string {
	const (
		white = iota
		grey
		black
	)

	color := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		stack = append(stack, id)

		for _, edge := range g.out[id] {
			switch color[edge.Target] {
			case grey:
				// Нашли обратную связь: вырезаем цикл из стека
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == edge.Target {
						cycle = append(append([]string{}, stack[i:]...), edge.Target)
						return true
					}
				}
			case white:
				if visit(edge.Target) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, node := range g.nodes {
		if color[node.ID] == white && visit(node.ID) {
			return cycle
		}
	}
	return nil
}
