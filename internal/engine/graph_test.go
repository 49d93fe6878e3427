package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/steps"
)

func TestNewGraph_Chain(t *testing.T) {
	g, err := NewGraph(linearWorkflow(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Проверяем количество узлов
	if g.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.Size())
	}

	// Проверяем точки входа
	triggers := g.Triggers()
	if len(triggers) != 1 || triggers[0].ID != "step0" {
		t.Errorf("expected trigger step0, got %v", triggers)
	}

	// Проверяем связи
	if out := g.Outgoing("step0"); len(out) != 1 || out[0].Target != "step1" {
		t.Errorf("unexpected outgoing edges: %v", out)
	}
	if in := g.Incoming("step2"); len(in) != 1 || in[0].Source != "step1" {
		t.Errorf("unexpected incoming edges: %v", in)
	}

	if !g.Reaches("step0", "step2") {
		t.Error("step2 should be reachable from step0")
	}
	if g.Reaches("step2", "step0") {
		t.Error("step0 should not be reachable from step2")
	}
	if g.FindCycle() != nil {
		t.Error("chain has no cycles")
	}
}

func TestNewGraph_StructuralErrors(t *testing.T) {
	_, err := NewGraph(nil)
	if !errors.Is(err, ErrNilWorkflow) {
		t.Errorf("expected ErrNilWorkflow, got %v", err)
	}

	_, err = NewGraph(&domain.Workflow{Nodes: []domain.Node{trigger("")}})
	if !errors.Is(err, ErrEmptyNodeID) {
		t.Errorf("expected ErrEmptyNodeID, got %v", err)
	}

	_, err = NewGraph(&domain.Workflow{Nodes: []domain.Node{trigger("a"), trigger("a")}})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if !errors.Is(vErr, ErrDuplicateNodeID) || vErr.NodeID != "a" {
		t.Errorf("unexpected error: %+v", vErr)
	}
}

func TestNewGraph_SkipsMalformedEdges(t *testing.T) {
	wf := &domain.Workflow{
		Nodes: []domain.Node{trigger("a"), action("b", domain.SubtypeDelay, nil)},
		Edges: []domain.Edge{
			edge("a", "b"),
			{ID: "self", Source: "b", Target: "b"},
			{ID: "from-ghost", Source: "ghost", Target: "b"},
			{ID: "to-ghost", Source: "a", Target: "ghost"},
		},
	}

	g, err := NewGraph(wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(g.Warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %d", len(g.Warnings))
	}
	if !errors.Is(g.Warnings[0].Err, ErrSelfLoop) {
		t.Errorf("expected self-loop warning first, got %v", g.Warnings[0].Err)
	}
	if !errors.Is(g.Warnings[1].Err, ErrDanglingEdge) || !errors.Is(g.Warnings[2].Err, ErrDanglingEdge) {
		t.Error("expected dangling edge warnings")
	}

	// В графе осталась только корректная связь
	if len(g.Incoming("b")) != 1 || len(g.Outgoing("a")) != 1 {
		t.Error("malformed edges should not be linked")
	}
}

func TestGraph_TriggersIgnoreNodesWithIncomingEdges(t *testing.T) {
	wf := &domain.Workflow{
		Nodes: []domain.Node{
			trigger("a"),
			trigger("b"),
			{ID: "hook", Category: domain.CategoryTrigger, Subtype: domain.SubtypeWebhook},
			action("x", domain.SubtypeDelay, nil),
		},
		Edges: []domain.Edge{edge("a", "b"), edge("b", "x")},
	}

	g, _ := NewGraph(wf)
	triggers := g.Triggers()

	// b — триггер, но у него есть входящая связь; x — не триггер
	if len(triggers) != 2 || triggers[0].ID != "a" || triggers[1].ID != "hook" {
		t.Errorf("unexpected triggers: %v", triggers)
	}
}

func TestGraph_FindCycle(t *testing.T) {
	wf := &domain.Workflow{
		Nodes: []domain.Node{
			trigger("t"),
			action("a", domain.SubtypeDelay, nil),
			action("b", domain.SubtypeDelay, nil),
			action("c", domain.SubtypeDelay, nil),
		},
		Edges: []domain.Edge{edge("t", "a"), edge("a", "b"), edge("b", "c"), edge("c", "a")},
	}

	g, _ := NewGraph(wf)
	cycle := g.FindCycle()

	if strings.Join(cycle, ",") != "a,b,c,a" {
		t.Errorf("expected a,b,c,a, got %v", cycle)
	}
}

// Parser Tests

func TestParseWorkflow(t *testing.T) {
	data := []byte(`{
		"id": "wf-1",
		"name": "orders",
		"is_active": true,
		"nodes": [
			{"id": "start", "category": "trigger", "subtype": "manual"},
			{"id": "check", "category": "logic", "subtype": "if",
			 "config": {"field": "total", "operator": "greaterThan", "value": 100}}
		],
		"edges": [{"id": "e1", "source": "start", "target": "check"}]
	}`)

	wf, err := ParseWorkflow(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if wf.ID != "wf-1" || !wf.IsActive || len(wf.Nodes) != 2 || len(wf.Edges) != 1 {
		t.Errorf("unexpected workflow: %+v", wf)
	}
	if wf.Nodes[0].Config == nil {
		t.Error("missing config should become empty map")
	}
	if wf.Nodes[1].Kind().String() != "logic/if" {
		t.Errorf("unexpected kind: %s", wf.Nodes[1].Kind())
	}
}

func TestParseWorkflow_Invalid(t *testing.T) {
	for _, data := range []string{"", "   ", "{not json", `{"nodes": "x"}`} {
		if _, err := ParseWorkflow([]byte(data)); !errors.Is(err, ErrInvalidWorkflow) {
			t.Errorf("%q: expected ErrInvalidWorkflow, got %v", data, err)
		}
	}
}

func TestValidateWorkflow_Valid(t *testing.T) {
	reg := steps.DefaultRegistry(steps.Options{})
	wf := &domain.Workflow{
		Nodes: []domain.Node{
			trigger("start"),
			action("wait", domain.SubtypeDelay, map[string]any{"duration_ms": 10}),
			// Шаблоны проверяются только во время run
			action("call", domain.SubtypeHTTP, map[string]any{"url": "{{ .Vars.endpoint }}"}),
		},
		Edges: []domain.Edge{edge("start", "wait"), edge("wait", "call")},
	}

	if errs := ValidateWorkflow(wf, reg); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidateWorkflow_CollectsErrors(t *testing.T) {
	reg := steps.DefaultRegistry(steps.Options{})
	wf := &domain.Workflow{
		Nodes: []domain.Node{
			action("a", domain.SubtypeDelay, map[string]any{}),
			{ID: "b", Category: domain.CategoryTrigger, Subtype: domain.SubtypeHTTP},
			action("a", domain.SubtypeDelay, nil),
		},
		Edges: []domain.Edge{
			{ID: "loop", Source: "a", Target: "a"},
			{ID: "dangling", Source: "a", Target: "ghost"},
		},
	}

	errs := ValidateWorkflow(wf, reg)

	want := []error{ErrInvalidNodeConfig, ErrUnknownKind, ErrDuplicateNodeID, ErrSelfLoop, ErrDanglingEdge}
	for _, target := range want {
		found := false
		for _, err := range errs {
			if errors.Is(err, target) {
				found = true
			}
		}
		if !found {
			t.Errorf("expected %v in %v", target, errs)
		}
	}
}

func TestValidateWorkflow_Cycle(t *testing.T) {
	wf := &domain.Workflow{
		Nodes: []domain.Node{
			trigger("t"),
			action("a", domain.SubtypeTransform, nil),
			action("b", domain.SubtypeTransform, nil),
		},
		Edges: []domain.Edge{edge("t", "a"), edge("a", "b"), edge("b", "a")},
	}

	errs := ValidateWorkflow(wf, steps.DefaultRegistry(steps.Options{}))
	if len(errs) != 1 || !errors.Is(errs[0], ErrCycle) {
		t.Fatalf("expected single cycle error, got %v", errs)
	}
	if !strings.Contains(errs[0].Error(), "a -> b -> a") {
		t.Errorf("unexpected message: %v", errs[0])
	}
}

func TestValidateWorkflow_Empty(t *testing.T) {
	if errs := ValidateWorkflow(nil, nil); len(errs) != 1 || !errors.Is(errs[0], ErrNilWorkflow) {
		t.Errorf("unexpected errors: %v", errs)
	}
	if errs := ValidateWorkflow(&domain.Workflow{}, nil); len(errs) != 1 || !errors.Is(errs[0], ErrNoNodes) {
		t.Errorf("unexpected errors: %v", errs)
	}

	// Без триггеров
	wf := &domain.Workflow{Nodes: []domain.Node{action("a", domain.SubtypeTransform, nil)}}
	if errs := ValidateWorkflow(wf, nil); len(errs) != 1 || !errors.Is(errs[0], ErrNoTriggers) {
		t.Errorf("unexpected errors: %v", errs)
	}
}
