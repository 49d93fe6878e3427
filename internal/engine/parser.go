package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/steps"
)

// ParseWorkflow разбирает JSON документ workflow.
//
// Проверяется только синтаксис и наличие ID шагов. Полная проверка —
// ValidateWorkflow.
func ParseWorkflow(data []byte) (*domain.Workflow, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidWorkflow)
	}

	var wf domain.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}

	for i := range wf.Nodes {
		if wf.Nodes[i].Config == nil {
			wf.Nodes[i].Config = make(map[string]any)
		}
	}

	return &wf, nil
}

// ValidateWorkflow выполняет полную валидацию workflow и возвращает
// все найденные ошибки (пустой список — workflow валиден).
//
// Проверяет:
//   - наличие шагов, пустые и повторяющиеся ID
//   - допустимость пары (category, subtype) и наличие её в реестре
//   - конфигурацию шага валидатором из реестра
//   - связи на несуществующие шаги и self-loops
//   - наличие точки входа и отсутствие циклов
//
// Конфигурация с шаблонами ({{ ... }}) не проверяется: её значения
// известны только во время run.
func ValidateWorkflow(wf *domain.Workflow, registry *steps.Registry) []error {
	if wf == nil {
		return []error{ErrNilWorkflow}
	}
	if len(wf.Nodes) == 0 {
		return []error{ErrNoNodes}
	}

	var errs []error
	seen := make(map[string]bool, len(wf.Nodes))

	for i := range wf.Nodes {
		node := &wf.Nodes[i]

		if node.ID == "" {
			errs = append(errs, NewValidationError("", "id",
				fmt.Sprintf("node %d has empty ID", i), ErrEmptyNodeID))
			continue
		}
		if seen[node.ID] {
			errs = append(errs, NewValidationError(node.ID, "id",
				fmt.Sprintf("duplicate node ID: %s", node.ID), ErrDuplicateNodeID))
			continue
		}
		seen[node.ID] = true

		errs = append(errs, validateNode(node, registry)...)
	}

	// Связи
	for _, edge := range wf.Edges {
		switch {
		case edge.IsSelfLoop():
			errs = append(errs, NewValidationError(edge.Source, "edges",
				fmt.Sprintf("edge %s connects node to itself", edge.ID), ErrSelfLoop))
		case !seen[edge.Source]:
			errs = append(errs, NewValidationError("", "edges",
				fmt.Sprintf("edge %s references unknown source %s", edge.ID, edge.Source), ErrDanglingEdge))
		case !seen[edge.Target]:
			errs = append(errs, NewValidationError("", "edges",
				fmt.Sprintf("edge %s references unknown target %s", edge.ID, edge.Target), ErrDanglingEdge))
		}
	}

	// Структурные ошибки шагов делают граф неоднозначным
	graph, err := NewGraph(wf)
	if err != nil {
		return errs
	}

	if len(graph.Triggers()) == 0 {
		errs = append(errs, NewValidationError("", "nodes", ErrNoTriggers.Error(), ErrNoTriggers))
	}
	if cycle := graph.FindCycle(); cycle != nil {
		errs = append(errs, NewValidationError(cycle[0], "edges",
			fmt.Sprintf("cycle detected: %s", strings.Join(cycle, " -> ")), ErrCycle))
	}

	return errs
}

// validateNode проверяет тип и конфигурацию шага.
func validateNode(node *domain.Node, registry *steps.Registry) []error {
	kind := node.Kind()
	if !kind.IsKnown() {
		return []error{NewValidationError(node.ID, "subtype",
			fmt.Sprintf("unknown node kind: %s", kind), ErrUnknownKind)}
	}
	if registry == nil {
		return nil
	}
	if !registry.Has(kind) {
		return []error{NewValidationError(node.ID, "subtype",
			steps.NotRegisteredMessage(kind), ErrUnknownKind)}
	}
	if hasTemplate(node.Config) {
		return nil
	}

	var errs []error
	for _, msg := range registry.Validate(kind.Category, kind.Subtype, node.Config) {
		errs = append(errs, NewValidationError(node.ID, "config", msg, ErrInvalidNodeConfig))
	}
	return errs
}

// hasTemplate проверяет, содержит ли значение шаблонные выражения.
func hasTemplate(value any) bool {
	switch v := value.(type) {
	case string:
		return strings.Contains(v, "{{")
	case map[string]any:
		for _, val := range v {
			if hasTemplate(val) {
				return true
			}
		}
	case []any:
		for _, val := range v {
			if hasTemplate(val) {
				return true
			}
		}
	}
	return false
}
