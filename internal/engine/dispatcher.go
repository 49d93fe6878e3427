package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/steps"
	"github.com/shaiso/flowgraph/internal/telemetry"
)

// journal — запись журнала и outputs run. Реализуется Executor.
type journal interface {
	log(level domain.LogLevel, nodeID, message string, data map[string]any)
	output(nodeID string, output any)
}

// outcome — итог обхода графа.
type outcome struct {
	status domain.ExecutionStatus

	// nodeID — упавший шаг (failed) или шаг, перед которым остановились (cancelled).
	nodeID string

	// err — ошибка упавшего шага.
	err string

	// executed — количество успешно выполненных шагов.
	executed int
}

// dispatcher обходит граф одного run в ширину.
//
// Шаги выполняются строго по одному: следующий шаг начинается только
// после того, как предыдущий вернул результат. Поэтому журнал и outputs
// заполняются детерминированно и без блокировок внутри run.
type dispatcher struct {
	graph    *Graph
	registry *steps.Registry
	journal  journal
	metrics  *telemetry.Metrics

	// stopped — флаг отмены, проверяется между шагами.
	stopped func() bool

	runID      string
	workflowID string
	vars       map[string]any
	env        map[string]string
}

// dispatch выполняет шаги начиная с start.
//
// Вход шага:
//   - стартовый шаг получает seed
//   - шаг с одним выполненным предшественником получает его output как есть
//   - шаг с несколькими предшественниками получает объект
//     {producerID: output}, предшественники в порядке завершения
//     передаются в ExecContext.Upstream
//
// Повторный заход в выполненный шаг не выполняет его снова:
// связь пропускается с предупреждением в журнале.
func (d *dispatcher) dispatch(ctx context.Context, start []string, seed any) outcome {
	queue := append([]string(nil), start...)
	queued := make(map[string]bool, len(start))
	for _, id := range start {
		queued[id] = true
	}

	visited := make(map[string]bool)
	producers := make(map[string][]string)
	outputs := make(map[string]any)
	executed := 0

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		// Отмена наблюдается только на границе шагов
		if d.cancelled(ctx) {
			return outcome{status: domain.ExecutionCancelled, nodeID: id, executed: executed}
		}

		node, ok := d.graph.Node(id)
		if !ok {
			return outcome{status: domain.ExecutionFailed, nodeID: id,
				err: fmt.Sprintf("%v: %s", ErrStartNodeNotFound, id), executed: executed}
		}

		upstream := producers[id]
		input := resolveInput(seed, upstream, outputs)

		def, res := d.invoke(ctx, node, input, upstream, outputs)
		if !res.Success {
			if ctx.Err() != nil {
				d.journal.log(domain.LogWarning, id, "step interrupted by cancellation",
					map[string]any{"error": res.Error})
				return outcome{status: domain.ExecutionCancelled, nodeID: id, executed: executed}
			}
			d.journal.log(domain.LogError, id, "step failed: "+res.Error, map[string]any{
				"kind":  node.Kind().String(),
				"error": res.Error,
			})
			return outcome{status: domain.ExecutionFailed, nodeID: id, err: res.Error, executed: executed}
		}

		visited[id] = true
		executed++
		outputs[id] = res.Output
		d.journal.output(id, res.Output)
		d.journal.log(domain.LogInfo, id, "step completed", map[string]any{"kind": node.Kind().String()})

		for _, edge := range d.next(node, def, res.Output) {
			target := edge.Target
			if visited[target] {
				message := "node already executed, edge not traversed"
				if d.graph.Reaches(target, id) {
					message = "cycle detected, edge not traversed"
				}
				d.journal.log(domain.LogWarning, id, message, edgeData(edge))
				continue
			}

			if !slices.Contains(producers[target], id) {
				producers[target] = append(producers[target], id)
			}
			if !queued[target] {
				queued[target] = true
				queue = append(queue, target)
			}
		}
	}

	return outcome{status: domain.ExecutionCompleted, executed: executed}
}

// cancelled проверяет флаг отмены и контекст вызывающей стороны.
func (d *dispatcher) cancelled(ctx context.Context) bool {
	if d.stopped != nil && d.stopped() {
		return true
	}
	return ctx.Err() != nil
}

// invoke находит определение шага, рендерит и проверяет конфигурацию,
// затем вызывает обработчик. Обработчик на невалидной конфигурации
// не вызывается.
func (d *dispatcher) invoke(
	ctx context.Context,
	node *domain.Node,
	input any,
	upstream []string,
	outputs map[string]any,
) (steps.Definition, steps.Result) {
	kind := node.Kind()

	def, ok := d.registry.Lookup(kind.Category, kind.Subtype)
	if !ok {
		return def, steps.Fail("%s", steps.NotRegisteredMessage(kind))
	}

	data := &TemplateData{
		Input: input,
		Steps: outputs,
		Vars:  d.vars,
		Env:   d.env,
	}
	config, err := RenderConfig(node.Config, data)
	if err != nil {
		return def, steps.Fail("render config: %v", err)
	}

	if errs := def.Validate(config); len(errs) > 0 {
		return def, steps.Fail("%s validation failed: %s", kind, strings.Join(errs, ", "))
	}

	ec := &steps.ExecContext{
		NodeID:     node.ID,
		WorkflowID: d.workflowID,
		RunID:      d.runID,
		Config:     config,
		Input:      input,
		Upstream:   append([]string(nil), upstream...),
	}

	started := time.Now()
	res := safeExecute(ctx, def.Handler, ec)
	d.metrics.StepFinished(kind.String(), res.Success, time.Since(started))

	return def, res
}

// next возвращает связи, по которым run продолжается после шага.
// Ветвящийся шаг продолжает только по связям с SourceHandle == branch.
func (d *dispatcher) next(node *domain.Node, def steps.Definition, output any) []domain.Edge {
	edges := d.graph.Outgoing(node.ID)
	if !def.Branching {
		return edges
	}

	branch := branchOf(output)
	if branch == "" {
		d.journal.log(domain.LogWarning, node.ID, "branching step produced no branch, stopping this path", nil)
		return nil
	}

	selected := make([]domain.Edge, 0, len(edges))
	for _, edge := range edges {
		if edge.SourceHandle == branch {
			selected = append(selected, edge)
		}
	}

	d.journal.log(domain.LogInfo, node.ID, fmt.Sprintf("branch %q selected", branch), map[string]any{
		"branch":  branch,
		"skipped": len(edges) - len(selected),
	})
	return selected
}

// safeExecute вызывает обработчик и превращает панику в неуспешный результат.
func safeExecute(ctx context.Context, h steps.Handler, ec *steps.ExecContext) (res steps.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = steps.Fail("step panicked: %v", r)
		}
	}()
	return h.Execute(ctx, ec)
}

// resolveInput собирает вход шага из outputs предшественников.
func resolveInput(seed any, upstream []string, outputs map[string]any) any {
	switch len(upstream) {
	case 0:
		return seed
	case 1:
		return outputs[upstream[0]]
	default:
		merged := make(map[string]any, len(upstream))
		for _, id := range upstream {
			merged[id] = outputs[id]
		}
		return merged
	}
}

// branchOf достаёт output["branch"].
func branchOf(output any) string {
	m, ok := output.(map[string]any)
	if !ok {
		return ""
	}
	branch, _ := m["branch"].(string)
	return branch
}

// edgeData — данные связи для журнала.
func edgeData(edge domain.Edge) map[string]any {
	return map[string]any{
		"edgeId": edge.ID,
		"source": edge.Source,
		"target": edge.Target,
	}
}
