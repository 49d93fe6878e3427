package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/steps"
	"github.com/shaiso/flowgraph/internal/telemetry"
)

// RunOptions — параметры запуска run.
type RunOptions struct {
	// StartNodeID — шаг, с которого начать. Пустое значение означает
	// все триггеры без входящих связей.
	StartNodeID string

	// Input — seed input стартовых шагов. nil заменяется пустым объектом.
	Input any
}

// Executor — владелец одного run.
//
// Executor одноразовый: Start/Execute можно вызвать один раз.
// Запись run изменяется только этим Executor и после перехода
// в финальный статус больше не меняется.
type Executor struct {
	runID     string
	workflow  *domain.Workflow
	registry  *steps.Registry
	active    *ActiveRuns
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	notifiers []Notifier
	env       map[string]string

	started atomic.Bool
	stopped atomic.Bool

	mu     sync.Mutex
	record *domain.ExecutionRecord
}

// RunID возвращает идентификатор run.
func (e *Executor) RunID() string {
	return e.runID
}

// WorkflowID возвращает идентификатор workflow.
func (e *Executor) WorkflowID() string {
	if e.workflow == nil {
		return ""
	}
	return e.workflow.ID
}

// Stop запрашивает отмену run.
//
// Отмена кооперативная: шаг, который уже выполняется, не прерывается,
// run останавливается перед следующим шагом.
func (e *Executor) Stop() {
	if e.stopped.CompareAndSwap(false, true) {
		e.logger.Info("run stop requested", "run_id", e.runID, "workflow_id", e.WorkflowID())
	}
}

// Stopped возвращает true, если отмена запрошена.
func (e *Executor) Stopped() bool {
	return e.stopped.Load()
}

// Record возвращает копию текущей записи run (nil до старта).
func (e *Executor) Record() *domain.ExecutionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.record == nil {
		return nil
	}
	return e.record.Snapshot()
}

// Execute выполняет run синхронно и возвращает итоговую запись.
//
// Возвращает ErrRunAlreadyActive, если у workflow уже есть активный run,
// и ErrExecutorUsed при повторном вызове. Ошибки шагов и структуры графа
// не являются ошибками Execute: они попадают в запись со статусом failed.
func (e *Executor) Execute(ctx context.Context, opts RunOptions) (*domain.ExecutionRecord, error) {
	done, err := e.Start(ctx, opts)
	if err != nil {
		return nil, err
	}
	return <-done, nil
}

// Start регистрирует run и выполняет его в отдельной горутине.
//
// Регистрация синхронная: конфликт с активным run возвращается сразу.
// Итоговая запись приходит в канал после снятия регистрации
// и вызова Notifier.
func (e *Executor) Start(ctx context.Context, opts RunOptions) (<-chan *domain.ExecutionRecord, error) {
	if e.workflow == nil {
		return nil, ErrNilWorkflow
	}
	if !e.started.CompareAndSwap(false, true) {
		return nil, ErrExecutorUsed
	}

	e.mu.Lock()
	e.record = domain.NewExecutionRecord(e.runID, e.workflow.ID)
	e.mu.Unlock()

	if err := e.active.Register(e.workflow.ID, e); err != nil {
		return nil, fmt.Errorf("%w: %s", err, e.workflow.ID)
	}
	e.metrics.RunStarted()

	done := make(chan *domain.ExecutionRecord, 1)
	go func() {
		func() {
			defer e.active.Deregister(e.workflow.ID, e)
			e.run(ctx, opts)
		}()

		rec := e.Record()
		e.metrics.RunFinished(rec.Status.String(), rec.Duration())
		e.notify(context.WithoutCancel(ctx), rec)
		done <- rec
	}()

	return done, nil
}

// run проводит run от построения графа до финального статуса.
func (e *Executor) run(ctx context.Context, opts RunOptions) {
	graph, err := NewGraph(e.workflow)
	if err != nil {
		e.fail("", err.Error())
		return
	}

	for _, w := range graph.Warnings {
		e.log(domain.LogWarning, "", w.Message, w.Data)
	}

	start, err := startNodes(graph, opts.StartNodeID)
	if err != nil {
		e.fail(opts.StartNodeID, err.Error())
		return
	}

	seed := opts.Input
	if seed == nil {
		seed = map[string]any{}
	}

	e.log(domain.LogInfo, "", "execution started", map[string]any{
		"startNodes": start,
		"nodes":      graph.Size(),
	})

	d := &dispatcher{
		graph:      graph,
		registry:   e.registry,
		journal:    e,
		metrics:    e.metrics,
		stopped:    e.Stopped,
		runID:      e.runID,
		workflowID: e.workflow.ID,
		vars:       e.workflow.Variables,
		env:        e.env,
	}
	out := d.dispatch(ctx, start, seed)

	e.mu.Lock()
	defer e.mu.Unlock()

	switch out.status {
	case domain.ExecutionCompleted:
		e.logLocked(domain.LogInfo, "", "execution completed", map[string]any{"executed": out.executed})
		e.record.MarkCompleted()
	case domain.ExecutionCancelled:
		e.logLocked(domain.LogWarning, out.nodeID, "execution cancelled", map[string]any{"executed": out.executed})
		e.record.MarkCancelled()
	default:
		e.logLocked(domain.LogError, out.nodeID, "execution failed", map[string]any{
			"executed": out.executed,
			"error":    out.err,
		})
		e.record.MarkFailed(out.nodeID, out.err)
	}
}

// startNodes определяет стартовое множество шагов.
func startNodes(graph *Graph, startNodeID string) ([]string, error) {
	if startNodeID != "" {
		if _, ok := graph.Node(startNodeID); !ok {
			return nil, fmt.Errorf("%w: %s", ErrStartNodeNotFound, startNodeID)
		}
		return []string{startNodeID}, nil
	}

	triggers := graph.Triggers()
	if len(triggers) == 0 {
		return nil, ErrNoTriggers
	}

	ids := make([]string, len(triggers))
	for i, node := range triggers {
		ids[i] = node.ID
	}
	return ids, nil
}

// fail завершает run с ошибкой до начала обхода.
func (e *Executor) fail(nodeID, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logLocked(domain.LogError, nodeID, "execution failed: "+message, nil)
	e.record.MarkFailed(nodeID, message)
}

// log реализует journal.
func (e *Executor) log(level domain.LogLevel, nodeID, message string, data map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logLocked(level, nodeID, message, data)
}

// output реализует journal.
func (e *Executor) output(nodeID string, output any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record.SetOutput(nodeID, output)
}

// logLocked пишет запись в журнал run и дублирует её в slog.
// Вызывается под e.mu.
func (e *Executor) logLocked(level domain.LogLevel, nodeID, message string, data map[string]any) {
	e.record.AddLog(level, nodeID, message, data)

	logger := telemetry.WithWorkflowID(telemetry.WithRunID(e.logger, e.runID), e.workflow.ID)
	if nodeID != "" {
		logger = telemetry.WithNodeID(logger, nodeID)
	}
	if len(data) > 0 {
		logger = logger.With("data", data)
	}

	switch level {
	case domain.LogError:
		logger.Error(message)
	case domain.LogWarning:
		logger.Warn(message)
	default:
		logger.Info(message)
	}
}

// notify передаёт итоговую запись Notifier. Ошибки только логируются.
func (e *Executor) notify(ctx context.Context, rec *domain.ExecutionRecord) {
	for _, n := range e.notifiers {
		if err := n.ExecutionFinished(ctx, rec); err != nil {
			e.logger.Error("execution notifier failed",
				"run_id", e.runID,
				"workflow_id", rec.WorkflowID,
				"error", err,
			)
		}
	}
}
