package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/steps"
	"github.com/shaiso/flowgraph/internal/telemetry"
)

// Notifier получает итоговую запись run после снятия регистрации.
// Запись передаётся только для чтения.
type Notifier interface {
	ExecutionFinished(ctx context.Context, rec *domain.ExecutionRecord) error
}

// NotifierFunc — адаптер функции к Notifier.
type NotifierFunc func(ctx context.Context, rec *domain.ExecutionRecord) error

// ExecutionFinished вызывает f(ctx, rec).
func (f NotifierFunc) ExecutionFinished(ctx context.Context, rec *domain.ExecutionRecord) error {
	return f(ctx, rec)
}

// Config — конфигурация Engine.
type Config struct {
	// Registry — таблица шагов (default: steps.DefaultRegistry без Mailer и DB).
	Registry *steps.Registry

	// Active — реестр активных runs (default: новый пустой).
	Active *ActiveRuns

	// Logger
	Logger *slog.Logger

	// Metrics — nil отключает метрики.
	Metrics *telemetry.Metrics

	// Notifiers — получатели итоговых записей.
	Notifiers []Notifier

	// Env — переменные, доступные в шаблонах как .Env.
	Env map[string]string
}

// Engine — точка входа движка: создаёт Executor и ведёт реестр активных runs.
type Engine struct {
	registry *steps.Registry
	active   *ActiveRuns
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	env      map[string]string

	mu        sync.RWMutex
	notifiers []Notifier
}

// New создаёт новый Engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = steps.DefaultRegistry(steps.Options{Logger: logger})
	}

	active := cfg.Active
	if active == nil {
		active = NewActiveRuns()
	}

	env := cfg.Env
	if env == nil {
		env = make(map[string]string)
	}

	return &Engine{
		registry:  registry,
		active:    active,
		logger:    logger,
		metrics:   cfg.Metrics,
		env:       env,
		notifiers: append([]Notifier(nil), cfg.Notifiers...),
	}
}

// AddNotifier добавляет получателя итоговых записей.
// Действует на Executor, созданные после вызова.
func (e *Engine) AddNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifiers = append(e.notifiers, n)
}

// NewExecutor создаёт Executor для одного run workflow.
//
// Workflow не должен изменяться, пока run выполняется.
func (e *Engine) NewExecutor(wf *domain.Workflow) *Executor {
	e.mu.RLock()
	notifiers := append([]Notifier(nil), e.notifiers...)
	e.mu.RUnlock()

	return &Executor{
		runID:     uuid.NewString(),
		workflow:  wf,
		registry:  e.registry,
		active:    e.active,
		logger:    e.logger,
		metrics:   e.metrics,
		notifiers: notifiers,
		env:       e.env,
	}
}

// Run выполняет workflow синхронно.
func (e *Engine) Run(ctx context.Context, wf *domain.Workflow, opts RunOptions) (*domain.ExecutionRecord, error) {
	return e.NewExecutor(wf).Execute(ctx, opts)
}

// Start запускает workflow асинхронно.
// Возвращает Executor (для RunID и Stop) и канал итоговой записи.
func (e *Engine) Start(ctx context.Context, wf *domain.Workflow, opts RunOptions) (*Executor, <-chan *domain.ExecutionRecord, error) {
	exec := e.NewExecutor(wf)
	done, err := exec.Start(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	return exec, done, nil
}

// Cancel останавливает активный run workflow.
// Возвращает false, если активного run нет.
func (e *Engine) Cancel(workflowID string) bool {
	return e.active.Cancel(workflowID)
}

// Validate проверяет workflow по реестру шагов движка.
func (e *Engine) Validate(wf *domain.Workflow) []error {
	return ValidateWorkflow(wf, e.registry)
}

// Active возвращает реестр активных runs.
func (e *Engine) Active() *ActiveRuns {
	return e.active
}

// Registry возвращает таблицу шагов.
func (e *Engine) Registry() *steps.Registry {
	return e.registry
}
