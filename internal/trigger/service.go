package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/engine"
	"github.com/shaiso/flowgraph/internal/repo"
)

// Config — конфигурация Service.
type Config struct {
	// Workflows — хранилище определений.
	Workflows repo.WorkflowStore

	// Engine — движок выполнения.
	Engine *engine.Engine

	// Logger
	Logger *slog.Logger
}

// Service запускает workflows по запросам.
type Service struct {
	workflows repo.WorkflowStore
	engine    *engine.Engine
	logger    *slog.Logger

	mu      sync.Mutex
	stopped bool
	runs    sync.WaitGroup
}

// New создаёт новый Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	eng := cfg.Engine
	if eng == nil {
		eng = engine.New(engine.Config{Logger: logger})
	}

	return &Service{
		workflows: cfg.Workflows,
		engine:    eng,
		logger:    logger,
	}
}

// Start запускает run в фоне и возвращает его ID.
//
// Run не привязан к отмене ctx: он продолжается после ответа на запрос
// и останавливается через Cancel или Shutdown.
func (s *Service) Start(ctx context.Context, req domain.TriggerRequest) (string, error) {
	wf, opts, err := s.prepare(ctx, req)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return "", ErrServiceStopped
	}
	s.runs.Add(1)
	s.mu.Unlock()

	exec, done, err := s.engine.Start(context.WithoutCancel(ctx), wf, opts)
	if err != nil {
		s.runs.Done()
		return "", err
	}

	s.logger.Info("run started",
		"run_id", exec.RunID(),
		"workflow_id", wf.ID,
		"source", req.Source,
	)

	go func() {
		defer s.runs.Done()
		rec := <-done
		s.recordNodeErrors(context.WithoutCancel(ctx), wf, rec)
	}()

	return exec.RunID(), nil
}

// Execute выполняет run синхронно и возвращает итоговую запись.
func (s *Service) Execute(ctx context.Context, req domain.TriggerRequest) (*domain.ExecutionRecord, error) {
	wf, opts, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	rec, err := s.engine.Run(ctx, wf, opts)
	if err != nil {
		return nil, err
	}

	s.recordNodeErrors(context.WithoutCancel(ctx), wf, rec)
	return rec, nil
}

// Cancel останавливает активный run workflow.
// Возвращает false, если активного run нет.
func (s *Service) Cancel(workflowID string) bool {
	return s.engine.Cancel(workflowID)
}

// Wait ждёт завершения фоновых runs.
func (s *Service) Wait() {
	s.runs.Wait()
}

// Shutdown перестаёт принимать runs, отменяет активные и ждёт их завершения.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	active := s.engine.Active()
	for _, id := range active.WorkflowIDs() {
		active.Cancel(id)
	}

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for runs: %w", ctx.Err())
	}
}

// prepare загружает workflow и определяет параметры run.
func (s *Service) prepare(ctx context.Context, req domain.TriggerRequest) (*domain.Workflow, engine.RunOptions, error) {
	if req.WorkflowID == "" {
		return nil, engine.RunOptions{}, ErrMissingWorkflowID
	}

	wf, err := s.workflows.GetByID(ctx, req.WorkflowID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, engine.RunOptions{}, fmt.Errorf("%w: %s", ErrWorkflowNotFound, req.WorkflowID)
	}
	if err != nil {
		return nil, engine.RunOptions{}, fmt.Errorf("load workflow: %w", err)
	}

	source := req.Source
	if source == "" {
		source = domain.TriggerSourceManual
	}
	if !wf.IsActive && source != domain.TriggerSourceManual {
		return nil, engine.RunOptions{}, fmt.Errorf("%w: %s", ErrWorkflowInactive, wf.ID)
	}

	opts := engine.RunOptions{StartNodeID: req.StartNodeID, Input: req.Input}
	if source == domain.TriggerSourceWebhook && opts.StartNodeID == "" {
		node, ok := webhookNode(wf)
		if !ok {
			return nil, engine.RunOptions{}, fmt.Errorf("%w: %s", ErrNoWebhookTrigger, wf.ID)
		}
		opts.StartNodeID = node.ID
	}

	return wf, opts, nil
}

// webhookNode возвращает первый webhook триггер в порядке объявления.
func webhookNode(wf *domain.Workflow) (*domain.Node, bool) {
	for i := range wf.Nodes {
		node := &wf.Nodes[i]
		if node.Category == domain.CategoryTrigger && node.Subtype == domain.SubtypeWebhook {
			return node, true
		}
	}
	return nil, false
}

// recordNodeErrors записывает ошибку упавшего шага в LastError
// и очищает её у остальных шагов.
func (s *Service) recordNodeErrors(ctx context.Context, wf *domain.Workflow, rec *domain.ExecutionRecord) {
	if s.workflows == nil || rec == nil {
		return
	}

	errs := nodeErrors(wf, rec)
	if len(errs) == 0 {
		return
	}

	if err := s.workflows.UpdateNodeErrors(ctx, wf.ID, errs); err != nil {
		s.logger.Error("failed to update node errors",
			"run_id", rec.RunID,
			"workflow_id", wf.ID,
			"error", err,
		)
	}
}

// nodeErrors вычисляет изменения LastError после run.
// Шаги без изменений в результат не попадают.
func nodeErrors(wf *domain.Workflow, rec *domain.ExecutionRecord) map[string]string {
	errs := make(map[string]string)
	for _, node := range wf.Nodes {
		want := ""
		if rec.Status == domain.ExecutionFailed && node.ID == rec.FailedNodeID {
			want = rec.Error
		}
		if node.LastError != want {
			errs[node.ID] = want
		}
	}
	return errs
}
