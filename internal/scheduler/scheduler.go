package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/flowgraph/internal/domain"
)

// Lister возвращает активные workflows.
type Lister interface {
	ListActive(ctx context.Context) ([]domain.Workflow, error)
}

// Firer отправляет запрос на запуск.
// В production это mq.Publisher, в тестах и локально — trigger service.
type Firer interface {
	Fire(ctx context.Context, req domain.TriggerRequest) error
}

// FirerFunc — адаптер функции к Firer.
type FirerFunc func(ctx context.Context, req domain.TriggerRequest) error

// Fire вызывает f(ctx, req).
func (f FirerFunc) Fire(ctx context.Context, req domain.TriggerRequest) error {
	return f(ctx, req)
}

// Scheduler запускает schedule триггеры активных workflows.
//
// Между тиками хранит только время предыдущей проверки: триггер
// срабатывает, если его следующее время после предыдущей проверки
// не позже текущей. Пропущенные за время простоя срабатывания
// не догоняются, за один тик триггер срабатывает не больше одного раза.
type Scheduler struct {
	workflows Lister
	firer     Firer
	logger    *slog.Logger

	mu        sync.Mutex
	lastCheck time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Workflows Lister
	Firer     Firer
	Logger    *slog.Logger
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		workflows: cfg.Workflows,
		firer:     cfg.Firer,
		logger:    logger,
	}
}

// TickStats — итог одного тика.
type TickStats struct {
	Workflows int
	Schedules int
	Fired     int
	Failed    int
}

// Tick выполняет один тик планировщика.
//
// Первый тик только запоминает время. Ошибки одного триггера
// не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (TickStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats TickStats
	if s.lastCheck.IsZero() {
		s.lastCheck = now
		s.logger.Debug("scheduler initialized", "at", now)
		return stats, nil
	}
	from := s.lastCheck

	workflows, err := s.workflows.ListActive(ctx)
	if err != nil {
		return stats, fmt.Errorf("list active workflows: %w", err)
	}
	s.lastCheck = now
	stats.Workflows = len(workflows)

	for i := range workflows {
		wf := &workflows[i]
		for j := range wf.Nodes {
			node := &wf.Nodes[j]
			if node.Category != domain.CategoryTrigger || node.Subtype != domain.SubtypeSchedule {
				continue
			}
			stats.Schedules++

			fired, err := s.processNode(ctx, wf, node, from, now)
			if err != nil {
				stats.Failed++
				s.logger.Error("failed to process schedule trigger",
					"workflow_id", wf.ID,
					"node_id", node.ID,
					"error", err,
				)
				continue
			}
			if fired {
				stats.Fired++
			}
		}
	}

	if stats.Fired > 0 || stats.Failed > 0 {
		s.logger.Info("scheduler tick completed",
			"workflows", stats.Workflows,
			"schedules", stats.Schedules,
			"fired", stats.Fired,
			"failed", stats.Failed,
		)
	}
	return stats, nil
}

// processNode запускает триггер, если он сработал в интервале (from, now].
func (s *Scheduler) processNode(ctx context.Context, wf *domain.Workflow, node *domain.Node, from, now time.Time) (bool, error) {
	spec := SpecFromConfig(node.Config)
	if err := spec.Validate(); err != nil {
		return false, err
	}

	due, err := spec.Next(from)
	if err != nil {
		return false, err
	}
	if due.After(now) {
		return false, nil
	}

	req := domain.TriggerRequest{
		WorkflowID:  wf.ID,
		StartNodeID: node.ID,
		Input:       map[string]any{"scheduledTime": due.Format(time.RFC3339)},
		Source:      domain.TriggerSourceSchedule,
	}
	if err := s.firer.Fire(ctx, req); err != nil {
		return false, fmt.Errorf("fire trigger: %w", err)
	}

	s.logger.Info("schedule trigger fired",
		"workflow_id", wf.ID,
		"node_id", node.ID,
		"scheduled_time", due,
		"cron", spec.Expr,
	)
	return true, nil
}

// Run вызывает Tick с интервалом interval до отмены ctx.
// isLeader вызывается перед каждым тиком, nil означает единственный экземпляр.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration, isLeader func(context.Context) bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if isLeader == nil || isLeader(ctx) {
			if _, err := s.Tick(ctx, time.Now()); err != nil {
				s.logger.Error("scheduler tick failed", "error", err)
			}
		} else {
			s.reset()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// reset забывает время проверки: после потери лидерства
// новый лидер начнёт отсчёт заново.
func (s *Scheduler) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCheck = time.Time{}
}
