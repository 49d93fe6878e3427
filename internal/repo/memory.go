package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shaiso/flowgraph/internal/domain"
)

// MemoryStore — хранилище workflows и runs в памяти процесса.
//
// Используется в тестах и при FLOWGRAPH_STORAGE=memory.
// Все значения копируются на входе и выходе.
type MemoryStore struct {
	mu         sync.RWMutex
	workflows  map[string]*domain.Workflow
	executions map[string]*domain.ExecutionRecord
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows:  make(map[string]*domain.Workflow),
		executions: make(map[string]*domain.ExecutionRecord),
	}
}

// --- WorkflowStore ---

// Create сохраняет новый workflow.
func (s *MemoryStore) Create(_ context.Context, wf *domain.Workflow) error {
	if wf.ID == "" {
		return ErrMissingID
	}
	now := time.Now()
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = now
	}
	wf.UpdatedAt = now

	clone, err := wf.Clone()
	if err != nil {
		return fmt.Errorf("clone workflow: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[wf.ID]; ok {
		return ErrAlreadyExists
	}
	s.workflows[wf.ID] = clone
	return nil
}

// GetByID возвращает копию workflow.
func (s *MemoryStore) GetByID(_ context.Context, id string) (*domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return wf.Clone()
}

// List возвращает все workflows, новые первыми.
func (s *MemoryStore) List(_ context.Context) ([]domain.Workflow, error) {
	return s.list(func(*domain.Workflow) bool { return true })
}

// ListActive возвращает активные workflows.
func (s *MemoryStore) ListActive(_ context.Context) ([]domain.Workflow, error) {
	return s.list(func(wf *domain.Workflow) bool { return wf.IsActive })
}

func (s *MemoryStore) list(keep func(*domain.Workflow) bool) ([]domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workflows := make([]domain.Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		if !keep(wf) {
			continue
		}
		clone, err := wf.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone workflow: %w", err)
		}
		workflows = append(workflows, *clone)
	}

	sort.Slice(workflows, func(i, j int) bool {
		if workflows[i].CreatedAt.Equal(workflows[j].CreatedAt) {
			return workflows[i].ID < workflows[j].ID
		}
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})
	return workflows, nil
}

// Update заменяет workflow. CreatedAt сохраняется.
func (s *MemoryStore) Update(_ context.Context, wf *domain.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.workflows[wf.ID]
	if !ok {
		return ErrNotFound
	}
	wf.CreatedAt = existing.CreatedAt
	wf.UpdatedAt = time.Now()

	clone, err := wf.Clone()
	if err != nil {
		return fmt.Errorf("clone workflow: %w", err)
	}
	s.workflows[wf.ID] = clone
	return nil
}

// Delete удаляет workflow.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return ErrNotFound
	}
	delete(s.workflows, id)
	return nil
}

// UpdateNodeErrors записывает LastError шагов.
func (s *MemoryStore) UpdateNodeErrors(_ context.Context, id string, errs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return ErrNotFound
	}
	applyNodeErrors(wf, errs)
	return nil
}

// --- ExecutionStore ---

// Save вставляет или заменяет запись run.
func (s *MemoryStore) Save(_ context.Context, rec *domain.ExecutionRecord) error {
	if rec.RunID == "" {
		return ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[rec.RunID] = rec.Snapshot()
	return nil
}

// ExecutionFinished сохраняет итоговую запись run.
func (s *MemoryStore) ExecutionFinished(ctx context.Context, rec *domain.ExecutionRecord) error {
	return s.Save(ctx, rec)
}

// GetExecution возвращает запись run по ID.
func (s *MemoryStore) GetExecution(_ context.Context, runID string) (*domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.executions[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Snapshot(), nil
}

// ListExecutions возвращает записи runs, новые первыми.
func (s *MemoryStore) ListExecutions(_ context.Context, filter ExecutionFilter) ([]domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]domain.ExecutionRecord, 0)
	for _, rec := range s.executions {
		if filter.WorkflowID != "" && rec.WorkflowID != filter.WorkflowID {
			continue
		}
		records = append(records, *rec.Snapshot())
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	if len(records) > filter.limit() {
		records = records[:filter.limit()]
	}
	return records, nil
}

// Executions возвращает представление MemoryStore как ExecutionStore.
func (s *MemoryStore) Executions() ExecutionStore {
	return memoryExecutions{s}
}

// memoryExecutions разводит одноимённые методы GetByID/List
// двух интерфейсов хранилища.
type memoryExecutions struct {
	s *MemoryStore
}

func (m memoryExecutions) Save(ctx context.Context, rec *domain.ExecutionRecord) error {
	return m.s.Save(ctx, rec)
}

func (m memoryExecutions) GetByID(ctx context.Context, runID string) (*domain.ExecutionRecord, error) {
	return m.s.GetExecution(ctx, runID)
}

func (m memoryExecutions) List(ctx context.Context, filter ExecutionFilter) ([]domain.ExecutionRecord, error) {
	return m.s.ListExecutions(ctx, filter)
}

var (
	_ WorkflowStore  = (*MemoryStore)(nil)
	_ ExecutionStore = memoryExecutions{}
	_ ExecutionStore = (*ExecutionRepo)(nil)
	_ WorkflowStore  = (*WorkflowRepo)(nil)
)
