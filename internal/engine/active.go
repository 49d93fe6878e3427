package engine

import (
	"sort"
	"sync"

	"github.com/shaiso/flowgraph/internal/domain"
)

// ActiveRuns — реестр активных runs (workflowID → Executor).
//
// Создаётся при старте процесса и передаётся в Engine явно. У одного
// workflow может быть не больше одного активного run: регистрация
// работает как insert-if-absent под мьютексом.
type ActiveRuns struct {
	mu   sync.RWMutex
	runs map[string]*Executor
}

// NewActiveRuns создаёт пустой реестр.
func NewActiveRuns() *ActiveRuns {
	return &ActiveRuns{
		runs: make(map[string]*Executor),
	}
}

// Register добавляет Executor для workflow.
// Возвращает ErrRunAlreadyActive, если у workflow уже есть активный run.
func (a *ActiveRuns) Register(workflowID string, e *Executor) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.runs[workflowID]; exists {
		return ErrRunAlreadyActive
	}
	a.runs[workflowID] = e
	return nil
}

// Deregister удаляет Executor, если он всё ещё зарегистрирован под workflowID.
// Чужой Executor под тем же ключом не трогается.
func (a *ActiveRuns) Deregister(workflowID string, e *Executor) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if current, exists := a.runs[workflowID]; !exists || current != e {
		return false
	}
	delete(a.runs, workflowID)
	return true
}

// Get возвращает активный Executor workflow.
func (a *ActiveRuns) Get(workflowID string) (*Executor, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.runs[workflowID]
	return e, ok
}

// Cancel останавливает активный run workflow.
// Возвращает false, если активного run нет: это не ошибка.
func (a *ActiveRuns) Cancel(workflowID string) bool {
	e, ok := a.Get(workflowID)
	if !ok {
		return false
	}
	e.Stop()
	return true
}

// Len возвращает количество активных runs.
func (a *ActiveRuns) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.runs)
}

// WorkflowIDs возвращает отсортированные ID workflows с активными runs.
func (a *ActiveRuns) WorkflowIDs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]string, 0, len(a.runs))
	for id := range a.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshots возвращает копии записей всех активных runs.
func (a *ActiveRuns) Snapshots() []*domain.ExecutionRecord {
	a.mu.RLock()
	executors := make([]*Executor, 0, len(a.runs))
	for _, e := range a.runs {
		executors = append(executors, e)
	}
	a.mu.RUnlock()

	records := make([]*domain.ExecutionRecord, 0, len(executors))
	for _, e := range executors {
		if rec := e.Record(); rec != nil {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
	return records
}
