package repo

import (
	"context"

	"github.com/shaiso/flowgraph/internal/domain"
)

// WorkflowStore — хранилище определений workflow.
//
// Реализации: WorkflowRepo (PostgreSQL) и MemoryStore.
type WorkflowStore interface {
	Create(ctx context.Context, wf *domain.Workflow) error
	GetByID(ctx context.Context, id string) (*domain.Workflow, error)
	List(ctx context.Context) ([]domain.Workflow, error)
	ListActive(ctx context.Context) ([]domain.Workflow, error)
	Update(ctx context.Context, wf *domain.Workflow) error
	Delete(ctx context.Context, id string) error

	// UpdateNodeErrors записывает LastError шагов после run.
	// Ключ — ID шага, пустое значение очищает ошибку.
	UpdateNodeErrors(ctx context.Context, id string, errs map[string]string) error
}

// ExecutionStore — хранилище записей runs.
type ExecutionStore interface {
	// Save вставляет или заменяет запись по RunID.
	Save(ctx context.Context, rec *domain.ExecutionRecord) error
	GetByID(ctx context.Context, runID string) (*domain.ExecutionRecord, error)
	List(ctx context.Context, filter ExecutionFilter) ([]domain.ExecutionRecord, error)
}

// ExecutionFilter — фильтр для списка runs.
type ExecutionFilter struct {
	WorkflowID string
	Limit      int
}

// DefaultListLimit — лимит списка runs по умолчанию.
const DefaultListLimit = 50

// limit возвращает лимит с учётом значения по умолчанию.
func (f ExecutionFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// applyNodeErrors переносит ошибки run в шаги workflow.
// Возвращает true, если хотя бы один шаг изменился.
func applyNodeErrors(wf *domain.Workflow, errs map[string]string) bool {
	changed := false
	for i := range wf.Nodes {
		msg, ok := errs[wf.Nodes[i].ID]
		if !ok || wf.Nodes[i].LastError == msg {
			continue
		}
		wf.Nodes[i].LastError = msg
		changed = true
	}
	return changed
}
