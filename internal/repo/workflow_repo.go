package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/flowgraph/internal/domain"
)

// uniqueViolation — код ошибки PostgreSQL при конфликте первичного ключа.
const uniqueViolation = "23505"

// WorkflowRepo — репозиторий для работы с workflows.
//
// Шаги, связи и переменные хранятся в JSONB колонках.
type WorkflowRepo struct {
	pool *pgxpool.Pool
}

// NewWorkflowRepo создаёт новый WorkflowRepo.
func NewWorkflowRepo(pool *pgxpool.Pool) *WorkflowRepo {
	return &WorkflowRepo{pool: pool}
}

// Create создаёт новый workflow.
func (r *WorkflowRepo) Create(ctx context.Context, wf *domain.Workflow) error {
	if wf.ID == "" {
		return ErrMissingID
	}
	nodesJSON, edgesJSON, varsJSON, err := marshalGraph(wf)
	if err != nil {
		return err
	}

	now := time.Now()
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = now
	}
	wf.UpdatedAt = now

	query := `
		INSERT INTO workflows (id, name, description, nodes, edges, variables, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		wf.ID,
		wf.Name,
		wf.Description,
		nodesJSON,
		edgesJSON,
		varsJSON,
		wf.IsActive,
		wf.CreatedAt,
		wf.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

// GetByID возвращает workflow по ID.
func (r *WorkflowRepo) GetByID(ctx context.Context, id string) (*domain.Workflow, error) {
	query := `
		SELECT id, name, description, nodes, edges, variables, is_active, created_at, updated_at
		FROM workflows
		WHERE id = $1
	`
	return scanWorkflow(r.pool.QueryRow(ctx, query, id))
}

// List возвращает все workflows, новые первыми.
func (r *WorkflowRepo) List(ctx context.Context) ([]domain.Workflow, error) {
	return r.list(ctx, `
		SELECT id, name, description, nodes, edges, variables, is_active, created_at, updated_at
		FROM workflows
		ORDER BY created_at DESC
	`)
}

// ListActive возвращает активные workflows.
func (r *WorkflowRepo) ListActive(ctx context.Context) ([]domain.Workflow, error) {
	return r.list(ctx, `
		SELECT id, name, description, nodes, edges, variables, is_active, created_at, updated_at
		FROM workflows
		WHERE is_active = TRUE
		ORDER BY created_at DESC
	`)
}

func (r *WorkflowRepo) list(ctx context.Context, query string) ([]domain.Workflow, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []domain.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, *wf)
	}
	return workflows, rows.Err()
}

// Update заменяет определение workflow.
func (r *WorkflowRepo) Update(ctx context.Context, wf *domain.Workflow) error {
	nodesJSON, edgesJSON, varsJSON, err := marshalGraph(wf)
	if err != nil {
		return err
	}
	wf.UpdatedAt = time.Now()

	query := `
		UPDATE workflows
		SET name = $2, description = $3, nodes = $4, edges = $5, variables = $6,
		    is_active = $7, updated_at = $8
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		wf.ID,
		wf.Name,
		wf.Description,
		nodesJSON,
		edgesJSON,
		varsJSON,
		wf.IsActive,
		wf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет workflow. Записи runs остаются.
func (r *WorkflowRepo) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateNodeErrors записывает LastError шагов в одной транзакции.
// Строка блокируется, чтобы не затереть параллельный Update.
func (r *WorkflowRepo) UpdateNodeErrors(ctx context.Context, id string, errs map[string]string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var nodesJSON []byte
		err := tx.QueryRow(ctx, `SELECT nodes FROM workflows WHERE id = $1 FOR UPDATE`, id).Scan(&nodesJSON)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock workflow: %w", err)
		}

		var wf domain.Workflow
		if err := json.Unmarshal(nodesJSON, &wf.Nodes); err != nil {
			return fmt.Errorf("unmarshal nodes: %w", err)
		}
		if !applyNodeErrors(&wf, errs) {
			return nil
		}

		nodesJSON, err = json.Marshal(wf.Nodes)
		if err != nil {
			return fmt.Errorf("marshal nodes: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE workflows SET nodes = $2 WHERE id = $1`, id, nodesJSON); err != nil {
			return fmt.Errorf("update node errors: %w", err)
		}
		return nil
	})
}

// marshalGraph сериализует JSONB колонки workflow.
func marshalGraph(wf *domain.Workflow) (nodes, edges, vars []byte, err error) {
	if nodes, err = json.Marshal(nonNil(wf.Nodes)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal nodes: %w", err)
	}
	if edges, err = json.Marshal(nonNil(wf.Edges)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal edges: %w", err)
	}
	if wf.Variables != nil {
		if vars, err = json.Marshal(wf.Variables); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal variables: %w", err)
		}
	}
	return nodes, edges, vars, nil
}

// nonNil заменяет nil срез пустым, чтобы в JSONB попал [] вместо null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// scanWorkflow сканирует одну строку в Workflow.
// Подходит и для QueryRow, и для rows в цикле.
func scanWorkflow(row pgx.Row) (*domain.Workflow, error) {
	var wf domain.Workflow
	var nodesJSON, edgesJSON, varsJSON []byte

	err := row.Scan(
		&wf.ID,
		&wf.Name,
		&wf.Description,
		&nodesJSON,
		&edgesJSON,
		&varsJSON,
		&wf.IsActive,
		&wf.CreatedAt,
		&wf.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan workflow: %w", err)
	}

	if err := json.Unmarshal(nodesJSON, &wf.Nodes); err != nil {
		return nil, fmt.Errorf("unmarshal nodes: %w", err)
	}
	if err := json.Unmarshal(edgesJSON, &wf.Edges); err != nil {
		return nil, fmt.Errorf("unmarshal edges: %w", err)
	}
	if varsJSON != nil {
		if err := json.Unmarshal(varsJSON, &wf.Variables); err != nil {
			return nil, fmt.Errorf("unmarshal variables: %w", err)
		}
	}

	return &wf, nil
}
