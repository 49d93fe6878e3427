package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/flowgraph/internal/domain"
)

// ExecutionRepo — репозиторий для работы с записями runs.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт новый ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

// Save вставляет запись run или заменяет существующую.
func (r *ExecutionRepo) Save(ctx context.Context, rec *domain.ExecutionRecord) error {
	if rec.RunID == "" {
		return ErrMissingID
	}
	logsJSON, err := json.Marshal(rec.Logs)
	if err != nil {
		return fmt.Errorf("marshal logs: %w", err)
	}
	outputsJSON, err := json.Marshal(rec.NodeOutputs)
	if err != nil {
		return fmt.Errorf("marshal node outputs: %w", err)
	}

	query := `
		INSERT INTO executions (run_id, workflow_id, status, started_at, completed_at,
		                        error, failed_node_id, logs, node_outputs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE
		SET status = EXCLUDED.status,
		    completed_at = EXCLUDED.completed_at,
		    error = EXCLUDED.error,
		    failed_node_id = EXCLUDED.failed_node_id,
		    logs = EXCLUDED.logs,
		    node_outputs = EXCLUDED.node_outputs
	`
	_, err = r.pool.Exec(ctx, query,
		rec.RunID,
		rec.WorkflowID,
		rec.Status,
		rec.StartedAt,
		rec.CompletedAt,
		nullString(rec.Error),
		nullString(rec.FailedNodeID),
		logsJSON,
		outputsJSON,
	)
	if err != nil {
		return fmt.Errorf("save execution: %w", err)
	}
	return nil
}

// ExecutionFinished сохраняет итоговую запись run.
// Позволяет подключить репозиторий к движку как получатель записей.
func (r *ExecutionRepo) ExecutionFinished(ctx context.Context, rec *domain.ExecutionRecord) error {
	return r.Save(ctx, rec)
}

// GetByID возвращает запись run по ID.
func (r *ExecutionRepo) GetByID(ctx context.Context, runID string) (*domain.ExecutionRecord, error) {
	query := `
		SELECT run_id, workflow_id, status, started_at, completed_at,
		       error, failed_node_id, logs, node_outputs
		FROM executions
		WHERE run_id = $1
	`
	return scanExecution(r.pool.QueryRow(ctx, query, runID))
}

// List возвращает записи runs, новые первыми.
func (r *ExecutionRepo) List(ctx context.Context, filter ExecutionFilter) ([]domain.ExecutionRecord, error) {
	query := `
		SELECT run_id, workflow_id, status, started_at, completed_at,
		       error, failed_node_id, logs, node_outputs
		FROM executions
		WHERE ($1::text IS NULL OR workflow_id = $1)
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, nullString(filter.WorkflowID), filter.limit())
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var records []domain.ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// scanExecution сканирует одну строку в ExecutionRecord.
func scanExecution(row pgx.Row) (*domain.ExecutionRecord, error) {
	var rec domain.ExecutionRecord
	var logsJSON, outputsJSON []byte
	var recError, failedNodeID *string

	err := row.Scan(
		&rec.RunID,
		&rec.WorkflowID,
		&rec.Status,
		&rec.StartedAt,
		&rec.CompletedAt,
		&recError,
		&failedNodeID,
		&logsJSON,
		&outputsJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	if err := json.Unmarshal(logsJSON, &rec.Logs); err != nil {
		return nil, fmt.Errorf("unmarshal logs: %w", err)
	}
	if err := json.Unmarshal(outputsJSON, &rec.NodeOutputs); err != nil {
		return nil, fmt.Errorf("unmarshal node outputs: %w", err)
	}

	if recError != nil {
		rec.Error = *recError
	}
	if failedNodeID != nil {
		rec.FailedNodeID = *failedNodeID
	}

	return &rec, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
