package api

import (
	"errors"
	"time"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/engine"
	"github.com/shaiso/flowgraph/internal/steps"
)

// Workflow DTOs

// CreateWorkflowRequest — запрос на создание workflow.
// Пустой ID заменяется сгенерированным.
type CreateWorkflowRequest struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Nodes       []domain.Node  `json:"nodes"`
	Edges       []domain.Edge  `json:"edges"`
	Variables   map[string]any `json:"variables,omitempty"`
	IsActive    bool           `json:"is_active"`
}

// UpdateWorkflowRequest — запрос на обновление workflow.
// Поля без значения не меняются.
type UpdateWorkflowRequest struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Nodes       *[]domain.Node  `json:"nodes,omitempty"`
	Edges       *[]domain.Edge  `json:"edges,omitempty"`
	Variables   *map[string]any `json:"variables,omitempty"`
	IsActive    *bool           `json:"is_active,omitempty"`
}

// WorkflowSummary — элемент списка workflows.
type WorkflowSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	Nodes       int       `json:"nodes"`
	Edges       int       `json:"edges"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WorkflowSummaryFromDomain конвертирует domain.Workflow в WorkflowSummary.
func WorkflowSummaryFromDomain(wf domain.Workflow) WorkflowSummary {
	return WorkflowSummary{
		ID:          wf.ID,
		Name:        wf.Name,
		Description: wf.Description,
		IsActive:    wf.IsActive,
		Nodes:       len(wf.Nodes),
		Edges:       len(wf.Edges),
		UpdatedAt:   wf.UpdatedAt,
	}
}

// ValidationIssue — одна ошибка валидации.
type ValidationIssue struct {
	NodeID  string `json:"node_id,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationResponse — результат проверки workflow.
type ValidationResponse struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationIssue `json:"errors"`
}

// ValidationFromErrors собирает ответ из ошибок engine.ValidateWorkflow.
func ValidationFromErrors(errs []error) ValidationResponse {
	resp := ValidationResponse{Valid: len(errs) == 0, Errors: make([]ValidationIssue, 0, len(errs))}
	for _, err := range errs {
		issue := ValidationIssue{Message: err.Error()}
		var vErr *engine.ValidationError
		if errors.As(err, &vErr) {
			issue.NodeID = vErr.NodeID
			issue.Field = vErr.Field
			issue.Message = vErr.Message
		}
		resp.Errors = append(resp.Errors, issue)
	}
	return resp
}

// UpdateNodeConfigRequest — запрос на изменение значения в конфигурации шага.
type UpdateNodeConfigRequest struct {
	Path  []string `json:"path"`
	Value any      `json:"value"`
}

// Run DTOs

// ExecuteRequest — запрос на запуск workflow.
type ExecuteRequest struct {
	StartNodeID string `json:"startNodeId,omitempty"`
	Input       any    `json:"input,omitempty"`
}

// WebhookResponse — ответ на принятый webhook.
type WebhookResponse struct {
	RunID string `json:"run_id"`
}

// CancelResponse — результат отмены.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// ExecutionResponse — полная запись run.
type ExecutionResponse struct {
	*domain.ExecutionRecord
	DurationMs int64 `json:"duration_ms"`
}

// ExecutionFromDomain конвертирует запись run в ExecutionResponse.
func ExecutionFromDomain(rec *domain.ExecutionRecord) ExecutionResponse {
	return ExecutionResponse{ExecutionRecord: rec, DurationMs: rec.Duration().Milliseconds()}
}

// ExecutionSummary — элемент списка runs без журнала и outputs.
type ExecutionSummary struct {
	RunID        string                 `json:"run_id"`
	WorkflowID   string                 `json:"workflow_id"`
	Status       domain.ExecutionStatus `json:"status"`
	StartedAt    time.Time              `json:"started_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	DurationMs   int64                  `json:"duration_ms"`
	Error        string                 `json:"error,omitempty"`
	FailedNodeID string                 `json:"failed_node_id,omitempty"`
	Nodes        int                    `json:"nodes_executed"`
}

// ExecutionSummaryFromDomain конвертирует запись run в ExecutionSummary.
func ExecutionSummaryFromDomain(rec *domain.ExecutionRecord) ExecutionSummary {
	return ExecutionSummary{
		RunID:        rec.RunID,
		WorkflowID:   rec.WorkflowID,
		Status:       rec.Status,
		StartedAt:    rec.StartedAt,
		CompletedAt:  rec.CompletedAt,
		DurationMs:   rec.Duration().Milliseconds(),
		Error:        rec.Error,
		FailedNodeID: rec.FailedNodeID,
		Nodes:        len(rec.NodeOutputs),
	}
}

// Step DTOs

// StepResponse — описание зарегистрированного шага.
type StepResponse struct {
	Category      domain.Category `json:"category"`
	Subtype       domain.Subtype  `json:"subtype"`
	Kind          string          `json:"kind"`
	Description   string          `json:"description"`
	Branching     bool            `json:"branching"`
	DefaultConfig map[string]any  `json:"default_config"`
}

// StepFromDefinition конвертирует steps.Definition в StepResponse.
func StepFromDefinition(def steps.Definition) StepResponse {
	return StepResponse{
		Category:      def.Kind.Category,
		Subtype:       def.Kind.Subtype,
		Kind:          def.Kind.String(),
		Description:   def.Description,
		Branching:     def.Branching,
		DefaultConfig: def.DefaultConfig(),
	}
}
