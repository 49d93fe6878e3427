package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/repo"
)

// maxWebhookBody — предел размера тела webhook.
const maxWebhookBody = 1 << 20

// ExecuteWorkflow выполняет workflow синхронно и возвращает запись run.
// POST /api/v1/workflows/{id}/execute
func (h *Handler) ExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := decodeJSON(r, &req, true); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	rec, err := h.triggers.Execute(r.Context(), domain.TriggerRequest{
		WorkflowID:  r.PathValue("id"),
		StartNodeID: req.StartNodeID,
		Input:       req.Input,
		Source:      domain.TriggerSourceManual,
	})
	if HandleError(w, h.logger, err, "workflow not found") {
		return
	}

	Success(w, ExecutionFromDomain(rec))
}

// CancelWorkflow останавливает активный run workflow.
// Без активного run ничего не делает.
// POST /api/v1/workflows/{id}/cancel
func (h *Handler) CancelWorkflow(w http.ResponseWriter, r *http.Request) {
	Success(w, CancelResponse{Cancelled: h.triggers.Cancel(r.PathValue("id"))})
}

// Webhook запускает workflow с телом запроса в качестве payload.
// POST /api/v1/webhooks/{id}
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		BadRequest(w, "failed to read request body")
		return
	}

	payload, err := parsePayload(body)
	if err != nil {
		BadRequest(w, "payload must be valid JSON")
		return
	}

	runID, err := h.triggers.Start(r.Context(), domain.TriggerRequest{
		WorkflowID: r.PathValue("id"),
		Input:      payload,
		Source:     domain.TriggerSourceWebhook,
	})
	if HandleError(w, h.logger, err, "workflow not found") {
		return
	}

	Accepted(w, WebhookResponse{RunID: runID})
}

// ListExecutions возвращает записи runs.
// GET /api/v1/executions?workflow_id=&limit=
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	filter := repo.ExecutionFilter{WorkflowID: r.URL.Query().Get("workflow_id")}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			BadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = min(limit, 500)
	}

	records, err := h.executions.List(r.Context(), filter)
	if HandleError(w, h.logger, err, "") {
		return
	}

	result := make([]ExecutionSummary, len(records))
	for i := range records {
		result[i] = ExecutionSummaryFromDomain(&records[i])
	}

	List(w, result, len(result))
}

// GetExecution возвращает запись run.
// Активный run отдаётся из памяти, завершённый — из хранилища.
// GET /api/v1/executions/{runId}
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")

	for _, rec := range h.engine.Active().Snapshots() {
		if rec.RunID == runID {
			Success(w, ExecutionFromDomain(rec))
			return
		}
	}

	rec, err := h.executions.GetByID(r.Context(), runID)
	if HandleError(w, h.logger, err, "execution not found") {
		return
	}

	Success(w, ExecutionFromDomain(rec))
}

// ListActiveExecutions возвращает runs, которые выполняются сейчас.
// GET /api/v1/executions/active
func (h *Handler) ListActiveExecutions(w http.ResponseWriter, r *http.Request) {
	snapshots := h.engine.Active().Snapshots()

	result := make([]ExecutionSummary, len(snapshots))
	for i, rec := range snapshots {
		result[i] = ExecutionSummaryFromDomain(rec)
	}

	List(w, result, len(result))
}

// parsePayload декодирует тело webhook. Пустое тело — пустой объект.
func parsePayload(body []byte) (any, error) {
	if len(body) == 0 {
		return map[string]any{}, nil
	}
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
