package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/engine"
)

// ListWorkflows возвращает список workflows.
// GET /api/v1/workflows
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := h.workflows.List(r.Context())
	if HandleError(w, h.logger, err, "") {
		return
	}

	result := make([]WorkflowSummary, len(workflows))
	for i, wf := range workflows {
		result[i] = WorkflowSummaryFromDomain(wf)
	}

	List(w, result, len(result))
}

// CreateWorkflow создаёт новый workflow.
// POST /api/v1/workflows
func (h *Handler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkflowRequest
	if err := decodeJSON(r, &req, false); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		BadRequest(w, "name is required")
		return
	}

	wf := &domain.Workflow{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
		Variables:   req.Variables,
		IsActive:    req.IsActive,
	}
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	if msg, ok := normalizeGraph(wf); !ok {
		BadRequest(w, msg)
		return
	}

	if HandleError(w, h.logger, h.workflows.Create(r.Context(), wf), "") {
		return
	}

	h.logger.Info("workflow created", "workflow_id", wf.ID, "nodes", len(wf.Nodes))
	Created(w, wf)
}

// GetWorkflow возвращает workflow по ID.
// GET /api/v1/workflows/{id}
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := h.workflows.GetByID(r.Context(), r.PathValue("id"))
	if HandleError(w, h.logger, err, "workflow not found") {
		return
	}

	Success(w, wf)
}

// UpdateWorkflow обновляет workflow.
// PUT /api/v1/workflows/{id}
func (h *Handler) UpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req UpdateWorkflowRequest
	if err := decodeJSON(r, &req, false); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	wf, err := h.workflows.GetByID(r.Context(), r.PathValue("id"))
	if HandleError(w, h.logger, err, "workflow not found") {
		return
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			BadRequest(w, "name must not be empty")
			return
		}
		wf.Name = *req.Name
	}
	if req.Description != nil {
		wf.Description = *req.Description
	}
	if req.Nodes != nil {
		wf.Nodes = *req.Nodes
	}
	if req.Edges != nil {
		wf.Edges = *req.Edges
	}
	if req.Variables != nil {
		wf.Variables = *req.Variables
	}
	if req.IsActive != nil {
		wf.IsActive = *req.IsActive
	}
	if msg, ok := normalizeGraph(wf); !ok {
		BadRequest(w, msg)
		return
	}

	if HandleError(w, h.logger, h.workflows.Update(r.Context(), wf), "workflow not found") {
		return
	}

	Success(w, wf)
}

// DeleteWorkflow удаляет workflow.
// DELETE /api/v1/workflows/{id}
func (h *Handler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if HandleError(w, h.logger, h.workflows.Delete(r.Context(), id), "workflow not found") {
		return
	}

	// Активный run удалённого workflow больше не нужен
	h.engine.Cancel(id)

	NoContent(w)
}

// ValidateWorkflow проверяет сохранённый workflow по реестру шагов.
// POST /api/v1/workflows/{id}/validate
func (h *Handler) ValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := h.workflows.GetByID(r.Context(), r.PathValue("id"))
	if HandleError(w, h.logger, err, "workflow not found") {
		return
	}

	Success(w, ValidationFromErrors(h.engine.Validate(wf)))
}

// UpdateNodeConfig записывает значение по пути в конфигурацию шага.
// PATCH /api/v1/workflows/{id}/nodes/{nodeId}/config
func (h *Handler) UpdateNodeConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateNodeConfigRequest
	if err := decodeJSON(r, &req, false); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	wf, err := h.workflows.GetByID(r.Context(), r.PathValue("id"))
	if HandleError(w, h.logger, err, "workflow not found") {
		return
	}

	node, ok := wf.Node(r.PathValue("nodeId"))
	if !ok {
		NotFound(w, "node not found")
		return
	}

	config, err := domain.SetConfigPath(node.Config, req.Path, req.Value)
	if HandleError(w, h.logger, err, "") {
		return
	}
	node.Config = config

	if HandleError(w, h.logger, h.workflows.Update(r.Context(), wf), "workflow not found") {
		return
	}

	Success(w, node)
}

// normalizeGraph заполняет пустые ID связей и конфигурации шагов
// и проверяет, что из workflow можно построить граф.
func normalizeGraph(wf *domain.Workflow) (string, bool) {
	if wf.Nodes == nil {
		wf.Nodes = []domain.Node{}
	}
	if wf.Edges == nil {
		wf.Edges = []domain.Edge{}
	}
	for i := range wf.Nodes {
		if wf.Nodes[i].Config == nil {
			wf.Nodes[i].Config = map[string]any{}
		}
	}
	for i := range wf.Edges {
		if wf.Edges[i].ID == "" {
			wf.Edges[i].ID = uuid.NewString()
		}
	}

	if _, err := engine.NewGraph(wf); err != nil {
		return err.Error(), false
	}
	return "", true
}
