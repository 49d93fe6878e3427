package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		RequestID(),
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Workflows
	mux.Handle("GET /api/v1/workflows", chain(http.HandlerFunc(h.ListWorkflows)))
	mux.Handle("POST /api/v1/workflows", chain(http.HandlerFunc(h.CreateWorkflow)))
	mux.Handle("GET /api/v1/workflows/{id}", chain(http.HandlerFunc(h.GetWorkflow)))
	mux.Handle("PUT /api/v1/workflows/{id}", chain(http.HandlerFunc(h.UpdateWorkflow)))
	mux.Handle("DELETE /api/v1/workflows/{id}", chain(http.HandlerFunc(h.DeleteWorkflow)))
	mux.Handle("POST /api/v1/workflows/{id}/validate", chain(http.HandlerFunc(h.ValidateWorkflow)))
	mux.Handle("PATCH /api/v1/workflows/{id}/nodes/{nodeId}/config", chain(http.HandlerFunc(h.UpdateNodeConfig)))

	// Runs
	mux.Handle("POST /api/v1/workflows/{id}/execute", chain(http.HandlerFunc(h.ExecuteWorkflow)))
	mux.Handle("POST /api/v1/workflows/{id}/cancel", chain(http.HandlerFunc(h.CancelWorkflow)))
	mux.Handle("POST /api/v1/webhooks/{id}", chain(http.HandlerFunc(h.Webhook)))

	// Executions
	mux.Handle("GET /api/v1/executions", chain(http.HandlerFunc(h.ListExecutions)))
	mux.Handle("GET /api/v1/executions/active", chain(http.HandlerFunc(h.ListActiveExecutions)))
	mux.Handle("GET /api/v1/executions/{runId}", chain(http.HandlerFunc(h.GetExecution)))

	// Steps
	mux.Handle("GET /api/v1/steps", chain(http.HandlerFunc(h.ListSteps)))
}
