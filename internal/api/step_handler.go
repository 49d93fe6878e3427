package api

import "net/http"

// ListSteps возвращает зарегистрированные шаги.
// GET /api/v1/steps
func (h *Handler) ListSteps(w http.ResponseWriter, r *http.Request) {
	defs := h.engine.Registry().Definitions()

	result := make([]StepResponse, len(defs))
	for i, def := range defs {
		result[i] = StepFromDefinition(def)
	}

	List(w, result, len(result))
}
