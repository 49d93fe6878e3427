package trigger

import "errors"

// Ошибки приёма запросов на запуск.
var (
	// ErrWorkflowNotFound — workflow не найден в хранилище.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowInactive — неактивный workflow запущен не вручную.
	ErrWorkflowInactive = errors.New("workflow is not active")

	// ErrNoWebhookTrigger — у workflow нет webhook триггера.
	ErrNoWebhookTrigger = errors.New("workflow has no webhook trigger")

	// ErrMissingWorkflowID — в запросе не указан workflow.
	ErrMissingWorkflowID = errors.New("workflow id is required")

	// ErrServiceStopped — сервис остановлен и новые runs не принимает.
	ErrServiceStopped = errors.New("trigger service stopped")
)
