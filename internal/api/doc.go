// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go           — Handler с зависимостями (хранилища, engine, trigger service)
//   - routes.go            — регистрация маршрутов /api/v1
//   - middleware.go        — middleware (logging, recovery)
//   - response.go          — JSON-ответы и преобразование ошибок в HTTP статусы
//   - dto.go               — Data Transfer Objects (request/response)
//   - workflow_handler.go  — /workflows: CRUD, validate, конфигурация шага
//   - execution_handler.go — execute, cancel, webhooks, /executions
//   - step_handler.go      — /steps: таблица шагов для редактора
package api
