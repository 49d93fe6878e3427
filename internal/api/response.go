package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/engine"
	"github.com/shaiso/flowgraph/internal/repo"
	"github.com/shaiso/flowgraph/internal/trigger"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInvalidState  ErrorCode = "INVALID_STATE"
	ErrCodeUnavailable   ErrorCode = "UNAVAILABLE"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — конверт ошибки: {"error": {"code": ..., "message": ...}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — конверт успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — конверт списка. Пагинации нет, Total равен len(Data).
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total"`
}

// JSON пишет status и data в JSON.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("encode response", "error", err)
	}
}

// Success — 200 с {"data": ...}.
func Success(w http.ResponseWriter, data any) { JSON(w, http.StatusOK, DataResponse{Data: data}) }

// Created — 201 с {"data": ...}.
func Created(w http.ResponseWriter, data any) { JSON(w, http.StatusCreated, DataResponse{Data: data}) }

// Accepted — 202: запрос принят, результат будет позже.
func Accepted(w http.ResponseWriter, data any) { JSON(w, http.StatusAccepted, DataResponse{Data: data}) }

// NoContent — 204 без тела.
func NoContent(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) }

// List — 200 со списком и его длиной.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error пишет конверт ошибки.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// BadRequest — 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound — 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// errorMapping связывает sentinel ошибку с HTTP ответом.
// Пустой message означает текст самой ошибки.
type errorMapping struct {
	targets []error
	status  int
	code    ErrorCode
	message string
}

// errorMappings проверяются по порядку, первое совпадение выигрывает.
var errorMappings = []errorMapping{
	{
		targets: []error{trigger.ErrWorkflowNotFound},
		status:  http.StatusNotFound,
		code:    ErrCodeNotFound,
		message: "workflow not found",
	},
	{
		targets: []error{repo.ErrAlreadyExists},
		status:  http.StatusConflict,
		code:    ErrCodeConflict,
	},
	{
		targets: []error{engine.ErrRunAlreadyActive},
		status:  http.StatusConflict,
		code:    ErrCodeConflict,
		message: "workflow already has an active run",
	},
	{
		targets: []error{trigger.ErrWorkflowInactive, trigger.ErrNoWebhookTrigger},
		status:  http.StatusUnprocessableEntity,
		code:    ErrCodeInvalidState,
	},
	{
		targets: []error{
			domain.ErrEmptyPath,
			domain.ErrEmptyPathSegment,
			domain.ErrReservedPathSegment,
			domain.ErrPathNotObject,
			trigger.ErrMissingWorkflowID,
			repo.ErrMissingID,
		},
		status: http.StatusBadRequest,
		code:   ErrCodeBadRequest,
	},
	{
		targets: []error{trigger.ErrServiceStopped},
		status:  http.StatusServiceUnavailable,
		code:    ErrCodeUnavailable,
	},
}

// HandleError пишет ответ для ошибки хранилища, движка или trigger service.
// repo.ErrNotFound отдаётся как 404 с notFoundMsg, неизвестные ошибки
// логируются и скрываются за 500. Возвращает false, если err == nil.
func HandleError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, repo.ErrNotFound) {
		NotFound(w, notFoundMsg)
		return true
	}

	for _, m := range errorMappings {
		for _, target := range m.targets {
			if !errors.Is(err, target) {
				continue
			}
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			Error(w, m.status, m.code, msg)
			return true
		}
	}

	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
	return true
}

// decodeJSON читает тело запроса. Пустое тело допустимо, если allowEmpty.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if allowEmpty && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
