package steps

import (
	"context"
	"net/http"
	"strings"

	"github.com/shaiso/flowgraph/internal/domain"
)

// Ключи конфигурации webhook.
const (
	configWebhookPath   = "path"
	configWebhookMethod = "method"
)

// WebhookTrigger — запуск workflow входящим webhook.
//
// Сам webhook принимает транспортный слой (API). Внутри графа шаг
// пропускает payload, с которого начался run, без изменений.
//
// Конфигурация (информационная, используется редактором):
//
//	{"path": "/orders", "method": "POST"}
type WebhookTrigger struct{}

// NewWebhookTrigger создаёт новый WebhookTrigger.
func NewWebhookTrigger() *WebhookTrigger {
	return &WebhookTrigger{}
}

// Kind возвращает ключ шага.
func (s *WebhookTrigger) Kind() domain.Kind {
	return domain.Kind{Category: domain.CategoryTrigger, Subtype: domain.SubtypeWebhook}
}

// Validate проверяет метод, если он задан.
func (s *WebhookTrigger) Validate(config map[string]any) []string {
	var errs []string
	if v, ok := config[configWebhookMethod]; ok && v != nil {
		method, _ := v.(string)
		switch strings.ToUpper(method) {
		case http.MethodPost, http.MethodPut, http.MethodGet:
		default:
			errs = append(errs, "method must be one of GET, POST, PUT")
		}
	}
	if v, ok := config[configWebhookPath]; ok && v != nil {
		if _, isString := v.(string); !isString {
			errs = append(errs, "path must be a string")
		}
	}
	return errs
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func (s *WebhookTrigger) DefaultConfig() map[string]any {
	return map[string]any{
		configWebhookMethod: http.MethodPost,
		configWebhookPath:   "",
	}
}

// Execute возвращает payload как есть.
func (s *WebhookTrigger) Execute(_ context.Context, ec *ExecContext) Result {
	if ec.Input == nil {
		return Ok(map[string]any{})
	}
	return Ok(ec.Input)
}
