package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shaiso/flowgraph/internal/domain"
)

const (
	// Ключи конфигурации.
	configMappings   = "mappings"
	configMergeInput = "merge_input"
)

// TransformStep — шаг трансформации данных.
//
// Mappings рендерятся движком перед вызовом шага (Go templates),
// шаг собирает из них output. Строки, похожие на JSON, декодируются.
//
// Конфигурация:
//
//	{
//	    "mappings": {
//	        "total": "{{ len .Input.items }}",
//	        "first": "{{ json (index .Input.items 0) }}",
//	        "source": "{{ .Steps.fetch.status_code }}"
//	    },
//	    "merge_input": false
//	}
//
// Outputs: результаты mappings
//
//	{"total": 10, "first": {...}, "source": 200}
//
// Без mappings вход передаётся дальше без изменений.
type TransformStep struct{}

// NewTransformStep создаёт новый TransformStep.
func NewTransformStep() *TransformStep {
	return &TransformStep{}
}

// Kind возвращает ключ шага.
func (s *TransformStep) Kind() domain.Kind {
	return domain.Kind{Category: domain.CategoryAction, Subtype: domain.SubtypeTransform}
}

// Validate проверяет, что mappings — объект.
func (s *TransformStep) Validate(config map[string]any) []string {
	raw, ok := config[configMappings]
	if !ok || raw == nil {
		return nil
	}
	switch m := raw.(type) {
	case map[string]any:
		for key := range m {
			if strings.TrimSpace(key) == "" {
				return []string{"mapping keys must not be empty"}
			}
		}
		return nil
	case map[string]string:
		return nil
	default:
		return []string{"mappings must be an object"}
	}
}

// DefaultConfig возвращает пустые mappings.
func (s *TransformStep) DefaultConfig() map[string]any {
	return map[string]any{
		configMappings:   map[string]any{},
		configMergeInput: false,
	}
}

// Execute выполняет трансформацию данных.
func (s *TransformStep) Execute(ctx context.Context, ec *ExecContext) Result {
	if err := ctx.Err(); err != nil {
		return Fail("%v: %v", ErrStepCancelled, err)
	}
	if errs := s.Validate(ec.Config); len(errs) > 0 {
		return Fail("transform validation failed: %s", strings.Join(errs, ", "))
	}

	mappings := s.parseMappings(ec.Config)
	if len(mappings) == 0 {
		// Нет mappings — вход проходит без изменений
		if ec.Input == nil {
			return Ok(map[string]any{})
		}
		return Ok(ec.Input)
	}

	outputs := make(map[string]any, len(mappings))

	if GetConfigBool(ec.Config, configMergeInput, false) {
		in, ok := ec.Input.(map[string]any)
		if !ok && ec.Input != nil {
			return Fail("transform: merge_input requires object input, got %s", describeType(ec.Input))
		}
		for k, v := range in {
			outputs[k] = v
		}
	}

	for key, value := range mappings {
		if str, ok := value.(string); ok {
			outputs[key] = s.parseValue(str)
			continue
		}
		outputs[key] = value
	}

	return Ok(outputs)
}

// parseMappings извлекает mappings из конфигурации.
func (s *TransformStep) parseMappings(config map[string]any) map[string]any {
	switch m := config[configMappings].(type) {
	case map[string]any:
		return m
	case map[string]string:
		result := make(map[string]any, len(m))
		for key, val := range m {
			result[key] = val
		}
		return result
	default:
		return nil
	}
}

// parseValue пытается распарсить строку как JSON.
// Если не получается — возвращает строку как есть.
func (s *TransformStep) parseValue(value string) any {
	trimmed := strings.TrimSpace(value)

	// Пробуем как JSON object
	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		return obj
	}

	// Пробуем как JSON array
	var arr []any
	if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
		return arr
	}

	// Пробуем как JSON number
	var num json.Number
	if err := json.Unmarshal([]byte(trimmed), &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return i
		}
		if f, err := num.Float64(); err == nil {
			return f
		}
	}

	// Пробуем как JSON bool
	if trimmed == "true" {
		return true
	}
	if trimmed == "false" {
		return false
	}

	return value
}

// describeType — имя типа значения для сообщений об ошибках.
func describeType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
