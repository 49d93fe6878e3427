package steps

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shaiso/flowgraph/internal/domain"
)

// Ошибки шагов.
var (
	// ErrStepNotFound — комбинация category × subtype не зарегистрирована.
	ErrStepNotFound = errors.New("step kind not registered")

	// ErrUnknownKind — комбинация category × subtype недопустима.
	ErrUnknownKind = errors.New("unknown step kind")

	// ErrMissingValidator — определение без валидатора.
	ErrMissingValidator = errors.New("step definition has no validator")

	// ErrMissingDefaults — определение без фабрики конфигурации по умолчанию.
	ErrMissingDefaults = errors.New("step definition has no default config factory")

	// ErrMissingHandler — определение без обработчика.
	ErrMissingHandler = errors.New("step definition has no handler")

	// ErrInvalidConfig — невалидная конфигурация шага.
	ErrInvalidConfig = errors.New("invalid step config")

	// ErrStepCancelled — выполнение шага отменено.
	ErrStepCancelled = errors.New("step execution cancelled")
)

// Handler — исполнитель шага.
//
// Execute никогда не паникует наружу и не возвращает error:
// все предсказуемые ошибки возвращаются как Result{Success: false}.
// Обработчик сам отвечает за таймауты своих операций ввода-вывода.
type Handler interface {
	Execute(ctx context.Context, ec *ExecContext) Result
}

// HandlerFunc — адаптер функции к Handler.
type HandlerFunc func(ctx context.Context, ec *ExecContext) Result

// Execute вызывает f(ctx, ec).
func (f HandlerFunc) Execute(ctx context.Context, ec *ExecContext) Result {
	return f(ctx, ec)
}

// Validator — проверка конфигурации шага.
// Возвращает человекочитаемые ошибки, пустой список означает валидную конфигурацию.
type Validator func(config map[string]any) []string

// Step — тип шага: валидация, конфигурация по умолчанию и исполнение.
type Step interface {
	Handler

	// Kind возвращает пару (category, subtype), под которой шаг регистрируется.
	Kind() domain.Kind

	// Validate проверяет конфигурацию.
	Validate(config map[string]any) []string

	// DefaultConfig возвращает конфигурацию нового шага в редакторе.
	DefaultConfig() map[string]any
}

// ExecContext — данные одного вызова шага.
type ExecContext struct {
	// NodeID — идентификатор шага в графе.
	NodeID string

	// WorkflowID и RunID — текущий workflow и run.
	WorkflowID string
	RunID      string

	// Config — конфигурация шага (уже отрендеренная).
	Config map[string]any

	// Input — вход шага: seed input, output единственного предшественника
	// или объект outputs нескольких предшественников.
	Input any

	// Upstream — шаги, уже выполненные в этом run, в порядке завершения.
	Upstream []string
}

// Result — результат выполнения шага.
type Result struct {
	Success bool   `json:"success"`
	Output  any    `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ok возвращает успешный результат.
func Ok(output any) Result {
	return Result{Success: true, Output: output}
}

// Fail возвращает неуспешный результат с форматированным сообщением.
func Fail(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// FailErr возвращает неуспешный результат из error.
func FailErr(err error) Result {
	if err == nil {
		return Result{Success: false, Error: "unknown error"}
	}
	return Result{Success: false, Error: err.Error()}
}

// GetConfigString извлекает строковое значение из конфига.
func GetConfigString(config map[string]any, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetConfigInt извлекает числовое значение из конфига.
// Строки с числом тоже принимаются: после рендеринга шаблона число приходит строкой.
func GetConfigInt(config map[string]any, key string) int {
	if v, ok := config[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				return i
			}
		}
	}
	return 0
}

// GetConfigBool извлекает булево значение из конфига.
func GetConfigBool(config map[string]any, key string, defaultVal bool) bool {
	if v, ok := config[key]; ok {
		switch b := v.(type) {
		case bool:
			return b
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed
			}
		}
	}
	return defaultVal
}

// GetConfigMap извлекает map из конфига.
func GetConfigMap(config map[string]any, key string) map[string]any {
	if v, ok := config[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// GetConfigMapString извлекает map[string]string из конфига.
func GetConfigMapString(config map[string]any, key string) map[string]string {
	if v, ok := config[key]; ok {
		switch m := v.(type) {
		case map[string]string:
			return m
		case map[string]any:
			result := make(map[string]string)
			for k, val := range m {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}

// GetConfigStrings извлекает список строк: массив или строку через запятую.
func GetConfigStrings(config map[string]any, key string) []string {
	var raw []string
	switch v := config[key].(type) {
	case string:
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}

	result := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			result = append(result, s)
		}
	}
	return result
}
