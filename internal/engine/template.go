package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/template"
)

// TemplateData — данные, доступные в шаблонах конфигурации шага:
//   - {{ .Input.field }}          — вход шага
//   - {{ .Steps.node_id.field }}  — output уже выполненного шага
//   - {{ .Vars.name }}            — переменные workflow
//   - {{ .Env.NAME }}             — переменные окружения с префиксом
type TemplateData struct {
	Input any               `json:"input"`
	Steps map[string]any    `json:"steps"`
	Vars  map[string]any    `json:"vars"`
	Env   map[string]string `json:"env"`
}

// NewTemplateData создаёт данные шаблона с входом шага и пустыми картами.
func NewTemplateData(input any) *TemplateData {
	return &TemplateData{
		Input: input,
		Steps: make(map[string]any),
		Vars:  make(map[string]any),
		Env:   make(map[string]string),
	}
}

// EnvFromProcess возвращает переменные окружения процесса с префиксом prefix.
// Префикс из имени убирается: FLOWGRAPH_VAR_TOKEN → TOKEN.
func EnvFromProcess(prefix string) map[string]string {
	env := make(map[string]string)
	if prefix == "" {
		return env
	}
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		if name := strings.TrimPrefix(key, prefix); name != "" {
			env[name] = value
		}
	}
	return env
}

// templateCacheLimit — сколько разобранных шаблонов держит Renderer.
// При переполнении кэш сбрасывается целиком.
const templateCacheLimit = 512

// Renderer рендерит конфигурацию шагов через text/template.
//
// Разобранные шаблоны кэшируются по тексту: один workflow выполняется
// многократно с теми же конфигурациями. Renderer безопасен
// для конкурентного использования.
type Renderer struct {
	funcs template.FuncMap

	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewRenderer создаёт Renderer со стандартным набором функций.
func NewRenderer() *Renderer {
	return &Renderer{
		funcs: templateFuncs(),
		cache: make(map[string]*template.Template),
	}
}

// defaultRenderer используется функциями Render, RenderValue и RenderConfig.
var defaultRenderer = NewRenderer()

// compile возвращает разобранный шаблон из кэша или разбирает его.
func (r *Renderer) compile(text string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.cache[text]; ok {
		return t, nil
	}

	t, err := template.New("config").Option("missingkey=error").Funcs(r.funcs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	if len(r.cache) >= templateCacheLimit {
		clear(r.cache)
	}
	r.cache[text] = t
	return t, nil
}

// String рендерит одну строку. Строка без "{{" возвращается как есть.
func (r *Renderer) String(text string, data *TemplateData) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	t, err := r.compile(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return buf.String(), nil
}

// Value рендерит строки внутри произвольного значения.
// Вложенные map и slice обходятся рекурсивно, остальные типы не меняются.
func (r *Renderer) Value(value any, data *TemplateData) (any, error) {
	renderAny := func(v any) (any, error) { return r.Value(v, data) }
	renderString := func(s string) (string, error) { return r.String(s, data) }

	switch v := value.(type) {
	case string:
		return r.String(v, data)
	case map[string]any:
		return renderEntries(v, renderAny)
	case []any:
		return renderEach(v, renderAny)
	case map[string]string:
		return renderEntries(v, renderString)
	case []string:
		return renderEach(v, renderString)
	default:
		return value, nil
	}
}

// Config рендерит конфигурацию шага. nil даёт пустую карту.
func (r *Renderer) Config(config map[string]any, data *TemplateData) (map[string]any, error) {
	if config == nil {
		return make(map[string]any), nil
	}
	return renderEntries(config, func(v any) (any, error) { return r.Value(v, data) })
}

func renderEntries[T any](m map[string]T, render func(T) (T, error)) (map[string]T, error) {
	out := make(map[string]T, len(m))
	for key, val := range m {
		rendered, err := render(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = rendered
	}
	return out, nil
}

func renderEach[T any](items []T, render func(T) (T, error)) ([]T, error) {
	out := make([]T, len(items))
	for i, val := range items {
		rendered, err := render(val)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = rendered
	}
	return out, nil
}

// Render рендерит строку шаблона:
//
//	{{ .Input.user.email }}
//	{{ .Steps.fetch.body }}
//	{{ if .Steps.check.conditionMet }}...{{ end }}
//
// Отсутствующий ключ карты даёт ErrTemplateRender. Необязательные ключи
// читаются через index: {{ default "n/a" (index .Input "note") }}.
func Render(text string, data *TemplateData) (string, error) {
	return defaultRenderer.String(text, data)
}

// RenderValue рендерит строки внутри значения.
func RenderValue(value any, data *TemplateData) (any, error) {
	return defaultRenderer.Value(value, data)
}

// RenderConfig рендерит конфигурацию шага.
func RenderConfig(config map[string]any, data *TemplateData) (map[string]any, error) {
	return defaultRenderer.Config(config, data)
}

// templateFuncs возвращает функции, доступные в шаблонах.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// json и toJSON сериализуют значение, ошибка прерывает рендеринг
		"json":   toJSON,
		"toJSON": toJSON,

		"fromJSON": func(s string) (any, error) {
			var v any
			if err := json.Unmarshal([]byte(s), &v); err != nil {
				return nil, err
			}
			return v, nil
		},

		// default "x" .Input.name — "x", если значение пустое
		"default": func(def, val any) any {
			if isBlank(val) {
				return def
			}
			return val
		},

		"coalesce": func(values ...any) any {
			for _, v := range values {
				if !isBlank(v) {
					return v
				}
			}
			return nil
		},

		"join": func(sep string, items []string) string {
			return strings.Join(items, sep)
		},
		"split": func(sep, s string) []string {
			return strings.Split(s, sep)
		},

		"contains":  strings.Contains,
		"hasPrefix": strings.HasPrefix,
		"hasSuffix": strings.HasSuffix,
		"lower":     strings.ToLower,
		"upper":     strings.ToUpper,
		"trim":      strings.TrimSpace,
		"replace":   strings.ReplaceAll,
	}
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// isBlank — nil или пустая строка.
func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
