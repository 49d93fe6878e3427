package steps

import (
	"context"
	"reflect"
	"sort"
	"strings"

	"github.com/shaiso/flowgraph/internal/domain"
)

// FilterGate — фильтрация массива по условию.
//
// Вход — массив или объект, в котором есть свойство-массив
// (берётся первое по алфавиту имени). Любой другой вход — ошибка.
//
// Конфигурация:
//
//	{"field": "status", "operator": "equals", "value": "active"}
//
// Outputs:
//
//	{
//	    "originalCount": 3,
//	    "filteredCount": 2,
//	    "filteredItems": [...],
//	    "field": "status",
//	    "operator": "equals",
//	    "value": "active"
//	}
type FilterGate struct{}

// NewFilterGate создаёт новый FilterGate.
func NewFilterGate() *FilterGate {
	return &FilterGate{}
}

// Kind возвращает ключ шага.
func (s *FilterGate) Kind() domain.Kind {
	return domain.Kind{Category: domain.CategoryLogic, Subtype: domain.SubtypeFilter}
}

// Validate проверяет поле, оператор и значение.
func (s *FilterGate) Validate(config map[string]any) []string {
	_, errs := ParseCondition(config)
	return errs
}

// DefaultConfig возвращает пустое условие.
func (s *FilterGate) DefaultConfig() map[string]any {
	return conditionDefaults()
}

// Execute отбирает элементы, для которых условие истинно.
func (s *FilterGate) Execute(_ context.Context, ec *ExecContext) Result {
	cond, errs := ParseCondition(ec.Config)
	if len(errs) > 0 {
		return Fail("filter validation failed: %s", strings.Join(errs, ", "))
	}

	items, ok := extractItems(ec.Input)
	if !ok {
		return Fail("input must be an array")
	}

	filtered := make([]any, 0, len(items))
	for _, item := range items {
		if met, _ := cond.Evaluate(item); met {
			filtered = append(filtered, item)
		}
	}

	return Ok(map[string]any{
		"originalCount": len(items),
		"filteredCount": len(filtered),
		"filteredItems": filtered,
		"field":         cond.Field,
		"operator":      string(cond.Operator),
		"value":         cond.Value,
	})
}

// extractItems достаёт массив из входа.
func extractItems(input any) ([]any, bool) {
	if items, ok := asSlice(input); ok {
		return items, true
	}

	obj, ok := input.(map[string]any)
	if !ok {
		return nil, false
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if items, ok := asSlice(obj[k]); ok {
			return items, true
		}
	}
	return nil, false
}

// asSlice приводит любой срез или массив к []any.
func asSlice(v any) ([]any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case []any:
		return x, true
	case []byte:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
