package steps

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Operator — оператор сравнения в условиях if/filter.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"
)

// operators — поддерживаемые операторы в порядке вывода в сообщениях.
var operators = []Operator{OpEquals, OpNotEquals, OpContains, OpGreaterThan, OpLessThan}

// Ключи конфигурации условия.
const (
	configField    = "field"
	configOperator = "operator"
	configValue    = "value"
)

// Condition — условие вида "<field> <operator> <value>".
type Condition struct {
	// Field — путь через точку: "user.profile.role", "items.0.id".
	Field string

	Operator Operator

	// Value — значение для сравнения, сравнивается в строковом виде.
	Value any
}

// ParseCondition извлекает условие из конфигурации и проверяет его.
func ParseCondition(config map[string]any) (Condition, []string) {
	cond := Condition{
		Field:    strings.TrimSpace(GetConfigString(config, configField)),
		Operator: Operator(strings.TrimSpace(GetConfigString(config, configOperator))),
		Value:    config[configValue],
	}

	var errs []string
	if cond.Field == "" {
		errs = append(errs, "field is required")
	}
	switch {
	case cond.Operator == "":
		errs = append(errs, "operator is required")
	case !isKnownOperator(cond.Operator):
		errs = append(errs, fmt.Sprintf("unsupported operator %q (expected one of %s)",
			cond.Operator, operatorList()))
	}
	if cond.Value == nil {
		errs = append(errs, "value is required")
	}

	return cond, errs
}

// Evaluate проверяет условие на значении item.
//
// Возвращает результат и фактическое значение поля (nil, если поля нет).
// Отсутствующее поле не является ошибкой: equals, contains, greaterThan
// и lessThan для него ложны, notEquals истинен. JSON null сравнивается
// как строка "null".
func (c Condition) Evaluate(item any) (bool, any) {
	field := lookupField(item, c.Field)
	if !field.Exists() {
		return c.Operator == OpNotEquals, nil
	}
	return compare(c.Operator, resultString(field), stringify(c.Value)), field.Value()
}

// lookupField возвращает значение по пути через точку.
func lookupField(item any, path string) gjson.Result {
	if item == nil || path == "" {
		return gjson.Result{}
	}
	data, err := json.Marshal(item)
	if err != nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(data, escapePath(path))
}

// escapePath экранирует спецсимволы gjson в каждом сегменте,
// чтобы путь читался буквально: только точка разделяет сегменты.
func escapePath(path string) string {
	segments := strings.Split(path, ".")
	for i, segment := range segments {
		var b strings.Builder
		for _, r := range segment {
			switch r {
			case '\\', '*', '?', '|', '#', '@', '!', '=', '<', '>', '%', '(', ')', '[', ']', '{', '}', ',', ':':
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		segments[i] = b.String()
	}
	return strings.Join(segments, ".")
}

// compare применяет оператор к строковым операндам.
func compare(op Operator, actual, expected string) bool {
	switch op {
	case OpEquals:
		return actual == expected
	case OpNotEquals:
		return actual != expected
	case OpContains:
		return strings.Contains(strings.ToLower(actual), strings.ToLower(expected))
	case OpGreaterThan:
		return order(actual, expected) > 0
	case OpLessThan:
		return order(actual, expected) < 0
	default:
		return false
	}
}

// order сравнивает операнды как числа, если оба разбираются,
// иначе лексически.
func order(a, b string) int {
	af, aOK := parseNumber(a)
	bf, bOK := parseNumber(b)
	if aOK && bOK {
		switch {
		case af > bf:
			return 1
		case af < bf:
			return -1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// parseNumber разбирает конечное число.
func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// resultString приводит найденное значение к строке.
func resultString(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	case gjson.Number:
		return canonicalNumber(r.Raw)
	default:
		return r.Raw
	}
}

// canonicalNumber записывает число без экспоненты, чтобы 1e-07 и 0.0000001
// совпадали при сравнении строк. Целые сохраняют точность.
func canonicalNumber(raw string) string {
	if _, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return raw
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// stringify приводит значение из конфигурации к строке.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return canonicalNumber(x.String())
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}

// isKnownOperator проверяет оператор.
func isKnownOperator(op Operator) bool {
	for _, known := range operators {
		if op == known {
			return true
		}
	}
	return false
}

// operatorList — операторы через запятую.
func operatorList() string {
	names := make([]string, len(operators))
	for i, op := range operators {
		names[i] = string(op)
	}
	return strings.Join(names, ", ")
}

// conditionDefaults — конфигурация условия по умолчанию.
func conditionDefaults() map[string]any {
	return map[string]any{
		configField:    "",
		configOperator: string(OpEquals),
		configValue:    "",
	}
}
