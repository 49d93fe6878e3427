package steps

import (
	"context"
	"strings"

	"github.com/shaiso/flowgraph/internal/domain"
)

// Значения branch, которые выбирают исходящие связи по SourceHandle.
const (
	BranchTrue  = "true"
	BranchFalse = "false"
)

// IfGate — ветвление по условию.
//
// Конфигурация:
//
//	{"field": "user.name", "operator": "equals", "value": "John"}
//
// Outputs:
//
//	{
//	    "field": "user.name",
//	    "operator": "equals",
//	    "value": "John",
//	    "actualValue": "John",
//	    "conditionMet": true,
//	    "branch": "true",
//	    "data": <вход шага>
//	}
//
// Движок продолжает только по связям с SourceHandle == branch.
type IfGate struct{}

// NewIfGate создаёт новый IfGate.
func NewIfGate() *IfGate {
	return &IfGate{}
}

// Kind возвращает ключ шага.
func (s *IfGate) Kind() domain.Kind {
	return domain.Kind{Category: domain.CategoryLogic, Subtype: domain.SubtypeIf}
}

// Branching — if-gate выбирает ветку.
func (s *IfGate) Branching() bool {
	return true
}

// Validate проверяет поле, оператор и значение.
func (s *IfGate) Validate(config map[string]any) []string {
	_, errs := ParseCondition(config)
	return errs
}

// DefaultConfig возвращает пустое условие.
func (s *IfGate) DefaultConfig() map[string]any {
	return conditionDefaults()
}

// Execute вычисляет условие и выбирает ветку.
func (s *IfGate) Execute(_ context.Context, ec *ExecContext) Result {
	cond, errs := ParseCondition(ec.Config)
	if len(errs) > 0 {
		return Fail("if condition validation failed: %s", strings.Join(errs, ", "))
	}

	met, actual := cond.Evaluate(ec.Input)
	branch := BranchFalse
	if met {
		branch = BranchTrue
	}

	return Ok(map[string]any{
		"field":        cond.Field,
		"operator":     string(cond.Operator),
		"value":        cond.Value,
		"actualValue":  actual,
		"conditionMet": met,
		"branch":       branch,
		"data":         ec.Input,
	})
}
