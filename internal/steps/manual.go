package steps

import (
	"context"
	"time"

	"github.com/shaiso/flowgraph/internal/domain"
)

// ManualTrigger — ручной запуск workflow.
//
// Конфигурация не требуется. Всегда успешен.
//
// Outputs:
//
//	{
//	    "triggered": true,
//	    "triggeredBy": "start",            // ID шага
//	    "triggeredAt": "2024-01-01T00:00:00Z",
//	    "data": {...}                      // seed input, если был передан
//	}
type ManualTrigger struct {
	now func() time.Time
}

// NewManualTrigger создаёт новый ManualTrigger.
func NewManualTrigger() *ManualTrigger {
	return &ManualTrigger{now: time.Now}
}

// Kind возвращает ключ шага.
func (s *ManualTrigger) Kind() domain.Kind {
	return domain.Kind{Category: domain.CategoryTrigger, Subtype: domain.SubtypeManual}
}

// Validate — у ручного триггера нет обязательной конфигурации.
func (s *ManualTrigger) Validate(map[string]any) []string {
	return nil
}

// DefaultConfig возвращает пустую конфигурацию.
func (s *ManualTrigger) DefaultConfig() map[string]any {
	return map[string]any{}
}

// Execute фиксирует факт запуска.
func (s *ManualTrigger) Execute(_ context.Context, ec *ExecContext) Result {
	output := map[string]any{
		"triggered":   true,
		"triggeredBy": ec.NodeID,
		"triggeredAt": s.now().UTC().Format(time.RFC3339Nano),
	}
	if !isEmptyValue(ec.Input) {
		output["data"] = ec.Input
	}
	return Ok(output)
}

// isEmptyValue — nil или пустой объект.
func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(x) == 0
	default:
		return false
	}
}
