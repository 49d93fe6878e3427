package steps

import (
	"context"
	"time"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/scheduler"
)

// inputScheduledTime — ключ seed input, который кладёт планировщик.
const inputScheduledTime = "scheduledTime"

// ScheduleTrigger — запуск по расписанию.
//
// Расписание обслуживает планировщик. Внутри графа шаг проверяет
// выражение и возвращает номинальное время срабатывания.
//
// Конфигурация:
//
//	{"cron": "0 9 * * 1-5", "timezone": "Europe/Moscow"}
//
// Outputs:
//
//	{
//	    "triggered": true,
//	    "triggeredBy": "nightly",
//	    "scheduledTime": "2024-01-01T09:00:00Z",
//	    "nextRun": "2024-01-02T09:00:00Z",
//	    "cron": "0 9 * * 1-5"
//	}
type ScheduleTrigger struct {
	now func() time.Time
}

// NewScheduleTrigger создаёт новый ScheduleTrigger.
func NewScheduleTrigger() *ScheduleTrigger {
	return &ScheduleTrigger{now: time.Now}
}

// Kind возвращает ключ шага.
func (s *ScheduleTrigger) Kind() domain.Kind {
	return domain.Kind{Category: domain.CategoryTrigger, Subtype: domain.SubtypeSchedule}
}

// Validate проверяет cron-выражение и timezone.
func (s *ScheduleTrigger) Validate(config map[string]any) []string {
	if err := scheduler.SpecFromConfig(config).Validate(); err != nil {
		return []string{err.Error()}
	}
	return nil
}

// DefaultConfig возвращает ежечасное расписание.
func (s *ScheduleTrigger) DefaultConfig() map[string]any {
	return map[string]any{
		scheduler.ConfigCron:     "0 * * * *",
		scheduler.ConfigTimezone: "UTC",
	}
}

// Execute возвращает номинальное время срабатывания.
func (s *ScheduleTrigger) Execute(_ context.Context, ec *ExecContext) Result {
	spec := scheduler.SpecFromConfig(ec.Config)
	if err := spec.Validate(); err != nil {
		return Fail("schedule trigger: %v", err)
	}

	fired := s.scheduledTime(ec.Input)
	next, err := spec.Next(fired)
	if err != nil {
		return Fail("schedule trigger: %v", err)
	}

	return Ok(map[string]any{
		"triggered":     true,
		"triggeredBy":   ec.NodeID,
		"scheduledTime": fired.UTC().Format(time.RFC3339),
		"nextRun":       next.Format(time.RFC3339),
		"cron":          spec.Expr,
	})
}

// scheduledTime берёт время из seed input или текущее время.
func (s *ScheduleTrigger) scheduledTime(input any) time.Time {
	if m, ok := input.(map[string]any); ok {
		if raw, ok := m[inputScheduledTime].(string); ok {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				return t
			}
		}
	}
	return s.now()
}
