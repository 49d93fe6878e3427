package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (5 полей, без секунд).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Ключи конфигурации schedule-триггера.
const (
	ConfigCron     = "cron"
	ConfigTimezone = "timezone"
)

// Spec — расписание, извлечённое из конфигурации schedule-триггера.
type Spec struct {
	Expr     string
	Timezone string
}

// SpecFromConfig извлекает расписание из конфигурации шага.
func SpecFromConfig(config map[string]any) Spec {
	var spec Spec
	if v, ok := config[ConfigCron].(string); ok {
		spec.Expr = strings.TrimSpace(v)
	}
	if v, ok := config[ConfigTimezone].(string); ok {
		spec.Timezone = strings.TrimSpace(v)
	}
	return spec
}

// Location возвращает timezone расписания. Пустой timezone — UTC.
func (s Spec) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// Validate проверяет выражение и timezone.
func (s Spec) Validate() error {
	if s.Expr == "" {
		return fmt.Errorf("cron expression is required")
	}
	if err := ValidateCronExpr(s.Expr); err != nil {
		return err
	}
	_, err := s.Location()
	return err
}

// Next вычисляет следующее время срабатывания после from.
// Учитывает timezone расписания, результат в UTC.
func (s Spec) Next(from time.Time) (time.Time, error) {
	loc, err := s.Location()
	if err != nil {
		return time.Time{}, err
	}
	return calculateNextCron(s.Expr, from.In(loc))
}

// calculateNextCron вычисляет следующее время по cron-выражению.
func calculateNextCron(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}

	next := schedule.Next(from)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("cron expression %q never fires", cronExpr)
	}
	return next.UTC(), nil
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	_, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}
