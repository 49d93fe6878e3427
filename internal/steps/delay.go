package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/flowgraph/internal/domain"
)

const (
	// Ключи конфигурации delay.
	configDurationSec = "duration_sec"
	configDurationMs  = "duration_ms"

	// maxDelay — верхняя граница задержки.
	maxDelay = time.Hour
)

// DelayStep — шаг задержки.
//
// Приостанавливает выполнение на указанное время и передаёт вход дальше.
// Отмена контекста прерывает ожидание.
//
// Конфигурация:
//
//	{
//	    "duration_sec": 10,    // задержка в секундах
//	    // или
//	    "duration_ms": 5000    // задержка в миллисекундах
//	}
//
// Outputs:
//
//	{"duration_ms": 5000, "data": <вход шага>}
type DelayStep struct{}

// NewDelayStep создаёт новый DelayStep.
func NewDelayStep() *DelayStep {
	return &DelayStep{}
}

// Kind возвращает ключ шага.
func (s *DelayStep) Kind() domain.Kind {
	return domain.Kind{Category: domain.CategoryAction, Subtype: domain.SubtypeDelay}
}

// Validate проверяет длительность.
func (s *DelayStep) Validate(config map[string]any) []string {
	if _, err := s.parseDuration(config); err != nil {
		return []string{err.Error()}
	}
	return nil
}

// DefaultConfig возвращает задержку в одну секунду.
func (s *DelayStep) DefaultConfig() map[string]any {
	return map[string]any{configDurationMs: 1000}
}

// Execute выполняет задержку.
func (s *DelayStep) Execute(ctx context.Context, ec *ExecContext) Result {
	duration, err := s.parseDuration(ec.Config)
	if err != nil {
		return Fail("%v: %v", ErrInvalidConfig, err)
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Fail("%v: %v", ErrStepCancelled, ctx.Err())
	case <-timer.C:
		output := map[string]any{
			"duration_ms": duration.Milliseconds(),
		}
		if ec.Input != nil {
			output["data"] = ec.Input
		}
		return Ok(output)
	}
}

// parseDuration извлекает длительность из конфигурации.
func (s *DelayStep) parseDuration(config map[string]any) (time.Duration, error) {
	var duration time.Duration

	if sec := GetConfigInt(config, configDurationSec); sec > 0 {
		duration = time.Duration(sec) * time.Second
	} else if ms := GetConfigInt(config, configDurationMs); ms > 0 {
		duration = time.Duration(ms) * time.Millisecond
	}

	if duration <= 0 {
		return 0, fmt.Errorf("duration_sec or duration_ms must be a positive number")
	}
	if duration > maxDelay {
		return 0, fmt.Errorf("delay must not exceed %s", maxDelay)
	}
	return duration, nil
}
