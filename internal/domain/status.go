package domain

// ExecutionStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	running → completed
//	        ↘ failed
//	        ↘ cancelled
//
// Из финального статуса переходов нет.
type ExecutionStatus string

const (
	// ExecutionRunning — run выполняется.
	ExecutionRunning ExecutionStatus = "running"

	// ExecutionCompleted — все достижимые шаги выполнены успешно.
	ExecutionCompleted ExecutionStatus = "completed"

	// ExecutionFailed — один из шагов упал, run остановлен.
	ExecutionFailed ExecutionStatus = "failed"

	// ExecutionCancelled — run остановлен через stop() или отмену контекста.
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionFailed, ExecutionCancelled:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление статуса.
func (s ExecutionStatus) String() string {
	return string(s)
}

// LogLevel — уровень записи журнала выполнения.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)
