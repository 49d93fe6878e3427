package domain

import "time"

// LogEntry — запись журнала выполнения.
type LogEntry struct {
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	NodeID    string         `json:"node_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// ExecutionRecord — результат одного run.
//
// Создаётся в статусе running в момент старта, изменяется только
// владеющим Executor и становится неизменяемым после перехода
// в финальный статус.
type ExecutionRecord struct {
	// RunID — уникальный идентификатор run.
	RunID string `json:"run_id"`

	// WorkflowID — workflow, который выполнялся.
	WorkflowID string `json:"workflow_id"`

	// Status — текущий статус.
	Status ExecutionStatus `json:"status"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error — ошибка шага, из-за которой run завершился с failed.
	Error string `json:"error,omitempty"`

	// FailedNodeID — шаг, вызвавший failed.
	FailedNodeID string `json:"failed_node_id,omitempty"`

	// Logs — журнал в порядке возникновения.
	Logs []LogEntry `json:"logs"`

	// NodeOutputs — outputs только тех шагов, которые реально выполнились.
	NodeOutputs map[string]any `json:"node_outputs"`
}

// NewExecutionRecord создаёт запись в статусе running.
func NewExecutionRecord(runID, workflowID string) *ExecutionRecord {
	return &ExecutionRecord{
		RunID:       runID,
		WorkflowID:  workflowID,
		Status:      ExecutionRunning,
		StartedAt:   time.Now(),
		Logs:        make([]LogEntry, 0),
		NodeOutputs: make(map[string]any),
	}
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *ExecutionRecord) IsFinished() bool {
	return r.Status.IsTerminal()
}

// Duration возвращает продолжительность run.
// Возвращает 0, если run ещё не завершён.
func (r *ExecutionRecord) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// AddLog добавляет запись в журнал. После завершения run ничего не делает.
func (r *ExecutionRecord) AddLog(level LogLevel, nodeID, message string, data map[string]any) {
	if r.IsFinished() {
		return
	}
	r.Logs = append(r.Logs, LogEntry{
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
		NodeID:    nodeID,
		Data:      data,
	})
}

// SetOutput сохраняет output шага. После завершения run ничего не делает.
func (r *ExecutionRecord) SetOutput(nodeID string, output any) {
	if r.IsFinished() {
		return
	}
	r.NodeOutputs[nodeID] = output
}

// MarkCompleted переводит run в статус completed.
func (r *ExecutionRecord) MarkCompleted() bool {
	return r.finish(ExecutionCompleted, "", "")
}

// MarkFailed переводит run в статус failed с ошибкой шага.
func (r *ExecutionRecord) MarkFailed(nodeID, err string) bool {
	return r.finish(ExecutionFailed, nodeID, err)
}

// MarkCancelled переводит run в статус cancelled.
func (r *ExecutionRecord) MarkCancelled() bool {
	return r.finish(ExecutionCancelled, "", "")
}

// finish выполняет единственный допустимый переход running → terminal.
func (r *ExecutionRecord) finish(status ExecutionStatus, nodeID, err string) bool {
	if r.IsFinished() {
		return false
	}
	now := time.Now()
	r.Status = status
	r.CompletedAt = &now
	r.Error = err
	r.FailedNodeID = nodeID
	return true
}

// Snapshot возвращает копию записи: журнал и карта outputs копируются,
// сами outputs разделяются с оригиналом.
func (r *ExecutionRecord) Snapshot() *ExecutionRecord {
	cp := *r
	cp.Logs = append(make([]LogEntry, 0, len(r.Logs)), r.Logs...)
	cp.NodeOutputs = make(map[string]any, len(r.NodeOutputs))
	for k, v := range r.NodeOutputs {
		cp.NodeOutputs[k] = v
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
