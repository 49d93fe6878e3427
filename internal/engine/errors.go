package engine

import "errors"

// Ошибки структуры workflow.
var (
	// ErrNilWorkflow — workflow не передан.
	ErrNilWorkflow = errors.New("workflow is nil")

	// ErrInvalidWorkflow — документ workflow не разбирается.
	ErrInvalidWorkflow = errors.New("invalid workflow document")

	// ErrNoNodes — workflow не содержит шагов.
	ErrNoNodes = errors.New("workflow has no nodes")

	// ErrEmptyNodeID — шаг не имеет ID.
	ErrEmptyNodeID = errors.New("node has empty ID")

	// ErrDuplicateNodeID — несколько шагов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownKind — недопустимая пара (category, subtype).
	ErrUnknownKind = errors.New("unknown node kind")

	// ErrInvalidNodeConfig — конфигурация шага не прошла валидацию.
	ErrInvalidNodeConfig = errors.New("invalid node config")

	// ErrDanglingEdge — связь ссылается на несуществующий шаг.
	ErrDanglingEdge = errors.New("edge references unknown node")

	// ErrSelfLoop — связь ведёт из шага в него же.
	ErrSelfLoop = errors.New("edge connects node to itself")

	// ErrCycle — в графе есть цикл.
	ErrCycle = errors.New("cycle detected")

	// ErrNoTriggers — нет триггеров без входящих связей.
	ErrNoTriggers = errors.New("no trigger nodes found")
)

// Ошибки запуска run.
var (
	// ErrRunAlreadyActive — у workflow уже есть активный run.
	ErrRunAlreadyActive = errors.New("workflow already has an active run")

	// ErrExecutorUsed — Executor одноразовый.
	ErrExecutorUsed = errors.New("executor has already been started")

	// ErrStartNodeNotFound — стартовый шаг не найден в графе.
	ErrStartNodeNotFound = errors.New("start node not found")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	NodeID  string // ID шага, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(nodeID, field, message string, err error) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
