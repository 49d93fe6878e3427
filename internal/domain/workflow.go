package domain

import (
	"encoding/json"
	"time"
)

// Workflow — определение рабочего процесса: граф шагов и связей.
//
// Workflow принадлежит вызывающей стороне (редактор, API, хранилище).
// Движок только читает его на время run и никогда не изменяет.
type Workflow struct {
	// ID — уникальный идентификатор workflow.
	ID string `json:"id"`

	// Name — человекочитаемое имя.
	Name string `json:"name"`

	// Description — описание назначения workflow.
	Description string `json:"description,omitempty"`

	// Nodes — шаги графа. Порядок не имеет значения для семантики,
	// но сохраняется для детерминированного обхода.
	Nodes []Node `json:"nodes"`

	// Edges — связи между шагами.
	Edges []Edge `json:"edges"`

	// Variables — переменные workflow, доступные в шаблонах как .Vars.
	Variables map[string]any `json:"variables,omitempty"`

	// IsActive — неактивные workflows не запускаются по расписанию и webhook.
	IsActive bool `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Node — шаг workflow.
type Node struct {
	// ID — идентификатор, уникальный в пределах workflow.
	ID string `json:"id"`

	// Category — категория шага: trigger, action, logic.
	Category Category `json:"category"`

	// Subtype — подтип шага внутри категории (http, if, manual, ...).
	Subtype Subtype `json:"subtype"`

	// Config — конфигурация шага, формат зависит от подтипа.
	Config map[string]any `json:"config,omitempty"`

	// LastError — ошибка последнего run, в котором шаг упал.
	LastError string `json:"last_error,omitempty"`

	// Label — подпись шага в редакторе.
	Label string `json:"label,omitempty"`
}

// Kind возвращает пару (category, subtype) шага.
func (n *Node) Kind() Kind {
	return Kind{Category: n.Category, Subtype: n.Subtype}
}

// Edge — связь между шагами.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`

	// SourceHandle — имя выхода источника. Пустое значение означает
	// безусловную связь, "true"/"false" — ветки if-gate.
	SourceHandle string `json:"source_handle,omitempty"`
}

// IsSelfLoop возвращает true, если связь ведёт из шага в него же.
func (e Edge) IsSelfLoop() bool {
	return e.Source == e.Target
}

// Node возвращает шаг по ID.
func (w *Workflow) Node(id string) (*Node, bool) {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i], true
		}
	}
	return nil, false
}

// Clone возвращает глубокую копию workflow.
// Конфигурации шагов и переменные копируются через JSON.
func (w *Workflow) Clone() (*Workflow, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	var clone Workflow
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}
