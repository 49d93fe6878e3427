package domain

// TriggerSource — откуда пришёл запрос на запуск.
type TriggerSource string

const (
	TriggerSourceManual   TriggerSource = "manual"
	TriggerSourceWebhook  TriggerSource = "webhook"
	TriggerSourceSchedule TriggerSource = "schedule"
	TriggerSourceQueue    TriggerSource = "queue"
)

// TriggerRequest — запрос на запуск workflow.
//
// Приходит из API, webhook, планировщика или очереди.
// Input становится seed input для стартовых шагов.
type TriggerRequest struct {
	WorkflowID  string        `json:"workflow_id"`
	StartNodeID string        `json:"start_node_id,omitempty"`
	Input       any           `json:"input,omitempty"`
	Source      TriggerSource `json:"source,omitempty"`
}
