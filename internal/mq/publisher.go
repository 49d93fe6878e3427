package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/flowgraph/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeWorkflowTrigger   MessageType = "workflow.trigger"
	MessageTypeExecutionFinished MessageType = "execution.finished"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Message — JSON конверт всех сообщений flowgraph.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ExecutionFinishedPayload — сводка завершённого run.
// Журнал и outputs не передаются, их можно получить через API.
type ExecutionFinishedPayload struct {
	RunID        string                 `json:"run_id"`
	WorkflowID   string                 `json:"workflow_id"`
	Status       domain.ExecutionStatus `json:"status"`
	Error        string                 `json:"error,omitempty"`
	FailedNodeID string                 `json:"failed_node_id,omitempty"`
	StartedAt    time.Time              `json:"started_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	DurationMs   int64                  `json:"duration_ms"`
	Nodes        int                    `json:"nodes_executed"`
}

// NewExecutionFinishedPayload собирает сводку из записи run.
func NewExecutionFinishedPayload(rec *domain.ExecutionRecord) ExecutionFinishedPayload {
	return ExecutionFinishedPayload{
		RunID:        rec.RunID,
		WorkflowID:   rec.WorkflowID,
		Status:       rec.Status,
		Error:        rec.Error,
		FailedNodeID: rec.FailedNodeID,
		StartedAt:    rec.StartedAt,
		CompletedAt:  rec.CompletedAt,
		DurationMs:   rec.Duration().Milliseconds(),
		Nodes:        len(rec.NodeOutputs),
	}
}

// Publish отправляет конверт в exchange как persistent JSON сообщение.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, key RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         string(msg.Type),
		Timestamp:    msg.Timestamp,
		Body:         body,
	}

	err = p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		return ch.PublishWithContext(ctx, string(exchange), string(key), false, false, publishing)
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s/%s: %w", msg.Type, exchange, key, err)
	}

	p.logger.Debug("message published", "exchange", exchange, "routing_key", key, "message_id", msg.ID, "type", msg.Type)
	return nil
}

// Fire ставит запрос на запуск в очередь workflows.trigger.
// Так планировщик передаёт срабатывания в API.
func (p *Publisher) Fire(ctx context.Context, req domain.TriggerRequest) error {
	return p.Publish(ctx, ExchangeWorkflows, RoutingKeyTrigger, NewMessage(MessageTypeWorkflowTrigger, req))
}

// ExecutionFinished публикует сводку завершённого run.
// Publisher подключается к движку как engine.Notifier.
func (p *Publisher) ExecutionFinished(ctx context.Context, rec *domain.ExecutionRecord) error {
	msg := NewMessage(MessageTypeExecutionFinished, NewExecutionFinishedPayload(rec))
	return p.Publish(ctx, ExchangeWorkflows, RoutingKeyFinished, msg)
}
