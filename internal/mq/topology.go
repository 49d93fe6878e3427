package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	ExchangeWorkflows Exchange = "flowgraph.workflows"
	ExchangeDLQ       Exchange = "flowgraph.dlq"
)

const (
	// QueueWorkflowsTrigger — запросы на запуск. Читает trigger listener API.
	QueueWorkflowsTrigger Queue = "workflows.trigger"

	// QueueExecutionsFinished — сводки завершённых runs для внешних потребителей.
	QueueExecutionsFinished Queue = "executions.finished"

	// QueueDLQTriggers — отклонённые запросы, разбираются вручную.
	QueueDLQTriggers Queue = "dlq.triggers"
)

const (
	RoutingKeyTrigger    RoutingKey = "trigger"
	RoutingKeyFinished   RoutingKey = "finished"
	RoutingKeyDLQTrigger RoutingKey = "triggers"
)

// queueSpec — очередь и её привязка. Все обменники direct и durable.
type queueSpec struct {
	name     Queue
	exchange Exchange
	key      RoutingKey
	args     amqp.Table
}

var topology = []queueSpec{
	{
		name:     QueueWorkflowsTrigger,
		exchange: ExchangeWorkflows,
		key:      RoutingKeyTrigger,
		args: amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQTrigger),
		},
	},
	{name: QueueExecutionsFinished, exchange: ExchangeWorkflows, key: RoutingKeyFinished},
	{name: QueueDLQTriggers, exchange: ExchangeDLQ, key: RoutingKeyDLQTrigger},
}

// SetupTopology объявляет обменники, очереди и привязки.
// Объявления идемпотентны, поэтому вызывается при каждом старте.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		declared := make(map[Exchange]bool)
		for _, q := range topology {
			if !declared[q.exchange] {
				if err := ch.ExchangeDeclare(string(q.exchange), amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
					return fmt.Errorf("declare exchange %s: %w", q.exchange, err)
				}
				declared[q.exchange] = true
			}

			if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
			if err := ch.QueueBind(string(q.name), string(q.key), string(q.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", q.name, q.exchange, err)
			}
		}
		return nil
	})
}
