package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrReject — обработчик отклоняет сообщение без повтора.
// Сообщение уходит в DLQ очереди.
var ErrReject = errors.New("message rejected")

// errDeliveriesClosed — брокер закрыл канал доставок (обычно разрыв соединения).
var errDeliveriesClosed = errors.New("deliveries channel closed")

// Handler обрабатывает одно сообщение.
//
// nil подтверждает сообщение. Ошибка с ErrReject отправляет его в DLQ сразу,
// любая другая ошибка даёт один повтор.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — сообщение, полученное из очереди.
type Delivery struct {
	Message Message
	Raw     amqp.Delivery
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	Queue   Queue
	Handler Handler

	// Prefetch — сообщений без ack на канал (default: 1).
	Prefetch int
}

// Consumer читает очередь и передаёт сообщения Handler.
// Подписка восстанавливается после reconnect соединения.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	handler  Handler
	prefetch int

	mu   sync.Mutex
	stop context.CancelFunc
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: cfg.Prefetch,
	}
	if c.prefetch <= 0 {
		c.prefetch = 1
	}
	return c
}

// Start читает очередь, пока не отменён ctx или не вызван Stop.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.stop = cancel
	c.mu.Unlock()
	defer cancel()

	for ctx.Err() == nil {
		err := c.session(ctx)
		if ctx.Err() != nil {
			break
		}
		c.logger.Warn("consumer session ended, waiting for reconnect", "error", err)

		select {
		case <-ctx.Done():
		case <-c.conn.ReconnectNotify():
			c.logger.Info("reconnected, resubscribing")
		}
	}
	return ctx.Err()
}

// Stop прерывает Start. Вызов до Start ничего не делает.
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		c.stop()
	}
}

// session подписывается на очередь и обрабатывает доставки,
// пока канал доставок открыт.
func (c *Consumer) session(ctx context.Context) error {
	var deliveries <-chan amqp.Delivery
	err := c.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
		// auto-ack выключен: решение принимает handleDelivery
		d, err := ch.Consume(string(c.queue), "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume: %w", err)
		}
		deliveries = d
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Info("consumer subscribed", "prefetch", c.prefetch)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery декодирует конверт, вызывает Handler и подтверждает сообщение.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	d := &Delivery{Raw: raw}
	if err := json.Unmarshal(raw.Body, &d.Message); err != nil {
		c.logger.Error("malformed message body", "error", err, "body", string(raw.Body))
		c.settle(raw, raw.Nack(false, false))
		return
	}

	log := c.logger.With("message_id", d.Message.ID, "type", d.Message.Type)
	log.Debug("message received", "redelivered", raw.Redelivered)

	err := c.handler(ctx, d)
	if err == nil {
		c.settle(raw, raw.Ack(false))
		return
	}

	// Повторная доставка не повторяется ещё раз
	retry := !raw.Redelivered && !errors.Is(err, ErrReject)
	log.Error("message handler failed", "requeue", retry, "error", err)
	c.settle(raw, raw.Nack(false, retry))
}

func (c *Consumer) settle(raw amqp.Delivery, err error) {
	if err != nil {
		c.logger.Warn("delivery not settled", "delivery_tag", raw.DeliveryTag, "error", err)
	}
}

// ParsePayload декодирует payload сообщения в T.
//
// После разбора конверта payload хранится как map[string]any,
// поэтому значение проходит через JSON ещё раз.
func ParsePayload[T any](msg *Message) (T, error) {
	var out T
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return out, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	return out, nil
}
