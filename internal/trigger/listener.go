package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/engine"
	"github.com/shaiso/flowgraph/internal/mq"
)

// Listener потребляет очередь workflows.trigger и запускает runs.
type Listener struct {
	service  *Service
	consumer *mq.Consumer

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewListener создаёт Listener поверх соединения RabbitMQ.
func NewListener(svc *Service, conn *mq.Connection, prefetch int) *Listener {
	l := &Listener{service: svc}
	l.consumer = mq.NewConsumer(conn, svc.logger, mq.ConsumerConfig{
		Queue:    mq.QueueWorkflowsTrigger,
		Handler:  svc.HandleDelivery,
		Prefetch: prefetch,
	})
	return l
}

// Start запускает consumer в фоне.
func (l *Listener) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	l.cancelFunc = cancel

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.service.logger.Error("trigger consumer error", "error", err)
		}
	}()

	l.service.logger.Info("trigger listener started", "queue", mq.QueueWorkflowsTrigger)
}

// Stop останавливает consumer и ждёт его завершения.
// Runs, запущенные из очереди, продолжаются до Service.Shutdown.
func (l *Listener) Stop() {
	if l.cancelFunc != nil {
		l.cancelFunc()
	}
	l.consumer.Stop()
	l.wg.Wait()
	l.service.logger.Info("trigger listener stopped")
}

// HandleDelivery обрабатывает сообщение workflow.trigger.
//
// Запросы, которые не станут выполнимыми при повторе (нет workflow,
// workflow неактивен, run уже идёт), подтверждаются или уходят в DLQ.
// Ошибки хранилища возвращаются для повтора.
func (s *Service) HandleDelivery(ctx context.Context, d *mq.Delivery) error {
	if d.Message.Type != mq.MessageTypeWorkflowTrigger {
		return fmt.Errorf("%w: unexpected message type %q", mq.ErrReject, d.Message.Type)
	}

	req, err := mq.ParsePayload[domain.TriggerRequest](&d.Message)
	if err != nil {
		return fmt.Errorf("%w: %v", mq.ErrReject, err)
	}
	if req.Source == "" {
		req.Source = domain.TriggerSourceQueue
	}

	runID, err := s.Start(ctx, req)
	switch {
	case err == nil:
		s.logger.Debug("trigger message accepted",
			"message_id", d.Message.ID,
			"workflow_id", req.WorkflowID,
			"run_id", runID,
		)
		return nil

	case errors.Is(err, engine.ErrRunAlreadyActive):
		// Пропуск запуска, пока идёт предыдущий run
		s.logger.Warn("trigger skipped, run already active",
			"message_id", d.Message.ID,
			"workflow_id", req.WorkflowID,
			"source", req.Source,
		)
		return nil

	case errors.Is(err, ErrWorkflowNotFound),
		errors.Is(err, ErrWorkflowInactive),
		errors.Is(err, ErrNoWebhookTrigger),
		errors.Is(err, ErrMissingWorkflowID):
		return fmt.Errorf("%w: %v", mq.ErrReject, err)

	default:
		return err
	}
}
