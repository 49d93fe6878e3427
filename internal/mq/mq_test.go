package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/flowgraph/internal/domain"
)

// fakeAck записывает решение consumer по сообщению.
type fakeAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAck) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return nil
}

func (a *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *fakeAck) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func delivery(t *testing.T, ack *fakeAck, msg *Message, redelivered bool) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return amqp.Delivery{Acknowledger: ack, Body: body, Redelivered: redelivered}
}

func TestConsumer_HandleDelivery(t *testing.T) {
	req := domain.TriggerRequest{WorkflowID: "wf-1", Source: domain.TriggerSourceSchedule}
	msg := NewMessage(MessageTypeWorkflowTrigger, req)

	tests := []struct {
		name        string
		handlerErr  error
		redelivered bool
		wantAck     bool
		wantRequeue bool
	}{
		{name: "success", wantAck: true},
		{name: "transient failure", handlerErr: errors.New("db down"), wantRequeue: true},
		{name: "second failure", handlerErr: errors.New("db down"), redelivered: true},
		{name: "rejected", handlerErr: fmt.Errorf("%w: workflow not found", ErrReject)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got domain.TriggerRequest
			c := NewConsumer(nil, testLogger(), ConsumerConfig{
				Queue: QueueWorkflowsTrigger,
				Handler: func(ctx context.Context, d *Delivery) error {
					var err error
					got, err = ParsePayload[domain.TriggerRequest](&d.Message)
					if err != nil {
						t.Fatalf("parse payload: %v", err)
					}
					return tt.handlerErr
				},
			})

			ack := &fakeAck{}
			c.handleDelivery(context.Background(), delivery(t, ack, msg, tt.redelivered))

			if got.WorkflowID != "wf-1" || got.Source != domain.TriggerSourceSchedule {
				t.Errorf("unexpected payload: %+v", got)
			}
			if ack.acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", ack.acked, tt.wantAck)
			}
			if !tt.wantAck && (!ack.nacked || ack.requeue != tt.wantRequeue) {
				t.Errorf("nacked = %v requeue = %v, want requeue %v", ack.nacked, ack.requeue, tt.wantRequeue)
			}
		})
	}
}

func TestConsumer_MalformedBodyGoesToDLQ(t *testing.T) {
	called := false
	c := NewConsumer(nil, testLogger(), ConsumerConfig{
		Queue: QueueWorkflowsTrigger,
		Handler: func(ctx context.Context, d *Delivery) error {
			called = true
			return nil
		},
	})

	ack := &fakeAck{}
	c.handleDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")})

	if called {
		t.Error("handler should not be called for malformed body")
	}
	if !ack.nacked || ack.requeue {
		t.Errorf("expected nack without requeue, got %+v", ack)
	}
}

func TestNewConsumer_Defaults(t *testing.T) {
	c := NewConsumer(nil, nil, ConsumerConfig{Queue: QueueWorkflowsTrigger})
	if c.prefetch != 1 {
		t.Errorf("expected prefetch 1, got %d", c.prefetch)
	}
	if c.logger == nil {
		t.Error("logger should default to slog.Default")
	}

	// Stop до Start не паникует
	c.Stop()
}

func TestNewExecutionFinishedPayload(t *testing.T) {
	rec := domain.NewExecutionRecord("run-1", "wf-1")
	rec.SetOutput("start", map[string]any{"triggered": true})
	rec.SetOutput("call", map[string]any{"status_code": 500})
	rec.StartedAt = time.Now().Add(-2 * time.Second)
	rec.MarkFailed("call", "HTTP 500: Internal Server Error")

	p := NewExecutionFinishedPayload(rec)

	if p.RunID != "run-1" || p.WorkflowID != "wf-1" {
		t.Errorf("unexpected ids: %+v", p)
	}
	if p.Status != domain.ExecutionFailed || p.FailedNodeID != "call" {
		t.Errorf("unexpected status: %+v", p)
	}
	if p.Nodes != 2 {
		t.Errorf("expected 2 nodes, got %d", p.Nodes)
	}
	if p.DurationMs < 2000 {
		t.Errorf("expected duration >= 2000ms, got %d", p.DurationMs)
	}
}

func TestNewMessage(t *testing.T) {
	a := NewMessage(MessageTypeExecutionFinished, nil)
	b := NewMessage(MessageTypeExecutionFinished, nil)

	if a.ID == "" || a.ID == b.ID {
		t.Error("messages should get unique ids")
	}
	if a.Type != MessageTypeExecutionFinished || a.Timestamp.IsZero() {
		t.Errorf("unexpected message: %+v", a)
	}
}

func TestConnection_WithChannelClosed(t *testing.T) {
	c := &Connection{closed: true}
	err := c.WithChannel(context.Background(), func(ch *amqp.Channel) error { return nil })
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	c = &Connection{}
	err = c.WithChannel(context.Background(), func(ch *amqp.Channel) error { return nil })
	if !errors.Is(err, ErrNoChannel) {
		t.Errorf("expected ErrNoChannel, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.WithChannel(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
