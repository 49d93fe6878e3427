package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

// fakeSES запоминает последний запрос.
type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	fake := &fakeSES{}
	sender := &SESSender{client: fake, from: "noreply@example.com"}

	id, err := sender.Send(context.Background(), Message{
		To:      []string{"a@example.com"},
		Subject: "Hello",
		Body:    "<b>hi</b>",
		HTML:    true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "msg-1" {
		t.Errorf("expected msg-1, got %s", id)
	}

	// Отправитель по умолчанию
	if aws.ToString(fake.input.FromEmailAddress) != "noreply@example.com" {
		t.Errorf("unexpected from: %v", aws.ToString(fake.input.FromEmailAddress))
	}

	// HTML тело
	simple := fake.input.Content.Simple
	if simple.Body.Html == nil || aws.ToString(simple.Body.Html.Data) != "<b>hi</b>" {
		t.Error("expected html body")
	}
	if simple.Body.Text != nil {
		t.Error("text body should be empty for html message")
	}
}

func TestSESSender_Errors(t *testing.T) {
	sender := &SESSender{client: &fakeSES{err: errors.New("throttled")}, from: "x@example.com"}

	if _, err := sender.Send(context.Background(), Message{Subject: "s"}); !errors.Is(err, ErrNoRecipients) {
		t.Errorf("expected ErrNoRecipients, got %v", err)
	}

	_, err := sender.Send(context.Background(), Message{To: []string{"a@example.com"}})
	if err == nil {
		t.Fatal("expected ses error")
	}
}

func TestLogSender_Send(t *testing.T) {
	sender := NewLogSender(nil, "")

	id, err := sender.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "s"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Error("expected generated message id")
	}
}
