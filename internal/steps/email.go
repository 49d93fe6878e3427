package steps

import (
	"context"
	"strings"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/mail"
)

// Ключи конфигурации email.
const (
	configEmailTo      = "to"
	configEmailFrom    = "from"
	configEmailSubject = "subject"
	configEmailBody    = "body"
	configEmailHTML    = "html"
)

// Mailer — отправка писем. Реализации: mail.SESSender, mail.LogSender.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) (string, error)
}

// EmailStep — шаг отправки письма.
//
// Конфигурация:
//
//	{
//	    "to": ["ops@example.com"],        // или "a@x.com, b@x.com"
//	    "from": "noreply@example.com",    // опционально
//	    "subject": "Order {{ .Input.id }}",
//	    "body": "Total: {{ .Input.total }}",
//	    "html": false
//	}
//
// Outputs:
//
//	{"sent": true, "messageId": "...", "to": [...], "subject": "..."}
type EmailStep struct {
	mailer Mailer
}

// NewEmailStep создаёт EmailStep. mailer может быть nil.
func NewEmailStep(mailer Mailer) *EmailStep {
	return &EmailStep{mailer: mailer}
}

// Kind возвращает ключ шага.
func (s *EmailStep) Kind() domain.Kind {
	return domain.Kind{Category: domain.CategoryAction, Subtype: domain.SubtypeEmail}
}

// Validate проверяет получателей и тему.
func (s *EmailStep) Validate(config map[string]any) []string {
	var errs []string
	to := GetConfigStrings(config, configEmailTo)
	if len(to) == 0 {
		errs = append(errs, "to is required")
	}
	for _, addr := range to {
		if !strings.Contains(addr, "@") {
			errs = append(errs, "invalid recipient address: "+addr)
		}
	}
	if strings.TrimSpace(GetConfigString(config, configEmailSubject)) == "" {
		errs = append(errs, "subject is required")
	}
	return errs
}

// DefaultConfig возвращает пустое письмо.
func (s *EmailStep) DefaultConfig() map[string]any {
	return map[string]any{
		configEmailTo:      []any{},
		configEmailSubject: "",
		configEmailBody:    "",
		configEmailHTML:    false,
	}
}

// Execute отправляет письмо.
func (s *EmailStep) Execute(ctx context.Context, ec *ExecContext) Result {
	if errs := s.Validate(ec.Config); len(errs) > 0 {
		return Fail("email validation failed: %s", strings.Join(errs, ", "))
	}
	if s.mailer == nil {
		return Fail("email sender is not configured")
	}

	msg := mail.Message{
		From:    GetConfigString(ec.Config, configEmailFrom),
		To:      GetConfigStrings(ec.Config, configEmailTo),
		Subject: GetConfigString(ec.Config, configEmailSubject),
		Body:    GetConfigString(ec.Config, configEmailBody),
		HTML:    GetConfigBool(ec.Config, configEmailHTML, false),
	}

	id, err := s.mailer.Send(ctx, msg)
	if err != nil {
		return Fail("send email: %v", err)
	}

	return Ok(map[string]any{
		"sent":      true,
		"messageId": id,
		"to":        msg.To,
		"subject":   msg.Subject,
	})
}
