package mail

import (
	"errors"
	"strings"
)

// Ошибки отправки.
var (
	// ErrNoRecipients — не указан ни один получатель.
	ErrNoRecipients = errors.New("no recipients")

	// ErrNoSender — не указан адрес отправителя.
	ErrNoSender = errors.New("no sender address")
)

// Message — письмо.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string

	// HTML — Body содержит HTML.
	HTML bool
}

// validate проверяет обязательные поля.
func (m *Message) validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	if strings.TrimSpace(m.From) == "" {
		return ErrNoSender
	}
	return nil
}
