package mail

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogSender пишет письма в лог вместо отправки.
type LogSender struct {
	logger *slog.Logger
	from   string
}

// NewLogSender создаёт LogSender.
func NewLogSender(logger *slog.Logger, from string) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	if from == "" {
		from = "flowgraph@localhost"
	}
	return &LogSender{logger: logger, from: from}
}

// Send логирует письмо и возвращает сгенерированный MessageId.
func (s *LogSender) Send(_ context.Context, msg Message) (string, error) {
	if msg.From == "" {
		msg.From = s.from
	}
	if err := msg.validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	s.logger.Info("email logged",
		"message_id", id,
		"from", msg.From,
		"to", msg.To,
		"subject", msg.Subject,
		"body_len", len(msg.Body),
	)
	return id, nil
}
