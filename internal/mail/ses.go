package mail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// sesAPI — часть клиента SES, которую использует SESSender.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig — конфигурация SESSender.
type SESConfig struct {
	Region string

	// Статические ключи. Если не заданы, используется стандартная цепочка AWS
	// (переменные окружения, профиль, роль).
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// From — отправитель по умолчанию.
	From string
}

// SESSender отправляет письма через Amazon SES v2.
type SESSender struct {
	client sesAPI
	from   string
}

// NewSESSender создаёт SESSender.
func NewSESSender(ctx context.Context, cfg SESConfig) (*SESSender, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &SESSender{
		client: sesv2.NewFromConfig(awsCfg),
		from:   cfg.From,
	}, nil
}

// Send отправляет письмо и возвращает MessageId от SES.
func (s *SESSender) Send(ctx context.Context, msg Message) (string, error) {
	if msg.From == "" {
		msg.From = s.from
	}
	if err := msg.validate(); err != nil {
		return "", err
	}

	content := &types.Content{Data: aws.String(msg.Body)}
	body := &types.Body{Text: content}
	if msg.HTML {
		body = &types.Body{Html: content}
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination: &types.Destination{
			ToAddresses: msg.To,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body:    body,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ses send email: %w", err)
	}
	if out == nil || out.MessageId == nil {
		return "", fmt.Errorf("ses send email: empty response")
	}

	return aws.ToString(out.MessageId), nil
}
