package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dfalcao/precario/internal/domain"
	"github.com/resend/resend-go/v2"
)

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender logs emails instead of sending them — used in ENV=local.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.logger.Info("review email (local dev)", "to", to, "subject", subject, "body", body)
	return nil
}

// ResendSender sends emails via the Resend API — used in staging/production.
type ResendSender struct {
	client *resend.Client
	from   string
}

func (s *ResendSender) Send(ctx context.Context, to, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// NewSender returns a LogSender for ENV=local, ResendSender otherwise.
func NewSender(env, apiKey, from string, logger *slog.Logger) Sender {
	if env == "local" {
		return &LogSender{logger: logger}
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// NotifyReview emails the reviewer about a survey that finished below its
// target source count and needs a manual price decision.
func NotifyReview(ctx context.Context, sender Sender, to string, survey *domain.Survey) error {
	subject := fmt.Sprintf("Pesquisa de preços precisa de revisão: %s", survey.Query)
	body := fmt.Sprintf(
		"<p>A pesquisa <strong>%s</strong> (id %s) terminou com status <strong>%s</strong>.</p>"+
			"<p>Fontes aceitas: menos que as %d exigidas. Revise os candidatos e defina o valor manualmente.</p>",
		survey.Query, survey.ID, survey.Status, survey.TargetCount,
	)
	return sender.Send(ctx, to, subject, body)
}
