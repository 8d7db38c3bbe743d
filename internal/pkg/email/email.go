package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sitepass/subscription-whitelist/internal/config"
	"gopkg.in/gomail.v2"
)

const maxRetries = 3

// Mailer delivers a rendered HTML message.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpMailer struct {
	cfg     config.SMTPConfig
	sender  sender
	backoff time.Duration
}

// NewMailer creates an SMTP mailer. With no host configured messages are
// logged and dropped.
func NewMailer(cfg config.SMTPConfig) Mailer {
	return &smtpMailer{
		cfg:     cfg,
		sender:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		backoff: time.Second,
	}
}

func (s *smtpMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if s.cfg.Host == "" {
		slog.WarnContext(ctx, "SMTP not configured, skipping email send", "to", to, "subject", subject)
		return nil
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.cfg.From, s.cfg.FromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := s.sender.DialAndSend(m)
		if err == nil {
			slog.InfoContext(ctx, "Email sent successfully", "to", to, "subject", subject, "attempt", attempt)
			return nil
		}

		lastErr = err
		slog.ErrorContext(ctx, "Failed to send email",
			"to", to,
			"subject", subject,
			"attempt", attempt,
			"max_retries", maxRetries,
			"error", err,
		)

		// Exponential backoff: 1s, 2s, 4s
		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff << (attempt - 1)):
			}
		}
	}

	return fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, lastErr)
}
