// Package mail delivers account notifications: reset codes, confirmation
// codes and generated passwords.
package mail

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophmaster/internal/logging"
	"github.com/resend/resend-go/v2"
)

// Mailer sends one HTML message. It reports success instead of returning an
// error; delivery problems are logged by the implementation.
type Mailer interface {
	SendMail(ctx context.Context, to, subject, html string) bool
}

// emailSender is the part of the Resend client the mailer uses.
type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type ResendMailer struct {
	emails emailSender
	from   string
	log    logging.Logger
}

func NewResendMailer(apiKey, from string, log logging.Logger) (*ResendMailer, error) {
	if apiKey == "" {
		return nil, errors.New("resend API key is required")
	}
	if from == "" {
		return nil, errors.New("sender address is required")
	}
	client := resend.NewClient(apiKey)
	return &ResendMailer{emails: client.Emails, from: from, log: log}, nil
}

func (m *ResendMailer) SendMail(ctx context.Context, to, subject, html string) bool {
	sent, err := m.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		m.log.Error(ctx, "send mail failed", "to", to, "subject", subject, "error", err)
		return false
	}
	m.log.Info(ctx, "mail sent", "to", to, "id", sent.Id)
	return true
}

// LogMailer writes the message metadata to the log and never fails. It is
// used when no mail provider is configured.
type LogMailer struct {
	log logging.Logger
}

func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendMail(ctx context.Context, to, subject, html string) bool {
	m.log.Info(ctx, "mail not delivered, no provider configured", "to", to, "subject", subject, "size", len(html))
	return true
}
