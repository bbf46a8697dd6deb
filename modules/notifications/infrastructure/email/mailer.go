package email

import (
	"context"

	"github.com/rai/storefront-triggers/internal/platform/mail"
	"github.com/rai/storefront-triggers/modules/notifications/domain"
)

// MessageSender is satisfied by *mail.SMTPSender.
type MessageSender interface {
	Send(ctx context.Context, msg mail.Message) error
}

// Mailer adapts the platform mail sender to the notifications domain.
type Mailer struct {
	sender MessageSender
}

func NewMailer(sender MessageSender) *Mailer {
	return &Mailer{sender: sender}
}

func (m *Mailer) Send(ctx context.Context, email domain.Email) error {
	return m.sender.Send(ctx, mail.Message{
		To:      email.To,
		Subject: email.Subject,
		HTML:    email.HTML,
	})
}

var _ domain.Mailer = (*Mailer)(nil)
