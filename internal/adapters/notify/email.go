package notify

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/taskpilot/core/internal/ports"
)

// ResendEmailSender delivers email through the Resend API.
type ResendEmailSender struct {
	client *resend.Client
	from   string
}

// NewResendEmailSender creates an email sink backed by Resend.
func NewResendEmailSender(apiKey, from string) *ResendEmailSender {
	return &ResendEmailSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// Send implements ports.EmailSender.
func (s *ResendEmailSender) Send(ctx context.Context, msg ports.EmailMessage) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTMLBody,
		Text:    msg.TextBody,
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send email via resend: %w", err)
	}

	return nil
}
