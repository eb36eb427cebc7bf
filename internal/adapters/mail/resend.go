// Package mail adapts the external mail transport behind the core.Sender
// port and composes certificate delivery messages.
package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v3"

	"github.com/gdg-qu/certmailer/internal/core"
	apperrors "github.com/gdg-qu/certmailer/internal/errors"
)

// ResendSender implements core.Sender using the Resend API.
//
// All transport failures, including authentication failures, surface as
// delivery errors and are retried up to the budget: at this layer a transient
// credential or network problem is indistinguishable from a permanent one.
type ResendSender struct {
	client      *resend.Client
	senderEmail string
	senderName  string
}

var _ core.Sender = (*ResendSender)(nil)

// ResendConfig holds Resend transport configuration.
type ResendConfig struct {
	APIKey      string
	SenderEmail string
	SenderName  string
}

// NewResendSender creates a Resend-backed sender.
func NewResendSender(cfg ResendConfig) (*ResendSender, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("mail API key is required")
	}
	if cfg.SenderEmail == "" {
		return nil, errors.New("sender email is required")
	}
	return &ResendSender{
		client:      resend.NewClient(cfg.APIKey),
		senderEmail: cfg.SenderEmail,
		senderName:  cfg.SenderName,
	}, nil
}

// Send implements core.Sender.
func (s *ResendSender) Send(ctx context.Context, email *core.Email) error {
	from := s.senderEmail
	if s.senderName != "" {
		from = fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
	}

	if len(email.Attachments) > 0 {
		req.Attachments = make([]*resend.Attachment, len(email.Attachments))
		for i, a := range email.Attachments {
			req.Attachments[i] = &resend.Attachment{
				Filename:    a.Filename,
				Content:     a.Content,
				ContentType: a.ContentType,
			}
		}
	}

	if _, err := s.client.Emails.SendWithContext(ctx, req); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeDelivery, "send email to %s", email.To)
	}
	return nil
}
