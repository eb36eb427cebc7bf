package mail

import (
	"fmt"
	"os"
	"strings"

	"github.com/gdg-qu/certmailer/internal/core"
	apperrors "github.com/gdg-qu/certmailer/internal/errors"
)

// Body placeholders recognised in the HTML email template.
const (
	placeholderName           = "[Name]"
	placeholderEventName      = "[Event Name]"
	placeholderRegisteredName = "[Registered Name]"
)

// plainTextFallback is shown by clients that cannot render HTML.
const plainTextFallback = "This email contains HTML. Please view it in an HTML-compatible client."

// Composer builds certificate delivery emails from the configured HTML body
// template. The template is read once at construction; templates are
// immutable for the lifetime of the process.
type Composer struct {
	bodyTemplate string
}

// NewComposer loads the HTML body template from templatePath.
func NewComposer(templatePath string) (*Composer, error) {
	body, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("load email template: %w", err)
	}
	return &Composer{bodyTemplate: string(body)}, nil
}

var _ core.EmailComposer = (*Composer)(nil)

// Compose builds the outgoing message: localized subject, HTML body with
// placeholders substituted, and the certificate attached as PDF.
func (c *Composer) Compose(in core.ComposeInput) (*core.Email, error) {
	attachment, err := os.ReadFile(in.AttachmentPath)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeDelivery,
			"read attachment %s", in.AttachmentPath)
	}

	announced := in.AnnouncedName
	if announced == "" {
		announced = in.EventName
	}

	body := c.bodyTemplate
	body = strings.ReplaceAll(body, placeholderName, in.RecipientName)
	body = strings.ReplaceAll(body, placeholderEventName, in.EventName)
	body = strings.ReplaceAll(body, placeholderRegisteredName, announced)

	return &core.Email{
		To:      in.RecipientEmail,
		Subject: fmt.Sprintf("شهادة حضور %s", in.EventName),
		HTML:    body,
		Text:    plainTextFallback,
		Attachments: []core.Attachment{{
			Filename:    fmt.Sprintf("%s شهادة حضور.pdf", in.EventName),
			ContentType: "application/pdf",
			Content:     attachment,
		}},
	}, nil
}
