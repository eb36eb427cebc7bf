package mail

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdg-qu/certmailer/internal/core"
	apperrors "github.com/gdg-qu/certmailer/internal/errors"
)

const bodyTemplate = `<p>Dear [Name], thanks for attending [Event Name] (registered as [Registered Name]).</p>`

func newTestComposer(t *testing.T) (*Composer, string) {
	t.Helper()
	dir := t.TempDir()

	tmplPath := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(tmplPath, []byte(bodyTemplate), 0o644))

	attachmentPath := filepath.Join(dir, "Aisha-certificate.pdf")
	require.NoError(t, os.WriteFile(attachmentPath, []byte("%PDF-1.4 fake"), 0o644))

	composer, err := NewComposer(tmplPath)
	require.NoError(t, err)
	return composer, attachmentPath
}

func TestComposeSubstitutesPlaceholders(t *testing.T) {
	t.Parallel()

	composer, attachmentPath := newTestComposer(t)

	email, err := composer.Compose(core.ComposeInput{
		RecipientName:  "Aisha",
		RecipientEmail: "aisha@example.com",
		EventName:      "DevFest",
		AnnouncedName:  "DevFest Qassim 2026",
		AttachmentPath: attachmentPath,
	})
	require.NoError(t, err)

	assert.Equal(t, "aisha@example.com", email.To)
	assert.Equal(t, "شهادة حضور DevFest", email.Subject)
	assert.Equal(t,
		`<p>Dear Aisha, thanks for attending DevFest (registered as DevFest Qassim 2026).</p>`,
		email.HTML)
	assert.NotEmpty(t, email.Text)

	require.Len(t, email.Attachments, 1)
	assert.Equal(t, "DevFest شهادة حضور.pdf", email.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", email.Attachments[0].ContentType)
	assert.Equal(t, []byte("%PDF-1.4 fake"), email.Attachments[0].Content)
}

func TestComposeAnnouncedNameFallsBack(t *testing.T) {
	t.Parallel()

	composer, attachmentPath := newTestComposer(t)

	email, err := composer.Compose(core.ComposeInput{
		RecipientName:  "Omar",
		RecipientEmail: "omar@example.com",
		EventName:      "Go Study Jam",
		AttachmentPath: attachmentPath,
	})
	require.NoError(t, err)
	assert.Contains(t, email.HTML, "registered as Go Study Jam")
}

func TestComposeMissingAttachment(t *testing.T) {
	t.Parallel()

	composer, _ := newTestComposer(t)

	_, err := composer.Compose(core.ComposeInput{
		RecipientEmail: "aisha@example.com",
		EventName:      "DevFest",
		AttachmentPath: filepath.Join(t.TempDir(), "missing.pdf"),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsDelivery(err))
}

func TestNewComposerMissingTemplate(t *testing.T) {
	t.Parallel()

	_, err := NewComposer(filepath.Join(t.TempDir(), "missing.html"))
	require.Error(t, err)
}
