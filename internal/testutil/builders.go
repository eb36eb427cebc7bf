package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/gdg-qu/certmailer/internal/domain/model"
)

// SubmitRequestBuilder provides a fluent interface for building SubmitRequest
// objects for testing.
type SubmitRequestBuilder struct {
	req *model.SubmitRequest
}

// NewSubmitRequest creates a new SubmitRequestBuilder with sensible defaults.
func NewSubmitRequest() *SubmitRequestBuilder {
	return &SubmitRequestBuilder{
		req: &model.SubmitRequest{
			EventName:       "Go Study Jam",
			EventDate:       "2026-03-14",
			CertificateType: model.CertificateOfficial,
			Recipients: []model.Recipient{
				{Name: "Aisha", Email: "aisha@example.com"},
			},
		},
	}
}

// WithEventName sets the event name.
func (b *SubmitRequestBuilder) WithEventName(name string) *SubmitRequestBuilder {
	b.req.EventName = name
	return b
}

// WithEventDate sets the event date.
func (b *SubmitRequestBuilder) WithEventDate(date string) *SubmitRequestBuilder {
	b.req.EventDate = date
	return b
}

// WithAnnouncedName sets the announced event name.
func (b *SubmitRequestBuilder) WithAnnouncedName(name string) *SubmitRequestBuilder {
	b.req.AnnouncedEventName = name
	return b
}

// WithCertificateType sets the certificate type.
func (b *SubmitRequestBuilder) WithCertificateType(t model.CertificateType) *SubmitRequestBuilder {
	b.req.CertificateType = t
	return b
}

// WithRecipients replaces the recipient list.
func (b *SubmitRequestBuilder) WithRecipients(recipients ...model.Recipient) *SubmitRequestBuilder {
	b.req.Recipients = recipients
	return b
}

// Build returns the constructed SubmitRequest.
func (b *SubmitRequestBuilder) Build() *model.SubmitRequest {
	return b.req
}

// NewJob creates a job with defaults suitable for repository tests.
func NewJob(outputDir string) *model.Job {
	return &model.Job{
		ID:              uuid.NewString(),
		EventName:       "Go Study Jam",
		EventDate:       "2026-03-14",
		CertificateType: model.CertificateOfficial,
		OutputDir:       outputDir,
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	}
}

// NewTask creates a pending task for the given job.
func NewTask(jobID string) *model.Task {
	now := time.Now().UTC().Truncate(time.Second)
	return &model.Task{
		ID:             uuid.NewString(),
		JobID:          jobID,
		RecipientName:  "Aisha",
		RecipientEmail: "aisha@example.com",
		State:          model.TaskPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
