package model

import (
	"time"
)

// TaskState is the position of a task in the render → convert → send pipeline.
//
// Tasks only move forward; a failed convert or send attempt is retried in
// place until the attempt budget runs out, then the task drops into the
// matching terminal failure state.
type TaskState string

const (
	// TaskPending indicates the task has been created but not picked up.
	TaskPending TaskState = "pending"
	// TaskRendering indicates the certificate template is being filled.
	TaskRendering TaskState = "rendering"
	// TaskRendered indicates the intermediate document has been written.
	TaskRendered TaskState = "rendered"
	// TaskConverting indicates an external conversion attempt is in flight.
	TaskConverting TaskState = "converting"
	// TaskConverted indicates the distributable document exists on disk.
	TaskConverted TaskState = "converted"
	// TaskSending indicates a mail transmission attempt is in flight.
	TaskSending TaskState = "sending"
	// TaskSent is the terminal success state.
	TaskSent TaskState = "sent"
	// TaskRenderFailed is terminal; rendering is deterministic and never retried.
	TaskRenderFailed TaskState = "render_failed"
	// TaskConvertFailed is terminal; the conversion retry budget was exhausted.
	TaskConvertFailed TaskState = "convert_failed"
	// TaskSendFailed is terminal; the send retry budget was exhausted.
	TaskSendFailed TaskState = "send_failed"
)

// Valid returns true if the TaskState is one of the known states.
func (s TaskState) Valid() bool {
	switch s {
	case TaskPending, TaskRendering, TaskRendered, TaskConverting,
		TaskConverted, TaskSending, TaskSent,
		TaskRenderFailed, TaskConvertFailed, TaskSendFailed:
		return true
	}
	return false
}

// Terminal returns true if no further transition can occur from s.
func (s TaskState) Terminal() bool {
	return s == TaskSent || s.TerminalFailure()
}

// TerminalFailure returns true for the three terminal failure states.
func (s TaskState) TerminalFailure() bool {
	return s == TaskRenderFailed || s == TaskConvertFailed || s == TaskSendFailed
}

// Task is the per-recipient unit of work within a job.
type Task struct {
	ID              string     `json:"id"`
	JobID           string     `json:"job_id"`
	RecipientName   string     `json:"recipient_name"`
	RecipientEmail  string     `json:"recipient_email"`
	State           TaskState  `json:"state"`
	ConvertAttempts int        `json:"convert_attempts"`
	SendAttempts    int        `json:"send_attempts"`
	ErrorKind       string     `json:"error_kind,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	DocumentPath    string     `json:"document_path,omitempty"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Recipient is one entry in a submitted batch.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SubmitRequest is a request to issue certificates for a batch of recipients.
type SubmitRequest struct {
	EventName          string          `json:"event_name"`
	AnnouncedEventName string          `json:"announced_event_name,omitempty"`
	EventDate          string          `json:"event_date"`
	CertificateType    CertificateType `json:"certificate_type"`
	Recipients         []Recipient     `json:"recipients"`
}
