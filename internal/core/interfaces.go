// Package core defines the ports between the pipeline services and their
// driven adapters (persistence, conversion, mail transport).
package core

import (
	"context"

	"github.com/gdg-qu/certmailer/internal/domain/model"
)

// JobRepository defines the persistence contract for jobs and tasks.
//
// Implementations must be durable across process restarts and must serialize
// read-modify-write updates to a single task row; updates to different tasks
// of the same job may proceed concurrently.
type JobRepository interface {
	// CreateJob persists a job and its tasks atomically.
	CreateJob(ctx context.Context, job *model.Job, tasks []*model.Task) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	GetTask(ctx context.Context, jobID, taskID string) (*model.Task, error)
	ListTasks(ctx context.Context, jobID string) ([]*model.Task, error)
	ListJobs(ctx context.Context) ([]*model.Job, error)
	// UpdateTask applies a guarded state transition to a single task.
	UpdateTask(ctx context.Context, upd TaskUpdate) (*model.Task, error)
	// MarkJobCompleted stamps the job's completion time once all tasks are terminal.
	MarkJobCompleted(ctx context.Context, jobID string) error
	// ResetInFlightTasks returns non-terminal, non-pending tasks to pending.
	// Used for crash recovery at startup.
	ResetInFlightTasks(ctx context.Context) (int64, error)
	// ListUnfinishedJobs returns jobs that still have non-terminal tasks.
	ListUnfinishedJobs(ctx context.Context) ([]*model.Job, error)
}

// TaskUpdate describes a single guarded task state transition.
//
// FromStates, when non-empty, restricts the update to tasks currently in one
// of the listed states; a mismatch means another writer got there first and
// the update is rejected with a conflict error.
type TaskUpdate struct {
	JobID      string
	TaskID     string
	FromStates []model.TaskState
	State      model.TaskState
	// ErrorKind/ErrorMessage record the last failure, if any.
	ErrorKind    string
	ErrorMessage string
	// DocumentPath is set once rendering (and later conversion) succeeds.
	DocumentPath string
	// IncrementConvertAttempts / IncrementSendAttempts bump the independent
	// per-step attempt counters.
	IncrementConvertAttempts bool
	IncrementSendAttempts    bool
	// MarkSent stamps the task's sent time.
	MarkSent bool
}

// Template is an immutable certificate template resolved from a certificate type.
type Template struct {
	Type model.CertificateType
	Path string
}

// TemplateStore resolves a certificate type to its template document.
type TemplateStore interface {
	Resolve(certType model.CertificateType) (Template, error)
}

// RenderData carries the per-recipient fields substituted into a template.
type RenderData struct {
	Name      string
	EventName string
	EventDate string
}

// Renderer fills a template with recipient data and writes the intermediate
// document into outputDir, returning its path.
type Renderer interface {
	Render(ctx context.Context, tmpl Template, data RenderData, outputDir string) (string, error)
}

// Converter turns an intermediate document into the final distributable
// format. Conversion is an out-of-process operation and must bound each
// attempt with a timeout so a hung converter cannot block a task forever.
type Converter interface {
	Convert(ctx context.Context, inputPath string) (string, error)
}

// ComposeInput carries everything needed to build one outgoing certificate
// email for a recipient.
type ComposeInput struct {
	RecipientName  string
	RecipientEmail string
	EventName      string
	AnnouncedName  string
	AttachmentPath string
}

// EmailComposer builds the outgoing message for a recipient, including the
// converted certificate as an attachment.
type EmailComposer interface {
	Compose(in ComposeInput) (*Email, error)
}

// Email is a fully-prepared message ready for transmission.
type Email struct {
	To          string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Attachment is a file attached to an outgoing email.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Sender transmits a prepared email via the external mail transport.
type Sender interface {
	Send(ctx context.Context, email *Email) error
}
