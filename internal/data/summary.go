package data

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gdg-qu/certmailer/internal/domain/model"
	apperrors "github.com/gdg-qu/certmailer/internal/errors"
)

// summaryFileName is the per-job snapshot written into the job's output
// directory for human inspection. The SQLite store remains the read-side
// source of truth.
const summaryFileName = "summary.json"

// JobSummary is the JSON shape of a job snapshot.
type JobSummary struct {
	JobID           string                `json:"job_id"`
	EventName       string                `json:"event_name"`
	EventDate       string                `json:"event_date"`
	CertificateType model.CertificateType `json:"certificate_type"`
	Status          model.JobStatus       `json:"status"`
	Total           int                   `json:"total"`
	Successful      int                   `json:"successful"`
	Failed          int                   `json:"failed"`
	CreatedAt       time.Time             `json:"created_at"`
	CompletedAt     *time.Time            `json:"completed_at,omitempty"`
	Tasks           []TaskSummary         `json:"tasks"`
}

// TaskSummary is the per-recipient entry inside a job snapshot.
type TaskSummary struct {
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	State        model.TaskState `json:"state"`
	Error        string          `json:"error,omitempty"`
	DocumentPath string          `json:"document_path,omitempty"`
	SentAt       *time.Time      `json:"sent_at,omitempty"`
}

// SummaryWriter serialises job snapshots to summary.json in the job's output
// directory. Writes to the same job are serialized; different jobs write to
// different files and need no cross-locking.
type SummaryWriter struct {
	mu sync.Mutex
}

// NewSummaryWriter creates a summary writer.
func NewSummaryWriter() *SummaryWriter {
	return &SummaryWriter{}
}

// Write renders and atomically replaces the job's summary.json.
func (w *SummaryWriter) Write(job *model.Job, tasks []*model.Task) error {
	states := make([]model.TaskState, len(tasks))
	entries := make([]TaskSummary, len(tasks))
	for i, t := range tasks {
		states[i] = t.State
		entry := TaskSummary{
			Name:         t.RecipientName,
			Email:        t.RecipientEmail,
			State:        t.State,
			DocumentPath: t.DocumentPath,
			SentAt:       t.SentAt,
		}
		if t.ErrorMessage != "" {
			entry.Error = t.ErrorKind + ": " + t.ErrorMessage
		}
		entries[i] = entry
	}

	progress := model.ComputeProgress(tasks)
	summary := JobSummary{
		JobID:           job.ID,
		EventName:       job.EventName,
		EventDate:       job.EventDate,
		CertificateType: job.CertificateType,
		Status:          model.DeriveJobStatus(states),
		Total:           progress.Total,
		Successful:      progress.Successful,
		Failed:          progress.Failed,
		CreatedAt:       job.CreatedAt,
		CompletedAt:     job.CompletedAt,
		Tasks:           entries,
	}

	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStore, "marshal job summary")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Join(job.OutputDir, summaryFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStore, "write job summary")
	}
	if err := os.Rename(tmp, path); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStore, "replace job summary")
	}
	return nil
}
