// Package model defines the core data types for the certmailer issuance pipeline.
package model

import (
	"time"
)

// CertificateType selects which certificate template a job renders.
type CertificateType string

const (
	// CertificateOfficial renders the official certificate template.
	CertificateOfficial CertificateType = "official"
	// CertificateUnofficial renders the unofficial certificate template.
	CertificateUnofficial CertificateType = "unofficial"
)

// Valid returns true if the CertificateType is one of the known types.
func (t CertificateType) Valid() bool {
	return t == CertificateOfficial || t == CertificateUnofficial
}

// JobStatus is the aggregate status of a job, derived from its task states.
// It is never stored; it is computed on every read from the task rows.
type JobStatus string

const (
	// JobInProgress indicates at least one task has not reached a terminal state.
	JobInProgress JobStatus = "in_progress"
	// JobCompleted indicates every task ended in TaskSent.
	JobCompleted JobStatus = "completed"
	// JobPartiallyFailed indicates a mix of terminal successes and failures.
	JobPartiallyFailed JobStatus = "partially_failed"
	// JobFailed indicates every task ended in a terminal failure state.
	JobFailed JobStatus = "failed"
)

// Job is one certificate-issuance batch submitted by a caller.
type Job struct {
	ID                 string          `json:"id"`
	EventName          string          `json:"event_name"`
	AnnouncedEventName string          `json:"announced_event_name"`
	EventDate          string          `json:"event_date"`
	CertificateType    CertificateType `json:"certificate_type"`
	OutputDir          string          `json:"output_dir"`
	CreatedAt          time.Time       `json:"created_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
}

// DeriveJobStatus computes the aggregate job status from task states.
//
// completed: all tasks terminal-success; failed: all tasks terminal-failure;
// partially_failed: at least one of each; in_progress otherwise.
func DeriveJobStatus(states []TaskState) JobStatus {
	if len(states) == 0 {
		return JobInProgress
	}

	sent, failed := 0, 0
	for _, s := range states {
		switch {
		case s == TaskSent:
			sent++
		case s.TerminalFailure():
			failed++
		default:
			return JobInProgress
		}
	}

	switch {
	case failed == 0:
		return JobCompleted
	case sent == 0:
		return JobFailed
	default:
		return JobPartiallyFailed
	}
}

// JobProgress summarises task completion counts for a job.
type JobProgress struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// JobStatusResponse is the read-side view of a job returned to callers.
type JobStatusResponse struct {
	Job      *Job        `json:"job"`
	Status   JobStatus   `json:"status"`
	Progress JobProgress `json:"progress"`
	Tasks    []*Task     `json:"tasks,omitempty"`
}

// ComputeProgress derives per-job completion counters from task rows.
func ComputeProgress(tasks []*Task) JobProgress {
	p := JobProgress{Total: len(tasks)}
	for _, t := range tasks {
		if !t.State.Terminal() {
			continue
		}
		p.Completed++
		if t.State == TaskSent {
			p.Successful++
		} else {
			p.Failed++
		}
	}
	return p
}

// JobListItem is the compact per-job view returned by list endpoints.
type JobListItem struct {
	ID              string          `json:"id"`
	EventName       string          `json:"event_name"`
	EventDate       string          `json:"event_date"`
	CertificateType CertificateType `json:"certificate_type"`
	Status          JobStatus       `json:"status"`
	Total           int             `json:"total"`
	Successful      int             `json:"successful"`
	Failed          int             `json:"failed"`
	CreatedAt       time.Time       `json:"created_at"`
}
