// Package httpx provides the HTTP API for the certificate mailer.
package httpx

import (
	"errors"
	"net/http"

	"github.com/gdg-qu/certmailer/internal/domain/model"
	"github.com/gdg-qu/certmailer/internal/service"
)

// JobHandlers provides HTTP handlers for job-related operations.
type JobHandlers struct {
	Svc *service.JobService
}

// SubmitJob accepts a batch of recipients and starts a certificate job.
// The response carries only the job ID; callers poll GetJob for progress.
func (h *JobHandlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	jobID, err := h.Svc.Submit(r.Context(), &req)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// ListJobs returns compact views of all jobs, newest first.
func (h *JobHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	items, err := h.Svc.ListJobs(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"jobs": items})
}

// GetJob returns a job with its derived status, progress counters, and tasks.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path",
			Err: errors.New("job id is required")})
		return
	}

	status, err := h.Svc.GetStatus(r.Context(), jobID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// GetTask returns a single task scoped to its parent job.
func (h *JobHandlers) GetTask(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	taskID := r.PathValue("taskID")
	if jobID == "" || taskID == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path",
			Err: errors.New("job id and task id are required")})
		return
	}

	task, err := h.Svc.GetTask(r.Context(), jobID, taskID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, task)
}
