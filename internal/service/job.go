package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gdg-qu/certmailer/internal/core"
	"github.com/gdg-qu/certmailer/internal/data"
	"github.com/gdg-qu/certmailer/internal/domain/model"
	apperrors "github.com/gdg-qu/certmailer/internal/errors"
	"github.com/gdg-qu/certmailer/internal/util"
)

// Dispatcher hands accepted jobs to the background task runner. Submission
// returns to the caller as soon as the job is persisted and dispatched.
type Dispatcher interface {
	// Dispatch starts driving the job's tasks in the background.
	Dispatch(job *model.Job, tasks []*model.Task) error
	// ActiveEvent reports whether a job for the event name is still running.
	ActiveEvent(eventName string) (jobID string, active bool)
}

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo       core.JobRepository  // Required: job/task persistence
	Dispatcher Dispatcher          // Required: background task dispatch
	Summary    *data.SummaryWriter // Optional: per-job summary.json snapshots
	JobsRoot   string              // Required: base directory for job output
	Logger     *slog.Logger        // Optional: structured logger
}

// JobService owns the job lifecycle: it accepts batches, fans out
// per-recipient tasks, and exposes the read path callers poll for progress.
type JobService struct {
	repo       core.JobRepository
	dispatcher Dispatcher
	summary    *data.SummaryWriter
	jobsRoot   string
	logger     *slog.Logger
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("Dispatcher is required")
	}
	if opts.JobsRoot == "" {
		return nil, errors.New("JobsRoot is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobService{
		repo:       opts.Repo,
		dispatcher: opts.Dispatcher,
		summary:    opts.Summary,
		jobsRoot:   opts.JobsRoot,
		logger:     logger.With("component", "job_service"),
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Submit validates the request, creates the job and its tasks atomically,
// dispatches background processing, and returns the new job identifier.
//
// Validation failures surface synchronously and leave no trace: no job row,
// no output directory. Everything after validation happens in the background.
func (s *JobService) Submit(ctx context.Context, req *model.SubmitRequest) (string, error) {
	if err := validateSubmit(req); err != nil {
		return "", err
	}

	if jobID, active := s.dispatcher.ActiveEvent(req.EventName); active {
		return "", apperrors.Conflictf("event %q is already being processed by job %s",
			req.EventName, jobID)
	}

	now := time.Now().UTC()
	job := &model.Job{
		ID:                 uuid.NewString(),
		EventName:          req.EventName,
		AnnouncedEventName: req.AnnouncedEventName,
		EventDate:          req.EventDate,
		CertificateType:    req.CertificateType,
		OutputDir:          filepath.Join(s.jobsRoot, util.SanitizeJobFolder(req.EventName, now)),
		CreatedAt:          now,
	}

	// The output directory must not pre-exist: a collision means two jobs
	// would share output, which is a configuration problem, not something to
	// paper over.
	if err := os.MkdirAll(s.jobsRoot, 0o755); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeStore, "create jobs root")
	}
	if err := os.Mkdir(job.OutputDir, 0o755); err != nil {
		if os.IsExist(err) {
			return "", apperrors.Conflictf("job output directory %s already exists", job.OutputDir)
		}
		return "", apperrors.Wrap(err, apperrors.ErrCodeStore, "create job output directory")
	}

	tasks := make([]*model.Task, len(req.Recipients))
	for i, recipient := range req.Recipients {
		tasks[i] = &model.Task{
			ID:             uuid.NewString(),
			JobID:          job.ID,
			RecipientName:  recipient.Name,
			RecipientEmail: recipient.Email,
			State:          model.TaskPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}

	if err := s.repo.CreateJob(ctx, job, tasks); err != nil {
		// Best-effort cleanup; the directory is empty at this point.
		_ = os.Remove(job.OutputDir)
		return "", err
	}

	if s.summary != nil {
		if err := s.summary.Write(job, tasks); err != nil {
			s.logger.ErrorContext(ctx, "write initial job summary", "job_id", job.ID, "error", err)
		}
	}

	if err := s.dispatcher.Dispatch(job, tasks); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "job submitted",
		"job_id", job.ID,
		"event", job.EventName,
		"certificate_type", job.CertificateType,
		"tasks", len(tasks))

	return job.ID, nil
}

// GetStatus returns the job with its derived aggregate status and progress.
func (s *JobService) GetStatus(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.repo.ListTasks(ctx, jobID)
	if err != nil {
		return nil, err
	}

	states := make([]model.TaskState, len(tasks))
	for i, t := range tasks {
		states[i] = t.State
	}

	return &model.JobStatusResponse{
		Job:      job,
		Status:   model.DeriveJobStatus(states),
		Progress: model.ComputeProgress(tasks),
		Tasks:    tasks,
	}, nil
}

// GetTask returns a single task scoped to its parent job.
func (s *JobService) GetTask(ctx context.Context, jobID, taskID string) (*model.Task, error) {
	return s.repo.GetTask(ctx, jobID, taskID)
}

// ListJobs returns compact views of all jobs, newest first.
func (s *JobService) ListJobs(ctx context.Context) ([]*model.JobListItem, error) {
	jobs, err := s.repo.ListJobs(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]*model.JobListItem, 0, len(jobs))
	for _, job := range jobs {
		tasks, err := s.repo.ListTasks(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		states := make([]model.TaskState, len(tasks))
		for i, t := range tasks {
			states[i] = t.State
		}
		progress := model.ComputeProgress(tasks)
		items = append(items, &model.JobListItem{
			ID:              job.ID,
			EventName:       job.EventName,
			EventDate:       job.EventDate,
			CertificateType: job.CertificateType,
			Status:          model.DeriveJobStatus(states),
			Total:           progress.Total,
			Successful:      progress.Successful,
			Failed:          progress.Failed,
			CreatedAt:       job.CreatedAt,
		})
	}
	return items, nil
}

// validateSubmit checks the submission input. The recipient name is left to
// the renderer: a missing name fails that task's render step, not the whole
// batch.
func validateSubmit(req *model.SubmitRequest) error {
	if req == nil {
		return apperrors.Validation("request body is required")
	}
	if strings.TrimSpace(req.EventName) == "" {
		return apperrors.ValidationField("event_name", "event name is required")
	}
	if strings.TrimSpace(req.EventDate) == "" {
		return apperrors.ValidationField("event_date", "event date is required")
	}
	if !req.CertificateType.Valid() {
		return apperrors.ValidationField("certificate_type",
			fmt.Sprintf("certificate type must be %q or %q",
				model.CertificateOfficial, model.CertificateUnofficial))
	}
	if len(req.Recipients) == 0 {
		return apperrors.ValidationField("recipients", "at least one recipient is required")
	}
	for i, recipient := range req.Recipients {
		if _, err := mail.ParseAddress(recipient.Email); err != nil {
			return apperrors.ValidationField("recipients",
				fmt.Sprintf("recipient %d has an invalid email address", i+1))
		}
	}
	return nil
}
