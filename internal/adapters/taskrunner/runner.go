// Package taskrunner executes certificate jobs in the background, fanning
// each job's tasks across a bounded worker pool.
package taskrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gdg-qu/certmailer/internal/core"
	"github.com/gdg-qu/certmailer/internal/data"
	"github.com/gdg-qu/certmailer/internal/domain/model"
	apperrors "github.com/gdg-qu/certmailer/internal/errors"
	"github.com/gdg-qu/certmailer/internal/observability/metrics"
	"github.com/gdg-qu/certmailer/internal/observability/statsd"
	"github.com/gdg-qu/certmailer/internal/service"
)

// RunnerOptions configures the task runner adapter.
type RunnerOptions struct {
	Repo     core.JobRepository  // Required: task reads and job completion
	Pipeline *service.Pipeline   // Required: per-task state machine
	Summary  *data.SummaryWriter // Optional: summary.json snapshots
	Workers  int                 // Concurrent tasks per job; defaults to 1
	Metrics  statsd.Sink         // Optional: job outcome metrics
	Logger   *slog.Logger        // Optional: structured logger
}

// Runner drives dispatched jobs to completion in the background. It tracks
// one active job per event name and drains outstanding work on shutdown.
type Runner struct {
	repo     core.JobRepository
	pipeline *service.Pipeline
	summary  *data.SummaryWriter
	workers  int
	metrics  statsd.Sink
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	closed        bool
	activeByEvent map[string]string // event name -> job ID
}

var _ service.Dispatcher = (*Runner)(nil)

// NewRunner constructs a new Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Pipeline == nil {
		return nil, errors.New("Pipeline is required")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		repo:          opts.Repo,
		pipeline:      opts.Pipeline,
		summary:       opts.Summary,
		workers:       workers,
		metrics:       opts.Metrics,
		logger:        logger.With("component", "task_runner"),
		ctx:           ctx,
		cancel:        cancel,
		activeByEvent: make(map[string]string),
	}, nil
}

// MustNewRunner constructs a new Runner and panics on error.
func MustNewRunner(opts RunnerOptions) *Runner {
	r, err := NewRunner(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create Runner: %v", err))
	}
	return r
}

// ActiveEvent reports the job currently processing the event, if any.
func (r *Runner) ActiveEvent(eventName string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobID, ok := r.activeByEvent[eventName]
	return jobID, ok
}

// Dispatch starts driving the job's tasks in the background and returns
// immediately. Only tasks that are not already terminal are driven, which
// lets recovery re-dispatch partially finished jobs.
func (r *Runner) Dispatch(job *model.Job, tasks []*model.Task) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return apperrors.Conflict("runner is shutting down")
	}
	if jobID, ok := r.activeByEvent[job.EventName]; ok {
		r.mu.Unlock()
		return apperrors.Conflictf("event %q is already being processed by job %s",
			job.EventName, jobID)
	}
	r.activeByEvent[job.EventName] = job.ID
	r.wg.Add(1)
	r.mu.Unlock()

	go r.runJob(job, tasks)
	return nil
}

// Recover resets tasks a previous process left in flight and re-dispatches
// every job that still has work to do. Call once at startup, before the API
// starts accepting submissions.
func (r *Runner) Recover(ctx context.Context) error {
	reset, err := r.repo.ResetInFlightTasks(ctx)
	if err != nil {
		return fmt.Errorf("reset in-flight tasks: %w", err)
	}
	if reset > 0 {
		r.logger.InfoContext(ctx, "reset in-flight tasks to pending", "count", reset)
	}

	jobs, err := r.repo.ListUnfinishedJobs(ctx)
	if err != nil {
		return fmt.Errorf("list unfinished jobs: %w", err)
	}
	for _, job := range jobs {
		tasks, err := r.repo.ListTasks(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("list tasks for job %s: %w", job.ID, err)
		}
		if err := r.Dispatch(job, tasks); err != nil {
			return fmt.Errorf("re-dispatch job %s: %w", job.ID, err)
		}
		r.logger.InfoContext(ctx, "re-dispatched unfinished job",
			"job_id", job.ID, "event", job.EventName)
	}
	return nil
}

// Shutdown stops accepting new jobs and waits for in-flight work to drain.
// When ctx expires first, remaining work is cancelled; interrupted tasks
// keep their states and are recovered at next startup.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}

func (r *Runner) runJob(job *model.Job, tasks []*model.Task) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		delete(r.activeByEvent, job.EventName)
		r.mu.Unlock()
	}()

	ctx := r.ctx
	logger := r.logger.With("job_id", job.ID, "event", job.EventName)
	logger.InfoContext(ctx, "processing job", "tasks", len(tasks), "workers", r.workers)

	// No shared-context group here: one task hitting a store failure must
	// not cancel its siblings. Only the affected task waits for recovery.
	var g errgroup.Group
	g.SetLimit(r.workers)
	for _, task := range tasks {
		if task.State.Terminal() {
			continue
		}
		g.Go(func() error {
			if err := r.pipeline.Run(ctx, job, task); err != nil {
				return fmt.Errorf("task %s: %w", task.ID, err)
			}
			r.writeSummary(ctx, job)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Interrupted or infrastructure failure; remaining state is on disk
		// and recovery picks it up at next startup.
		logger.ErrorContext(ctx, "job interrupted", "error", err)
		return
	}

	r.finalizeJob(ctx, job, logger)
}

// finalizeJob stamps completion and writes the last summary once every task
// has settled.
func (r *Runner) finalizeJob(ctx context.Context, job *model.Job, logger *slog.Logger) {
	tasks, err := r.repo.ListTasks(ctx, job.ID)
	if err != nil {
		logger.ErrorContext(ctx, "list tasks after job run", "error", err)
		return
	}

	states := make([]model.TaskState, len(tasks))
	for i, t := range tasks {
		states[i] = t.State
	}
	status := model.DeriveJobStatus(states)
	if status == model.JobInProgress {
		logger.WarnContext(ctx, "job still has unsettled tasks after run")
		return
	}

	if err := r.repo.MarkJobCompleted(ctx, job.ID); err != nil {
		logger.ErrorContext(ctx, "mark job completed", "error", err)
	}
	if r.summary != nil {
		if err := r.summary.Write(job, tasks); err != nil {
			logger.ErrorContext(ctx, "write job summary", "error", err)
		}
	}

	progress := model.ComputeProgress(tasks)
	metrics.EmitJobFinished(r.metrics, string(status), progress.Total, progress.Failed)
	logger.InfoContext(ctx, "job finished",
		"status", status,
		"successful", progress.Successful,
		"failed", progress.Failed)
}

// writeSummary refreshes summary.json with the latest task states so the
// on-disk record tracks progress while the job is still running.
func (r *Runner) writeSummary(ctx context.Context, job *model.Job) {
	if r.summary == nil {
		return
	}
	tasks, err := r.repo.ListTasks(ctx, job.ID)
	if err != nil {
		r.logger.DebugContext(ctx, "list tasks for summary", "job_id", job.ID, "error", err)
		return
	}
	if err := r.summary.Write(job, tasks); err != nil {
		r.logger.DebugContext(ctx, "write summary", "job_id", job.ID, "error", err)
	}
}
