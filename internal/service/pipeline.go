package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdg-qu/certmailer/internal/core"
	"github.com/gdg-qu/certmailer/internal/domain/model"
	"github.com/gdg-qu/certmailer/internal/domain/retry"
	apperrors "github.com/gdg-qu/certmailer/internal/errors"
	"github.com/gdg-qu/certmailer/internal/observability/metrics"
	"github.com/gdg-qu/certmailer/internal/observability/statsd"
)

// PipelineOptions groups dependencies for Pipeline.
type PipelineOptions struct {
	Repo         core.JobRepository // Required: task state transitions
	Templates    core.TemplateStore // Required: certificate template lookup
	Renderer     core.Renderer      // Required: template rendering
	Converter    core.Converter     // Required: document conversion
	Composer     core.EmailComposer // Required: email construction
	Sender       core.Sender        // Required: mail transport
	ConvertRetry *retry.Policy      // Required: conversion attempt budget
	SendRetry    *retry.Policy      // Required: delivery attempt budget
	SendTimeout  time.Duration      // Optional: per-attempt send deadline
	Metrics      statsd.Sink        // Optional: step metrics
	Logger       *slog.Logger       // Optional: structured logger
}

// Pipeline drives a single task through render, convert, and send. Each
// state transition is persisted before the work it announces, so a crashed
// process leaves behind an accurate record of how far every task got.
type Pipeline struct {
	repo         core.JobRepository
	templates    core.TemplateStore
	renderer     core.Renderer
	converter    core.Converter
	composer     core.EmailComposer
	sender       core.Sender
	convertRetry *retry.Policy
	sendRetry    *retry.Policy
	sendTimeout  time.Duration
	metrics      statsd.Sink
	logger       *slog.Logger
}

// NewPipeline constructs a new Pipeline.
func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Templates == nil {
		return nil, errors.New("TemplateStore is required")
	}
	if opts.Renderer == nil {
		return nil, errors.New("Renderer is required")
	}
	if opts.Converter == nil {
		return nil, errors.New("Converter is required")
	}
	if opts.Composer == nil {
		return nil, errors.New("EmailComposer is required")
	}
	if opts.Sender == nil {
		return nil, errors.New("Sender is required")
	}
	if opts.ConvertRetry == nil || opts.SendRetry == nil {
		return nil, errors.New("retry policies are required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		repo:         opts.Repo,
		templates:    opts.Templates,
		renderer:     opts.Renderer,
		converter:    opts.Converter,
		composer:     opts.Composer,
		sender:       opts.Sender,
		convertRetry: opts.ConvertRetry,
		sendRetry:    opts.SendRetry,
		sendTimeout:  opts.SendTimeout,
		metrics:      opts.Metrics,
		logger:       logger.With("component", "pipeline"),
	}, nil
}

// MustNewPipeline constructs a new Pipeline and panics on error.
func MustNewPipeline(opts PipelineOptions) *Pipeline {
	p, err := NewPipeline(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create Pipeline: %v", err))
	}
	return p
}

// Run drives one task from pending to a terminal state.
//
// A recipient-level failure (bad template data, exhausted retries) settles
// the task in its *_failed state and returns nil; it never fails the job.
// Run returns an error only for infrastructure problems: a lost claim race,
// a store write failure, or context cancellation during shutdown, in which
// case the task keeps its current state and is recovered at next startup.
func (p *Pipeline) Run(ctx context.Context, job *model.Job, task *model.Task) error {
	logger := p.logger.With("job_id", job.ID, "task_id", task.ID)

	// Claim the task. Losing the race to another worker is not an error.
	if _, err := p.repo.UpdateTask(ctx, core.TaskUpdate{
		JobID:      job.ID,
		TaskID:     task.ID,
		FromStates: []model.TaskState{model.TaskPending},
		State:      model.TaskRendering,
	}); err != nil {
		if apperrors.IsConflict(err) {
			logger.DebugContext(ctx, "task already claimed")
			return nil
		}
		return err
	}

	docPath, err := p.renderStep(ctx, job, task)
	if err != nil {
		return p.settleFailure(ctx, logger, job, task, model.TaskRendering, model.TaskRenderFailed, err)
	}

	pdfPath, err := p.convertStep(ctx, job, task, docPath)
	if err != nil {
		return p.settleFailure(ctx, logger, job, task, model.TaskConverting, model.TaskConvertFailed, err)
	}

	if err := p.sendStep(ctx, job, task, pdfPath); err != nil {
		return p.settleFailure(ctx, logger, job, task, model.TaskSending, model.TaskSendFailed, err)
	}

	if _, err := p.repo.UpdateTask(ctx, core.TaskUpdate{
		JobID:      job.ID,
		TaskID:     task.ID,
		FromStates: []model.TaskState{model.TaskSending},
		State:      model.TaskSent,
		MarkSent:   true,
	}); err != nil {
		return err
	}

	logger.InfoContext(ctx, "certificate delivered", "recipient", task.RecipientEmail)
	return nil
}

func (p *Pipeline) renderStep(ctx context.Context, job *model.Job, task *model.Task) (string, error) {
	start := time.Now()

	tmpl, err := p.templates.Resolve(job.CertificateType)
	if err != nil {
		p.emitStep(metrics.StepRender, metrics.ResultError, 1, time.Since(start), err)
		return "", err
	}

	docPath, err := p.renderer.Render(ctx, tmpl, core.RenderData{
		Name:      task.RecipientName,
		EventName: job.EventName,
		EventDate: job.EventDate,
	}, job.OutputDir)
	if err != nil {
		p.emitStep(metrics.StepRender, metrics.ResultError, 1, time.Since(start), err)
		return "", err
	}
	p.emitStep(metrics.StepRender, metrics.ResultSuccess, 1, time.Since(start), nil)

	if _, err := p.repo.UpdateTask(ctx, core.TaskUpdate{
		JobID:        job.ID,
		TaskID:       task.ID,
		FromStates:   []model.TaskState{model.TaskRendering},
		State:        model.TaskRendered,
		DocumentPath: docPath,
	}); err != nil {
		return "", err
	}
	return docPath, nil
}

func (p *Pipeline) convertStep(ctx context.Context, job *model.Job, task *model.Task, docPath string) (string, error) {
	start := time.Now()
	attempts := 0

	var pdfPath string
	err := p.convertRetry.Do(ctx,
		func(ctx context.Context) error {
			out, convErr := p.converter.Convert(ctx, docPath)
			if convErr != nil {
				return convErr
			}
			pdfPath = out
			return nil
		},
		func(n int) error {
			attempts = n
			if n > 1 {
				p.emitStep(metrics.StepConvert, metrics.ResultRetry, n, 0, nil)
			}
			_, updErr := p.repo.UpdateTask(ctx, core.TaskUpdate{
				JobID:                    job.ID,
				TaskID:                   task.ID,
				FromStates:               []model.TaskState{model.TaskRendered, model.TaskConverting},
				State:                    model.TaskConverting,
				IncrementConvertAttempts: true,
			})
			return updErr
		},
	)
	if err != nil {
		p.emitStep(metrics.StepConvert, metrics.ResultError, attempts, time.Since(start), err)
		return "", err
	}
	p.emitStep(metrics.StepConvert, metrics.ResultSuccess, attempts, time.Since(start), nil)

	if _, err := p.repo.UpdateTask(ctx, core.TaskUpdate{
		JobID:        job.ID,
		TaskID:       task.ID,
		FromStates:   []model.TaskState{model.TaskConverting},
		State:        model.TaskConverted,
		DocumentPath: pdfPath,
	}); err != nil {
		return "", err
	}
	return pdfPath, nil
}

func (p *Pipeline) sendStep(ctx context.Context, job *model.Job, task *model.Task, pdfPath string) error {
	// Composition reads the attachment from disk; a failure here is a
	// delivery failure without consuming the send budget.
	email, err := p.composer.Compose(core.ComposeInput{
		RecipientName:  task.RecipientName,
		RecipientEmail: task.RecipientEmail,
		EventName:      job.EventName,
		AnnouncedName:  job.AnnouncedEventName,
		AttachmentPath: pdfPath,
	})
	if err != nil {
		p.emitStep(metrics.StepSend, metrics.ResultError, 0, 0, err)
		return err
	}

	start := time.Now()
	attempts := 0

	err = p.sendRetry.Do(ctx,
		func(ctx context.Context) error {
			sendCtx := ctx
			if p.sendTimeout > 0 {
				var cancel context.CancelFunc
				sendCtx, cancel = context.WithTimeout(ctx, p.sendTimeout)
				defer cancel()
			}
			return p.sender.Send(sendCtx, email)
		},
		func(n int) error {
			attempts = n
			if n > 1 {
				p.emitStep(metrics.StepSend, metrics.ResultRetry, n, 0, nil)
			}
			_, updErr := p.repo.UpdateTask(ctx, core.TaskUpdate{
				JobID:                 job.ID,
				TaskID:                task.ID,
				FromStates:            []model.TaskState{model.TaskConverted, model.TaskSending},
				State:                 model.TaskSending,
				IncrementSendAttempts: true,
			})
			return updErr
		},
	)
	if err != nil {
		p.emitStep(metrics.StepSend, metrics.ResultError, attempts, time.Since(start), err)
		return err
	}
	p.emitStep(metrics.StepSend, metrics.ResultSuccess, attempts, time.Since(start), nil)
	return nil
}

// settleFailure records a terminal failure for the task. Context
// cancellation is passed through instead: the task keeps its in-flight state
// and startup recovery returns it to pending.
func (p *Pipeline) settleFailure(ctx context.Context, logger *slog.Logger, job *model.Job, task *model.Task, from model.TaskState, failState model.TaskState, cause error) error {
	if errors.Is(cause, context.Canceled) || ctx.Err() != nil {
		return cause
	}
	// Store failures are infrastructure problems, not recipient outcomes.
	if apperrors.IsStore(cause) || apperrors.IsConflict(cause) {
		return cause
	}

	kind := string(apperrors.GetCode(cause))
	if kind == "" {
		kind = string(apperrors.ErrCodeInternal)
	}

	if _, err := p.repo.UpdateTask(ctx, core.TaskUpdate{
		JobID:        job.ID,
		TaskID:       task.ID,
		FromStates:   []model.TaskState{from},
		State:        failState,
		ErrorKind:    kind,
		ErrorMessage: cause.Error(),
	}); err != nil {
		return err
	}

	logger.WarnContext(ctx, "task failed",
		"recipient", task.RecipientEmail,
		"state", failState,
		"error_kind", kind,
		"error", cause)
	return nil
}

func (p *Pipeline) emitStep(step, result string, attempt int, duration time.Duration, err error) {
	metrics.EmitTaskStep(p.metrics, metrics.TaskMetric{
		Step:     step,
		Result:   result,
		Attempt:  attempt,
		Duration: duration,
		Err:      err,
	})
}
