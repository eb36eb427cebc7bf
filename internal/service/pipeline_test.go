package service_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdg-qu/certmailer/internal/core"
	"github.com/gdg-qu/certmailer/internal/domain/model"
	"github.com/gdg-qu/certmailer/internal/domain/retry"
	apperrors "github.com/gdg-qu/certmailer/internal/errors"
	"github.com/gdg-qu/certmailer/internal/service"
	"github.com/gdg-qu/certmailer/internal/testutil"
)

// fakeConverter fails a configured number of times, then converts by
// rewriting the extension.
type fakeConverter struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (c *fakeConverter) Convert(_ context.Context, inputPath string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failures {
		return "", apperrors.Conversion("converter exited with status 1")
	}
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".pdf", nil
}

// fakeSender fails a configured number of times, then records the delivery.
type fakeSender struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []*core.Email
}

func (s *fakeSender) Send(_ context.Context, email *core.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return apperrors.Delivery("mail transport unavailable")
	}
	s.sent = append(s.sent, email)
	return nil
}

// fakeComposer builds a minimal email without touching the attachment file.
type fakeComposer struct{}

func (fakeComposer) Compose(in core.ComposeInput) (*core.Email, error) {
	return &core.Email{To: in.RecipientEmail, Subject: in.EventName}, nil
}

type pipelineHarness struct {
	pipeline  *service.Pipeline
	repo      core.JobRepository
	converter *fakeConverter
	sender    *fakeSender
	job       *model.Job
	task      *model.Task
}

func newPipelineHarness(t *testing.T, converter *fakeConverter, sender *fakeSender) *pipelineHarness {
	t.Helper()
	ctx := context.Background()
	_, repo := testutil.OpenTestStore(t)

	tmplDir := t.TempDir()
	official := filepath.Join(tmplDir, "certificate.txt")
	unofficial := filepath.Join(tmplDir, "certificate unofficial.txt")
	content := []byte("This certifies <<name>> attended <<event_name>> on <<event_date>>.")
	require.NoError(t, os.WriteFile(official, content, 0o644))
	require.NoError(t, os.WriteFile(unofficial, content, 0o644))
	templates, err := service.NewTemplateStore(official, unofficial)
	require.NoError(t, err)

	policy, err := retry.NewPolicy(3, 0)
	require.NoError(t, err)

	pipeline := service.MustNewPipeline(service.PipelineOptions{
		Repo:         repo,
		Templates:    templates,
		Renderer:     service.NewRenderer("<<", ">>"),
		Converter:    converter,
		Composer:     fakeComposer{},
		Sender:       sender,
		ConvertRetry: policy,
		SendRetry:    policy,
	})

	job := testutil.NewJob(t.TempDir())
	task := testutil.NewTask(job.ID)
	require.NoError(t, repo.CreateJob(ctx, job, []*model.Task{task}))

	return &pipelineHarness{
		pipeline:  pipeline,
		repo:      repo,
		converter: converter,
		sender:    sender,
		job:       job,
		task:      task,
	}
}

func (h *pipelineHarness) reloadTask(t *testing.T) *model.Task {
	t.Helper()
	task, err := h.repo.GetTask(context.Background(), h.job.ID, h.task.ID)
	require.NoError(t, err)
	return task
}

func TestPipelineDeliversCertificate(t *testing.T) {
	t.Parallel()

	h := newPipelineHarness(t, &fakeConverter{}, &fakeSender{})
	require.NoError(t, h.pipeline.Run(context.Background(), h.job, h.task))

	task := h.reloadTask(t)
	assert.Equal(t, model.TaskSent, task.State)
	assert.Equal(t, 1, task.ConvertAttempts)
	assert.Equal(t, 1, task.SendAttempts)
	assert.Empty(t, task.ErrorKind)
	require.NotNil(t, task.SentAt)
	assert.True(t, strings.HasSuffix(task.DocumentPath, "Aisha-certificate.pdf"))

	require.Len(t, h.sender.sent, 1)
	assert.Equal(t, "aisha@example.com", h.sender.sent[0].To)
}

func TestPipelineRetriesConversion(t *testing.T) {
	t.Parallel()

	h := newPipelineHarness(t, &fakeConverter{failures: 2}, &fakeSender{})
	require.NoError(t, h.pipeline.Run(context.Background(), h.job, h.task))

	task := h.reloadTask(t)
	assert.Equal(t, model.TaskSent, task.State)
	assert.Equal(t, 3, task.ConvertAttempts, "two failures then success")
	assert.Equal(t, 1, task.SendAttempts, "convert retries never touch the send budget")
	assert.Equal(t, 3, h.converter.calls)
}

func TestPipelineConversionBudgetExhausted(t *testing.T) {
	t.Parallel()

	h := newPipelineHarness(t, &fakeConverter{failures: 99}, &fakeSender{})
	require.NoError(t, h.pipeline.Run(context.Background(), h.job, h.task))

	task := h.reloadTask(t)
	assert.Equal(t, model.TaskConvertFailed, task.State)
	assert.Equal(t, 3, task.ConvertAttempts)
	assert.Equal(t, "conversion", task.ErrorKind)
	assert.Contains(t, task.ErrorMessage, "converter exited")
	assert.Equal(t, 3, h.converter.calls, "budget stops further attempts")
	assert.Empty(t, h.sender.sent, "a failed conversion never reaches transport")
}

func TestPipelineSendBudgetExhausted(t *testing.T) {
	t.Parallel()

	h := newPipelineHarness(t, &fakeConverter{}, &fakeSender{failures: 99})
	require.NoError(t, h.pipeline.Run(context.Background(), h.job, h.task))

	task := h.reloadTask(t)
	assert.Equal(t, model.TaskSendFailed, task.State)
	assert.Equal(t, 3, task.SendAttempts)
	assert.Equal(t, "delivery", task.ErrorKind)
	assert.Equal(t, 3, h.sender.calls)
}

func TestPipelineRenderFailureIsTerminal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	h := newPipelineHarness(t, &fakeConverter{}, &fakeSender{})

	job := testutil.NewJob(t.TempDir())
	job.EventName = "Cloud Day"
	nameless := testutil.NewTask(job.ID)
	nameless.RecipientName = ""
	nameless.RecipientEmail = "anon@example.com"
	require.NoError(t, h.repo.CreateJob(ctx, job, []*model.Task{nameless}))

	require.NoError(t, h.pipeline.Run(ctx, job, nameless))

	task, err := h.repo.GetTask(ctx, job.ID, nameless.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskRenderFailed, task.State)
	assert.Equal(t, "render", task.ErrorKind)
	assert.Zero(t, task.ConvertAttempts, "rendering is never retried")
	assert.Zero(t, h.converter.calls)
	assert.Empty(t, h.sender.sent)
}

func TestPipelineSkipsAlreadyClaimedTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	h := newPipelineHarness(t, &fakeConverter{}, &fakeSender{})

	_, err := h.repo.UpdateTask(ctx, core.TaskUpdate{
		JobID: h.job.ID, TaskID: h.task.ID, State: model.TaskSent, MarkSent: true,
	})
	require.NoError(t, err)

	require.NoError(t, h.pipeline.Run(ctx, h.job, h.task))
	assert.Zero(t, h.converter.calls)
	assert.Zero(t, h.sender.calls)
}
