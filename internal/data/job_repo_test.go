package data_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdg-qu/certmailer/internal/core"
	"github.com/gdg-qu/certmailer/internal/domain/model"
	apperrors "github.com/gdg-qu/certmailer/internal/errors"
	"github.com/gdg-qu/certmailer/internal/testutil"
)

func createJobWithTasks(t *testing.T, taskCount int) (*model.Job, []*model.Task, core.JobRepository) {
	t.Helper()
	_, repo := testutil.OpenTestStore(t)

	job := testutil.NewJob(t.TempDir())
	tasks := make([]*model.Task, taskCount)
	for i := range tasks {
		tasks[i] = testutil.NewTask(job.ID)
	}
	require.NoError(t, repo.CreateJob(context.Background(), job, tasks))
	return job, tasks, repo
}

func TestCreateAndGetJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	job, tasks, repo := createJobWithTasks(t, 2)

	got, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.EventName, got.EventName)
	assert.Equal(t, model.CertificateOfficial, got.CertificateType)
	assert.Nil(t, got.CompletedAt)

	listed, err := repo.ListTasks(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	for i, task := range listed {
		assert.Equal(t, tasks[i].ID, task.ID)
		assert.Equal(t, model.TaskPending, task.State)
		assert.Zero(t, task.ConvertAttempts)
	}
}

func TestGetJobNotFound(t *testing.T) {
	t.Parallel()
	_, repo := testutil.OpenTestStore(t)

	_, err := repo.GetJob(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestGetTaskScopedToJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	job, tasks, repo := createJobWithTasks(t, 1)

	got, err := repo.GetTask(ctx, job.ID, tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, tasks[0].ID, got.ID)

	// A valid task ID under the wrong job must not resolve.
	_, err = repo.GetTask(ctx, "other-job", tasks[0].ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdateTaskGuardedTransition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	job, tasks, repo := createJobWithTasks(t, 1)
	task := tasks[0]

	got, err := repo.UpdateTask(ctx, core.TaskUpdate{
		JobID:      job.ID,
		TaskID:     task.ID,
		FromStates: []model.TaskState{model.TaskPending},
		State:      model.TaskRendering,
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskRendering, got.State)

	// Replaying the same guard must conflict: the task left pending already.
	_, err = repo.UpdateTask(ctx, core.TaskUpdate{
		JobID:      job.ID,
		TaskID:     task.ID,
		FromStates: []model.TaskState{model.TaskPending},
		State:      model.TaskRendering,
	})
	assert.True(t, apperrors.IsConflict(err))

	// Unknown task is reported as not found, not a conflict.
	_, err = repo.UpdateTask(ctx, core.TaskUpdate{
		JobID:      job.ID,
		TaskID:     "missing",
		FromStates: []model.TaskState{model.TaskPending},
		State:      model.TaskRendering,
	})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdateTaskAttemptCounters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	job, tasks, repo := createJobWithTasks(t, 1)
	task := tasks[0]

	for range 3 {
		_, err := repo.UpdateTask(ctx, core.TaskUpdate{
			JobID:                    job.ID,
			TaskID:                   task.ID,
			State:                    model.TaskConverting,
			IncrementConvertAttempts: true,
		})
		require.NoError(t, err)
	}

	got, err := repo.UpdateTask(ctx, core.TaskUpdate{
		JobID:                 job.ID,
		TaskID:                task.ID,
		State:                 model.TaskSending,
		IncrementSendAttempts: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, got.ConvertAttempts)
	assert.Equal(t, 1, got.SendAttempts)
}

func TestUpdateTaskRecordsFailureAndDocument(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	job, tasks, repo := createJobWithTasks(t, 1)
	task := tasks[0]

	got, err := repo.UpdateTask(ctx, core.TaskUpdate{
		JobID:        job.ID,
		TaskID:       task.ID,
		State:        model.TaskConvertFailed,
		ErrorKind:    "conversion",
		ErrorMessage: "converter exited with status 1",
		DocumentPath: "/jobs/demo/aisha-certificate.pptx",
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskConvertFailed, got.State)
	assert.Equal(t, "conversion", got.ErrorKind)
	assert.Equal(t, "converter exited with status 1", got.ErrorMessage)
	assert.Equal(t, "/jobs/demo/aisha-certificate.pptx", got.DocumentPath)
}

func TestUpdateTaskMarkSent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	job, tasks, repo := createJobWithTasks(t, 1)

	got, err := repo.UpdateTask(ctx, core.TaskUpdate{
		JobID:    job.ID,
		TaskID:   tasks[0].ID,
		State:    model.TaskSent,
		MarkSent: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskSent, got.State)
	require.NotNil(t, got.SentAt)
	assert.False(t, got.SentAt.IsZero())
}

func TestMarkJobCompletedIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	job, _, repo := createJobWithTasks(t, 1)

	require.NoError(t, repo.MarkJobCompleted(ctx, job.ID))
	first, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, first.CompletedAt)

	require.NoError(t, repo.MarkJobCompleted(ctx, job.ID))
	second, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, first.CompletedAt.UTC(), second.CompletedAt.UTC())
}

func TestResetInFlightTasks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	job, tasks, repo := createJobWithTasks(t, 4)

	inFlight := []model.TaskState{model.TaskRendering, model.TaskConverting, model.TaskSending}
	for i, state := range inFlight {
		_, err := repo.UpdateTask(ctx, core.TaskUpdate{
			JobID: job.ID, TaskID: tasks[i].ID, State: state,
		})
		require.NoError(t, err)
	}
	_, err := repo.UpdateTask(ctx, core.TaskUpdate{
		JobID: job.ID, TaskID: tasks[3].ID, State: model.TaskSent, MarkSent: true,
	})
	require.NoError(t, err)

	n, err := repo.ResetInFlightTasks(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	listed, err := repo.ListTasks(ctx, job.ID)
	require.NoError(t, err)
	for _, task := range listed[:3] {
		assert.Equal(t, model.TaskPending, task.State)
	}
	assert.Equal(t, model.TaskSent, listed[3].State, "terminal tasks are untouched")
}

func TestListUnfinishedJobs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, repo := testutil.OpenTestStore(t)

	unfinished := testutil.NewJob(t.TempDir())
	pending := testutil.NewTask(unfinished.ID)
	require.NoError(t, repo.CreateJob(ctx, unfinished, []*model.Task{pending}))

	finished := testutil.NewJob(t.TempDir())
	finished.EventName = "Cloud Day"
	done := testutil.NewTask(finished.ID)
	require.NoError(t, repo.CreateJob(ctx, finished, []*model.Task{done}))
	_, err := repo.UpdateTask(ctx, core.TaskUpdate{
		JobID: finished.ID, TaskID: done.ID, State: model.TaskSent, MarkSent: true,
	})
	require.NoError(t, err)

	jobs, err := repo.ListUnfinishedJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, unfinished.ID, jobs[0].ID)
}
