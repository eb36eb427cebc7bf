package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveJobStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		states []TaskState
		want   JobStatus
	}{
		{"no tasks", nil, JobInProgress},
		{"all pending", []TaskState{TaskPending, TaskPending}, JobInProgress},
		{"one mid-pipeline", []TaskState{TaskSent, TaskConverting}, JobInProgress},
		{"all sent", []TaskState{TaskSent, TaskSent}, JobCompleted},
		{"mixed terminal", []TaskState{TaskSent, TaskSendFailed}, JobPartiallyFailed},
		{"all failed", []TaskState{TaskRenderFailed, TaskConvertFailed, TaskSendFailed}, JobFailed},
		{"single sent", []TaskState{TaskSent}, JobCompleted},
		{"single failed", []TaskState{TaskConvertFailed}, JobFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DeriveJobStatus(tt.states))
		})
	}
}

func TestComputeProgress(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tasks := []*Task{
		{State: TaskSent, SentAt: &now},
		{State: TaskSendFailed},
		{State: TaskConverting},
		{State: TaskPending},
	}

	got := ComputeProgress(tasks)
	assert.Equal(t, 4, got.Total)
	assert.Equal(t, 2, got.Completed)
	assert.Equal(t, 1, got.Successful)
	assert.Equal(t, 1, got.Failed)
}

func TestTaskStateClassification(t *testing.T) {
	t.Parallel()

	assert.True(t, TaskSent.Terminal())
	assert.False(t, TaskSent.TerminalFailure())
	assert.True(t, TaskRenderFailed.Terminal())
	assert.True(t, TaskRenderFailed.TerminalFailure())
	assert.False(t, TaskSending.Terminal())
	assert.False(t, TaskState("bogus").Valid())
	assert.True(t, TaskConverting.Valid())
}

func TestCertificateTypeValid(t *testing.T) {
	t.Parallel()

	assert.True(t, CertificateOfficial.Valid())
	assert.True(t, CertificateUnofficial.Valid())
	assert.False(t, CertificateType("premium").Valid())
	assert.False(t, CertificateType("").Valid())
}
