package scanning

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJob(t *testing.T) *Job {
	t.Helper()
	return NewJob(uuid.New(), "user-1", "", uuid.New(), JobTypeScanRepo, JobInput{
		RepoURL: "https://github.com/acme/app",
		Branch:  "main",
	})
}

func TestNewJobStartsPending(t *testing.T) {
	t.Parallel()

	job := newTestJob(t)
	assert.Equal(t, JobStatusPending, job.Status())
	assert.False(t, job.WasSubmitted())
	assert.False(t, job.Timeline().CreatedAt().IsZero())
	_, finished := job.FinishedAt()
	assert.False(t, finished)
}

func TestMarkSubmittedIdempotent(t *testing.T) {
	t.Parallel()

	job := newTestJob(t)
	job.MarkSubmitted()
	require.True(t, job.WasSubmitted())
	first := job.Timeline().StartedAt()

	job.MarkSubmitted()
	assert.Equal(t, first, job.Timeline().StartedAt(), "duplicate submissions do not move the timestamp")
	assert.Equal(t, JobStatusPending, job.Status(), "submission alone does not advance the status")
}

func TestCompleteLifecycle(t *testing.T) {
	t.Parallel()

	job := newTestJob(t)
	job.MarkSubmitted()
	require.NoError(t, job.MarkInProgress())
	require.NoError(t, job.Complete(json.RawMessage(`{"findings":0}`)))

	assert.Equal(t, JobStatusCompleted, job.Status())
	assert.Empty(t, job.ErrorMessage(), "completed jobs never carry an error")
	finished, ok := job.FinishedAt()
	require.True(t, ok, "terminal state implies finished timestamp")
	assert.False(t, finished.IsZero())
}

func TestFailRequiresReason(t *testing.T) {
	t.Parallel()

	job := newTestJob(t)
	require.Error(t, job.Fail(""))
	assert.Equal(t, JobStatusPending, job.Status())

	require.NoError(t, job.Fail("clone failed: authentication required"))
	assert.Equal(t, JobStatusFailed, job.Status())
	assert.Equal(t, "clone failed: authentication required", job.ErrorMessage())
	_, ok := job.FinishedAt()
	assert.True(t, ok)
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		finalize func(j *Job) error
		want     JobStatus
	}{
		{name: "completed", finalize: func(j *Job) error { return j.Complete(nil) }, want: JobStatusCompleted},
		{name: "failed", finalize: func(j *Job) error { return j.Fail("boom") }, want: JobStatusFailed},
		{name: "cancelled", finalize: func(j *Job) error { return j.Cancel() }, want: JobStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			job := newTestJob(t)
			require.NoError(t, tt.finalize(job))
			finishedAt, _ := job.FinishedAt()

			require.ErrorIs(t, job.MarkInProgress(), ErrInvalidStatusTransition)
			require.ErrorIs(t, job.Complete(nil), ErrInvalidStatusTransition)
			require.ErrorIs(t, job.Fail("later"), ErrInvalidStatusTransition)
			if tt.want != JobStatusCancelled {
				require.ErrorIs(t, job.Cancel(), ErrJobNotCancellable)
			}

			assert.Equal(t, tt.want, job.Status())
			stillFinishedAt, _ := job.FinishedAt()
			assert.Equal(t, finishedAt, stillFinishedAt, "terminal timestamp never moves")
		})
	}
}

func TestCancelRecordsFixedReason(t *testing.T) {
	t.Parallel()

	job := newTestJob(t)
	require.NoError(t, job.MarkInProgress())
	require.NoError(t, job.Cancel())

	assert.Equal(t, JobStatusCancelled, job.Status())
	assert.Equal(t, CancelledByUserReason, job.ErrorMessage())
}

func TestMergeWorkerState(t *testing.T) {
	t.Parallel()

	t.Run("worker report advances a live job", func(t *testing.T) {
		t.Parallel()

		job := newTestJob(t)
		changed, err := MergeWorkerState(job, WorkerState{Status: JobStatusInProgress})
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, JobStatusInProgress, job.Status())
	})

	t.Run("worker completion carries its result", func(t *testing.T) {
		t.Parallel()

		job := newTestJob(t)
		changed, err := MergeWorkerState(job, WorkerState{
			Status: JobStatusCompleted,
			Result: json.RawMessage(`{"engine":"trivy"}`),
		})
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, JobStatusCompleted, job.Status())
		assert.JSONEq(t, `{"engine":"trivy"}`, string(job.Result()))
	})

	t.Run("worker failure without detail gets a fallback reason", func(t *testing.T) {
		t.Parallel()

		job := newTestJob(t)
		changed, err := MergeWorkerState(job, WorkerState{Status: JobStatusFailed})
		require.NoError(t, err)
		assert.True(t, changed)
		assert.NotEmpty(t, job.ErrorMessage())
	})

	t.Run("terminal local state wins over stale report", func(t *testing.T) {
		t.Parallel()

		job := newTestJob(t)
		require.NoError(t, job.Cancel())

		changed, err := MergeWorkerState(job, WorkerState{Status: JobStatusInProgress})
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, JobStatusCancelled, job.Status())
	})

	t.Run("empty report is a no-op", func(t *testing.T) {
		t.Parallel()

		job := newTestJob(t)
		changed, err := MergeWorkerState(job, WorkerState{})
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, JobStatusPending, job.Status())
	})
}
