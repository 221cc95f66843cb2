package scanning

import "time"

// TimeProvider is an interface that provides a Now method to get the current time.
type TimeProvider interface {
	Now() time.Time
}

// Real implementation for production.
type realTimeProvider struct{}

func (r *realTimeProvider) Now() time.Time { return time.Now() }

// Timeline tracks temporal aspects of a scan job: when it was created, when
// it was handed to the worker, and when it reached a terminal state.
type Timeline struct {
	createdAt    time.Time
	startedAt    time.Time
	finishedAt   time.Time
	timeProvider TimeProvider
}

// NewTimeline creates a new Timeline instance stamped with the creation time.
func NewTimeline(timeProvider TimeProvider) *Timeline {
	return &Timeline{
		createdAt:    timeProvider.Now(),
		timeProvider: timeProvider,
	}
}

// ReconstructTimeline creates a Timeline from stored timestamps, bypassing
// creation invariants. This should only be used by repositories when loading
// from the DB.
func ReconstructTimeline(createdAt, startedAt, finishedAt time.Time) *Timeline {
	return &Timeline{
		createdAt:    createdAt,
		startedAt:    startedAt,
		finishedAt:   finishedAt,
		timeProvider: new(realTimeProvider),
	}
}

// CreatedAt returns the time the scan job was created.
func (t *Timeline) CreatedAt() time.Time { return t.createdAt }

// StartedAt returns the time the job was submitted to the worker.
// The zero time means the job has not been submitted.
func (t *Timeline) StartedAt() time.Time { return t.startedAt }

// FinishedAt returns the time the job reached a terminal state.
// The zero time means the job is still live.
func (t *Timeline) FinishedAt() time.Time { return t.finishedAt }

// MarkStarted records the submission time. Subsequent calls are no-ops so
// that duplicate submissions do not move the timestamp.
func (t *Timeline) MarkStarted() {
	if t.startedAt.IsZero() {
		t.startedAt = t.timeProvider.Now()
	}
}

// MarkFinished records the terminal-state time.
func (t *Timeline) MarkFinished() {
	if t.finishedAt.IsZero() {
		t.finishedAt = t.timeProvider.Now()
	}
}

// IsFinished checks if the timeline has been marked as finished.
func (t *Timeline) IsFinished() bool { return !t.finishedAt.IsZero() }

// Elapsed returns the duration between submission and completion, or zero if
// either timestamp is absent.
func (t *Timeline) Elapsed() time.Duration {
	return ElapsedBetween(t.startedAt, t.finishedAt)
}
